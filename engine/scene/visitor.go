package scene

import (
	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Visitor is applied to every node reached during a depth-first traversal.
type Visitor interface {
	// Apply is called with each node and its world matrix.
	// Returning false skips the node's children.
	Apply(n Node, world mgl32.Mat4) bool
}

// Traverse walks the subgraph rooted at root depth-first, applying v to every node.
// The root's ancestors contribute to world matrices unless the root is absolute.
//
// Parameters:
//   - root: the subgraph root
//   - v: the visitor to apply
func Traverse(root Node, v Visitor) {
	if root == nil || v == nil {
		return
	}
	parentWorld := mgl32.Ident4()
	if p := root.Parent(); p != nil && !root.Absolute() {
		parentWorld = p.WorldMatrix()
	}
	traverse(root, parentWorld, v)
}

func traverse(n Node, parentWorld mgl32.Mat4, v Visitor) {
	world := n.Matrix()
	if !n.Absolute() {
		world = parentWorld.Mul4(world)
	}
	if !v.Apply(n, world) {
		return
	}
	for _, c := range n.Children() {
		traverse(c, world, v)
	}
}

// ComputeBoundsVisitor accumulates the world-space bound of every geometry in subgraphs whose
// mask matches the traversal mask.
type ComputeBoundsVisitor struct {
	mask  common.NodeMask
	bound common.BoundingBox
}

// NewComputeBoundsVisitor creates a bounds visitor.
//
// Parameters:
//   - mask: the traversal mask; subgraphs sharing no bit with it are skipped
//
// Returns:
//   - *ComputeBoundsVisitor: the visitor
func NewComputeBoundsVisitor(mask common.NodeMask) *ComputeBoundsVisitor {
	return &ComputeBoundsVisitor{mask: mask, bound: common.NewBoundingBox()}
}

func (v *ComputeBoundsVisitor) Apply(n Node, world mgl32.Mat4) bool {
	if !n.Mask().Has(v.mask) {
		return false
	}
	for _, g := range n.Geometries() {
		v.bound = v.bound.Union(g.Bound().Transform(world))
	}
	return true
}

// Bound returns the accumulated bound. It is invalid if no geometry was visited.
func (v *ComputeBoundsVisitor) Bound() common.BoundingBox {
	return v.bound
}

// DrawItem is one geometry selected for drawing together with its world transform.
type DrawItem struct {
	Node     Node
	Geometry *Geometry
	World    mgl32.Mat4
}

// CullVisitor collects the geometry a pass should draw: subgraphs matching the pass mask and,
// when a frustum is set, geometry whose world bound intersects it.
type CullVisitor struct {
	mask    common.NodeMask
	frustum *common.Frustum
	items   []DrawItem
}

// NewCullVisitor creates a cull visitor.
//
// Parameters:
//   - mask: the pass's cull mask
//   - frustum: the view volume to test against, or nil to keep everything that matches the mask
//
// Returns:
//   - *CullVisitor: the visitor
func NewCullVisitor(mask common.NodeMask, frustum *common.Frustum) *CullVisitor {
	return &CullVisitor{mask: mask, frustum: frustum}
}

func (v *CullVisitor) Apply(n Node, world mgl32.Mat4) bool {
	if !n.Mask().Has(v.mask) {
		return false
	}
	for _, g := range n.Geometries() {
		if v.frustum != nil && !v.frustum.IntersectsBox(g.Bound().Transform(world)) {
			continue
		}
		v.items = append(v.items, DrawItem{Node: n, Geometry: g, World: world})
	}
	return true
}

// Items returns the collected draw list in traversal order.
func (v *CullVisitor) Items() []DrawItem {
	return v.items
}

package scene

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/go-gl/mathgl/mgl32"
)

// node is the implementation of the Node interface.
type node struct {
	mu *sync.RWMutex

	name   string
	mask   common.NodeMask
	matrix mgl32.Mat4

	parent     Node
	children   []Node
	geometries []*Geometry

	// absolute nodes ignore every ancestor transform (HUD and screen-space subgraphs).
	absolute bool
}

// Node is a transform in the scene hierarchy. It carries a local matrix, a render-category
// mask, optional geometry, and child nodes. Passes select the subgraphs they draw by mask.
type Node interface {
	// Name returns the node's debug name.
	Name() string

	// Mask returns the node's render-category mask.
	//
	// Returns:
	//   - common.NodeMask: the mask; traversals skip the whole subgraph when it shares no bit with the traversal mask
	Mask() common.NodeMask

	// SetMask replaces the node's render-category mask.
	//
	// Parameters:
	//   - m: the new mask
	SetMask(m common.NodeMask)

	// Matrix returns the node's local transform.
	Matrix() mgl32.Mat4

	// SetMatrix replaces the node's local transform.
	//
	// Parameters:
	//   - m: the new local transform
	SetMatrix(m mgl32.Mat4)

	// Absolute reports whether the node ignores its ancestors' transforms.
	Absolute() bool

	// SetAbsolute sets whether the node ignores its ancestors' transforms.
	SetAbsolute(absolute bool)

	// Parent returns the node's parent, or nil for a root.
	Parent() Node

	// Children returns a copy of the node's child list.
	Children() []Node

	// AddChild attaches child under this node, detaching it from any previous parent.
	//
	// Parameters:
	//   - child: the node to attach
	AddChild(child Node)

	// RemoveChild detaches child from this node.
	//
	// Parameters:
	//   - child: the node to detach
	//
	// Returns:
	//   - bool: true if child was a child of this node
	RemoveChild(child Node) bool

	// RemoveChildren detaches every child.
	RemoveChildren()

	// AddGeometry attaches drawable geometry to the node.
	//
	// Parameters:
	//   - g: the geometry to attach
	AddGeometry(g *Geometry)

	// Geometries returns a copy of the node's geometry list.
	Geometries() []*Geometry

	// SetGeometries replaces the node's geometry list.
	//
	// Parameters:
	//   - geometries: the new geometry, nil entries are dropped
	SetGeometries(geometries ...*Geometry)

	// WorldMatrix returns the concatenation of every ancestor transform with the local transform,
	// stopping at the first absolute node.
	WorldMatrix() mgl32.Mat4

	// Bound returns the world-space bound of every geometry in the subgraph.
	Bound() common.BoundingBox

	// Accept traverses the subgraph rooted at this node with v.
	//
	// Parameters:
	//   - v: the visitor to apply
	Accept(v Visitor)

	setParent(p Node)
}

var _ Node = &node{}

// NewNode creates a node with an identity transform and a mask selecting every category.
//
// Parameters:
//   - name: the node's debug name
//   - options: functional options for node configuration
//
// Returns:
//   - Node: the new node
func NewNode(name string, options ...NodeBuilderOption) Node {
	n := &node{
		mu:     &sync.RWMutex{},
		name:   name,
		mask:   common.MaskAll,
		matrix: mgl32.Ident4(),
	}

	for _, opt := range options {
		opt(n)
	}

	return n
}

func (n *node) Name() string {
	return n.name
}

func (n *node) Mask() common.NodeMask {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.mask
}

func (n *node) SetMask(m common.NodeMask) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.mask = m
}

func (n *node) Matrix() mgl32.Mat4 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.matrix
}

func (n *node) SetMatrix(m mgl32.Mat4) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.matrix = m
}

func (n *node) Absolute() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.absolute
}

func (n *node) SetAbsolute(absolute bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.absolute = absolute
}

func (n *node) Parent() Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.parent
}

func (n *node) setParent(p Node) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.parent = p
}

func (n *node) Children() []Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Node, len(n.children))
	copy(out, n.children)
	return out
}

func (n *node) AddChild(child Node) {
	if child == nil || child == Node(n) {
		return
	}
	if p := child.Parent(); p != nil {
		p.RemoveChild(child)
	}

	n.mu.Lock()
	n.children = append(n.children, child)
	n.mu.Unlock()

	child.setParent(n)
}

func (n *node) RemoveChild(child Node) bool {
	n.mu.Lock()
	idx := -1
	for i, c := range n.children {
		if c == child {
			idx = i
			break
		}
	}
	if idx < 0 {
		n.mu.Unlock()
		return false
	}
	n.children = append(n.children[:idx], n.children[idx+1:]...)
	n.mu.Unlock()

	child.setParent(nil)
	return true
}

func (n *node) RemoveChildren() {
	n.mu.Lock()
	children := n.children
	n.children = nil
	n.mu.Unlock()

	for _, c := range children {
		c.setParent(nil)
	}
}

func (n *node) AddGeometry(g *Geometry) {
	if g == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.geometries = append(n.geometries, g)
}

func (n *node) SetGeometries(geometries ...*Geometry) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.geometries = n.geometries[:0]
	for _, g := range geometries {
		if g != nil {
			n.geometries = append(n.geometries, g)
		}
	}
}

func (n *node) Geometries() []*Geometry {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*Geometry, len(n.geometries))
	copy(out, n.geometries)
	return out
}

func (n *node) WorldMatrix() mgl32.Mat4 {
	m := n.Matrix()
	if n.Absolute() {
		return m
	}
	if p := n.Parent(); p != nil {
		return p.WorldMatrix().Mul4(m)
	}
	return m
}

func (n *node) Bound() common.BoundingBox {
	v := NewComputeBoundsVisitor(common.MaskAll)
	parentWorld := mgl32.Ident4()
	if p := n.Parent(); p != nil && !n.Absolute() {
		parentWorld = p.WorldMatrix()
	}
	traverse(n, parentWorld, v)
	return v.Bound()
}

func (n *node) Accept(v Visitor) {
	Traverse(n, v)
}

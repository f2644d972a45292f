package scene

import (
	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/go-gl/mathgl/mgl32"
)

// NodeBuilderOption is a functional option for configuring a Node.
// Use the With* functions to create options that are applied directly to the node instance.
type NodeBuilderOption func(*node)

// WithMask sets the node's render-category mask.
//
// Parameters:
//   - m: the mask
//
// Returns:
//   - NodeBuilderOption: option function to apply
func WithMask(m common.NodeMask) NodeBuilderOption {
	return func(n *node) {
		n.mask = m
	}
}

// WithMatrix sets the node's local transform.
//
// Parameters:
//   - m: the local transform
//
// Returns:
//   - NodeBuilderOption: option function to apply
func WithMatrix(m mgl32.Mat4) NodeBuilderOption {
	return func(n *node) {
		n.matrix = m
	}
}

// WithAbsolute makes the node ignore its ancestors' transforms.
//
// Returns:
//   - NodeBuilderOption: option function to apply
func WithAbsolute() NodeBuilderOption {
	return func(n *node) {
		n.absolute = true
	}
}

// WithGeometry attaches geometry to the node.
//
// Parameters:
//   - geometries: the geometry to attach
//
// Returns:
//   - NodeBuilderOption: option function to apply
func WithGeometry(geometries ...*Geometry) NodeBuilderOption {
	return func(n *node) {
		for _, g := range geometries {
			if g != nil {
				n.geometries = append(n.geometries, g)
			}
		}
	}
}

// WithChildren attaches child nodes.
//
// Parameters:
//   - children: the nodes to attach
//
// Returns:
//   - NodeBuilderOption: option function to apply
func WithChildren(children ...Node) NodeBuilderOption {
	return func(n *node) {
		for _, c := range children {
			if c == nil {
				continue
			}
			if p := c.Parent(); p != nil {
				p.RemoveChild(c)
			}
			n.children = append(n.children, c)
			c.setParent(n)
		}
	}
}

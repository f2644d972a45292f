package camera

import (
	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/scene"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/texture"
	"github.com/go-gl/mathgl/mgl32"
)

type CameraBuilderOption func(*cameraImpl)

// WithKind sets the kind of draw the camera performs.
//
// Parameters:
//   - kind: the pass kind
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's pass kind
func WithKind(kind PassKind) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.kind = kind
	}
}

// WithUp sets the camera's up vector.
//
// Parameters:
//   - x, y, z: up vector components
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's up vector
func WithUp(x, y, z float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.up = [3]float32{x, y, z}
	}
}

// WithPerspective sets a [0, 1] depth perspective projection.
//
// Parameters:
//   - fov: vertical field of view in radians
//   - aspect: width / height
//   - near, far: clip plane distances
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's projection
func WithPerspective(fov, aspect, near, far float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.fov, c.aspect, c.near, c.far = fov, aspect, near, far
		c.projKind = projectionPerspective
		c.updateProjection()
	}
}

// WithOrtho2D sets a 2D orthographic projection over the given rectangle, with a depth range of [-1, 1].
//
// Parameters:
//   - left, right, bottom, top: the rectangle shown by the camera
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's projection
func WithOrtho2D(left, right, bottom, top float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.projKind = projectionCustom
		c.projectionMatrix = common.OrthoZO(left, right, bottom, top, -1, 1)
		c.near, c.far = -1, 1
	}
}

// WithProjection sets a custom projection matrix.
//
// Parameters:
//   - m: the projection matrix
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's projection
func WithProjection(m mgl32.Mat4) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.projKind = projectionCustom
		c.projectionMatrix = m
	}
}

// WithView sets the view matrix.
//
// Parameters:
//   - m: the view matrix
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's view
func WithView(m mgl32.Mat4) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.viewMatrix = m
	}
}

// WithClear sets the clear policy.
//
// Parameters:
//   - mask: attachments to clear
//   - color: the color clear value
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's clear policy
func WithClear(mask ClearMask, color mgl32.Vec4) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.clearMask = mask
		c.clearColor = color
	}
}

// WithCullMask sets the node mask selecting the subgraphs the camera draws.
//
// Parameters:
//   - m: the cull mask
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's cull mask
func WithCullMask(m common.NodeMask) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.cullMask = m
	}
}

// WithRenderOrder sets the render phase and index within the phase.
//
// Parameters:
//   - order: the render phase
//   - index: sort key within the phase
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's render order
func WithRenderOrder(order RenderOrder, index int) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.order = order
		c.orderIndex = index
	}
}

// WithReferenceFrame sets whether the camera's transforms are absolute.
//
// Parameters:
//   - rf: the reference frame
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's reference frame
func WithReferenceFrame(rf ReferenceFrame) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.refFrame = rf
	}
}

// WithTargets attaches off-screen targets.
//
// Parameters:
//   - color: the color target, may be nil
//   - depth: the depth target, may be nil
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's targets
func WithTargets(color, depth texture.Texture) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.colorTarget = color
		c.depthTarget = depth
	}
}

// WithReads declares textures the camera samples.
//
// Parameters:
//   - textures: the sampled textures
//
// Returns:
//   - CameraBuilderOption: a function that appends to the camera's read set
func WithReads(textures ...texture.Texture) CameraBuilderOption {
	return func(c *cameraImpl) {
		for _, t := range textures {
			if t != nil {
				c.reads = append(c.reads, t)
			}
		}
	}
}

// WithSubgraph gives the camera its own scene subgraph.
//
// Parameters:
//   - n: the subgraph root
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's subgraph
func WithSubgraph(n scene.Node) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.subgraph = n
	}
}

// WithController attaches a CameraController to the camera.
//
// Parameters:
//   - ctrl: the controller to attach
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's controller
func WithController(ctrl CameraController) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.controller = ctrl
	}
}

package renderer

import (
	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/camera"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
)

// Pass is one camera's work for a frame: the resolved matrices and the culled draw items.
type Pass struct {
	// Camera is the camera that owns the pass.
	Camera camera.Camera

	// View and Projection are the matrices the pass draws with, after composing relative cameras
	// with the main camera.
	View       mgl32.Mat4
	Projection mgl32.Mat4

	// Items are the geometries that survived culling, in traversal order.
	Items []scene.DrawItem
}

// ViewProjection returns Projection * View.
func (p Pass) ViewProjection() mgl32.Mat4 {
	return p.Projection.Mul4(p.View)
}

// GraphicsOperation turns a camera into device work. Culling is separated from drawing so a
// pipeline can cull several passes concurrently and still draw them in order.
type GraphicsOperation interface {
	// Camera returns the camera this operation renders.
	Camera() camera.Camera

	// Cull resolves the pass matrices and collects the visible draw items.
	//
	// Parameters:
	//   - root: the scene root, used when the camera has no subgraph of its own
	//   - main: the main camera that relative cameras compose with, may be nil
	//
	// Returns:
	//   - Pass: the resolved pass
	Cull(root scene.Node, main camera.Camera) Pass

	// Draw submits a culled pass to a device.
	//
	// Parameters:
	//   - dev: the device to draw on
	//   - pass: the pass returned by Cull
	//
	// Returns:
	//   - error: the device error, if any
	Draw(dev Device, pass Pass) error
}

// Factory creates the GraphicsOperation for a camera.
type Factory func(cam camera.Camera) GraphicsOperation

// defaultRenderer is the GraphicsOperation used for any camera without a specialized one.
type defaultRenderer struct {
	cam camera.Camera
}

var _ GraphicsOperation = &defaultRenderer{}

// NewDefaultRenderer returns the standard cull-and-draw operation for a camera. It is a Factory.
//
// Parameters:
//   - cam: the camera to render
//
// Returns:
//   - GraphicsOperation: the operation
func NewDefaultRenderer(cam camera.Camera) GraphicsOperation {
	return &defaultRenderer{cam: cam}
}

func (r *defaultRenderer) Camera() camera.Camera {
	return r.cam
}

func (r *defaultRenderer) Cull(root scene.Node, main camera.Camera) Pass {
	view, proj := ResolveMatrices(r.cam, main)
	pass := Pass{Camera: r.cam, View: view, Projection: proj}

	if r.cam.Kind() == camera.PassFullscreen {
		return pass
	}
	if sub := r.cam.Subgraph(); sub != nil {
		root = sub
	}
	if root == nil {
		return pass
	}

	frustum := common.ExtractFrustumFromMatrix(pass.ViewProjection())
	cv := scene.NewCullVisitor(r.cam.CullMask(), &frustum)
	scene.Traverse(root, cv)
	pass.Items = cv.Items()
	return pass
}

func (r *defaultRenderer) Draw(dev Device, pass Pass) error {
	return dev.ExecutePass(pass)
}

// ResolveMatrices returns the view and projection a camera draws with. Absolute cameras use their
// own matrices. Relative cameras are offsets from the main camera: view = cam.View * main.View and
// projection = cam.Projection * main.Projection.
//
// Parameters:
//   - cam: the pass camera
//   - main: the main camera, may be nil
//
// Returns:
//   - mgl32.Mat4: the view matrix
//   - mgl32.Mat4: the projection matrix
func ResolveMatrices(cam, main camera.Camera) (mgl32.Mat4, mgl32.Mat4) {
	view, proj := cam.ViewMatrix(), cam.ProjectionMatrix()
	if cam.ReferenceFrame() == camera.ReferenceAbsolute || main == nil || main == cam {
		return view, proj
	}
	return view.Mul4(main.ViewMatrix()), proj.Mul4(main.ProjectionMatrix())
}

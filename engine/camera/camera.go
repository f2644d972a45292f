package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/scene"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/texture"
	"github.com/go-gl/mathgl/mgl32"
)

// RenderOrder groups cameras into the pre-render, main, and post-render phases of a frame.
type RenderOrder int

const (
	// PreRender cameras draw before the main scene, usually into textures (shadow maps, G-buffers).
	PreRender RenderOrder = iota

	// NestedRender cameras draw as part of the main scene.
	NestedRender

	// PostRender cameras draw after the main scene (composites, HUDs).
	PostRender
)

// String returns a readable name for the render order.
func (o RenderOrder) String() string {
	switch o {
	case PreRender:
		return "pre"
	case NestedRender:
		return "nested"
	case PostRender:
		return "post"
	default:
		return "unknown"
	}
}

// ReferenceFrame selects whether a camera's view is relative to its parent or absolute.
type ReferenceFrame int

const (
	// ReferenceRelative cameras compose their view with the main view.
	ReferenceRelative ReferenceFrame = iota

	// ReferenceAbsolute cameras use their own view and projection only (HUDs, full-screen passes).
	ReferenceAbsolute
)

// ClearMask selects which attachments a camera clears before drawing.
type ClearMask uint8

const (
	// ClearColor clears the color attachment to the clear color.
	ClearColor ClearMask = 1 << iota

	// ClearDepth clears the depth attachment to 1.
	ClearDepth
)

// PassKind tells the device which kind of draw a camera performs.
type PassKind int

const (
	// PassScene draws culled scene geometry with shading.
	PassScene PassKind = iota

	// PassDepth draws culled scene geometry into a depth target only.
	PassDepth

	// PassFullscreen draws a single full-screen triangle that samples the camera's read textures.
	PassFullscreen
)

type projectionKind int

const (
	projectionCustom projectionKind = iota
	projectionPerspective
)

// cameraImpl is the implementation of the Camera interface.
type cameraImpl struct {
	mu *sync.Mutex

	name string
	kind PassKind

	up [3]float32

	fov    float32
	aspect float32
	near   float32
	far    float32

	projKind projectionKind

	viewMatrix       mgl32.Mat4
	projectionMatrix mgl32.Mat4

	clearMask  ClearMask
	clearColor mgl32.Vec4
	cullMask   common.NodeMask

	order      RenderOrder
	orderIndex int
	refFrame   ReferenceFrame

	colorTarget texture.Texture
	depthTarget texture.Texture
	reads       []texture.Texture

	subgraph scene.Node

	controller CameraController
}

// Camera is one rendering unit of the pipeline: a view and projection, a clear policy, a node-mask
// filter, a render order, and either an off-screen target or the screen.
type Camera interface {
	// Name returns the camera's name, unique within a pipeline.
	Name() string

	// Kind returns the kind of draw the camera performs.
	Kind() PassKind

	// Fov returns the field of view in radians.
	Fov() float32

	// Aspect returns the aspect ratio (width / height).
	Aspect() float32

	// Near returns the near clipping plane distance.
	Near() float32

	// Far returns the far clipping plane distance.
	Far() float32

	// ViewMatrix returns the current view matrix.
	ViewMatrix() mgl32.Mat4

	// ProjectionMatrix returns the current projection matrix.
	ProjectionMatrix() mgl32.Mat4

	// ViewProjectionMatrix returns projection * view.
	ViewProjectionMatrix() mgl32.Mat4

	// Frustum returns the planes of the camera's view volume in world space.
	Frustum() common.Frustum

	// SetViewMatrix replaces the view matrix.
	//
	// Parameters:
	//   - m: the new view matrix
	SetViewMatrix(m mgl32.Mat4)

	// SetProjectionMatrix replaces the projection matrix. Perspective settings no longer apply
	// until SetPerspective is called.
	//
	// Parameters:
	//   - m: the new projection matrix
	SetProjectionMatrix(m mgl32.Mat4)

	// SetPerspective switches the camera to a [0, 1] depth perspective projection.
	//
	// Parameters:
	//   - fov: vertical field of view in radians
	//   - aspect: width / height
	//   - near, far: clip plane distances
	SetPerspective(fov, aspect, near, far float32)

	// SetAspect updates the aspect ratio. Only perspective cameras recompute their projection.
	//
	// Parameters:
	//   - aspect: width / height
	SetAspect(aspect float32)

	// ClearMask returns which attachments are cleared before drawing.
	ClearMask() ClearMask

	// ClearColor returns the color clear value.
	ClearColor() mgl32.Vec4

	// SetClear sets the clear policy.
	//
	// Parameters:
	//   - mask: attachments to clear
	//   - color: the color clear value
	SetClear(mask ClearMask, color mgl32.Vec4)

	// CullMask returns the node mask selecting the subgraphs this camera draws.
	CullMask() common.NodeMask

	// SetCullMask sets the node mask selecting the subgraphs this camera draws.
	//
	// Parameters:
	//   - m: the cull mask
	SetCullMask(m common.NodeMask)

	// RenderOrder returns the render phase and the index within the phase.
	RenderOrder() (RenderOrder, int)

	// SetRenderOrder sets the render phase and index within the phase.
	//
	// Parameters:
	//   - order: the render phase
	//   - index: sort key within the phase, lower draws first
	SetRenderOrder(order RenderOrder, index int)

	// ReferenceFrame returns whether the camera's transforms are absolute.
	ReferenceFrame() ReferenceFrame

	// SetReferenceFrame sets whether the camera's transforms are absolute.
	//
	// Parameters:
	//   - rf: the reference frame
	SetReferenceFrame(rf ReferenceFrame)

	// ColorTarget returns the off-screen color target, or nil when drawing to the screen.
	ColorTarget() texture.Texture

	// DepthTarget returns the off-screen depth target, or nil to use the device's default depth buffer.
	DepthTarget() texture.Texture

	// SetTargets attaches off-screen targets. Pass nil for both to draw on screen.
	//
	// Parameters:
	//   - color: the color target, may be nil for depth-only passes
	//   - depth: the depth target, may be nil
	SetTargets(color, depth texture.Texture)

	// IsOffscreen reports whether the camera draws into a texture rather than to the screen.
	IsOffscreen() bool

	// Writes returns the textures the camera renders into.
	Writes() []texture.Texture

	// Reads returns the textures the camera samples.
	Reads() []texture.Texture

	// AddRead declares that the camera samples a texture written by another pass.
	//
	// Parameters:
	//   - t: the sampled texture
	AddRead(t texture.Texture)

	// Subgraph returns the camera's own scene subgraph, or nil to draw the pipeline's scene.
	Subgraph() scene.Node

	// SetSubgraph gives the camera its own scene subgraph (HUD cameras, debug overlays).
	//
	// Parameters:
	//   - n: the subgraph root
	SetSubgraph(n scene.Node)

	// Controller returns the attached CameraController, or nil.
	Controller() CameraController

	// SetController attaches a CameraController whose pose drives the view matrix in Update.
	//
	// Parameters:
	//   - ctrl: the controller to attach
	SetController(ctrl CameraController)

	// Update reads position and target from the controller and recomputes the view matrix.
	// If no controller is attached, this method does nothing.
	Update()
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new on-screen scene Camera with default perspective settings.
//
// Parameters:
//   - name: the camera's name, unique within a pipeline
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(name string, options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:               &sync.Mutex{},
		name:             name,
		kind:             PassScene,
		up:               [3]float32{0, 1, 0},
		fov:              45.0 * (math.Pi / 180.0), // radians
		aspect:           1.0,
		near:             0.1,
		far:              1000.0,
		projKind:         projectionPerspective,
		viewMatrix:       mgl32.Ident4(),
		clearMask:        ClearColor | ClearDepth,
		clearColor:       mgl32.Vec4{0.2, 0.2, 0.4, 1},
		cullMask:         common.MaskAll,
		order:            NestedRender,
		refFrame:         ReferenceRelative,
		projectionMatrix: mgl32.Ident4(),
	}
	c.updateProjection()

	for _, option := range options {
		option(c)
	}
	if c.controller != nil {
		c.updateView()
	}
	return c
}

// updateProjection recomputes a perspective projection. Caller must hold the mutex or own c exclusively.
func (c *cameraImpl) updateProjection() {
	if c.projKind != projectionPerspective {
		return
	}
	c.projectionMatrix = common.PerspectiveZO(c.fov, c.aspect, c.near, c.far)
}

// updateView recomputes the view matrix from the controller. Caller must hold the mutex or own c exclusively.
func (c *cameraImpl) updateView() {
	if c.controller == nil {
		return
	}
	px, py, pz := c.controller.Position()
	tx, ty, tz := c.controller.Target()
	c.viewMatrix = mgl32.LookAtV(
		mgl32.Vec3{px, py, pz},
		mgl32.Vec3{tx, ty, tz},
		mgl32.Vec3{c.up[0], c.up[1], c.up[2]},
	)
}

func (c *cameraImpl) Name() string {
	return c.name
}

func (c *cameraImpl) Kind() PassKind {
	return c.kind
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) ViewMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) ProjectionMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) ViewProjectionMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix.Mul4(c.viewMatrix)
}

func (c *cameraImpl) Frustum() common.Frustum {
	return common.ExtractFrustumFromMatrix(c.ViewProjectionMatrix())
}

func (c *cameraImpl) SetViewMatrix(m mgl32.Mat4) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewMatrix = m
}

func (c *cameraImpl) SetProjectionMatrix(m mgl32.Mat4) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.projKind = projectionCustom
	c.projectionMatrix = m
}

func (c *cameraImpl) SetPerspective(fov, aspect, near, far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov, c.aspect, c.near, c.far = fov, aspect, near, far
	c.projKind = projectionPerspective
	c.updateProjection()
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if aspect <= 0 {
		return
	}
	c.aspect = aspect
	c.updateProjection()
}

func (c *cameraImpl) ClearMask() ClearMask {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clearMask
}

func (c *cameraImpl) ClearColor() mgl32.Vec4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clearColor
}

func (c *cameraImpl) SetClear(mask ClearMask, color mgl32.Vec4) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearMask = mask
	c.clearColor = color
}

func (c *cameraImpl) CullMask() common.NodeMask {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cullMask
}

func (c *cameraImpl) SetCullMask(m common.NodeMask) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cullMask = m
}

func (c *cameraImpl) RenderOrder() (RenderOrder, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order, c.orderIndex
}

func (c *cameraImpl) SetRenderOrder(order RenderOrder, index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = order
	c.orderIndex = index
}

func (c *cameraImpl) ReferenceFrame() ReferenceFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refFrame
}

func (c *cameraImpl) SetReferenceFrame(rf ReferenceFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refFrame = rf
}

func (c *cameraImpl) ColorTarget() texture.Texture {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.colorTarget
}

func (c *cameraImpl) DepthTarget() texture.Texture {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.depthTarget
}

func (c *cameraImpl) SetTargets(color, depth texture.Texture) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.colorTarget = color
	c.depthTarget = depth
}

func (c *cameraImpl) IsOffscreen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.colorTarget != nil || (c.depthTarget != nil && c.kind == PassDepth)
}

func (c *cameraImpl) Writes() []texture.Texture {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []texture.Texture
	if c.colorTarget != nil {
		out = append(out, c.colorTarget)
	}
	if c.depthTarget != nil {
		out = append(out, c.depthTarget)
	}
	return out
}

func (c *cameraImpl) Reads() []texture.Texture {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]texture.Texture, len(c.reads))
	copy(out, c.reads)
	return out
}

func (c *cameraImpl) AddRead(t texture.Texture) {
	if t == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads = append(c.reads, t)
}

func (c *cameraImpl) Subgraph() scene.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subgraph
}

func (c *cameraImpl) SetSubgraph(n scene.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subgraph = n
}

func (c *cameraImpl) Controller() CameraController {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

func (c *cameraImpl) SetController(ctrl CameraController) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controller = ctrl
	c.updateView()
}

func (c *cameraImpl) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateView()
}

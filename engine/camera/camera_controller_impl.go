package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/input"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/viewpoint"
	"github.com/go-gl/mathgl/mgl32"
)

// orbitPose is the full spherical state of the controller.
type orbitPose struct {
	target    mgl32.Vec3
	radius    float32
	azimuth   float32
	elevation float32
}

// transition animates between two poses over a fixed duration.
type transition struct {
	from     orbitPose
	to       viewpoint.Viewpoint
	duration float64
	elapsed  float64
}

// cameraControllerImpl is the single implementation of CameraController.
// Orbit methods modify spherical coordinates and recompute position; planar methods
// translate both position and target along local camera axes. A viewpoint locks the
// pose to a target and animates toward it until cleared.
type cameraControllerImpl struct {
	mu *sync.Mutex

	// Camera position (computed from target + spherical coords)
	position mgl32.Vec3
	pose     orbitPose
	home     orbitPose

	// Orbit constraints
	minRadius    float32
	maxRadius    float32
	minElevation float32
	maxElevation float32

	// Speed settings
	orbitSpeed       float32
	mouseSensitivity float32
	zoomSpeed        float32
	panSpeed         float32

	// Viewpoint lock and transition
	locked    bool
	active    viewpoint.Viewpoint
	animation *transition

	// Pointer drag state
	dragging   bool
	lastCursor [2]float64
}

// Compile-time interface compliance check
var _ CameraController = &cameraControllerImpl{}

// NewCameraController creates a new camera controller with sensible defaults.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - CameraController: the newly created controller
func NewCameraController(options ...CameraControllerOption) CameraController {
	cc := &cameraControllerImpl{
		mu: &sync.Mutex{},
		pose: orbitPose{
			radius:    250.0,
			elevation: float32(math.Pi / 6),
		},

		minRadius:    0.5,
		maxRadius:    1e6,
		minElevation: float32(-math.Pi/2 + 0.05),
		maxElevation: float32(math.Pi/2 - 0.05),

		orbitSpeed:       0.03,
		mouseSensitivity: 0.005,
		zoomSpeed:        15.0,
		panSpeed:         1.0,
	}

	for _, option := range options {
		option(cc)
	}

	cc.pose.radius = common.Clamp(cc.pose.radius, cc.minRadius, cc.maxRadius)
	cc.pose.elevation = common.Clamp(cc.pose.elevation, cc.minElevation, cc.maxElevation)
	cc.home = cc.pose
	cc.updatePosition()
	return cc
}

// --- internal helpers ---

// updatePosition recomputes the camera position from spherical coordinates.
// Caller must hold the mutex.
func (cc *cameraControllerImpl) updatePosition() {
	cosElev := float32(math.Cos(float64(cc.pose.elevation)))
	sinElev := float32(math.Sin(float64(cc.pose.elevation)))
	cosAzim := float32(math.Cos(float64(cc.pose.azimuth)))
	sinAzim := float32(math.Sin(float64(cc.pose.azimuth)))

	cc.position = cc.pose.target.Add(mgl32.Vec3{
		cc.pose.radius * cosElev * sinAzim,
		cc.pose.radius * sinElev,
		cc.pose.radius * cosElev * cosAzim,
	})
}

// localAxes computes the camera's local right, up, and forward axes consistent with the LookAt matrix.
// If position and target coincide, all returned axes are zero.
// Caller must hold the mutex.
func (cc *cameraControllerImpl) localAxes() (right, up, forward mgl32.Vec3) {
	backward := cc.position.Sub(cc.pose.target)
	if backward.Len() < 1e-8 {
		return
	}
	backward = backward.Normalize()

	right = mgl32.Vec3{0, 1, 0}.Cross(backward)
	if right.Len() < 1e-8 {
		return mgl32.Vec3{}, mgl32.Vec3{}, mgl32.Vec3{}
	}
	right = right.Normalize()
	up = backward.Cross(right)
	forward = backward.Mul(-1)
	return
}

// releaseViewpoint drops any viewpoint lock. Caller must hold the mutex.
func (cc *cameraControllerImpl) releaseViewpoint() {
	cc.locked = false
	cc.animation = nil
	cc.active = viewpoint.Viewpoint{}
}

// poseFor converts a viewpoint into orbit coordinates. Heading maps to azimuth and a negative pitch
// looks down, which is a positive elevation.
func (cc *cameraControllerImpl) poseFor(vp viewpoint.Viewpoint) orbitPose {
	return orbitPose{
		target:    vp.FocalPoint(),
		radius:    common.Clamp(vp.Range(), cc.minRadius, cc.maxRadius),
		azimuth:   mgl32.DegToRad(vp.Heading()),
		elevation: common.Clamp(mgl32.DegToRad(-vp.Pitch()), cc.minElevation, cc.maxElevation),
	}
}

// lerpAngle interpolates along the shortest arc between two angles in radians.
func lerpAngle(a, b, t float32) float32 {
	d := float32(math.Remainder(float64(b-a), 2*math.Pi))
	return a + d*t
}

// smoothstep eases a linear parameter in and out.
func smoothstep(t float64) float32 {
	t = math.Max(0, math.Min(1, t))
	return float32(t * t * (3 - 2*t))
}

// --- CameraController shared methods ---

func (cc *cameraControllerImpl) Position() (x, y, z float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.position[0], cc.position[1], cc.position[2]
}

func (cc *cameraControllerImpl) Target() (x, y, z float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.pose.target[0], cc.pose.target[1], cc.pose.target[2]
}

func (cc *cameraControllerImpl) SetTarget(x, y, z float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.pose.target = mgl32.Vec3{x, y, z}
	cc.updatePosition()
}

func (cc *cameraControllerImpl) Zoom(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.pose.radius = common.Clamp(cc.pose.radius-delta*cc.zoomSpeed, cc.minRadius, cc.maxRadius)
	cc.updatePosition()
}

func (cc *cameraControllerImpl) Home() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.releaseViewpoint()
	cc.pose = cc.home
	cc.updatePosition()
}

// --- viewpoint.Manipulator implementation ---

func (cc *cameraControllerImpl) SetViewpoint(vp viewpoint.Viewpoint, duration float64) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	cc.locked = true
	cc.active = vp
	if duration <= 0 {
		cc.animation = nil
		cc.pose = cc.poseFor(vp)
		cc.updatePosition()
		return
	}
	cc.animation = &transition{from: cc.pose, to: vp, duration: duration}
}

func (cc *cameraControllerImpl) ClearViewpoint() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.releaseViewpoint()
}

func (cc *cameraControllerImpl) Viewpoint() (viewpoint.Viewpoint, bool) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.active, cc.locked
}

func (cc *cameraControllerImpl) Animating() bool {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.animation != nil
}

func (cc *cameraControllerImpl) Update(dt float64) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	if !cc.locked {
		return
	}

	goal := cc.poseFor(cc.active)
	if a := cc.animation; a != nil {
		a.elapsed += dt
		t := smoothstep(a.elapsed / a.duration)
		cc.pose = orbitPose{
			target:    a.from.target.Add(goal.target.Sub(a.from.target).Mul(t)),
			radius:    a.from.radius + (goal.radius-a.from.radius)*t,
			azimuth:   lerpAngle(a.from.azimuth, goal.azimuth, t),
			elevation: a.from.elevation + (goal.elevation-a.from.elevation)*t,
		}
		if a.elapsed >= a.duration {
			cc.animation = nil
			cc.pose = goal
		}
	} else {
		// tethered: follow the target node
		cc.pose.target = goal.target
	}
	cc.updatePosition()
}

// --- input.Handler implementation ---

// Handle drives free navigation: left drag orbits, scroll zooms, W/A/S/D pans, and Space returns home.
// Direct manipulation releases any viewpoint lock.
func (cc *cameraControllerImpl) Handle(ev input.Event) bool {
	switch ev.Type {
	case input.EventPush:
		cc.mu.Lock()
		if ev.Button == common.MouseButtonLeft {
			cc.dragging = true
			cc.lastCursor = [2]float64{ev.X, ev.Y}
		}
		cc.mu.Unlock()
		return false

	case input.EventRelease:
		cc.mu.Lock()
		if ev.Button == common.MouseButtonLeft {
			cc.dragging = false
		}
		cc.mu.Unlock()
		return false

	case input.EventMove:
		cc.mu.Lock()
		defer cc.mu.Unlock()
		if !cc.dragging {
			return false
		}
		dx := float32(ev.X - cc.lastCursor[0])
		dy := float32(ev.Y - cc.lastCursor[1])
		cc.lastCursor = [2]float64{ev.X, ev.Y}
		cc.releaseViewpoint()
		cc.pose.azimuth -= dx * cc.mouseSensitivity
		cc.pose.elevation = common.Clamp(cc.pose.elevation+dy*cc.mouseSensitivity, cc.minElevation, cc.maxElevation)
		cc.updatePosition()
		return true

	case input.EventScroll:
		cc.mu.Lock()
		cc.releaseViewpoint()
		cc.mu.Unlock()
		cc.Zoom(float32(ev.DeltaY))
		return true

	case input.EventKeyDown:
		switch ev.Key {
		case common.KeyW:
			cc.PanForward(1)
		case common.KeyS:
			cc.PanForward(-1)
		case common.KeyA:
			cc.PanRight(-1)
		case common.KeyD:
			cc.PanRight(1)
		case common.KeySpace:
			cc.Home()
		default:
			return false
		}
		return true
	}
	return false
}

// --- orbitCameraController implementation ---

func (cc *cameraControllerImpl) OrbitLeft() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.pose.azimuth -= cc.orbitSpeed
	cc.updatePosition()
}

func (cc *cameraControllerImpl) OrbitRight() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.pose.azimuth += cc.orbitSpeed
	cc.updatePosition()
}

func (cc *cameraControllerImpl) OrbitUp() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.pose.elevation = min(cc.pose.elevation+cc.orbitSpeed, cc.maxElevation)
	cc.updatePosition()
}

func (cc *cameraControllerImpl) OrbitDown() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.pose.elevation = max(cc.pose.elevation-cc.orbitSpeed, cc.minElevation)
	cc.updatePosition()
}

func (cc *cameraControllerImpl) Radius() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.pose.radius
}

func (cc *cameraControllerImpl) SetRadius(radius float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.pose.radius = common.Clamp(radius, cc.minRadius, cc.maxRadius)
	cc.updatePosition()
}

func (cc *cameraControllerImpl) Azimuth() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.pose.azimuth
}

func (cc *cameraControllerImpl) SetAzimuth(azimuth float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.pose.azimuth = azimuth
	cc.updatePosition()
}

func (cc *cameraControllerImpl) Elevation() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.pose.elevation
}

func (cc *cameraControllerImpl) SetElevation(elevation float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.pose.elevation = common.Clamp(elevation, cc.minElevation, cc.maxElevation)
	cc.updatePosition()
}

// --- planarCameraController implementation ---

func (cc *cameraControllerImpl) pan(axis mgl32.Vec3, delta float32) {
	offset := axis.Mul(delta * cc.panSpeed)
	cc.pose.target = cc.pose.target.Add(offset)
	cc.position = cc.position.Add(offset)
}

func (cc *cameraControllerImpl) PanRight(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.releaseViewpoint()
	right, _, _ := cc.localAxes()
	cc.pan(right, delta)
}

func (cc *cameraControllerImpl) PanUp(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.releaseViewpoint()
	_, up, _ := cc.localAxes()
	cc.pan(up, delta)
}

func (cc *cameraControllerImpl) PanForward(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.releaseViewpoint()
	_, _, forward := cc.localAxes()
	cc.pan(forward, delta)
}

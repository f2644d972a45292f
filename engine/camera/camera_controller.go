package camera

import (
	"github.com/Carmen-Shannon/oxy-pipeline/engine/input"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/viewpoint"
)

// CameraController defines the union interface for camera control systems.
// Controllers own positional state (position, target). Camera reads from controller
// and computes view/projection matrices. Embeds the orbit, planar, and viewpoint
// capabilities so a single controller instance serves free navigation and viewpoint
// transitions alike.
type CameraController interface {
	orbitCameraController
	planarCameraController
	viewpoint.Manipulator
	input.Handler

	// Position returns the camera's world-space position.
	//
	// Returns:
	//   - x, y, z: world-space camera position
	Position() (x, y, z float32)

	// Target returns the point the camera looks at.
	//
	// Returns:
	//   - x, y, z: world-space target position
	Target() (x, y, z float32)

	// SetTarget sets the look-at/pivot point and recomputes the position.
	//
	// Parameters:
	//   - x, y, z: world-space target position
	SetTarget(x, y, z float32)

	// Zoom moves the camera toward (positive) or away from (negative) the target.
	//
	// Parameters:
	//   - delta: zoom amount, scaled by the zoom speed
	Zoom(delta float32)

	// Viewpoint returns the viewpoint the camera is locked to.
	//
	// Returns:
	//   - viewpoint.Viewpoint: the active viewpoint
	//   - bool: false when navigating freely
	Viewpoint() (viewpoint.Viewpoint, bool)

	// Animating reports whether a viewpoint transition is in progress.
	Animating() bool

	// Update advances viewpoint transitions and follows tethered targets.
	// Call once per frame before the camera reads the pose.
	//
	// Parameters:
	//   - dt: seconds since the previous update
	Update(dt float64)

	// Home restores the pose the controller was created with and clears any viewpoint.
	Home()
}

// orbitCameraController holds the spherical-coordinate controls around the target.
type orbitCameraController interface {
	// OrbitLeft decreases the azimuth by the orbit speed.
	OrbitLeft()

	// OrbitRight increases the azimuth by the orbit speed.
	OrbitRight()

	// OrbitUp increases the elevation by the orbit speed.
	OrbitUp()

	// OrbitDown decreases the elevation by the orbit speed.
	OrbitDown()

	// Radius returns the distance from the target.
	Radius() float32

	// SetRadius sets the distance from the target, clamped to the radius limits.
	//
	// Parameters:
	//   - radius: distance from the target
	SetRadius(radius float32)

	// Azimuth returns the horizontal angle around the up axis in radians.
	Azimuth() float32

	// SetAzimuth sets the horizontal angle around the up axis in radians.
	//
	// Parameters:
	//   - azimuth: horizontal angle in radians (0 = +Z axis)
	SetAzimuth(azimuth float32)

	// Elevation returns the vertical angle above the horizontal plane in radians.
	Elevation() float32

	// SetElevation sets the vertical angle above the horizontal plane, clamped to the elevation limits.
	//
	// Parameters:
	//   - elevation: vertical angle in radians
	SetElevation(elevation float32)
}

// planarCameraController holds the controls that translate the target and camera together.
type planarCameraController interface {
	// PanRight moves the camera and target along the camera's right axis.
	//
	// Parameters:
	//   - delta: distance, scaled by the pan speed
	PanRight(delta float32)

	// PanUp moves the camera and target along the camera's up axis.
	//
	// Parameters:
	//   - delta: distance, scaled by the pan speed
	PanUp(delta float32)

	// PanForward moves the camera and target along the view direction.
	//
	// Parameters:
	//   - delta: distance, scaled by the pan speed
	PanForward(delta float32)
}

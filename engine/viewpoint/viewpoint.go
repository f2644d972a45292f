// Package viewpoint holds named camera poses and the controller that switches between them on
// digit keys.
package viewpoint

import (
	"github.com/Carmen-Shannon/oxy-pipeline/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
)

// Viewpoint is an immutable camera pose: heading and pitch in degrees and a range (distance)
// relative to a target node or a fixed focal point.
type Viewpoint struct {
	name    string
	heading float32
	pitch   float32
	rng     float32
	target  scene.Node
	focal   mgl32.Vec3
}

// ViewpointBuilderOption is a functional option for configuring a Viewpoint.
type ViewpointBuilderOption func(*Viewpoint)

// New creates a Viewpoint. The result is a value; it cannot be changed after creation.
//
// Parameters:
//   - name: the viewpoint's display name
//   - options: functional options for the pose
//
// Returns:
//   - Viewpoint: the new viewpoint
func New(name string, options ...ViewpointBuilderOption) Viewpoint {
	vp := Viewpoint{name: name, rng: 10}
	for _, opt := range options {
		opt(&vp)
	}
	return vp
}

// WithHeading sets the heading in degrees, measured around the up axis.
func WithHeading(deg float32) ViewpointBuilderOption {
	return func(vp *Viewpoint) {
		vp.heading = deg
	}
}

// WithPitch sets the pitch in degrees. Negative values look down on the target.
func WithPitch(deg float32) ViewpointBuilderOption {
	return func(vp *Viewpoint) {
		vp.pitch = deg
	}
}

// WithRange sets the distance from the focal point.
func WithRange(r float32) ViewpointBuilderOption {
	return func(vp *Viewpoint) {
		vp.rng = r
	}
}

// WithTarget tethers the viewpoint to a node; the focal point follows the node's world bound center.
func WithTarget(n scene.Node) ViewpointBuilderOption {
	return func(vp *Viewpoint) {
		vp.target = n
	}
}

// WithFocalPoint sets a fixed world-space focal point, used when no target node is set.
func WithFocalPoint(p mgl32.Vec3) ViewpointBuilderOption {
	return func(vp *Viewpoint) {
		vp.focal = p
	}
}

// Name returns the viewpoint's display name.
func (vp Viewpoint) Name() string { return vp.name }

// Heading returns the heading in degrees.
func (vp Viewpoint) Heading() float32 { return vp.heading }

// Pitch returns the pitch in degrees.
func (vp Viewpoint) Pitch() float32 { return vp.pitch }

// Range returns the distance from the focal point.
func (vp Viewpoint) Range() float32 { return vp.rng }

// Target returns the tethered node, or nil.
func (vp Viewpoint) Target() scene.Node { return vp.target }

// FocalPoint returns the current world-space point the viewpoint looks at. For tethered
// viewpoints it is the center of the target's world bound, re-evaluated on every call.
func (vp Viewpoint) FocalPoint() mgl32.Vec3 {
	if vp.target != nil {
		if b := vp.target.Bound(); b.Valid() {
			return b.Center()
		}
		return vp.target.WorldMatrix().Col(3).Vec3()
	}
	return vp.focal
}

// Manipulator is the capability a ViewpointController needs from a camera manipulator.
// The controller holds it without owning it.
type Manipulator interface {
	// SetViewpoint animates the camera to vp over duration seconds and keeps it tethered there.
	SetViewpoint(vp Viewpoint, duration float64)

	// ClearViewpoint releases the camera back to free navigation from its current pose.
	ClearViewpoint()
}

package camera

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/input"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/scene"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/texture"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/viewpoint"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vec(x, y, z float32) mgl32.Vec3 { return mgl32.Vec3{x, y, z} }

func TestCameraDefaults(t *testing.T) {
	c := NewCamera("main")
	assert.Equal(t, "main", c.Name())
	assert.Equal(t, PassScene, c.Kind())
	order, idx := c.RenderOrder()
	assert.Equal(t, NestedRender, order)
	assert.Equal(t, 0, idx)
	assert.Equal(t, ClearColor|ClearDepth, c.ClearMask())
	assert.Equal(t, common.MaskAll, c.CullMask())
	assert.False(t, c.IsOffscreen())
	assert.Empty(t, c.Writes())
}

func TestCameraOffscreenTargets(t *testing.T) {
	depth := texture.New(texture.Descriptor{Label: "d", Width: 4, Height: 4, Format: texture.FormatDepth32Float, Usage: texture.UsageRenderAttachment}, nil, nil)
	c := NewCamera("shadow", WithKind(PassDepth), WithTargets(nil, depth), WithRenderOrder(PreRender, 3))

	assert.True(t, c.IsOffscreen())
	require.Len(t, c.Writes(), 1)
	assert.Same(t, depth, c.Writes()[0])

	order, idx := c.RenderOrder()
	assert.Equal(t, PreRender, order)
	assert.Equal(t, 3, idx)
}

func TestCameraReadsIgnoreNil(t *testing.T) {
	c := NewCamera("display")
	c.AddRead(nil)
	assert.Empty(t, c.Reads())
}

func TestPerspectiveDepthRange(t *testing.T) {
	c := NewCamera("main", WithPerspective(mgl32.DegToRad(60), 1, 1, 100))

	near := common.TransformPoint(c.ProjectionMatrix(), vec(0, 0, -1))
	far := common.TransformPoint(c.ProjectionMatrix(), vec(0, 0, -100))
	assert.InDelta(t, 0, near.Z(), 1e-5)
	assert.InDelta(t, 1, far.Z(), 1e-4)

	c.SetAspect(2)
	assert.InDelta(t, 2, c.Aspect(), 1e-6)
}

func TestCustomProjectionIgnoresAspect(t *testing.T) {
	c := NewCamera("hud", WithOrtho2D(0, 1, 0, 1))
	before := c.ProjectionMatrix()
	c.SetAspect(3)
	assert.Equal(t, before, c.ProjectionMatrix())
}

func TestCameraFollowsController(t *testing.T) {
	cc := NewCameraController(WithRadius(10), WithAzimuth(0), WithElevation(0))
	c := NewCamera("main", WithController(cc))

	view := c.ViewMatrix()
	eye := eyeFromView(view)
	assert.InDelta(t, 0, eye.X(), 1e-4)
	assert.InDelta(t, 10, eye.Z(), 1e-4)

	u := NewGPUCameraUniform(c)
	assert.InDelta(t, 10, u.Position[2], 1e-4)
	assert.Len(t, u.Marshal(), 224)
}

func TestControllerClamps(t *testing.T) {
	cc := NewCameraController(WithRadiusBounds(1, 50), WithElevationBounds(-0.5, 0.5))

	cc.SetRadius(1000)
	assert.Equal(t, float32(50), cc.Radius())
	cc.SetElevation(2)
	assert.Equal(t, float32(0.5), cc.Elevation())
	cc.Zoom(1000)
	assert.Equal(t, float32(1), cc.Radius())
}

func TestControllerViewpointInstant(t *testing.T) {
	cc := NewCameraController()
	vp := viewpoint.New("side",
		viewpoint.WithHeading(90),
		viewpoint.WithPitch(0),
		viewpoint.WithRange(20),
		viewpoint.WithFocalPoint(vec(1, 2, 3)),
	)

	cc.SetViewpoint(vp, 0)
	active, locked := cc.Viewpoint()
	require.True(t, locked)
	assert.Equal(t, "side", active.Name())
	assert.False(t, cc.Animating())

	x, y, z := cc.Target()
	assert.Equal(t, vec(1, 2, 3), vec(x, y, z))
	px, py, pz := cc.Position()
	assert.InDelta(t, 21, px, 1e-3)
	assert.InDelta(t, 2, py, 1e-3)
	assert.InDelta(t, 3, pz, 1e-3)
}

func TestControllerViewpointTransition(t *testing.T) {
	cc := NewCameraController(WithRadius(10), WithAzimuth(0), WithElevation(0))
	vp := viewpoint.New("far", viewpoint.WithRange(30), viewpoint.WithPitch(0))

	cc.SetViewpoint(vp, 2)
	require.True(t, cc.Animating())

	cc.Update(1)
	mid := cc.Radius()
	assert.Greater(t, mid, float32(10))
	assert.Less(t, mid, float32(30))

	cc.Update(1.5)
	assert.False(t, cc.Animating())
	assert.InDelta(t, 30, cc.Radius(), 1e-4)
}

func TestControllerTethersToNode(t *testing.T) {
	n := scene.NewNode("target", scene.WithMatrix(mgl32.Translate3D(5, 0, 0)))
	cc := NewCameraController()
	cc.SetViewpoint(viewpoint.New("follow", viewpoint.WithTarget(n)), 0)

	n.SetMatrix(mgl32.Translate3D(7, 0, 0))
	cc.Update(0.016)

	x, _, _ := cc.Target()
	assert.InDelta(t, 7, x, 1e-5)
}

func TestControllerDragReleasesViewpoint(t *testing.T) {
	cc := NewCameraController()
	cc.SetViewpoint(viewpoint.New("a"), 0)
	az := cc.Azimuth()

	assert.False(t, cc.Handle(input.Event{Type: input.EventPush, Button: common.MouseButtonLeft, X: 10, Y: 10}))
	assert.True(t, cc.Handle(input.Event{Type: input.EventMove, X: 30, Y: 10}))
	cc.Handle(input.Event{Type: input.EventRelease, Button: common.MouseButtonLeft})

	_, locked := cc.Viewpoint()
	assert.False(t, locked)
	assert.NotEqual(t, az, cc.Azimuth())

	// moves without a held button do nothing
	assert.False(t, cc.Handle(input.Event{Type: input.EventMove, X: 90, Y: 90}))
}

func TestControllerPanAndHome(t *testing.T) {
	cc := NewCameraController(WithTarget(0, 0, 0), WithRadius(10), WithAzimuth(0), WithElevation(0))

	require.True(t, cc.Handle(input.Event{Type: input.EventKeyDown, Key: common.KeyD}))
	x, _, _ := cc.Target()
	assert.InDelta(t, 1, x, 1e-5)

	cc.Handle(input.Event{Type: input.EventKeyDown, Key: common.KeySpace})
	x, y, z := cc.Target()
	assert.Equal(t, vec(0, 0, 0), vec(x, y, z))
	assert.InDelta(t, 10, cc.Radius(), 1e-6)
}

func TestLerpAngleShortestArc(t *testing.T) {
	got := lerpAngle(mgl32.DegToRad(170), mgl32.DegToRad(-170), 0.5)
	assert.InDelta(t, math.Pi, math.Abs(float64(got)), 1e-4)
}

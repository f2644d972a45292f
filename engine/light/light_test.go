package light

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/shadow"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPipeline() (pipeline.Pipeline, renderer.RecordingDevice) {
	dev := renderer.NewRecordingDevice(64, 64)
	return pipeline.NewPipeline(dev), dev
}

func registerShadow(t *testing.T, p pipeline.Pipeline, name string) shadow.Module {
	t.Helper()
	sm, err := shadow.NewModule(name, shadow.WithResolution(32), shadow.WithCascades(2))
	require.NoError(t, err)
	require.NoError(t, p.RegisterModule(sm))
	return sm
}

func TestNewLight(t *testing.T) {
	l := NewLight(LightTypeSpot,
		WithDirection(mgl32.Vec3{0, 0, -4}),
		WithColor(mgl32.Vec3{4, 4, 3.8}),
		WithSpotCone(0, 90),
	)
	assert.Equal(t, LightTypeSpot, l.Type())
	assert.InDelta(t, 1, l.Direction().Len(), 1e-6)
	assert.Equal(t, mgl32.Vec3{4, 4, 3.8}, l.Color())
	assert.InDelta(t, 1, l.InnerCone(), 1e-6)
	assert.InDelta(t, 0, l.OuterCone(), 1e-6)
	assert.True(t, l.Enabled())

	l.SetDirection(mgl32.Vec3{})
	assert.Equal(t, mgl32.Vec3{}, l.Direction())
	assert.Equal(t, "spot", l.Type().String())
}

func TestSetMainLightWithoutShadowModule(t *testing.T) {
	p, _ := newPipeline()
	m := NewModule("Light")
	require.NoError(t, p.RegisterModule(m))

	l := NewLight(LightTypeDirectional)
	require.NoError(t, m.SetMainLight(l, "Shadow"))
	assert.Equal(t, l, m.MainLight())
	assert.Nil(t, m.ShadowModule())
	assert.False(t, m.ShadingParams().HasShadow)
}

func TestSetMainLightBindsShadowModule(t *testing.T) {
	p, _ := newPipeline()
	sm := registerShadow(t, p, "Shadow")
	m := NewModule("Light")
	require.NoError(t, p.RegisterModule(m))

	l := NewLight(LightTypeDirectional, WithDirection(mgl32.Vec3{0.02, 0.1, -1}))
	require.NoError(t, m.SetMainLight(l, "Shadow"))
	assert.Equal(t, sm, m.ShadowModule())
	assert.Equal(t, shadow.LightSource(l), sm.LightSource())
}

func TestPendingBindingResolvesOnTick(t *testing.T) {
	p, _ := newPipeline()
	m := NewModule("Light")
	require.NoError(t, p.RegisterModule(m))

	l := NewLight(LightTypeDirectional)
	require.NoError(t, m.SetMainLight(l, "Shadow"))
	require.Nil(t, m.ShadowModule())

	sm := registerShadow(t, p, "Shadow")
	require.NoError(t, p.PerFrameTick(pipeline.FrameInfo{Number: 1}))
	assert.Equal(t, sm, m.ShadowModule())
	assert.Equal(t, shadow.LightSource(l), sm.LightSource())
}

func TestSetMainLightKindMismatch(t *testing.T) {
	p, _ := newPipeline()
	require.NoError(t, p.RegisterModule(NewModule("Shadow")))
	m := NewModule("Light")
	require.NoError(t, p.RegisterModule(m))

	l := NewLight(LightTypeDirectional)
	err := m.SetMainLight(l, "Shadow")
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrModuleKindMismatch)
	var mismatch *pipeline.KindMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, Kind, mismatch.Got)

	assert.Equal(t, l, m.MainLight())
	assert.Nil(t, m.ShadowModule())

	// the mismatched name is not retried
	assert.NoError(t, m.PerFrameUpdate(pipeline.FrameInfo{Number: 1}))
}

func TestRebindingDetachesPreviousShadowModule(t *testing.T) {
	p, _ := newPipeline()
	first := registerShadow(t, p, "ShadowA")
	second := registerShadow(t, p, "ShadowB")
	m := NewModule("Light")
	require.NoError(t, p.RegisterModule(m))

	l1 := NewLight(LightTypeDirectional)
	l2 := NewLight(LightTypeSpot)
	require.NoError(t, m.SetMainLight(l1, "ShadowA"))
	require.NoError(t, m.SetMainLight(l2, "ShadowB"))

	assert.Nil(t, first.LightSource())
	assert.Equal(t, shadow.LightSource(l2), second.LightSource())
	assert.Equal(t, second, m.ShadowModule())

	require.NoError(t, m.SetMainLight(nil, ""))
	assert.Nil(t, second.LightSource())
	assert.Nil(t, m.MainLight())
}

func TestUnregisteredShadowModuleUnbinds(t *testing.T) {
	p, dev := newPipeline()
	sm := registerShadow(t, p, "Shadow")
	sm.AddReferenceBound(common.BoundingBoxFromPoints(mgl32.Vec3{-5, 0, -5}, mgl32.Vec3{5, 2, 5}), true)
	m := NewModule("Light")
	require.NoError(t, p.RegisterModule(m))

	l := NewLight(LightTypeDirectional, WithDirection(mgl32.Vec3{0.02, 0.1, -1}))
	require.NoError(t, m.SetMainLight(l, "Shadow"))
	require.NoError(t, p.PerFrameTick(pipeline.FrameInfo{Number: 1}))
	require.True(t, m.ShadingParams().HasShadow)
	require.Len(t, p.Passes(), 2)

	require.True(t, p.UnregisterModule("Shadow"))
	assert.Empty(t, p.Passes())
	assert.False(t, m.ShadingParams().HasShadow)
	assert.Nil(t, m.ShadowModule())
	assert.Nil(t, sm.LightSource())

	require.NoError(t, p.PerFrameTick(pipeline.FrameInfo{Number: 2}))
	g := dev.Globals()
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(g.Light[72:]))
	assert.Empty(t, g.Shadows)
	assert.Empty(t, g.ShadowMaps)

	// the name is still pending, so a new module under it binds on the next tick
	again := registerShadow(t, p, "Shadow")
	require.NoError(t, p.PerFrameTick(pipeline.FrameInfo{Number: 3}))
	assert.Equal(t, again, m.ShadowModule())
	assert.Equal(t, shadow.LightSource(l), again.LightSource())
}

func TestPerFrameUpdateWritesSceneGlobals(t *testing.T) {
	p, dev := newPipeline()
	sm := registerShadow(t, p, "Shadow")
	m := NewModule("Light", WithAmbient(mgl32.Vec3{0.1, 0.2, 0.3}))
	require.NoError(t, p.RegisterModule(m))

	main := NewLight(LightTypeDirectional, WithDirection(mgl32.Vec3{0, -1, 0.2}), WithColor(mgl32.Vec3{4, 4, 3.8}))
	require.NoError(t, m.SetMainLight(main, "Shadow"))
	m.Light(NewLight(LightTypePoint, WithPosition(mgl32.Vec3{1, 2, 3})))
	m.Light(NewLight(LightTypePoint, WithEnabled(false)))

	// no bound yet, so the cascades are not fitted and the light is unshadowed
	require.NoError(t, p.PerFrameTick(pipeline.FrameInfo{Number: 1}))
	g := dev.Globals()
	require.Len(t, g.Light, 80)
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(g.Light[72:]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(g.Light[76:]))
	assert.Len(t, g.ExtraLights, 80)
	assert.Empty(t, g.Shadows)

	sm.AddReferenceBound(common.BoundingBoxFromPoints(mgl32.Vec3{-5, 0, -5}, mgl32.Vec3{5, 2, 5}), true)
	require.NoError(t, p.PerFrameTick(pipeline.FrameInfo{Number: 2}))
	g = dev.Globals()
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(g.Light[72:]))
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(g.Light[60:]))
	assert.Len(t, g.Shadows, 2*80)
	assert.Len(t, g.ShadowMaps, 2)
	assert.Equal(t, float32(0.3), math.Float32frombits(binary.LittleEndian.Uint32(g.Light[56:])))

	sp := m.ShadingParams()
	assert.True(t, sp.HasShadow)
	assert.Equal(t, 2, sp.CascadeCount)
	assert.Equal(t, main.Direction(), sp.Direction)
}

func TestShadingParamsReadLive(t *testing.T) {
	p, _ := newPipeline()
	m := NewModule("Light")
	require.NoError(t, p.RegisterModule(m))
	l := NewLight(LightTypeDirectional, WithIntensity(2))
	require.NoError(t, m.SetMainLight(l, ""))

	assert.Equal(t, float32(2), m.ShadingParams().Intensity)
	l.SetIntensity(5)
	l.SetColor(mgl32.Vec3{1, 0, 0})
	assert.Equal(t, float32(5), m.ShadingParams().Intensity)
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, m.ShadingParams().Color)

	l.SetEnabled(false)
	assert.Equal(t, float32(0), m.ShadingParams().Intensity)
}

func TestExtraLights(t *testing.T) {
	m := NewModule("Light")
	a := NewLight(LightTypePoint)
	b := NewLight(LightTypeSpot)
	m.Light(a)
	m.Light(b)
	m.Light(nil)
	assert.Equal(t, []Light{a, b}, m.Lights())
	assert.True(t, m.RemoveLight(a))
	assert.False(t, m.RemoveLight(a))
	assert.Equal(t, []Light{b}, m.Lights())
}

func TestExtraLightsAreCapped(t *testing.T) {
	p, dev := newPipeline()
	m := NewModule("Light")
	require.NoError(t, p.RegisterModule(m))
	for range MaxExtraLights + 5 {
		m.Light(NewLight(LightTypePoint))
	}
	require.NoError(t, m.PerFrameUpdate(pipeline.FrameInfo{Number: 1}))
	g := dev.Globals()
	assert.Len(t, g.ExtraLights, MaxExtraLights*80)
	assert.Equal(t, uint32(MaxExtraLights), binary.LittleEndian.Uint32(g.Light[76:]))
}

func TestGPULightUniformMarshal(t *testing.T) {
	u := NewGPULightUniform(NewLight(LightTypeSpot,
		WithPosition(mgl32.Vec3{1, 2, 3}),
		WithDirection(mgl32.Vec3{0, 0, -1}),
		WithRange(7),
	))
	u.HasShadow = 1
	u.ExtraCount = 3
	assert.Equal(t, 80, u.Size())

	buf := u.Marshal()
	require.Len(t, buf, 80)
	f := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])) }
	assert.Equal(t, float32(2), f(4))
	assert.Equal(t, uint32(LightTypeSpot), binary.LittleEndian.Uint32(buf[12:]))
	assert.Equal(t, float32(-1), f(40))
	assert.Equal(t, float32(7), f(44))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(buf[72:]))
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(buf[76:]))
}

func TestFrom(t *testing.T) {
	p, _ := newPipeline()
	require.NoError(t, p.RegisterModule(NewModule("Light")))
	m, err := From(p, "Light")
	require.NoError(t, err)
	assert.Equal(t, "Light", m.Name())

	registerShadow(t, p, "Shadow")
	_, err = From(p, "Shadow")
	assert.ErrorIs(t, err, pipeline.ErrModuleKindMismatch)
}

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/config"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/input"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/light"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/setup"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/viewpoint"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var shaderDir = filepath.Join("..", "..", "shaders")

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { common.SetLogger(nil) })
	var out, errOut bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func headlessOptions(frames uint64) *options {
	cfg := config.Default()
	cfg.ShaderDir = shaderDir
	cfg.Shadow.Cascades = 2
	cfg.Shadow.Resolution = 256
	return &options{headless: true, frames: frames, cfg: cfg}
}

func TestShadowCommandHeadless(t *testing.T) {
	_, err := execute(t, "shadow", "--headless", "--frames", "3", "--shaders", shaderDir, "--log-level", "error")
	assert.NoError(t, err)
}

func TestViewpointsCommandHeadlessCullParallel(t *testing.T) {
	_, err := execute(t, "viewpoints", "--headless", "--frames", "2", "--shaders", shaderDir, "--threading", "cull-parallel")
	assert.NoError(t, err)
}

func TestMissingShaderDirFails(t *testing.T) {
	_, err := execute(t, "shadow", "--headless", "--frames", "1", "--shaders", filepath.Join(t.TempDir(), "none"))
	assert.ErrorIs(t, err, setup.ErrShaderDir)
}

func TestMissingModelFails(t *testing.T) {
	_, err := execute(t, "shadow", "--headless", "--shaders", shaderDir, filepath.Join(t.TempDir(), "none.glb"))
	assert.Error(t, err)
}

func TestInvalidFlags(t *testing.T) {
	_, err := execute(t, "shadow", "--headless", "--threading", "pipelined")
	assert.ErrorContains(t, err, "threading model")

	_, err = execute(t, "shadow", "--headless", "--log-level", "loud")
	assert.ErrorContains(t, err, "log level")
}

func TestConfigCommandPrintsToml(t *testing.T) {
	out, err := execute(t, "config", "--threading", "cull-parallel")
	require.NoError(t, err)
	assert.Contains(t, out, `threading = 'cull-parallel'`)
	assert.Contains(t, out, "[shadow]")
}

func TestShadowSession(t *testing.T) {
	o := headlessOptions(200)
	s, err := o.shadowSession("")
	require.NoError(t, err)

	assert.NotNil(t, s.std.Light.ShadowModule())
	assert.True(t, s.std.Shadow.ReferenceBound().Valid())
	assert.NotNil(t, s.pipeline.Module(setup.ShadowModuleName))

	var hud bool
	for _, cam := range s.pipeline.Passes() {
		if cam.Name() == "HUD" {
			hud = true
			require.NotNil(t, cam.Subgraph())
			assert.Len(t, cam.Subgraph().Geometries(), 2)
		}
	}
	assert.True(t, hud)

	lm, err := light.From(s.pipeline, setup.LightModuleName)
	require.NoError(t, err)
	start := lm.MainLight().Direction()
	require.NoError(t, s.run(context.Background()))
	assert.NotEqual(t, start, lm.MainLight().Direction())
	assert.True(t, lm.ShadingParams().HasShadow)

	dev := s.viewer.Device().(renderer.RecordingDevice)
	assert.Equal(t, 200, dev.Frames())
	assert.NotEmpty(t, dev.Globals().Shadows)
}

func TestLightSweepStaysInRange(t *testing.T) {
	l := light.NewLight(light.Directional)
	sweep := newLightSweep(l, mgl32.Vec3{0.79, 0.1, -1})

	var turned bool
	prev := float32(0.79)
	for range 100 {
		sweep(pipeline.FrameInfo{})
		d := l.Direction()
		x := d.X() / -d.Z()
		assert.LessOrEqual(t, x, sweepLimit+1e-4)
		if x < prev {
			turned = true
		}
		prev = x
	}
	assert.True(t, turned)
}

func TestViewpointsSession(t *testing.T) {
	o := headlessOptions(5)
	s, ctrl, err := o.viewpointsSession("")
	require.NoError(t, err)
	defer s.viewer.Close()

	// the whole model plus its ground and eight boxes
	require.Len(t, ctrl.Viewpoints(), 10)
	assert.Equal(t, float32(-45), ctrl.Viewpoints()[0].Heading())

	s.viewer.PushEvent(input.Event{Type: input.EventKeyUp, Key: common.Key2})
	require.NoError(t, s.viewer.Frame())
	state, idx := ctrl.State()
	assert.Equal(t, viewpoint.StateLocked, state)
	assert.Equal(t, 1, idx)

	s.viewer.PushEvent(input.Event{Type: input.EventKeyUp, Key: common.Key9})
	require.NoError(t, s.viewer.Frame())
	state, idx = ctrl.State()
	assert.Equal(t, viewpoint.StateLocked, state)
	assert.Equal(t, 8, idx)

	s.viewer.PushEvent(input.Event{Type: input.EventKeyDown, Key: 'W'})
	require.NoError(t, s.viewer.Frame())
	state, _ = ctrl.State()
	assert.Equal(t, viewpoint.StateFree, state)
}

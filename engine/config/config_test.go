package config

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/light"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/shadow"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, pipeline.SingleThreaded, cfg.ThreadingModel())
	assert.Equal(t, common.DefaultMaskConfig(), cfg.Masks)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oxyview.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
frame_limit = 30

[pipeline]
threading = "cull-parallel"
cull_workers = 4

[shadow]
cascades = 4
scheme = "uniform"
lambda = 0.5

[light]
color = [1.0, 0.5, 0.25]
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.FrameLimit)
	assert.Equal(t, pipeline.CullParallel, cfg.ThreadingModel())
	assert.Equal(t, 4, cfg.Pipeline.CullWorkers)
	assert.Equal(t, 4, cfg.Shadow.Cascades)
	assert.Equal(t, "uniform", cfg.Shadow.Scheme)
	assert.InDelta(t, 0.5, cfg.Shadow.Lambda, 1e-6)
	assert.Equal(t, [3]float32{1, 0.5, 0.25}, cfg.Light.Color)

	def := Default()
	assert.Equal(t, def.Window, cfg.Window)
	assert.Equal(t, def.Shadow.Resolution, cfg.Shadow.Resolution)
	assert.Equal(t, def.Light.Direction, cfg.Light.Direction)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	_, err := Decode(strings.NewReader("[shadow]\ncascade = 3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cascade")
}

func TestDecodeRejectsMalformedToml(t *testing.T) {
	_, err := Decode(strings.NewReader("[shadow\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero cascades", func(c *Config) { c.Shadow.Cascades = 0 }, "cascade count"},
		{"nine cascades", func(c *Config) { c.Shadow.Cascades = 9 }, "cascade count"},
		{"zero mask", func(c *Config) { c.Masks.ShadowCaster = 0 }, "shadow_caster must not be zero"},
		{"overlapping masks", func(c *Config) { c.Masks.ForwardScene = c.Masks.DeferredScene }, "overlap"},
		{"bad threading", func(c *Config) { c.Pipeline.Threading = "pipelined" }, "threading model"},
		{"bad scheme", func(c *Config) { c.Shadow.Scheme = "log" }, "split scheme"},
		{"bad lambda", func(c *Config) { c.Shadow.Lambda = 1.5 }, "lambda"},
		{"zero direction", func(c *Config) { c.Light.Direction = [3]float32{} }, "direction"},
		{"window size", func(c *Config) { c.Window.Width = 0 }, "window size"},
		{"frame limit", func(c *Config) { c.FrameLimit = -1 }, "frame_limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateCascadeCountIsTyped(t *testing.T) {
	cfg := Default()
	cfg.Shadow.Cascades = 9
	assert.ErrorIs(t, cfg.Validate(), shadow.ErrCascadeCount)
}

func TestEncodeDecodesBack(t *testing.T) {
	cfg := Default()
	cfg.Skybox = "sky.png"
	var buf bytes.Buffer
	require.NoError(t, cfg.Encode(&buf))
	assert.Contains(t, buf.String(), "[shadow]")

	back, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}

func TestOptionsConfigureComponents(t *testing.T) {
	cfg := Default()
	cfg.Shadow.Cascades = 2
	cfg.Shadow.Resolution = 512
	cfg.Pipeline.Threading = "cull-parallel"

	p := pipeline.NewPipeline(renderer.NewRecordingDevice(64, 64), cfg.PipelineOptions()...)
	assert.Equal(t, pipeline.CullParallel, p.ThreadingModel())
	assert.Equal(t, cfg.Masks, p.Masks())

	sm, err := shadow.NewModule("Shadow", cfg.ShadowOptions()...)
	require.NoError(t, err)
	require.NoError(t, p.RegisterModule(sm))
	assert.Equal(t, 2, sm.ShadowNumber())
	assert.Equal(t, 512, sm.Resolution())
	assert.NotNil(t, sm.FrustumGeode())

	l := cfg.MainLight()
	assert.Equal(t, light.Directional, l.Type())
	assert.Equal(t, mgl32.Vec3{4, 4, 3.8}, l.Color())
	assert.InDelta(t, 1.0, l.Direction().Len(), 1e-5)
}

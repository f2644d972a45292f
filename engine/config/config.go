// Package config loads the viewer's TOML configuration and turns it into constructor options.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/light"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/shadow"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/window"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pelletier/go-toml/v2"
)

// Config is the complete viewer configuration.
type Config struct {
	Window   WindowConfig      `toml:"window"`
	Pipeline PipelineConfig    `toml:"pipeline"`
	Shadow   ShadowConfig      `toml:"shadow"`
	Masks    common.MaskConfig `toml:"masks"`
	Light    LightConfig       `toml:"light"`

	// ShaderDir is the directory holding the WGSL shaders.
	ShaderDir string `toml:"shader_dir"`

	// Skybox is an optional PNG, JPEG, BMP or WebP image drawn behind the scene.
	Skybox string `toml:"skybox,omitempty"`

	// FrameLimit caps the frame rate, 0 for uncapped.
	FrameLimit int `toml:"frame_limit"`
}

// WindowConfig configures the native window.
type WindowConfig struct {
	Title     string `toml:"title"`
	Width     int    `toml:"width"`
	Height    int    `toml:"height"`
	Resizable bool   `toml:"resizable"`
}

// PipelineConfig configures pass scheduling.
type PipelineConfig struct {
	// Threading is "single-threaded" or "cull-parallel".
	Threading string `toml:"threading"`

	// CullWorkers bounds the cull pool of the cull-parallel model, 0 for the default.
	CullWorkers int `toml:"cull_workers"`
}

// ShadowConfig configures the cascaded shadow module.
type ShadowConfig struct {
	Cascades   int     `toml:"cascades"`
	Resolution int     `toml:"resolution"`
	Scheme     string  `toml:"scheme"`
	Lambda     float32 `toml:"lambda"`
	Tight      bool    `toml:"tight"`
	Padding    float32 `toml:"padding"`
	Debug      bool    `toml:"debug"`
}

// LightConfig configures the main directional light.
type LightConfig struct {
	Color     [3]float32 `toml:"color"`
	Direction [3]float32 `toml:"direction"`
	Intensity float32    `toml:"intensity"`
	Ambient   [3]float32 `toml:"ambient"`
}

// Default returns the configuration the viewer runs with when no file is given.
func Default() Config {
	return Config{
		Window: WindowConfig{
			Title:     "oxyview",
			Width:     1280,
			Height:    720,
			Resizable: true,
		},
		Pipeline: PipelineConfig{
			Threading: pipeline.SingleThreaded.String(),
		},
		Shadow: ShadowConfig{
			Cascades:   3,
			Resolution: shadow.DefaultResolution,
			Scheme:     shadow.SplitPractical.String(),
			Lambda:     shadow.DefaultSplitLambda,
			Tight:      true,
			Padding:    shadow.DefaultPadding,
			Debug:      true,
		},
		Masks: common.DefaultMaskConfig(),
		Light: LightConfig{
			Color:     [3]float32{4, 4, 3.8},
			Direction: [3]float32{0.02, 0.1, -1},
			Intensity: 1,
			Ambient:   [3]float32(light.DefaultAmbient),
		},
		ShaderDir:  "shaders",
		FrameLimit: 60,
	}
}

// Load reads a TOML file over the defaults. Keys absent from the file keep their default values;
// unknown keys are an error.
//
// Parameters:
//   - path: the TOML file
//
// Returns:
//   - Config: the loaded and validated configuration
//   - error: a wrapped fs.ErrNotExist, a decode error or a validation error
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg, err := Decode(bytes.NewReader(data))
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode reads TOML from r over the defaults and validates the result.
//
// Parameters:
//   - r: the TOML source
//
// Returns:
//   - Config: the decoded configuration
//   - error: a decode or validation error
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("unknown keys:\n%s", strict.String())
		}
		return Config{}, fmt.Errorf("failed to decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Encode writes the configuration as TOML.
//
// Parameters:
//   - w: the destination
//
// Returns:
//   - error: a write error
func (c Config) Encode(w io.Writer) error {
	enc := toml.NewEncoder(w)
	enc.SetIndentTables(true)
	return enc.Encode(c)
}

// Validate reports every invalid value, joined.
//
// Returns:
//   - error: nil when the configuration is usable
func (c Config) Validate() error {
	var errs []error
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fmt.Errorf("window size %dx%d must be positive", c.Window.Width, c.Window.Height))
	}
	if _, err := pipeline.ParseThreadingModel(c.Pipeline.Threading); err != nil {
		errs = append(errs, err)
	}
	if c.Pipeline.CullWorkers < 0 {
		errs = append(errs, fmt.Errorf("cull_workers %d must not be negative", c.Pipeline.CullWorkers))
	}
	if c.Shadow.Cascades < 1 || c.Shadow.Cascades > shadow.MaxCascades {
		errs = append(errs, fmt.Errorf("%w: got %d", shadow.ErrCascadeCount, c.Shadow.Cascades))
	}
	if c.Shadow.Resolution <= 0 {
		errs = append(errs, fmt.Errorf("shadow resolution %d must be positive", c.Shadow.Resolution))
	}
	if _, ok := shadow.ParseSplitScheme(c.Shadow.Scheme); !ok {
		errs = append(errs, fmt.Errorf("unknown split scheme %q", c.Shadow.Scheme))
	}
	if c.Shadow.Lambda < 0 || c.Shadow.Lambda > 1 {
		errs = append(errs, fmt.Errorf("split lambda %v must be within [0, 1]", c.Shadow.Lambda))
	}
	if err := c.Masks.Validate(); err != nil {
		errs = append(errs, err)
	}
	if mgl32.Vec3(c.Light.Direction).Len() == 0 {
		errs = append(errs, errors.New("light direction must not be zero"))
	}
	if c.FrameLimit < 0 {
		errs = append(errs, fmt.Errorf("frame_limit %d must not be negative", c.FrameLimit))
	}
	return errors.Join(errs...)
}

// ThreadingModel returns the configured threading model.
func (c Config) ThreadingModel() pipeline.ThreadingModel {
	m, _ := pipeline.ParseThreadingModel(c.Pipeline.Threading)
	return m
}

// PipelineOptions returns the pipeline constructor options the configuration selects.
func (c Config) PipelineOptions() []pipeline.PipelineBuilderOption {
	opts := []pipeline.PipelineBuilderOption{
		pipeline.WithThreadingModel(c.ThreadingModel()),
		pipeline.WithMasks(c.Masks),
	}
	if c.Pipeline.CullWorkers > 0 {
		opts = append(opts, pipeline.WithCullWorkers(c.Pipeline.CullWorkers))
	}
	return opts
}

// ShadowOptions returns the shadow module options the configuration selects.
func (c Config) ShadowOptions() []shadow.ModuleBuilderOption {
	scheme, _ := shadow.ParseSplitScheme(c.Shadow.Scheme)
	return []shadow.ModuleBuilderOption{
		shadow.WithCascades(c.Shadow.Cascades),
		shadow.WithResolution(c.Shadow.Resolution),
		shadow.WithSplitScheme(scheme, c.Shadow.Lambda),
		shadow.WithPadding(c.Shadow.Padding),
		shadow.WithCasterMask(c.Masks.ShadowCaster),
		shadow.WithDebugFrustum(c.Shadow.Debug),
	}
}

// LightOptions returns the light module options the configuration selects.
func (c Config) LightOptions() []light.ModuleBuilderOption {
	return []light.ModuleBuilderOption{light.WithAmbient(mgl32.Vec3(c.Light.Ambient))}
}

// MainLight creates the configured main directional light.
func (c Config) MainLight() light.Light {
	return light.NewLight(light.Directional,
		light.WithColor(mgl32.Vec3(c.Light.Color)),
		light.WithDirection(mgl32.Vec3(c.Light.Direction)),
		light.WithIntensity(c.Light.Intensity),
	)
}

// WindowOptions returns the window options the configuration selects.
func (c Config) WindowOptions() []window.WindowBuilderOption {
	return []window.WindowBuilderOption{
		window.WithTitle(c.Window.Title),
		window.WithWidth(c.Window.Width),
		window.WithHeight(c.Window.Height),
		window.WithResizable(c.Window.Resizable),
	}
}

package setup

import (
	"github.com/Carmen-Shannon/oxy-pipeline/engine/light"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/shadow"
	"github.com/go-gl/mathgl/mgl32"
)

// SetupBuilderOption is a functional option for SetupStandardPipeline.
type SetupBuilderOption func(*options)

// WithSkybox adds a sky pass drawing a PNG, JPEG, BMP or WebP image behind the scene. Other
// formats, such as Radiance HDR, are skipped with a warning.
//
// Parameters:
//   - path: the image file
//
// Returns:
//   - SetupBuilderOption: option function to apply
func WithSkybox(path string) SetupBuilderOption {
	return func(o *options) {
		o.skybox = path
	}
}

// WithClearColor sets the color the scene and display passes clear to.
//
// Parameters:
//   - c: the clear color
//
// Returns:
//   - SetupBuilderOption: option function to apply
func WithClearColor(c mgl32.Vec4) SetupBuilderOption {
	return func(o *options) {
		o.clearColor = c
	}
}

// WithShadowOptions forwards options to the shadow module.
//
// Parameters:
//   - opts: the shadow module options
//
// Returns:
//   - SetupBuilderOption: option function to apply
func WithShadowOptions(opts ...shadow.ModuleBuilderOption) SetupBuilderOption {
	return func(o *options) {
		o.shadowOpts = append(o.shadowOpts, opts...)
	}
}

// WithLightOptions forwards options to the light module.
//
// Parameters:
//   - opts: the light module options
//
// Returns:
//   - SetupBuilderOption: option function to apply
func WithLightOptions(opts ...light.ModuleBuilderOption) SetupBuilderOption {
	return func(o *options) {
		o.lightOpts = append(o.lightOpts, opts...)
	}
}

package shadow

import "github.com/Carmen-Shannon/oxy-pipeline/common"

// ModuleBuilderOption is a functional option applied to the shadow module during construction.
type ModuleBuilderOption func(*module)

// WithCascades sets the number of cascades. NewModule fails unless 1 <= n <= MaxCascades.
//
// Parameters:
//   - n: the cascade count
//
// Returns:
//   - ModuleBuilderOption: a function that applies the cascade count
func WithCascades(n int) ModuleBuilderOption {
	return func(m *module) {
		m.cascadeCount = n
	}
}

// WithResolution sets the width and height of each cascade's depth texture.
//
// Parameters:
//   - resolution: the texture size in texels
//
// Returns:
//   - ModuleBuilderOption: a function that applies the resolution
func WithResolution(resolution int) ModuleBuilderOption {
	return func(m *module) {
		m.resolution = resolution
	}
}

// WithSplitScheme sets how the depth range is divided between cascades.
//
// Parameters:
//   - scheme: the split scheme
//   - lambda: the geometric weight of SplitPractical, ignored by the other schemes
//
// Returns:
//   - ModuleBuilderOption: a function that applies the split scheme
func WithSplitScheme(scheme SplitScheme, lambda float32) ModuleBuilderOption {
	return func(m *module) {
		m.scheme = scheme
		m.lambda = common.Clamp(lambda, 0, 1)
	}
}

// WithPadding sets the fraction of a non-tight reference bound's radius added on every side.
//
// Parameters:
//   - fraction: the padding fraction
//
// Returns:
//   - ModuleBuilderOption: a function that applies the padding
func WithPadding(fraction float32) ModuleBuilderOption {
	return func(m *module) {
		m.padding = max(fraction, 0)
	}
}

// WithMinExtent sets the smallest extent a cascade may have on any axis.
//
// Parameters:
//   - extent: the minimum extent in world units
//
// Returns:
//   - ModuleBuilderOption: a function that applies the minimum extent
func WithMinExtent(extent float32) ModuleBuilderOption {
	return func(m *module) {
		m.minExtent = extent
	}
}

// WithCasterMask sets the node mask the cascade cameras draw. Defaults to the pipeline's
// ShadowCaster mask.
//
// Parameters:
//   - mask: the caster mask
//
// Returns:
//   - ModuleBuilderOption: a function that applies the mask
func WithCasterMask(mask common.NodeMask) ModuleBuilderOption {
	return func(m *module) {
		m.casterMask = mask
	}
}

// WithDebugFrustum enables the frustum geode that outlines every cascade.
//
// Parameters:
//   - enabled: true to build the geode
//
// Returns:
//   - ModuleBuilderOption: a function that applies the option
func WithDebugFrustum(enabled bool) ModuleBuilderOption {
	return func(m *module) {
		m.debug = enabled
	}
}

// WithBias sets the depth bias and the normal-offset bias scale.
//
// Parameters:
//   - bias: the constant depth bias
//   - normalBiasScale: the multiplier applied to the world-space texel size
//
// Returns:
//   - ModuleBuilderOption: a function that applies the bias values
func WithBias(bias, normalBiasScale float32) ModuleBuilderOption {
	return func(m *module) {
		m.bias = bias
		m.normalBiasScale = normalBiasScale
	}
}

package renderer

// DeviceBuilderOption is a functional option applied to the wgpu device during construction.
type DeviceBuilderOption func(*wgpuDevice)

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - DeviceBuilderOption: a function that applies the present mode option
func WithPresentMode(mode PresentMode) DeviceBuilderOption {
	return func(d *wgpuDevice) {
		d.presentMode = presentModeToWGPU(mode)
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - DeviceBuilderOption: a function that applies the option
func WithForceSoftwareRenderer(force bool) DeviceBuilderOption {
	return func(d *wgpuDevice) {
		d.forceFallbackAdapter = force
	}
}

// WithClearColor sets the color used when the screen is cleared outside any pass.
//
// Parameters:
//   - r, g, b, a: the clear color
//
// Returns:
//   - DeviceBuilderOption: a function that applies the option
func WithClearColor(r, g, b, a float64) DeviceBuilderOption {
	return func(d *wgpuDevice) {
		d.clearColor = [4]float64{r, g, b, a}
	}
}

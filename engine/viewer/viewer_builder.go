package viewer

import (
	"time"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/camera"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/window"
)

// ViewerBuilderOption is a functional option for configuring a Viewer.
type ViewerBuilderOption func(*viewer)

// WithDevice sets the device frames are drawn on. Use a recording device for headless runs.
//
// Parameters:
//   - dev: the device
//
// Returns:
//   - ViewerBuilderOption: option function to apply
func WithDevice(dev renderer.Device) ViewerBuilderOption {
	return func(v *viewer) {
		v.dev = dev
	}
}

// WithWindow sets the window events are read from. Without WithDevice, a WebGPU device is
// created on its surface.
//
// Parameters:
//   - w: an open window
//
// Returns:
//   - ViewerBuilderOption: option function to apply
func WithWindow(w window.Window) ViewerBuilderOption {
	return func(v *viewer) {
		v.win = w
	}
}

// WithPipeline attaches a pipeline.
//
// Parameters:
//   - p: the pipeline
//
// Returns:
//   - ViewerBuilderOption: option function to apply
func WithPipeline(p pipeline.Pipeline) ViewerBuilderOption {
	return func(v *viewer) {
		v.pipe = p
	}
}

// WithCamera sets the main camera.
//
// Parameters:
//   - cam: the main camera
//
// Returns:
//   - ViewerBuilderOption: option function to apply
func WithCamera(cam camera.Camera) ViewerBuilderOption {
	return func(v *viewer) {
		v.cam = cam
	}
}

// WithFrameLimit caps Run at fps frames per second. Pass 0 to uncap the loop (default).
//
// Parameters:
//   - fps: maximum frames per second
//
// Returns:
//   - ViewerBuilderOption: option function to apply
func WithFrameLimit(fps float64) ViewerBuilderOption {
	return func(v *viewer) {
		if fps <= 0 {
			v.frameLimit = 0
			return
		}
		v.frameLimit = time.Duration(float64(time.Second) / fps)
	}
}

// WithMaxFrames makes the viewer done after n frames. Pass 0 to run until closed (default).
//
// Parameters:
//   - n: the frame count
//
// Returns:
//   - ViewerBuilderOption: option function to apply
func WithMaxFrames(n uint64) ViewerBuilderOption {
	return func(v *viewer) {
		v.maxFrames = n
	}
}

// WithProfiling enables or disables performance statistics in the log.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - ViewerBuilderOption: option function to apply
func WithProfiling(enabled bool) ViewerBuilderOption {
	return func(v *viewer) {
		v.profilingEnabled = enabled
	}
}

// WithClock replaces the time source frame timing is read from.
//
// Parameters:
//   - now: returns the current time
//
// Returns:
//   - ViewerBuilderOption: option function to apply
func WithClock(now func() time.Time) ViewerBuilderOption {
	return func(v *viewer) {
		v.now = now
	}
}

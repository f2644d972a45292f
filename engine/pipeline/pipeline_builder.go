package pipeline

import (
	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer"
)

// PipelineBuilderOption is a functional option applied to the pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithThreadingModel sets the culling schedule.
//
// Parameters:
//   - m: SingleThreaded (default) or CullParallel
//
// Returns:
//   - PipelineBuilderOption: a function that applies the threading model
func WithThreadingModel(m ThreadingModel) PipelineBuilderOption {
	return func(p *pipeline) {
		p.threading = m
	}
}

// WithCullWorkers sets the number of goroutines used by CullParallel.
// Defaults to runtime.NumCPU() - 1 (minimum 1).
//
// Parameters:
//   - n: the number of workers
//
// Returns:
//   - PipelineBuilderOption: a function that applies the worker count
func WithCullWorkers(n int) PipelineBuilderOption {
	return func(p *pipeline) {
		if n > 0 {
			p.cullWorkers = n
		}
	}
}

// WithMasks sets the node mask categories modules tag and filter with.
//
// Parameters:
//   - masks: the mask configuration
//
// Returns:
//   - PipelineBuilderOption: a function that applies the masks
func WithMasks(masks common.MaskConfig) PipelineBuilderOption {
	return func(p *pipeline) {
		p.masks = masks
	}
}

// WithRendererFactory sets the factory used for the pipeline's own passes.
//
// Parameters:
//   - f: the factory
//
// Returns:
//   - PipelineBuilderOption: a function that applies the factory
func WithRendererFactory(f renderer.Factory) PipelineBuilderOption {
	return func(p *pipeline) {
		if f != nil {
			p.factory = f
		}
	}
}

// WithFallbackRenderer sets the factory used by CreateRenderer for cameras the pipeline does not own.
//
// Parameters:
//   - f: the factory
//
// Returns:
//   - PipelineBuilderOption: a function that applies the factory
func WithFallbackRenderer(f renderer.Factory) PipelineBuilderOption {
	return func(p *pipeline) {
		if f != nil {
			p.fallback = f
		}
	}
}

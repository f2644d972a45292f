package loader

import (
	"path/filepath"

	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/scene"
)

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithMask sets the node mask applied to the root of every imported model.
//
// Parameters:
//   - m: the render-category mask
//
// Returns:
//   - LoaderBuilderOption: a function that applies the mask option to a loader
func WithMask(m common.NodeMask) LoaderBuilderOption {
	return func(l *loader) {
		l.mask = m
	}
}

// WithTangents enables or disables tangent generation after import. Enabled by default.
//
// Parameters:
//   - enabled: whether to generate tangents
//
// Returns:
//   - LoaderBuilderOption: a function that applies the tangent option to a loader
func WithTangents(enabled bool) LoaderBuilderOption {
	return func(l *loader) {
		l.tangents = enabled
	}
}

// WithNode pre-populates the cache with a scene graph, so Load returns it for path without reading a file.
//
// Parameters:
//   - path: the cache key
//   - n: the root node to cache
//
// Returns:
//   - LoaderBuilderOption: a function that applies the node option to a loader
func WithNode(path string, n scene.Node) LoaderBuilderOption {
	return func(l *loader) {
		l.nodeCache[filepath.Clean(path)] = n
	}
}

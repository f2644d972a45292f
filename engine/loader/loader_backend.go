package loader

import "github.com/Carmen-Shannon/oxy-pipeline/engine/scene"

// loaderBackend imports one model file format into a scene graph.
type loaderBackend interface {
	// Import reads the file at path and returns the root of the imported hierarchy.
	Import(path string) (scene.Node, error)
}

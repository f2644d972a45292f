package pipeline

import (
	"fmt"
	"reflect"
	"time"
)

// FrameInfo describes the frame being ticked.
type FrameInfo struct {
	// Number counts frames from 1.
	Number uint64

	// Elapsed is the time since the viewer started.
	Elapsed time.Duration

	// Delta is the time since the previous frame.
	Delta time.Duration
}

// Module is a unit of rendering functionality owned by a Pipeline, such as shadows or lighting.
type Module interface {
	// Name returns the unique registration name.
	Name() string

	// Kind returns the module kind, for example "shadow" or "light".
	Kind() string

	// Initialize is called once by RegisterModule. Modules create their cameras and textures here.
	//
	// Parameters:
	//   - p: the owning pipeline
	//
	// Returns:
	//   - error: if the module cannot run, in which case it is unregistered again
	Initialize(p Pipeline) error

	// PerFrameUpdate is called once per frame in registration order, before any pass is drawn.
	//
	// Parameters:
	//   - frame: the frame being ticked
	//
	// Returns:
	//   - error: reported by PerFrameTick; later modules still run
	PerFrameUpdate(frame FrameInfo) error
}

// ModuleAs looks up a module by name and checks its concrete type.
//
// Parameters:
//   - p: the pipeline to search
//   - name: the registration name
//
// Returns:
//   - T: the module
//   - error: ErrModuleNotFound, or a *KindMismatchError if the module is not a T
func ModuleAs[T Module](p Pipeline, name string) (T, error) {
	var zero T
	m := p.Module(name)
	if m == nil {
		return zero, fmt.Errorf("%w: %q", ErrModuleNotFound, name)
	}
	t, ok := m.(T)
	if !ok {
		return zero, &KindMismatchError{Name: name, Want: reflect.TypeFor[T]().String(), Got: m.Kind()}
	}
	return t, nil
}

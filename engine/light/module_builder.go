package light

import "github.com/go-gl/mathgl/mgl32"

// ModuleBuilderOption is a functional option applied to the light module during construction.
type ModuleBuilderOption func(*module)

// WithAmbient sets the ambient term added to every lit fragment.
//
// Parameters:
//   - ambient: the ambient color
//
// Returns:
//   - ModuleBuilderOption: a function that applies the ambient term
func WithAmbient(ambient mgl32.Vec3) ModuleBuilderOption {
	return func(m *module) {
		m.ambient = ambient
	}
}

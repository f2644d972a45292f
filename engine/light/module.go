package light

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/shadow"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/texture"
	"github.com/go-gl/mathgl/mgl32"
)

// Kind is the module kind reported by light modules.
const Kind = "light"

// DefaultAmbient is the ambient term applied when no other is configured.
var DefaultAmbient = mgl32.Vec3{0.05, 0.05, 0.05}

// ShadingParams is the lighting state scene passes shade with, read from the main light and its
// shadow binding.
type ShadingParams struct {
	Color     mgl32.Vec3
	Direction mgl32.Vec3
	Intensity float32
	Ambient   mgl32.Vec3

	// HasShadow is true when the main light is bound to a shadow module that has fitted its
	// cascades at least once.
	HasShadow      bool
	CascadeCount   int
	ShadowTextures []texture.Texture
}

// Module manages the main light, its shadow binding and any extra lights, and writes them to the
// device's scene globals every frame.
type Module interface {
	pipeline.Module

	// SetMainLight stores the main light and binds it to the shadow module registered as
	// shadowName. An unresolved name leaves the light unshadowed and is retried every frame.
	// A previously bound shadow module stops following the old light.
	//
	// Parameters:
	//   - l: the main light, nil to clear
	//   - shadowName: the shadow module name, empty for an unshadowed light
	//
	// Returns:
	//   - error: a *pipeline.KindMismatchError if shadowName names a module that is not a shadow
	//     module. The light is still stored, unshadowed.
	SetMainLight(l Light, shadowName string) error

	// MainLight returns the main light, or nil.
	MainLight() Light

	// ShadowModule returns the bound shadow module, or nil when the main light is unshadowed.
	ShadowModule() shadow.Module

	// Light adds an extra point or spot light.
	//
	// Parameters:
	//   - l: the light
	Light(l Light)

	// RemoveLight removes an extra light.
	//
	// Parameters:
	//   - l: the light
	//
	// Returns:
	//   - bool: false if l was not added
	RemoveLight(l Light) bool

	// Lights returns the extra lights in insertion order.
	Lights() []Light

	// ShadingParams returns the current lighting state.
	ShadingParams() ShadingParams
}

// module is the implementation of the Module interface.
type module struct {
	mu *sync.Mutex

	name    string
	ambient mgl32.Vec3

	p          pipeline.Pipeline
	main       Light
	shadowName string
	bound      shadow.Module
	extras     []Light
}

var _ Module = &module{}

// NewModule creates a light module.
//
// Parameters:
//   - name: the registration name, usually "Light"
//   - options: functional options
//
// Returns:
//   - Module: the module
func NewModule(name string, options ...ModuleBuilderOption) Module {
	m := &module{
		mu:      &sync.Mutex{},
		name:    name,
		ambient: DefaultAmbient,
	}
	for _, option := range options {
		option(m)
	}
	return m
}

// From returns the light module registered under name.
//
// Parameters:
//   - p: the pipeline
//   - name: the registration name
//
// Returns:
//   - Module: the module
//   - error: pipeline.ErrModuleNotFound or a *pipeline.KindMismatchError
func From(p pipeline.Pipeline, name string) (Module, error) {
	return pipeline.ModuleAs[Module](p, name)
}

func (m *module) Name() string {
	return m.name
}

func (m *module) Kind() string {
	return Kind
}

func (m *module) Initialize(p pipeline.Pipeline) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.p != nil {
		return fmt.Errorf("light module %q is already initialized", m.name)
	}
	m.p = p
	return nil
}

func (m *module) SetMainLight(l Light, shadowName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.detachLocked()
	m.main = l
	m.shadowName = shadowName
	if l == nil {
		m.shadowName = ""
		return nil
	}
	return m.resolveLocked()
}

// detachLocked clears the shadow module's light source if it still follows the main light.
// Caller must hold the mutex.
func (m *module) detachLocked() {
	if m.bound == nil {
		return
	}
	if m.bound.LightSource() == shadow.LightSource(m.main) {
		m.bound.SetLightSource(nil)
	}
	m.bound = nil
}

// dropStaleLocked releases a binding whose shadow module is no longer registered under the
// bound name. The name stays pending so a module registered again binds on the next resolve.
// Caller must hold the mutex.
func (m *module) dropStaleLocked() {
	if m.bound == nil || m.p == nil {
		return
	}
	if m.p.Module(m.shadowName) == pipeline.Module(m.bound) {
		return
	}
	common.Logger().Debug("shadow module left the pipeline", "light", m.name, "shadow", m.shadowName)
	m.detachLocked()
}

// resolveLocked looks up the pending shadow module name. A missing module keeps the name
// pending. A module of the wrong kind clears it. Caller must hold the mutex.
func (m *module) resolveLocked() error {
	m.dropStaleLocked()
	if m.bound != nil || m.shadowName == "" || m.main == nil || m.p == nil {
		return nil
	}
	sm, err := shadow.From(m.p, m.shadowName)
	switch {
	case errors.Is(err, pipeline.ErrModuleNotFound):
		return nil
	case err != nil:
		name := m.shadowName
		m.shadowName = ""
		return fmt.Errorf("light module %q cannot bind shadow module %q: %w", m.name, name, err)
	}

	sm.SetLightSource(m.main)
	m.bound = sm
	common.Logger().Debug("main light bound to shadow module", "light", m.name, "shadow", m.shadowName)
	return nil
}

func (m *module) MainLight() Light {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.main
}

func (m *module) ShadowModule() shadow.Module {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropStaleLocked()
	return m.bound
}

func (m *module) Light(l Light) {
	if l == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extras = append(m.extras, l)
}

func (m *module) RemoveLight(l Light) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := slices.Index(m.extras, l)
	if i < 0 {
		return false
	}
	m.extras = slices.Delete(m.extras, i, i+1)
	return true
}

func (m *module) Lights() []Light {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.extras)
}

func (m *module) ShadingParams() ShadingParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropStaleLocked()
	return m.shadingParamsLocked()
}

// shadingParamsLocked reads the live light and shadow state. Caller must hold the mutex.
func (m *module) shadingParamsLocked() ShadingParams {
	sp := ShadingParams{Ambient: m.ambient}
	if m.main == nil || !m.main.Enabled() {
		return sp
	}
	sp.Color = m.main.Color()
	sp.Direction = m.main.Direction()
	sp.Intensity = m.main.Intensity()
	if m.bound != nil {
		// cascades are fitted on the shadow module's first update with a light and a bound
		if len(m.bound.GPUData()) > 0 {
			sp.HasShadow = true
			sp.CascadeCount = m.bound.ShadowNumber()
			sp.ShadowTextures = m.bound.Textures()
		}
	}
	return sp
}

func (m *module) PerFrameUpdate(frame pipeline.FrameInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.resolveLocked()
	if m.p == nil {
		return err
	}

	sp := m.shadingParamsLocked()
	uniform := GPULightUniform{Ambient: sp.Ambient}
	if m.main != nil && m.main.Enabled() {
		uniform = NewGPULightUniform(m.main)
		uniform.Ambient = sp.Ambient
	}

	globals := renderer.SceneGlobals{}
	if sp.HasShadow {
		globals.Shadows = m.bound.GPUData()
		globals.ShadowMaps = sp.ShadowTextures
		uniform.HasShadow = 1
		uniform.CascadeCount = uint32(len(globals.Shadows) / (&shadow.GPUShadowData{}).Size())
	}

	for _, l := range m.extras {
		if uniform.ExtraCount == MaxExtraLights {
			break
		}
		if !l.Enabled() {
			continue
		}
		extra := NewGPULightUniform(l)
		globals.ExtraLights = append(globals.ExtraLights, extra.Marshal()...)
		uniform.ExtraCount++
	}
	globals.Light = uniform.Marshal()

	m.p.Device().SetSceneGlobals(globals)
	return err
}

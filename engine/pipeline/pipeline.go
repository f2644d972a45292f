// Package pipeline orchestrates a frame: it owns the registered modules and the render passes,
// ticks the modules, and draws the passes in order on a device.
package pipeline

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/camera"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/scene"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/shader"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/texture"
)

// ThreadingModel selects how Render schedules culling.
type ThreadingModel int

const (
	// SingleThreaded culls and draws every pass on the calling goroutine.
	SingleThreaded ThreadingModel = iota

	// CullParallel culls the passes of each stage concurrently, then draws them in order.
	CullParallel
)

// String returns the flag spelling of the threading model.
func (m ThreadingModel) String() string {
	switch m {
	case CullParallel:
		return "cull-parallel"
	default:
		return "single-threaded"
	}
}

// ParseThreadingModel parses the flag spelling of a threading model.
//
// Parameters:
//   - s: "single-threaded" or "cull-parallel"
//
// Returns:
//   - ThreadingModel: the parsed model
//   - error: if s is not a known model
func ParseThreadingModel(s string) (ThreadingModel, error) {
	switch s {
	case "", "single-threaded", "single":
		return SingleThreaded, nil
	case "cull-parallel", "parallel":
		return CullParallel, nil
	default:
		return SingleThreaded, fmt.Errorf("unknown threading model %q", s)
	}
}

// Pipeline owns the modules and passes of a renderer and drives them once per frame.
type Pipeline interface {
	// RegisterModule stores a module and initializes it.
	//
	// Parameters:
	//   - m: the module
	//
	// Returns:
	//   - error: a *DuplicateNameError if the name is taken, or the Initialize error
	RegisterModule(m Module) error

	// UnregisterModule removes a module together with the passes it added while initializing.
	//
	// Parameters:
	//   - name: the registration name
	//
	// Returns:
	//   - bool: true if a module was removed
	UnregisterModule(name string) bool

	// Module returns the module registered under name, or nil.
	Module(name string) Module

	// Modules returns the registered modules in registration order.
	Modules() []Module

	// AddPass adds a camera to the frame. Adding the same camera twice is a no-op.
	AddPass(cam camera.Camera)

	// RemovePass removes a camera from the frame.
	//
	// Returns:
	//   - bool: true if the camera was a pass
	RemovePass(cam camera.Camera) bool

	// Passes returns the cameras sorted by render order, then order index, then insertion.
	Passes() []camera.Camera

	// CreateRenderer returns the graphics operation for a camera. Cameras owned by the pipeline
	// share one operation per camera; any other camera gets one from the fallback factory.
	CreateRenderer(cam camera.Camera) renderer.GraphicsOperation

	// PerFrameTick calls every module's PerFrameUpdate in registration order.
	//
	// Returns:
	//   - error: the joined module errors, or nil
	PerFrameTick(frame FrameInfo) error

	// Render culls and draws every pass on the device. A fence is issued before any pass that
	// reads a texture written earlier in the frame. Must be called between the device's
	// BeginFrame and EndFrame.
	//
	// Parameters:
	//   - root: the scene root
	//   - main: the main camera relative passes are composed with, may be nil
	//
	// Returns:
	//   - error: the first pass or fence error
	Render(root scene.Node, main camera.Camera) error

	// LoadShaders loads a shader directory and hands it to the device.
	//
	// Parameters:
	//   - dir: the shader directory
	//
	// Returns:
	//   - error: if the directory cannot be read or the device rejects the shaders
	LoadShaders(dir string) error

	// Shaders returns the loaded shader library, or nil.
	Shaders() shader.Library

	// Device returns the device passes are drawn on.
	Device() renderer.Device

	// Masks returns the node mask categories.
	Masks() common.MaskConfig

	// ThreadingModel returns the culling schedule.
	ThreadingModel() ThreadingModel

	// SetThreadingModel changes the culling schedule for the next Render.
	SetThreadingModel(m ThreadingModel)

	// Close stops the cull workers.
	Close()
}

// registeredPass is a camera with its insertion sequence, used as the final sort key.
type registeredPass struct {
	cam camera.Camera
	seq int
}

// pipeline is the implementation of the Pipeline interface.
type pipeline struct {
	mu *sync.Mutex

	device  renderer.Device
	masks   common.MaskConfig
	shaders shader.Library

	modules []Module
	byName  map[string]Module
	owned   map[string][]camera.Camera

	passes  []registeredPass
	nextSeq int
	ops     map[camera.Camera]renderer.GraphicsOperation
	factory renderer.Factory
	fallback renderer.Factory

	threading   ThreadingModel
	cullWorkers int
	pool        worker.DynamicWorkerPool
}

var _ Pipeline = &pipeline{}

// NewPipeline creates a pipeline drawing on a device.
//
// Parameters:
//   - dev: the device, usually from renderer.NewWGPUDevice or renderer.NewRecordingDevice
//   - options: functional options
//
// Returns:
//   - Pipeline: the pipeline
func NewPipeline(dev renderer.Device, options ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		mu:          &sync.Mutex{},
		device:      dev,
		masks:       common.DefaultMaskConfig(),
		byName:      make(map[string]Module),
		owned:       make(map[string][]camera.Camera),
		ops:         make(map[camera.Camera]renderer.GraphicsOperation),
		factory:     renderer.NewDefaultRenderer,
		fallback:    renderer.NewDefaultRenderer,
		threading:   SingleThreaded,
		cullWorkers: max(runtime.NumCPU()-1, 1),
	}

	for _, option := range options {
		option(p)
	}

	return p
}

func (p *pipeline) RegisterModule(m Module) error {
	name := m.Name()

	p.mu.Lock()
	if _, ok := p.byName[name]; ok {
		p.mu.Unlock()
		return &DuplicateNameError{Name: name}
	}
	p.modules = append(p.modules, m)
	p.byName[name] = m
	before := make(map[camera.Camera]bool, len(p.passes))
	for _, rp := range p.passes {
		before[rp.cam] = true
	}
	p.mu.Unlock()

	// Initialize runs unlocked since modules call back into AddPass and Module.
	err := m.Initialize(p)

	p.mu.Lock()
	for _, rp := range p.passes {
		if !before[rp.cam] {
			p.owned[name] = append(p.owned[name], rp.cam)
		}
	}
	if err != nil {
		p.removeModuleLocked(name)
		p.mu.Unlock()
		return fmt.Errorf("failed to initialize module %q: %w", name, err)
	}
	p.mu.Unlock()

	common.Logger().Debug("module registered", "name", name, "kind", m.Kind())
	return nil
}

// removeModuleLocked drops a module by name along with the passes it owns. Caller must hold the
// mutex.
func (p *pipeline) removeModuleLocked(name string) bool {
	if _, ok := p.byName[name]; !ok {
		return false
	}
	for _, cam := range p.owned[name] {
		p.removePassLocked(cam)
	}
	delete(p.owned, name)
	delete(p.byName, name)
	p.modules = slices.DeleteFunc(p.modules, func(m Module) bool {
		return m.Name() == name
	})
	return true
}

func (p *pipeline) UnregisterModule(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.removeModuleLocked(name)
}

func (p *pipeline) Module(name string) Module {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.byName[name]
}

func (p *pipeline) Modules() []Module {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.modules)
}

func (p *pipeline) AddPass(cam camera.Camera) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, rp := range p.passes {
		if rp.cam == cam {
			return
		}
	}
	p.passes = append(p.passes, registeredPass{cam: cam, seq: p.nextSeq})
	p.nextSeq++
	p.ops[cam] = p.factory(cam)
}

func (p *pipeline) RemovePass(cam camera.Camera) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.removePassLocked(cam)
}

// removePassLocked removes a camera from the frame. Caller must hold the mutex.
func (p *pipeline) removePassLocked(cam camera.Camera) bool {
	n := len(p.passes)
	p.passes = slices.DeleteFunc(p.passes, func(rp registeredPass) bool { return rp.cam == cam })
	delete(p.ops, cam)
	return len(p.passes) != n
}

func (p *pipeline) Passes() []camera.Camera {
	p.mu.Lock()
	sorted := slices.Clone(p.passes)
	p.mu.Unlock()

	slices.SortStableFunc(sorted, func(a, b registeredPass) int {
		ao, ai := a.cam.RenderOrder()
		bo, bi := b.cam.RenderOrder()
		if ao != bo {
			return int(ao) - int(bo)
		}
		if ai != bi {
			return ai - bi
		}
		return a.seq - b.seq
	})

	out := make([]camera.Camera, len(sorted))
	for i, rp := range sorted {
		out[i] = rp.cam
	}
	return out
}

func (p *pipeline) CreateRenderer(cam camera.Camera) renderer.GraphicsOperation {
	p.mu.Lock()
	defer p.mu.Unlock()
	if op, ok := p.ops[cam]; ok {
		return op
	}
	return p.fallback(cam)
}

func (p *pipeline) PerFrameTick(frame FrameInfo) error {
	modules := p.Modules()

	var errs []error
	for _, m := range modules {
		if err := m.PerFrameUpdate(frame); err != nil {
			common.Logger().Error("module update failed", "module", m.Name(), "frame", frame.Number, "error", err)
			errs = append(errs, fmt.Errorf("module %q: %w", m.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// stages splits the sorted passes wherever a pass reads a texture written earlier in the frame
// and not yet fenced.
func stages(passes []camera.Camera) [][]camera.Camera {
	var out [][]camera.Camera
	var current []camera.Camera
	pending := make(map[texture.Texture]bool)

	for _, cam := range passes {
		needsFence := false
		for _, t := range cam.Reads() {
			if pending[t] {
				needsFence = true
				break
			}
		}
		if needsFence && len(current) > 0 {
			out = append(out, current)
			current = nil
			clear(pending)
		}
		current = append(current, cam)
		for _, t := range cam.Writes() {
			pending[t] = true
		}
	}
	if len(current) > 0 {
		out = append(out, current)
	}
	return out
}

func (p *pipeline) Render(root scene.Node, main camera.Camera) error {
	threading := p.ThreadingModel()
	start := time.Now()

	for i, stage := range stages(p.Passes()) {
		if i > 0 {
			if err := p.device.Fence(); err != nil {
				return fmt.Errorf("failed to fence before stage %d: %w", i, err)
			}
		}

		ops := make([]renderer.GraphicsOperation, len(stage))
		for j, cam := range stage {
			ops[j] = p.CreateRenderer(cam)
		}

		var culled []renderer.Pass
		if threading == CullParallel && len(stage) > 1 {
			culled = p.cullParallel(ops, root, main)
		} else {
			culled = make([]renderer.Pass, len(ops))
			for j, op := range ops {
				culled[j] = op.Cull(root, main)
			}
		}

		for j, op := range ops {
			if err := op.Draw(p.device, culled[j]); err != nil {
				return fmt.Errorf("failed to draw pass %q: %w", stage[j].Name(), err)
			}
		}
	}

	common.Logger().Debug("frame rendered", "threading", threading.String(), "elapsed", time.Since(start))
	return nil
}

// cullParallel culls every operation on the worker pool and waits for all of them.
func (p *pipeline) cullParallel(ops []renderer.GraphicsOperation, root scene.Node, main camera.Camera) []renderer.Pass {
	pool := p.workerPool()
	culled := make([]renderer.Pass, len(ops))

	// A WaitGroup is the per-frame barrier; pool.Wait only returns once workers idle out.
	var wg sync.WaitGroup
	for i, op := range ops {
		wg.Add(1)
		pool.SubmitTask(worker.Task{
			ID:      i,
			Payload: op.Camera().Name(),
			Do: func() (any, error) {
				defer wg.Done()
				culled[i] = op.Cull(root, main)
				return nil, nil
			},
		})
	}
	wg.Wait()
	return culled
}

// workerPool returns the cull pool, creating it on first use.
func (p *pipeline) workerPool() worker.DynamicWorkerPool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool == nil {
		p.pool = worker.NewDynamicWorkerPool(p.cullWorkers, 256, 1*time.Second)
	}
	return p.pool
}

func (p *pipeline) LoadShaders(dir string) error {
	lib, err := shader.LoadDir(dir)
	if err != nil {
		return err
	}
	if err := p.device.PrepareShaders(lib); err != nil {
		return fmt.Errorf("failed to prepare shaders from %s: %w", dir, err)
	}
	p.mu.Lock()
	p.shaders = lib
	p.mu.Unlock()
	return nil
}

func (p *pipeline) Shaders() shader.Library {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shaders
}

func (p *pipeline) Device() renderer.Device {
	return p.device
}

func (p *pipeline) Masks() common.MaskConfig {
	return p.masks
}

func (p *pipeline) ThreadingModel() ThreadingModel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.threading
}

func (p *pipeline) SetThreadingModel(m ThreadingModel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.threading = m
}

func (p *pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool != nil {
		p.pool.Stop()
		p.pool = nil
	}
}

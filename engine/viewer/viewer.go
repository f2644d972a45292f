// Package viewer drives the frame loop: it delivers window events to handlers, ticks the
// pipeline's modules, and renders every pass of the frame on the device.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/camera"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/input"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/profiler"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/scene"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/window"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrNoDevice is returned by NewViewer when neither a device nor a window is configured.
var ErrNoDevice = errors.New("viewer has no device")

// UpdateFunc is called once per frame after events are handled and before modules are ticked.
type UpdateFunc func(frame pipeline.FrameInfo)

// Viewer owns the frame loop of one window or headless device.
type Viewer interface {
	// SetSceneData sets the scene root every pass culls.
	//
	// Parameters:
	//   - root: the scene root
	SetSceneData(root scene.Node)

	// SceneData returns the scene root.
	SceneData() scene.Node

	// Camera returns the main camera. Relative passes compose with it.
	Camera() camera.Camera

	// SetCamera replaces the main camera.
	//
	// Parameters:
	//   - cam: the main camera
	SetCamera(cam camera.Camera)

	// Device returns the device frames are drawn on.
	Device() renderer.Device

	// Pipeline returns the attached pipeline, or nil.
	Pipeline() pipeline.Pipeline

	// SetPipeline attaches a pipeline. Its passes replace the main camera's default rendering.
	//
	// Parameters:
	//   - p: the pipeline, or nil to detach
	SetPipeline(p pipeline.Pipeline)

	// AddEventHandler appends an event handler. Handlers run in insertion order and before the
	// main camera's controller.
	//
	// Parameters:
	//   - h: the handler
	AddEventHandler(h input.Handler)

	// AddUpdateCallback appends a per-frame update callback.
	//
	// Parameters:
	//   - fn: the callback
	AddUpdateCallback(fn UpdateFunc)

	// PushEvent queues an event for the next frame. Windows feed events through it.
	//
	// Parameters:
	//   - ev: the event
	PushEvent(ev input.Event)

	// CreateRenderer returns the operation that renders cam: the pipeline's when a pipeline is
	// attached, the default renderer otherwise.
	//
	// Parameters:
	//   - cam: the camera
	//
	// Returns:
	//   - renderer.GraphicsOperation: the operation
	CreateRenderer(cam camera.Camera) renderer.GraphicsOperation

	// Frame runs one iteration of the loop: events, updates, module tick, render, present.
	//
	// Returns:
	//   - error: a device or render error. Module update errors are logged, not returned.
	Frame() error

	// Run calls Frame until Done, ctx is cancelled, or the window closes.
	//
	// Parameters:
	//   - ctx: cancels the loop between frames
	//
	// Returns:
	//   - error: the first Frame error, or ctx.Err() when cancelled
	Run(ctx context.Context) error

	// Done reports whether the loop should stop.
	Done() bool

	// SetDone requests that the loop stop after the current frame.
	//
	// Parameters:
	//   - done: true to stop
	SetDone(done bool)

	// FrameNumber returns the number of frames completed.
	FrameNumber() uint64

	// Close releases the pipeline, the device and the window.
	Close()
}

// viewer is the implementation of the Viewer interface.
type viewer struct {
	mu *sync.Mutex

	dev      renderer.Device
	win      window.Window
	pipe     pipeline.Pipeline
	root     scene.Node
	cam      camera.Camera
	handlers []input.Handler
	updates  []UpdateFunc
	pending  []input.Event

	frameNumber uint64
	maxFrames   uint64
	frameLimit  time.Duration
	start       time.Time
	last        time.Time
	now         func() time.Time
	done        bool

	profiler         *profiler.Profiler
	profilingEnabled bool
}

var _ Viewer = &viewer{}

// NewViewer creates a viewer. With a window and no device, a WebGPU device is created on the
// window's surface.
//
// Parameters:
//   - options: functional options
//
// Returns:
//   - Viewer: the viewer
//   - error: ErrNoDevice, or the device creation error
func NewViewer(options ...ViewerBuilderOption) (Viewer, error) {
	v := &viewer{
		mu:  &sync.Mutex{},
		now: time.Now,
	}
	for _, opt := range options {
		opt(v)
	}

	if v.dev == nil {
		if v.win == nil {
			return nil, ErrNoDevice
		}
		dev, err := renderer.NewWGPUDevice(v.win.SurfaceDescriptor(), v.win.Width(), v.win.Height())
		if err != nil {
			return nil, fmt.Errorf("failed to create device: %w", err)
		}
		v.dev = dev
	}
	if v.win != nil {
		v.win.SetEventCallback(v.PushEvent)
	}
	if v.cam == nil {
		w, h := v.dev.Size()
		v.cam = camera.NewCamera("Main", camera.WithPerspective(mgl32.DegToRad(45), float32(w)/float32(max(h, 1)), 0.1, 1000))
	}
	if v.profilingEnabled {
		v.profiler = profiler.NewProfiler(profiler.WithClock(v.now))
	}
	return v, nil
}

func (v *viewer) SetSceneData(root scene.Node) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.root = root
}

func (v *viewer) SceneData() scene.Node {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.root
}

func (v *viewer) Camera() camera.Camera {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cam
}

func (v *viewer) SetCamera(cam camera.Camera) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cam = cam
}

func (v *viewer) Device() renderer.Device {
	return v.dev
}

func (v *viewer) Pipeline() pipeline.Pipeline {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pipe
}

func (v *viewer) SetPipeline(p pipeline.Pipeline) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pipe = p
}

func (v *viewer) AddEventHandler(h input.Handler) {
	if h == nil {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.handlers = append(v.handlers, h)
}

func (v *viewer) AddUpdateCallback(fn UpdateFunc) {
	if fn == nil {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.updates = append(v.updates, fn)
}

func (v *viewer) PushEvent(ev input.Event) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pending = append(v.pending, ev)
}

func (v *viewer) CreateRenderer(cam camera.Camera) renderer.GraphicsOperation {
	if p := v.Pipeline(); p != nil {
		return p.CreateRenderer(cam)
	}
	return renderer.NewDefaultRenderer(cam)
}

// dispatch delivers ev to the handlers and then to the main camera's controller.
func (v *viewer) dispatch(ev input.Event, handlers []input.Handler, cam camera.Camera) {
	if ev.Type == input.EventResize {
		w, h := int(ev.X), int(ev.Y)
		if w > 0 && h > 0 {
			v.dev.Resize(w, h)
			if cam != nil {
				cam.SetAspect(float32(w) / float32(h))
			}
		}
	}
	if input.Dispatch(ev, handlers) {
		return
	}
	if cam != nil {
		if ctrl := cam.Controller(); ctrl != nil {
			ctrl.Handle(ev)
		}
	}
}

func (v *viewer) Frame() error {
	now := v.now()

	v.mu.Lock()
	if v.start.IsZero() {
		v.start, v.last = now, now
	}
	info := pipeline.FrameInfo{
		Number:  v.frameNumber + 1,
		Elapsed: now.Sub(v.start),
		Delta:   now.Sub(v.last),
	}
	v.last = now
	events := v.pending
	v.pending = nil
	handlers := slices.Clone(v.handlers)
	updates := slices.Clone(v.updates)
	cam, root, pipe := v.cam, v.root, v.pipe
	v.mu.Unlock()

	for _, ev := range events {
		v.dispatch(ev, handlers, cam)
	}
	v.dispatch(input.Event{Type: input.EventFrame, Time: info.Elapsed.Seconds()}, handlers, cam)

	if cam != nil {
		if ctrl := cam.Controller(); ctrl != nil {
			ctrl.Update(info.Delta.Seconds())
			cam.Update()
		}
	}
	for _, fn := range updates {
		fn(info)
	}

	if pipe != nil {
		// module failures are logged by the pipeline and do not stop the frame
		_ = pipe.PerFrameTick(info)
	}

	if err := v.dev.BeginFrame(); err != nil {
		return fmt.Errorf("failed to begin frame %d: %w", info.Number, err)
	}
	if err := v.render(pipe, root, cam); err != nil {
		// close the frame so the next one can begin
		_ = v.dev.EndFrame()
		return err
	}
	if err := v.dev.EndFrame(); err != nil {
		return fmt.Errorf("failed to end frame %d: %w", info.Number, err)
	}
	v.dev.Present()

	v.mu.Lock()
	v.frameNumber = info.Number
	if v.maxFrames > 0 && v.frameNumber >= v.maxFrames {
		v.done = true
	}
	v.mu.Unlock()

	if v.profiler != nil {
		v.profiler.Tick()
	}
	return nil
}

// render draws the pipeline's passes, or the main camera when no pipeline is attached.
func (v *viewer) render(pipe pipeline.Pipeline, root scene.Node, cam camera.Camera) error {
	if pipe != nil {
		return pipe.Render(root, cam)
	}
	if cam == nil {
		return nil
	}
	op := v.CreateRenderer(cam)
	if err := op.Draw(v.dev, op.Cull(root, cam)); err != nil {
		return fmt.Errorf("failed to draw main camera: %w", err)
	}
	return nil
}

func (v *viewer) Run(ctx context.Context) error {
	common.Logger().Info("viewer loop started", "max_frames", v.maxFrames, "frame_limit", v.frameLimit)
	defer func() {
		common.Logger().Info("viewer loop stopped", "frames", v.FrameNumber())
	}()

	for {
		if v.Done() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if v.win != nil && !v.win.PollEvents() {
			v.SetDone(true)
			return nil
		}

		start := v.now()
		if err := v.Frame(); err != nil {
			return err
		}

		if v.frameLimit > 0 {
			if remaining := v.frameLimit - v.now().Sub(start); remaining > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(remaining):
				}
			}
		}
	}
}

func (v *viewer) Done() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.done
}

func (v *viewer) SetDone(done bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.done = done
}

func (v *viewer) FrameNumber() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frameNumber
}

func (v *viewer) Close() {
	v.mu.Lock()
	pipe, win := v.pipe, v.win
	v.pipe, v.win = nil, nil
	v.mu.Unlock()

	if pipe != nil {
		pipe.Close()
	}
	v.dev.Release()
	if win != nil {
		if err := win.Close(); err != nil {
			common.Logger().Warn("failed to close window", "error", err)
		}
	}
}

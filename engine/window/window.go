// Package window opens the native window a viewer renders into and translates its callbacks into
// input events.
package window

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/input"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrClosed is returned by operations on a window that has been closed.
var ErrClosed = errors.New("window is closed")

// Window provides platform windowing and input event handling.
// Wraps platform-specific window implementations with a common interface.
type Window interface {
	// SetEventCallback sets the function receiving every input event.
	// Resize events carry the new framebuffer size in X and Y.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetEventCallback(callback func(ev input.Event))

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor suitable for creating a WebGPU surface.
	// The descriptor is platform-appropriate (Windows HWND, X11 Xlib, Wayland, macOS Metal, etc.)
	// and is created by the wgpuglfw bridge from the underlying GLFW window.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the platform-specific surface descriptor, or nil if the window is closed
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// PollEvents delivers pending events to the event callback without blocking.
	//
	// Returns:
	//   - bool: false once the window should close
	PollEvents() bool

	// IsRunning returns true if the window is still active.
	//
	// Returns:
	//   - bool: true if window is running, false if closed
	IsRunning() bool

	// Close closes the window and releases platform resources.
	//
	// Returns:
	//   - error: ErrClosed if the window was already closed
	Close() error

	// SetTitle replaces the title bar text.
	//
	// Parameters:
	//   - title: the new title
	SetTitle(title string)

	// Width returns the current framebuffer width in pixels.
	//
	// Returns:
	//   - int: width in pixels
	Width() int

	// Height returns the current framebuffer height in pixels.
	//
	// Returns:
	//   - int: height in pixels
	Height() int
}

// engineWindow is the implementation of the Window interface.
// Holds window configuration, GLFW state, and the event callback.
type engineWindow struct {
	// title is the window title displayed in the title bar.
	title string

	// maxWidth is the maximum allowed window width during resize.
	maxWidth int

	// maxHeight is the maximum allowed window height during resize.
	maxHeight int

	// minWidth is the minimum allowed window width during resize.
	minWidth int

	// minHeight is the minimum allowed window height during resize.
	minHeight int

	// width is the current framebuffer width in pixels.
	width int

	// height is the current framebuffer height in pixels.
	height int

	// resizable allows the user to resize the window.
	resizable bool

	// internalWindow holds the platform-specific window data (glfwWindow).
	internalWindow any

	// onEvent receives every translated input event.
	onEvent func(ev input.Event)

	// now returns the event timestamp in seconds. Set by the platform window.
	now func() float64

	// lastX and lastY hold the previous cursor position for move deltas.
	lastX, lastY float64
	hasCursor    bool
}

var _ Window = &engineWindow{}

// NewWindow creates and shows a new Window with the specified options.
// Applies default values first, then each option in order. Must be called from the main
// goroutine, which the window locks to its OS thread.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the open window
//   - error: if the platform window cannot be created
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &engineWindow{
		title:     "oxyview",
		maxWidth:  3840,
		maxHeight: 2160,
		minWidth:  320,
		minHeight: 200,
		width:     1280,
		height:    720,
		resizable: true,
	}
	for _, opt := range options {
		opt(w)
	}
	if err := newPlatformWindow(w); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *engineWindow) SetEventCallback(callback func(ev input.Event)) {
	w.onEvent = callback
}

// emit stamps ev with the platform time and delivers it.
func (w *engineWindow) emit(ev input.Event) {
	if w.onEvent == nil {
		return
	}
	if w.now != nil {
		ev.Time = w.now()
	}
	w.onEvent(ev)
}

// cursorMoved emits a move event carrying the delta from the previous position.
func (w *engineWindow) cursorMoved(x, y float64) {
	ev := input.Event{Type: input.EventMove, X: x, Y: y}
	if w.hasCursor {
		ev.DeltaX, ev.DeltaY = x-w.lastX, y-w.lastY
	}
	w.lastX, w.lastY, w.hasCursor = x, y, true
	w.emit(ev)
}

// resized records the framebuffer size and emits a resize event.
func (w *engineWindow) resized(width, height int) {
	w.width, w.height = width, height
	w.emit(input.Event{Type: input.EventResize, X: float64(width), Y: float64(height)})
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *engineWindow) PollEvents() bool {
	return platformProcessMessages(w)
}

func (w *engineWindow) IsRunning() bool {
	return platformIsRunningCheck(w)
}

func (w *engineWindow) Close() error {
	return platformCloseWindow(w)
}

func (w *engineWindow) SetTitle(title string) {
	w.title = title
	platformSetTitle(w, title)
}

func (w *engineWindow) Width() int {
	return w.width
}

func (w *engineWindow) Height() int {
	return w.height
}

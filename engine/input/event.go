// Package input defines the window-agnostic events delivered to viewer event handlers.
package input

// EventType identifies the kind of user interaction an Event describes.
type EventType int

const (
	// EventKeyDown is delivered when a key is pressed or auto-repeats.
	EventKeyDown EventType = iota

	// EventKeyUp is delivered when a key is released.
	EventKeyUp

	// EventPush is delivered when any mouse button is pressed.
	EventPush

	// EventRelease is delivered when a mouse button is released.
	EventRelease

	// EventMove is delivered when the cursor moves.
	EventMove

	// EventScroll is delivered when the scroll wheel moves.
	EventScroll

	// EventResize is delivered when the framebuffer size changes.
	EventResize

	// EventFrame is delivered once per frame before the frame is rendered.
	EventFrame
)

// String returns a readable name for the event type.
func (t EventType) String() string {
	switch t {
	case EventKeyDown:
		return "keydown"
	case EventKeyUp:
		return "keyup"
	case EventPush:
		return "push"
	case EventRelease:
		return "release"
	case EventMove:
		return "move"
	case EventScroll:
		return "scroll"
	case EventResize:
		return "resize"
	case EventFrame:
		return "frame"
	default:
		return "unknown"
	}
}

// Event is a single user interaction. Only the fields relevant to Type are set.
type Event struct {
	Type EventType

	// Key is the key code for keyboard events (see common.Key*).
	Key int

	// Button is the mouse button for push and release events (see common.MouseButton*).
	Button int

	// X and Y hold the cursor position for pointer events and the new size for resize events.
	X, Y float64

	// DeltaX and DeltaY hold the scroll offset for scroll events and the cursor delta for move events.
	DeltaX, DeltaY float64

	// Time is the seconds elapsed since the viewer started.
	Time float64
}

// Handler reacts to events. Handle returns true when the event has been consumed and
// later handlers should not see it.
type Handler interface {
	Handle(ev Event) bool
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ev Event) bool

// Handle calls f(ev).
func (f HandlerFunc) Handle(ev Event) bool {
	return f(ev)
}

// Dispatch delivers ev to each handler in order until one consumes it.
//
// Parameters:
//   - ev: the event to deliver
//   - handlers: the handlers in priority order
//
// Returns:
//   - bool: true if a handler consumed the event
func Dispatch(ev Event, handlers []Handler) bool {
	for _, h := range handlers {
		if h != nil && h.Handle(ev) {
			return true
		}
	}
	return false
}

package viewpoint

import (
	"errors"
	"sync"

	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/input"
)

// DefaultTransitionDuration is the time in seconds the camera takes to fly to a selected viewpoint.
const DefaultTransitionDuration = 2.0

// ErrControllerStarted is returned by AddViewpoint once the controller has handled an event.
var ErrControllerStarted = errors.New("viewpoint list is read-only after the first event")

// State is the controller's navigation state.
type State int

const (
	// StateFree means the user navigates freely.
	StateFree State = iota

	// StateLocked means the camera is locked to one of the viewpoints.
	StateLocked
)

// String returns a readable name for the state.
func (s State) String() string {
	if s == StateLocked {
		return "locked"
	}
	return "free"
}

// controllerImpl is the implementation of the Controller interface.
type controllerImpl struct {
	mu *sync.Mutex

	manipulator Manipulator
	viewpoints  []Viewpoint
	duration    float64

	state   State
	index   int
	started bool
}

// Controller switches the camera among a fixed list of viewpoints on digit key releases and
// returns to free navigation on the next key press, pointer press or scroll, the same
// interactions that release the manipulator's viewpoint.
type Controller interface {
	input.Handler

	// AddViewpoint appends a viewpoint. Keys '1'..'9' select the first nine.
	//
	// Parameters:
	//   - vp: the viewpoint to append
	//
	// Returns:
	//   - error: ErrControllerStarted if the controller has already handled an event
	AddViewpoint(vp Viewpoint) error

	// Viewpoints returns a copy of the viewpoint list.
	Viewpoints() []Viewpoint

	// State returns the current state and, when locked, the selected index.
	//
	// Returns:
	//   - State: StateFree or StateLocked
	//   - int: the locked viewpoint index, or -1 when free
	State() (State, int)
}

var _ Controller = &controllerImpl{}

// NewController creates a controller in the free state.
//
// Parameters:
//   - m: the manipulator to command; it is referenced, not owned, and may be nil
//   - options: functional options for controller configuration
//
// Returns:
//   - Controller: the new controller
func NewController(m Manipulator, options ...ControllerBuilderOption) Controller {
	c := &controllerImpl{
		mu:          &sync.Mutex{},
		manipulator: m,
		duration:    DefaultTransitionDuration,
		state:       StateFree,
		index:       -1,
	}

	for _, opt := range options {
		opt(c)
	}

	return c
}

func (c *controllerImpl) AddViewpoint(vp Viewpoint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return ErrControllerStarted
	}
	c.viewpoints = append(c.viewpoints, vp)
	return nil
}

func (c *controllerImpl) Viewpoints() []Viewpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Viewpoint, len(c.viewpoints))
	copy(out, c.viewpoints)
	return out
}

func (c *controllerImpl) State() (State, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.index
}

// Handle never consumes the event so later handlers, such as the manipulator, still see it.
func (c *controllerImpl) Handle(ev input.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = true

	switch ev.Type {
	case input.EventKeyDown, input.EventPush, input.EventScroll:
		if c.state != StateLocked {
			return false
		}
		c.state = StateFree
		c.index = -1
		if c.manipulator != nil {
			c.manipulator.ClearViewpoint()
		}
		common.Logger().Debug("viewpoint cleared", "event", ev.Type.String())

	case input.EventKeyUp:
		idx, ok := common.DigitIndex(ev.Key)
		if !ok || idx >= len(c.viewpoints) {
			return false
		}
		c.state = StateLocked
		c.index = idx
		if c.manipulator != nil {
			c.manipulator.SetViewpoint(c.viewpoints[idx], c.duration)
		}
		common.Logger().Debug("viewpoint selected", "index", idx, "name", c.viewpoints[idx].Name())
	}

	return false
}

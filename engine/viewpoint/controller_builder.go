package viewpoint

// ControllerBuilderOption is a functional option for configuring a Controller.
type ControllerBuilderOption func(*controllerImpl)

// WithDuration sets the transition time in seconds passed to the manipulator.
//
// Parameters:
//   - seconds: the transition duration; negative values are treated as 0
//
// Returns:
//   - ControllerBuilderOption: option function to apply
func WithDuration(seconds float64) ControllerBuilderOption {
	return func(c *controllerImpl) {
		c.duration = max(seconds, 0)
	}
}

// WithViewpoints appends viewpoints during construction.
//
// Parameters:
//   - vps: the viewpoints to append in key order
//
// Returns:
//   - ControllerBuilderOption: option function to apply
func WithViewpoints(vps ...Viewpoint) ControllerBuilderOption {
	return func(c *controllerImpl) {
		c.viewpoints = append(c.viewpoints, vps...)
	}
}

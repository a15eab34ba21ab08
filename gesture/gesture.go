// Package gesture implements the drag/pinch interpreter: a small
// synchronous state machine that turns raw pointer samples into
// navigation and decision actions.
//
// The interpreter is pure input handling. It never touches the feed:
// the engine maps the returned Action onto feed operations, so the
// interpreter stays testable without any collaborator.
package gesture

import "time"

// Default tuning constants.
const (
	// DefaultDirectionThreshold is the minimum dominant-axis travel
	// (points) before a drag is classified.
	DefaultDirectionThreshold = 15.0
	// DefaultDirectionRatio is how dominant an axis must be over the
	// other to classify (|dx| > ratio*|dy| for horizontal).
	DefaultDirectionRatio = 2.0
	// DefaultHorizontalCommitFraction of the viewport width commits a
	// horizontal swipe to a decision.
	DefaultHorizontalCommitFraction = 0.3
	// DefaultVerticalCommitFraction of the viewport height commits a
	// vertical swipe to navigation. Deliberately smaller than the
	// horizontal fraction: vertical movement is free browsing, not a
	// destructive decision, so it should feel easier to trigger.
	DefaultVerticalCommitFraction = 0.10
	// Zoom scale clamp bounds.
	DefaultZoomMin = 1.0
	DefaultZoomMax = 5.0
	// DefaultZoomGrace is how long after a pinch ends that drag-end
	// events are still ignored, so a trailing drag-end from the same
	// gesture is not misread as a swipe.
	DefaultZoomGrace = 150 * time.Millisecond
)

// Vec is a 2D offset in points.
type Vec struct {
	X float64
	Y float64
}

// Viewport carries the view dimensions commit thresholds scale with.
type Viewport struct {
	Width  float64
	Height float64
}

// Direction is the sticky drag classification.
type Direction int

// Direction constants.
const (
	DirectionUndecided Direction = iota
	DirectionHorizontal
	DirectionVertical
)

// String returns the direction name for logs.
func (d Direction) String() string {
	switch d {
	case DirectionHorizontal:
		return "horizontal"
	case DirectionVertical:
		return "vertical"
	default:
		return "undecided"
	}
}

// Action is the interpreter's verdict for a completed gesture.
type Action int

// Action constants.
const (
	ActionNone Action = iota
	// ActionSnapBack means the gesture did not commit; the view
	// animates offsets back to neutral.
	ActionSnapBack
	// ActionDecideKeep is a committed rightward swipe.
	ActionDecideKeep
	// ActionDecideDelete is a committed leftward swipe.
	ActionDecideDelete
	// ActionNavigateForward is a committed upward swipe.
	ActionNavigateForward
	// ActionNavigateBackward is a committed downward swipe.
	ActionNavigateBackward
	// ActionBlocked means a decision swipe committed while the
	// caller-supplied gate was closed. No state was consumed.
	ActionBlocked
)

// String returns the action name for logs.
func (a Action) String() string {
	switch a {
	case ActionSnapBack:
		return "snap_back"
	case ActionDecideKeep:
		return "decide_keep"
	case ActionDecideDelete:
		return "decide_delete"
	case ActionNavigateForward:
		return "navigate_forward"
	case ActionNavigateBackward:
		return "navigate_backward"
	case ActionBlocked:
		return "blocked"
	default:
		return "none"
	}
}

// State is the transient gesture state. Exclusively owned by the
// Interpreter; everything else reads copies.
type State struct {
	IsDragging       bool
	Direction        Direction
	HorizontalOffset float64
	VerticalOffset   float64
	IsZoomed         bool
	ZoomScale        float64
	ZoomOffset       Vec
}

// Config holds interpreter tuning. Zero values fall back to defaults.
type Config struct {
	DirectionThreshold       float64
	DirectionRatio           float64
	HorizontalCommitFraction float64
	VerticalCommitFraction   float64
	ZoomMin                  float64
	ZoomMax                  float64
	ZoomGrace                time.Duration
	// Clock overrides time.Now for the zoom grace window (tests).
	Clock func() time.Time
}

func (c Config) withDefaults() Config {
	if c.DirectionThreshold <= 0 {
		c.DirectionThreshold = DefaultDirectionThreshold
	}
	if c.DirectionRatio <= 0 {
		c.DirectionRatio = DefaultDirectionRatio
	}
	if c.HorizontalCommitFraction <= 0 {
		c.HorizontalCommitFraction = DefaultHorizontalCommitFraction
	}
	if c.VerticalCommitFraction <= 0 {
		c.VerticalCommitFraction = DefaultVerticalCommitFraction
	}
	if c.ZoomMin <= 0 {
		c.ZoomMin = DefaultZoomMin
	}
	if c.ZoomMax <= 0 {
		c.ZoomMax = DefaultZoomMax
	}
	if c.ZoomGrace <= 0 {
		c.ZoomGrace = DefaultZoomGrace
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

// Interpreter is the gesture state machine. Single-owner: all calls
// must come from one goroutine (the engine event loop).
type Interpreter struct {
	cfg         Config
	state       State
	zoomEndedAt time.Time
}

// New creates an interpreter in the idle state.
func New(cfg Config) *Interpreter {
	i := &Interpreter{cfg: cfg.withDefaults()}
	i.state.ZoomScale = i.cfg.ZoomMin
	return i
}

// State returns a copy of the current gesture state.
func (i *Interpreter) State() State {
	s := i.state
	s.IsZoomed = i.zoomActive()
	return s
}

// zoomActive reports whether zoom currently owns the pointer: either
// a pinch is live, or one ended within the grace window.
func (i *Interpreter) zoomActive() bool {
	if i.state.IsZoomed {
		return true
	}
	if i.zoomEndedAt.IsZero() {
		return false
	}
	return i.cfg.Clock().Sub(i.zoomEndedAt) < i.cfg.ZoomGrace
}

// PinchBegin transitions to zooming. Any in-progress drag is
// abandoned: while zoomed, drag input is ignored entirely.
func (i *Interpreter) PinchBegin() {
	i.state.IsZoomed = true
	i.zoomEndedAt = time.Time{}
	i.resetDrag()
}

// PinchChange updates the zoom scale and offset. The offset is
// corrected so the content under the focal point stays fixed, then
// translated by the focal point's own movement.
func (i *Interpreter) PinchChange(scaleDelta float64, focal, focalDelta Vec) {
	if !i.state.IsZoomed || scaleDelta <= 0 {
		return
	}
	oldScale := i.state.ZoomScale
	newScale := clamp(oldScale*scaleDelta, i.cfg.ZoomMin, i.cfg.ZoomMax)
	ratio := newScale / oldScale

	o := i.state.ZoomOffset
	i.state.ZoomOffset = Vec{
		X: focal.X - (focal.X-o.X)*ratio + focalDelta.X,
		Y: focal.Y - (focal.Y-o.Y)*ratio + focalDelta.Y,
	}
	i.state.ZoomScale = newScale
}

// PinchEnd returns the zoom to neutral and starts the grace window.
// Drag events arriving inside the window are still ignored.
func (i *Interpreter) PinchEnd() {
	if !i.state.IsZoomed {
		return
	}
	i.state.IsZoomed = false
	i.state.ZoomScale = i.cfg.ZoomMin
	i.state.ZoomOffset = Vec{}
	i.zoomEndedAt = i.cfg.Clock()
}

// DragChange feeds one drag translation sample. The first unambiguous
// sample classifies the gesture's direction; the classification is
// sticky until the gesture ends. Undecided samples update nothing, so
// the view shows no feedback yet.
func (i *Interpreter) DragChange(translation Vec) {
	if i.zoomActive() {
		return
	}
	i.state.IsDragging = true

	if i.state.Direction == DirectionUndecided {
		i.state.Direction = i.classify(translation)
	}

	switch i.state.Direction {
	case DirectionHorizontal:
		i.state.HorizontalOffset = translation.X
	case DirectionVertical:
		i.state.VerticalOffset = translation.Y
	}
}

// classify applies the threshold+ratio rule to one sample.
func (i *Interpreter) classify(t Vec) Direction {
	ax, ay := abs(t.X), abs(t.Y)
	switch {
	case ax > i.cfg.DirectionThreshold && ax > i.cfg.DirectionRatio*ay:
		return DirectionHorizontal
	case ay > i.cfg.DirectionThreshold && ay > i.cfg.DirectionRatio*ax:
		return DirectionVertical
	default:
		return DirectionUndecided
	}
}

// DragEnd completes the gesture and returns the committed action.
// canProceed is the caller-supplied decision gate (quota/paywall): a
// committed decision swipe with a closed gate yields ActionBlocked
// and consumes nothing. Navigation-only (vertical) movement never
// consults the gate.
//
// The drag state is always reset to idle on return.
func (i *Interpreter) DragEnd(translation Vec, viewport Viewport, canProceed bool) Action {
	defer i.resetDrag()

	if i.zoomActive() {
		return ActionNone
	}
	if !i.state.IsDragging {
		return ActionNone
	}

	switch i.state.Direction {
	case DirectionHorizontal:
		if abs(translation.X) <= i.cfg.HorizontalCommitFraction*viewport.Width {
			return ActionSnapBack
		}
		if !canProceed {
			return ActionBlocked
		}
		if translation.X < 0 {
			return ActionDecideDelete
		}
		return ActionDecideKeep

	case DirectionVertical:
		if abs(translation.Y) <= i.cfg.VerticalCommitFraction*viewport.Height {
			return ActionSnapBack
		}
		if translation.Y > 0 {
			return ActionNavigateBackward
		}
		return ActionNavigateForward

	default:
		return ActionSnapBack
	}
}

// Cancel force-resets the interpreter to idle immediately, zoom
// included. Used on gesture cancellation, app backgrounding, and
// orientation changes: a suspended recognizer can otherwise leave
// offsets stuck mid-swipe.
func (i *Interpreter) Cancel() {
	i.resetDrag()
	i.state.IsZoomed = false
	i.state.ZoomScale = i.cfg.ZoomMin
	i.state.ZoomOffset = Vec{}
	i.zoomEndedAt = time.Time{}
}

func (i *Interpreter) resetDrag() {
	i.state.IsDragging = false
	i.state.Direction = DirectionUndecided
	i.state.HorizontalOffset = 0
	i.state.VerticalOffset = 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

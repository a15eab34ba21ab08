// Package lifecycle coordinates session events (backgrounding,
// activation, interruptions, memory pressure) across the gesture
// interpreter, media cache, and preload scheduler.
//
// The coordinator holds no domain state of its own. It sequences
// collaborator calls so that each event leaves the session in a
// consistent, resumable shape.
package lifecycle

import (
	"sync"
	"time"

	"github.com/pithecene-io/sift/log"
)

// DefaultControlsHideDelay is how long on-screen controls stay
// visible after the last interaction.
const DefaultControlsHideDelay = 3 * time.Second

// AppState is the coordinator's view of the host application state.
type AppState int

// AppState constants.
const (
	StateActive AppState = iota
	StateBackgrounding
	StateInactive
)

// String returns the state name for logs.
func (s AppState) String() string {
	switch s {
	case StateBackgrounding:
		return "backgrounding"
	case StateInactive:
		return "inactive"
	default:
		return "active"
	}
}

// GestureResetter force-resets gesture state to idle.
type GestureResetter interface {
	Cancel()
}

// MediaController is the cache surface the coordinator drives.
type MediaController interface {
	Suspend()
	Resume()
	Trim(keep []string)
}

// PreloadController is the scheduler surface the coordinator drives.
type PreloadController interface {
	CancelAll()
}

// Collaborators wires the coordinator to the rest of the session.
// Gesture, Media and Preload are required; the funcs may be nil.
type Collaborators struct {
	Gesture GestureResetter
	Media   MediaController
	Preload PreloadController

	// Persist flushes session state to durable storage. Called while
	// backgrounding, before the process can be killed.
	Persist func()
	// Replan runs a fresh preload pass for the current window.
	Replan func()
	// WindowIDs returns the active window's asset ids, used as the
	// keep-set for cache trim hints.
	WindowIDs func() []string
}

// Config holds coordinator tuning. Zero values fall back to defaults.
type Config struct {
	ControlsHideDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.ControlsHideDelay <= 0 {
		c.ControlsHideDelay = DefaultControlsHideDelay
	}
	return c
}

// Coordinator reacts to session events. Safe for concurrent use: host
// frameworks deliver lifecycle callbacks from arbitrary threads.
type Coordinator struct {
	cfg    Config
	collab Collaborators
	logger *log.Logger

	mu        sync.Mutex
	state     AppState
	hideTimer *time.Timer
}

// NewCoordinator creates a coordinator in the active state.
// logger may be nil.
func NewCoordinator(cfg Config, collab Collaborators, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.Nop()
	}
	return &Coordinator{
		cfg:    cfg.withDefaults(),
		collab: collab,
		logger: logger,
		state:  StateActive,
	}
}

// State returns the current app state.
func (c *Coordinator) State() AppState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// WillBackground handles the app-will-background event: the gesture
// is force-reset first (a recognizer suspended mid-swipe delivers no
// end event and would leave offsets stuck), preloading stops, the
// cache suspends, and session state is persisted while the process is
// still allowed to run.
func (c *Coordinator) WillBackground() {
	c.setState(StateBackgrounding)
	c.CancelControlsHide()

	c.collab.Gesture.Cancel()
	c.collab.Preload.CancelAll()
	c.collab.Media.Suspend()
	if c.collab.Persist != nil {
		c.collab.Persist()
	}

	c.setState(StateInactive)
	c.logger.Debug("session backgrounded", nil)
}

// DidActivate handles the app-did-become-active event: gesture state
// is reset again (events delivered during the transition can re-dirty
// it), the cache resumes and trims to the live window, and a preload
// pass rewarms the window.
func (c *Coordinator) DidActivate() {
	c.collab.Gesture.Cancel()
	c.collab.Media.Resume()
	c.trimToWindow()
	if c.collab.Replan != nil {
		c.collab.Replan()
	}

	c.setState(StateActive)
	c.logger.Debug("session activated", nil)
}

// InterruptionBegin handles an audio/media interruption (phone call
// and the like): only the gesture is reset. Media stays warm because
// most interruptions end with an immediate return to the session.
func (c *Coordinator) InterruptionBegin() {
	c.collab.Gesture.Cancel()
}

// InterruptionEnd takes the same path as activation.
func (c *Coordinator) InterruptionEnd() {
	c.DidActivate()
}

// LowMemory trims the cache to the live window.
func (c *Coordinator) LowMemory() {
	c.logger.Warn("low memory warning", nil)
	c.trimToWindow()
}

// OrientationChanged resets the gesture: in-flight offsets are
// expressed in the old viewport's coordinates.
func (c *Coordinator) OrientationChanged() {
	c.collab.Gesture.Cancel()
}

// ScheduleControlsHide arms the controls auto-hide timer, replacing
// any previous one. hide runs once the delay elapses unless
// CancelControlsHide is called first.
func (c *Coordinator) ScheduleControlsHide(hide func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hideTimer != nil {
		c.hideTimer.Stop()
	}
	c.hideTimer = time.AfterFunc(c.cfg.ControlsHideDelay, hide)
}

// CancelControlsHide disarms the auto-hide timer if armed.
func (c *Coordinator) CancelControlsHide() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hideTimer != nil {
		c.hideTimer.Stop()
		c.hideTimer = nil
	}
}

func (c *Coordinator) setState(s AppState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Coordinator) trimToWindow() {
	if c.collab.WindowIDs == nil {
		return
	}
	c.collab.Media.Trim(c.collab.WindowIDs())
}

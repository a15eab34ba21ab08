package gesture_test

import (
	"testing"
	"time"

	"github.com/pithecene-io/sift/gesture"
)

var viewport = gesture.Viewport{Width: 400, Height: 800}

// fakeClock advances only when told, for grace-window tests.
type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)}
}

func TestClassification(t *testing.T) {
	cases := []struct {
		name        string
		translation gesture.Vec
		want        gesture.Direction
	}{
		{"clear horizontal", gesture.Vec{X: 40, Y: 5}, gesture.DirectionHorizontal},
		{"clear vertical", gesture.Vec{X: 5, Y: -40}, gesture.DirectionVertical},
		{"below threshold", gesture.Vec{X: 10, Y: 2}, gesture.DirectionUndecided},
		{"diagonal, ambiguous", gesture.Vec{X: 30, Y: 25}, gesture.DirectionUndecided},
		{"horizontal needs 2x dominance", gesture.Vec{X: 30, Y: 20}, gesture.DirectionUndecided},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			i := gesture.New(gesture.Config{})
			i.DragChange(tc.translation)
			if got := i.State().Direction; got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestDirectionStickiness(t *testing.T) {
	i := gesture.New(gesture.Config{})

	i.DragChange(gesture.Vec{X: 40, Y: 0})
	if i.State().Direction != gesture.DirectionHorizontal {
		t.Fatalf("expected horizontal, got %s", i.State().Direction)
	}

	// A later strongly vertical sample must not reclassify.
	i.DragChange(gesture.Vec{X: 42, Y: 300})
	if i.State().Direction != gesture.DirectionHorizontal {
		t.Errorf("classification changed mid-gesture: %s", i.State().Direction)
	}
	if i.State().HorizontalOffset != 42 {
		t.Errorf("expected horizontal offset 42, got %g", i.State().HorizontalOffset)
	}
	if i.State().VerticalOffset != 0 {
		t.Errorf("vertical offset must stay 0 for a horizontal drag, got %g", i.State().VerticalOffset)
	}
}

func TestUndecidedUpdatesNothing(t *testing.T) {
	i := gesture.New(gesture.Config{})
	i.DragChange(gesture.Vec{X: 8, Y: 6})

	s := i.State()
	if s.HorizontalOffset != 0 || s.VerticalOffset != 0 {
		t.Errorf("undecided drag must update no offsets, got %+v", s)
	}
	if !s.IsDragging {
		t.Error("expected isDragging=true")
	}

	// Undecided gestures keep trying to classify.
	i.DragChange(gesture.Vec{X: 50, Y: 6})
	if i.State().Direction != gesture.DirectionHorizontal {
		t.Errorf("expected later classification, got %s", i.State().Direction)
	}
}

// Scenario B (gesture half): -0.5 viewport widths with an open gate
// commits a delete decision.
func TestDragEnd_HorizontalCommit(t *testing.T) {
	i := gesture.New(gesture.Config{})
	i.DragChange(gesture.Vec{X: -200, Y: 0})

	got := i.DragEnd(gesture.Vec{X: -200, Y: 0}, viewport, true)
	if got != gesture.ActionDecideDelete {
		t.Errorf("expected decide_delete, got %s", got)
	}

	s := i.State()
	if s.IsDragging || s.Direction != gesture.DirectionUndecided {
		t.Errorf("drag state must reset after end, got %+v", s)
	}
}

func TestDragEnd_HorizontalSnapBackUnderThreshold(t *testing.T) {
	i := gesture.New(gesture.Config{})
	i.DragChange(gesture.Vec{X: 100, Y: 0})

	// 100 <= 0.3*400, no decision.
	if got := i.DragEnd(gesture.Vec{X: 100, Y: 0}, viewport, true); got != gesture.ActionSnapBack {
		t.Errorf("expected snap_back, got %s", got)
	}
}

func TestDragEnd_BlockedGate(t *testing.T) {
	i := gesture.New(gesture.Config{})
	i.DragChange(gesture.Vec{X: 300, Y: 0})

	if got := i.DragEnd(gesture.Vec{X: 300, Y: 0}, viewport, false); got != gesture.ActionBlocked {
		t.Errorf("expected blocked, got %s", got)
	}
}

func TestDragEnd_VerticalThresholdIsLower(t *testing.T) {
	// 90pt on an 800pt viewport: above the 10% vertical threshold,
	// below the 30% horizontal one.
	i := gesture.New(gesture.Config{})
	i.DragChange(gesture.Vec{X: 0, Y: -90})
	if got := i.DragEnd(gesture.Vec{X: 0, Y: -90}, viewport, true); got != gesture.ActionNavigateForward {
		t.Errorf("expected navigate_forward, got %s", got)
	}

	i.DragChange(gesture.Vec{X: 0, Y: 90})
	if got := i.DragEnd(gesture.Vec{X: 0, Y: 90}, viewport, true); got != gesture.ActionNavigateBackward {
		t.Errorf("expected navigate_backward, got %s", got)
	}

	i.DragChange(gesture.Vec{X: 0, Y: 50})
	if got := i.DragEnd(gesture.Vec{X: 0, Y: 50}, viewport, true); got != gesture.ActionSnapBack {
		t.Errorf("expected snap_back under vertical threshold, got %s", got)
	}
}

func TestDragEnd_VerticalIgnoresGate(t *testing.T) {
	// Navigation-only movement does not consume a decision unit, so
	// a closed gate must not block it.
	i := gesture.New(gesture.Config{})
	i.DragChange(gesture.Vec{X: 0, Y: -200})
	if got := i.DragEnd(gesture.Vec{X: 0, Y: -200}, viewport, false); got != gesture.ActionNavigateForward {
		t.Errorf("expected navigate_forward with closed gate, got %s", got)
	}
}

func TestZoomOwnsPointer(t *testing.T) {
	i := gesture.New(gesture.Config{})
	i.PinchBegin()

	i.DragChange(gesture.Vec{X: 300, Y: 0})
	s := i.State()
	if s.IsDragging {
		t.Error("drag input must be ignored while zoomed")
	}
	if got := i.DragEnd(gesture.Vec{X: 300, Y: 0}, viewport, true); got != gesture.ActionNone {
		t.Errorf("expected none while zoomed, got %s", got)
	}
}

func TestPinchChange_ClampsScale(t *testing.T) {
	i := gesture.New(gesture.Config{})
	i.PinchBegin()

	i.PinchChange(100, gesture.Vec{X: 200, Y: 400}, gesture.Vec{})
	if got := i.State().ZoomScale; got != 5 {
		t.Errorf("expected scale clamped to 5, got %g", got)
	}

	i.PinchChange(0.001, gesture.Vec{X: 200, Y: 400}, gesture.Vec{})
	if got := i.State().ZoomScale; got != 1 {
		t.Errorf("expected scale clamped to 1, got %g", got)
	}
}

func TestPinchChange_AnchorsFocalPoint(t *testing.T) {
	i := gesture.New(gesture.Config{})
	i.PinchBegin()

	// Doubling around focal (100, 100) from neutral: the offset moves
	// so the content under the fingers stays fixed.
	i.PinchChange(2, gesture.Vec{X: 100, Y: 100}, gesture.Vec{})
	s := i.State()
	if s.ZoomScale != 2 {
		t.Fatalf("expected scale 2, got %g", s.ZoomScale)
	}
	if s.ZoomOffset.X != -100 || s.ZoomOffset.Y != -100 {
		t.Errorf("expected offset (-100,-100), got %+v", s.ZoomOffset)
	}

	// Focal movement translates the content with the fingers.
	i.PinchChange(1, gesture.Vec{X: 100, Y: 100}, gesture.Vec{X: 10, Y: 0})
	if got := i.State().ZoomOffset.X; got != -90 {
		t.Errorf("expected offset x -90 after focal move, got %g", got)
	}
}

func TestPinchEnd_GraceSwallowsTrailingDragEnd(t *testing.T) {
	clock := newFakeClock()
	i := gesture.New(gesture.Config{ZoomGrace: 150 * time.Millisecond, Clock: clock.Now})

	i.PinchBegin()
	i.PinchChange(2, gesture.Vec{X: 100, Y: 100}, gesture.Vec{})
	i.PinchEnd()

	// Trailing drag-end from the same physical gesture.
	if got := i.DragEnd(gesture.Vec{X: -300, Y: 0}, viewport, true); got != gesture.ActionNone {
		t.Errorf("expected trailing drag-end swallowed, got %s", got)
	}

	clock.Advance(200 * time.Millisecond)
	i.DragChange(gesture.Vec{X: -300, Y: 0})
	if got := i.DragEnd(gesture.Vec{X: -300, Y: 0}, viewport, true); got != gesture.ActionDecideDelete {
		t.Errorf("expected decide_delete after grace elapsed, got %s", got)
	}
}

func TestPinchEnd_ResetsToNeutral(t *testing.T) {
	i := gesture.New(gesture.Config{})
	i.PinchBegin()
	i.PinchChange(3, gesture.Vec{X: 50, Y: 50}, gesture.Vec{})
	i.PinchEnd()

	s := i.State()
	if s.ZoomScale != 1 || s.ZoomOffset != (gesture.Vec{}) {
		t.Errorf("expected neutral zoom after pinch end, got %+v", s)
	}
}

func TestCancel_ForcesIdleImmediately(t *testing.T) {
	clock := newFakeClock()
	i := gesture.New(gesture.Config{Clock: clock.Now})

	i.DragChange(gesture.Vec{X: 200, Y: 0})
	i.PinchBegin()
	i.Cancel()

	s := i.State()
	if s.IsDragging || s.IsZoomed || s.HorizontalOffset != 0 {
		t.Errorf("expected full reset, got %+v", s)
	}

	// No grace window after a cancel: input works right away.
	i.DragChange(gesture.Vec{X: 200, Y: 0})
	if got := i.DragEnd(gesture.Vec{X: 200, Y: 0}, viewport, true); got != gesture.ActionDecideKeep {
		t.Errorf("expected decide_keep after cancel, got %s", got)
	}
}

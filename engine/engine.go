// Package engine wires the feed machine, gesture interpreter, preload
// scheduler, media cache and lifecycle coordinator into one triage
// session.
//
// The engine is the single logical mutation context: every state
// transition is serialized through its mutex, so the single-owner
// components (feed, gesture) are never touched concurrently. UI
// layers consume immutable View snapshots delivered through
// registered observers.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/sift/adapter"
	"github.com/pithecene-io/sift/cache"
	"github.com/pithecene-io/sift/feed"
	"github.com/pithecene-io/sift/gesture"
	"github.com/pithecene-io/sift/lifecycle"
	"github.com/pithecene-io/sift/log"
	"github.com/pithecene-io/sift/metrics"
	"github.com/pithecene-io/sift/preload"
	"github.com/pithecene-io/sift/session"
	"github.com/pithecene-io/sift/types"
)

// publishTimeout bounds a single best-effort decision publish.
const publishTimeout = 10 * time.Second

// View is an immutable snapshot of session state for rendering.
type View struct {
	SessionID string
	Phase     feed.Phase

	Current    types.AssetRef
	HasCurrent bool

	CurrentIndex   int
	WindowLen      int
	BackwardLimit  int
	UndecidedTotal int

	Kept     int
	Deleted  int
	SeenOnly int

	Gesture    gesture.State
	LastSignal feed.Signal

	// CurrentLoad is the full-tier load state of the current item.
	CurrentLoad cache.LoadState
	// CurrentError is set when the current item's preload failed; the
	// UI shows a retry affordance. Cleared on the next navigation.
	CurrentError string
}

// Observer receives a View after every state change.
type Observer func(View)

// Config holds engine tuning and collaborator configuration.
type Config struct {
	Library  string
	Feed     feed.Config
	Gesture  gesture.Config
	Preload  preload.Config
	Cache    cache.Config
	Viewport gesture.Viewport

	// CanProceed is the decision gate (quota/paywall). nil means
	// decisions are always allowed.
	CanProceed func() bool

	// SnapshotPath enables session resume when non-empty.
	SnapshotPath string
}

// Engine orchestrates one triage session. Safe for concurrent use;
// all mutation is serialized internally.
type Engine struct {
	cfg    Config
	meta   types.SessionMeta
	logger *log.Logger

	feed      *feed.Machine
	interp    *gesture.Interpreter
	media     *cache.Memory
	sched     *preload.Scheduler
	coord     *lifecycle.Coordinator
	collector *metrics.Collector
	publisher adapter.Adapter

	mu         sync.Mutex
	lastSignal feed.Signal
	currentErr string
	observers  []Observer
}

// Options carries the engine's injected collaborators. Source, Store
// and Fetcher are required; Publisher and Logger are optional.
type Options struct {
	Source    feed.Source
	Store     feed.DecisionStore
	Fetcher   cache.Fetcher
	Publisher adapter.Adapter
	Logger    *log.Logger

	// Backend labels for metric dimensions.
	SourceBackend string
	StoreBackend  string
}

// New assembles an engine and its component graph. The session ID is
// freshly generated.
func New(cfg Config, opts Options) (*Engine, error) {
	if opts.Source == nil || opts.Store == nil {
		return nil, fmt.Errorf("engine: source and store are required")
	}

	meta := types.SessionMeta{
		SessionID: uuid.NewString(),
		Library:   cfg.Library,
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewLogger(meta)
	}
	if cfg.Viewport == (gesture.Viewport{}) {
		cfg.Viewport = gesture.Viewport{Width: 390, Height: 844}
	}
	if cfg.CanProceed == nil {
		cfg.CanProceed = func() bool { return true }
	}

	media, err := cache.NewMemory(cfg.Cache, opts.Fetcher, logger)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	e := &Engine{
		cfg:       cfg,
		meta:      meta,
		logger:    logger,
		feed:      feed.New(cfg.Feed, opts.Source, opts.Store, logger),
		interp:    gesture.New(cfg.Gesture),
		media:     media,
		collector: metrics.NewCollector(opts.SourceBackend, opts.StoreBackend, meta.SessionID, cfg.Library),
		publisher: opts.Publisher,
	}

	e.sched = preload.NewScheduler(cfg.Preload, media, logger)
	e.sched.OnCurrentError = e.onCurrentError

	e.coord = lifecycle.NewCoordinator(lifecycle.Config{}, lifecycle.Collaborators{
		Gesture:   e.interp,
		Media:     media,
		Preload:   e.sched,
		Persist:   e.persistSnapshot,
		Replan:    e.Replan,
		WindowIDs: e.windowIDs,
	}, logger)

	return e, nil
}

// SessionID returns the generated session identifier.
func (e *Engine) SessionID() string { return e.meta.SessionID }

// Coordinator returns the lifecycle coordinator for host integration.
func (e *Engine) Coordinator() *lifecycle.Coordinator { return e.coord }

// Metrics returns a snapshot of the session's metrics.
func (e *Engine) Metrics() metrics.Snapshot { return e.collector.Snapshot() }

// Subscribe registers an observer. Observers are invoked after every
// state change with a fresh View, outside the engine lock.
func (e *Engine) Subscribe(obs Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, obs)
}

// Start loads the feed for the query and, when a resumable snapshot
// exists for the same library, replays the playhead position. It then
// runs the first preload pass.
func (e *Engine) Start(ctx context.Context, q types.Query) error {
	e.mu.Lock()
	if err := e.feed.Load(ctx, q); err != nil {
		e.collector.IncSourceError()
		e.mu.Unlock()
		return err
	}
	e.collector.IncSessionStarted()
	e.resumeLocked(ctx)
	e.preloadLocked(ctx)
	v := e.viewLocked()
	e.mu.Unlock()

	e.notify(v)
	return nil
}

// resumeLocked replays the snapshot's playhead position by advancing.
// Replaying keeps the backward limit and backfill bookkeeping exactly
// as they would be after a live session reaching that index.
func (e *Engine) resumeLocked(ctx context.Context) {
	if e.cfg.SnapshotPath == "" {
		return
	}
	snap, err := session.Load(e.cfg.SnapshotPath)
	if err != nil {
		e.logger.Warn("session snapshot unreadable", map[string]any{"error": err.Error()})
		return
	}
	if snap == nil || snap.Library != e.cfg.Library {
		return
	}

	for i := 0; i < snap.CurrentIndex; i++ {
		if e.feed.Advance(ctx) != feed.SignalAdvanced {
			break
		}
	}
	e.logger.Info("session resumed", map[string]any{
		"index":    e.feed.CurrentIndex(),
		"snapshot": snap.SessionID,
	})
}

// Advance marks the current item seen and moves the playhead forward.
func (e *Engine) Advance(ctx context.Context) feed.Signal {
	e.mu.Lock()
	e.feed.MarkSeen(ctx)
	sig := e.feed.Advance(ctx)
	e.settleLocked(ctx, sig)
	v := e.viewLocked()
	e.mu.Unlock()

	e.notify(v)
	return sig
}

// Retreat moves the playhead backward, bounded by the undo window.
func (e *Engine) Retreat(ctx context.Context) feed.Signal {
	e.mu.Lock()
	sig := e.feed.Retreat()
	e.settleLocked(ctx, sig)
	v := e.viewLocked()
	e.mu.Unlock()

	e.notify(v)
	return sig
}

// RecordDecision resolves the current item and advances.
func (e *Engine) RecordDecision(ctx context.Context, d types.Decision) (feed.Signal, error) {
	e.mu.Lock()
	ref, hasCurrent := e.feed.Current()
	index := e.feed.CurrentIndex()
	duplicate := false
	if hasCurrent {
		if t, ok := e.feed.Tracker(ref.ID); ok && t.Decision.Decided() {
			duplicate = true
		}
	}

	sig, err := e.feed.RecordDecision(ctx, d)
	if err != nil {
		e.mu.Unlock()
		return sig, err
	}
	if !duplicate {
		switch d {
		case types.DecisionKept:
			e.collector.IncDecisionKept()
		case types.DecisionDeleted:
			e.collector.IncDecisionDeleted()
		}
	}
	kept, deleted, _ := e.feed.DecisionCounts()
	remaining := e.feed.UndecidedTotal() - kept - deleted
	e.settleLocked(ctx, sig)
	v := e.viewLocked()
	e.mu.Unlock()

	if !duplicate && hasCurrent {
		e.publish(ref, d, index, remaining)
	}
	e.notify(v)
	return sig, nil
}

// settleLocked does the post-navigation bookkeeping shared by every
// operation that may move the playhead.
func (e *Engine) settleLocked(ctx context.Context, sig feed.Signal) {
	e.lastSignal = sig
	switch sig {
	case feed.SignalAdvanced:
		e.collector.IncAdvance()
		e.currentErr = ""
	case feed.SignalRetreated:
		e.collector.IncRetreat()
		e.currentErr = ""
	case feed.SignalEndOfFeed:
		e.collector.IncEndOfFeedHit()
	case feed.SignalBackwardLimit:
		e.collector.IncBackwardLimitHit()
	}
	e.preloadLocked(ctx)
}

// preloadLocked runs one scheduler pass for the current window.
func (e *Engine) preloadLocked(ctx context.Context) {
	if e.feed.Phase() != feed.PhaseBrowsing {
		return
	}
	plan := preload.Plan(e.feed.Window(), e.feed.CurrentIndex(), e.feed.BackwardLimit(), e.cfg.Preload)
	e.sched.Apply(ctx, plan)
}

// Replan runs a preload pass for the current window. Exposed for the
// lifecycle coordinator's activation path.
func (e *Engine) Replan() {
	e.mu.Lock()
	e.preloadLocked(context.Background())
	e.mu.Unlock()
}

// DragChange feeds a drag translation sample to the interpreter.
func (e *Engine) DragChange(translation gesture.Vec) {
	e.mu.Lock()
	e.interp.DragChange(translation)
	v := e.viewLocked()
	e.mu.Unlock()
	e.notify(v)
}

// PinchBegin starts a zoom gesture.
func (e *Engine) PinchBegin() {
	e.mu.Lock()
	e.interp.PinchBegin()
	v := e.viewLocked()
	e.mu.Unlock()
	e.notify(v)
}

// PinchChange updates the zoom gesture.
func (e *Engine) PinchChange(scaleDelta float64, focal, focalDelta gesture.Vec) {
	e.mu.Lock()
	e.interp.PinchChange(scaleDelta, focal, focalDelta)
	v := e.viewLocked()
	e.mu.Unlock()
	e.notify(v)
}

// PinchEnd completes a zoom gesture.
func (e *Engine) PinchEnd() {
	e.mu.Lock()
	e.interp.PinchEnd()
	v := e.viewLocked()
	e.mu.Unlock()
	e.notify(v)
}

// DragEnd completes a drag gesture and executes the committed action:
// horizontal commits become decisions, vertical commits become
// navigation, blocked commits only count.
func (e *Engine) DragEnd(ctx context.Context, translation gesture.Vec) gesture.Action {
	e.mu.Lock()
	action := e.interp.DragEnd(translation, e.cfg.Viewport, e.cfg.CanProceed())
	e.mu.Unlock()

	switch action {
	case gesture.ActionDecideKeep:
		_, _ = e.RecordDecision(ctx, types.DecisionKept)
	case gesture.ActionDecideDelete:
		_, _ = e.RecordDecision(ctx, types.DecisionDeleted)
	case gesture.ActionNavigateForward:
		e.Advance(ctx)
	case gesture.ActionNavigateBackward:
		e.Retreat(ctx)
	case gesture.ActionBlocked:
		e.collector.IncDecisionBlocked()
		e.notify(e.View())
	default:
		e.notify(e.View())
	}
	return action
}

// Restart clears session trackers and goes through the undecided
// items again, optionally shuffled.
func (e *Engine) Restart(ctx context.Context, shuffled bool) error {
	e.mu.Lock()
	if err := e.feed.Restart(ctx, shuffled); err != nil {
		e.mu.Unlock()
		return err
	}
	e.collector.IncSessionRestarted()
	e.currentErr = ""
	e.lastSignal = feed.SignalNone
	e.media.Trim(e.windowIDsLocked())
	e.preloadLocked(ctx)
	v := e.viewLocked()
	e.mu.Unlock()

	e.notify(v)
	return nil
}

// RemoveCurrent pulls the current item out of the window without
// recording a decision.
func (e *Engine) RemoveCurrent(ctx context.Context) {
	e.mu.Lock()
	ref, ok := e.feed.Current()
	e.feed.RemoveCurrent(ctx)
	if ok {
		e.media.Cancel(ref.ID)
	}
	e.preloadLocked(ctx)
	v := e.viewLocked()
	e.mu.Unlock()
	e.notify(v)
}

// Media exposes the cache for rendering layers (BestAvailable, State).
func (e *Engine) Media() *cache.Memory { return e.media }

// View returns a fresh state snapshot.
func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewLocked()
}

func (e *Engine) viewLocked() View {
	kept, deleted, seenOnly := e.feed.DecisionCounts()
	v := View{
		SessionID:      e.meta.SessionID,
		Phase:          e.feed.Phase(),
		CurrentIndex:   e.feed.CurrentIndex(),
		WindowLen:      e.feed.WindowLen(),
		BackwardLimit:  e.feed.BackwardLimit(),
		UndecidedTotal: e.feed.UndecidedTotal(),
		Kept:           kept,
		Deleted:        deleted,
		SeenOnly:       seenOnly,
		Gesture:        e.interp.State(),
		LastSignal:     e.lastSignal,
		CurrentError:   e.currentErr,
	}
	if ref, ok := e.feed.Current(); ok {
		v.Current = ref
		v.HasCurrent = true
		v.CurrentLoad = e.media.State(ref.ID, types.TierFull)
	}
	return v
}

// notify delivers a view to observers outside the engine lock.
func (e *Engine) notify(v View) {
	e.mu.Lock()
	observers := append([]Observer(nil), e.observers...)
	e.mu.Unlock()
	for _, obs := range observers {
		obs(v)
	}
}

// onCurrentError surfaces a failed current-item preload to observers.
func (e *Engine) onCurrentError(assetID string, err error) {
	e.mu.Lock()
	if ref, ok := e.feed.Current(); !ok || ref.ID != assetID {
		// The playhead already moved on; stale failure.
		e.mu.Unlock()
		return
	}
	e.currentErr = fmt.Sprintf("%v: %v", types.ErrCurrentItemUnavailable, err)
	v := e.viewLocked()
	e.mu.Unlock()
	e.notify(v)
}

// RetryCurrent re-requests the current item's content after a failed
// load.
func (e *Engine) RetryCurrent(ctx context.Context) {
	e.mu.Lock()
	e.currentErr = ""
	e.preloadLocked(ctx)
	v := e.viewLocked()
	e.mu.Unlock()
	e.notify(v)
}

// windowIDs returns the asset IDs in the preload band around the
// playhead, the keep-set for cache trims.
func (e *Engine) windowIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.windowIDsLocked()
}

func (e *Engine) windowIDsLocked() []string {
	plan := preload.Plan(e.feed.Window(), e.feed.CurrentIndex(), e.feed.BackwardLimit(), e.cfg.Preload)
	ids := make([]string, 0, len(plan))
	for _, r := range plan {
		ids = append(ids, r.Ref.ID)
	}
	return ids
}

// persistSnapshot writes the resume snapshot, if configured.
func (e *Engine) persistSnapshot() {
	if e.cfg.SnapshotPath == "" {
		return
	}
	e.mu.Lock()
	kept, deleted, seenOnly := e.feed.DecisionCounts()
	snap := &session.Snapshot{
		SessionID:     e.meta.SessionID,
		Library:       e.cfg.Library,
		CurrentIndex:  e.feed.CurrentIndex(),
		BackwardLimit: e.feed.BackwardLimit(),
		WindowLen:     e.feed.WindowLen(),
		Kept:          kept,
		Deleted:       deleted,
		SeenOnly:      seenOnly,
	}
	e.mu.Unlock()

	if err := session.Save(e.cfg.SnapshotPath, snap); err != nil {
		e.logger.Warn("session snapshot write failed", map[string]any{"error": err.Error()})
	}
}

// publish sends a decision event downstream, best-effort.
func (e *Engine) publish(ref types.AssetRef, d types.Decision, index, remaining int) {
	if e.publisher == nil {
		return
	}
	event := &adapter.DecisionEvent{
		SchemaVersion: adapter.SchemaVersion,
		EventType:     adapter.EventTypeDecisionRecorded,
		SessionID:     e.meta.SessionID,
		Library:       e.cfg.Library,
		AssetID:       ref.ID,
		MediaKind:     string(ref.Kind),
		Decision:      string(d),
		ToTrash:       d.ToTrash(),
		Index:         index,
		Remaining:     remaining,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := e.publisher.Publish(ctx, event); err != nil {
			e.logger.Warn("decision publish failed", map[string]any{
				"asset": ref.ID,
				"error": err.Error(),
			})
		}
	}()
}

// Finish absorbs component stats, persists the final snapshot, and
// returns the session metrics. The engine must not be used after.
func (e *Engine) Finish() metrics.Snapshot {
	e.sched.CancelAll()

	ps := e.sched.Stats()
	e.collector.AbsorbPreloadStats(ps.Issued, ps.Completed, ps.Cancelled, ps.Failed)
	cs := e.media.Stats()
	e.collector.AbsorbCacheStats(cs.Hits, cs.Misses, cs.Evictions)

	e.persistSnapshot()

	if e.publisher != nil {
		if err := e.publisher.Close(); err != nil {
			e.logger.Warn("adapter close failed", map[string]any{"error": err.Error()})
		}
	}
	return e.collector.Snapshot()
}

// Package feed implements the windowed feed state machine: the single
// source of truth for what the user is looking at and what has been
// decided so far.
//
// The machine owns the paginated window over the full ordered asset
// list, the per-item tracker map, the current index, and the backward
// navigation limit. It is a single-owner state holder: all mutation
// must happen on one goroutine (the engine event loop). AssetSource
// and DecisionStore calls are the only suspension points.
package feed

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/pithecene-io/sift/log"
	"github.com/pithecene-io/sift/types"
)

// Default tuning constants.
const (
	// DefaultInitialBatch is the number of items materialized at load.
	DefaultInitialBatch = 20
	// DefaultBackfillBatch is the number of items appended per backfill.
	DefaultBackfillBatch = 20
	// DefaultBufferThreshold is the remaining-buffer size at or below
	// which a backfill is attempted.
	DefaultBufferThreshold = 3
	// DefaultMaxBackwardNavigation bounds how far behind the playhead
	// the user can navigate back (the undo window).
	DefaultMaxBackwardNavigation = 12
)

// Source resolves a query into an ordered list of asset descriptors.
// May be slow; implementations must respect context cancellation.
type Source interface {
	Fetch(ctx context.Context, q types.Query) ([]types.AssetRef, error)
}

// DecisionStore is the durable record of resolved asset identifiers.
// RecordSeen marks "seen, not decided" bookkeeping: the asset is
// excluded from future fetches without counting as kept or deleted.
type DecisionStore interface {
	DecidedIDs(ctx context.Context) (map[string]struct{}, error)
	RecordDecision(ctx context.Context, assetID string, toTrash bool) error
	RecordSeen(ctx context.Context, assetID string) error
}

// Config holds feed machine tuning. Zero values fall back to defaults.
type Config struct {
	InitialBatch          int
	BackfillBatch         int
	BufferThreshold       int
	MaxBackwardNavigation int
	// Clock overrides time.Now for tracker timestamps (tests).
	Clock func() time.Time
}

func (c Config) withDefaults() Config {
	if c.InitialBatch <= 0 {
		c.InitialBatch = DefaultInitialBatch
	}
	if c.BackfillBatch <= 0 {
		c.BackfillBatch = DefaultBackfillBatch
	}
	if c.BufferThreshold <= 0 {
		c.BufferThreshold = DefaultBufferThreshold
	}
	if c.MaxBackwardNavigation <= 0 {
		c.MaxBackwardNavigation = DefaultMaxBackwardNavigation
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

// Phase is the machine's terminal-display state.
type Phase int

// Phase constants.
const (
	// PhaseIdle means Load has not completed yet.
	PhaseIdle Phase = iota
	// PhaseBrowsing is the normal interactive state.
	PhaseBrowsing
	// PhaseEmpty means the source returned zero items.
	PhaseEmpty
	// PhaseAllDecided means the source returned items but every one
	// of them was already resolved. Distinct from PhaseEmpty: the UI
	// shows a "library fully triaged" state, not "nothing here".
	PhaseAllDecided
)

// String returns the phase name for logs.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseBrowsing:
		return "browsing"
	case PhaseEmpty:
		return "empty"
	case PhaseAllDecided:
		return "all_decided"
	default:
		return "unknown"
	}
}

// Signal is the outcome of a navigation operation. Signals are policy
// boundaries, not errors: they drive UI feedback paths.
type Signal int

// Signal constants.
const (
	SignalNone Signal = iota
	SignalAdvanced
	SignalRetreated
	// SignalEndOfFeed means forward navigation hit the last loaded
	// and available item, after one backfill attempt.
	SignalEndOfFeed
	// SignalBackwardLimit means backward navigation hit the undo
	// boundary. The index did not move.
	SignalBackwardLimit
)

// String returns the signal name for logs.
func (s Signal) String() string {
	switch s {
	case SignalNone:
		return "none"
	case SignalAdvanced:
		return "advanced"
	case SignalRetreated:
		return "retreated"
	case SignalEndOfFeed:
		return "end_of_feed"
	case SignalBackwardLimit:
		return "backward_limit"
	default:
		return "unknown"
	}
}

// Machine is the feed state machine.
//
// Not safe for concurrent use: the engine serializes all calls onto
// one goroutine. Collaborator calls (Source, DecisionStore) may block.
type Machine struct {
	cfg    Config
	source Source
	store  DecisionStore
	logger *log.Logger

	phase Phase
	query types.Query

	// raw is the full source result, before subtracting resolved IDs.
	// Kept so Restart can recompute the undecided subset without
	// re-enumerating the source.
	raw []types.AssetRef
	// all is the undecided ordered result for this session.
	all []types.AssetRef
	// paginated is the materialized prefix of all, grown by backfill.
	paginated []types.AssetRef
	// inWindow guards the at-most-once delivery of each asset ID
	// into paginated.
	inWindow map[string]struct{}
	// cursor is the index into all of the next item to materialize.
	cursor int

	current       int
	backwardLimit int
	trackers      map[string]*types.ItemTracker
}

// New creates a feed machine. logger may be nil.
func New(cfg Config, source Source, store DecisionStore, logger *log.Logger) *Machine {
	if logger == nil {
		logger = log.Nop()
	}
	return &Machine{
		cfg:      cfg.withDefaults(),
		source:   source,
		store:    store,
		logger:   logger,
		trackers: make(map[string]*types.ItemTracker),
		inWindow: make(map[string]struct{}),
	}
}

// Load fetches the full ordered result for the query, subtracts
// identifiers already resolved in the DecisionStore, and seeds the
// paginated window with the initial batch.
//
// A source failure is returned wrapped in ErrSourceUnavailable; the
// machine stays in its previous phase and Load may be retried.
func (m *Machine) Load(ctx context.Context, q types.Query) error {
	raw, err := m.source.Fetch(ctx, q)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrSourceUnavailable, err)
	}

	resolved, err := m.store.DecidedIDs(ctx)
	if err != nil {
		return fmt.Errorf("read decision store: %w", err)
	}

	m.query = q
	m.raw = raw
	m.trackers = make(map[string]*types.ItemTracker)
	m.reseed(dedupe(raw), resolved, false)

	m.logger.Info("feed loaded", map[string]any{
		"raw":       len(m.raw),
		"undecided": len(m.all),
		"window":    len(m.paginated),
		"phase":     m.phase.String(),
	})
	return nil
}

// reseed rebuilds all/paginated/index state from a raw ordered list
// and a resolved-ID set. Shared by Load and Restart.
func (m *Machine) reseed(raw []types.AssetRef, resolved map[string]struct{}, shuffled bool) {
	m.all = m.all[:0]
	for _, ref := range raw {
		if _, ok := resolved[ref.ID]; ok {
			continue
		}
		m.all = append(m.all, ref)
	}
	if shuffled {
		rand.Shuffle(len(m.all), func(i, j int) {
			m.all[i], m.all[j] = m.all[j], m.all[i]
		})
	}

	m.paginated = m.paginated[:0]
	m.inWindow = make(map[string]struct{})
	m.cursor = 0
	m.current = 0
	m.backwardLimit = 0

	switch {
	case len(raw) == 0:
		m.phase = PhaseEmpty
		return
	case len(m.all) == 0:
		m.phase = PhaseAllDecided
		return
	}

	m.phase = PhaseBrowsing
	n := min(m.cfg.InitialBatch, len(m.all))
	for m.cursor < n {
		m.appendFromCursor()
	}
}

// appendFromCursor materializes all[cursor] into paginated, skipping
// duplicates. Caller checks cursor < len(all).
func (m *Machine) appendFromCursor() {
	ref := m.all[m.cursor]
	m.cursor++
	if _, dup := m.inWindow[ref.ID]; dup {
		return
	}
	m.inWindow[ref.ID] = struct{}{}
	m.paginated = append(m.paginated, ref)
}

// Advance moves the playhead forward by one. If the playhead is on
// the last materialized item, one backfill is attempted before
// declaring end-of-feed. Never wraps.
func (m *Machine) Advance(ctx context.Context) Signal {
	if m.phase != PhaseBrowsing || len(m.paginated) == 0 {
		return SignalNone
	}

	if m.current+1 >= len(m.paginated) {
		if _, err := m.backfill(ctx, true); err != nil {
			m.logger.Warn("backfill before end-of-feed failed", map[string]any{"error": err.Error()})
		}
		if m.current+1 >= len(m.paginated) {
			return SignalEndOfFeed
		}
	}

	// Ordering: index move, then backward-limit recompute, then
	// steady-state backfill.
	m.current++
	m.backwardLimit = max(m.backwardLimit, m.current-m.cfg.MaxBackwardNavigation)
	if _, err := m.backfill(ctx, false); err != nil {
		m.logger.Warn("backfill failed", map[string]any{"error": err.Error()})
	}
	return SignalAdvanced
}

// Retreat moves the playhead back by one, bounded by the backward
// limit. At the boundary it reports SignalBackwardLimit and does not
// move.
func (m *Machine) Retreat() Signal {
	if m.phase != PhaseBrowsing || len(m.paginated) == 0 {
		return SignalNone
	}
	if m.current <= m.backwardLimit {
		return SignalBackwardLimit
	}
	m.current--
	return SignalRetreated
}

// RecordDecision marks the current item kept or deleted, notifies the
// DecisionStore, and advances. A decision on an item whose tracker is
// already decided is not re-recorded (no double count); the advance
// still happens so a stuck caller cannot wedge the feed.
func (m *Machine) RecordDecision(ctx context.Context, d types.Decision) (Signal, error) {
	if !d.Decided() {
		return SignalNone, fmt.Errorf("record decision: %q is not a decision", d)
	}
	ref, ok := m.Current()
	if !ok {
		return SignalNone, types.ErrInvalidIndex
	}

	t := m.tracker(ref.ID)
	if t.Decision.Decided() {
		m.logger.Debug("duplicate decision ignored", map[string]any{"asset": ref.ID})
		return m.Advance(ctx), nil
	}

	t.Decision = d
	t.HasBeenSeen = true
	t.LastViewedAt = m.cfg.Clock()

	if err := m.store.RecordDecision(ctx, ref.ID, d.ToTrash()); err != nil {
		// Persistence failure must not tear down the session; the
		// in-memory tracker is authoritative until the next load.
		m.logger.Warn("decision store write failed", map[string]any{
			"asset": ref.ID,
			"error": err.Error(),
		})
	}

	return m.Advance(ctx), nil
}

// MarkSeen records that the current item was viewed without deciding
// it. Used by vertical (navigation-only) movement. The DecisionStore
// is notified as a seen-not-decided fact; this does not consume a
// decision unit.
func (m *Machine) MarkSeen(ctx context.Context) {
	ref, ok := m.Current()
	if !ok {
		return
	}
	t := m.tracker(ref.ID)
	t.HasBeenSeen = true
	t.LastViewedAt = m.cfg.Clock()

	if err := m.store.RecordSeen(ctx, ref.ID); err != nil {
		m.logger.Warn("seen bookkeeping write failed", map[string]any{
			"asset": ref.ID,
			"error": err.Error(),
		})
	}
}

// Backfill extends the paginated window when the remaining buffer is
// at or below the threshold. Each batch is re-filtered against the
// DecisionStore because decisions may land from other sessions
// concurrently. Returns the number of items appended.
func (m *Machine) Backfill(ctx context.Context) (int, error) {
	return m.backfill(ctx, false)
}

// backfill implements Backfill. force skips the buffer-threshold
// check; Advance uses it for the one mandatory attempt before
// declaring end-of-feed.
func (m *Machine) backfill(ctx context.Context, force bool) (int, error) {
	if m.phase != PhaseBrowsing {
		return 0, nil
	}
	if m.cursor >= len(m.all) {
		return 0, nil
	}
	if !force && len(m.paginated)-m.current > m.cfg.BufferThreshold {
		return 0, nil
	}

	resolved, err := m.store.DecidedIDs(ctx)
	if err != nil {
		// Non-fatal: the window simply does not grow.
		return 0, fmt.Errorf("read decision store: %w", err)
	}

	appended := 0
	for appended < m.cfg.BackfillBatch && m.cursor < len(m.all) {
		ref := m.all[m.cursor]
		if _, ok := resolved[ref.ID]; ok {
			// Resolved elsewhere since load; skip without
			// materializing.
			m.cursor++
			continue
		}
		before := len(m.paginated)
		m.appendFromCursor()
		if len(m.paginated) > before {
			appended++
		}
	}

	if appended > 0 {
		m.logger.Debug("backfilled", map[string]any{
			"appended": appended,
			"window":   len(m.paginated),
		})
	}
	return appended, nil
}

// Restart clears all trackers, recomputes the undecided subset of the
// loaded result, optionally shuffles it, and re-seeds pagination from
// index zero. Used for "go through everything again".
func (m *Machine) Restart(ctx context.Context, shuffled bool) error {
	if m.raw == nil {
		return fmt.Errorf("restart before load")
	}
	resolved, err := m.store.DecidedIDs(ctx)
	if err != nil {
		return fmt.Errorf("read decision store: %w", err)
	}
	m.trackers = make(map[string]*types.ItemTracker)
	m.reseed(dedupe(m.raw), resolved, shuffled)
	m.logger.Info("feed restarted", map[string]any{
		"undecided": len(m.all),
		"shuffled":  shuffled,
		"phase":     m.phase.String(),
	})
	return nil
}

// RemoveCurrent pulls the asset at the playhead out of the paginated
// window entirely. Distinct from a decision: trackers and the
// DecisionStore are untouched. The index is clamped into range and a
// backfill is attempted if the window drained.
func (m *Machine) RemoveCurrent(ctx context.Context) {
	if m.phase != PhaseBrowsing || len(m.paginated) == 0 {
		return
	}
	m.paginated = append(m.paginated[:m.current], m.paginated[m.current+1:]...)
	if m.current >= len(m.paginated) && m.current > 0 {
		m.current = len(m.paginated) - 1
	}
	if m.backwardLimit > m.current {
		m.backwardLimit = m.current
	}
	if len(m.paginated) == 0 {
		m.current = 0
		if _, err := m.backfill(ctx, true); err != nil {
			m.logger.Warn("backfill after removal failed", map[string]any{"error": err.Error()})
		}
	}
}

// tracker returns the tracker for an asset ID, creating it lazily
// with all-false defaults on first access.
func (m *Machine) tracker(id string) *types.ItemTracker {
	t, ok := m.trackers[id]
	if !ok {
		t = &types.ItemTracker{}
		m.trackers[id] = t
	}
	return t
}

// Phase returns the machine's display phase.
func (m *Machine) Phase() Phase { return m.phase }

// Current returns the asset at the playhead, if any.
func (m *Machine) Current() (types.AssetRef, bool) {
	if m.phase != PhaseBrowsing || m.current < 0 || m.current >= len(m.paginated) {
		return types.AssetRef{}, false
	}
	return m.paginated[m.current], true
}

// CurrentIndex returns the playhead index.
func (m *Machine) CurrentIndex() int { return m.current }

// BackwardLimit returns the oldest index reachable via Retreat.
func (m *Machine) BackwardLimit() int { return m.backwardLimit }

// Window returns a copy of the materialized (paginated) items.
func (m *Machine) Window() []types.AssetRef {
	out := make([]types.AssetRef, len(m.paginated))
	copy(out, m.paginated)
	return out
}

// WindowLen returns the materialized item count without copying.
func (m *Machine) WindowLen() int { return len(m.paginated) }

// UndecidedTotal returns the session's full undecided item count.
func (m *Machine) UndecidedTotal() int { return len(m.all) }

// Tracker returns a copy of the tracker for an asset ID. The second
// return is false if the asset was never touched this session.
func (m *Machine) Tracker(id string) (types.ItemTracker, bool) {
	t, ok := m.trackers[id]
	if !ok {
		return types.ItemTracker{}, false
	}
	return *t, true
}

// DecisionCounts tallies this session's tracker decisions.
func (m *Machine) DecisionCounts() (kept, deleted, seenOnly int) {
	for _, t := range m.trackers {
		switch {
		case t.Decision == types.DecisionKept:
			kept++
		case t.Decision == types.DecisionDeleted:
			deleted++
		case t.HasBeenSeen:
			seenOnly++
		}
	}
	return kept, deleted, seenOnly
}

// dedupe drops repeated asset IDs, keeping first occurrence order.
func dedupe(refs []types.AssetRef) []types.AssetRef {
	seen := make(map[string]struct{}, len(refs))
	out := make([]types.AssetRef, 0, len(refs))
	for _, ref := range refs {
		if _, ok := seen[ref.ID]; ok {
			continue
		}
		seen[ref.ID] = struct{}{}
		out = append(out, ref)
	}
	return out
}

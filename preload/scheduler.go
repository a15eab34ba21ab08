// Package preload implements the tiered, distance-based preload
// scheduler: for a bounded window around the playhead it assigns each
// nearby item a quality tier and keeps the media cache warm.
//
// Planning is a pure function (Plan); execution (Scheduler.Apply) is
// a bounded worker pool with per-pair cancellation. Requests carry no
// relative ordering guarantee except that the current item is issued
// first within a pass.
package preload

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/pithecene-io/sift/log"
	"github.com/pithecene-io/sift/types"
)

// Default tuning constants.
const (
	// DefaultBackSpan is how many items behind the playhead stay warm.
	DefaultBackSpan = 2
	// DefaultForwardSpan is how many items ahead of the playhead stay
	// warm. The narrow window is the steady-state design; widening it
	// trades memory for smoothness.
	DefaultForwardSpan = 3
	// DefaultParallel bounds concurrent cache fetches.
	DefaultParallel = 3
)

// Cache resolves (asset, tier) into resident content. Request is
// idempotent: asking for a tier already resident or in flight returns
// without refetching. Implementations must respect ctx cancellation.
type Cache interface {
	Request(ctx context.Context, ref types.AssetRef, tier types.Tier) error
}

// Config holds scheduler tuning. Zero values fall back to defaults.
type Config struct {
	BackSpan    int
	ForwardSpan int
	Parallel    int
}

func (c Config) withDefaults() Config {
	if c.BackSpan <= 0 {
		c.BackSpan = DefaultBackSpan
	}
	if c.ForwardSpan <= 0 {
		c.ForwardSpan = DefaultForwardSpan
	}
	if c.Parallel <= 0 {
		c.Parallel = DefaultParallel
	}
	return c
}

// Request is one (asset, tier) unit of preload work.
type Request struct {
	Ref      types.AssetRef
	Tier     types.Tier
	Distance int
	// Current marks the playhead item: its failure is surfaced
	// instead of silent, and it is issued first within a pass.
	Current bool
}

// TierFor assigns the quality tier for an item at the given distance
// from the playhead.
//
// Videos at distance 1-2 stay at full quality while images drop to
// preview: re-fetching full video when the user lands on it shows up
// as stutter, which is far more visible than the memory cost of
// keeping a couple of videos warm.
func TierFor(distance int, kind types.MediaKind) types.Tier {
	switch {
	case distance == 0:
		return types.TierFull
	case distance <= 2:
		if kind == types.MediaKindVideo {
			return types.TierFull
		}
		return types.TierPreview
	default:
		return types.TierThumbnail
	}
}

// Plan computes the preload requests for one window pass: the current
// item first, then neighbors by increasing distance. The window is
// [max(backwardLimit, current-BackSpan), min(current+ForwardSpan+1,
// len(window))), so the pass size is bounded by BackSpan+ForwardSpan+1
// regardless of collection size.
func Plan(window []types.AssetRef, currentIndex, backwardLimit int, cfg Config) []Request {
	cfg = cfg.withDefaults()
	if currentIndex < 0 || currentIndex >= len(window) {
		return nil
	}

	lo := max(backwardLimit, currentIndex-cfg.BackSpan)
	if lo < 0 {
		lo = 0
	}
	hi := min(currentIndex+cfg.ForwardSpan+1, len(window))

	plan := make([]Request, 0, hi-lo)
	add := func(idx int) {
		ref := window[idx]
		d := idx - currentIndex
		if d < 0 {
			d = -d
		}
		plan = append(plan, Request{
			Ref:      ref,
			Tier:     TierFor(d, ref.Kind),
			Distance: d,
			Current:  d == 0,
		})
	}

	add(currentIndex)
	for d := 1; ; d++ {
		before, after := currentIndex-d, currentIndex+d
		if before < lo && after >= hi {
			break
		}
		if after < hi {
			add(after)
		}
		if before >= lo {
			add(before)
		}
	}
	return plan
}

// Stats is a snapshot of scheduler counters.
type Stats struct {
	Issued          int64
	Completed       int64
	Cancelled       int64
	Failed          int64
	CurrentFailures int64
}

type pairKey struct {
	id   string
	tier types.Tier
}

// flight tracks one in-flight pair. Identity matters: a pair can be
// cancelled and re-issued under the same key, and the stale worker
// must not clean up the replacement's entry.
type flight struct {
	cancel context.CancelFunc
}

// Scheduler executes preload plans against a cache with bounded
// concurrency. Safe for concurrent use, though passes normally come
// from the single engine goroutine.
type Scheduler struct {
	cfg    Config
	cache  Cache
	logger *log.Logger

	// OnCurrentError is invoked when the playhead item's fetch fails,
	// so the UI can show a retry affordance. Failures for non-current
	// items are silent: the pair is retried on the next pass.
	OnCurrentError func(assetID string, err error)

	mu       sync.Mutex
	inflight map[pairKey]*flight

	issued          atomic.Int64
	completed       atomic.Int64
	cancelled       atomic.Int64
	failed          atomic.Int64
	currentFailures atomic.Int64
}

// NewScheduler creates a scheduler. logger may be nil.
func NewScheduler(cfg Config, cache Cache, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Nop()
	}
	return &Scheduler{
		cfg:      cfg.withDefaults(),
		cache:    cache,
		logger:   logger,
		inflight: make(map[pairKey]*flight),
	}
}

// Apply reconciles in-flight work with a new plan: pairs that left
// the window are cancelled outright, pairs already in flight are left
// alone (submission is idempotent), and new pairs are issued through
// a bounded worker pool in plan order. Apply returns once the pass is
// queued; fetches complete asynchronously.
func (s *Scheduler) Apply(ctx context.Context, plan []Request) {
	desired := make(map[pairKey]struct{}, len(plan))
	for _, r := range plan {
		desired[pairKey{r.Ref.ID, r.Tier}] = struct{}{}
	}

	s.mu.Lock()
	for k, fl := range s.inflight {
		if _, keep := desired[k]; !keep {
			fl.cancel()
			delete(s.inflight, k)
			s.cancelled.Add(1)
		}
	}

	type unit struct {
		req Request
		ctx context.Context
		fl  *flight
	}
	launch := make([]unit, 0, len(plan))
	for _, r := range plan {
		k := pairKey{r.Ref.ID, r.Tier}
		if _, running := s.inflight[k]; running {
			continue
		}
		reqCtx, cancel := context.WithCancel(ctx)
		fl := &flight{cancel: cancel}
		s.inflight[k] = fl
		launch = append(launch, unit{req: r, ctx: reqCtx, fl: fl})
		s.issued.Add(1)
	}
	s.mu.Unlock()

	if len(launch) == 0 {
		return
	}

	// Workers drain an ordered queue, so the current item (first in
	// the plan) is issued before neighbor prefetches.
	queue := make(chan unit, len(launch))
	for _, u := range launch {
		queue <- u
	}
	close(queue)

	workers := min(s.cfg.Parallel, len(launch))
	for w := 0; w < workers; w++ {
		go func() {
			for u := range queue {
				s.run(u.ctx, u.req, u.fl)
			}
		}()
	}
}

// run executes one preload unit and settles its bookkeeping.
func (s *Scheduler) run(ctx context.Context, req Request, fl *flight) {
	err := s.cache.Request(ctx, req.Ref, req.Tier)

	k := pairKey{req.Ref.ID, req.Tier}
	s.mu.Lock()
	if cur, ok := s.inflight[k]; ok && cur == fl {
		delete(s.inflight, k)
	}
	s.mu.Unlock()

	switch {
	case err == nil:
		s.completed.Add(1)
	case errors.Is(err, context.Canceled):
		// Cancellation was already counted by Apply.
	default:
		s.failed.Add(1)
		if req.Current {
			s.currentFailures.Add(1)
			s.logger.Warn("current item preload failed", map[string]any{
				"asset": req.Ref.ID,
				"tier":  req.Tier.String(),
				"error": err.Error(),
			})
			if s.OnCurrentError != nil {
				s.OnCurrentError(req.Ref.ID, err)
			}
		} else {
			s.logger.Debug("neighbor preload failed", map[string]any{
				"asset": req.Ref.ID,
				"tier":  req.Tier.String(),
			})
		}
	}
}

// CancelAll cancels every in-flight pair. Used on suspend.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, fl := range s.inflight {
		fl.cancel()
		delete(s.inflight, k)
		s.cancelled.Add(1)
	}
}

// InflightCount returns the number of pairs currently in flight.
func (s *Scheduler) InflightCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}

// Stats returns a snapshot of the scheduler counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Issued:          s.issued.Load(),
		Completed:       s.completed.Load(),
		Cancelled:       s.cancelled.Load(),
		Failed:          s.failed.Load(),
		CurrentFailures: s.currentFailures.Load(),
	}
}

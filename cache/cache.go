// Package cache implements tiered in-memory media residency. Each
// quality tier gets its own LRU, so a burst of thumbnail prefetches
// can never evict the full-quality content under the playhead.
//
// The cache pulls content through an injected Fetcher and tracks a
// per-(asset, tier) load state the UI can render: loading spinner,
// retry affordance for network failures, and so on.
package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pithecene-io/sift/log"
	"github.com/pithecene-io/sift/types"
)

// DefaultPerTierCapacity bounds each tier's LRU entry count.
const DefaultPerTierCapacity = 64

// Fetcher retrieves encoded media content for one (asset, tier) pair.
// Implementations must respect ctx cancellation and should classify
// failures with types.NewFetchError.
type Fetcher interface {
	FetchMedia(ctx context.Context, ref types.AssetRef, tier types.Tier) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, ref types.AssetRef, tier types.Tier) ([]byte, error)

// FetchMedia calls f.
func (f FetcherFunc) FetchMedia(ctx context.Context, ref types.AssetRef, tier types.Tier) ([]byte, error) {
	return f(ctx, ref, tier)
}

// LoadState describes where a (asset, tier) pair is in its lifecycle.
type LoadState int

// LoadState constants.
const (
	StateIdle LoadState = iota
	StateLoading
	StateReady
	// StateNetworkError and StateTimeoutError are kept distinct from
	// StateFailed so the UI can offer retry for transient failures.
	StateNetworkError
	StateTimeoutError
	StateFailed
)

// String returns the state name for logs.
func (s LoadState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateNetworkError:
		return "network_error"
	case StateTimeoutError:
		return "timeout_error"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Fetches   int64
	Failures  int64
	Evictions int64
}

// Config holds cache tuning. Zero values fall back to defaults.
type Config struct {
	PerTierCapacity int
}

func (c Config) withDefaults() Config {
	if c.PerTierCapacity <= 0 {
		c.PerTierCapacity = DefaultPerTierCapacity
	}
	return c
}

type pairKey struct {
	id   string
	tier types.Tier
}

// loadOp is one in-flight fetch. Waiters block on done.
type loadOp struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Memory is the in-memory tiered cache. Safe for concurrent use.
type Memory struct {
	cfg     Config
	fetcher Fetcher
	logger  *log.Logger

	mu        sync.Mutex
	tiers     map[types.Tier]*lru.Cache[string, []byte]
	loading   map[pairKey]*loadOp
	states    map[pairKey]LoadState
	suspended bool

	hits      atomic.Int64
	misses    atomic.Int64
	fetches   atomic.Int64
	failures  atomic.Int64
	evictions atomic.Int64
}

// NewMemory creates a tiered cache pulling through fetcher.
// logger may be nil.
func NewMemory(cfg Config, fetcher Fetcher, logger *log.Logger) (*Memory, error) {
	if fetcher == nil {
		return nil, errors.New("cache: fetcher is required")
	}
	if logger == nil {
		logger = log.Nop()
	}
	m := &Memory{
		cfg:     cfg.withDefaults(),
		fetcher: fetcher,
		logger:  logger,
		tiers:   make(map[types.Tier]*lru.Cache[string, []byte], 3),
		loading: make(map[pairKey]*loadOp),
		states:  make(map[pairKey]LoadState),
	}
	for _, tier := range []types.Tier{types.TierThumbnail, types.TierPreview, types.TierFull} {
		tier := tier
		// The callback runs synchronously inside Add/Remove, which are
		// only ever called with m.mu held, so it must not lock.
		c, err := lru.NewWithEvict[string, []byte](m.cfg.PerTierCapacity, func(id string, _ []byte) {
			m.evictions.Add(1)
			k := pairKey{id, tier}
			if _, running := m.loading[k]; !running {
				delete(m.states, k)
			}
		})
		if err != nil {
			return nil, err
		}
		m.tiers[tier] = c
	}
	return m, nil
}

// Request ensures (ref, tier) is resident, fetching if needed. It is
// idempotent: a resident pair returns immediately and a pair already
// in flight joins the existing fetch. While suspended, Request is a
// no-op.
func (m *Memory) Request(ctx context.Context, ref types.AssetRef, tier types.Tier) error {
	k := pairKey{ref.ID, tier}

	m.mu.Lock()
	if m.suspended {
		m.mu.Unlock()
		return nil
	}
	if _, ok := m.tiers[tier].Get(ref.ID); ok {
		m.states[k] = StateReady
		m.mu.Unlock()
		m.hits.Add(1)
		return nil
	}
	if op, running := m.loading[k]; running {
		m.mu.Unlock()
		select {
		case <-op.done:
			return op.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	op := &loadOp{cancel: cancel, done: make(chan struct{})}
	m.loading[k] = op
	m.states[k] = StateLoading
	m.mu.Unlock()

	m.misses.Add(1)
	m.fetches.Add(1)

	data, err := m.fetcher.FetchMedia(fetchCtx, ref, tier)
	cancel()

	m.mu.Lock()
	if cur, ok := m.loading[k]; ok && cur == op {
		delete(m.loading, k)
	}
	if err == nil {
		m.tiers[tier].Add(ref.ID, data)
		m.states[k] = StateReady
	} else {
		m.states[k] = classify(err)
	}
	m.mu.Unlock()

	if err != nil {
		m.failures.Add(1)
		if !errors.Is(err, context.Canceled) {
			m.logger.Debug("media fetch failed", map[string]any{
				"asset": ref.ID,
				"tier":  tier.String(),
				"state": classify(err).String(),
			})
		}
	}

	op.err = err
	close(op.done)
	return err
}

// classify maps a fetch failure to a load state.
func classify(err error) LoadState {
	switch {
	case errors.Is(err, context.Canceled):
		// Cancellation is not a failure; the pair can be re-requested.
		return StateIdle
	case errors.Is(err, types.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return StateTimeoutError
	case errors.Is(err, types.ErrNetwork):
		return StateNetworkError
	default:
		return StateFailed
	}
}

// State returns the load state for a (asset, tier) pair.
func (m *Memory) State(assetID string, tier types.Tier) LoadState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.states[pairKey{assetID, tier}]; ok {
		return s
	}
	return StateIdle
}

// Get returns resident content at exactly the given tier.
func (m *Memory) Get(assetID string, tier types.Tier) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tiers[tier].Get(assetID)
}

// BestAvailable returns the highest-quality resident content for an
// asset, walking full, then preview, then thumbnail. Showing a stale
// lower tier while the better one loads beats showing a spinner.
func (m *Memory) BestAvailable(assetID string) ([]byte, types.Tier, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tier := range []types.Tier{types.TierFull, types.TierPreview, types.TierThumbnail} {
		if data, ok := m.tiers[tier].Get(assetID); ok {
			return data, tier, true
		}
	}
	return nil, types.TierThumbnail, false
}

// Cancel aborts any in-flight fetches for the asset across all tiers.
// Resident content is untouched.
func (m *Memory) Cancel(assetID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, op := range m.loading {
		if k.id == assetID {
			op.cancel()
		}
	}
}

// Trim evicts every resident entry whose asset is not in keep. Called
// with the active window's IDs after large jumps (restart, remove) so
// memory tracks the window rather than the session's full history.
func (m *Memory) Trim(keep []string) {
	keepSet := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		keepSet[id] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.tiers {
		for _, id := range c.Keys() {
			if _, ok := keepSet[id]; !ok {
				c.Remove(id)
			}
		}
	}
}

// Suspend aborts in-flight fetches and makes new requests no-ops
// until Resume. Resident content survives so reactivation is instant.
func (m *Memory) Suspend() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suspended = true
	for _, op := range m.loading {
		op.cancel()
	}
}

// Resume re-enables fetching after a Suspend.
func (m *Memory) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suspended = false
}

// Suspended reports whether the cache is currently suspended.
func (m *Memory) Suspended() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suspended
}

// Stats returns a snapshot of the cache counters.
func (m *Memory) Stats() Stats {
	return Stats{
		Hits:      m.hits.Load(),
		Misses:    m.misses.Load(),
		Fetches:   m.fetches.Load(),
		Failures:  m.failures.Load(),
		Evictions: m.evictions.Load(),
	}
}

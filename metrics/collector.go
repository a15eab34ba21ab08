// Package metrics provides per-session metrics collection.
//
// The Collector accumulates counters during a single triage session.
// It is a leaf package with no internal dependencies. Preload and
// cache metrics are absorbed from their own stats snapshots at
// session completion rather than recorded live, avoiding
// double-counting.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all session metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after
// creation.
type Snapshot struct {
	// Session lifecycle
	SessionsStarted   int64
	SessionsRestarted int64

	// Decisions
	DecisionsKept    int64
	DecisionsDeleted int64
	DecisionsBlocked int64
	StoreWriteErrors int64

	// Navigation
	Advances          int64
	Retreats          int64
	BackwardLimitHits int64
	EndOfFeedHits     int64
	SourceErrors      int64

	// Preload (absorbed at session completion)
	PreloadIssued    int64
	PreloadCompleted int64
	PreloadCancelled int64
	PreloadFailed    int64

	// Cache (absorbed at session completion)
	CacheHits      int64
	CacheMisses    int64
	CacheEvictions int64

	// Dimensions (informational, set at construction)
	SourceBackend string
	StoreBackend  string
	SessionID     string
	Library       string
}

// Collector accumulates metrics during a single session.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver
// safe, so callers never guard metric calls.
type Collector struct {
	mu sync.Mutex

	sessionsStarted   int64
	sessionsRestarted int64

	decisionsKept    int64
	decisionsDeleted int64
	decisionsBlocked int64
	storeWriteErrors int64

	advances          int64
	retreats          int64
	backwardLimitHits int64
	endOfFeedHits     int64
	sourceErrors      int64

	preloadIssued    int64
	preloadCompleted int64
	preloadCancelled int64
	preloadFailed    int64

	cacheHits      int64
	cacheMisses    int64
	cacheEvictions int64

	sourceBackend string
	storeBackend  string
	sessionID     string
	library       string
}

// NewCollector creates a Collector with dimension labels. sessionID
// and library are optional dimensions.
func NewCollector(sourceBackend, storeBackend, sessionID, library string) *Collector {
	return &Collector{
		sourceBackend: sourceBackend,
		storeBackend:  storeBackend,
		sessionID:     sessionID,
		library:       library,
	}
}

// --- Session lifecycle ---

// IncSessionStarted records a session start.
func (c *Collector) IncSessionStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sessionsStarted++
	c.mu.Unlock()
}

// IncSessionRestarted records an in-place session restart.
func (c *Collector) IncSessionRestarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sessionsRestarted++
	c.mu.Unlock()
}

// --- Decisions ---

// IncDecisionKept records a committed keep decision.
func (c *Collector) IncDecisionKept() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.decisionsKept++
	c.mu.Unlock()
}

// IncDecisionDeleted records a committed delete decision.
func (c *Collector) IncDecisionDeleted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.decisionsDeleted++
	c.mu.Unlock()
}

// IncDecisionBlocked records a decision swipe rejected by the gate.
func (c *Collector) IncDecisionBlocked() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.decisionsBlocked++
	c.mu.Unlock()
}

// IncStoreWriteError records a decision store write failure.
func (c *Collector) IncStoreWriteError() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.storeWriteErrors++
	c.mu.Unlock()
}

// --- Navigation ---

// IncAdvance records a forward navigation.
func (c *Collector) IncAdvance() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.advances++
	c.mu.Unlock()
}

// IncRetreat records a backward navigation.
func (c *Collector) IncRetreat() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.retreats++
	c.mu.Unlock()
}

// IncBackwardLimitHit records a retreat stopped at the backward limit.
func (c *Collector) IncBackwardLimitHit() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.backwardLimitHits++
	c.mu.Unlock()
}

// IncEndOfFeedHit records an advance stopped at end of feed.
func (c *Collector) IncEndOfFeedHit() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.endOfFeedHits++
	c.mu.Unlock()
}

// IncSourceError records a failed source enumeration (load or
// backfill).
func (c *Collector) IncSourceError() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sourceErrors++
	c.mu.Unlock()
}

// --- Absorbed snapshots ---

// AbsorbPreloadStats copies scheduler counters into the collector.
// Called once at session completion with the final stats snapshot.
// Plain int64s keep this package free of a preload dependency.
func (c *Collector) AbsorbPreloadStats(issued, completed, cancelled, failed int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.preloadIssued = issued
	c.preloadCompleted = completed
	c.preloadCancelled = cancelled
	c.preloadFailed = failed
	c.mu.Unlock()
}

// AbsorbCacheStats copies cache counters into the collector. Called
// once at session completion with the final stats snapshot.
func (c *Collector) AbsorbCacheStats(hits, misses, evictions int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.cacheHits = hits
	c.cacheMisses = misses
	c.cacheEvictions = evictions
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
// The returned Snapshot is safe to read concurrently; the Collector
// can continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		SessionsStarted:   c.sessionsStarted,
		SessionsRestarted: c.sessionsRestarted,

		DecisionsKept:    c.decisionsKept,
		DecisionsDeleted: c.decisionsDeleted,
		DecisionsBlocked: c.decisionsBlocked,
		StoreWriteErrors: c.storeWriteErrors,

		Advances:          c.advances,
		Retreats:          c.retreats,
		BackwardLimitHits: c.backwardLimitHits,
		EndOfFeedHits:     c.endOfFeedHits,
		SourceErrors:      c.sourceErrors,

		PreloadIssued:    c.preloadIssued,
		PreloadCompleted: c.preloadCompleted,
		PreloadCancelled: c.preloadCancelled,
		PreloadFailed:    c.preloadFailed,

		CacheHits:      c.cacheHits,
		CacheMisses:    c.cacheMisses,
		CacheEvictions: c.cacheEvictions,

		SourceBackend: c.sourceBackend,
		StoreBackend:  c.storeBackend,
		SessionID:     c.sessionID,
		Library:       c.library,
	}
}

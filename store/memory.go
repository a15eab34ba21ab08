package store

import (
	"context"
	"sync"
)

// JournalEntry records one write against the memory store, in call
// order. Tests assert against the journal to verify idempotence.
type JournalEntry struct {
	Op      string // "decision" or "seen"
	AssetID string
	ToTrash bool
}

// Memory is an in-memory decision store for tests and demos.
// Safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	decided  map[string]bool // asset ID -> toTrash
	seenOnly map[string]struct{}
	journal  []JournalEntry
	err      error
}

// NewMemory creates an empty memory store.
func NewMemory() *Memory {
	return &Memory{
		decided:  make(map[string]bool),
		seenOnly: make(map[string]struct{}),
	}
}

// DecidedIDs returns every resolved identifier: decided assets plus
// seen-only bookkeeping rows.
func (m *Memory) DecidedIDs(ctx context.Context) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]struct{}, len(m.decided)+len(m.seenOnly))
	for id := range m.decided {
		out[id] = struct{}{}
	}
	for id := range m.seenOnly {
		out[id] = struct{}{}
	}
	return out, nil
}

// RecordDecision records a keep/delete verdict. A later decision on
// the same asset overwrites the bin (last write wins) and clears any
// seen-only row.
func (m *Memory) RecordDecision(ctx context.Context, assetID string, toTrash bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.decided[assetID] = toTrash
	delete(m.seenOnly, assetID)
	m.journal = append(m.journal, JournalEntry{Op: "decision", AssetID: assetID, ToTrash: toTrash})
	return nil
}

// RecordSeen records seen-not-decided bookkeeping. Never downgrades a
// decision.
func (m *Memory) RecordSeen(ctx context.Context, assetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, decided := m.decided[assetID]; !decided {
		m.seenOnly[assetID] = struct{}{}
	}
	m.journal = append(m.journal, JournalEntry{Op: "seen", AssetID: assetID})
	return nil
}

// Reset clears all rows.
func (m *Memory) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.decided = make(map[string]bool)
	m.seenOnly = make(map[string]struct{})
	return nil
}

// Counts partitions the store contents.
func (m *Memory) Counts(ctx context.Context) (Counts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Counts{}, m.err
	}
	var c Counts
	for _, toTrash := range m.decided {
		if toTrash {
			c.Deleted++
		} else {
			c.Kept++
		}
	}
	c.SeenOnly = int64(len(m.seenOnly))
	return c, nil
}

// Journal returns a copy of the write journal.
func (m *Memory) Journal() []JournalEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]JournalEntry, len(m.journal))
	copy(out, m.journal)
	return out
}

// DecisionWrites returns how many decision writes landed for assetID.
func (m *Memory) DecisionWrites(assetID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.journal {
		if e.Op == "decision" && e.AssetID == assetID {
			n++
		}
	}
	return n
}

// SetError makes subsequent calls fail with err. Pass nil to clear.
func (m *Memory) SetError(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

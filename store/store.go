// Package store provides DecisionStore implementations: the durable
// record of which assets have been resolved (kept, deleted, or merely
// seen) across triage sessions.
//
// Two backends are provided:
//   - Memory: test/demo stub with a call journal
//   - SQLite: durable swipe history via modernc.org/sqlite
//
// Both implement the feed.DecisionStore contract structurally.
package store

// Counts partitions the store's rows for stats surfaces.
type Counts struct {
	Kept     int64
	Deleted  int64
	SeenOnly int64
}

// Total returns the number of resolved identifiers (all partitions).
func (c Counts) Total() int64 { return c.Kept + c.Deleted + c.SeenOnly }

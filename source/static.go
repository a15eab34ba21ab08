package source

import (
	"context"
	"sync"

	"github.com/pithecene-io/sift/types"
)

// Static is an in-memory asset source for tests and demos. Fetch
// returns the configured refs (filtered by the query) and records the
// call count. An injected error is returned verbatim.
type Static struct {
	mu      sync.Mutex
	refs    []types.AssetRef
	err     error
	fetches int
}

// NewStatic creates a static source over the given refs.
func NewStatic(refs []types.AssetRef) *Static {
	return &Static{refs: refs}
}

// Fetch returns the configured refs filtered by the query.
func (s *Static) Fetch(ctx context.Context, q types.Query) ([]types.AssetRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if s.err != nil {
		return nil, s.err
	}
	return applyQuery(s.refs, q), nil
}

// SetError makes subsequent Fetch calls fail with err. Pass nil to
// clear.
func (s *Static) SetError(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Fetches returns how many times Fetch was called.
func (s *Static) Fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

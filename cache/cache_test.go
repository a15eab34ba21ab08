package cache_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pithecene-io/sift/cache"
	"github.com/pithecene-io/sift/types"
)

func ref(id string) types.AssetRef {
	return types.AssetRef{ID: id, Kind: types.MediaKindImage}
}

// countingFetcher serves deterministic content and counts fetches.
type countingFetcher struct {
	mu     sync.Mutex
	counts map[string]int
	errFor map[string]error
	block  chan struct{}
}

func newCountingFetcher() *countingFetcher {
	return &countingFetcher{counts: make(map[string]int), errFor: make(map[string]error)}
}

func (f *countingFetcher) FetchMedia(ctx context.Context, r types.AssetRef, tier types.Tier) ([]byte, error) {
	f.mu.Lock()
	key := r.ID + "@" + tier.String()
	f.counts[key]++
	block := f.block
	err := f.errFor[r.ID]
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return []byte(key), nil
}

func (f *countingFetcher) count(id string, tier types.Tier) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[id+"@"+tier.String()]
}

func newCache(t *testing.T, fetcher cache.Fetcher, cfg cache.Config) *cache.Memory {
	t.Helper()
	m, err := cache.NewMemory(cfg, fetcher, nil)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	return m
}

func TestRequest_FetchesOnceAndServesHits(t *testing.T) {
	f := newCountingFetcher()
	m := newCache(t, f, cache.Config{})

	for i := 0; i < 3; i++ {
		if err := m.Request(t.Context(), ref("a"), types.TierFull); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}

	if got := f.count("a", types.TierFull); got != 1 {
		t.Errorf("expected 1 fetch, got %d", got)
	}
	if got := m.State("a", types.TierFull); got != cache.StateReady {
		t.Errorf("expected ready, got %s", got)
	}

	data, ok := m.Get("a", types.TierFull)
	if !ok || string(data) != "a@full" {
		t.Errorf("unexpected content: %q ok=%v", data, ok)
	}

	st := m.Stats()
	if st.Fetches != 1 || st.Hits != 2 {
		t.Errorf("unexpected stats: %+v", st)
	}
}

func TestRequest_TiersAreIndependent(t *testing.T) {
	f := newCountingFetcher()
	m := newCache(t, f, cache.Config{})

	if err := m.Request(t.Context(), ref("a"), types.TierThumbnail); err != nil {
		t.Fatal(err)
	}
	if err := m.Request(t.Context(), ref("a"), types.TierFull); err != nil {
		t.Fatal(err)
	}

	if f.count("a", types.TierThumbnail) != 1 || f.count("a", types.TierFull) != 1 {
		t.Error("each tier must fetch independently")
	}
	if _, ok := m.Get("a", types.TierPreview); ok {
		t.Error("preview tier must not be resident")
	}
}

func TestRequest_ConcurrentWaitersJoinOneFetch(t *testing.T) {
	f := newCountingFetcher()
	f.block = make(chan struct{})
	m := newCache(t, f, cache.Config{})

	var wg sync.WaitGroup
	var errCount atomic.Int64
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.Request(t.Context(), ref("a"), types.TierFull); err != nil {
				errCount.Add(1)
			}
		}()
	}

	// Let the first request reach the fetcher, then unblock.
	deadline := time.Now().Add(2 * time.Second)
	for f.count("a", types.TierFull) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("fetch never started")
		}
		time.Sleep(time.Millisecond)
	}
	close(f.block)
	wg.Wait()

	if errCount.Load() != 0 {
		t.Errorf("expected all waiters to succeed, %d failed", errCount.Load())
	}
	if got := f.count("a", types.TierFull); got != 1 {
		t.Errorf("expected exactly 1 fetch, got %d", got)
	}
}

func TestState_Classification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want cache.LoadState
	}{
		{"network", types.NewFetchError(types.ErrNetwork, "a", types.TierFull, errors.New("conn refused")), cache.StateNetworkError},
		{"timeout", types.NewFetchError(types.ErrTimeout, "a", types.TierFull, errors.New("deadline")), cache.StateTimeoutError},
		{"deadline exceeded", context.DeadlineExceeded, cache.StateTimeoutError},
		{"decode", types.NewFetchError(types.ErrDecode, "a", types.TierFull, errors.New("bad frame")), cache.StateFailed},
		{"plain", errors.New("boom"), cache.StateFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newCountingFetcher()
			f.errFor["a"] = tc.err
			m := newCache(t, f, cache.Config{})

			if err := m.Request(t.Context(), ref("a"), types.TierFull); err == nil {
				t.Fatal("expected request to fail")
			}
			if got := m.State("a", types.TierFull); got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestState_CancelledLoadReturnsToIdle(t *testing.T) {
	f := newCountingFetcher()
	f.block = make(chan struct{})
	m := newCache(t, f, cache.Config{})

	done := make(chan error, 1)
	go func() { done <- m.Request(context.Background(), ref("a"), types.TierFull) }()

	deadline := time.Now().Add(2 * time.Second)
	for m.State("a", types.TierFull) != cache.StateLoading {
		if time.Now().After(deadline) {
			t.Fatal("load never started")
		}
		time.Sleep(time.Millisecond)
	}

	m.Cancel("a")
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := m.State("a", types.TierFull); got != cache.StateIdle {
		t.Errorf("expected idle after cancel, got %s", got)
	}

	// The pair is requestable again.
	close(f.block)
	if err := m.Request(t.Context(), ref("a"), types.TierFull); err != nil {
		t.Errorf("re-request after cancel: %v", err)
	}
}

func TestBestAvailable_PrefersHigherTier(t *testing.T) {
	f := newCountingFetcher()
	m := newCache(t, f, cache.Config{})

	if _, _, ok := m.BestAvailable("a"); ok {
		t.Fatal("expected nothing resident yet")
	}

	if err := m.Request(t.Context(), ref("a"), types.TierThumbnail); err != nil {
		t.Fatal(err)
	}
	if _, tier, ok := m.BestAvailable("a"); !ok || tier != types.TierThumbnail {
		t.Errorf("expected thumbnail, got %s ok=%v", tier, ok)
	}

	if err := m.Request(t.Context(), ref("a"), types.TierFull); err != nil {
		t.Fatal(err)
	}
	data, tier, ok := m.BestAvailable("a")
	if !ok || tier != types.TierFull {
		t.Errorf("expected full, got %s ok=%v", tier, ok)
	}
	if string(data) != "a@full" {
		t.Errorf("unexpected content: %q", data)
	}
}

func TestTrim_EvictsOutsideKeepSet(t *testing.T) {
	f := newCountingFetcher()
	m := newCache(t, f, cache.Config{})

	for _, id := range []string{"a", "b", "c"} {
		if err := m.Request(t.Context(), ref(id), types.TierFull); err != nil {
			t.Fatal(err)
		}
	}

	m.Trim([]string{"b"})

	if _, ok := m.Get("a", types.TierFull); ok {
		t.Error("a must be evicted")
	}
	if _, ok := m.Get("b", types.TierFull); !ok {
		t.Error("b must survive the trim")
	}
	if st := m.Stats(); st.Evictions != 2 {
		t.Errorf("expected 2 evictions, got %+v", st)
	}
}

func TestPerTierCapacityEvictsOldest(t *testing.T) {
	f := newCountingFetcher()
	m := newCache(t, f, cache.Config{PerTierCapacity: 2})

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("asset-%d", i)
		if err := m.Request(t.Context(), ref(id), types.TierFull); err != nil {
			t.Fatal(err)
		}
	}

	if _, ok := m.Get("asset-0", types.TierFull); ok {
		t.Error("oldest entry must be evicted at capacity")
	}
	if _, ok := m.Get("asset-2", types.TierFull); !ok {
		t.Error("newest entry must be resident")
	}
	// Eviction resets the pair's state so it can be re-requested.
	if got := m.State("asset-0", types.TierFull); got != cache.StateIdle {
		t.Errorf("expected idle after eviction, got %s", got)
	}
}

func TestSuspendResume(t *testing.T) {
	f := newCountingFetcher()
	m := newCache(t, f, cache.Config{})

	if err := m.Request(t.Context(), ref("a"), types.TierFull); err != nil {
		t.Fatal(err)
	}

	m.Suspend()
	if !m.Suspended() {
		t.Fatal("expected suspended")
	}
	if err := m.Request(t.Context(), ref("b"), types.TierFull); err != nil {
		t.Fatalf("suspended request must be a no-op, got %v", err)
	}
	if got := f.count("b", types.TierFull); got != 0 {
		t.Errorf("expected no fetch while suspended, got %d", got)
	}

	// Resident content survives suspension.
	if _, ok := m.Get("a", types.TierFull); !ok {
		t.Error("resident content must survive suspend")
	}

	m.Resume()
	if err := m.Request(t.Context(), ref("b"), types.TierFull); err != nil {
		t.Fatal(err)
	}
	if got := f.count("b", types.TierFull); got != 1 {
		t.Errorf("expected fetch after resume, got %d", got)
	}
}

func TestSuspend_AbortsInflightLoads(t *testing.T) {
	f := newCountingFetcher()
	f.block = make(chan struct{})
	m := newCache(t, f, cache.Config{})

	done := make(chan error, 1)
	go func() { done <- m.Request(context.Background(), ref("a"), types.TierFull) }()

	deadline := time.Now().Add(2 * time.Second)
	for m.State("a", types.TierFull) != cache.StateLoading {
		if time.Now().After(deadline) {
			t.Fatal("load never started")
		}
		time.Sleep(time.Millisecond)
	}

	m.Suspend()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("expected in-flight load aborted, got %v", err)
	}
}

package feed_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pithecene-io/sift/feed"
	"github.com/pithecene-io/sift/source"
	"github.com/pithecene-io/sift/store"
	"github.com/pithecene-io/sift/types"
)

func fixtureRefs(n int) []types.AssetRef {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	refs := make([]types.AssetRef, 0, n)
	for i := 0; i < n; i++ {
		kind := types.MediaKindImage
		if i%5 == 4 {
			kind = types.MediaKindVideo
		}
		refs = append(refs, types.AssetRef{
			ID:        fmt.Sprintf("asset-%03d", i),
			Kind:      kind,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	return refs
}

func loadedMachine(t *testing.T, n int, cfg feed.Config) (*feed.Machine, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	m := feed.New(cfg, source.NewStatic(fixtureRefs(n)), st, nil)
	if err := m.Load(t.Context(), types.Query{}); err != nil {
		t.Fatalf("load: %v", err)
	}
	return m, st
}

// checkIndexInvariant asserts 0 <= currentIndex < len(paginated)
// whenever the window is non-empty, and backwardLimit <= currentIndex.
func checkIndexInvariant(t *testing.T, m *feed.Machine) {
	t.Helper()
	if m.WindowLen() == 0 {
		return
	}
	i := m.CurrentIndex()
	if i < 0 || i >= m.WindowLen() {
		t.Fatalf("index invariant violated: index=%d window=%d", i, m.WindowLen())
	}
	if bl := m.BackwardLimit(); bl < 0 || bl > i {
		t.Fatalf("backward limit invariant violated: limit=%d index=%d", bl, i)
	}
}

func TestLoad_SeedsInitialBatch(t *testing.T) {
	m, _ := loadedMachine(t, 25, feed.Config{})

	if m.Phase() != feed.PhaseBrowsing {
		t.Fatalf("expected browsing, got %s", m.Phase())
	}
	if m.WindowLen() != 20 {
		t.Errorf("expected initial window of 20, got %d", m.WindowLen())
	}
	if m.CurrentIndex() != 0 {
		t.Errorf("expected index 0, got %d", m.CurrentIndex())
	}
	if m.UndecidedTotal() != 25 {
		t.Errorf("expected 25 undecided, got %d", m.UndecidedTotal())
	}
}

func TestLoad_EmptySourceIsEmptyPhase(t *testing.T) {
	m, _ := loadedMachine(t, 0, feed.Config{})
	if m.Phase() != feed.PhaseEmpty {
		t.Errorf("expected empty phase, got %s", m.Phase())
	}
}

func TestLoad_AllDecidedIsDistinctFromEmpty(t *testing.T) {
	st := store.NewMemory()
	refs := fixtureRefs(3)
	for _, ref := range refs {
		if err := st.RecordDecision(t.Context(), ref.ID, false); err != nil {
			t.Fatalf("seed store: %v", err)
		}
	}

	m := feed.New(feed.Config{}, source.NewStatic(refs), st, nil)
	if err := m.Load(t.Context(), types.Query{}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.Phase() != feed.PhaseAllDecided {
		t.Errorf("expected all-decided phase, got %s", m.Phase())
	}
	// No decisions were consumed entering the terminal state.
	if got := len(st.Journal()); got != 3 {
		t.Errorf("expected only the 3 seeded writes, got %d", got)
	}
}

func TestLoad_SourceFailureIsRetryable(t *testing.T) {
	src := source.NewStatic(fixtureRefs(5))
	src.SetError(errors.New("enumeration failed"))
	m := feed.New(feed.Config{}, src, store.NewMemory(), nil)

	err := m.Load(t.Context(), types.Query{})
	if !errors.Is(err, types.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
	if m.Phase() != feed.PhaseIdle {
		t.Errorf("expected idle phase after failed load, got %s", m.Phase())
	}

	src.SetError(nil)
	if err := m.Load(t.Context(), types.Query{}); err != nil {
		t.Fatalf("retry load: %v", err)
	}
	if m.Phase() != feed.PhaseBrowsing {
		t.Errorf("expected browsing after retry, got %s", m.Phase())
	}
}

// Scenario A: 25 unseen items, initial batch 20; after 17 advances a
// backfill must have occurred and the window holds all 25.
func TestScenarioA_BackfillKeepsBufferAhead(t *testing.T) {
	m, _ := loadedMachine(t, 25, feed.Config{})

	for i := 0; i < 17; i++ {
		if sig := m.Advance(t.Context()); sig != feed.SignalAdvanced {
			t.Fatalf("advance %d: expected advanced, got %s", i, sig)
		}
		checkIndexInvariant(t, m)
	}

	if m.WindowLen() != 25 {
		t.Errorf("expected window of 25 after backfill, got %d", m.WindowLen())
	}
	if m.CurrentIndex() != 17 {
		t.Errorf("expected index 17, got %d", m.CurrentIndex())
	}
}

func TestAdvance_EndOfFeedAfterOneBackfillAttempt(t *testing.T) {
	m, _ := loadedMachine(t, 5, feed.Config{})

	for i := 0; i < 4; i++ {
		if sig := m.Advance(t.Context()); sig != feed.SignalAdvanced {
			t.Fatalf("advance %d: expected advanced, got %s", i, sig)
		}
	}
	// Playhead on the last item of a fully materialized list.
	if sig := m.Advance(t.Context()); sig != feed.SignalEndOfFeed {
		t.Errorf("expected end-of-feed, got %s", sig)
	}
	if m.CurrentIndex() != 4 {
		t.Errorf("index must not move on end-of-feed, got %d", m.CurrentIndex())
	}
}

func TestAdvance_BackfillFailureReportsEndOfFeedEarly(t *testing.T) {
	m, st := loadedMachine(t, 25, feed.Config{InitialBatch: 5})
	st.SetError(errors.New("store offline"))

	for i := 0; i < 4; i++ {
		if sig := m.Advance(t.Context()); sig != feed.SignalAdvanced {
			t.Fatalf("advance %d: expected advanced, got %s", i, sig)
		}
	}

	// Window cannot grow; forward motion reports end-of-feed early.
	if sig := m.Advance(t.Context()); sig != feed.SignalEndOfFeed {
		t.Errorf("expected early end-of-feed on backfill failure, got %s", sig)
	}

	// Failure is non-fatal: once the store recovers, advancing works.
	st.SetError(nil)
	if sig := m.Advance(t.Context()); sig != feed.SignalAdvanced {
		t.Errorf("expected advance after store recovery, got %s", sig)
	}
}

// Scenario C (state machine half): at the backward limit, retreat
// reports the boundary and does not move.
func TestRetreat_StopsAtBackwardLimit(t *testing.T) {
	m, _ := loadedMachine(t, 40, feed.Config{MaxBackwardNavigation: 12})

	for i := 0; i < 20; i++ {
		m.Advance(t.Context())
	}
	if m.CurrentIndex() != 20 {
		t.Fatalf("expected index 20, got %d", m.CurrentIndex())
	}
	if m.BackwardLimit() != 8 {
		t.Fatalf("expected backward limit 8, got %d", m.BackwardLimit())
	}

	for i := 0; i < 12; i++ {
		if sig := m.Retreat(); sig != feed.SignalRetreated {
			t.Fatalf("retreat %d: expected retreated, got %s", i, sig)
		}
		checkIndexInvariant(t, m)
	}
	if m.CurrentIndex() != 8 {
		t.Fatalf("expected index 8 at limit, got %d", m.CurrentIndex())
	}
	if sig := m.Retreat(); sig != feed.SignalBackwardLimit {
		t.Errorf("expected backward-limit signal, got %s", sig)
	}
	if m.CurrentIndex() != 8 {
		t.Errorf("index must not move at the limit, got %d", m.CurrentIndex())
	}
}

func TestBackwardLimit_MonotonicAndTrailing(t *testing.T) {
	m, _ := loadedMachine(t, 60, feed.Config{MaxBackwardNavigation: 12})

	prevLimit := 0
	for i := 0; i < 40; i++ {
		m.Advance(t.Context())
		bl := m.BackwardLimit()
		if bl < prevLimit {
			t.Fatalf("backward limit decreased: %d -> %d", prevLimit, bl)
		}
		if bl > m.CurrentIndex() {
			t.Fatalf("backward limit %d exceeds index %d", bl, m.CurrentIndex())
		}
		if want := max(0, m.CurrentIndex()-12); bl != want {
			t.Fatalf("expected limit %d at index %d, got %d", want, m.CurrentIndex(), bl)
		}
		prevLimit = bl
	}
}

// Scenario B (state machine half): a delete decision marks the
// tracker and advances.
func TestRecordDecision_MarksTrackerAndAdvances(t *testing.T) {
	m, st := loadedMachine(t, 10, feed.Config{})
	first, _ := m.Current()

	sig, err := m.RecordDecision(t.Context(), types.DecisionDeleted)
	if err != nil {
		t.Fatalf("record decision: %v", err)
	}
	if sig != feed.SignalAdvanced {
		t.Errorf("expected advance after decision, got %s", sig)
	}

	tr, ok := m.Tracker(first.ID)
	if !ok {
		t.Fatal("expected tracker for decided asset")
	}
	if tr.Decision != types.DecisionDeleted {
		t.Errorf("expected deleted, got %s", tr.Decision)
	}
	if !tr.HasBeenSeen {
		t.Error("expected hasBeenSeen=true")
	}
	if st.DecisionWrites(first.ID) != 1 {
		t.Errorf("expected 1 store write, got %d", st.DecisionWrites(first.ID))
	}
}

// Decision idempotence: deciding twice on an item that stayed current
// (end of feed) does not double-record in the store.
func TestRecordDecision_DuplicateNotDoubleCounted(t *testing.T) {
	m, st := loadedMachine(t, 1, feed.Config{})
	only, _ := m.Current()

	if _, err := m.RecordDecision(t.Context(), types.DecisionKept); err != nil {
		t.Fatalf("first decision: %v", err)
	}
	// Single item: advance hit end-of-feed, item is still current.
	if _, err := m.RecordDecision(t.Context(), types.DecisionKept); err != nil {
		t.Fatalf("second decision: %v", err)
	}

	if st.DecisionWrites(only.ID) != 1 {
		t.Errorf("expected 1 store write after duplicate, got %d", st.DecisionWrites(only.ID))
	}
	tr, _ := m.Tracker(only.ID)
	if tr.Decision != types.DecisionKept {
		t.Errorf("tracker decision changed on duplicate: %s", tr.Decision)
	}
}

func TestRecordDecision_RejectsNonDecision(t *testing.T) {
	m, _ := loadedMachine(t, 3, feed.Config{})
	if _, err := m.RecordDecision(t.Context(), types.DecisionNone); err == nil {
		t.Error("expected error for DecisionNone")
	}
}

func TestMarkSeen_RecordsSeenNotDecided(t *testing.T) {
	m, st := loadedMachine(t, 5, feed.Config{})
	first, _ := m.Current()

	m.MarkSeen(t.Context())

	tr, _ := m.Tracker(first.ID)
	if !tr.HasBeenSeen || tr.Decision != types.DecisionNone {
		t.Errorf("expected seen without decision, got %+v", tr)
	}
	if tr.LastViewedAt.IsZero() {
		t.Error("expected lastViewedAt to be set")
	}
	counts, _ := st.Counts(t.Context())
	if counts.SeenOnly != 1 || counts.Kept != 0 || counts.Deleted != 0 {
		t.Errorf("expected 1 seen-only row, got %+v", counts)
	}
}

// No duplicate delivery: each ID enters the window at most once even
// when the source repeats items.
func TestNoDuplicateDelivery(t *testing.T) {
	refs := fixtureRefs(30)
	refs = append(refs, refs[:10]...) // source repeats the first ten

	st := store.NewMemory()
	m := feed.New(feed.Config{InitialBatch: 8, BackfillBatch: 8}, source.NewStatic(refs), st, nil)
	if err := m.Load(t.Context(), types.Query{}); err != nil {
		t.Fatalf("load: %v", err)
	}

	for m.Advance(t.Context()) == feed.SignalAdvanced {
	}

	seen := make(map[string]int)
	for _, ref := range m.Window() {
		seen[ref.ID]++
	}
	for id, n := range seen {
		if n > 1 {
			t.Errorf("asset %s delivered %d times", id, n)
		}
	}
	if m.WindowLen() != 30 {
		t.Errorf("expected 30 unique items, got %d", m.WindowLen())
	}
}

func TestBackfill_SkipsConcurrentlyDecidedItems(t *testing.T) {
	m, st := loadedMachine(t, 30, feed.Config{InitialBatch: 5, BackfillBatch: 5})

	// Another session decides two items that are not yet materialized.
	if err := st.RecordDecision(t.Context(), "asset-006", true); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	if err := st.RecordDecision(t.Context(), "asset-007", true); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	for m.Advance(t.Context()) == feed.SignalAdvanced {
	}

	for _, ref := range m.Window() {
		if ref.ID == "asset-006" || ref.ID == "asset-007" {
			t.Errorf("concurrently decided asset %s was materialized", ref.ID)
		}
	}
	if m.WindowLen() != 28 {
		t.Errorf("expected 28 items after 2 skips, got %d", m.WindowLen())
	}
}

// Scenario E: restart resets every tracker and the playhead.
func TestScenarioE_RestartClearsTrackers(t *testing.T) {
	m, _ := loadedMachine(t, 30, feed.Config{})

	var decided []string
	for i := 0; i < 10; i++ {
		ref, _ := m.Current()
		decided = append(decided, ref.ID)
		if _, err := m.RecordDecision(t.Context(), types.DecisionKept); err != nil {
			t.Fatalf("decision %d: %v", i, err)
		}
	}

	if err := m.Restart(t.Context(), false); err != nil {
		t.Fatalf("restart: %v", err)
	}

	if m.CurrentIndex() != 0 {
		t.Errorf("expected index 0 after restart, got %d", m.CurrentIndex())
	}
	for _, id := range decided {
		if _, ok := m.Tracker(id); ok {
			t.Errorf("tracker for %s survived restart", id)
		}
	}
	// The 10 decided items stay excluded: restart recomputes the
	// undecided subset.
	if m.UndecidedTotal() != 20 {
		t.Errorf("expected 20 undecided after restart, got %d", m.UndecidedTotal())
	}
	if m.Phase() != feed.PhaseBrowsing {
		t.Errorf("expected browsing, got %s", m.Phase())
	}
}

func TestRestart_AllDecidedTerminal(t *testing.T) {
	m, _ := loadedMachine(t, 2, feed.Config{})
	for i := 0; i < 2; i++ {
		if _, err := m.RecordDecision(t.Context(), types.DecisionDeleted); err != nil {
			t.Fatalf("decision: %v", err)
		}
	}
	if err := m.Restart(t.Context(), false); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if m.Phase() != feed.PhaseAllDecided {
		t.Errorf("expected all-decided after restarting a finished library, got %s", m.Phase())
	}
}

func TestRemoveCurrent_PullsItemAndClampsIndex(t *testing.T) {
	m, _ := loadedMachine(t, 5, feed.Config{})
	for i := 0; i < 4; i++ {
		m.Advance(t.Context())
	}
	last, _ := m.Current()

	m.RemoveCurrent(t.Context())

	checkIndexInvariant(t, m)
	if m.WindowLen() != 4 {
		t.Errorf("expected 4 items after removal, got %d", m.WindowLen())
	}
	if m.CurrentIndex() != 3 {
		t.Errorf("expected clamped index 3, got %d", m.CurrentIndex())
	}
	for _, ref := range m.Window() {
		if ref.ID == last.ID {
			t.Errorf("removed asset %s still in window", last.ID)
		}
	}
	// Not a decision: tracker map and store untouched.
	if tr, ok := m.Tracker(last.ID); ok && tr.Decision.Decided() {
		t.Errorf("removal must not decide, tracker: %+v", tr)
	}
}

func TestRemoveCurrent_DrainedWindowBackfills(t *testing.T) {
	m, _ := loadedMachine(t, 10, feed.Config{InitialBatch: 1, BufferThreshold: 1})

	m.RemoveCurrent(t.Context())

	if m.WindowLen() == 0 {
		t.Fatal("expected backfill to repopulate a drained window")
	}
	checkIndexInvariant(t, m)
}

// Index invariant fuzz: a deterministic mixed operation sequence
// never breaks the window invariants.
func TestIndexInvariant_MixedOperations(t *testing.T) {
	m, _ := loadedMachine(t, 37, feed.Config{InitialBatch: 7, BackfillBatch: 5, MaxBackwardNavigation: 4})

	ops := []func(){
		func() { m.Advance(t.Context()) },
		func() { m.Retreat() },
		func() { _, _ = m.RecordDecision(t.Context(), types.DecisionKept) },
		func() { m.Advance(t.Context()) },
		func() { m.MarkSeen(t.Context()) },
		func() { _, _ = m.RecordDecision(t.Context(), types.DecisionDeleted) },
		func() { m.Retreat() },
		func() { m.RemoveCurrent(t.Context()) },
	}
	for i := 0; i < 200; i++ {
		ops[i%len(ops)]()
		checkIndexInvariant(t, m)
	}
}

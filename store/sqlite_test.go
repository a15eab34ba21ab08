package store_test

import (
	"path/filepath"
	"testing"

	"github.com/pithecene-io/sift/iox"
	"github.com/pithecene-io/sift/store"
)

func openTestStore(t *testing.T) *store.SQLite {
	t.Helper()
	s, err := store.OpenSQLite(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(iox.CloseFunc(s))
	return s
}

func TestSQLite_RecordAndReadBack(t *testing.T) {
	s := openTestStore(t)
	ctx := t.Context()

	if err := s.RecordDecision(ctx, "a1", false); err != nil {
		t.Fatalf("record keep: %v", err)
	}
	if err := s.RecordDecision(ctx, "a2", true); err != nil {
		t.Fatalf("record delete: %v", err)
	}
	if err := s.RecordSeen(ctx, "a3"); err != nil {
		t.Fatalf("record seen: %v", err)
	}

	ids, err := s.DecidedIDs(ctx)
	if err != nil {
		t.Fatalf("decided ids: %v", err)
	}
	for _, id := range []string{"a1", "a2", "a3"} {
		if _, ok := ids[id]; !ok {
			t.Errorf("expected %s in resolved set", id)
		}
	}

	counts, err := s.Counts(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts.Kept != 1 || counts.Deleted != 1 || counts.SeenOnly != 1 {
		t.Errorf("expected 1/1/1 counts, got %+v", counts)
	}
}

func TestSQLite_SeenDoesNotDowngradeDecision(t *testing.T) {
	s := openTestStore(t)
	ctx := t.Context()

	if err := s.RecordDecision(ctx, "a1", true); err != nil {
		t.Fatalf("record delete: %v", err)
	}
	if err := s.RecordSeen(ctx, "a1"); err != nil {
		t.Fatalf("record seen: %v", err)
	}

	counts, err := s.Counts(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts.Deleted != 1 {
		t.Errorf("expected deleted=1 after seen on decided asset, got %+v", counts)
	}
	if counts.SeenOnly != 0 {
		t.Errorf("expected no seen-only row, got %+v", counts)
	}
}

func TestSQLite_DecisionUpgradesSeenRow(t *testing.T) {
	s := openTestStore(t)
	ctx := t.Context()

	if err := s.RecordSeen(ctx, "a1"); err != nil {
		t.Fatalf("record seen: %v", err)
	}
	if err := s.RecordDecision(ctx, "a1", false); err != nil {
		t.Fatalf("record keep: %v", err)
	}

	counts, err := s.Counts(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts.Kept != 1 || counts.SeenOnly != 0 {
		t.Errorf("expected seen row upgraded to kept, got %+v", counts)
	}
}

func TestSQLite_LastWriteWins(t *testing.T) {
	s := openTestStore(t)
	ctx := t.Context()

	if err := s.RecordDecision(ctx, "a1", false); err != nil {
		t.Fatalf("record keep: %v", err)
	}
	if err := s.RecordDecision(ctx, "a1", true); err != nil {
		t.Fatalf("record delete: %v", err)
	}

	counts, err := s.Counts(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts.Kept != 0 || counts.Deleted != 1 {
		t.Errorf("expected the later delete to win, got %+v", counts)
	}
}

func TestSQLite_Reset(t *testing.T) {
	s := openTestStore(t)
	ctx := t.Context()

	if err := s.RecordDecision(ctx, "a1", false); err != nil {
		t.Fatalf("record keep: %v", err)
	}
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}

	ids, err := s.DecidedIDs(ctx)
	if err != nil {
		t.Fatalf("decided ids: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected empty store after reset, got %d ids", len(ids))
	}
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := t.Context()

	s, err := store.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.RecordDecision(ctx, "a1", true); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := store.OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(iox.CloseFunc(s2))

	ids, err := s2.DecidedIDs(ctx)
	if err != nil {
		t.Fatalf("decided ids: %v", err)
	}
	if _, ok := ids["a1"]; !ok {
		t.Error("expected a1 to survive reopen")
	}
}

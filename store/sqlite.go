package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// schema is applied on every open; all statements are idempotent.
//
// decided=0 rows are seen-only bookkeeping: excluded from future
// fetches but not counted as kept or deleted.
const schema = `
CREATE TABLE IF NOT EXISTS swipe_history (
	asset_id   TEXT PRIMARY KEY,
	decided    INTEGER NOT NULL DEFAULT 0,
	to_trash   INTEGER NOT NULL DEFAULT 0,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_swipe_history_decided ON swipe_history(decided);
`

// SQLite is a durable decision store backed by a local SQLite file.
// Safe for concurrent use (database/sql pools connections).
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the swipe history database at
// path and applies the schema. Use ":memory:" for an ephemeral store.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite handles one writer at a time; serialize at the pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close releases the database handle.
func (s *SQLite) Close() error { return s.db.Close() }

// DecidedIDs returns every resolved identifier, decided and seen-only
// alike.
func (s *SQLite) DecidedIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT asset_id FROM swipe_history`)
	if err != nil {
		return nil, fmt.Errorf("query swipe history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan swipe history: %w", err)
		}
		out[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swipe history: %w", err)
	}
	return out, nil
}

// RecordDecision upserts a keep/delete verdict. Last write wins, and
// a verdict always replaces a seen-only row.
func (s *SQLite) RecordDecision(ctx context.Context, assetID string, toTrash bool) error {
	trash := 0
	if toTrash {
		trash = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO swipe_history (asset_id, decided, to_trash, updated_at)
		VALUES (?, 1, ?, ?)
		ON CONFLICT(asset_id) DO UPDATE SET
			decided = 1,
			to_trash = excluded.to_trash,
			updated_at = excluded.updated_at
	`, assetID, trash, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record decision for %s: %w", assetID, err)
	}
	return nil
}

// RecordSeen upserts seen-not-decided bookkeeping. Never downgrades
// an existing verdict.
func (s *SQLite) RecordSeen(ctx context.Context, assetID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO swipe_history (asset_id, decided, to_trash, updated_at)
		VALUES (?, 0, 0, ?)
		ON CONFLICT(asset_id) DO UPDATE SET
			updated_at = excluded.updated_at
		WHERE swipe_history.decided = 0
	`, assetID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record seen for %s: %w", assetID, err)
	}
	return nil
}

// Reset deletes all swipe history.
func (s *SQLite) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM swipe_history`); err != nil {
		return fmt.Errorf("reset swipe history: %w", err)
	}
	return nil
}

// Counts partitions the store contents for stats surfaces.
func (s *SQLite) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN decided = 1 AND to_trash = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN decided = 1 AND to_trash = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN decided = 0 THEN 1 ELSE 0 END), 0)
		FROM swipe_history
	`).Scan(&c.Kept, &c.Deleted, &c.SeenOnly)
	if err != nil {
		return Counts{}, fmt.Errorf("count swipe history: %w", err)
	}
	return c, nil
}

// Package session persists a compact triage session snapshot so a
// session can resume where it left off.
//
// Snapshots are msgpack-encoded and written atomically; a crash
// mid-write leaves the previous snapshot intact. The snapshot is a
// resume hint, not a source of truth: decisions live in the decision
// store, and a missing or stale snapshot only costs the resume
// position.
package session

import (
	"fmt"
	"os"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/sift/iox"
	"github.com/pithecene-io/sift/types"
)

// Snapshot is the persisted session state.
type Snapshot struct {
	SessionID string      `msgpack:"session_id"`
	Library   string      `msgpack:"library"`
	Query     types.Query `msgpack:"query"`

	CurrentIndex  int `msgpack:"current_index"`
	BackwardLimit int `msgpack:"backward_limit"`
	WindowLen     int `msgpack:"window_len"`

	Kept     int `msgpack:"kept"`
	Deleted  int `msgpack:"deleted"`
	SeenOnly int `msgpack:"seen_only"`

	SavedAt time.Time `msgpack:"saved_at"`
	Version string    `msgpack:"version"`
}

// Save writes the snapshot to path atomically. The snapshot's SavedAt
// and Version fields are stamped here.
func Save(path string, snap *Snapshot) error {
	snap.SavedAt = time.Now().UTC()
	snap.Version = types.Version

	data, err := msgpack.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode session snapshot: %w", err)
	}
	if err := iox.AtomicWriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write session snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot from path. A missing file is not an error: it
// returns (nil, nil) and the session starts fresh.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session snapshot: %w", err)
	}

	var snap Snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode session snapshot: %w", err)
	}
	return &snap, nil
}

// Remove deletes the snapshot at path. Missing files are ignored:
// removal after a completed session must be idempotent.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session snapshot: %w", err)
	}
	return nil
}

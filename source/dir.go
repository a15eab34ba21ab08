package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/pithecene-io/sift/types"
)

// Dir enumerates media files under a local directory. Asset IDs are
// paths relative to the root; ordering is by modification time,
// newest first, with path as tie-break for determinism.
type Dir struct {
	root string
}

// NewDir creates a directory source rooted at root. The query's
// Library field, when non-empty, selects a subdirectory of root.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// Fetch walks the directory and returns media files as asset refs.
// Unreadable subtrees abort the walk; a missing root is an error.
func (d *Dir) Fetch(ctx context.Context, q types.Query) ([]types.AssetRef, error) {
	root := d.root
	if q.Library != "" {
		root = filepath.Join(root, q.Library)
	}

	var refs []types.AssetRef
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() {
			return nil
		}
		kind, ok := KindForPath(path)
		if !ok {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			return err
		}
		refs = append(refs, types.AssetRef{
			ID:        filepath.ToSlash(rel),
			Kind:      kind,
			CreatedAt: info.ModTime(),
			SizeBytes: info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Slice(refs, func(i, j int) bool {
		if !refs[i].CreatedAt.Equal(refs[j].CreatedAt) {
			return refs[i].CreatedAt.After(refs[j].CreatedAt)
		}
		return refs[i].ID < refs[j].ID
	})
	return applyQuery(refs, q), nil
}

// FetchMedia reads the asset's bytes from disk. Local files carry a
// single rendition, so every tier resolves to the original bytes.
func (d *Dir) FetchMedia(ctx context.Context, ref types.AssetRef, _ types.Tier) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(d.root, filepath.FromSlash(ref.ID)))
	if err != nil {
		return nil, fmt.Errorf("read media %s: %w", ref.ID, err)
	}
	return data, nil
}

// Package source provides AssetSource implementations: enumerators
// that resolve a query into an ordered list of asset descriptors.
//
// Three backends are provided:
//   - Static: in-memory fixture source for tests and demos
//   - Dir: local directory walk
//   - S3: S3(-compatible) bucket listing
//
// All of them implement the feed.Source contract structurally.
package source

import (
	"path/filepath"
	"strings"

	"github.com/pithecene-io/sift/types"
)

// kindByExt maps lower-case file extensions to media kinds.
var kindByExt = map[string]types.MediaKind{
	".jpg":  types.MediaKindImage,
	".jpeg": types.MediaKindImage,
	".png":  types.MediaKindImage,
	".gif":  types.MediaKindImage,
	".webp": types.MediaKindImage,
	".heic": types.MediaKindImage,
	".mp4":  types.MediaKindVideo,
	".mov":  types.MediaKindVideo,
	".mkv":  types.MediaKindVideo,
	".webm": types.MediaKindVideo,
	".avi":  types.MediaKindVideo,
}

// KindForPath classifies a file path by extension. The second return
// is false for non-media extensions.
func KindForPath(path string) (types.MediaKind, bool) {
	kind, ok := kindByExt[strings.ToLower(filepath.Ext(path))]
	return kind, ok
}

// applyQuery filters by kind and applies the limit cap. Order is
// preserved; the input slice is not mutated.
func applyQuery(refs []types.AssetRef, q types.Query) []types.AssetRef {
	out := make([]types.AssetRef, 0, len(refs))
	for _, ref := range refs {
		if q.Kind != "" && ref.Kind != q.Kind {
			continue
		}
		out = append(out, ref)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out
}

// Package types defines the shared vocabulary of the sift core:
// asset descriptors, decisions, quality tiers, and the signal and
// error taxonomy exchanged between the feed machine, the preload
// scheduler, and their collaborators.
package types

import "time"

// MediaKind discriminates photo and video assets.
type MediaKind string

// Media kind constants.
const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

// AssetRef identifies one media item plus the minimal metadata the
// feed core needs to schedule it. Supplied by an AssetSource and
// never mutated by the core.
type AssetRef struct {
	// ID is the stable asset identifier (source-defined).
	ID string `msgpack:"id"`
	// Kind is the media kind discriminator.
	Kind MediaKind `msgpack:"kind"`
	// Width and Height are pixel dimensions, 0 when the source
	// cannot determine them cheaply (e.g. object listings).
	Width  int `msgpack:"width"`
	Height int `msgpack:"height"`
	// CreatedAt is the asset creation timestamp.
	CreatedAt time.Time `msgpack:"created_at"`
	// SizeBytes is the encoded size when known, 0 otherwise.
	SizeBytes int64 `msgpack:"size_bytes"`
}

// IsVideo reports whether the asset is a video.
func (a AssetRef) IsVideo() bool { return a.Kind == MediaKindVideo }

// Query selects and orders the assets a session iterates over.
type Query struct {
	// Library is a source-defined collection identifier
	// (directory path, bucket/prefix, album name).
	Library string
	// Kind restricts results to one media kind when non-empty.
	Kind MediaKind
	// Limit caps the number of assets returned, 0 means no cap.
	Limit int
}

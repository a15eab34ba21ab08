package types

import "time"

// Decision is a user's keep/delete verdict on an asset.
type Decision string

// Decision constants. DecisionNone means the item has not been
// decided yet; it is the zero-value-equivalent default.
const (
	DecisionNone    Decision = ""
	DecisionKept    Decision = "kept"
	DecisionDeleted Decision = "deleted"
)

// Decided reports whether d carries a keep or delete verdict.
func (d Decision) Decided() bool {
	return d == DecisionKept || d == DecisionDeleted
}

// ToTrash reports whether d sends the asset to the delete bin.
func (d Decision) ToTrash() bool { return d == DecisionDeleted }

// Tier is a content quality level the media cache can produce for an
// asset. Ordering is meaningful: Thumbnail < Preview < Full.
type Tier int

// Tier constants, lowest quality first.
const (
	TierThumbnail Tier = iota
	TierPreview
	TierFull
)

// String returns the tier name for logs and metrics labels.
func (t Tier) String() string {
	switch t {
	case TierThumbnail:
		return "thumbnail"
	case TierPreview:
		return "preview"
	case TierFull:
		return "full"
	default:
		return "unknown"
	}
}

// ItemTracker holds per-asset transient session state, keyed by asset
// ID in the feed machine's tracker map.
//
// Invariants: HasBeenSeen is monotonic (false to true, never back).
// Decision, once kept or deleted, is never reset except by a full
// session restart.
type ItemTracker struct {
	HasBeenSeen  bool
	Decision     Decision
	LastViewedAt time.Time
}

package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for failure classification across the core.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrSourceUnavailable indicates the asset source failed to
	// enumerate. Non-fatal: load/backfill yields no additional
	// items and the caller may retry.
	ErrSourceUnavailable = errors.New("asset source unavailable")

	// ErrBlocked indicates a gesture tried to consume a decision
	// unit while the caller-supplied gate was closed. No state
	// mutation occurred.
	ErrBlocked = errors.New("decision blocked by gate")

	// ErrInvalidIndex indicates an out-of-range index access.
	// Treated as a no-op by the feed machine, never a crash.
	ErrInvalidIndex = errors.New("index out of range")

	// ErrCurrentItemUnavailable indicates content for the current
	// item failed to load. Navigation remains possible.
	ErrCurrentItemUnavailable = errors.New("current item content unavailable")

	// ErrNetwork indicates a network-level fetch failure.
	ErrNetwork = errors.New("network error")

	// ErrTimeout indicates a fetch timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrDecode indicates content could not be decoded.
	ErrDecode = errors.New("decode failed")
)

// FetchError wraps an underlying media fetch failure with
// classification. It preserves the original error in the chain for
// inspection via errors.As.
type FetchError struct {
	// Kind is the sentinel error for classification
	// (ErrNetwork, ErrTimeout, ErrDecode).
	Kind error
	// AssetID is the asset whose fetch failed.
	AssetID string
	// Tier is the quality tier that was requested.
	Tier Tier
	// Err is the underlying error.
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s@%s: %v: %v", e.AssetID, e.Tier, e.Kind, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *FetchError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// NewFetchError creates a classified fetch error.
func NewFetchError(kind error, assetID string, tier Tier, err error) *FetchError {
	return &FetchError{Kind: kind, AssetID: assetID, Tier: tier, Err: err}
}

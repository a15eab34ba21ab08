// Package adapter defines the decision event publishing boundary.
//
// Adapters push recorded decisions to downstream systems (backup
// tooling, sync daemons, audit logs). The engine owns adapter
// lifecycle; users provide configuration only. Publishing is
// best-effort: a downstream outage never blocks triage.
package adapter

import "context"

// SchemaVersion is the current DecisionEvent schema version.
const SchemaVersion = "1"

// EventTypeDecisionRecorded is the event_type for decision events.
const EventTypeDecisionRecorded = "decision_recorded"

// DecisionEvent is the payload published when a decision is recorded.
type DecisionEvent struct {
	SchemaVersion string `json:"schema_version"`
	EventType     string `json:"event_type"` // always "decision_recorded"
	SessionID     string `json:"session_id"`
	Library       string `json:"library,omitempty"`
	AssetID       string `json:"asset_id"`
	MediaKind     string `json:"media_kind"`
	Decision      string `json:"decision"` // kept, deleted
	ToTrash       bool   `json:"to_trash"`
	Index         int    `json:"index"`
	Remaining     int    `json:"remaining"`
	Timestamp     string `json:"timestamp"` // ISO 8601
}

// Adapter publishes decision events to a downstream system.
// Implementations must be safe for concurrent Publish calls.
type Adapter interface {
	// Publish sends one decision event downstream.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *DecisionEvent) error

	// Close releases adapter resources.
	Close() error
}

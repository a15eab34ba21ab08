package types

// SessionMeta identifies one triage session. All log entries carry
// these fields so concurrent sessions can be told apart.
type SessionMeta struct {
	// SessionID is the canonical session identifier (UUID).
	SessionID string
	// Library is the collection being triaged.
	Library string
}

package types

// Version is the canonical project version.
// The CLI, the session snapshot format, and the published decision
// event schema share this version per the lockstep versioning policy.
const Version = "0.2.0"

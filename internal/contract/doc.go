// Package contract defines the data model shared by every agent that
// produces or consumes events: event types, schema versions, field rules,
// the Envelope wrapper, consumer compatibility policies and the typed
// error taxonomy.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import contract; contract imports nothing internal.
//
// Key constraints:
//   - Schema versions are integers >= 1; 0 means "not declared"
//   - Envelope.Meta is an open mapping and is never validated
//   - A ValidEnvelope is immutable; a "fix" is a new Envelope with a new id
//   - All JSON tags use snake_case
package contract

// Package registry holds, for each event type, the ordered family of
// schema versions and their field rules.
//
// Lifecycle: the registry is populated once at process start (usually from
// the static catalog) and then sealed. Seal is a one-time barrier: it
// publishes an immutable snapshot through an atomic pointer, after which
// every read is lock-free and safe from any number of goroutines.
// Reads before Seal fail with ErrNotReady; registrations after Seal fail
// with ErrSealed.
//
// Registration is append-only. A (type, version) pair can be registered
// exactly once, whatever its rules; breaking changes need a new version.
// Versions may have gaps but are never renumbered.
//
// The registry never logs. Callers record registration outcomes.
package registry

// Package engine is the in-process facade agents link against.
//
// An Engine owns one schema registry and the three stateless components
// built over it:
//
//   - the envelope validator, called by producers before publishing
//   - the payload schema resolver, called after a data_ref is fetched
//   - the version compatibility checker, called by consumers on receipt
//
// LIFECYCLE:
//
// Schemas are registered during initialization (RegisterSchema or
// LoadCatalog), then Seal publishes the registry. Every other operation
// fails with NOT_READY (or rejects) until Seal, and registration fails
// with SEALED after it. Once sealed the Engine is safe for concurrent use
// by any number of goroutines without further synchronization.
//
// The engine performs no I/O, does not log, and never dereferences
// data_ref. Observability is layered on top (see package observe).
package engine

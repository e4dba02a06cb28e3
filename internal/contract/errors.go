package contract

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes contract errors. Validation and admission are
// expected-failure operations, so every failure carries a kind the caller
// can switch on.
type ErrorKind string

const (
	// ErrUnknownType indicates the event type was never registered.
	ErrUnknownType ErrorKind = "UNKNOWN_TYPE"

	// ErrUnknownVersion indicates the type exists but the version does not.
	ErrUnknownVersion ErrorKind = "UNKNOWN_VERSION"

	// ErrDuplicateVersion indicates a (type, version) pair was registered twice.
	ErrDuplicateVersion ErrorKind = "DUPLICATE_VERSION"

	// ErrMalformedID indicates an id (or correlation_id) that is not a UUID.
	ErrMalformedID ErrorKind = "MALFORMED_ID"

	// ErrMalformedTime indicates a time that is not RFC 3339.
	ErrMalformedTime ErrorKind = "MALFORMED_TIME"

	// ErrClockSkewExceeded indicates a time too far ahead of the validator clock.
	ErrClockSkewExceeded ErrorKind = "CLOCK_SKEW_EXCEEDED"

	// ErrInvalidReferenceScheme indicates a data_ref scheme the schema does not allow.
	ErrInvalidReferenceScheme ErrorKind = "INVALID_REFERENCE_SCHEME"

	// ErrMissingDataRef indicates an absent data_ref on a schema that requires one.
	ErrMissingDataRef ErrorKind = "MISSING_DATA_REF"

	// ErrMissingActor indicates an empty actor.
	ErrMissingActor ErrorKind = "MISSING_ACTOR"

	// ErrMalformedReference indicates a data_ref that is not an absolute URI.
	ErrMalformedReference ErrorKind = "MALFORMED_REFERENCE"

	// ErrMalformedEnvelope indicates bytes that do not decode into an Envelope.
	ErrMalformedEnvelope ErrorKind = "MALFORMED_ENVELOPE"

	// ErrInvalidSchema indicates a schema rejected at registration.
	ErrInvalidSchema ErrorKind = "INVALID_SCHEMA"

	// ErrNotReady indicates a registry read before initialization completed.
	ErrNotReady ErrorKind = "NOT_READY"

	// ErrSealed indicates a registration after initialization completed.
	ErrSealed ErrorKind = "SEALED"
)

// Error is the typed failure returned by registration, validation and
// resolution.
type Error struct {
	// Kind identifies the error category.
	Kind ErrorKind

	// Field is the envelope field path that failed, when applicable.
	Field string

	// Type and Version identify the schema involved, when known.
	Type    EventType
	Version SchemaVersion

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError creates an Error without schema coordinates.
func NewError(kind ErrorKind, field, format string, args ...any) *Error {
	return &Error{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...)}
}

// UnknownType creates an ErrUnknownType error.
func UnknownType(t EventType) *Error {
	return &Error{
		Kind:    ErrUnknownType,
		Field:   "type",
		Type:    t,
		Message: fmt.Sprintf("event type %q is not registered", t),
	}
}

// UnknownVersion creates an ErrUnknownVersion error.
func UnknownVersion(t EventType, v SchemaVersion) *Error {
	return &Error{
		Kind:    ErrUnknownVersion,
		Field:   "schema_version",
		Type:    t,
		Version: v,
		Message: fmt.Sprintf("event type %q has no schema version %d", t, v),
	}
}

// DuplicateVersion creates an ErrDuplicateVersion error.
func DuplicateVersion(t EventType, v SchemaVersion) *Error {
	return &Error{
		Kind:    ErrDuplicateVersion,
		Type:    t,
		Version: v,
		Message: fmt.Sprintf("event type %q already has schema version %d", t, v),
	}
}

// KindOf returns the kind of a contract error, or "" for other errors.
// Uses errors.As to handle wrapped errors.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// IsKind reports whether err is a contract error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

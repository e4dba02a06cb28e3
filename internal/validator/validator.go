// Package validator checks envelope-level structural invariants before an
// event is published.
//
// Validation is pure and total: it never dereferences data_ref or performs
// any other I/O, so it is safe to call synchronously from any goroutine.
// Checks run in a fixed order and the first failure wins:
//
//  1. type is non-empty and registered        (ErrUnknownType)
//  2. id (and correlation_id) are UUIDs       (ErrMalformedID)
//  3. time is RFC 3339, within clock skew     (ErrMalformedTime, ErrClockSkewExceeded)
//  4. actor is non-empty                      (ErrMissingActor)
//  5. data_ref matches the schema's rule      (ErrMalformedReference, ErrInvalidReferenceScheme, ErrMissingDataRef)
//  6. meta is a mapping                       (guaranteed by the Go type)
//  7. schema_version is registered            (ErrUnknownVersion)
package validator

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/agentcontract/internal/contract"
	"github.com/roach88/agentcontract/internal/registry"
)

// DefaultClockSkew is how far ahead of the validator clock an envelope's
// time may be before ErrClockSkewExceeded is reported.
const DefaultClockSkew = 5 * time.Minute

// Clock supplies the validation time for skew checks.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// Validator checks envelopes against a sealed registry.
// It holds no mutable state.
type Validator struct {
	reg   *registry.Registry
	clock Clock
	skew  time.Duration
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock sets the clock used for skew checks.
func WithClock(c Clock) Option {
	return func(v *Validator) { v.clock = c }
}

// WithClockSkew sets the allowed skew. A skew <= 0 disables the check;
// the check is advisory, not a security boundary.
func WithClockSkew(d time.Duration) Option {
	return func(v *Validator) { v.skew = d }
}

// New creates a Validator over reg.
func New(reg *registry.Registry, opts ...Option) *Validator {
	v := &Validator{
		reg:   reg,
		clock: SystemClock{},
		skew:  DefaultClockSkew,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks env and returns it stamped, or the first failure as a
// *contract.Error carrying the offending field.
func (v *Validator) Validate(env contract.Envelope) (contract.ValidEnvelope, error) {
	// 1. type
	if strings.TrimSpace(string(env.Type)) == "" {
		return contract.ValidEnvelope{}, &contract.Error{
			Kind:    contract.ErrUnknownType,
			Field:   "type",
			Message: "type is required",
		}
	}
	fam, err := v.reg.Family(env.Type)
	if err != nil {
		return contract.ValidEnvelope{}, err
	}

	// 2. id, correlation_id
	if err := checkUUID("id", env.ID, true); err != nil {
		return contract.ValidEnvelope{}, err
	}
	if err := checkUUID("correlation_id", env.CorrelationID, false); err != nil {
		return contract.ValidEnvelope{}, err
	}

	// 3. time
	ts, err := v.checkTime(env.Time)
	if err != nil {
		return contract.ValidEnvelope{}, err
	}

	// 4. actor
	if strings.TrimSpace(env.Actor) == "" {
		return contract.ValidEnvelope{}, contract.NewError(contract.ErrMissingActor, "actor", "actor is required")
	}

	// 5. data_ref; deferred to 7 when the declared version does not resolve.
	schema, resolved := fam.Schema(env.SchemaVersion)
	if resolved {
		if err := checkDataRef(env, schema); err != nil {
			return contract.ValidEnvelope{}, err
		}
	}

	// 6. meta is map[string]any by construction; nil is treated as empty.

	// 7. schema_version
	if !resolved {
		return contract.ValidEnvelope{}, contract.UnknownVersion(env.Type, env.SchemaVersion)
	}

	stamped, err := contract.NewValidEnvelope(env, ts, schema)
	if err != nil && contract.KindOf(err) == "" {
		return contract.ValidEnvelope{}, &contract.Error{
			Kind:    contract.ErrMalformedEnvelope,
			Field:   "meta",
			Type:    env.Type,
			Version: env.SchemaVersion,
			Message: err.Error(),
		}
	}
	return stamped, err
}

func checkUUID(field, value string, required bool) error {
	if value == "" {
		if required {
			return contract.NewError(contract.ErrMalformedID, field, "%s is required", field)
		}
		return nil
	}
	if _, err := uuid.Parse(value); err != nil {
		return contract.NewError(contract.ErrMalformedID, field, "%q is not a UUID", value)
	}
	return nil
}

func (v *Validator) checkTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, contract.NewError(contract.ErrMalformedTime, "time", "time is required")
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, contract.NewError(contract.ErrMalformedTime, "time", "%q is not an RFC 3339 timestamp", raw)
	}
	if v.skew > 0 {
		limit := v.clock.Now().Add(v.skew)
		if ts.After(limit) {
			return time.Time{}, contract.NewError(contract.ErrClockSkewExceeded, "time",
				"%s is more than %s ahead of validation time", raw, v.skew)
		}
	}
	return ts, nil
}

func checkDataRef(env contract.Envelope, schema contract.Schema) error {
	rule := schema.Fields.DataRef()

	if env.DataRef == "" {
		if rule.Required {
			return &contract.Error{
				Kind:    contract.ErrMissingDataRef,
				Field:   "data_ref",
				Type:    schema.Type,
				Version: schema.Version,
				Message: fmt.Sprintf("schema %s %s requires data_ref", schema.Type, schema.Version),
			}
		}
		return nil
	}

	u, err := contract.ParseReference(env.DataRef)
	if err != nil {
		return &contract.Error{
			Kind:    contract.ErrMalformedReference,
			Field:   "data_ref",
			Type:    schema.Type,
			Version: schema.Version,
			Message: err.Error(),
		}
	}
	if !rule.AllowsScheme(u.Scheme) {
		return &contract.Error{
			Kind:    contract.ErrInvalidReferenceScheme,
			Field:   "data_ref",
			Type:    schema.Type,
			Version: schema.Version,
			Message: fmt.Sprintf("scheme %q is not allowed for %s %s (allowed: %s)",
				u.Scheme, schema.Type, schema.Version, strings.Join(rule.Schemes, ", ")),
		}
	}
	return nil
}

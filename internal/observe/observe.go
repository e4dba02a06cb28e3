// Package observe records validation and admission outcomes.
//
// The engine itself never logs or persists anything. Agents that want an
// audit trail wrap their engine in a Recorder, which forwards every
// outcome to a Sink: a structured log, the SQLite audit store, or both
// through Multi.
package observe

import (
	"context"
	"errors"

	"github.com/roach88/agentcontract/internal/contract"
)

// ValidationOutcome is the result of one ValidateEnvelope call.
type ValidationOutcome struct {
	Envelope contract.Envelope

	// Fingerprint and Deprecated are set when validation succeeded.
	Fingerprint string
	Deprecated  bool

	// Err is the validation failure, nil on success.
	Err error
}

// Valid reports whether the envelope passed validation.
func (o ValidationOutcome) Valid() bool { return o.Err == nil }

// Kind returns the failure kind, or "" on success.
func (o ValidationOutcome) Kind() contract.ErrorKind { return contract.KindOf(o.Err) }

// Field returns the offending envelope field, if the failure names one.
func (o ValidationOutcome) Field() string {
	var ce *contract.Error
	if errors.As(o.Err, &ce) {
		return ce.Field
	}
	return ""
}

// AdmissionOutcome is the result of one admission decision.
type AdmissionOutcome struct {
	Consumer string
	EventID  string
	Decision contract.Decision
}

// Sink receives outcomes. Implementations must be safe for concurrent use.
type Sink interface {
	RecordValidation(ctx context.Context, o ValidationOutcome) error
	RecordAdmission(ctx context.Context, o AdmissionOutcome) error
}

// Multi fans outcomes out to several sinks. Every sink is called even if
// an earlier one fails; the errors are joined.
type Multi []Sink

// RecordValidation implements Sink.
func (m Multi) RecordValidation(ctx context.Context, o ValidationOutcome) error {
	var errs []error
	for _, s := range m {
		if err := s.RecordValidation(ctx, o); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordAdmission implements Sink.
func (m Multi) RecordAdmission(ctx context.Context, o AdmissionOutcome) error {
	var errs []error
	for _, s := range m {
		if err := s.RecordAdmission(ctx, o); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards every outcome.
type Nop struct{}

// RecordValidation implements Sink.
func (Nop) RecordValidation(context.Context, ValidationOutcome) error { return nil }

// RecordAdmission implements Sink.
func (Nop) RecordAdmission(context.Context, AdmissionOutcome) error { return nil }

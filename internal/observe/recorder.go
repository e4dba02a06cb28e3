package observe

import (
	"context"
	"log/slog"

	"github.com/roach88/agentcontract/internal/contract"
	"github.com/roach88/agentcontract/internal/engine"
	"github.com/roach88/agentcontract/internal/logging"
)

// Recorder calls an engine and reports every outcome to a sink.
//
// A sink failure never changes the outcome returned to the caller; it is
// logged and dropped.
type Recorder struct {
	engine   *engine.Engine
	sink     Sink
	logger   *slog.Logger
	consumer string
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithLogger sets the logger used to report sink failures.
func WithLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) { r.logger = l }
}

// WithConsumer names the consumer recorded with admission outcomes.
func WithConsumer(name string) RecorderOption {
	return func(r *Recorder) { r.consumer = name }
}

// NewRecorder wraps e. A nil sink records nothing.
func NewRecorder(e *engine.Engine, sink Sink, opts ...RecorderOption) *Recorder {
	if sink == nil {
		sink = Nop{}
	}
	r := &Recorder{engine: e, sink: sink, logger: logging.Discard()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Engine returns the wrapped engine.
func (r *Recorder) Engine() *engine.Engine { return r.engine }

// ValidateEnvelope validates env and records the outcome.
func (r *Recorder) ValidateEnvelope(ctx context.Context, env contract.Envelope) (contract.ValidEnvelope, error) {
	stamped, err := r.engine.ValidateEnvelope(env)

	o := ValidationOutcome{Envelope: env, Err: err}
	if err == nil {
		o.Fingerprint = stamped.Fingerprint()
		o.Deprecated = stamped.Deprecated()
	}
	if serr := r.sink.RecordValidation(ctx, o); serr != nil {
		r.logger.ErrorContext(ctx, "recording validation outcome", "event_id", env.ID, logging.Error(serr))
	}
	return stamped, err
}

// AdmitEnvelope adjudicates env's declared version against policy and
// records the decision. The policy's Consumer, when set, overrides the
// recorder's consumer name.
func (r *Recorder) AdmitEnvelope(ctx context.Context, env contract.Envelope, policy contract.CompatibilityPolicy) contract.Decision {
	d := r.engine.AdmitEnvelope(env.SchemaVersion, policy)
	r.recordAdmission(ctx, env, policy.Consumer, d)
	return d
}

// Admit picks the policy by env's type and records the decision.
func (r *Recorder) Admit(ctx context.Context, env contract.Envelope, policies contract.PolicySet) contract.Decision {
	d := r.engine.Admit(env, policies)
	r.recordAdmission(ctx, env, policies[env.Type].Consumer, d)
	return d
}

func (r *Recorder) recordAdmission(ctx context.Context, env contract.Envelope, consumer string, d contract.Decision) {
	if consumer == "" {
		consumer = r.consumer
	}
	o := AdmissionOutcome{Consumer: consumer, EventID: env.ID, Decision: d}
	if err := r.sink.RecordAdmission(ctx, o); err != nil {
		r.logger.ErrorContext(ctx, "recording admission outcome", "event_id", env.ID, logging.Error(err))
	}
}

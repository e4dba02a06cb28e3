package observe

import (
	"context"
	"log/slog"

	"github.com/roach88/agentcontract/internal/contract"
	"github.com/roach88/agentcontract/internal/logging"
)

// SlogSink logs outcomes: info for success, warn for failure.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a SlogSink writing to logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger}
}

// RecordValidation implements Sink.
func (s *SlogSink) RecordValidation(ctx context.Context, o ValidationOutcome) error {
	logger := logging.WithEnvelope(s.logger, o.Envelope)
	if o.Valid() {
		logger.InfoContext(ctx, "envelope validated",
			"fingerprint", o.Fingerprint,
			"deprecated", o.Deprecated,
		)
		return nil
	}
	logger.WarnContext(ctx, "envelope rejected", logging.Error(o.Err))
	return nil
}

// RecordAdmission implements Sink.
func (s *SlogSink) RecordAdmission(ctx context.Context, o AdmissionOutcome) error {
	d := o.Decision
	attrs := []any{
		slog.String("consumer", o.Consumer),
		slog.String("event_id", o.EventID),
		slog.String("event_type", string(d.Type)),
		slog.Int64("declared", int64(d.Declared)),
		slog.String("outcome", string(d.Outcome)),
	}
	switch d.Outcome {
	case contract.OutcomeAdmitWithDowngrade:
		attrs = append(attrs, slog.Int64("target", int64(d.Target)))
	case contract.OutcomeReject:
		attrs = append(attrs, slog.String("reason", string(d.Reason)))
		s.logger.WarnContext(ctx, "envelope not admitted", attrs...)
		return nil
	}
	s.logger.InfoContext(ctx, "envelope admitted", attrs...)
	return nil
}

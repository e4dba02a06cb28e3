// Package logging builds the structured loggers used by agents and the CLI.
//
// Records are JSON by default so pipeline logs from every agent share one
// shape; text output is for humans at a terminal.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/roach88/agentcontract/internal/contract"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Options configures New.
type Options struct {
	Level     string    // debug, info, warn, error (default info)
	Format    string    // json or text (default json)
	Output    io.Writer // default os.Stderr
	AddSource bool
	Component string // attached to every record as "component"
}

// New builds a logger from opts.
func New(opts Options) (*slog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	hopts := &slog.HandlerOptions{Level: level, AddSource: opts.AddSource}
	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "", FormatJSON:
		handler = slog.NewJSONHandler(out, hopts)
	case FormatText:
		handler = slog.NewTextHandler(out, hopts)
	default:
		return nil, fmt.Errorf("invalid log format %q (must be %s or %s)", opts.Format, FormatJSON, FormatText)
	}

	logger := slog.New(handler)
	if opts.Component != "" {
		logger = logger.With("component", opts.Component)
	}
	return logger, nil
}

// ParseLevel maps a level name to a slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (must be debug, info, warn or error)", s)
	}
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// WithEnvelope attaches the identifying fields of env to logger.
// The payload and meta are never logged.
func WithEnvelope(logger *slog.Logger, env contract.Envelope) *slog.Logger {
	attrs := []any{
		slog.String("event_type", string(env.Type)),
		slog.String("event_id", env.ID),
		slog.String("actor", env.Actor),
		slog.Int64("schema_version", int64(env.SchemaVersion)),
	}
	if env.CorrelationID != "" {
		attrs = append(attrs, slog.String("correlation_id", env.CorrelationID))
	}
	return logger.With(attrs...)
}

// WithCorrelation attaches a correlation id linking related events.
func WithCorrelation(logger *slog.Logger, correlationID string) *slog.Logger {
	if correlationID == "" {
		return logger
	}
	return logger.With(slog.String("correlation_id", correlationID))
}

// Error returns an attribute describing err, with its contract kind when it
// has one.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	if kind := contract.KindOf(err); kind != "" {
		return slog.Group("error", slog.String("kind", string(kind)), slog.String("message", err.Error()))
	}
	return slog.String("error", err.Error())
}

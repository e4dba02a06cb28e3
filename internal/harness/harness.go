package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/agentcontract/internal/catalog"
	"github.com/roach88/agentcontract/internal/contract"
	"github.com/roach88/agentcontract/internal/engine"
	"github.com/roach88/agentcontract/internal/logging"
	"github.com/roach88/agentcontract/internal/observe"
	"github.com/roach88/agentcontract/internal/resolver"
	"github.com/roach88/agentcontract/internal/store"
	"github.com/roach88/agentcontract/internal/testutil"
)

// OutcomeValid and OutcomeResolved mark successful validate and resolve
// steps in the trace. Failed steps carry the error kind instead.
const (
	OutcomeValid    = "VALID"
	OutcomeResolved = "RESOLVED"
	outcomeError    = "ERROR"
)

// Harness is the scenario execution engine.
// It runs steps against a sealed engine with a fixed clock.
type Harness struct {
	engine   *engine.Engine
	recorder *observe.Recorder
	store    *store.Store
	base     map[string]any
	logger   *slog.Logger
}

// Option configures a scenario run.
type Option func(*runConfig)

type runConfig struct {
	logger *slog.Logger
}

// WithLogger sets the logger for step progress and sink failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) { c.logger = l }
}

// RunFile loads the scenario at path and runs it.
func RunFile(path string, opts ...Option) (*Scenario, *Result, error) {
	scenario, err := LoadScenario(path)
	if err != nil {
		return nil, nil, err
	}
	result, err := Run(scenario, opts...)
	if err != nil {
		return scenario, nil, err
	}
	return scenario, result, nil
}

// Run executes a scenario and returns the result.
//
// Each scenario runs on a fresh engine and a fresh in-memory audit store.
// Execution flow:
//  1. Load the catalog and seal the engine
//  2. Execute steps in order, recording validation and admission outcomes
//  3. Check each step's expect clause against the actual result
//
// The error return is reserved for setup failures; expect mismatches are
// reported in Result.Errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: logging.Discard()}
	for _, opt := range opts {
		opt(&cfg)
	}

	now := testutil.DefaultNow
	if scenario.Now != "" {
		parsed, err := time.Parse(time.RFC3339Nano, scenario.Now)
		if err != nil {
			return nil, fmt.Errorf("now: %w", err)
		}
		now = parsed
	}
	clock := testutil.NewFixedClock(now)

	engOpts := []engine.Option{engine.WithClock(clock)}
	if scenario.ClockSkew != "" {
		skew, err := time.ParseDuration(scenario.ClockSkew)
		if err != nil {
			return nil, fmt.Errorf("clock_skew: %w", err)
		}
		engOpts = append(engOpts, engine.WithClockSkew(skew))
	}
	eng := engine.New(engOpts...)

	cat, err := loadCatalog(scenario.Catalog)
	if err != nil {
		return nil, err
	}
	if err := eng.LoadCatalog(cat); err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	eng.Seal()

	st, err := store.Open(":memory:", store.WithNow(clock.Now))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		engine: eng,
		recorder: observe.NewRecorder(eng, st,
			observe.WithConsumer(scenario.Consumer),
			observe.WithLogger(cfg.logger),
		),
		store:  st,
		base:   scenario.Base,
		logger: cfg.logger.With("scenario", scenario.Name),
	}

	ctx := context.Background()
	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}

	recorded, err := st.Count(ctx)
	if err != nil {
		return nil, err
	}
	result.Recorded = recorded
	return result, nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	cat, err := catalog.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return cat, nil
}

// executeStep runs one step, appends its trace event and checks its
// expect clause.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	var (
		ev  TraceEvent
		res *resolver.Resolution
		err error
	)
	switch step.Action {
	case ActionValidate:
		ev, err = h.validate(ctx, step)
	case ActionAdmit:
		ev, err = h.admit(ctx, step)
	case ActionResolve:
		ev, res = h.resolve(step)
	default:
		err = fmt.Errorf("unknown action %q", step.Action)
	}
	if err != nil {
		return err
	}
	ev.Step = i + 1
	result.AddTrace(ev)

	for _, msg := range checkExpect(ev, res, step.Expect) {
		result.AddError(fmt.Sprintf("step %d (%s): %s", ev.Step, step.Action, msg))
	}

	h.logger.Info("step completed",
		"step", ev.Step,
		"action", step.Action,
		"event_type", ev.Type,
		"outcome", ev.Outcome,
	)
	return nil
}

func (h *Harness) validate(ctx context.Context, step Step) (TraceEvent, error) {
	env, err := h.envelope(step.Envelope)
	if contract.IsKind(err, contract.ErrMalformedEnvelope) {
		ev := TraceEvent{Action: ActionValidate}
		ev.Outcome, ev.Field = errorOutcome(err)
		return ev, nil
	}
	if err != nil {
		return TraceEvent{}, err
	}
	ev := TraceEvent{
		Action:  ActionValidate,
		Type:    string(env.Type),
		Version: int64(env.SchemaVersion),
	}

	stamped, verr := h.recorder.ValidateEnvelope(ctx, env)
	if verr != nil {
		ev.Outcome, ev.Field = errorOutcome(verr)
		return ev, nil
	}
	ev.Outcome = OutcomeValid
	ev.Deprecated = stamped.Deprecated()
	return ev, nil
}

func (h *Harness) admit(ctx context.Context, step Step) (TraceEvent, error) {
	env, err := h.envelope(step.Envelope)
	if err != nil {
		return TraceEvent{}, err
	}
	d := h.recorder.Admit(ctx, env, contract.NewPolicySet(step.Policies...))
	return TraceEvent{
		Action:  ActionAdmit,
		Type:    string(d.Type),
		Version: int64(d.Declared),
		Outcome: string(d.Outcome),
		Target:  int64(d.Target),
		Reason:  string(d.Reason),
	}, nil
}

func (h *Harness) resolve(step Step) (TraceEvent, *resolver.Resolution) {
	ev := TraceEvent{
		Action:  ActionResolve,
		Type:    step.Type,
		Version: step.Version,
	}
	res, err := h.engine.ResolvePayloadSchema(contract.EventType(step.Type), contract.SchemaVersion(step.Version))
	if err != nil {
		ev.Outcome, ev.Field = errorOutcome(err)
		return ev, nil
	}
	ev.Outcome = OutcomeResolved
	ev.Version = int64(res.Version)
	ev.Deprecated = res.Deprecated
	return ev, &res
}

// envelope merges fields over the scenario base and decodes the result
// the same way a transport would receive it.
func (h *Harness) envelope(fields map[string]any) (contract.Envelope, error) {
	merged := make(map[string]any, len(h.base)+len(fields))
	for k, v := range h.base {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return contract.Envelope{}, fmt.Errorf("encode envelope: %w", err)
	}
	env, err := contract.DecodeEnvelope(data)
	if err != nil {
		return contract.Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// errorOutcome returns the trace outcome and field for a failed call.
func errorOutcome(err error) (string, string) {
	var ce *contract.Error
	if errors.As(err, &ce) {
		return string(ce.Kind), ce.Field
	}
	return outcomeError, ""
}

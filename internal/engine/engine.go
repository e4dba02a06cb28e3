package engine

import (
	"fmt"
	"time"

	"github.com/roach88/agentcontract/internal/catalog"
	"github.com/roach88/agentcontract/internal/compat"
	"github.com/roach88/agentcontract/internal/contract"
	"github.com/roach88/agentcontract/internal/registry"
	"github.com/roach88/agentcontract/internal/resolver"
	"github.com/roach88/agentcontract/internal/validator"
)

// Engine bundles the registry with the validator, resolver and checker.
type Engine struct {
	reg       *registry.Registry
	validator *validator.Validator
	resolver  *resolver.Resolver
	checker   *compat.Checker

	clock validator.Clock
	skew  time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock the validator uses for skew checks.
// Tests pass a fixed clock so skew results are deterministic.
func WithClock(c validator.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithClockSkew sets the tolerated producer clock skew.
// Default: validator.DefaultClockSkew. A value <= 0 disables the check.
func WithClockSkew(d time.Duration) Option {
	return func(e *Engine) { e.skew = d }
}

// New creates an unsealed Engine with an empty registry.
func New(opts ...Option) *Engine {
	e := &Engine{
		reg:   registry.New(),
		clock: validator.SystemClock{},
		skew:  validator.DefaultClockSkew,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.validator = validator.New(e.reg,
		validator.WithClock(e.clock),
		validator.WithClockSkew(e.skew),
	)
	e.resolver = resolver.New(e.reg)
	e.checker = compat.New(e.reg)
	return e
}

// RegisterSchema adds one schema version during initialization.
//
// Fails with DUPLICATE_VERSION when (t, v) already exists, INVALID_SCHEMA
// when the rules or compatibility targets are malformed, and SEALED after
// Seal. Registration errors are startup-fatal; callers should abort.
func (e *Engine) RegisterSchema(t contract.EventType, v contract.SchemaVersion, rules contract.FieldRuleSet, compatibleWith []contract.SchemaVersion) error {
	return e.reg.Register(contract.Schema{
		Type:           t,
		Version:        v,
		Fields:         rules,
		CompatibleWith: compatibleWith,
	})
}

// LoadCatalog registers every schema of cat. The catalog is validated
// first so an author sees all of its problems at once; registration then
// stops at the first error.
func (e *Engine) LoadCatalog(cat *catalog.Catalog) error {
	if errs := catalog.Validate(cat); len(errs) > 0 {
		return fmt.Errorf("catalog %s: %w", cat.Source, errs)
	}
	return catalog.Apply(e.reg, cat)
}

// Seal ends initialization. Calling it more than once is harmless.
func (e *Engine) Seal() {
	e.reg.Seal()
}

// Sealed reports whether Seal has been called.
func (e *Engine) Sealed() bool {
	return e.reg.Sealed()
}

// Registry exposes the underlying registry for read-only inspection.
func (e *Engine) Registry() *registry.Registry {
	return e.reg
}

// ValidateEnvelope checks env against the envelope contract and returns it
// stamped. Pure: calling it twice on the same input at the same clock
// reading yields identical results.
func (e *Engine) ValidateEnvelope(env contract.Envelope) (contract.ValidEnvelope, error) {
	return e.validator.Validate(env)
}

// ResolvePayloadSchema returns the field rules for (t, v). Version
// contract.LatestVersion resolves to the highest registered version.
func (e *Engine) ResolvePayloadSchema(t contract.EventType, v contract.SchemaVersion) (resolver.Resolution, error) {
	return e.resolver.Resolve(t, v)
}

// ResolveFor resolves the rules a consumer should apply to a stamped
// envelope after admission, honoring a downgrade target.
func (e *Engine) ResolveFor(env contract.ValidEnvelope, d contract.Decision) (resolver.Resolution, error) {
	return e.resolver.ResolveFor(env, d)
}

// AdmitEnvelope adjudicates a declared version against one consumer
// policy. The decision is deterministic for a given registry.
func (e *Engine) AdmitEnvelope(declared contract.SchemaVersion, policy contract.CompatibilityPolicy) contract.Decision {
	return e.checker.Admit(declared, policy)
}

// Admit picks the consumer's policy by the envelope's type and
// adjudicates it. Rejects with NOT_SUBSCRIBED when there is no policy for
// the type.
func (e *Engine) Admit(env contract.Envelope, policies contract.PolicySet) contract.Decision {
	return e.checker.AdmitEnvelope(env, policies)
}

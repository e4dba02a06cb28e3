// Package resolver maps an envelope's declared type and version to the
// field rules describing its payload shape metadata.
//
// The rules are used by agent code, not by the engine, to validate the
// payload once it has been fetched from the blob store.
package resolver

import (
	"github.com/roach88/agentcontract/internal/contract"
	"github.com/roach88/agentcontract/internal/registry"
)

// Resolution is the concrete schema a (type, version) request resolved to.
type Resolution struct {
	Type    contract.EventType     `json:"type"`
	Version contract.SchemaVersion `json:"version"`
	Fields  contract.FieldRuleSet  `json:"fields"`
	// Deprecated mirrors the schema flag so consumers can warn.
	Deprecated bool `json:"deprecated,omitempty"`
}

// Payload returns the rules for payload metadata only.
func (r Resolution) Payload() contract.FieldRuleSet {
	return r.Fields.Payload()
}

// Resolver delegates to the registry.
type Resolver struct {
	reg *registry.Registry
}

// New creates a Resolver over reg.
func New(reg *registry.Registry) *Resolver {
	return &Resolver{reg: reg}
}

// Resolve returns the field rules for (t, v). contract.LatestVersion (0)
// resolves to the highest registered version of t.
// Fails with ErrUnknownType or ErrUnknownVersion.
func (r *Resolver) Resolve(t contract.EventType, v contract.SchemaVersion) (Resolution, error) {
	if v == contract.LatestVersion {
		latest, err := r.reg.Latest(t)
		if err != nil {
			return Resolution{}, err
		}
		v = latest
	}
	schema, err := r.reg.Lookup(t, v)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{
		Type:       schema.Type,
		Version:    schema.Version,
		Fields:     schema.Fields,
		Deprecated: schema.Deprecated,
	}, nil
}

// ResolveLatest is Resolve(t, contract.LatestVersion).
func (r *Resolver) ResolveLatest(t contract.EventType) (Resolution, error) {
	return r.Resolve(t, contract.LatestVersion)
}

// ResolveFor resolves the schema a stamped envelope was validated against,
// or the downgrade target when the consumer was told to reinterpret it.
func (r *Resolver) ResolveFor(env contract.ValidEnvelope, d contract.Decision) (Resolution, error) {
	v := env.Version()
	if d.Outcome == contract.OutcomeAdmitWithDowngrade {
		v = d.Target
	}
	return r.Resolve(env.Type(), v)
}

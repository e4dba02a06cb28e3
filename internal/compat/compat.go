// Package compat decides, on the consumer side, whether an envelope's
// declared schema version can be processed under the consumer's
// compatibility policy.
//
// The decision is a pure function of registry metadata and the policy:
// no I/O, fully deterministic. Compatibility is read from the declared
// schema's CompatibleWith set as supplied by the schema author; it is
// never inferred and never transitive (v3 -> v2 and v2 -> v1 do not
// imply v3 -> v1).
package compat

import (
	"github.com/roach88/agentcontract/internal/contract"
	"github.com/roach88/agentcontract/internal/registry"
)

// Checker adjudicates admission against a sealed registry.
type Checker struct {
	reg *registry.Registry
}

// New creates a Checker over reg.
func New(reg *registry.Registry) *Checker {
	return &Checker{reg: reg}
}

// Admit decides how a consumer holding policy should treat an envelope of
// policy.Type declared at version declared.
//
// Rules, in order:
//   - registry not sealed                       -> Reject(NOT_READY)
//   - unknown type or version                   -> Reject(UNKNOWN_TYPE / UNKNOWN_VERSION)
//   - policy accepts nothing                    -> Reject(INVALID_POLICY)
//   - declared is accepted                      -> Admit
//   - highest accepted T in declared.CompatibleWith -> AdmitWithDowngrade(T)
//   - declared older than some accepted version -> Reject(VERSION_TOO_OLD)
//   - otherwise                                 -> Reject(VERSION_TOO_NEW)
//
// A downgrade target is always a member of the policy's accepted set.
func (c *Checker) Admit(declared contract.SchemaVersion, policy contract.CompatibilityPolicy) contract.Decision {
	t := policy.Type

	fam, err := c.reg.Family(t)
	if err != nil {
		if contract.IsKind(err, contract.ErrNotReady) {
			return contract.Reject(t, declared, contract.ReasonNotReady)
		}
		return contract.Reject(t, declared, contract.ReasonUnknownType)
	}
	schema, ok := fam.Schema(declared)
	if !ok {
		return contract.Reject(t, declared, contract.ReasonUnknownVersion)
	}
	if policy.Empty() {
		return contract.Reject(t, declared, contract.ReasonInvalidPolicy)
	}

	if policy.Accepts(declared) {
		return contract.Admit(t, declared)
	}

	if target, ok := downgradeTarget(schema, policy); ok {
		return contract.AdmitWithDowngrade(t, declared, target)
	}

	if declared < policy.MaxAccepted() {
		return contract.Reject(t, declared, contract.ReasonVersionTooOld)
	}
	return contract.Reject(t, declared, contract.ReasonVersionTooNew)
}

// AdmitEnvelope picks the consumer's policy for the envelope's type and
// adjudicates its declared version. A consumer without a policy for the
// type is not subscribed to it.
func (c *Checker) AdmitEnvelope(env contract.Envelope, policies contract.PolicySet) contract.Decision {
	policy, ok := policies[env.Type]
	if !ok {
		return contract.Reject(env.Type, env.SchemaVersion, contract.ReasonNotSubscribed)
	}
	return c.Admit(env.SchemaVersion, policy)
}

// downgradeTarget returns the highest version the declared schema is
// compatible with that the policy also accepts.
func downgradeTarget(schema contract.Schema, policy contract.CompatibilityPolicy) (contract.SchemaVersion, bool) {
	var best contract.SchemaVersion
	found := false
	for _, v := range schema.CompatibleWith {
		if policy.Accepts(v) && (!found || v > best) {
			best = v
			found = true
		}
	}
	return best, found
}

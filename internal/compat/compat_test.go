package compat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/agentcontract/internal/contract"
	"github.com/roach88/agentcontract/internal/registry"
	"github.com/roach88/agentcontract/internal/testutil"
)

func checker(t *testing.T, schemas ...contract.Schema) *Checker {
	t.Helper()
	reg := registry.New()
	for _, s := range schemas {
		require.NoError(t, reg.Register(s))
	}
	reg.Seal()
	return New(reg)
}

func accept(versions ...contract.SchemaVersion) contract.CompatibilityPolicy {
	return contract.CompatibilityPolicy{Consumer: "test-consumer", Type: "idea.created", Versions: versions}
}

func TestAdmit_DeclaredAccepted(t *testing.T) {
	c := checker(t, testutil.IdeaSchema(1), testutil.IdeaSchema(2))

	d := c.Admit(2, accept(1, 2))
	assert.Equal(t, contract.OutcomeAdmit, d.Outcome)
	assert.Equal(t, contract.SchemaVersion(2), d.EffectiveVersion())
	assert.Equal(t, "ADMIT", d.String())
}

func TestAdmit_DowngradeToCompatibleVersion(t *testing.T) {
	c := checker(t,
		testutil.IdeaSchema(1),
		testutil.IdeaSchema(2),
		testutil.IdeaSchema(3, 2),
	)

	d := c.Admit(3, accept(1, 2))
	assert.Equal(t, contract.OutcomeAdmitWithDowngrade, d.Outcome)
	assert.Equal(t, contract.SchemaVersion(3), d.Declared)
	assert.Equal(t, contract.SchemaVersion(2), d.Target)
	assert.Equal(t, "ADMIT_WITH_DOWNGRADE(2)", d.String())
}

func TestAdmit_VersionTooOld(t *testing.T) {
	c := checker(t,
		testutil.IdeaSchema(1),
		testutil.IdeaSchema(2),
		testutil.IdeaSchema(3),
	)

	d := c.Admit(1, accept(2, 3))
	assert.Equal(t, contract.OutcomeReject, d.Outcome)
	assert.Equal(t, contract.ReasonVersionTooOld, d.Reason)
	assert.False(t, d.Admitted())
	assert.Equal(t, contract.SchemaVersion(0), d.EffectiveVersion())
}

func TestAdmit_VersionTooNewWithoutCompatibility(t *testing.T) {
	c := checker(t,
		testutil.IdeaSchema(1),
		testutil.IdeaSchema(2),
		testutil.IdeaSchema(3),
	)

	d := c.Admit(3, accept(1, 2))
	assert.Equal(t, contract.OutcomeReject, d.Outcome)
	assert.Equal(t, contract.ReasonVersionTooNew, d.Reason)
}

func TestAdmit_CompatibilityIsNotTransitive(t *testing.T) {
	// v3 -> v2 and v2 -> v1 do not make v3 readable as v1.
	c := checker(t,
		testutil.IdeaSchema(1),
		testutil.IdeaSchema(2, 1),
		testutil.IdeaSchema(3, 2),
	)

	d := c.Admit(3, accept(1))
	assert.Equal(t, contract.OutcomeReject, d.Outcome)
	assert.Equal(t, contract.ReasonVersionTooNew, d.Reason)

	d = c.Admit(2, accept(1))
	assert.Equal(t, contract.OutcomeAdmitWithDowngrade, d.Outcome)
	assert.Equal(t, contract.SchemaVersion(1), d.Target)
}

func TestAdmit_DowngradePicksHighestAcceptedTarget(t *testing.T) {
	c := checker(t,
		testutil.IdeaSchema(1),
		testutil.IdeaSchema(2),
		testutil.IdeaSchema(3),
		testutil.IdeaSchema(4, 1, 2, 3),
	)

	d := c.Admit(4, accept(1, 3))
	assert.Equal(t, contract.OutcomeAdmitWithDowngrade, d.Outcome)
	assert.Equal(t, contract.SchemaVersion(3), d.Target)
}

func TestAdmit_GapInAcceptedSet(t *testing.T) {
	// Accepts 1 and 3; 2 sits in between and is older than 3.
	c := checker(t,
		testutil.IdeaSchema(1),
		testutil.IdeaSchema(2),
		testutil.IdeaSchema(3),
	)

	d := c.Admit(2, accept(1, 3))
	assert.Equal(t, contract.ReasonVersionTooOld, d.Reason)
}

func TestAdmit_RangePolicy(t *testing.T) {
	c := checker(t,
		testutil.IdeaSchema(1),
		testutil.IdeaSchema(2),
		testutil.IdeaSchema(3),
		testutil.IdeaSchema(4, 3),
	)
	policy := contract.CompatibilityPolicy{
		Type:  "idea.created",
		Range: &contract.VersionRange{Min: 2, Max: 3},
	}

	assert.Equal(t, contract.OutcomeAdmit, c.Admit(2, policy).Outcome)
	assert.Equal(t, "ADMIT_WITH_DOWNGRADE(3)", c.Admit(4, policy).String())
	assert.Equal(t, "REJECT(VERSION_TOO_OLD)", c.Admit(1, policy).String())

	// Version 0 is never registered, so a range from 0 reads as one from 1.
	fromZero := contract.CompatibilityPolicy{
		Type:  "idea.created",
		Range: &contract.VersionRange{Min: 0, Max: 2},
	}
	assert.Equal(t, "ADMIT", c.Admit(1, fromZero).String())
	assert.Equal(t, "ADMIT", c.Admit(2, fromZero).String())
	assert.Equal(t, "REJECT(VERSION_TOO_NEW)", c.Admit(3, fromZero).String())

	onlyZero := contract.CompatibilityPolicy{
		Type:  "idea.created",
		Range: &contract.VersionRange{Min: 0, Max: 0},
	}
	assert.Equal(t, "REJECT(INVALID_POLICY)", c.Admit(1, onlyZero).String())
}

func TestAdmit_BeforeSeal(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(testutil.IdeaSchema(1)))
	c := New(reg)

	d := c.Admit(1, accept(1))
	assert.Equal(t, contract.OutcomeReject, d.Outcome)
	assert.Equal(t, contract.ReasonNotReady, d.Reason)

	reg.Seal()
	assert.Equal(t, contract.OutcomeAdmit, c.Admit(1, accept(1)).Outcome)
}

func TestAdmit_UnknownTypeAndVersion(t *testing.T) {
	c := checker(t, testutil.IdeaSchema(1))

	d := c.Admit(1, contract.CompatibilityPolicy{Type: "draft.generated", Versions: []contract.SchemaVersion{1}})
	assert.Equal(t, contract.ReasonUnknownType, d.Reason)

	d = c.Admit(9, accept(1))
	assert.Equal(t, contract.ReasonUnknownVersion, d.Reason)
}

func TestAdmit_EmptyPolicy(t *testing.T) {
	c := checker(t, testutil.IdeaSchema(1))

	d := c.Admit(1, accept())
	assert.Equal(t, contract.ReasonInvalidPolicy, d.Reason)

	inverted := contract.CompatibilityPolicy{Type: "idea.created", Range: &contract.VersionRange{Min: 3, Max: 1}}
	assert.Equal(t, contract.ReasonInvalidPolicy, c.Admit(1, inverted).Reason)
}

func TestAdmitEnvelope_NotSubscribed(t *testing.T) {
	c := checker(t, testutil.IdeaSchema(1))
	env := testutil.Envelope()

	d := c.AdmitEnvelope(env, contract.NewPolicySet())
	assert.Equal(t, contract.ReasonNotSubscribed, d.Reason)

	d = c.AdmitEnvelope(env, contract.NewPolicySet(accept(1)))
	assert.Equal(t, contract.OutcomeAdmit, d.Outcome)
}

// Every admitted decision names a version the policy accepts.
func TestAdmit_TargetAlwaysAccepted(t *testing.T) {
	var schemas []contract.Schema
	for v := contract.SchemaVersion(1); v <= 5; v++ {
		var compat []contract.SchemaVersion
		for w := contract.SchemaVersion(1); w < v; w++ {
			if (v+w)%2 == 1 {
				compat = append(compat, w)
			}
		}
		schemas = append(schemas, testutil.IdeaSchema(v, compat...))
	}
	c := checker(t, schemas...)

	// All non-empty subsets of {1..5}.
	for mask := 1; mask < 1<<5; mask++ {
		var accepted []contract.SchemaVersion
		for i := 0; i < 5; i++ {
			if mask&(1<<i) != 0 {
				accepted = append(accepted, contract.SchemaVersion(i+1))
			}
		}
		policy := accept(accepted...)
		for declared := contract.SchemaVersion(1); declared <= 5; declared++ {
			d := c.Admit(declared, policy)
			if d.Admitted() {
				assert.True(t, policy.Accepts(d.EffectiveVersion()), "declared=%d accepted=%v decision=%s", declared, accepted, d)
			} else {
				assert.Contains(t,
					[]contract.RejectReason{contract.ReasonVersionTooOld, contract.ReasonVersionTooNew},
					d.Reason)
			}
		}
	}
}

func TestAdmit_Deterministic(t *testing.T) {
	c := checker(t, testutil.IdeaSchema(1), testutil.IdeaSchema(2, 1))
	first := c.Admit(2, accept(1))
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Admit(2, accept(1)))
	}
}

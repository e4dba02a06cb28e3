package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/agentcontract/internal/catalog"
	"github.com/roach88/agentcontract/internal/contract"
	"github.com/roach88/agentcontract/internal/testutil"
)

var ideaRules = contract.FieldRuleSet{
	{Name: contract.DataRefField, Kind: contract.KindReference, Required: true, Schemes: []string{"s3", "https"}},
	{Name: "title", Kind: contract.KindString, Required: true},
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	return New(WithClock(testutil.NewFixedClock(testutil.DefaultNow)))
}

func policy(versions ...contract.SchemaVersion) contract.CompatibilityPolicy {
	return contract.CompatibilityPolicy{Type: "idea.created", Versions: versions}
}

// Scenario 1: a well-formed envelope against idea.created v1.
func TestEngine_ValidateWellFormed(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.RegisterSchema("idea.created", 1, ideaRules, nil))
	e.Seal()

	stamped, err := e.ValidateEnvelope(testutil.Envelope())
	require.NoError(t, err)
	assert.Equal(t, contract.SchemaVersion(1), stamped.Version())
}

// Scenario 2: schema_version 2 is not registered.
func TestEngine_ValidateUnknownVersion(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.RegisterSchema("idea.created", 1, ideaRules, nil))
	e.Seal()

	env := testutil.Envelope()
	env.SchemaVersion = 2
	_, err := e.ValidateEnvelope(env)
	assert.True(t, contract.IsKind(err, contract.ErrUnknownVersion))
}

// Scenario 3: v3 declares compatibility with v2; consumer accepts {1,2}.
func TestEngine_AdmitDowngrade(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.RegisterSchema("idea.created", 1, ideaRules, nil))
	require.NoError(t, e.RegisterSchema("idea.created", 2, ideaRules, nil))
	require.NoError(t, e.RegisterSchema("idea.created", 3, ideaRules, []contract.SchemaVersion{2}))
	e.Seal()

	d := e.AdmitEnvelope(3, policy(1, 2))
	assert.Equal(t, contract.AdmitWithDowngrade("idea.created", 3, 2), d)

	env := testutil.Envelope()
	env.SchemaVersion = 3
	stamped, err := e.ValidateEnvelope(env)
	require.NoError(t, err)

	res, err := e.ResolveFor(stamped, d)
	require.NoError(t, err)
	assert.Equal(t, contract.SchemaVersion(2), res.Version)
}

// Scenario 4: consumer accepts {2,3}; declared v1 is too old.
func TestEngine_AdmitTooOld(t *testing.T) {
	e := newEngine(t)
	for v := contract.SchemaVersion(1); v <= 3; v++ {
		require.NoError(t, e.RegisterSchema("idea.created", v, ideaRules, nil))
	}
	e.Seal()

	d := e.AdmitEnvelope(1, policy(2, 3))
	assert.Equal(t, contract.Reject("idea.created", 1, contract.ReasonVersionTooOld), d)
}

// Scenario 5: an ftp reference against a schema allowing s3/https.
func TestEngine_ValidateInvalidScheme(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.RegisterSchema("idea.created", 1, ideaRules, nil))
	e.Seal()

	env := testutil.Envelope()
	env.DataRef = "ftp://files.example.com/idea.json"
	_, err := e.ValidateEnvelope(env)
	var ce *contract.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, contract.ErrInvalidReferenceScheme, ce.Kind)
	assert.Equal(t, "data_ref", ce.Field)
}

func TestEngine_AdmitByPolicySet(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.RegisterSchema("idea.created", 1, ideaRules, nil))
	e.Seal()

	env := testutil.Envelope()
	assert.Equal(t, contract.OutcomeAdmit, e.Admit(env, contract.NewPolicySet(policy(1))).Outcome)

	d := e.Admit(env, contract.NewPolicySet())
	assert.Equal(t, contract.ReasonNotSubscribed, d.Reason)
}

func TestEngine_Lifecycle(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.RegisterSchema("idea.created", 1, ideaRules, nil))

	_, err := e.ValidateEnvelope(testutil.Envelope())
	assert.True(t, contract.IsKind(err, contract.ErrNotReady), "reads before Seal")

	_, err = e.ResolvePayloadSchema("idea.created", 1)
	assert.True(t, contract.IsKind(err, contract.ErrNotReady))

	e.Seal()
	e.Seal()
	assert.True(t, e.Sealed())

	err = e.RegisterSchema("idea.created", 2, ideaRules, nil)
	assert.True(t, contract.IsKind(err, contract.ErrSealed))

	err = e.RegisterSchema("idea.created", 1, ideaRules, nil)
	assert.True(t, contract.IsKind(err, contract.ErrSealed))
}

func TestEngine_DuplicateVersion(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.RegisterSchema("idea.created", 1, ideaRules, nil))

	err := e.RegisterSchema("idea.created", 1, nil, nil)
	assert.True(t, contract.IsKind(err, contract.ErrDuplicateVersion))
}

func TestEngine_ResolveLatestIsMonotonic(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.RegisterSchema("idea.created", 1, ideaRules, nil))
	require.NoError(t, e.RegisterSchema("idea.created", 2, ideaRules, nil))
	e.Seal()

	res, err := e.ResolvePayloadSchema("idea.created", contract.LatestVersion)
	require.NoError(t, err)
	assert.Equal(t, contract.SchemaVersion(2), res.Version)

	_, err = e.ResolvePayloadSchema("draft.generated", 1)
	assert.True(t, contract.IsKind(err, contract.ErrUnknownType))
}

func TestEngine_LoadDefaultCatalog(t *testing.T) {
	e := newEngine(t)
	cat, err := catalog.Default()
	require.NoError(t, err)
	require.NoError(t, e.LoadCatalog(cat))
	e.Seal()

	assert.Len(t, e.Registry().Types(), 11)
	_, err = e.ValidateEnvelope(testutil.Envelope())
	require.NoError(t, err)
}

func TestEngine_LoadCatalogTwiceFails(t *testing.T) {
	e := newEngine(t)
	cat, err := catalog.Default()
	require.NoError(t, err)
	require.NoError(t, e.LoadCatalog(cat))

	err = e.LoadCatalog(cat)
	assert.True(t, contract.IsKind(err, contract.ErrDuplicateVersion))
}

func TestEngine_ConcurrentReads(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.RegisterSchema("idea.created", 1, ideaRules, nil))
	require.NoError(t, e.RegisterSchema("idea.created", 2, ideaRules, []contract.SchemaVersion{1}))
	e.Seal()

	want, err := e.ValidateEnvelope(testutil.Envelope())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := e.ValidateEnvelope(testutil.Envelope())
			assert.NoError(t, err)
			assert.Equal(t, want.Fingerprint(), got.Fingerprint())
			assert.Equal(t, "ADMIT_WITH_DOWNGRADE(1)", e.AdmitEnvelope(2, policy(1)).String())
		}()
	}
	wg.Wait()
}

func TestEngine_Health(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.RegisterSchema("idea.created", 1, ideaRules, nil))

	h := e.Health()
	assert.Equal(t, HealthUnhealthy, h.Status)
	assert.False(t, h.Sealed)
	assert.Zero(t, h.Types)
	assert.Equal(t, contract.EngineVersion, h.EngineVersion)
	assert.Equal(t, testutil.DefaultNow, h.CheckedAt)

	require.NoError(t, e.RegisterSchema("idea.created", 2, ideaRules, []contract.SchemaVersion{1}))
	e.Seal()

	h = e.Health()
	assert.Equal(t, HealthHealthy, h.Status)
	assert.True(t, h.Sealed)
	assert.Equal(t, 1, h.Types)
	assert.Equal(t, 2, h.Versions)
	assert.Zero(t, h.Deprecated)
}

func TestEngine_HealthDefaultCatalog(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)

	e := newEngine(t)
	require.NoError(t, e.LoadCatalog(cat))
	e.Seal()

	h := e.Health()
	assert.Equal(t, HealthHealthy, h.Status)
	assert.Equal(t, 11, h.Types)
	assert.Equal(t, 12, h.Versions)
}

func TestEngine_HealthEmptyRegistry(t *testing.T) {
	e := newEngine(t)
	e.Seal()
	assert.Equal(t, HealthDegraded, e.Health().Status)
}

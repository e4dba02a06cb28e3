package catalog

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/agentcontract/internal/contract"
	"github.com/roach88/agentcontract/internal/registry"
)

func TestLoadFormatsAgree(t *testing.T) {
	paths := []string{
		"testdata/ideas.yaml",
		"testdata/ideas.json",
		"testdata/ideas.toml",
		"testdata/ideas.cue",
		"testdata/cuedir",
	}

	var want string
	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			cat, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, path, cat.Source)
			assert.Empty(t, Validate(cat))

			schemas := cat.List()
			require.Len(t, schemas, 2)
			assert.Equal(t, contract.SchemaVersion(1), schemas[0].Version)
			assert.Equal(t, contract.SchemaVersion(2), schemas[1].Version)
			assert.Equal(t, []contract.SchemaVersion{1}, schemas[1].CompatibleWith)
			require.Len(t, schemas[1].Fields, 3)
			assert.Equal(t, contract.KindNumber, schemas[1].Fields[2].Kind)
			assert.False(t, schemas[1].Fields[2].Required)

			hash, err := cat.Hash()
			require.NoError(t, err)
			if want == "" {
				want = hash
			}
			assert.Equal(t, want, hash, "every format yields the same rules")
		})
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.ini")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported extension")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestParseYAMLRejectsUnknownKeys(t *testing.T) {
	_, err := Load("testdata/typo.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compatable_with")
}

func TestParseYAMLEmpty(t *testing.T) {
	_, err := ParseYAML(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty document")
}

func TestParseJSONRejectsUnknownFields(t *testing.T) {
	_, err := ParseJSON([]byte(`{"schemas": {}, "extra": true}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extra")
}

func TestParseTOMLRejectsUnknownKeys(t *testing.T) {
	_, err := ParseTOML([]byte("[[schemas.\"idea.created\"]]\nversion = 1\nflavour = \"x\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flavour")
}

func TestParseCUEMissingSchemas(t *testing.T) {
	_, err := ParseCUE([]byte(`other: 1`), "bad.cue")
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "schemas", ce.Field)
}

func TestParseCUEMissingVersion(t *testing.T) {
	_, err := ParseCUE([]byte(`schemas: "idea.created": [{fields: []}]`), "bad.cue")
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, `schemas."idea.created"[0].version`, ce.Field)
}

func TestParseCUESyntaxErrorHasPosition(t *testing.T) {
	_, err := ParseCUE([]byte("schemas: {\n  \"idea.created\": [\n"), "broken.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.cue")
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cat, err := Load("testdata/invalid.yaml")
	require.NoError(t, err)

	errs := Validate(cat)
	codes := make(map[string]int)
	for _, e := range errs {
		codes[e.Code]++
	}

	assert.Equal(t, 1, codes[ErrInvalidEventType])
	assert.Equal(t, 2, codes[ErrInvalidVersion])
	assert.Equal(t, 1, codes[ErrDuplicateVersion])
	assert.Equal(t, 1, codes[ErrInvalidFieldKind])
	assert.Equal(t, 1, codes[ErrDuplicateField])
	assert.Equal(t, 1, codes[ErrSchemesOnNonRef])
	assert.Equal(t, 1, codes[ErrInvalidDataRef])
	assert.Equal(t, 1, codes[ErrCompatNotOlder])
	assert.Contains(t, errs.Error(), "validation errors")
}

func TestValidateEmptyCatalog(t *testing.T) {
	errs := Validate(&Catalog{})
	require.Len(t, errs, 1)
	assert.Equal(t, ErrEmptyCatalog, errs[0].Code)
	assert.Equal(t, "[E100] schemas: catalog declares no schemas", errs.Error())
}

func TestValidateUndeclaredCompatTarget(t *testing.T) {
	cat := &Catalog{Schemas: map[contract.EventType][]Entry{
		"idea.created": {
			{Version: 1},
			{Version: 3, CompatibleWith: []contract.SchemaVersion{2}},
		},
	}}

	errs := Validate(cat)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCompatUndeclared, errs[0].Code)
	assert.Equal(t, "schemas[idea.created][1].compatible_with[0]", errs[0].Field)
}

func TestValidateEmptyScheme(t *testing.T) {
	cat := &Catalog{Schemas: map[contract.EventType][]Entry{
		"idea.created": {{
			Version: 1,
			Fields: contract.FieldRuleSet{
				{Name: "data_ref", Kind: contract.KindReference, Schemes: []string{"s3", "://"}},
			},
		}},
	}}

	errs := Validate(cat)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrInvalidScheme, errs[0].Code)
}

func TestApplyRegistersInAscendingOrder(t *testing.T) {
	// Declared out of order; v2 depends on v1 being registered first.
	cat := &Catalog{Schemas: map[contract.EventType][]Entry{
		"idea.created": {
			{Version: 2, CompatibleWith: []contract.SchemaVersion{1}},
			{Version: 1},
		},
	}}

	reg := registry.New()
	require.NoError(t, Apply(reg, cat))
	reg.Seal()

	versions, err := reg.Versions("idea.created")
	require.NoError(t, err)
	assert.Equal(t, []contract.SchemaVersion{1, 2}, versions)
}

func TestApplyStopsAtFirstError(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(contract.Schema{Type: "idea.created", Version: 1}))

	cat := &Catalog{Schemas: map[contract.EventType][]Entry{
		"idea.created": {{Version: 1}, {Version: 2}},
	}}
	err := Apply(reg, cat)
	assert.True(t, contract.IsKind(err, contract.ErrDuplicateVersion))

	reg.Seal()
	versions, err := reg.Versions("idea.created")
	require.NoError(t, err)
	assert.Equal(t, []contract.SchemaVersion{1}, versions)
}

func TestDefaultCatalog(t *testing.T) {
	cat, err := Default()
	require.NoError(t, err)
	assert.Equal(t, DefaultSource, cat.Source)
	assert.Empty(t, Validate(cat))

	want := []contract.EventType{
		"content.ingested",
		"content.learned",
		"context.retrieved",
		"draft.cleaned",
		"draft.generated",
		"idea.created",
		"idea.scored",
		"outline.ready",
		"publish.completed",
		"publish.failed",
		"publish.scheduled",
	}
	assert.Equal(t, want, cat.Types())
	assert.Equal(t, 12, cat.Len())

	reg := registry.New()
	require.NoError(t, Apply(reg, cat))
	reg.Seal()

	failed, err := reg.Lookup("publish.failed", 1)
	require.NoError(t, err)
	assert.False(t, failed.Fields.DataRef().Required, "publish.failed may omit data_ref")

	scored, err := reg.Lookup("idea.scored", 2)
	require.NoError(t, err)
	assert.True(t, scored.IsCompatibleWith(1))
}

func TestDefaultReturnsFreshCopy(t *testing.T) {
	a, err := Default()
	require.NoError(t, err)
	delete(a.Schemas, "idea.created")

	b, err := Default()
	require.NoError(t, err)
	assert.Contains(t, b.Schemas, contract.EventType("idea.created"))
}

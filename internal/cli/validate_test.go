package cli

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/agentcontract/internal/blob"
)

func TestValidateValidEnvelope(t *testing.T) {
	path := writeEnvelope(t, nil)

	out, err := execute(t, NewValidateCommand(testRootOptions(t, "text")), path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ idea.created v1 valid")
	assert.Contains(t, out, "fingerprint: ")
}

func TestValidateValidEnvelopeJSON(t *testing.T) {
	path := writeEnvelope(t, nil)

	out, err := execute(t, NewValidateCommand(testRootOptions(t, "json")), path)
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, data["valid"])
	stamp, ok := data["stamp"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, stamp["fingerprint"], 64)
}

func TestValidateFromStdin(t *testing.T) {
	cmd := NewValidateCommand(testRootOptions(t, "text"))
	cmd.SetIn(strings.NewReader(`{"type":"idea.created","id":"0b6f1c9e-6a34-4b8e-9a43-2f8f3e2d8c11","time":"2026-01-15T10:00:00Z","actor":"agent-aletheia","data_ref":"https://blobs.example.com/idea-1.json","meta":{},"schema_version":1}`))

	out, err := execute(t, cmd, "-")
	require.NoError(t, err)
	assert.Contains(t, out, "valid")
}

func TestValidateContractFailures(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]any
		wantCode  string
	}{
		{"unknown version", map[string]any{"schema_version": 2}, "UNKNOWN_VERSION"},
		{"unknown type", map[string]any{"type": "idea.unknown"}, "UNKNOWN_TYPE"},
		{"bad scheme", map[string]any{"data_ref": "ftp://mirror.example.com/idea-1.json"}, "INVALID_REFERENCE_SCHEME"},
		{"bad id", map[string]any{"id": "idea-1"}, "MALFORMED_ID"},
		{"missing actor", map[string]any{"actor": ""}, "MISSING_ACTOR"},
		{"future time", map[string]any{"time": "2999-01-01T00:00:00Z"}, "CLOCK_SKEW_EXCEEDED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeEnvelope(t, tt.overrides)

			out, err := execute(t, NewValidateCommand(testRootOptions(t, "text")), path)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tt.wantCode+"]")
		})
	}
}

func TestValidateMalformedEnvelope(t *testing.T) {
	path := writeEnvelope(t, map[string]any{"data-ref": "s3://typo/key"})

	out, err := execute(t, NewValidateCommand(testRootOptions(t, "json")), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "MALFORMED_ENVELOPE", resp.Error.Code)
}

func TestValidateMissingFile(t *testing.T) {
	out, err := execute(t, NewValidateCommand(testRootOptions(t, "text")), filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNotFound)
}

func TestValidateBadCatalog(t *testing.T) {
	opts := testRootOptions(t, "text")
	opts.Catalog = "../catalog/testdata/invalid.yaml"

	out, err := execute(t, NewValidateCommand(opts), writeEnvelope(t, nil))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "catalog is invalid")
}

func runValidateWithResolver(t *testing.T, r blob.Resolver) (string, error) {
	t.Helper()
	opts := &ValidateOptions{
		RootOptions:  testRootOptions(t, "text"),
		CheckPayload: true,
		resolver:     r,
	}
	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	err := runValidate(opts, writeEnvelope(t, nil), cmd)
	return buf.String(), err
}

func TestValidateCheckPayload(t *testing.T) {
	var fetched string
	r := blob.ResolverFunc(func(ctx context.Context, ref blob.Ref) ([]byte, error) {
		fetched = ref.Raw
		return []byte(`{"title":"Agents that argue","summary":"Debate as a review step","source_type":"rss"}`), nil
	})

	out, err := runValidateWithResolver(t, r)
	require.NoError(t, err)
	assert.Equal(t, "s3://mnemosyne-ideas/2026/01/idea-1.json", fetched)
	assert.Contains(t, out, "payload:     ok")
}

func TestValidateCheckPayloadViolations(t *testing.T) {
	r := blob.ResolverFunc(func(ctx context.Context, ref blob.Ref) ([]byte, error) {
		return []byte(`{"title":42}`), nil
	})

	out, err := runValidateWithResolver(t, r)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "payload does not match its schema")
	assert.Contains(t, out, "title: expected string")
	assert.Contains(t, out, "summary: required field is missing")
}

func TestValidateCheckPayloadFetchError(t *testing.T) {
	r := blob.ResolverFunc(func(ctx context.Context, ref blob.Ref) ([]byte, error) {
		return nil, errors.Join(blob.ErrNotFound, errors.New(ref.Raw))
	})

	out, err := runValidateWithResolver(t, r)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeFetch)
}

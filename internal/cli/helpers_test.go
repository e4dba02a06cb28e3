package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/agentcontract/internal/config"
	"github.com/roach88/agentcontract/internal/testutil"
)

// testRootOptions returns root options with the default configuration,
// as if no AGENTCONTRACT_* variable were set, and a clock frozen at
// testutil.DefaultNow.
func testRootOptions(t *testing.T, format string) *RootOptions {
	t.Helper()
	cfg, err := config.LoadFrom(nil)
	require.NoError(t, err)
	return &RootOptions{Format: format, Config: cfg, clock: testutil.NewFixedClock(time.Time{})}
}

// execute runs cmd with args and returns stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// envelopeFields returns a valid idea.created v1 envelope for the
// built-in catalog.
func envelopeFields() map[string]any {
	return map[string]any{
		"type":           "idea.created",
		"id":             "0b6f1c9e-6a34-4b8e-9a43-2f8f3e2d8c11",
		"time":           "2026-01-15T10:00:00Z",
		"actor":          "agent-aletheia",
		"data_ref":       "s3://mnemosyne-ideas/2026/01/idea-1.json",
		"meta":           map[string]any{"source": "rss"},
		"schema_version": 1,
	}
}

// writeEnvelope writes fields as JSON to a temp file, applying overrides.
func writeEnvelope(t *testing.T, overrides map[string]any) string {
	t.Helper()
	fields := envelopeFields()
	for k, v := range overrides {
		fields[k] = v
	}
	data, err := json.Marshal(fields)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "envelope.json")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

// decodeResponse parses a JSON CLI response.
func decodeResponse(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}

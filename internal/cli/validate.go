package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/agentcontract/internal/blob"
	"github.com/roach88/agentcontract/internal/contract"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	CheckPayload bool

	// resolver fetches payloads for --check-payload. Nil builds one from
	// the blob configuration.
	resolver blob.Resolver
}

// ValidateResult is the JSON payload of a successful validation.
type ValidateResult struct {
	Valid      bool                   `json:"valid"`
	Envelope   contract.ValidEnvelope `json:"stamp"`
	Violations []contract.Violation   `json:"violations,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <envelope.json>",
		Short: "Validate an event envelope",
		Long: `Validate an event envelope against the envelope contract and the
schema catalog. Use "-" to read the envelope from stdin.

With --check-payload the content behind data_ref is fetched (s3 or https)
and checked against the payload field rules of the declared version.

Exit codes:
  0 - Envelope is valid
  1 - Envelope (or its payload) violates the contract
  2 - Command error (unreadable file, catalog load failure, fetch failure)

Examples:
  agentcontract validate envelope.json
  agentcontract validate envelope.json --check-payload
  cat envelope.json | agentcontract validate - --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.CheckPayload, "check-payload", false, "fetch data_ref and check the payload fields")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	env, err := readEnvelope(path, cmd.InOrStdin())
	if err != nil {
		return envelopeInputError(formatter, path, err)
	}

	sess, err := openSession(opts.RootOptions, formatter)
	if err != nil {
		return err
	}
	defer sess.Close()

	stamped, err := sess.recorder.ValidateEnvelope(ctx, env)
	if err != nil {
		return contractError(formatter, err)
	}
	result := ValidateResult{Valid: true, Envelope: stamped}

	if opts.CheckPayload {
		violations, err := checkPayload(ctx, opts, stamped)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeFetch, err.Error(), nil)
		}
		if len(violations) > 0 {
			result.Valid = false
			result.Violations = violations
			_ = formatter.Failure(result, "PAYLOAD_VIOLATION",
				fmt.Sprintf("%d payload violation(s)", len(violations)),
				formatViolations(stamped, violations))
			return NewExitError(ExitFailure, fmt.Sprintf("%d payload violation(s)", len(violations)))
		}
	}

	return formatter.Success(result, formatStamp(stamped, opts.CheckPayload))
}

func checkPayload(ctx context.Context, opts *ValidateOptions, stamped contract.ValidEnvelope) ([]contract.Violation, error) {
	env := stamped.Envelope()
	if env.DataRef == "" {
		return nil, nil
	}
	r := opts.resolver
	if r == nil {
		mux, err := opts.Config.BlobResolver(ctx)
		if err != nil {
			return nil, err
		}
		r = mux
	}
	return blob.CheckPayload(ctx, r, env.DataRef, stamped.Schema().Fields)
}

func formatStamp(v contract.ValidEnvelope, payloadChecked bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ %s %s valid\n", v.Type(), v.Version())
	fmt.Fprintf(&b, "  id:          %s\n", v.ID())
	fmt.Fprintf(&b, "  fingerprint: %s", v.Fingerprint())
	if payloadChecked {
		b.WriteString("\n  payload:     ok")
	}
	if v.Deprecated() {
		fmt.Fprintf(&b, "\n  warning: %s %s is deprecated", v.Type(), v.Version())
	}
	return b.String()
}

func formatViolations(v contract.ValidEnvelope, violations []contract.Violation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✗ %s %s payload does not match its schema:", v.Type(), v.Version())
	for _, viol := range violations {
		fmt.Fprintf(&b, "\n  - %s", viol.Error())
	}
	return b.String()
}

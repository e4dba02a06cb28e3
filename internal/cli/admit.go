package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/agentcontract/internal/contract"
)

// AdmitOptions holds flags for the admit command.
type AdmitOptions struct {
	*RootOptions
	Accept   []int
	Min      int
	Max      int
	Consumer string
}

// AdmitResult is the JSON payload of an admission.
type AdmitResult struct {
	Decision contract.Decision            `json:"decision"`
	Policy   contract.CompatibilityPolicy `json:"policy"`

	// ReadAs is the version to interpret the payload as; 0 when rejected.
	ReadAs contract.SchemaVersion `json:"read_as,omitempty"`
}

// NewAdmitCommand creates the admit command.
func NewAdmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AdmitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "admit <envelope.json>",
		Short: "Decide whether a consumer may process an envelope",
		Long: `Validate an envelope, then adjudicate its declared schema version
against a consumer policy for the envelope's type.

The policy accepts the versions listed with --accept, the inclusive range
--min..--max, or both.

Exit codes:
  0 - Admitted (possibly with a downgrade)
  1 - Rejected, or the envelope is invalid
  2 - Command error

Examples:
  agentcontract admit envelope.json --accept 1,2
  agentcontract admit envelope.json --min 2 --max 4 --consumer agent-iris`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdmit(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntSliceVar(&opts.Accept, "accept", nil, "accepted versions (comma separated)")
	cmd.Flags().IntVar(&opts.Min, "min", 0, "lowest accepted version")
	cmd.Flags().IntVar(&opts.Max, "max", 0, "highest accepted version")
	cmd.Flags().StringVar(&opts.Consumer, "consumer", "", "consumer name recorded with the decision")

	return cmd
}

func runAdmit(opts *AdmitOptions, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	if len(opts.Accept) == 0 && opts.Min == 0 && opts.Max == 0 {
		return formatter.fail(ExitCommandError, ErrCodeBadFlags, "one of --accept or --min/--max is required", nil)
	}
	if (opts.Min == 0) != (opts.Max == 0) {
		return formatter.fail(ExitCommandError, ErrCodeBadFlags, "--min and --max must be given together", nil)
	}

	env, err := readEnvelope(path, cmd.InOrStdin())
	if err != nil {
		return envelopeInputError(formatter, path, err)
	}

	sess, err := openSession(opts.RootOptions, formatter)
	if err != nil {
		return err
	}
	defer sess.Close()

	if _, err := sess.recorder.ValidateEnvelope(ctx, env); err != nil {
		return contractError(formatter, err)
	}

	policy := opts.policy(env.Type)
	d := sess.recorder.AdmitEnvelope(ctx, env, policy)
	result := AdmitResult{Decision: d, Policy: policy, ReadAs: d.EffectiveVersion()}

	if !d.Admitted() {
		msg := fmt.Sprintf("%s %s rejected: %s", d.Type, d.Declared, d.Reason)
		_ = formatter.Failure(result, string(d.Reason), msg, "✗ "+msg)
		return NewExitError(ExitFailure, msg)
	}

	text := fmt.Sprintf("✓ %s %s admitted", d.Type, d.Declared)
	if d.Outcome == contract.OutcomeAdmitWithDowngrade {
		text = fmt.Sprintf("✓ %s %s admitted, read as %s", d.Type, d.Declared, d.Target)
	}
	return formatter.Success(result, text)
}

// policy builds the consumer policy for t from the flags.
func (o *AdmitOptions) policy(t contract.EventType) contract.CompatibilityPolicy {
	p := contract.CompatibilityPolicy{Consumer: o.Consumer, Type: t}
	for _, v := range o.Accept {
		p.Versions = append(p.Versions, contract.SchemaVersion(v))
	}
	if o.Min != 0 || o.Max != 0 {
		p.Range = &contract.VersionRange{
			Min: contract.SchemaVersion(o.Min),
			Max: contract.SchemaVersion(o.Max),
		}
	}
	return p
}

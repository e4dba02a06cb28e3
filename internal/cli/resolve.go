package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/agentcontract/internal/contract"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	Version int
}

// ResolveResult is the JSON payload of a resolution.
type ResolveResult struct {
	Type           contract.EventType       `json:"type"`
	Version        contract.SchemaVersion   `json:"version"`
	Description    string                   `json:"description,omitempty"`
	Deprecated     bool                     `json:"deprecated,omitempty"`
	CompatibleWith []contract.SchemaVersion `json:"compatible_with,omitempty"`
	Fields         contract.FieldRuleSet    `json:"fields"`
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <event-type>",
		Short: "Show the payload schema for an event type",
		Long: `Resolve the field rules for an event type and schema version.
Without --version the latest registered version is shown.

Examples:
  agentcontract resolve idea.scored
  agentcontract resolve idea.scored --version 1 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Version, "version", 0, "schema version (default: latest)")

	return cmd
}

func runResolve(opts *ResolveOptions, eventType string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	if opts.Version < 0 {
		return formatter.fail(ExitCommandError, ErrCodeBadFlags, "--version must be positive", nil)
	}

	sess, err := openSession(opts.RootOptions, formatter)
	if err != nil {
		return err
	}
	defer sess.Close()

	res, err := sess.engine.ResolvePayloadSchema(contract.EventType(eventType), contract.SchemaVersion(opts.Version))
	if err != nil {
		return contractError(formatter, err)
	}

	result := ResolveResult{
		Type:       res.Type,
		Version:    res.Version,
		Deprecated: res.Deprecated,
		Fields:     res.Fields,
	}
	if schema, err := sess.engine.Registry().Lookup(res.Type, res.Version); err == nil {
		result.Description = schema.Description
		result.CompatibleWith = schema.CompatibleWith
	}

	return formatter.Success(result, formatResolution(result))
}

func formatResolution(r ResolveResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", r.Type, r.Version)
	if r.Deprecated {
		b.WriteString(" (deprecated)")
	}
	b.WriteString("\n")
	if r.Description != "" {
		fmt.Fprintf(&b, "  %s\n", r.Description)
	}
	if len(r.CompatibleWith) > 0 {
		versions := make([]string, len(r.CompatibleWith))
		for i, v := range r.CompatibleWith {
			versions[i] = v.String()
		}
		fmt.Fprintf(&b, "  compatible with: %s\n", strings.Join(versions, ", "))
	}

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	for _, f := range r.Fields {
		required := "optional"
		if f.Required {
			required = "required"
		}
		schemes := ""
		if len(f.Schemes) > 0 {
			schemes = "schemes=" + strings.Join(f.Schemes, ",")
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", f.Name, f.Kind, required, schemes)
	}
	tw.Flush()
	return strings.TrimRight(b.String(), "\n")
}

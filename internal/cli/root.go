// Package cli implements the agentcontract command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/agentcontract/internal/config"
	"github.com/roach88/agentcontract/internal/validator"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Catalog string // overrides AGENTCONTRACT_CATALOG
	AuditDB string // overrides AGENTCONTRACT_AUDIT_DB

	// Config is read from the environment before any command runs.
	Config config.Config

	clock validator.Clock // nil means the system clock
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the agentcontract CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "agentcontract",
		Short: "Envelope contract engine for pipeline agents",
		Long: `Validate event envelopes, resolve payload schemas and adjudicate
schema version compatibility between producing and consuming agents.

Configuration is read from AGENTCONTRACT_* environment variables;
--catalog and --audit-db override them.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			cfg, err := config.Load()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			opts.Config = cfg
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Catalog, "catalog", "", "schema catalog path (default: built-in catalog)")
	cmd.PersistentFlags().StringVar(&opts.AuditDB, "audit-db", "", "record outcomes to this SQLite audit log")

	cmd.AddCommand(NewCatalogCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewAdmitCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewAuditCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// auditPath returns the flag value, falling back to the environment.
func (o *RootOptions) auditPath() string {
	if o.AuditDB != "" {
		return o.AuditDB
	}
	return o.Config.AuditDB
}

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/agentcontract/internal/engine"
)

// StatusResult is the JSON payload of the status command.
type StatusResult struct {
	engine.Health
	Catalog     string `json:"catalog"`
	CatalogHash string `json:"catalog_hash"`
	AuditDB     string `json:"audit_db,omitempty"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report contract engine health",
		Long: `Load the configured catalog, seal an engine and report its health
the way an agent's health endpoint would.

Exit codes:
  0 - healthy
  1 - degraded or unhealthy
  2 - Command error (catalog load failure, bad configuration)

Examples:
  agentcontract status
  agentcontract status --catalog ./schemas.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, cmd)
		},
	}
}

func runStatus(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	sess, err := openSession(opts, formatter)
	if err != nil {
		return err
	}
	defer sess.Close()

	hash, err := sess.catalog.Hash()
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	result := StatusResult{
		Health:      sess.engine.Health(),
		Catalog:     sess.catalog.Source,
		CatalogHash: hash,
		AuditDB:     opts.auditPath(),
	}

	text := formatStatus(result)
	if result.Status != engine.HealthHealthy {
		msg := fmt.Sprintf("contract engine is %s", result.Status)
		_ = formatter.Failure(result, strings.ToUpper(string(result.Status)), msg, text)
		return NewExitError(ExitFailure, msg)
	}
	return formatter.Success(result, text)
}

func formatStatus(r StatusResult) string {
	mark := "✓"
	if r.Status != engine.HealthHealthy {
		mark = "✗"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (engine %s, contract v%s)\n", mark, r.Status, r.EngineVersion, r.ContractVersion)
	fmt.Fprintf(&b, "  catalog: %s\n", r.Catalog)
	fmt.Fprintf(&b, "  hash:    %s\n", r.CatalogHash)
	fmt.Fprintf(&b, "  schemas: %d types, %d versions", r.Types, r.Versions)
	if r.Deprecated > 0 {
		fmt.Fprintf(&b, " (%d deprecated)", r.Deprecated)
	}
	if r.AuditDB != "" {
		fmt.Fprintf(&b, "\n  audit:   %s", r.AuditDB)
	}
	return b.String()
}

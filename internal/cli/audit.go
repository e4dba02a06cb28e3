package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/agentcontract/internal/contract"
	"github.com/roach88/agentcontract/internal/store"
)

// AuditOptions holds flags for the audit list command.
type AuditOptions struct {
	*RootOptions
	Database string
	Type     string
	Kind     string
	EventID  string
	After    int64
	Limit    int
}

// AuditResult holds the audit list output.
type AuditResult struct {
	Database string         `json:"database"`
	Records  []store.Record `json:"records"`
}

// NewAuditCommand creates the audit command group.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query the outcome audit log",
	}
	cmd.AddCommand(newAuditListCommand(rootOpts))
	return cmd
}

func newAuditListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AuditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded validation and admission outcomes",
		Long: `List outcomes recorded by validate and admit (or any agent using an
audit sink), oldest first.

Examples:
  agentcontract audit list --db ./audit.db
  agentcontract audit list --db ./audit.db --type idea.scored --kind admission
  agentcontract audit list --db ./audit.db --after 120 --limit 50 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuditList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite audit log (default: AGENTCONTRACT_AUDIT_DB)")
	cmd.Flags().StringVar(&opts.Type, "type", "", "only this event type")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only validation or admission outcomes")
	cmd.Flags().StringVar(&opts.EventID, "event-id", "", "only outcomes for this envelope id")
	cmd.Flags().Int64Var(&opts.After, "after", 0, "only outcomes with seq greater than this")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of outcomes (0 = all)")

	return cmd
}

func runAuditList(opts *AuditOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	path := opts.Database
	if path == "" {
		path = opts.auditPath()
	}
	if path == "" {
		return formatter.fail(ExitCommandError, ErrCodeBadFlags, "--db or AGENTCONTRACT_AUDIT_DB is required", nil)
	}
	// Opening would create an empty database; a typo should fail instead.
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return formatter.fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("database not found: %s", path), nil)
	}

	kind := store.RecordKind(opts.Kind)
	switch kind {
	case "", store.KindValidation, store.KindAdmission:
	default:
		return formatter.fail(ExitCommandError, ErrCodeBadFlags,
			fmt.Sprintf("invalid --kind %q: must be %s or %s", opts.Kind, store.KindValidation, store.KindAdmission), nil)
	}

	st, err := store.Open(path)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeLoadFailed, fmt.Sprintf("failed to open database: %v", err), nil)
	}
	defer st.Close()

	records, err := st.ListOutcomes(ctx, store.Filter{
		Kind:     kind,
		Type:     contract.EventType(opts.Type),
		EventID:  opts.EventID,
		AfterSeq: opts.After,
		Limit:    opts.Limit,
	})
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	return formatter.Success(AuditResult{Database: path, Records: records}, formatRecords(records))
}

func formatRecords(records []store.Record) string {
	if len(records) == 0 {
		return "No outcomes recorded."
	}
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tKIND\tTYPE\tVERSION\tOUTCOME\tDETAIL")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.Seq, r.Kind, r.EventType, r.SchemaVersion, r.Outcome, recordDetail(r))
	}
	tw.Flush()
	return strings.TrimRight(b.String(), "\n")
}

func recordDetail(r store.Record) string {
	switch {
	case r.Target != 0:
		return "read as " + r.Target.String()
	case r.Reason != "":
		return r.Reason
	case r.Field != "":
		return r.Field + ": " + r.Message
	case r.Consumer != "":
		return "consumer " + r.Consumer
	default:
		return ""
	}
}

package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/agentcontract/internal/catalog"
	"github.com/roach88/agentcontract/internal/contract"
)

// CatalogValidateResult holds catalog validation results.
type CatalogValidateResult struct {
	Valid    bool                     `json:"valid"`
	Source   string                   `json:"source"`
	Types    int                      `json:"types"`
	Versions int                      `json:"versions"`
	Hash     string                   `json:"hash,omitempty"`
	Errors   catalog.ValidationErrors `json:"errors,omitempty"`
}

// CatalogEntry is one schema version in catalog list output.
type CatalogEntry struct {
	Type           contract.EventType       `json:"type"`
	Version        contract.SchemaVersion   `json:"version"`
	Deprecated     bool                     `json:"deprecated,omitempty"`
	CompatibleWith []contract.SchemaVersion `json:"compatible_with,omitempty"`
	Fields         int                      `json:"fields"`
}

// NewCatalogCommand creates the catalog command group.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and validate schema catalogs",
	}
	cmd.AddCommand(newCatalogValidateCommand(rootOpts))
	cmd.AddCommand(newCatalogListCommand(rootOpts))
	return cmd
}

func newCatalogValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <path>",
		Short: "Validate a schema catalog without loading it",
		Long: `Parse a schema catalog (.yaml, .yml, .json, .toml, .cue or a CUE
package directory) and check it against the registration rules.
Every problem is reported, not just the first.

Exit codes:
  0 - Catalog is valid
  1 - Catalog has validation errors
  2 - Command error (file not found, parse failure)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogValidate(rootOpts, args[0], cmd)
		},
	}
}

func runCatalogValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cat, err := catalog.Load(path)
	if err != nil {
		code := ErrCodeLoadFailed
		if errors.Is(err, fs.ErrNotExist) {
			code = ErrCodeNotFound
		}
		return formatter.fail(ExitCommandError, code, err.Error(), nil)
	}
	formatter.VerboseLog("Parsed %s: %d types", path, len(cat.Types()))

	result := CatalogValidateResult{
		Source:   cat.Source,
		Types:    len(cat.Types()),
		Versions: cat.Len(),
	}

	if verrs := catalog.Validate(cat); len(verrs) > 0 {
		result.Errors = verrs
		msg := fmt.Sprintf("catalog has %d validation error(s)", len(verrs))
		var b strings.Builder
		fmt.Fprintf(&b, "✗ Validation failed: %s\n", path)
		for _, e := range verrs {
			fmt.Fprintf(&b, "  [%s] %s: %s\n", e.Code, e.Field, e.Message)
		}
		_ = formatter.Failure(result, "E_VALIDATION_FAILED", msg, strings.TrimRight(b.String(), "\n"))
		return NewExitError(ExitFailure, "validation failed: "+msg)
	}

	hash, err := cat.Hash()
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	result.Valid = true
	result.Hash = hash

	text := fmt.Sprintf("✓ Catalog valid: %d types, %d versions\n  hash: %s", result.Types, result.Versions, hash)
	return formatter.Success(result, text)
}

func newCatalogListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the event types and versions of the configured catalog",
		Long: `List every schema version in the catalog selected by --catalog or
AGENTCONTRACT_CATALOG (the built-in catalog when neither is set).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogList(rootOpts, cmd)
		},
	}
}

func runCatalogList(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cat, err := loadCatalog(opts)
	if err != nil {
		return catalogLoadError(formatter, err)
	}

	schemas := cat.List()
	entries := make([]CatalogEntry, len(schemas))
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d types, %d versions", cat.Source, len(cat.Types()), len(schemas))
	for i, s := range schemas {
		entries[i] = CatalogEntry{
			Type:           s.Type,
			Version:        s.Version,
			Deprecated:     s.Deprecated,
			CompatibleWith: s.CompatibleWith,
			Fields:         len(s.Fields),
		}
		fmt.Fprintf(&b, "\n  %s %s", s.Type, s.Version)
		if len(s.CompatibleWith) > 0 {
			fmt.Fprintf(&b, " (reads as %v)", s.CompatibleWith)
		}
		if s.Deprecated {
			b.WriteString(" [deprecated]")
		}
	}
	return formatter.Success(entries, b.String())
}

package catalog

import (
	"fmt"
	"strings"

	"github.com/roach88/agentcontract/internal/contract"
)

// Validation error codes (E100-E199)
const (
	// General catalog errors (E100)
	ErrEmptyCatalog = "E100" // catalog declares no schemas

	// Type errors (E101-E102)
	ErrInvalidEventType = "E101" // type name is not namespace.action
	ErrNoVersions       = "E102" // type declares no versions

	// Version errors (E103-E104)
	ErrInvalidVersion   = "E103" // version must be >= 1
	ErrDuplicateVersion = "E104" // version declared twice for a type

	// Field rule errors (E105-E109)
	ErrInvalidFieldKind = "E105" // kind is not a known FieldKind
	ErrDuplicateField   = "E106" // field name declared twice
	ErrEmptyFieldName   = "E107" // field name is required
	ErrSchemesOnNonRef  = "E108" // schemes given on a non-reference rule
	ErrInvalidDataRef   = "E109" // data_ref must be a reference rule with schemes

	// Compatibility errors (E110-E111)
	ErrCompatNotOlder   = "E110" // compatible_with target is not strictly older
	ErrCompatUndeclared = "E111" // compatible_with target is not in the catalog

	// Scheme errors (E112)
	ErrInvalidScheme = "E112" // scheme is empty after normalization
)

// ValidationError is one problem found in a catalog.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors collects every problem found in a catalog.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (es ValidationErrors) Error() string {
	switch len(es) {
	case 0:
		return "no validation errors"
	case 1:
		return es[0].Error()
	}
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d validation errors:\n  %s", len(es), strings.Join(msgs, "\n  "))
}

// Validate checks a catalog against the registration rules.
// Returns all errors found (does not fail-fast), in a deterministic order.
func Validate(cat *Catalog) ValidationErrors {
	var errs ValidationErrors

	if cat == nil || len(cat.Schemas) == 0 {
		return append(errs, ValidationError{
			Field:   "schemas",
			Message: "catalog declares no schemas",
			Code:    ErrEmptyCatalog,
		})
	}

	for _, t := range cat.Types() {
		errs = append(errs, validateType(t, cat.Schemas[t])...)
	}
	return errs
}

func validateType(t contract.EventType, entries []Entry) []ValidationError {
	var errs []ValidationError
	base := fmt.Sprintf("schemas[%s]", t)

	// E101: namespace.action naming
	if !t.Valid() {
		errs = append(errs, ValidationError{
			Field:   base,
			Message: fmt.Sprintf("event type %q must be lower-case dotted (namespace.action)", t),
			Code:    ErrInvalidEventType,
		})
	}

	// E102: at least one version
	if len(entries) == 0 {
		errs = append(errs, ValidationError{
			Field:   base,
			Message: fmt.Sprintf("event type %q declares no versions", t),
			Code:    ErrNoVersions,
		})
		return errs
	}

	declared := make(map[contract.SchemaVersion]bool, len(entries))
	for _, e := range entries {
		declared[e.Version] = true
	}

	seen := make(map[contract.SchemaVersion]bool, len(entries))
	for i, e := range entries {
		path := fmt.Sprintf("%s[%d]", base, i)

		// E103: version >= 1
		if e.Version < 1 {
			errs = append(errs, ValidationError{
				Field:   path + ".version",
				Message: fmt.Sprintf("version must be >= 1, got %d", e.Version),
				Code:    ErrInvalidVersion,
			})
		}

		// E104: duplicate version
		if seen[e.Version] {
			errs = append(errs, ValidationError{
				Field:   path + ".version",
				Message: fmt.Sprintf("duplicate version %d", e.Version),
				Code:    ErrDuplicateVersion,
			})
		}
		seen[e.Version] = true

		errs = append(errs, validateFields(path, e.Fields)...)

		for j, target := range e.CompatibleWith {
			field := fmt.Sprintf("%s.compatible_with[%d]", path, j)

			// E110: strictly older
			if target >= e.Version {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("version %d cannot declare compatibility with %d; targets must be older", e.Version, target),
					Code:    ErrCompatNotOlder,
				})
				continue
			}

			// E111: declared in the catalog
			if !declared[target] {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("compatibility target %d is not declared for %s", target, t),
					Code:    ErrCompatUndeclared,
				})
			}
		}
	}
	return errs
}

func validateFields(path string, fields contract.FieldRuleSet) []ValidationError {
	var errs []ValidationError
	names := make(map[string]bool, len(fields))

	for i, rule := range fields {
		field := fmt.Sprintf("%s.fields[%d]", path, i)

		// E107: name required
		if strings.TrimSpace(rule.Name) == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: "field name is required",
				Code:    ErrEmptyFieldName,
			})
		}

		// E106: duplicate name
		if rule.Name != "" && names[rule.Name] {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate field name: %q", rule.Name),
				Code:    ErrDuplicateField,
			})
		}
		names[rule.Name] = true

		// E105: known kind
		if !contract.ValidFieldKinds[rule.Kind] {
			errs = append(errs, ValidationError{
				Field:   field + ".kind",
				Message: fmt.Sprintf("invalid kind %q for field %q", rule.Kind, rule.Name),
				Code:    ErrInvalidFieldKind,
			})
		}

		// E108: schemes only on references
		if len(rule.Schemes) > 0 && rule.Kind != contract.KindReference {
			errs = append(errs, ValidationError{
				Field:   field + ".schemes",
				Message: fmt.Sprintf("field %q of kind %q cannot declare schemes", rule.Name, rule.Kind),
				Code:    ErrSchemesOnNonRef,
			})
		}

		// E109: data_ref shape
		if rule.Name == contract.DataRefField && (rule.Kind != contract.KindReference || len(rule.Schemes) == 0) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "data_ref must be a reference rule with at least one scheme",
				Code:    ErrInvalidDataRef,
			})
		}

		// E112: non-empty schemes
		for j, sc := range rule.Schemes {
			if contract.NormalizeScheme(sc) == "" {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.schemes[%d]", field, j),
					Message: fmt.Sprintf("empty scheme for field %q", rule.Name),
					Code:    ErrInvalidScheme,
				})
			}
		}
	}
	return errs
}

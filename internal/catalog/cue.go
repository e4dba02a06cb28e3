package catalog

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/agentcontract/internal/contract"
)

// ParseCUE compiles a single CUE file into a catalog. The file must
// define a top-level schemas struct keyed by event type:
//
//	schemas: "idea.created": [{
//		version: 1
//		fields: [{name: "data_ref", kind: "reference", required: true, schemes: ["s3", "https"]}]
//	}]
//
// CUE definitions and constraints may be used freely; only the concrete
// result is read.
func ParseCUE(data []byte, filename string) (*Catalog, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	return CompileCUE(v)
}

// LoadCUEDir loads every CUE file of the package in dir as one catalog.
func LoadCUEDir(dir string) (*Catalog, error) {
	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("catalog %s: no CUE instances loaded", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("catalog %s: loading CUE files: %w", dir, inst.Err)
	}

	cat, err := CompileCUE(ctx.BuildInstance(inst))
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", dir, err)
	}
	cat.Source = dir
	return cat, nil
}

// CompileCUE extracts a catalog from a built CUE value.
func CompileCUE(v cue.Value) (*Catalog, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	schemasVal := v.LookupPath(cue.ParsePath("schemas"))
	if !schemasVal.Exists() {
		return nil, &CompileError{
			Field:   "schemas",
			Message: "schemas is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := schemasVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	cat := &Catalog{Schemas: make(map[contract.EventType][]Entry)}
	for iter.Next() {
		t := contract.EventType(iter.Selector().Unquoted())
		entries, err := compileEntries(t, iter.Value())
		if err != nil {
			return nil, err
		}
		cat.Schemas[t] = entries
	}
	return cat, nil
}

// compileEntries parses the version list of one event type.
func compileEntries(t contract.EventType, v cue.Value) ([]Entry, error) {
	list, err := v.List()
	if err != nil {
		return nil, &CompileError{
			Field:   fmt.Sprintf("schemas.%q", t),
			Message: "must be a list of versions",
			Pos:     v.Pos(),
		}
	}

	var entries []Entry
	for i := 0; list.Next(); i++ {
		entry, err := compileEntry(fmt.Sprintf("schemas.%q[%d]", t, i), list.Value())
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func compileEntry(path string, v cue.Value) (Entry, error) {
	var entry Entry

	versionVal := v.LookupPath(cue.ParsePath("version"))
	if !versionVal.Exists() {
		return entry, &CompileError{
			Field:   path + ".version",
			Message: "version is required",
			Pos:     v.Pos(),
		}
	}
	n, err := versionVal.Int64()
	if err != nil {
		return entry, formatCUEError(err)
	}
	entry.Version = contract.SchemaVersion(n)

	if descVal := v.LookupPath(cue.ParsePath("description")); descVal.Exists() {
		if entry.Description, err = descVal.String(); err != nil {
			return entry, formatCUEError(err)
		}
	}

	if depVal := v.LookupPath(cue.ParsePath("deprecated")); depVal.Exists() {
		if entry.Deprecated, err = depVal.Bool(); err != nil {
			return entry, formatCUEError(err)
		}
	}

	if compatVal := v.LookupPath(cue.ParsePath("compatible_with")); compatVal.Exists() {
		iter, err := compatVal.List()
		if err != nil {
			return entry, formatCUEError(err)
		}
		for iter.Next() {
			target, err := iter.Value().Int64()
			if err != nil {
				return entry, formatCUEError(err)
			}
			entry.CompatibleWith = append(entry.CompatibleWith, contract.SchemaVersion(target))
		}
	}

	if fieldsVal := v.LookupPath(cue.ParsePath("fields")); fieldsVal.Exists() {
		entry.Fields, err = compileFields(path+".fields", fieldsVal)
		if err != nil {
			return entry, err
		}
	}

	return entry, nil
}

// compileFields parses field rules. Kind strings are kept verbatim;
// Validate reports unknown kinds with the rest of the catalog's problems.
func compileFields(path string, v cue.Value) (contract.FieldRuleSet, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var rules contract.FieldRuleSet
	for i := 0; iter.Next(); i++ {
		fv := iter.Value()
		var rule contract.FieldRule

		nameVal := fv.LookupPath(cue.ParsePath("name"))
		if !nameVal.Exists() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("%s[%d].name", path, i),
				Message: "field name is required",
				Pos:     fv.Pos(),
			}
		}
		if rule.Name, err = nameVal.String(); err != nil {
			return nil, formatCUEError(err)
		}

		kindVal := fv.LookupPath(cue.ParsePath("kind"))
		if !kindVal.Exists() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("%s[%d].kind", path, i),
				Message: "field kind is required",
				Pos:     fv.Pos(),
			}
		}
		kind, err := kindVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		rule.Kind = contract.FieldKind(kind)

		if reqVal := fv.LookupPath(cue.ParsePath("required")); reqVal.Exists() {
			if rule.Required, err = reqVal.Bool(); err != nil {
				return nil, formatCUEError(err)
			}
		}

		if schemesVal := fv.LookupPath(cue.ParsePath("schemes")); schemesVal.Exists() {
			schemes, err := schemesVal.List()
			if err != nil {
				return nil, formatCUEError(err)
			}
			for schemes.Next() {
				s, err := schemes.Value().String()
				if err != nil {
					return nil, formatCUEError(err)
				}
				rule.Schemes = append(rule.Schemes, s)
			}
		}

		rules = append(rules, rule)
	}
	return rules, nil
}

// CompileError represents a CUE catalog error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// First error with a position wins.
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}

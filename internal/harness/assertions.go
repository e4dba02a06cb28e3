package harness

import (
	"fmt"

	"github.com/roach88/agentcontract/internal/resolver"
)

// checkExpect compares a step's trace event against its expect clause and
// returns one message per mismatch. Only fields set in exp are checked.
func checkExpect(ev TraceEvent, res *resolver.Resolution, exp *Expect) []string {
	if exp == nil {
		return nil
	}

	var errs []string
	mismatch := func(what string, want, got any) {
		errs = append(errs, fmt.Sprintf("expected %s %v, got %v", what, want, got))
	}

	if exp.Valid != nil {
		got := ev.Outcome == OutcomeValid
		if got != *exp.Valid {
			mismatch("valid", *exp.Valid, fmt.Sprintf("%t (%s)", got, ev.Outcome))
		}
	}
	if exp.Error != "" && ev.Outcome != exp.Error {
		mismatch("error", exp.Error, ev.Outcome)
	}
	if exp.Field != "" && ev.Field != exp.Field {
		mismatch("field", exp.Field, ev.Field)
	}
	if exp.Deprecated != nil && ev.Deprecated != *exp.Deprecated {
		mismatch("deprecated", *exp.Deprecated, ev.Deprecated)
	}
	if exp.Outcome != "" && ev.Outcome != exp.Outcome {
		mismatch("outcome", exp.Outcome, ev.Outcome)
	}
	if exp.Target != 0 && ev.Target != exp.Target {
		mismatch("target", exp.Target, ev.Target)
	}
	if exp.Reason != "" && ev.Reason != exp.Reason {
		mismatch("reason", exp.Reason, ev.Reason)
	}
	if exp.Version != 0 && ev.Version != exp.Version {
		mismatch("version", exp.Version, ev.Version)
	}

	if len(exp.Fields) > 0 {
		if res == nil {
			errs = append(errs, fmt.Sprintf("expected fields %v, but nothing was resolved", exp.Fields))
		} else {
			for _, name := range exp.Fields {
				if _, ok := res.Fields.Lookup(name); !ok {
					errs = append(errs, fmt.Sprintf("expected field %q in %s v%d", name, res.Type, res.Version))
				}
			}
		}
	}
	return errs
}

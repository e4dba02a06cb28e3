package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/agentcontract/internal/contract"
)

// Scenario defines a conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Catalog is the schema catalog path, relative to the scenario file.
	// Empty selects the built-in catalog.
	Catalog string `yaml:"catalog,omitempty"`

	// Now is the fixed validator clock (RFC 3339). Empty uses
	// testutil.DefaultNow.
	Now string `yaml:"now,omitempty"`

	// ClockSkew overrides the allowed producer clock skew ("30s").
	// Empty keeps the engine default; "0s" disables the check.
	ClockSkew string `yaml:"clock_skew,omitempty"`

	// Consumer names the consumer recorded with admission outcomes.
	Consumer string `yaml:"consumer,omitempty"`

	// Base holds envelope fields shared by every step. A step's own
	// envelope fields override them.
	Base map[string]any `yaml:"base,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`
}

// Step actions.
const (
	ActionValidate = "validate"
	ActionAdmit    = "admit"
	ActionResolve  = "resolve"
)

// Step is one engine call.
type Step struct {
	// Action is validate, admit or resolve.
	Action string `yaml:"action"`

	// Envelope holds the envelope fields (validate, admit), merged over
	// Scenario.Base.
	Envelope map[string]any `yaml:"envelope,omitempty"`

	// Policies are the consumer's policies (admit).
	Policies []contract.CompatibilityPolicy `yaml:"policies,omitempty"`

	// Type and Version select the schema to resolve (resolve). Version 0
	// resolves the latest.
	Type    string `yaml:"type,omitempty"`
	Version int64  `yaml:"version,omitempty"`

	// Expect is checked against the engine result. Nil means no check.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is a subset match on a step result: only set fields are checked.
type Expect struct {
	// Valid expects validation success (true) or any failure (false).
	Valid *bool `yaml:"valid,omitempty"`

	// Error is the expected error kind (validate, resolve).
	Error string `yaml:"error,omitempty"`

	// Field is the expected failing envelope field.
	Field string `yaml:"field,omitempty"`

	// Deprecated expects the stamped or resolved schema's flag.
	Deprecated *bool `yaml:"deprecated,omitempty"`

	// Outcome, Target and Reason check an admission decision.
	Outcome string `yaml:"outcome,omitempty"`
	Target  int64  `yaml:"target,omitempty"`
	Reason  string `yaml:"reason,omitempty"`

	// Version is the expected resolved version (resolve).
	Version int64 `yaml:"version,omitempty"`

	// Fields lists field names the resolved schema must contain.
	Fields []string `yaml:"fields,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file. A relative catalog
// path is resolved against the scenario file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if scenario.Catalog != "" && !filepath.IsAbs(scenario.Catalog) {
		scenario.Catalog = filepath.Join(filepath.Dir(path), scenario.Catalog)
	}
	return scenario, nil
}

// ParseScenario decodes and validates a scenario document. Catalog paths
// are left as written.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "polices:" vs "policies:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Now != "" {
		if _, err := time.Parse(time.RFC3339Nano, s.Now); err != nil {
			return fmt.Errorf("now: %q is not an RFC 3339 timestamp", s.Now)
		}
	}
	if s.ClockSkew != "" {
		if _, err := time.ParseDuration(s.ClockSkew); err != nil {
			return fmt.Errorf("clock_skew: %w", err)
		}
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	return nil
}

// validateStep validates a single step based on its action.
func validateStep(index int, st *Step) error {
	switch st.Action {
	case "":
		return fmt.Errorf("steps[%d]: action is required", index)
	case ActionValidate:
	case ActionAdmit:
		if len(st.Policies) == 0 {
			return fmt.Errorf("steps[%d]: policies are required for admit", index)
		}
	case ActionResolve:
		if st.Type == "" {
			return fmt.Errorf("steps[%d]: type is required for resolve", index)
		}
		if st.Version < 0 {
			return fmt.Errorf("steps[%d]: version must be non-negative", index)
		}
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", index, st.Action)
	}

	if st.Expect != nil && st.Expect.Outcome != "" && st.Action != ActionAdmit {
		return fmt.Errorf("steps[%d].expect: outcome only applies to admit", index)
	}
	return nil
}

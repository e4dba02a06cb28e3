package contract

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// EventType is a namespaced event kind, e.g. "idea.created".
type EventType string

// eventTypePattern matches "noun.verb" style names with at least two segments.
var eventTypePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)+$`)

// Valid reports whether the event type is well formed.
func (t EventType) Valid() bool {
	return eventTypePattern.MatchString(string(t))
}

// Namespace returns the first segment of the event type ("idea" for "idea.created").
func (t EventType) Namespace() string {
	ns, _, _ := strings.Cut(string(t), ".")
	return ns
}

func (t EventType) String() string { return string(t) }

// SchemaVersion is a monotonically increasing version scoped to one EventType.
// Registered versions are >= 1.
type SchemaVersion int64

// LatestVersion asks the resolver for the highest registered version.
const LatestVersion SchemaVersion = 0

func (v SchemaVersion) String() string { return fmt.Sprintf("v%d", int64(v)) }

// SortVersions sorts versions ascending in place.
func SortVersions(vs []SchemaVersion) {
	sort.Slice(vs, func(i, j int) bool { return vs[i] < vs[j] })
}

// FieldKind is the primitive kind a field rule constrains a value to.
type FieldKind string

const (
	KindString    FieldKind = "string"
	KindNumber    FieldKind = "number"
	KindBoolean   FieldKind = "boolean"
	KindTimestamp FieldKind = "timestamp"
	KindReference FieldKind = "reference"
	KindMapping   FieldKind = "mapping"
)

// ValidFieldKinds defines allowed field kinds.
var ValidFieldKinds = map[FieldKind]bool{
	KindString:    true,
	KindNumber:    true,
	KindBoolean:   true,
	KindTimestamp: true,
	KindReference: true,
	KindMapping:   true,
}

// DataRefField is the name of the envelope-level reference rule. A schema
// declares whether data_ref may be absent and which schemes it accepts by
// carrying a reference rule under this name.
const DataRefField = "data_ref"

// DefaultSchemes are the schemes allowed for data_ref when a schema does
// not declare its own data_ref rule.
var DefaultSchemes = []string{"s3", "https"}

// FieldRule constrains one field of an envelope or payload-metadata object.
type FieldRule struct {
	Name     string    `json:"name" yaml:"name" toml:"name"`
	Required bool      `json:"required" yaml:"required" toml:"required"`
	Kind     FieldKind `json:"kind" yaml:"kind" toml:"kind"`
	Schemes  []string  `json:"schemes,omitempty" yaml:"schemes,omitempty" toml:"schemes,omitempty"` // reference rules only
}

// AllowsScheme reports whether scheme is accepted by a reference rule.
// Comparison is case-insensitive.
func (r FieldRule) AllowsScheme(scheme string) bool {
	scheme = NormalizeScheme(scheme)
	for _, s := range r.Schemes {
		if NormalizeScheme(s) == scheme {
			return true
		}
	}
	return false
}

// NormalizeScheme lower-cases a scheme and strips a trailing "://" or ":".
// "S3://" and "s3" both normalize to "s3".
func NormalizeScheme(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "://")
	return strings.TrimSuffix(s, ":")
}

// FieldRuleSet is the ordered set of rules registered for one schema version.
type FieldRuleSet []FieldRule

// Lookup returns the rule with the given name.
func (s FieldRuleSet) Lookup(name string) (FieldRule, bool) {
	for _, r := range s {
		if r.Name == name {
			return r, true
		}
	}
	return FieldRule{}, false
}

// DataRef returns the effective data_ref rule: the declared one, or a
// required reference rule over DefaultSchemes when none is declared.
func (s FieldRuleSet) DataRef() FieldRule {
	if r, ok := s.Lookup(DataRefField); ok {
		return r
	}
	return FieldRule{
		Name:     DataRefField,
		Required: true,
		Kind:     KindReference,
		Schemes:  append([]string(nil), DefaultSchemes...),
	}
}

// Payload returns the rules describing payload shape metadata, i.e. every
// rule except the envelope-level data_ref rule.
func (s FieldRuleSet) Payload() FieldRuleSet {
	out := make(FieldRuleSet, 0, len(s))
	for _, r := range s {
		if r.Name != DataRefField {
			out = append(out, r)
		}
	}
	return out
}

// Clone returns a deep copy of the rule set.
func (s FieldRuleSet) Clone() FieldRuleSet {
	if s == nil {
		return nil
	}
	out := make(FieldRuleSet, len(s))
	for i, r := range s {
		r.Schemes = append([]string(nil), r.Schemes...)
		out[i] = r
	}
	return out
}

// Schema is one immutable version of an EventType's contract.
type Schema struct {
	Type        EventType       `json:"type"`
	Version     SchemaVersion   `json:"version"`
	Description string          `json:"description,omitempty"`
	Fields      FieldRuleSet    `json:"fields"`
	// CompatibleWith lists strictly older versions this version is a strict
	// superset of. It is supplied by the schema author, never inferred.
	CompatibleWith []SchemaVersion `json:"compatible_with,omitempty"`
	Deprecated     bool            `json:"deprecated,omitempty"`
}

// IsCompatibleWith reports whether payloads of this version may be
// reinterpreted as target.
func (s Schema) IsCompatibleWith(target SchemaVersion) bool {
	for _, v := range s.CompatibleWith {
		if v == target {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the schema.
func (s Schema) Clone() Schema {
	s.Fields = s.Fields.Clone()
	s.CompatibleWith = append([]SchemaVersion(nil), s.CompatibleWith...)
	return s
}

package contract

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// Violation describes one payload-metadata field that does not satisfy its rule.
type Violation struct {
	Field   string    `json:"field"`
	Kind    FieldKind `json:"kind"`
	Message string    `json:"message"`
}

func (v Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// Check validates dereferenced payload metadata against the payload rules.
// Returns all violations found (does not fail-fast). Fields without a rule
// are ignored. The engine never calls Check; agent code does, after
// fetching the content a data_ref points at.
func (s FieldRuleSet) Check(payload map[string]any) []Violation {
	var violations []Violation
	for _, rule := range s.Payload() {
		val, ok := payload[rule.Name]
		if !ok || val == nil {
			if rule.Required {
				violations = append(violations, Violation{
					Field:   rule.Name,
					Kind:    rule.Kind,
					Message: "required field is missing",
				})
			}
			continue
		}
		if msg := checkKind(rule, val); msg != "" {
			violations = append(violations, Violation{
				Field:   rule.Name,
				Kind:    rule.Kind,
				Message: msg,
			})
		}
	}
	return violations
}

// checkKind returns a non-empty message when val does not match the rule kind.
func checkKind(rule FieldRule, val any) string {
	switch rule.Kind {
	case KindString:
		if _, ok := val.(string); !ok {
			return fmt.Sprintf("expected string, got %T", val)
		}
	case KindNumber:
		switch val.(type) {
		case float64, float32, int, int32, int64, json.Number:
		default:
			return fmt.Sprintf("expected number, got %T", val)
		}
	case KindBoolean:
		if _, ok := val.(bool); !ok {
			return fmt.Sprintf("expected boolean, got %T", val)
		}
	case KindTimestamp:
		s, ok := val.(string)
		if !ok {
			return fmt.Sprintf("expected timestamp string, got %T", val)
		}
		if _, err := time.Parse(time.RFC3339Nano, s); err != nil {
			return fmt.Sprintf("invalid RFC 3339 timestamp %q", s)
		}
	case KindReference:
		s, ok := val.(string)
		if !ok {
			return fmt.Sprintf("expected reference string, got %T", val)
		}
		u, err := ParseReference(s)
		if err != nil {
			return err.Error()
		}
		if len(rule.Schemes) > 0 && !rule.AllowsScheme(u.Scheme) {
			return fmt.Sprintf("scheme %q not allowed (allowed: %v)", u.Scheme, rule.Schemes)
		}
	case KindMapping:
		if _, ok := val.(map[string]any); !ok {
			return fmt.Sprintf("expected mapping, got %T", val)
		}
	default:
		return fmt.Sprintf("unknown field kind %q", rule.Kind)
	}
	return ""
}

// ParseReference parses a reference URI. The reference must be absolute
// (carry a scheme) and name a location (host or opaque part).
func ParseReference(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid reference %q: %w", raw, err)
	}
	if u.Scheme == "" {
		return nil, fmt.Errorf("reference %q has no scheme", raw)
	}
	if u.Host == "" && u.Opaque == "" && u.Path == "" {
		return nil, fmt.Errorf("reference %q has no location", raw)
	}
	return u, nil
}

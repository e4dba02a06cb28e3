package contract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Envelope is the standard wrapper around every inter-agent event.
// The payload is not inlined; DataRef points at externally stored content.
type Envelope struct {
	Type          EventType      `json:"type"`
	ID            string         `json:"id"`
	Time          string         `json:"time"` // producer clock, RFC 3339
	Actor         string         `json:"actor"`
	DataRef       string         `json:"data_ref,omitempty"`
	Meta          map[string]any `json:"meta"`
	SchemaVersion SchemaVersion  `json:"schema_version"`
	CorrelationID string         `json:"correlation_id,omitempty"` // links related events
}

// DecodeEnvelope parses a JSON envelope. Unknown fields are rejected so a
// producer typo ("data-ref") surfaces instead of silently dropping data.
// A meta value that is not an object, or that holds a number outside the
// float64 range, fails with ErrMalformedEnvelope.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		field := ""
		if te, ok := err.(*json.UnmarshalTypeError); ok {
			field = te.Field
		}
		return Envelope{}, &Error{
			Kind:    ErrMalformedEnvelope,
			Field:   field,
			Message: err.Error(),
		}
	}
	if err := checkMeta(env.Meta); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// checkMeta reports meta numbers that have no finite float64 value and so
// cannot be fingerprinted.
func checkMeta(meta map[string]any) error {
	if path, ok := nonFinite(meta, "meta"); ok {
		return &Error{
			Kind:    ErrMalformedEnvelope,
			Field:   "meta",
			Message: fmt.Sprintf("%s is not a finite number", path),
		}
	}
	return nil
}

func nonFinite(v any, path string) (string, bool) {
	switch val := v.(type) {
	case map[string]any:
		for _, k := range sortedKeysUTF16(val) {
			if p, ok := nonFinite(val[k], path+"."+k); ok {
				return p, true
			}
		}
	case []any:
		for i, elem := range val {
			if p, ok := nonFinite(elem, fmt.Sprintf("%s[%d]", path, i)); ok {
				return p, true
			}
		}
	case json.Number:
		if _, err := val.Int64(); err == nil {
			return "", false
		}
		f, err := val.Float64()
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return path, true
		}
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return path, true
		}
	case float32:
		if f := float64(val); math.IsNaN(f) || math.IsInf(f, 0) {
			return path, true
		}
	}
	return "", false
}

// ValidEnvelope is an Envelope stamped by the validator. It is immutable:
// accessors return copies and there are no setters.
type ValidEnvelope struct {
	env         Envelope
	time        time.Time
	schema      Schema
	fingerprint string
}

// NewValidEnvelope stamps an envelope that has passed validation against
// schema. Callers outside the validator should not need it. A meta mapping
// that cannot be fingerprinted fails with ErrMalformedEnvelope.
func NewValidEnvelope(env Envelope, ts time.Time, schema Schema) (ValidEnvelope, error) {
	env.Meta = cloneMeta(env.Meta)
	if err := checkMeta(env.Meta); err != nil {
		return ValidEnvelope{}, err
	}
	fp, err := Fingerprint(env)
	if err != nil {
		return ValidEnvelope{}, &Error{
			Kind:    ErrMalformedEnvelope,
			Field:   "meta",
			Type:    env.Type,
			Version: env.SchemaVersion,
			Message: fmt.Sprintf("stamp envelope: %v", err),
		}
	}
	return ValidEnvelope{
		env:         env,
		time:        ts,
		schema:      schema.Clone(),
		fingerprint: fp,
	}, nil
}

// Envelope returns a copy of the stamped envelope.
func (v ValidEnvelope) Envelope() Envelope {
	env := v.env
	env.Meta = cloneMeta(v.env.Meta)
	return env
}

// Type returns the envelope's event type.
func (v ValidEnvelope) Type() EventType { return v.env.Type }

// ID returns the envelope id.
func (v ValidEnvelope) ID() string { return v.env.ID }

// Version returns the schema version the envelope was validated against.
func (v ValidEnvelope) Version() SchemaVersion { return v.env.SchemaVersion }

// Time returns the parsed producer timestamp.
func (v ValidEnvelope) Time() time.Time { return v.time }

// Schema returns a copy of the schema the envelope was validated against.
func (v ValidEnvelope) Schema() Schema { return v.schema.Clone() }

// Deprecated reports whether the envelope targets a deprecated version.
func (v ValidEnvelope) Deprecated() bool { return v.schema.Deprecated }

// Fingerprint returns the content fingerprint computed at stamp time.
func (v ValidEnvelope) Fingerprint() string { return v.fingerprint }

// IsZero reports whether v was never stamped.
func (v ValidEnvelope) IsZero() bool { return v.fingerprint == "" }

// MarshalJSON encodes the stamped envelope with its fingerprint.
func (v ValidEnvelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Envelope    Envelope `json:"envelope"`
		Fingerprint string   `json:"fingerprint"`
		Deprecated  bool     `json:"deprecated,omitempty"`
	}{
		Envelope:    v.env,
		Fingerprint: v.fingerprint,
		Deprecated:  v.schema.Deprecated,
	})
}

// cloneMeta deep-copies the nested maps and slices of a meta mapping so a
// stamped envelope cannot be mutated through the producer's reference.
func cloneMeta(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMeta(val)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = cloneValue(elem)
		}
		return out
	default:
		return v
	}
}

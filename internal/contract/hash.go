package contract

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content fingerprints.
// Version suffix enables future algorithm migration.
const (
	DomainEnvelope = "agentcontract/envelope/v1"
	DomainSchema   = "agentcontract/schema/v1"
	DomainCatalog  = "agentcontract/catalog/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint computes the content identity of an envelope. Two envelopes
// with the same field values (including meta, compared canonically) have
// the same fingerprint regardless of map ordering or Unicode normalization.
func Fingerprint(env Envelope) (string, error) {
	meta := env.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	obj := map[string]any{
		"type":           string(env.Type),
		"id":             env.ID,
		"time":           env.Time,
		"actor":          env.Actor,
		"data_ref":       env.DataRef,
		"meta":           meta,
		"schema_version": int64(env.SchemaVersion),
		"correlation_id": env.CorrelationID,
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("Fingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEnvelope, canonical), nil
}

// SchemaHash computes the content identity of a schema's rules. The audit
// log records it so an outcome can be traced to the exact rule set.
func SchemaHash(s Schema) (string, error) {
	fields := make([]any, len(s.Fields))
	for i, r := range s.Fields {
		schemes := make([]any, len(r.Schemes))
		for j, sc := range r.Schemes {
			schemes[j] = NormalizeScheme(sc)
		}
		fields[i] = map[string]any{
			"name":     r.Name,
			"required": r.Required,
			"kind":     string(r.Kind),
			"schemes":  schemes,
		}
	}
	compat := make([]any, len(s.CompatibleWith))
	for i, v := range s.CompatibleWith {
		compat[i] = int64(v)
	}
	obj := map[string]any{
		"type":            string(s.Type),
		"version":         int64(s.Version),
		"fields":          fields,
		"compatible_with": compat,
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("SchemaHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSchema, canonical), nil
}

// CatalogHash computes the content identity of an ordered schema list,
// independent of the file format the schemas were authored in.
func CatalogHash(schemas []Schema) (string, error) {
	hashes := make([]any, len(schemas))
	for i, s := range schemas {
		h, err := SchemaHash(s)
		if err != nil {
			return "", err
		}
		hashes[i] = h
	}
	canonical, err := MarshalCanonical(hashes)
	if err != nil {
		return "", fmt.Errorf("CatalogHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainCatalog, canonical), nil
}

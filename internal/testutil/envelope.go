package testutil

import (
	"time"

	"github.com/roach88/agentcontract/internal/contract"
)

// Envelope returns a well-formed idea.created v1 envelope stamped at
// DefaultNow. Tests override individual fields.
func Envelope() contract.Envelope {
	return contract.Envelope{
		Type:          "idea.created",
		ID:            "0b6f1c9e-6a34-4b8e-9a43-2f8f3e2d8c11",
		Time:          DefaultNow.Format(time.RFC3339),
		Actor:         "agent-aletheia",
		DataRef:       "s3://mnemosyne-ideas/2026/01/idea-1.json",
		Meta:          map[string]any{"source": "rss"},
		SchemaVersion: 1,
	}
}

// IdeaSchema returns an idea.created schema allowing s3 and https refs.
func IdeaSchema(v contract.SchemaVersion, compatibleWith ...contract.SchemaVersion) contract.Schema {
	return contract.Schema{
		Type:    "idea.created",
		Version: v,
		Fields: contract.FieldRuleSet{
			{Name: contract.DataRefField, Kind: contract.KindReference, Required: true, Schemes: []string{"s3", "https"}},
			{Name: "title", Kind: contract.KindString, Required: true},
			{Name: "score", Kind: contract.KindNumber},
		},
		CompatibleWith: compatibleWith,
	}
}

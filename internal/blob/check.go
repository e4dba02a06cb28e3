package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/agentcontract/internal/contract"
)

// CheckPayload fetches the JSON object behind rawRef and checks it against
// rules. It returns every violation found; a non-nil error means the
// payload could not be fetched or is not a JSON object.
func CheckPayload(ctx context.Context, r Resolver, rawRef string, rules contract.FieldRuleSet) ([]contract.Violation, error) {
	ref, err := ParseRef(rawRef)
	if err != nil {
		return nil, err
	}
	data, err := r.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode payload %s: %w", ref.Raw, err)
	}
	if payload == nil {
		return nil, fmt.Errorf("decode payload %s: not a JSON object", ref.Raw)
	}
	return rules.Check(payload), nil
}

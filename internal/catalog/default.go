package catalog

import (
	_ "embed"
	"fmt"
)

//go:embed default.yaml
var defaultYAML []byte

// DefaultSource is the Source of the built-in catalog.
const DefaultSource = "builtin:default.yaml"

// Default returns the built-in catalog of the pipeline's event types.
// Each call returns a fresh copy.
func Default() (*Catalog, error) {
	cat, err := ParseYAML(defaultYAML)
	if err != nil {
		return nil, fmt.Errorf("built-in catalog: %w", err)
	}
	cat.Source = DefaultSource
	return cat, nil
}

// DefaultYAML returns the raw built-in catalog, for export.
func DefaultYAML() []byte {
	return append([]byte(nil), defaultYAML...)
}

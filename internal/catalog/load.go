package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Load reads a catalog from path. The format is chosen by extension:
// .yaml/.yml, .json, .toml or .cue. A directory is loaded as a CUE
// package.
func Load(path string) (*Catalog, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	if info.IsDir() {
		return LoadCUEDir(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}

	var cat *Catalog
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		cat, err = ParseYAML(data)
	case ".json":
		cat, err = ParseJSON(data)
	case ".toml":
		cat, err = ParseTOML(data)
	case ".cue":
		cat, err = ParseCUE(data, path)
	default:
		return nil, fmt.Errorf("catalog %s: unsupported extension %q (want .yaml, .yml, .json, .toml or .cue)", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	cat.Source = path
	return cat, nil
}

// ParseYAML decodes a YAML catalog. Unknown keys are rejected so a typo
// like "compatable_with" fails loudly instead of dropping compatibility.
func ParseYAML(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cat Catalog
	if err := dec.Decode(&cat); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse YAML: empty document")
		}
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	return &cat, nil
}

// ParseJSON decodes a JSON catalog, rejecting unknown fields.
func ParseJSON(data []byte) (*Catalog, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var cat Catalog
	if err := dec.Decode(&cat); err != nil {
		return nil, fmt.Errorf("parse JSON: %w", err)
	}
	return &cat, nil
}

// ParseTOML decodes a TOML catalog, rejecting undecoded keys.
//
//	[[schemas."idea.created"]]
//	version = 1
//	[[schemas."idea.created".fields]]
//	name = "data_ref"
//	kind = "reference"
func ParseTOML(data []byte) (*Catalog, error) {
	var cat Catalog
	md, err := toml.Decode(string(data), &cat)
	if err != nil {
		return nil, fmt.Errorf("parse TOML: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("parse TOML: unknown keys: %s", strings.Join(keys, ", "))
	}
	return &cat, nil
}

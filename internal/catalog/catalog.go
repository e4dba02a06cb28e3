// Package catalog loads the static schema catalog registered at startup.
//
// A catalog maps each event type to its ordered version history. It is
// authored by hand (YAML, JSON, TOML or CUE), read once during
// initialization, and never written by the engine.
package catalog

import (
	"sort"

	"github.com/roach88/agentcontract/internal/contract"
	"github.com/roach88/agentcontract/internal/registry"
)

// Entry is one schema version as written in a catalog file.
type Entry struct {
	Version        contract.SchemaVersion   `json:"version" yaml:"version" toml:"version"`
	Description    string                   `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	Deprecated     bool                     `json:"deprecated,omitempty" yaml:"deprecated,omitempty" toml:"deprecated,omitempty"`
	CompatibleWith []contract.SchemaVersion `json:"compatible_with,omitempty" yaml:"compatible_with,omitempty" toml:"compatible_with,omitempty"`
	Fields         contract.FieldRuleSet    `json:"fields" yaml:"fields" toml:"fields"`
}

// Catalog is the parsed content of a catalog source.
type Catalog struct {
	Schemas map[contract.EventType][]Entry `json:"schemas" yaml:"schemas" toml:"schemas"`

	// Source names where the catalog was loaded from, for diagnostics.
	Source string `json:"-" yaml:"-" toml:"-"`
}

// Types returns the catalog's event types in sorted order.
func (c *Catalog) Types() []contract.EventType {
	types := make([]contract.EventType, 0, len(c.Schemas))
	for t := range c.Schemas {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// List flattens the catalog into registry schemas, ordered by type and
// then ascending version. Ascending order matters: a version may only
// declare compatibility with versions registered before it.
func (c *Catalog) List() []contract.Schema {
	var out []contract.Schema
	for _, t := range c.Types() {
		entries := append([]Entry(nil), c.Schemas[t]...)
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Version < entries[j].Version })
		for _, e := range entries {
			out = append(out, contract.Schema{
				Type:           t,
				Version:        e.Version,
				Description:    e.Description,
				Fields:         e.Fields.Clone(),
				CompatibleWith: append([]contract.SchemaVersion(nil), e.CompatibleWith...),
				Deprecated:     e.Deprecated,
			})
		}
	}
	return out
}

// Len returns the number of schema versions in the catalog.
func (c *Catalog) Len() int {
	n := 0
	for _, entries := range c.Schemas {
		n += len(entries)
	}
	return n
}

// Apply registers every schema of cat in reg, stopping at the first
// registration error.
func Apply(reg *registry.Registry, cat *Catalog) error {
	for _, s := range cat.List() {
		if err := reg.Register(s); err != nil {
			return err
		}
	}
	return nil
}

// Hash identifies the catalog's rule content. The same schemas hash
// equally whatever format they were loaded from.
func (c *Catalog) Hash() (string, error) {
	return contract.CatalogHash(c.List())
}

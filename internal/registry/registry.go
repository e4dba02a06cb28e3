package registry

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/roach88/agentcontract/internal/contract"
)

// Family is the full version history of one event type.
type Family struct {
	Type     contract.EventType
	versions []contract.SchemaVersion // ascending
	schemas  map[contract.SchemaVersion]contract.Schema
}

func newFamily(t contract.EventType) *Family {
	return &Family{Type: t, schemas: make(map[contract.SchemaVersion]contract.Schema)}
}

// Versions returns the registered versions in ascending order.
func (f *Family) Versions() []contract.SchemaVersion {
	return append([]contract.SchemaVersion(nil), f.versions...)
}

// Schema returns a copy of the schema registered for v.
func (f *Family) Schema(v contract.SchemaVersion) (contract.Schema, bool) {
	s, ok := f.schemas[v]
	if !ok {
		return contract.Schema{}, false
	}
	return s.Clone(), true
}

// Latest returns the highest registered version.
func (f *Family) Latest() contract.SchemaVersion {
	return f.versions[len(f.versions)-1]
}

func (f *Family) add(s contract.Schema) {
	f.schemas[s.Version] = s
	i := sort.Search(len(f.versions), func(i int) bool { return f.versions[i] >= s.Version })
	f.versions = append(f.versions, 0)
	copy(f.versions[i+1:], f.versions[i:])
	f.versions[i] = s.Version
}

func (f *Family) clone() *Family {
	out := newFamily(f.Type)
	out.versions = f.Versions()
	for v, s := range f.schemas {
		out.schemas[v] = s.Clone()
	}
	return out
}

// snapshot is the immutable view published by Seal.
type snapshot struct {
	families map[contract.EventType]*Family
	types    []contract.EventType // sorted
}

// Registry owns every SchemaFamily for the lifetime of the process.
// There is no package-level instance; pass the registry to every
// component that needs it.
type Registry struct {
	mu      sync.Mutex // guards pending; only used before Seal
	pending map[contract.EventType]*Family

	once   sync.Once
	sealed atomic.Pointer[snapshot]
}

// New creates an empty, unsealed registry.
func New() *Registry {
	return &Registry{pending: make(map[contract.EventType]*Family)}
}

// Register appends a schema version.
//
// Returns ErrDuplicateVersion if (type, version) already exists,
// ErrInvalidSchema if the schema is malformed, and ErrSealed after Seal.
func (r *Registry) Register(s contract.Schema) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed.Load() != nil {
		return &contract.Error{
			Kind:    contract.ErrSealed,
			Type:    s.Type,
			Version: s.Version,
			Message: "registry is sealed; schemas are loaded once at startup",
		}
	}

	fam := r.pending[s.Type]
	if fam != nil {
		if _, exists := fam.schemas[s.Version]; exists {
			return contract.DuplicateVersion(s.Type, s.Version)
		}
	}

	normalized, err := normalizeSchema(s, fam)
	if err != nil {
		return err
	}

	if fam == nil {
		fam = newFamily(s.Type)
		r.pending[s.Type] = fam
	}
	fam.add(normalized)
	return nil
}

// Seal completes initialization. Only the first call has an effect.
func (r *Registry) Seal() {
	r.once.Do(func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		snap := &snapshot{families: make(map[contract.EventType]*Family, len(r.pending))}
		for t, fam := range r.pending {
			snap.families[t] = fam.clone()
			snap.types = append(snap.types, t)
		}
		sort.Slice(snap.types, func(i, j int) bool { return snap.types[i] < snap.types[j] })
		r.sealed.Store(snap)
		r.pending = nil
	})
}

// Sealed reports whether initialization has completed.
func (r *Registry) Sealed() bool {
	return r.sealed.Load() != nil
}

func (r *Registry) snapshot() (*snapshot, error) {
	snap := r.sealed.Load()
	if snap == nil {
		return nil, contract.NewError(contract.ErrNotReady, "", "registry is not sealed; initialization has not completed")
	}
	return snap, nil
}

// Family returns the version history of an event type.
func (r *Registry) Family(t contract.EventType) (*Family, error) {
	snap, err := r.snapshot()
	if err != nil {
		return nil, err
	}
	fam, ok := snap.families[t]
	if !ok {
		return nil, contract.UnknownType(t)
	}
	return fam, nil
}

// Lookup returns the schema registered for (t, v).
// Fails with ErrUnknownType or ErrUnknownVersion.
func (r *Registry) Lookup(t contract.EventType, v contract.SchemaVersion) (contract.Schema, error) {
	fam, err := r.Family(t)
	if err != nil {
		return contract.Schema{}, err
	}
	s, ok := fam.Schema(v)
	if !ok {
		return contract.Schema{}, contract.UnknownVersion(t, v)
	}
	return s, nil
}

// Latest returns the highest registered version of t.
func (r *Registry) Latest(t contract.EventType) (contract.SchemaVersion, error) {
	fam, err := r.Family(t)
	if err != nil {
		return 0, err
	}
	return fam.Latest(), nil
}

// Versions returns the registered versions of t in ascending order.
func (r *Registry) Versions(t contract.EventType) ([]contract.SchemaVersion, error) {
	fam, err := r.Family(t)
	if err != nil {
		return nil, err
	}
	return fam.Versions(), nil
}

// Types returns every registered event type in sorted order.
// Returns nil before Seal.
func (r *Registry) Types() []contract.EventType {
	snap := r.sealed.Load()
	if snap == nil {
		return nil
	}
	return append([]contract.EventType(nil), snap.types...)
}

// Has reports whether t is registered. Always false before Seal.
func (r *Registry) Has(t contract.EventType) bool {
	snap := r.sealed.Load()
	if snap == nil {
		return false
	}
	_, ok := snap.families[t]
	return ok
}

// normalizeSchema checks a schema against registration rules and returns a
// deep copy with normalized schemes and deduplicated compatibility targets.
func normalizeSchema(s contract.Schema, fam *Family) (contract.Schema, error) {
	invalid := func(field, format string, args ...any) error {
		return &contract.Error{
			Kind:    contract.ErrInvalidSchema,
			Field:   field,
			Type:    s.Type,
			Version: s.Version,
			Message: fmt.Sprintf(format, args...),
		}
	}

	if !s.Type.Valid() {
		return contract.Schema{}, invalid("type", "invalid event type %q, expected lower-case \"noun.verb\"", s.Type)
	}
	if s.Version < 1 {
		return contract.Schema{}, invalid("version", "schema version must be >= 1, got %d", s.Version)
	}

	out := s.Clone()
	seen := make(map[string]bool, len(out.Fields))
	for i := range out.Fields {
		rule := &out.Fields[i]
		path := fmt.Sprintf("fields[%d]", i)
		if rule.Name == "" {
			return contract.Schema{}, invalid(path+".name", "field name is required")
		}
		if seen[rule.Name] {
			return contract.Schema{}, invalid(path+".name", "duplicate field name %q", rule.Name)
		}
		seen[rule.Name] = true

		if !contract.ValidFieldKinds[rule.Kind] {
			return contract.Schema{}, invalid(path+".kind", "invalid kind %q for field %q", rule.Kind, rule.Name)
		}
		if rule.Name == contract.DataRefField && rule.Kind != contract.KindReference {
			return contract.Schema{}, invalid(path+".kind", "%s must be a reference field", contract.DataRefField)
		}
		if len(rule.Schemes) > 0 && rule.Kind != contract.KindReference {
			return contract.Schema{}, invalid(path+".schemes", "schemes are only allowed on reference fields (field %q is %s)", rule.Name, rule.Kind)
		}
		if rule.Name == contract.DataRefField && len(rule.Schemes) == 0 {
			return contract.Schema{}, invalid(path+".schemes", "%s must declare at least one scheme", contract.DataRefField)
		}
		for j, sc := range rule.Schemes {
			rule.Schemes[j] = contract.NormalizeScheme(sc)
			if rule.Schemes[j] == "" {
				return contract.Schema{}, invalid(fmt.Sprintf("%s.schemes[%d]", path, j), "empty scheme")
			}
		}
	}

	var compat []contract.SchemaVersion
	seenCompat := make(map[contract.SchemaVersion]bool, len(out.CompatibleWith))
	for i, target := range out.CompatibleWith {
		path := fmt.Sprintf("compatible_with[%d]", i)
		if target >= s.Version {
			return contract.Schema{}, invalid(path, "version %d can only declare compatibility with older versions, got %d", s.Version, target)
		}
		if fam == nil {
			return contract.Schema{}, invalid(path, "compatible version %d is not registered", target)
		}
		if _, ok := fam.schemas[target]; !ok {
			return contract.Schema{}, invalid(path, "compatible version %d is not registered", target)
		}
		if !seenCompat[target] {
			seenCompat[target] = true
			compat = append(compat, target)
		}
	}
	contract.SortVersions(compat)
	out.CompatibleWith = compat

	return out, nil
}

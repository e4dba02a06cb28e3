package blob

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Resolver fetches the content a reference points at.
// Implementations must be safe for concurrent use.
type Resolver interface {
	Fetch(ctx context.Context, ref Ref) ([]byte, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, ref Ref) ([]byte, error)

// Fetch calls f.
func (f ResolverFunc) Fetch(ctx context.Context, ref Ref) ([]byte, error) { return f(ctx, ref) }

// Mux dispatches to a resolver by reference scheme.
// Register every scheme before the first Fetch.
type Mux struct {
	byScheme map[string]Resolver
}

// NewMux creates an empty Mux.
func NewMux() *Mux {
	return &Mux{byScheme: make(map[string]Resolver)}
}

// Handle routes scheme to r, replacing any earlier resolver.
func (m *Mux) Handle(scheme string, r Resolver) {
	m.byScheme[strings.ToLower(scheme)] = r
}

// Schemes returns the routed schemes in sorted order.
func (m *Mux) Schemes() []string {
	out := make([]string, 0, len(m.byScheme))
	for s := range m.byScheme {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Fetch implements Resolver.
func (m *Mux) Fetch(ctx context.Context, ref Ref) ([]byte, error) {
	r, ok := m.byScheme[ref.Scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, ref.Scheme)
	}
	return r.Fetch(ctx, ref)
}

// Package blob dereferences the data_ref of an envelope.
//
// The engine only checks that a reference is well-formed and uses an
// allowed scheme; it never fetches. Agents use this package after
// admission to load the payload and check it against the resolved field
// rules.
package blob

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/agentcontract/internal/contract"
)

// Errors returned by resolvers.
var (
	ErrNotFound          = errors.New("blob not found")
	ErrUnsupportedScheme = errors.New("unsupported reference scheme")
	ErrTooLarge          = errors.New("blob exceeds size limit")
)

// DefaultMaxSize bounds how much of a payload a resolver will read.
const DefaultMaxSize = 8 << 20

// Ref is a parsed data_ref.
//
// For s3://bucket/key, Host is the bucket and Path the key without its
// leading slash. For http(s), Host and Path are the URL's.
type Ref struct {
	Raw    string
	Scheme string
	Host   string
	Path   string
}

// Bucket is Host, named for s3 references.
func (r Ref) Bucket() string { return r.Host }

// Key is Path, named for s3 references.
func (r Ref) Key() string { return r.Path }

func (r Ref) String() string { return r.Raw }

// ParseRef parses and checks a data_ref. s3 references need both a bucket
// and a key; http(s) references need a host.
func ParseRef(raw string) (Ref, error) {
	u, err := contract.ParseReference(raw)
	if err != nil {
		return Ref{}, err
	}

	ref := Ref{
		Raw:    raw,
		Scheme: contract.NormalizeScheme(u.Scheme),
		Host:   u.Host,
		Path:   u.Path,
	}
	switch ref.Scheme {
	case "s3":
		ref.Path = strings.TrimPrefix(u.Path, "/")
		if ref.Host == "" || ref.Path == "" {
			return Ref{}, fmt.Errorf("reference %q: s3 references need a bucket and a key", raw)
		}
	case "http", "https":
		if ref.Host == "" {
			return Ref{}, fmt.Errorf("reference %q: missing host", raw)
		}
	}
	return ref, nil
}

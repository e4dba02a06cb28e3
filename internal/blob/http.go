package blob

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HTTPResolver reads http and https references with a GET.
type HTTPResolver struct {
	client  *http.Client
	maxSize int64
}

// NewHTTPResolver creates a resolver using client, or a client with a
// 30 second timeout when nil.
func NewHTTPResolver(client *http.Client) *HTTPResolver {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPResolver{client: client, maxSize: DefaultMaxSize}
}

// Fetch implements Resolver.
func (r *HTTPResolver) Fetch(ctx context.Context, ref Ref) ([]byte, error) {
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return nil, fmt.Errorf("%w: http resolver cannot fetch %q", ErrUnsupportedScheme, ref.Raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.Raw, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", ref.Raw, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", ref.Raw, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref.Raw)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("get %s: unexpected status %s", ref.Raw, resp.Status)
	}
	return readLimited(resp.Body, r.maxSize, ref)
}

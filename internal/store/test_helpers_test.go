package store

import (
	"path/filepath"
	"testing"
	"time"
)

var testNow = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

// createTestStore creates a new store in a temp directory with a pinned
// wall clock.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithNow(func() time.Time { return testNow }))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

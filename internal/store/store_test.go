package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/roach88/agentcontract/internal/contract"
	"github.com/roach88/agentcontract/internal/observe"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	var name string
	err = s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='outcomes'").Scan(&name)
	if err != nil {
		t.Errorf("outcomes table not found after idempotent opens: %v", err)
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
		{"user_version", "1"},
	}
	for _, tt := range tests {
		if err := s.verifyPragma(tt.name, tt.expected); err != nil {
			t.Errorf("pragma check failed: %v", err)
		}
	}
}

func TestOpen_MigrationCreatesFingerprintIndex(t *testing.T) {
	s := createTestStore(t)

	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_outcomes_fingerprint'",
	).Scan(&name)
	if err != nil {
		t.Errorf("fingerprint index missing: %v", err)
	}
}

func TestOpen_ResumesSeq(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := s1.RecordAdmission(ctx, observe.AdmissionOutcome{
			Decision: contract.Admit("idea.created", 1),
		}); err != nil {
			t.Fatalf("RecordAdmission() failed: %v", err)
		}
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	if got := s2.LastSeq(); got != 3 {
		t.Fatalf("LastSeq() = %d, want 3", got)
	}
	if err := s2.RecordAdmission(ctx, observe.AdmissionOutcome{
		Decision: contract.Admit("idea.created", 1),
	}); err != nil {
		t.Fatalf("RecordAdmission() after reopen failed: %v", err)
	}
	if got := s2.LastSeq(); got != 4 {
		t.Errorf("LastSeq() = %d, want 4", got)
	}
}

func TestClock_ConcurrentUnique(t *testing.T) {
	c := NewClockAt(10)
	const n = 100

	var (
		mu   sync.Mutex
		seen = make(map[int64]bool)
		wg   sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := c.Next()
			mu.Lock()
			seen[v] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Fatalf("got %d unique values, want %d", len(seen), n)
	}
	for v := int64(11); v <= 10+n; v++ {
		if !seen[v] {
			t.Errorf("missing seq %d", v)
		}
	}
	if c.Current() != 10+n {
		t.Errorf("Current() = %d, want %d", c.Current(), 10+n)
	}
}

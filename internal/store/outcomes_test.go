package store

import (
	"context"
	"sync"
	"testing"

	"github.com/roach88/agentcontract/internal/contract"
	"github.com/roach88/agentcontract/internal/engine"
	"github.com/roach88/agentcontract/internal/observe"
	"github.com/roach88/agentcontract/internal/testutil"
)

func newRecorder(t *testing.T, s *Store) *observe.Recorder {
	t.Helper()
	e := engine.New(engine.WithClock(testutil.NewFixedClock(testutil.DefaultNow)))
	for _, schema := range []contract.Schema{testutil.IdeaSchema(1), testutil.IdeaSchema(2, 1)} {
		if err := e.RegisterSchema(schema.Type, schema.Version, schema.Fields, schema.CompatibleWith); err != nil {
			t.Fatalf("RegisterSchema() failed: %v", err)
		}
	}
	e.Seal()
	return observe.NewRecorder(e, s, observe.WithConsumer("iris"))
}

func TestRecordValidation_Valid(t *testing.T) {
	s := createTestStore(t)
	r := newRecorder(t, s)
	ctx := context.Background()

	stamped, err := r.ValidateEnvelope(ctx, testutil.Envelope())
	if err != nil {
		t.Fatalf("ValidateEnvelope() failed: %v", err)
	}

	recs, err := s.ListOutcomes(ctx, Filter{})
	if err != nil {
		t.Fatalf("ListOutcomes() failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}

	rec := recs[0]
	if rec.Seq != 1 {
		t.Errorf("Seq = %d, want 1", rec.Seq)
	}
	if rec.Kind != KindValidation {
		t.Errorf("Kind = %q, want %q", rec.Kind, KindValidation)
	}
	if rec.Outcome != OutcomeValid {
		t.Errorf("Outcome = %q, want %q", rec.Outcome, OutcomeValid)
	}
	if rec.Fingerprint != stamped.Fingerprint() {
		t.Errorf("Fingerprint = %q, want %q", rec.Fingerprint, stamped.Fingerprint())
	}
	if rec.Actor != "agent-aletheia" {
		t.Errorf("Actor = %q", rec.Actor)
	}
	if rec.EngineVersion != contract.EngineVersion {
		t.Errorf("EngineVersion = %q", rec.EngineVersion)
	}
	if !rec.RecordedAt.Equal(testNow) {
		t.Errorf("RecordedAt = %v, want %v", rec.RecordedAt, testNow)
	}

	want := `{"actor":"agent-aletheia","data_ref":"s3://mnemosyne-ideas/2026/01/idea-1.json",` +
		`"id":"0b6f1c9e-6a34-4b8e-9a43-2f8f3e2d8c11","meta":{"source":"rss"},"schema_version":1,` +
		`"time":"2026-01-15T10:00:00Z","type":"idea.created"}`
	if rec.Envelope != want {
		t.Errorf("Envelope =\n%s\nwant\n%s", rec.Envelope, want)
	}
}

func TestRecordValidation_Failure(t *testing.T) {
	s := createTestStore(t)
	r := newRecorder(t, s)
	ctx := context.Background()

	env := testutil.Envelope()
	env.DataRef = "ftp://files.example.com/idea.json"
	if _, err := r.ValidateEnvelope(ctx, env); err == nil {
		t.Fatal("expected validation error")
	}

	recs, err := s.ListOutcomes(ctx, Filter{Kind: KindValidation})
	if err != nil {
		t.Fatalf("ListOutcomes() failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	if recs[0].Outcome != string(contract.ErrInvalidReferenceScheme) {
		t.Errorf("Outcome = %q", recs[0].Outcome)
	}
	if recs[0].Field != "data_ref" {
		t.Errorf("Field = %q, want data_ref", recs[0].Field)
	}
	if recs[0].Fingerprint != "" {
		t.Errorf("failed validation should have no fingerprint, got %q", recs[0].Fingerprint)
	}
}

func TestRecordAdmission(t *testing.T) {
	s := createTestStore(t)
	r := newRecorder(t, s)
	ctx := context.Background()

	env := testutil.Envelope()
	env.SchemaVersion = 2
	r.AdmitEnvelope(ctx, env, contract.CompatibilityPolicy{Type: "idea.created", Versions: []contract.SchemaVersion{1}})
	r.AdmitEnvelope(ctx, env, contract.CompatibilityPolicy{Type: "idea.created", Versions: []contract.SchemaVersion{3}})

	recs, err := s.ListOutcomes(ctx, Filter{Kind: KindAdmission})
	if err != nil {
		t.Fatalf("ListOutcomes() failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}

	if recs[0].Outcome != string(contract.OutcomeAdmitWithDowngrade) || recs[0].Target != 1 {
		t.Errorf("first = %s(%d), want ADMIT_WITH_DOWNGRADE(1)", recs[0].Outcome, recs[0].Target)
	}
	if recs[0].Consumer != "iris" {
		t.Errorf("Consumer = %q, want iris", recs[0].Consumer)
	}
	if recs[1].Outcome != string(contract.OutcomeReject) || recs[1].Reason != string(contract.ReasonVersionTooOld) {
		t.Errorf("second = %s(%s), want REJECT(VERSION_TOO_OLD)", recs[1].Outcome, recs[1].Reason)
	}
	if recs[0].Seq >= recs[1].Seq {
		t.Errorf("seq not increasing: %d, %d", recs[0].Seq, recs[1].Seq)
	}
}

func TestListOutcomes_Filters(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	write := func(o observe.AdmissionOutcome) {
		t.Helper()
		if err := s.RecordAdmission(ctx, o); err != nil {
			t.Fatalf("RecordAdmission() failed: %v", err)
		}
	}
	write(observe.AdmissionOutcome{EventID: "a", Decision: contract.Admit("idea.created", 1)})
	write(observe.AdmissionOutcome{EventID: "b", Decision: contract.Admit("draft.generated", 1)})
	write(observe.AdmissionOutcome{EventID: "c", Decision: contract.Admit("idea.created", 2)})

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all", Filter{}, []string{"a", "b", "c"}},
		{"by type", Filter{Type: "idea.created"}, []string{"a", "c"}},
		{"by event", Filter{EventID: "b"}, []string{"b"}},
		{"after seq", Filter{AfterSeq: 1}, []string{"b", "c"}},
		{"limit", Filter{Limit: 2}, []string{"a", "b"}},
		{"kind mismatch", Filter{Kind: KindValidation}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := s.ListOutcomes(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListOutcomes() failed: %v", err)
			}
			if recs == nil {
				t.Fatal("ListOutcomes() returned nil, want empty slice")
			}
			got := make([]string, len(recs))
			for i, r := range recs {
				got[i] = r.EventID
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestSeenFingerprint(t *testing.T) {
	s := createTestStore(t)
	r := newRecorder(t, s)
	ctx := context.Background()

	stamped, err := r.ValidateEnvelope(ctx, testutil.Envelope())
	if err != nil {
		t.Fatalf("ValidateEnvelope() failed: %v", err)
	}

	seen, err := s.SeenFingerprint(ctx, stamped.Fingerprint())
	if err != nil {
		t.Fatalf("SeenFingerprint() failed: %v", err)
	}
	if !seen {
		t.Error("expected fingerprint to be seen")
	}

	seen, err = s.SeenFingerprint(ctx, "0000")
	if err != nil {
		t.Fatalf("SeenFingerprint() failed: %v", err)
	}
	if seen {
		t.Error("unexpected fingerprint match")
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}
}

func TestRecordValidation_Concurrent(t *testing.T) {
	s := createTestStore(t)
	r := newRecorder(t, s)
	ctx := context.Background()
	ids := testutil.NewSequentialIDs()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		env := testutil.Envelope()
		env.ID = ids.Next()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.ValidateEnvelope(ctx, env); err != nil {
				t.Errorf("ValidateEnvelope(%s) failed: %v", env.ID, err)
			}
		}()
	}
	wg.Wait()

	recs, err := s.ListOutcomes(ctx, Filter{})
	if err != nil {
		t.Fatalf("ListOutcomes() failed: %v", err)
	}
	if len(recs) != n {
		t.Fatalf("got %d records, want %d", len(recs), n)
	}
	seen := make(map[string]bool, n)
	for i, rec := range recs {
		if rec.Seq != int64(i+1) {
			t.Errorf("recs[%d].Seq = %d, want %d", i, rec.Seq, i+1)
		}
		if seen[rec.EventID] {
			t.Errorf("event %s recorded twice", rec.EventID)
		}
		seen[rec.EventID] = true
	}
	if got := s.LastSeq(); got != n {
		t.Errorf("LastSeq() = %d, want %d", got, n)
	}
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/agentcontract/internal/contract"
	"github.com/roach88/agentcontract/internal/observe"
)

// RecordKind distinguishes the two outcome families.
type RecordKind string

const (
	KindValidation RecordKind = "validation"
	KindAdmission  RecordKind = "admission"
)

// OutcomeValid is the outcome column of a successful validation. Failed
// validations store the contract.ErrorKind; admissions store the
// contract.Outcome.
const OutcomeValid = "VALID"

// Record is one row of the audit log.
type Record struct {
	Seq           int64                  `json:"seq"`
	Kind          RecordKind             `json:"kind"`
	EventID       string                 `json:"event_id"`
	EventType     contract.EventType     `json:"event_type"`
	SchemaVersion contract.SchemaVersion `json:"schema_version"`
	Outcome       string                 `json:"outcome"`
	Actor         string                 `json:"actor,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Consumer      string                 `json:"consumer,omitempty"`
	Target        contract.SchemaVersion `json:"target,omitempty"`
	Reason        string                 `json:"reason,omitempty"`
	Field         string                 `json:"field,omitempty"`
	Message       string                 `json:"message,omitempty"`
	Fingerprint   string                 `json:"fingerprint,omitempty"`
	Envelope      string                 `json:"-"`
	EngineVersion string                 `json:"engine_version"`
	RecordedAt    time.Time              `json:"recorded_at"`
}

// Filter narrows ListOutcomes. Zero values match everything.
type Filter struct {
	Kind     RecordKind
	Type     contract.EventType
	EventID  string
	AfterSeq int64
	Limit    int
}

var _ observe.Sink = (*Store)(nil)

// RecordValidation implements observe.Sink. The envelope is stored as
// canonical JSON whether or not it was valid.
func (s *Store) RecordValidation(ctx context.Context, o observe.ValidationOutcome) error {
	envJSON, err := marshalEnvelope(o.Envelope)
	if err != nil {
		return fmt.Errorf("record validation: %w", err)
	}

	rec := Record{
		Kind:          KindValidation,
		EventID:       o.Envelope.ID,
		EventType:     o.Envelope.Type,
		SchemaVersion: o.Envelope.SchemaVersion,
		Outcome:       OutcomeValid,
		Actor:         o.Envelope.Actor,
		CorrelationID: o.Envelope.CorrelationID,
		Fingerprint:   o.Fingerprint,
		Envelope:      envJSON,
	}
	if !o.Valid() {
		rec.Outcome = string(o.Kind())
		if rec.Outcome == "" {
			rec.Outcome = "ERROR"
		}
		rec.Field = o.Field()
		rec.Message = o.Err.Error()
	}
	return s.insert(ctx, rec)
}

// RecordAdmission implements observe.Sink.
func (s *Store) RecordAdmission(ctx context.Context, o observe.AdmissionOutcome) error {
	d := o.Decision
	return s.insert(ctx, Record{
		Kind:          KindAdmission,
		EventID:       o.EventID,
		EventType:     d.Type,
		SchemaVersion: d.Declared,
		Outcome:       string(d.Outcome),
		Consumer:      o.Consumer,
		Target:        d.Target,
		Reason:        string(d.Reason),
	})
}

func (s *Store) insert(ctx context.Context, rec Record) error {
	if rec.Envelope == "" {
		rec.Envelope = "{}"
	}
	seq := s.clock.Next()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outcomes
		(seq, kind, event_id, event_type, schema_version, outcome, actor, correlation_id,
		 consumer, target_version, reason, field, message, fingerprint, envelope,
		 engine_version, contract_version, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		seq,
		string(rec.Kind),
		rec.EventID,
		string(rec.EventType),
		int64(rec.SchemaVersion),
		rec.Outcome,
		rec.Actor,
		rec.CorrelationID,
		rec.Consumer,
		int64(rec.Target),
		rec.Reason,
		rec.Field,
		rec.Message,
		rec.Fingerprint,
		rec.Envelope,
		contract.EngineVersion,
		contract.ContractVersion,
		s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("write outcome: %w", err)
	}
	return nil
}

// ListOutcomes returns matching rows ordered by seq ASC.
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) ListOutcomes(ctx context.Context, f Filter) ([]Record, error) {
	var (
		where []string
		args  []any
	)
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.Type != "" {
		where = append(where, "event_type = ?")
		args = append(args, string(f.Type))
	}
	if f.EventID != "" {
		where = append(where, "event_id = ?")
		args = append(args, f.EventID)
	}
	if f.AfterSeq > 0 {
		where = append(where, "seq > ?")
		args = append(args, f.AfterSeq)
	}

	query := `
		SELECT seq, kind, event_id, event_type, schema_version, outcome, actor, correlation_id,
		       consumer, target_version, reason, field, message, fingerprint, envelope,
		       engine_version, recorded_at
		FROM outcomes`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY seq ASC"
	if f.Limit > 0 {
		query += "\n\t\tLIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return records, nil
}

// SeenFingerprint reports whether a valid envelope with this fingerprint
// has already been recorded. Consumers use it to drop redeliveries.
func (s *Store) SeenFingerprint(ctx context.Context, fingerprint string) (bool, error) {
	if fingerprint == "" {
		return false, nil
	}
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM outcomes
		WHERE fingerprint = ? AND kind = 'validation' AND outcome = ?
		LIMIT 1
	`, fingerprint, OutcomeValid).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query fingerprint: %w", err)
	}
	return true, nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var (
		rec        Record
		kind       string
		eventType  string
		version    int64
		target     int64
		recordedAt string
	)
	if err := rows.Scan(
		&rec.Seq, &kind, &rec.EventID, &eventType, &version, &rec.Outcome, &rec.Actor, &rec.CorrelationID,
		&rec.Consumer, &target, &rec.Reason, &rec.Field, &rec.Message, &rec.Fingerprint, &rec.Envelope,
		&rec.EngineVersion, &recordedAt,
	); err != nil {
		return Record{}, fmt.Errorf("scan outcome: %w", err)
	}
	rec.Kind = RecordKind(kind)
	rec.EventType = contract.EventType(eventType)
	rec.SchemaVersion = contract.SchemaVersion(version)
	rec.Target = contract.SchemaVersion(target)

	ts, err := time.Parse(time.RFC3339Nano, recordedAt)
	if err != nil {
		return Record{}, fmt.Errorf("scan outcome %d: recorded_at: %w", rec.Seq, err)
	}
	rec.RecordedAt = ts
	return rec, nil
}

// marshalEnvelope converts an envelope to canonical JSON TEXT for storage.
func marshalEnvelope(env contract.Envelope) (string, error) {
	if env.Meta == nil {
		env.Meta = map[string]any{}
	}
	data, err := contract.MarshalCanonical(env)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	return string(data), nil
}

package coverage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"time"

	"folio/internal/db"
	"folio/internal/identity"
)

// ErrNoRecord is returned by Get when the ledger has no cell for the key.
var ErrNoRecord = errors.New("no coverage record")

// Ledger persists coverage records in sqlite. One row per
// (identifier, source, operation); repeated attempts overwrite in place.
type Ledger struct {
	db  *sql.DB
	ids *identity.Store
}

// NewLedger wires the ledger onto the shared database handle.
func NewLedger(database *db.DB, ids *identity.Store) *Ledger {
	return &Ledger{db: database.Handle(), ids: ids}
}

// Upsert records the outcome of a provider attempt. The call is idempotent:
// re-recording the same outcome leaves the ledger unchanged apart from the
// timestamp.
func (l *Ledger) Upsert(ctx context.Context, record Record) error {
	if err := record.Validate(); err != nil {
		return err
	}
	identifierID, err := l.ids.Ensure(ctx, record.Identifier)
	if err != nil {
		return fmt.Errorf("ensure identifier: %w", err)
	}
	recordedAt := record.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}
	_, err = l.db.ExecContext(
		ctx,
		`INSERT INTO coverage_records (identifier_id, source, operation, status, message, recorded_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT (identifier_id, source, operation)
         DO UPDATE SET status = excluded.status, message = excluded.message, recorded_at = excluded.recorded_at`,
		identifierID,
		record.Source,
		record.Operation,
		string(record.Status),
		nullableString(record.Message),
		recordedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert coverage record: %w", err)
	}
	return nil
}

// EnsurePending writes a pending placeholder for a ledger cell unless an
// attempt has already settled there. Registration must never downgrade a
// settled record.
func (l *Ledger) EnsurePending(ctx context.Context, id identity.Identifier, source, operation string) error {
	identifierID, err := l.ids.Ensure(ctx, id)
	if err != nil {
		return fmt.Errorf("ensure identifier: %w", err)
	}
	_, err = l.db.ExecContext(
		ctx,
		`INSERT INTO coverage_records (identifier_id, source, operation, status, message, recorded_at)
         VALUES (?, ?, ?, ?, NULL, ?)
         ON CONFLICT (identifier_id, source, operation) DO NOTHING`,
		identifierID,
		source,
		operation,
		string(StatusPending),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("ensure pending record: %w", err)
	}
	return nil
}

// Get fetches the record for one ledger cell. ErrNoRecord when absent.
func (l *Ledger) Get(ctx context.Context, id identity.Identifier, source, operation string) (Record, error) {
	row := l.db.QueryRowContext(
		ctx,
		`SELECT c.status, c.message, c.recorded_at
         FROM coverage_records c
         JOIN identifiers i ON i.id = c.identifier_id
         WHERE i.type = ? AND i.value = ? AND c.source = ? AND c.operation = ?`,
		string(id.Type),
		id.Value,
		source,
		operation,
	)
	record := Record{Identifier: id, Source: source, Operation: operation}
	var message sql.NullString
	var recordedAt string
	if err := row.Scan(&record.Status, &message, &recordedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNoRecord
		}
		return Record{}, fmt.Errorf("query coverage record: %w", err)
	}
	record.Message = message.String
	if parsed, err := time.Parse(time.RFC3339Nano, recordedAt); err == nil {
		record.RecordedAt = parsed
	}
	return record, nil
}

// Records returns every ledger cell for one identifier, ordered by source
// then operation.
func (l *Ledger) Records(ctx context.Context, id identity.Identifier) ([]Record, error) {
	rows, err := l.db.QueryContext(
		ctx,
		`SELECT c.source, c.operation, c.status, c.message, c.recorded_at
         FROM coverage_records c
         JOIN identifiers i ON i.id = c.identifier_id
         WHERE i.type = ? AND i.value = ?
         ORDER BY c.source, c.operation`,
		string(id.Type),
		id.Value,
	)
	if err != nil {
		return nil, fmt.Errorf("query coverage records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record := Record{Identifier: id}
		var message sql.NullString
		var recordedAt string
		if err := rows.Scan(&record.Source, &record.Operation, &record.Status, &message, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan coverage record: %w", err)
		}
		record.Message = message.String
		if parsed, parseErr := time.Parse(time.RFC3339Nano, recordedAt); parseErr == nil {
			record.RecordedAt = parsed
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// MissingCoverage yields the candidates that still need an attempt against
// (source, operation): no record, a pending record, or a transient failure.
// With forceRefresh every candidate is yielded regardless of ledger state.
// The scan is a pure read; records change only when an attempt settles.
func (l *Ledger) MissingCoverage(ctx context.Context, candidates []identity.Identifier, source, operation string, forceRefresh bool) iter.Seq2[identity.Identifier, error] {
	return func(yield func(identity.Identifier, error) bool) {
		for _, candidate := range candidates {
			if forceRefresh {
				if !yield(candidate, nil) {
					return
				}
				continue
			}
			record, err := l.Get(ctx, candidate, source, operation)
			switch {
			case errors.Is(err, ErrNoRecord):
				if !yield(candidate, nil) {
					return
				}
			case err != nil:
				yield(identity.Identifier{}, err)
				return
			case record.Status.Retryable():
				if !yield(candidate, nil) {
					return
				}
			}
		}
	}
}

// Counts tallies records per status for one (source, operation) pair.
func (l *Ledger) Counts(ctx context.Context, source, operation string) (map[Status]int, error) {
	rows, err := l.db.QueryContext(
		ctx,
		`SELECT status, COUNT(*) FROM coverage_records WHERE source = ? AND operation = ? GROUP BY status`,
		source,
		operation,
	)
	if err != nil {
		return nil, fmt.Errorf("count coverage records: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan coverage count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// SourceCounts is one row of the ledger summary.
type SourceCounts struct {
	Source     string
	Operation  string
	Success    int
	Transient  int
	Persistent int
	Pending    int
}

// Summary tallies the whole ledger grouped by source and operation, for
// status reporting.
func (l *Ledger) Summary(ctx context.Context) ([]SourceCounts, error) {
	rows, err := l.db.QueryContext(
		ctx,
		`SELECT source, operation, status, COUNT(*)
         FROM coverage_records
         GROUP BY source, operation, status
         ORDER BY source, operation`,
	)
	if err != nil {
		return nil, fmt.Errorf("summarize coverage: %w", err)
	}
	defer rows.Close()

	var summary []SourceCounts
	index := make(map[string]int)
	for rows.Next() {
		var source, operation string
		var status Status
		var count int
		if err := rows.Scan(&source, &operation, &status, &count); err != nil {
			return nil, fmt.Errorf("scan coverage summary: %w", err)
		}
		key := source + "\x00" + operation
		pos, ok := index[key]
		if !ok {
			pos = len(summary)
			index[key] = pos
			summary = append(summary, SourceCounts{Source: source, Operation: operation})
		}
		switch status {
		case StatusSuccess:
			summary[pos].Success = count
		case StatusTransient:
			summary[pos].Transient = count
		case StatusPersistent:
			summary[pos].Persistent = count
		case StatusPending:
			summary[pos].Pending = count
		}
	}
	return summary, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

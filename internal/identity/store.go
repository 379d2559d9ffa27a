package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"folio/internal/db"
)

// Store persists identifiers and equivalence edges in sqlite.
type Store struct {
	db *sql.DB
}

// NewStore wires the store onto the shared database handle.
func NewStore(database *db.DB) *Store {
	return &Store{db: database.Handle()}
}

// Ensure inserts the identifier if absent and returns its row id. Identifiers
// are never deleted, so the returned id is stable for the process lifetime.
func (s *Store) Ensure(ctx context.Context, id Identifier) (int64, error) {
	if id.IsZero() || strings.TrimSpace(id.Value) == "" {
		return 0, errors.New("identifier value is empty")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO identifiers (type, value, created_at) VALUES (?, ?, ?)
         ON CONFLICT (type, value) DO NOTHING`,
		string(id.Type),
		id.Value,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("insert identifier: %w", err)
	}
	rowID, _, err := s.lookupID(ctx, id)
	return rowID, err
}

// Lookup returns the row id for an identifier when it exists.
func (s *Store) Lookup(ctx context.Context, id Identifier) (int64, bool, error) {
	rowID, found, err := s.lookupID(ctx, id)
	if err != nil {
		return 0, false, err
	}
	return rowID, found, nil
}

func (s *Store) lookupID(ctx context.Context, id Identifier) (int64, bool, error) {
	var rowID int64
	err := s.db.QueryRowContext(
		ctx,
		`SELECT id FROM identifiers WHERE type = ? AND value = ?`,
		string(id.Type),
		id.Value,
	).Scan(&rowID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup identifier: %w", err)
	}
	return rowID, true, nil
}

// AddEquivalency appends an equivalence edge, ensuring both endpoints exist.
// Edges between the same pair are not deduplicated; re-assertion simply adds
// a fresher edge.
func (s *Store) AddEquivalency(ctx context.Context, eq Equivalency) error {
	if eq.Input == eq.Output {
		return nil
	}
	if eq.Strength < 0 || eq.Strength > 1 {
		return fmt.Errorf("equivalency strength %v outside [0, 1]", eq.Strength)
	}
	inputID, err := s.Ensure(ctx, eq.Input)
	if err != nil {
		return err
	}
	outputID, err := s.Ensure(ctx, eq.Output)
	if err != nil {
		return err
	}
	createdAt := eq.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO equivalencies (input_id, output_id, source, strength, created_at)
         VALUES (?, ?, ?, ?, ?)`,
		inputID,
		outputID,
		eq.Source,
		eq.Strength,
		createdAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert equivalency: %w", err)
	}
	return nil
}

// EdgesTouching returns all edges at or above minStrength with either endpoint
// in the given set. The resolver issues one call per traversal level.
func (s *Store) EdgesTouching(ctx context.Context, ids []Identifier, minStrength float64) ([]Equivalency, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rowIDs := make([]int64, 0, len(ids))
	for _, id := range ids {
		rowID, found, err := s.lookupID(ctx, id)
		if err != nil {
			return nil, err
		}
		if found {
			rowIDs = append(rowIDs, rowID)
		}
	}
	if len(rowIDs) == 0 {
		return nil, nil
	}

	placeholders := makePlaceholders(len(rowIDs))
	args := make([]any, 0, len(rowIDs)*2+1)
	for _, rowID := range rowIDs {
		args = append(args, rowID)
	}
	for _, rowID := range rowIDs {
		args = append(args, rowID)
	}
	args = append(args, minStrength)

	query := `SELECT li.type, li.value, lo.type, lo.value, e.source, e.strength, e.created_at
        FROM equivalencies e
        JOIN identifiers li ON li.id = e.input_id
        JOIN identifiers lo ON lo.id = e.output_id
        WHERE (e.input_id IN (` + placeholders + `) OR e.output_id IN (` + placeholders + `))
          AND e.strength >= ?`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query equivalencies: %w", err)
	}
	defer rows.Close()

	var edges []Equivalency
	for rows.Next() {
		var (
			inputType, inputValue   string
			outputType, outputValue string
			source                  string
			strength                float64
			createdRaw              string
		)
		if err := rows.Scan(&inputType, &inputValue, &outputType, &outputValue, &source, &strength, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan equivalency: %w", err)
		}
		edge := Equivalency{
			Input:    Identifier{Type: Type(inputType), Value: inputValue},
			Output:   Identifier{Type: Type(outputType), Value: outputValue},
			Source:   source,
			Strength: strength,
		}
		if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
			edge.CreatedAt = created
		}
		edges = append(edges, edge)
	}
	return edges, rows.Err()
}

// Page returns identifiers ordered by row id, starting after the given id.
// The batch runner uses this to walk the full identifier population in
// bounded worksets.
func (s *Store) Page(ctx context.Context, afterID int64, limit int) ([]Identifier, int64, error) {
	if limit <= 0 {
		return nil, afterID, nil
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, type, value FROM identifiers WHERE id > ? ORDER BY id LIMIT ?`,
		afterID,
		limit,
	)
	if err != nil {
		return nil, afterID, fmt.Errorf("page identifiers: %w", err)
	}
	defer rows.Close()

	var (
		ids    []Identifier
		lastID = afterID
	)
	for rows.Next() {
		var (
			rowID   int64
			idType  string
			idValue string
		)
		if err := rows.Scan(&rowID, &idType, &idValue); err != nil {
			return nil, afterID, fmt.Errorf("scan identifier: %w", err)
		}
		ids = append(ids, Identifier{Type: Type(idType), Value: idValue})
		lastID = rowID
	}
	return ids, lastID, rows.Err()
}

// Count returns the number of known identifiers.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM identifiers`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count identifiers: %w", err)
	}
	return count, nil
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

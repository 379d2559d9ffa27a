package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"folio/internal/db"
	"folio/internal/identity"
	"folio/internal/sources"
)

// ErrNotFound is returned when a record the caller asked for does not exist.
var ErrNotFound = errors.New("catalog record not found")

// Store persists editions, works, and license pools in sqlite.
type Store struct {
	db  *sql.DB
	ids *identity.Store
}

// NewStore wires the store onto the shared database handle.
func NewStore(database *db.DB, ids *identity.Store) *Store {
	return &Store{db: database.Handle(), ids: ids}
}

// failpoint for merge atomicity tests; fires inside the merge transaction.
var mergeFailpoint func() error

// UpsertEdition writes one source's view of an identifier. Keyed by
// (identifier, source): re-ingesting the same source updates in place, a
// second source creates a sibling edition. An existing work attachment
// survives the update.
func (s *Store) UpsertEdition(ctx context.Context, edition Edition) (Edition, error) {
	if edition.Primary.IsZero() {
		return Edition{}, errors.New("edition missing primary identifier")
	}
	if edition.Source == "" {
		return Edition{}, fmt.Errorf("edition for %s missing source", edition.Primary)
	}
	identifierID, err := s.ids.Ensure(ctx, edition.Primary)
	if err != nil {
		return Edition{}, fmt.Errorf("ensure identifier: %w", err)
	}

	authorsJSON, err := encodeJSON(edition.Authors)
	if err != nil {
		return Edition{}, fmt.Errorf("encode authors: %w", err)
	}
	tagsJSON, err := encodeJSON(edition.Tags)
	if err != nil {
		return Edition{}, fmt.Errorf("encode tags: %w", err)
	}
	measurementsJSON, err := encodeJSON(edition.Measurements)
	if err != nil {
		return Edition{}, fmt.Errorf("encode measurements: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO editions (identifier_id, source, title, authors_json, language, tags_json, measurements_json, work_id, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)
         ON CONFLICT (identifier_id, source)
         DO UPDATE SET title = excluded.title,
                       authors_json = excluded.authors_json,
                       language = excluded.language,
                       tags_json = excluded.tags_json,
                       measurements_json = excluded.measurements_json,
                       updated_at = excluded.updated_at`,
		identifierID,
		edition.Source,
		nullableString(edition.Title),
		authorsJSON,
		nullableString(edition.Language),
		tagsJSON,
		measurementsJSON,
		now,
		now,
	)
	if err != nil {
		return Edition{}, fmt.Errorf("upsert edition: %w", err)
	}
	return s.GetEdition(ctx, edition.Primary, edition.Source)
}

// GetEdition fetches one source's edition for an identifier.
func (s *Store) GetEdition(ctx context.Context, id identity.Identifier, source string) (Edition, error) {
	row := s.db.QueryRowContext(ctx, editionSelect+
		` WHERE i.type = ? AND i.value = ? AND e.source = ?`,
		string(id.Type), id.Value, source)
	edition, err := scanEdition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Edition{}, ErrNotFound
		}
		return Edition{}, fmt.Errorf("query edition: %w", err)
	}
	return edition, nil
}

// EditionsForIdentifiers returns every edition whose primary identifier is in
// the given set, across all sources.
func (s *Store) EditionsForIdentifiers(ctx context.Context, ids []identity.Identifier) ([]Edition, error) {
	var editions []Edition
	for _, id := range ids {
		rows, err := s.db.QueryContext(ctx, editionSelect+
			` WHERE i.type = ? AND i.value = ? ORDER BY e.id`,
			string(id.Type), id.Value)
		if err != nil {
			return nil, fmt.Errorf("query editions: %w", err)
		}
		batch, err := scanEditions(rows)
		if err != nil {
			return nil, err
		}
		editions = append(editions, batch...)
	}
	return editions, nil
}

// EditionsForWork returns a work's member editions ordered by creation.
func (s *Store) EditionsForWork(ctx context.Context, workID int64) ([]Edition, error) {
	rows, err := s.db.QueryContext(ctx, editionSelect+
		` WHERE e.work_id = ? ORDER BY e.created_at, e.id`, workID)
	if err != nil {
		return nil, fmt.Errorf("query work editions: %w", err)
	}
	return scanEditions(rows)
}

const editionSelect = `SELECT e.id, i.type, i.value, e.source, e.title, e.authors_json, e.language, e.tags_json, e.measurements_json, e.work_id, e.created_at, e.updated_at
 FROM editions e JOIN identifiers i ON i.id = e.identifier_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEdition(row rowScanner) (Edition, error) {
	var edition Edition
	var idType, idValue string
	var title, authorsJSON, language, tagsJSON, measurementsJSON sql.NullString
	var workID sql.NullInt64
	var createdAt, updatedAt string
	err := row.Scan(&edition.ID, &idType, &idValue, &edition.Source, &title, &authorsJSON, &language, &tagsJSON, &measurementsJSON, &workID, &createdAt, &updatedAt)
	if err != nil {
		return Edition{}, err
	}
	edition.Primary = identity.Identifier{Type: identity.Type(idType), Value: idValue}
	edition.Title = title.String
	edition.Language = language.String
	edition.WorkID = workID.Int64
	if err := decodeJSON(authorsJSON, &edition.Authors); err != nil {
		return Edition{}, fmt.Errorf("decode authors: %w", err)
	}
	if err := decodeJSON(tagsJSON, &edition.Tags); err != nil {
		return Edition{}, fmt.Errorf("decode tags: %w", err)
	}
	var measurements []sources.Measurement
	if err := decodeJSON(measurementsJSON, &measurements); err != nil {
		return Edition{}, fmt.Errorf("decode measurements: %w", err)
	}
	edition.Measurements = measurements
	if parsed, parseErr := time.Parse(time.RFC3339Nano, createdAt); parseErr == nil {
		edition.CreatedAt = parsed
	}
	if parsed, parseErr := time.Parse(time.RFC3339Nano, updatedAt); parseErr == nil {
		edition.UpdatedAt = parsed
	}
	return edition, nil
}

func scanEditions(rows *sql.Rows) ([]Edition, error) {
	defer rows.Close()
	var editions []Edition
	for rows.Next() {
		edition, err := scanEdition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan edition: %w", err)
		}
		editions = append(editions, edition)
	}
	return editions, rows.Err()
}

// CreateWork creates an empty work shell with the given presentation.
func (s *Store) CreateWork(ctx context.Context, title, author string) (Work, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	result, err := s.db.ExecContext(
		ctx,
		`INSERT INTO works (title, author, retired, created_at, updated_at) VALUES (?, ?, 0, ?, ?)`,
		nullableString(title), nullableString(author), now, now)
	if err != nil {
		return Work{}, fmt.Errorf("insert work: %w", err)
	}
	workID, err := result.LastInsertId()
	if err != nil {
		return Work{}, fmt.Errorf("work insert id: %w", err)
	}
	return s.GetWork(ctx, workID)
}

// GetWork fetches a work by id.
func (s *Store) GetWork(ctx context.Context, workID int64) (Work, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, author, retired, created_at, updated_at FROM works WHERE id = ?`, workID)
	var work Work
	var title, author sql.NullString
	var retired int
	var createdAt, updatedAt string
	if err := row.Scan(&work.ID, &title, &author, &retired, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Work{}, ErrNotFound
		}
		return Work{}, fmt.Errorf("query work: %w", err)
	}
	work.Title = title.String
	work.Author = author.String
	work.Retired = retired != 0
	if parsed, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		work.CreatedAt = parsed
	}
	if parsed, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		work.UpdatedAt = parsed
	}
	return work, nil
}

// AttachEdition binds an edition to a work.
func (s *Store) AttachEdition(ctx context.Context, editionID, workID int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE editions SET work_id = ?, updated_at = ? WHERE id = ?`,
		workID, time.Now().UTC().Format(time.RFC3339Nano), editionID)
	if err != nil {
		return fmt.Errorf("attach edition: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetWorkPresentation updates a work's display title and author.
func (s *Store) SetWorkPresentation(ctx context.Context, workID int64, title, author string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE works SET title = ?, author = ?, updated_at = ? WHERE id = ?`,
		nullableString(title), nullableString(author),
		time.Now().UTC().Format(time.RFC3339Nano), workID)
	if err != nil {
		return fmt.Errorf("update work presentation: %w", err)
	}
	return nil
}

// EnsurePlaceholderPool creates the placeholder license pool for an
// identifier entering the system. Idempotent; an existing pool for the same
// identifier and source is left alone.
func (s *Store) EnsurePlaceholderPool(ctx context.Context, id identity.Identifier) error {
	return s.EnsurePool(ctx, id, PlaceholderSource)
}

// EnsurePool creates a license pool keyed (identifier, source) if absent.
func (s *Store) EnsurePool(ctx context.Context, id identity.Identifier, source string) error {
	identifierID, err := s.ids.Ensure(ctx, id)
	if err != nil {
		return fmt.Errorf("ensure identifier: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO license_pools (identifier_id, source, work_id, created_at)
         VALUES (?, ?, NULL, ?)
         ON CONFLICT (identifier_id, source) DO NOTHING`,
		identifierID, source, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("ensure license pool: %w", err)
	}
	return nil
}

// AssignPoolsToWork points every pool for an identifier at a work.
func (s *Store) AssignPoolsToWork(ctx context.Context, id identity.Identifier, workID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE license_pools SET work_id = ?
         WHERE identifier_id = (SELECT id FROM identifiers WHERE type = ? AND value = ?)`,
		workID, string(id.Type), id.Value)
	if err != nil {
		return fmt.Errorf("assign pools to work: %w", err)
	}
	return nil
}

// PoolsForWork returns the license pools attached to a work.
func (s *Store) PoolsForWork(ctx context.Context, workID int64) ([]LicensePool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.id, i.type, i.value, p.source, p.work_id, p.created_at
         FROM license_pools p JOIN identifiers i ON i.id = p.identifier_id
         WHERE p.work_id = ? ORDER BY p.id`, workID)
	if err != nil {
		return nil, fmt.Errorf("query work pools: %w", err)
	}
	defer rows.Close()

	var pools []LicensePool
	for rows.Next() {
		var pool LicensePool
		var idType, idValue, createdAt string
		var workID sql.NullInt64
		if err := rows.Scan(&pool.ID, &idType, &idValue, &pool.Source, &workID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan license pool: %w", err)
		}
		pool.Identifier = identity.Identifier{Type: identity.Type(idType), Value: idValue}
		pool.WorkID = workID.Int64
		if parsed, parseErr := time.Parse(time.RFC3339Nano, createdAt); parseErr == nil {
			pool.CreatedAt = parsed
		}
		pools = append(pools, pool)
	}
	return pools, rows.Err()
}

// MergeWorks moves every edition and pool from the source work onto the
// target, updates the target's presentation, and retires the source. All of
// it happens in one transaction; any failure rolls the whole move back.
func (s *Store) MergeWorks(ctx context.Context, sourceID, targetID int64, title, author string) error {
	if sourceID == targetID {
		return errors.New("cannot merge a work into itself")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin merge: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx,
		`UPDATE editions SET work_id = ?, updated_at = ? WHERE work_id = ?`,
		targetID, now, sourceID); err != nil {
		return fmt.Errorf("move editions: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE license_pools SET work_id = ? WHERE work_id = ?`,
		targetID, sourceID); err != nil {
		return fmt.Errorf("move license pools: %w", err)
	}
	if mergeFailpoint != nil {
		if err := mergeFailpoint(); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE works SET title = ?, author = ?, updated_at = ? WHERE id = ?`,
		nullableString(title), nullableString(author), now, targetID); err != nil {
		return fmt.Errorf("update merged presentation: %w", err)
	}
	result, err := tx.ExecContext(ctx,
		`UPDATE works SET retired = 1, updated_at = ? WHERE id = ? AND retired = 0`,
		now, sourceID)
	if err != nil {
		return fmt.Errorf("retire source work: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("source work %d missing or already retired", sourceID)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit merge: %w", err)
	}
	return nil
}

func encodeJSON(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func decodeJSON(value sql.NullString, target any) error {
	if !value.Valid || value.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(value.String), target)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

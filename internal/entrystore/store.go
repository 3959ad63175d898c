// Package entrystore persists computed statistic values in an append-only
// SQLite table. Rows are never updated or deleted in normal operation; a
// recomputation appends a new row and reads pick the newest exact match,
// which doubles as a point-in-time audit log and sidesteps lost-update races
// under concurrent writers.
package entrystore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// Pure-Go SQLite driver, registered as "sqlite".
	_ "modernc.org/sqlite"

	"github.com/apertium/apertium-stats-service/internal/entry"
)

// ErrNotFound is returned when no entry matches a lookup exactly.
var ErrNotFound = errors.New("entry not found")

// ErrStorageUnavailable is returned when the underlying database cannot be
// reached. It is surfaced as-is; retry policy belongs to the orchestrator.
var ErrStorageUnavailable = errors.New("storage unavailable")

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	requested TIMESTAMP NOT NULL,
	created   TIMESTAMP NOT NULL,
	name      TEXT NOT NULL,
	revision  INTEGER NOT NULL,
	path      TEXT NOT NULL,
	file_kind TEXT NOT NULL,
	stat_kind TEXT NOT NULL,
	value     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS entries_name ON entries (name);
CREATE INDEX IF NOT EXISTS entries_name_file_kind ON entries (name, file_kind);
CREATE INDEX IF NOT EXISTS entries_name_stat_kind ON entries (name, stat_kind);
`

// Store is the durable entry store backed by SQLite.
type Store struct {
	db *sql.DB

	// now is injectable for tests; defaults to time.Now.
	now func() time.Time
}

// Open opens (creating if needed) the database at path and ensures the
// entries schema exists. Use path ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// without a retry loop, and reads stay snapshot-consistent.
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrStorageUnavailable, path, err)
	}

	db.SetMaxOpenConns(1)

	_, err = db.Exec(schema)
	if err != nil {
		closeErr := db.Close()

		return nil, errors.Join(fmt.Errorf("%w: init schema: %w", ErrStorageUnavailable, err), closeErr)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	err := s.db.Close()
	if err != nil {
		return fmt.Errorf("close store: %w", err)
	}

	return nil
}

// Ping reports whether the database is reachable. Used by readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	err := s.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	return nil
}

const entryColumns = "id, requested, created, name, revision, path, file_kind, stat_kind, value"

// Insert appends a new entry row, assigning ID and Created, and returns the
// stored entry. The caller's Created value is ignored.
func (s *Store) Insert(ctx context.Context, e entry.Entry) (entry.Entry, error) {
	e.Created = s.now().UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (requested, created, name, revision, path, file_kind, stat_kind, value)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Requested.UTC(), e.Created, e.Name, e.Revision, e.Path, string(e.FileKind), string(e.StatKind), e.Value,
	)
	if err != nil {
		return entry.Entry{}, fmt.Errorf("%w: insert: %w", ErrStorageUnavailable, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return entry.Entry{}, fmt.Errorf("%w: insert id: %w", ErrStorageUnavailable, err)
	}

	e.ID = id

	return e, nil
}

// InsertBatch appends entries in a single transaction, assigning IDs and a
// shared Created stamp. Either every entry is persisted or none are, so a
// computation that fails partway leaves no rows behind.
func (s *Store) InsertBatch(ctx context.Context, entries []entry.Entry) ([]entry.Entry, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %w", ErrStorageUnavailable, err)
	}

	created := s.now().UTC()
	stored := make([]entry.Entry, 0, len(entries))

	for _, e := range entries {
		e.Created = created

		res, execErr := tx.ExecContext(ctx,
			`INSERT INTO entries (requested, created, name, revision, path, file_kind, stat_kind, value)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			e.Requested.UTC(), e.Created, e.Name, e.Revision, e.Path, string(e.FileKind), string(e.StatKind), e.Value,
		)
		if execErr != nil {
			_ = tx.Rollback()

			return nil, fmt.Errorf("%w: insert batch: %w", ErrStorageUnavailable, execErr)
		}

		id, idErr := res.LastInsertId()
		if idErr != nil {
			_ = tx.Rollback()

			return nil, fmt.Errorf("%w: insert batch id: %w", ErrStorageUnavailable, idErr)
		}

		e.ID = id
		stored = append(stored, e)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %w", ErrStorageUnavailable, err)
	}

	return stored, nil
}

// FindLatest returns the newest entry matching name, file kind, stat kind,
// and revision exactly. Lower revisions are never substituted. An empty path
// matches any path; a non-empty path must match exactly.
func (s *Store) FindLatest(
	ctx context.Context,
	name, path string,
	fileKind entry.FileKind,
	statKind entry.StatKind,
	revision int,
) (entry.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries
		 WHERE name = ? AND file_kind = ? AND stat_kind = ? AND revision = ?`
	args := []any{name, string(fileKind), string(statKind), revision}

	if path != "" {
		query += ` AND path = ?`
		args = append(args, path)
	}

	query += ` ORDER BY created DESC, id DESC LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, args...)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return entry.Entry{}, fmt.Errorf("%w: %s %s/%s@%d", ErrNotFound, name, fileKind, statKind, revision)
	}

	if err != nil {
		return entry.Entry{}, fmt.Errorf("%w: find latest: %w", ErrStorageUnavailable, err)
	}

	return e, nil
}

// FindAllForName returns every entry recorded for a package, newest first.
func (s *Store) FindAllForName(ctx context.Context, name string) ([]entry.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE name = ? ORDER BY created DESC, id DESC`, name)
	if err != nil {
		return nil, fmt.Errorf("%w: find all: %w", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var entries []entry.Entry

	for rows.Next() {
		e, scanErr := scanEntry(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("%w: scan: %w", ErrStorageUnavailable, scanErr)
		}

		entries = append(entries, e)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("%w: iterate: %w", ErrStorageUnavailable, rowsErr)
	}

	return entries, nil
}

// scanner abstracts sql.Row and sql.Rows for scanEntry.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (entry.Entry, error) {
	var (
		e                  entry.Entry
		fileKind, statKind string
	)

	err := row.Scan(&e.ID, &e.Requested, &e.Created, &e.Name, &e.Revision, &e.Path, &fileKind, &statKind, &e.Value)
	if err != nil {
		return entry.Entry{}, err
	}

	e.FileKind = entry.FileKind(fileKind)
	e.StatKind = entry.StatKind(statKind)

	return e, nil
}

// Package store persists evaluation records in a single SQLite file.
// The file is the durable source of truth for resumable runs: reopening the
// store reconstructs full prior state, and a partial unique index enforces
// at-most-one live record per (combination, query, dimension) key.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ahrav/promptlab/internal/domain"
	"github.com/ahrav/promptlab/internal/ports"
)

// SQLiteStore implements ports.ResultStore backed by modernc.org/sqlite.
// WAL mode keeps appends crash-safe; transactional supersede-and-insert means
// a force rewrite can never leave the key without exactly one live record.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ ports.ResultStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS evaluation_records (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    combo_key   TEXT    NOT NULL,
    query       TEXT    NOT NULL,
    dimension   TEXT    NOT NULL,
    kind        TEXT    NOT NULL,
    score       INTEGER NOT NULL DEFAULT 0,
    passed      INTEGER,
    response    TEXT    NOT NULL DEFAULT '',
    judge_raw   TEXT    NOT NULL DEFAULT '',
    status      TEXT    NOT NULL,
    error       TEXT    NOT NULL DEFAULT '',
    attempts    INTEGER NOT NULL DEFAULT 0,
    superseded  INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT    NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_records_live_key
    ON evaluation_records(combo_key, query, dimension) WHERE superseded = 0;
`

// Open initializes or reconnects to the result database at path and applies
// the schema. A file that cannot be parsed as the expected database surfaces
// ports.ErrStoreCorrupted: the engine refuses to run on unreadable state.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, ports.NewStoreError("open", "", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, corruption(fmt.Errorf("apply pragma %q: %w", pragma, execErr))
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, corruption(fmt.Errorf("apply schema: %w", err))
	}

	// A readable file with a broken record set is as unusable as an
	// unreadable one.
	var checkResult string
	if err := db.QueryRow("PRAGMA quick_check").Scan(&checkResult); err != nil || checkResult != "ok" {
		_ = db.Close()
		if err == nil {
			err = fmt.Errorf("quick_check reported %q", checkResult)
		}
		return nil, corruption(err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

func corruption(err error) error {
	return ports.NewStoreError("open", "", fmt.Errorf("%w: %w", ports.ErrStoreCorrupted, err))
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the location of the durable file.
func (s *SQLiteStore) Path() string { return s.path }

// Exists reports whether a live record exists for the given key.
func (s *SQLiteStore) Exists(ctx context.Context, key domain.RecordKey) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM evaluation_records
         WHERE combo_key = ? AND query = ? AND dimension = ? AND superseded = 0`,
		key.Combination, key.Query, key.Dimension,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, ports.NewStoreError("exists", key.String(), err)
	}
	return true, nil
}

// Append persists a record. With force unset, an existing live record for the
// key makes the call a no-op. With force set, the prior record is marked
// superseded and the new one inserted inside one transaction, so readers
// always observe exactly one live record per key.
func (s *SQLiteStore) Append(ctx context.Context, record domain.EvaluationRecord, force bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ports.NewStoreError("append", record.Key.String(), err)
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM evaluation_records
         WHERE combo_key = ? AND query = ? AND dimension = ? AND superseded = 0`,
		record.Key.Combination, record.Key.Query, record.Key.Dimension,
	).Scan(&one)
	switch {
	case err == nil:
		if !force {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE evaluation_records SET superseded = 1
             WHERE combo_key = ? AND query = ? AND dimension = ? AND superseded = 0`,
			record.Key.Combination, record.Key.Query, record.Key.Dimension,
		); err != nil {
			return ports.NewStoreError("append", record.Key.String(), err)
		}
	case errors.Is(err, sql.ErrNoRows):
		// First record for this key.
	default:
		return ports.NewStoreError("append", record.Key.String(), err)
	}

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var passed any
	if record.Judgment.Kind == domain.KindBoolean {
		passed = boolToInt(record.Judgment.Passed)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO evaluation_records (
            combo_key, query, dimension, kind, score, passed,
            response, judge_raw, status, error, attempts, superseded, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		record.Key.Combination,
		record.Key.Query,
		record.Key.Dimension,
		string(record.Judgment.Kind),
		record.Judgment.Score,
		passed,
		record.Response,
		record.Judgment.Raw,
		string(record.Status),
		record.Error,
		record.Attempts,
		createdAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return ports.NewStoreError("append", record.Key.String(), err)
	}

	if err := tx.Commit(); err != nil {
		return ports.NewStoreError("append", record.Key.String(), err)
	}
	return nil
}

// All returns every live record ordered by insertion.
func (s *SQLiteStore) All(ctx context.Context) ([]domain.EvaluationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT combo_key, query, dimension, kind, score, passed,
                response, judge_raw, status, error, attempts, created_at
         FROM evaluation_records WHERE superseded = 0 ORDER BY id`)
	if err != nil {
		return nil, ports.NewStoreError("all", "", err)
	}
	defer rows.Close()

	var records []domain.EvaluationRecord
	for rows.Next() {
		var (
			rec       domain.EvaluationRecord
			kind      string
			passed    sql.NullInt64
			status    string
			createdAt string
		)
		if err := rows.Scan(
			&rec.Key.Combination, &rec.Key.Query, &rec.Key.Dimension,
			&kind, &rec.Judgment.Score, &passed,
			&rec.Response, &rec.Judgment.Raw, &status, &rec.Error,
			&rec.Attempts, &createdAt,
		); err != nil {
			return nil, ports.NewStoreError("all", "", err)
		}

		rec.Judgment.Kind = domain.ResultKind(kind)
		if passed.Valid {
			rec.Judgment.Passed = passed.Int64 != 0
		}
		rec.Status = domain.UnitStatus(status)
		if ts, parseErr := time.Parse(time.RFC3339Nano, createdAt); parseErr == nil {
			rec.CreatedAt = ts
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, ports.NewStoreError("all", "", err)
	}
	return records, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

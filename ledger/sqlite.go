// SPDX-License-Identifier: MIT

//go:build sqlite

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps records in a sqlite file.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteStore returns an uninitialized store over path.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func newSQLiteStore(path string) (Store, error) {
	if path == "" {
		return nil, errors.New("ledger: sqlite path is required")
	}
	return NewSQLiteStore(path), nil
}

// Init opens the database and creates missing tables.
func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("ledger: sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("ledger: open %s: %w", s.path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ledger: ping %s: %w", s.path, err)
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return fmt.Errorf("ledger: schema: %w", err)
	}

	s.db = db
	return nil
}

// BeginRun implements Store.
func (s *SQLiteStore) BeginRun(ctx context.Context, run Run) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, label, started)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			label = excluded.label,
			started = excluded.started
	`, run.ID, run.Label, run.Started.UTC().Format(time.RFC3339Nano))
	return err
}

// Runs implements Store.
func (s *SQLiteStore) Runs(ctx context.Context) ([]Run, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT id, label, started FROM runs ORDER BY started, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r       Run
			started string
		)
		if err := rows.Scan(&r.ID, &r.Label, &started); err != nil {
			return nil, err
		}
		if r.Started, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("ledger: run %s start time: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveAllocation implements Store.
func (s *SQLiteStore) SaveAllocation(ctx context.Context, rec AllocationRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	if err := runExists(ctx, db, rec.RunID); err != nil {
		return err
	}
	payload, err := encode(rec)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO allocations (run_id, institution, year, month, state, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, institution, year, month) DO UPDATE SET
			state = excluded.state,
			payload = excluded.payload
	`, rec.RunID, rec.Institution, rec.Year, rec.Month, rec.State, payload)
	return err
}

// Allocations implements Store.
func (s *SQLiteStore) Allocations(ctx context.Context, runID string) ([]AllocationRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	if err := runExists(ctx, db, runID); err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT payload FROM allocations WHERE run_id = ?
		ORDER BY year, month, institution
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AllocationRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		rec, err := decodeAllocation(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveMarket implements Store.
func (s *SQLiteStore) SaveMarket(ctx context.Context, rec MarketRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	if err := runExists(ctx, db, rec.RunID); err != nil {
		return err
	}
	payload, err := encode(rec)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO markets (run_id, year, month, status, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, year, month) DO UPDATE SET
			status = excluded.status,
			payload = excluded.payload
	`, rec.RunID, rec.Year, rec.Month, rec.Status, payload)
	return err
}

// Markets implements Store.
func (s *SQLiteStore) Markets(ctx context.Context, runID string) ([]MarketRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	if err := runExists(ctx, db, runID); err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT payload FROM markets WHERE run_id = ?
		ORDER BY year, month
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MarketRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		rec, err := decodeMarket(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

func runExists(ctx context.Context, db *sql.DB, id string) error {
	var one int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %q", ErrUnknownRun, id)
	}
	return err
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL,
			started TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS allocations (
			run_id TEXT NOT NULL REFERENCES runs(id),
			institution TEXT NOT NULL,
			year INTEGER NOT NULL,
			month INTEGER NOT NULL,
			state TEXT NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (run_id, institution, year, month)
		);
		CREATE TABLE IF NOT EXISTS markets (
			run_id TEXT NOT NULL REFERENCES runs(id),
			year INTEGER NOT NULL,
			month INTEGER NOT NULL,
			status TEXT NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (run_id, year, month)
		);
	`)
	return err
}

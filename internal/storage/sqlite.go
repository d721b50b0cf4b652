package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at TIMESTAMP,
			input TEXT,
			output TEXT,
			report JSON
		);`,
		`CREATE TABLE IF NOT EXISTS overrides (
			rule_id TEXT PRIMARY KEY,
			run_id TEXT,
			created_at TIMESTAMP,
			rule JSON
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_overrides_run ON overrides(run_id);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run Run) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, input, output, report)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			created_at=excluded.created_at,
			input=excluded.input,
			output=excluded.output,
			report=excluded.report
	`, run.ID, run.CreatedAt, run.Input, run.Output, run.Report)
	return err
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, input, output, report FROM runs WHERE id = ?
	`, id)

	var run Run
	if err := row.Scan(&run.ID, &run.CreatedAt, &run.Input, &run.Output, &run.Report); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run not found: %s", id)
		}
		return nil, err
	}
	return &run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, input, output, report
		FROM runs ORDER BY created_at DESC, id LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.CreatedAt, &run.Input, &run.Output, &run.Report); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) SaveOverride(ctx context.Context, rec OverrideRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO overrides (rule_id, run_id, created_at, rule)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(rule_id) DO NOTHING
	`, rec.RuleID, rec.RunID, rec.CreatedAt, rec.Rule)
	return err
}

func (s *SQLiteStore) ListOverrides(ctx context.Context, runID string) ([]OverrideRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rule_id, run_id, created_at, rule
		FROM overrides WHERE run_id = ? ORDER BY created_at, rule_id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []OverrideRecord
	for rows.Next() {
		var rec OverrideRecord
		if err := rows.Scan(&rec.RuleID, &rec.RunID, &rec.CreatedAt, &rec.Rule); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

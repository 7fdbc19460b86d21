package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNoBaseline is returned when a root has fewer than two recorded runs.
var ErrNoBaseline = errors.New("storage: need at least two runs to compare")

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates or opens the run-history database.
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
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			root TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			files_analyzed INTEGER,
			violations INTEGER,
			critical INTEGER,
			high INTEGER,
			medium INTEGER,
			low INTEGER,
			quality_score REAL,
			overall_score REAL,
			report JSON
		);`,
		`CREATE TABLE IF NOT EXISTS findings (
			run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			fingerprint TEXT NOT NULL,
			kind TEXT,
			severity TEXT,
			file_path TEXT,
			line INTEGER,
			PRIMARY KEY (run_id, fingerprint)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_root ON runs(root, created_at);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run, findings []Finding, report []byte) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (root, created_at, files_analyzed, violations, critical, high, medium, low, quality_score, overall_score, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.Root, run.CreatedAt, run.FilesAnalyzed, run.Violations,
		run.Critical, run.High, run.Medium, run.Low,
		run.QualityScore, run.OverallScore, report)
	if err != nil {
		return 0, err
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO findings (run_id, fingerprint, kind, severity, file_path, line)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, fingerprint) DO NOTHING
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, f := range findings {
		if _, err := stmt.ExecContext(ctx, runID, f.Fingerprint, f.Kind, f.Severity, f.FilePath, f.Line); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	run.ID = runID
	return runID, nil
}

const runColumns = "id, root, created_at, files_analyzed, violations, critical, high, medium, low, quality_score, overall_score"

func scanRun(row interface{ Scan(...any) error }) (Run, error) {
	var r Run
	err := row.Scan(&r.ID, &r.Root, &r.CreatedAt, &r.FilesAnalyzed, &r.Violations,
		&r.Critical, &r.High, &r.Medium, &r.Low, &r.QualityScore, &r.OverallScore)
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, root string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs WHERE root = ? ORDER BY created_at DESC, id DESC LIMIT ?",
		root, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) LoadReport(ctx context.Context, runID int64) ([]byte, error) {
	var report []byte
	err := s.db.QueryRowContext(ctx, "SELECT report FROM runs WHERE id = ?", runID).Scan(&report)
	if err != nil {
		return nil, err
	}
	return report, nil
}

// CompareBaseline diffs the latest run against the one before it: findings
// present only in the latest run are new, findings present only in the
// previous run are resolved.
func (s *SQLiteStore) CompareBaseline(ctx context.Context, root string) (*BaselineDiff, error) {
	runs, err := s.ListRuns(ctx, root, 2)
	if err != nil {
		return nil, err
	}
	if len(runs) < 2 {
		return nil, ErrNoBaseline
	}
	latest, baseline := runs[0], runs[1]

	latestFindings, err := s.findings(ctx, latest.ID)
	if err != nil {
		return nil, err
	}
	baselineFindings, err := s.findings(ctx, baseline.ID)
	if err != nil {
		return nil, err
	}

	inBaseline := make(map[string]struct{}, len(baselineFindings))
	for _, f := range baselineFindings {
		inBaseline[f.Fingerprint] = struct{}{}
	}
	inLatest := make(map[string]struct{}, len(latestFindings))
	for _, f := range latestFindings {
		inLatest[f.Fingerprint] = struct{}{}
	}

	diff := &BaselineDiff{Baseline: baseline, Latest: latest}
	for _, f := range latestFindings {
		if _, ok := inBaseline[f.Fingerprint]; !ok {
			diff.New = append(diff.New, f)
		}
	}
	for _, f := range baselineFindings {
		if _, ok := inLatest[f.Fingerprint]; !ok {
			diff.Resolved = append(diff.Resolved, f)
		}
	}
	return diff, nil
}

func (s *SQLiteStore) findings(ctx context.Context, runID int64) ([]Finding, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT fingerprint, kind, severity, file_path, line FROM findings WHERE run_id = ? ORDER BY file_path, line, fingerprint",
		runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer rows.Close()

	var findings []Finding
	for rows.Next() {
		var f Finding
		if err := rows.Scan(&f.Fingerprint, &f.Kind, &f.Severity, &f.FilePath, &f.Line); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		findings = append(findings, f)
	}
	return findings, rows.Err()
}

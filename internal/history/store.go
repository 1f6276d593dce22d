// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history records finished batches in a SQLite database so
// earlier runs can be listed and exported.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/office2img/pkg/types"
)

// ErrRunNotFound is returned by Run for an unknown ID.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded batch.
type Run struct {
	ID         string             `json:"id" yaml:"id"`
	StartedAt  time.Time          `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time          `json:"finished_at" yaml:"finished_at"`
	Mode       types.Mode         `json:"mode" yaml:"mode"`
	Status     types.BatchStatus  `json:"status" yaml:"status"`
	Backend    string             `json:"backend" yaml:"backend"`
	InputDir   string             `json:"input_dir" yaml:"input_dir"`
	OutputDir  string             `json:"output_dir" yaml:"output_dir"`
	Artifact   string             `json:"artifact,omitempty" yaml:"artifact,omitempty"`
	Files      []types.FileResult `json:"files" yaml:"files"`
}

// Store manages the history database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path and its schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			mode TEXT NOT NULL,
			status TEXT NOT NULL,
			backend TEXT,
			input_dir TEXT,
			output_dir TEXT,
			artifact TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS files (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			name TEXT NOT NULL,
			format TEXT NOT NULL,
			status TEXT NOT NULL,
			pages INTEGER NOT NULL,
			failed_pages TEXT,
			error TEXT,
			PRIMARY KEY (run_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// RecordRun stores a finished batch and returns its new run ID.
func (s *Store) RecordRun(ctx context.Context, cfg types.Config, backend string, res types.BatchResult) (string, error) {
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, mode, status, backend, input_dir, output_dir, artifact)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		res.StartedAt.UTC().Format(time.RFC3339Nano),
		res.FinishedAt.UTC().Format(time.RFC3339Nano),
		string(cfg.Mode), string(res.Status), backend,
		cfg.InputDir, cfg.OutputDir, res.Artifact,
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO files (run_id, seq, name, format, status, pages, failed_pages, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("preparing file insert: %w", err)
	}
	defer stmt.Close()

	for i, f := range res.Files {
		failed, err := json.Marshal(f.FailedPages)
		if err != nil {
			return "", fmt.Errorf("encoding failed pages: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, id, i+1, f.Name, string(f.Format), string(f.Status), f.Pages, string(failed), f.Error); err != nil {
			return "", fmt.Errorf("inserting file %s: %w", f.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	return id, nil
}

// ListRuns returns up to limit runs, newest first, with their files. A
// limit of zero or less returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, started_at, finished_at, mode, status, backend, input_dir, output_dir, artifact
		FROM runs ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}

	for i := range runs {
		files, err := s.files(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Files = files
	}
	return runs, nil
}

// Run returns one run by ID.
func (s *Store) Run(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, mode, status, backend, input_dir, output_dir, artifact
		 FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, err
	}
	r.Files, err = s.files(ctx, id)
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r                   Run
		started, finished   string
		mode, status        string
		backend, in, out, a sql.NullString
	)
	if err := sc.Scan(&r.ID, &started, &finished, &mode, &status, &backend, &in, &out, &a); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scanning run: %w", err)
	}
	var err error
	if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return Run{}, fmt.Errorf("parsing started_at of run %s: %w", r.ID, err)
	}
	if r.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return Run{}, fmt.Errorf("parsing finished_at of run %s: %w", r.ID, err)
	}
	r.Mode = types.Mode(mode)
	r.Status = types.BatchStatus(status)
	r.Backend, r.InputDir, r.OutputDir, r.Artifact = backend.String, in.String, out.String, a.String
	return r, nil
}

func (s *Store) files(ctx context.Context, runID string) ([]types.FileResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, format, status, pages, failed_pages, error FROM files WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying files of run %s: %w", runID, err)
	}
	defer rows.Close()

	files := []types.FileResult{}
	for rows.Next() {
		var (
			f              types.FileResult
			format, status string
			failed, msg    sql.NullString
		)
		if err := rows.Scan(&f.Name, &format, &status, &f.Pages, &failed, &msg); err != nil {
			return nil, fmt.Errorf("scanning file: %w", err)
		}
		f.Format = types.Format(format)
		f.Status = types.ConversionStatus(status)
		f.Error = msg.String
		if failed.Valid && failed.String != "" && failed.String != "null" {
			if err := json.Unmarshal([]byte(failed.String), &f.FailedPages); err != nil {
				return nil, fmt.Errorf("decoding failed pages of %s: %w", f.Name, err)
			}
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

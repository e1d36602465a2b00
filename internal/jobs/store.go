// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/docxml/pkg/types"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store persists conversion job records. Complete and Fail update only a
// pending record; on any other record they return ErrNotPending.
type Store interface {
	Create(ctx context.Context, job *types.ConversionJob) error
	Get(ctx context.Context, id string) (*types.ConversionJob, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]types.ConversionJob, error)
	List(ctx context.Context) ([]types.ConversionJob, error)
	Complete(ctx context.Context, id, output string, at time.Time) error
	Fail(ctx context.Context, id, message string, at time.Time) error
}

// SQLiteStore is the Store backed by a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the job database at cfg.Path. It creates
// the schema if it does not exist.
func NewSQLiteStore(cfg types.StoreConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, errors.New("store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Workers write concurrently; serialize them on one connection.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversions (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			original_name TEXT NOT NULL,
			source_location TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('pending', 'completed', 'failed')),
			output TEXT,
			error TEXT,
			created_at TEXT NOT NULL,
			finished_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversions_owner ON conversions(owner_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_conversions_status ON conversions(status)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

const selectColumns = `SELECT id, owner_id, original_name, source_location, status, output, error, created_at, finished_at FROM conversions`

// Create inserts a new job record. The record must be pending.
func (s *SQLiteStore) Create(ctx context.Context, job *types.ConversionJob) error {
	if job.Status != types.JobPending {
		return fmt.Errorf("creating job %s: status %q, want pending", job.ID, job.Status)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversions (id, owner_id, original_name, source_location, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		job.ID, job.OwnerID, job.OriginalName, job.SourceLocation,
		string(job.Status), job.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting job %s: %w", job.ID, err)
	}
	return nil
}

// Get returns the job with the given ID, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*types.ConversionJob, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying job %s: %w", id, err)
	}
	return job, nil
}

// ListByOwner returns up to limit of the owner's jobs, newest first. A
// non-positive limit returns all of them.
func (s *SQLiteStore) ListByOwner(ctx context.Context, ownerID string, limit int) ([]types.ConversionJob, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` WHERE owner_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		ownerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing jobs for %s: %w", ownerID, err)
	}
	return collectJobs(rows)
}

// List returns every job, oldest first.
func (s *SQLiteStore) List(ctx context.Context) ([]types.ConversionJob, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	return collectJobs(rows)
}

// Complete moves a pending job to completed with its output.
func (s *SQLiteStore) Complete(ctx context.Context, id, output string, at time.Time) error {
	return s.finish(ctx, id, types.JobCompleted, sql.NullString{String: output, Valid: true}, sql.NullString{}, at)
}

// Fail moves a pending job to failed with a message.
func (s *SQLiteStore) Fail(ctx context.Context, id, message string, at time.Time) error {
	return s.finish(ctx, id, types.JobFailed, sql.NullString{}, sql.NullString{String: message, Valid: true}, at)
}

func (s *SQLiteStore) finish(ctx context.Context, id string, status types.JobStatus, output, msg sql.NullString, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE conversions SET status = ?, output = ?, error = ?, finished_at = ?
		 WHERE id = ? AND status = 'pending'`,
		string(status), output, msg, at.UTC().Format(timeLayout), id,
	)
	if err != nil {
		return fmt.Errorf("marking job %s %s: %w", id, status, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("marking job %s %s: %w", id, status, err)
	}
	if n == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT count(*) FROM conversions WHERE id = ?`, id).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking job %s: %w", id, err)
		}
		if exists == 0 {
			return ErrNotFound
		}
		return fmt.Errorf("marking job %s %s: %w", id, status, ErrNotPending)
	}

	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(sc scanner) (*types.ConversionJob, error) {
	var (
		job                   types.ConversionJob
		status, created       string
		output, msg, finished sql.NullString
	)
	err := sc.Scan(&job.ID, &job.OwnerID, &job.OriginalName, &job.SourceLocation,
		&status, &output, &msg, &created, &finished)
	if err != nil {
		return nil, err
	}

	job.Status = types.JobStatus(status)
	job.Output = output.String
	job.Error = msg.String
	if job.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("parsing created_at for %s: %w", job.ID, err)
	}
	if finished.Valid {
		t, err := time.Parse(timeLayout, finished.String)
		if err != nil {
			return nil, fmt.Errorf("parsing finished_at for %s: %w", job.ID, err)
		}
		job.FinishedAt = &t
	}
	return &job, nil
}

func collectJobs(rows *sql.Rows) ([]types.ConversionJob, error) {
	defer rows.Close()
	var out []types.ConversionJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		out = append(out, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating jobs: %w", err)
	}
	return out, nil
}

// ExportEntry is one job as written by ExportYAML and ExportJSON. The XML
// output is omitted; only its size is reported.
type ExportEntry struct {
	ID           string     `json:"id" yaml:"id"`
	OwnerID      string     `json:"owner_id" yaml:"owner_id"`
	OriginalName string     `json:"original_name" yaml:"original_name"`
	Status       string     `json:"status" yaml:"status"`
	OutputBytes  int        `json:"output_bytes" yaml:"output_bytes"`
	Error        string     `json:"error,omitempty" yaml:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at" yaml:"created_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

// ExportYAML writes every job record to w as YAML.
func ExportYAML(ctx context.Context, s Store, w io.Writer) error {
	entries, err := exportEntries(ctx, s)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// ExportJSON writes every job record to w as indented JSON.
func ExportJSON(ctx context.Context, s Store, w io.Writer) error {
	entries, err := exportEntries(ctx, s)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

func exportEntries(ctx context.Context, s Store) ([]ExportEntry, error) {
	jobs, err := s.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}

	entries := make([]ExportEntry, len(jobs))
	for i, j := range jobs {
		entries[i] = ExportEntry{
			ID:           j.ID,
			OwnerID:      j.OwnerID,
			OriginalName: j.OriginalName,
			Status:       string(j.Status),
			OutputBytes:  len(j.Output),
			Error:        j.Error,
			CreatedAt:    j.CreatedAt,
			FinishedAt:   j.FinishedAt,
		}
	}
	return entries, nil
}

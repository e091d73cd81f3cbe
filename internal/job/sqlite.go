package job

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// timeLayout has a fixed width so stored times sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const runColumns = "id, status, step, title, lines, speed, aligned, total, push_to_s3, artifacts_json, error_message, created_at, updated_at, started_at, completed_at"

// Compile-time check that SQLiteRepository implements Repository.
var _ Repository = (*SQLiteRepository)(nil)

// SQLiteRepository persists runs in a SQLite database.
type SQLiteRepository struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the run database at path.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Pragmas are per connection; a single connection keeps them in effect.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	repo := &SQLiteRepository{db: db, path: path}
	if err := repo.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Path returns the database file path.
func (r *SQLiteRepository) Path() string {
	return r.path
}

// Close closes the underlying database connection.
func (r *SQLiteRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Save inserts or updates a run.
func (r *SQLiteRepository) Save(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	j := job.Clone()

	artifacts, err := json.Marshal(j.Artifacts)
	if err != nil {
		return fmt.Errorf("marshal artifacts: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO sync_runs (`+runColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             status = excluded.status, step = excluded.step, title = excluded.title,
             lines = excluded.lines, speed = excluded.speed, aligned = excluded.aligned,
             total = excluded.total, push_to_s3 = excluded.push_to_s3,
             artifacts_json = excluded.artifacts_json, error_message = excluded.error_message,
             updated_at = excluded.updated_at, started_at = excluded.started_at,
             completed_at = excluded.completed_at`,
		j.ID,
		string(j.Status),
		nullableString(string(j.Step)),
		nullableString(j.Title),
		j.Lines,
		j.Speed,
		j.Aligned,
		j.Total,
		boolToInt(j.PushToS3),
		string(artifacts),
		nullableString(j.Error),
		formatTime(j.CreatedAt),
		formatTime(j.UpdatedAt),
		nullableTime(j.StartedAt),
		nullableTime(j.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", j.ID, err)
	}
	return nil
}

// FindByID retrieves a run by its ID.
func (r *SQLiteRepository) FindByID(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM sync_runs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return job, nil
}

// List returns all runs, oldest first.
func (r *SQLiteRepository) List(ctx context.Context) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+runColumns+` FROM sync_runs ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	jobs := make([]*Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return jobs, nil
}

// Delete removes a run.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sync_runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (r *SQLiteRepository) initSchema(ctx context.Context) error {
	var tableExists int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return r.createSchema(ctx)
	}

	var version int
	if err := r.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, r.path)
	}
	return nil
}

func (r *SQLiteRepository) createSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           string
		status       string
		step         sql.NullString
		title        sql.NullString
		lines        int
		speed        float64
		aligned      int
		total        int
		pushToS3     int
		artifactsRaw sql.NullString
		errorMessage sql.NullString
		createdRaw   string
		updatedRaw   string
		startedRaw   sql.NullString
		completedRaw sql.NullString
	)
	if err := scanner.Scan(
		&id, &status, &step, &title, &lines, &speed, &aligned, &total, &pushToS3,
		&artifactsRaw, &errorMessage, &createdRaw, &updatedRaw, &startedRaw, &completedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:        id,
		Status:    Status(status),
		Step:      Step(step.String),
		Title:     title.String,
		Lines:     lines,
		Speed:     speed,
		Aligned:   aligned,
		Total:     total,
		PushToS3:  pushToS3 != 0,
		Artifacts: make([]Artifact, 0),
		Error:     errorMessage.String,
	}
	if artifactsRaw.Valid && artifactsRaw.String != "" {
		if err := json.Unmarshal([]byte(artifactsRaw.String), &job.Artifacts); err != nil {
			return nil, fmt.Errorf("decode artifacts: %w", err)
		}
	}

	var err error
	if job.CreatedAt, err = parseTime(createdRaw); err != nil {
		return nil, err
	}
	if job.UpdatedAt, err = parseTime(updatedRaw); err != nil {
		return nil, err
	}
	if startedRaw.Valid {
		if job.StartedAt, err = parseTime(startedRaw.String); err != nil {
			return nil, err
		}
	}
	if completedRaw.Valid {
		if job.CompletedAt, err = parseTime(completedRaw.String); err != nil {
			return nil, err
		}
	}
	return job, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", raw, err)
	}
	return t, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Package runstore persists cleaning run history in a local SQLite database
// so past runs can be listed and their reports re-rendered.
package runstore

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/neuro-analyst/neuroclean/internal/eeg/pipeline"
	"github.com/neuro-analyst/neuroclean/internal/monitoring"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrRunNotFound indicates the requested run ID is not in the store.
var ErrRunNotFound = errors.New("run not found")

// Run is one row of cleaning history. Report carries the full CleaningReport
// as stored; summary columns are denormalised for listing without decoding it.
type Run struct {
	RunID             string
	InputPath         string
	OutputPath        string
	StartedAt         time.Time
	FinishedAt        time.Time
	SampleRate        float64
	NumChannels       int
	NumSamples        int
	BadChannels       int
	RemovedComponents int
	Seed              int64
	Report            *pipeline.CleaningReport
}

// Store wraps the history database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the store at path and applies any pending
// migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create run store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun records a completed cleaning run.
func (s *Store) SaveRun(rep *pipeline.CleaningReport, inputPath, outputPath string) error {
	blob, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO runs (
			run_id, input_path, output_path, started_at, finished_at,
			sample_rate, num_channels, num_samples,
			bad_channels, removed_components, seed, report_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.RunID, inputPath, outputPath, rep.StartedAt, rep.FinishedAt,
		rep.SampleRate, rep.NumChannels, rep.NumSamples,
		len(rep.BadChannels), rep.NumRemoved(), rep.Seed, string(blob),
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", rep.RunID, err)
	}
	return nil
}

// GetRun fetches one run by ID, including its full decoded report.
func (s *Store) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT run_id, input_path, output_path, started_at, finished_at,
		       sample_rate, num_channels, num_samples,
		       bad_channels, removed_components, seed, report_json
		FROM runs WHERE run_id = ?`, runID)

	run, blob, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", runID, err)
	}

	run.Report = &pipeline.CleaningReport{}
	if err := json.Unmarshal([]byte(blob), run.Report); err != nil {
		return nil, fmt.Errorf("failed to decode report for run %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first, without decoding the
// stored reports.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT run_id, input_path, output_path, started_at, finished_at,
		       sample_rate, num_channels, num_samples,
		       bad_channels, removed_components, seed, report_json
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, _, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, string, error) {
	var run Run
	var blob string
	err := row.Scan(
		&run.RunID, &run.InputPath, &run.OutputPath, &run.StartedAt, &run.FinishedAt,
		&run.SampleRate, &run.NumChannels, &run.NumSamples,
		&run.BadChannels, &run.RemovedComponents, &run.Seed, &blob,
	)
	if err != nil {
		return nil, "", err
	}
	return &run, blob, nil
}

// migrateUp applies all pending schema migrations from the embedded set.
func (s *Store) migrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	// Not closed: closing the migrate instance would close the shared DB
	// connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateDown rolls back the most recent migration.
func (s *Store) MigrateDown() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// MigrateVersion reports the current schema version and dirty state. A fresh
// database reports version 0.
func (s *Store) MigrateVersion() (version uint, dirty bool, err error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (s *Store) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	return m, nil
}

// migrateLogger routes migrate output through the package logger.
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...any) {
	monitoring.Logf("migrate: "+format, v...)
}

func (l *migrateLogger) Verbose() bool { return false }

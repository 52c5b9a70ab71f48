// Package catalog records research runs in SQL so past sessions can be
// listed and inspected without scanning the artifact directory. SQLite is
// the default backend; Postgres is supported for shared deployments.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/tridentlabs/trident/internal/util"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ErrRunNotFound is returned when a run ID has no catalog row.
var ErrRunNotFound = errors.New("research run not found")

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is one catalog row.
type Run struct {
	ID             string     `db:"id" json:"id"`
	SessionID      string     `db:"session_id" json:"session_id"`
	Topic          string     `db:"topic" json:"topic"`
	Status         string     `db:"status" json:"status"`
	ReportPath     string     `db:"report_path" json:"report_path,omitempty"`
	BranchCount    int        `db:"branch_count" json:"branch_count"`
	SucceededCount int        `db:"succeeded_count" json:"succeeded_count"`
	ErrorMessage   string     `db:"error_message" json:"error_message,omitempty"`
	StartedAt      time.Time  `db:"started_at" json:"started_at"`
	CompletedAt    *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

const schema = `
CREATE TABLE IF NOT EXISTS research_runs (
	id              TEXT PRIMARY KEY,
	session_id      TEXT NOT NULL,
	topic           TEXT NOT NULL,
	status          TEXT NOT NULL,
	report_path     TEXT NOT NULL DEFAULT '',
	branch_count    INTEGER NOT NULL DEFAULT 0,
	succeeded_count INTEGER NOT NULL DEFAULT 0,
	error_message   TEXT NOT NULL DEFAULT '',
	started_at      TIMESTAMP NOT NULL,
	completed_at    TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_research_runs_started ON research_runs (started_at);
`

// Store is the SQL-backed run catalog.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Open connects to the catalog database and ensures the schema exists.
// driver must be "sqlite3" or "postgres".
func Open(driver, dsn string, logger *zap.Logger) (*Store, error) {
	if !util.ContainsString([]string{"sqlite3", "postgres"}, driver) {
		return nil, fmt.Errorf("unsupported catalog driver %q", driver)
	}
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}
	store := NewStore(db, logger)
	if err := store.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewStore wraps an existing connection without touching the schema.
func NewStore(db *sqlx.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Close releases the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) ensureSchema() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create catalog schema: %w", err)
	}
	return nil
}

// RecordRun inserts a new run in the running state.
func (s *Store) RecordRun(ctx context.Context, run *Run) error {
	if run.ID == "" || run.SessionID == "" {
		return fmt.Errorf("run ID and session ID are required")
	}
	if run.Status == "" {
		run.Status = StatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	query := s.db.Rebind(`
		INSERT INTO research_runs
			(id, session_id, topic, status, report_path, branch_count, succeeded_count, error_message, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.SessionID, run.Topic, run.Status, run.ReportPath,
		run.BranchCount, run.SucceededCount, run.ErrorMessage, run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	s.logger.Info("Research run recorded",
		zap.String("run_id", run.ID),
		zap.String("session_id", run.SessionID))
	return nil
}

// MarkCompleted finalizes a successful run.
func (s *Store) MarkCompleted(ctx context.Context, runID, reportPath string, succeeded int) error {
	query := s.db.Rebind(`
		UPDATE research_runs
		SET status = ?, report_path = ?, succeeded_count = ?, completed_at = ?
		WHERE id = ?`)
	return s.finalize(ctx, runID, query,
		StatusCompleted, reportPath, succeeded, time.Now().UTC(), runID)
}

// MarkFailed finalizes a failed run with its error message.
func (s *Store) MarkFailed(ctx context.Context, runID, errMsg string) error {
	query := s.db.Rebind(`
		UPDATE research_runs
		SET status = ?, error_message = ?, completed_at = ?
		WHERE id = ?`)
	return s.finalize(ctx, runID, query,
		StatusFailed, errMsg, time.Now().UTC(), runID)
}

func (s *Store) finalize(ctx context.Context, runID, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// GetRun returns a single run by ID.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	var run Run
	query := s.db.Rebind(`SELECT * FROM research_runs WHERE id = ?`)
	if err := s.db.GetContext(ctx, &run, query, runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	return &run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	runs := []Run{}
	query := s.db.Rebind(`SELECT * FROM research_runs ORDER BY started_at DESC LIMIT ?`)
	if err := s.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

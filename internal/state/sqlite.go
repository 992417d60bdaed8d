package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // sqlite driver
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite state store instance.
// If logger is nil, a discard logger is used.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// Open opens the journal at path and applies migrations.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writes.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if err := migrateDB(db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	s.path = path
	s.logger.Debug("opened state database", slog.String("path", path))
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// generateID creates a new UUID.
func generateID() string {
	return uuid.New().String()
}

// StartRun records run as running and assigns its ID and start time.
func (s *SQLiteStore) StartRun(ctx context.Context, run *Run) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	run.ID = generateID()
	run.Status = RunStatusRunning
	run.StartedAt = time.Now().UTC()

	s.logger.Debug("starting run", slog.String("id", run.ID), slog.String("kind", string(run.Kind)))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, status, source_release, filters, dry_run, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Kind), string(run.Status), run.Release, run.Filters, run.DryRun, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// FinishRun stores the final counters, status and samples of run. A run
// still marked running is completed.
func (s *SQLiteStore) FinishRun(ctx context.Context, run *Run) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	if run.Status == "" || run.Status == RunStatusRunning {
		run.Status = RunStatusCompleted
	}
	now := time.Now().UTC()
	run.CompletedAt = &now

	var errMsg *string
	if run.Error != "" {
		errMsg = &run.Error
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE runs
		 SET status = ?, total = ?, pulled = ?, succeeded = ?, failed = ?, error = ?, completed_at = ?
		 WHERE id = ?`,
		string(run.Status), run.Total, run.Pulled, run.Succeeded, run.Failed, errMsg, now, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run not found: %s", run.ID)
	}

	for i, msg := range run.Samples {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO run_samples (run_id, position, message) VALUES (?, ?, ?)`,
			run.ID, i, msg,
		); err != nil {
			return fmt.Errorf("failed to save run sample: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

const runColumns = `id, kind, status, source_release, filters, dry_run, total, pulled, succeeded, failed, error, started_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	var kind, status string
	var errMsg sql.NullString
	var completedAt sql.NullTime

	if err := row.Scan(&run.ID, &kind, &status, &run.Release, &run.Filters, &run.DryRun,
		&run.Total, &run.Pulled, &run.Succeeded, &run.Failed, &errMsg, &run.StartedAt, &completedAt); err != nil {
		return nil, err
	}

	run.Kind = RunKind(kind)
	run.Status = RunStatus(status)
	run.Error = errMsg.String
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	return run, nil
}

// GetRun retrieves a run and its samples by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	run.Samples, err = s.samples(ctx, id)
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (s *SQLiteStore) samples(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message FROM run_samples WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run samples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return nil, fmt.Errorf("failed to scan run sample: %w", err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

var _ Store = (*SQLiteStore)(nil)

package ledger

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"framecut/internal/filesystem"
	"framecut/internal/logging"
	"framecut/internal/metrics"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// Default timeout for ledger operations
const defaultTimeout = 5 * time.Second

// Result statuses as stored.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// ErrUnknownRun is returned when finishing a run ID that was never started.
var ErrUnknownRun = errors.New("unknown run")

// Record is one per-file outcome.
type Record struct {
	RunID       string        `json:"runId"`
	Input       string        `json:"input"`
	Output      string        `json:"output,omitempty"`
	ContentHash string        `json:"contentHash,omitempty"`
	Fingerprint string        `json:"fingerprint"`
	Status      string        `json:"status"`
	Kind        string        `json:"kind,omitempty"`
	Error       string        `json:"error,omitempty"`
	Frames      int           `json:"frames"`
	Duration    time.Duration `json:"duration"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// Summary holds the final counts of a run.
type Summary struct {
	Succeeded int
	Failed    int
	Skipped   int
	Canceled  bool
}

// Run is one batch invocation.
type Run struct {
	ID          string    `json:"id"`
	Mode        string    `json:"mode"`
	Fingerprint string    `json:"fingerprint"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt,omitempty"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	Canceled    bool      `json:"canceled"`
}

// Ledger records batch runs and their per-file results in SQLite.
type Ledger struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens (creating if needed) the ledger at path. The parent directory
// must exist.
func Open(ctx context.Context, path string) (*Ledger, error) {
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", path)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close ledger after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to ledger: %w", err)
	}

	// One writer at a time; the batch is sequential anyway.
	db.SetMaxOpenConns(1)

	l := &Ledger{db: db, path: path}
	if err := l.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close ledger after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize ledger schema: %w", err)
	}

	logging.Debug("Ledger opened at %s", path)
	return l, nil
}

func (l *Ledger) initialize(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { recordQuery("initialize_schema", start, err) }()

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER,
		succeeded INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		canceled INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		input TEXT NOT NULL,
		output TEXT,
		content_hash TEXT,
		fingerprint TEXT NOT NULL,
		status TEXT NOT NULL,
		kind TEXT,
		error TEXT,
		frames INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id);
	CREATE INDEX IF NOT EXISTS idx_results_input ON results(input, fingerprint, status);
	`

	_, err = l.db.ExecContext(ctx, schema)
	return err
}

// Path returns the database file path.
func (l *Ledger) Path() string {
	return l.path
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// StartRun inserts a new run and returns its ID.
func (l *Ledger) StartRun(ctx context.Context, mode, fingerprint string) (id string, err error) {
	start := time.Now()
	defer func() { recordQuery("start_run", start, err) }()

	l.mu.Lock()
	defer l.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	id = uuid.NewString()
	_, err = l.db.ExecContext(ctx,
		"INSERT INTO runs (id, mode, fingerprint, started_at) VALUES (?, ?, ?, ?)",
		id, mode, fingerprint, time.Now().UnixMilli(),
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// RecordResult stores a per-file outcome.
func (l *Ledger) RecordResult(ctx context.Context, rec Record) (err error) {
	start := time.Now()
	defer func() { recordQuery("record_result", start, err) }()

	l.mu.Lock()
	defer l.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO results (run_id, input, output, content_hash, fingerprint, status, kind, error, frames, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.RunID, rec.Input, rec.Output, rec.ContentHash, rec.Fingerprint,
		rec.Status, rec.Kind, rec.Error, rec.Frames, rec.Duration.Milliseconds(), created.UnixMilli(),
	)
	return err
}

// FinishRun stores the final counts of a run.
func (l *Ledger) FinishRun(ctx context.Context, runID string, s Summary) (err error) {
	start := time.Now()
	defer func() { recordQuery("finish_run", start, err) }()

	l.mu.Lock()
	defer l.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := l.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, succeeded = ?, failed = ?, skipped = ?, canceled = ?
		WHERE id = ?
	`, time.Now().UnixMilli(), s.Succeeded, s.Failed, s.Skipped, s.Canceled, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	return err
}

// LastSuccess returns the most recent succeeded result for input produced
// with fingerprint, or nil when there is none.
func (l *Ledger) LastSuccess(ctx context.Context, input, fingerprint string) (rec *Record, err error) {
	start := time.Now()
	defer func() { recordQuery("last_success", start, err) }()

	l.mu.Lock()
	defer l.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := l.db.QueryRowContext(ctx, `
		SELECT `+resultColumns+`
		FROM results
		WHERE input = ? AND fingerprint = ? AND status = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, input, fingerprint, StatusSucceeded)

	rec, err = scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// History returns the most recent runs, newest first.
func (l *Ledger) History(ctx context.Context, limit int) (runs []Run, err error) {
	start := time.Now()
	defer func() { recordQuery("history", start, err) }()

	if limit <= 0 {
		limit = 20
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, mode, fingerprint, started_at, finished_at, succeeded, failed, skipped, canceled
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logging.Warn("failed to close history rows: %v", closeErr)
		}
	}()

	for rows.Next() {
		var (
			r        Run
			started  int64
			finished sql.NullInt64
		)
		if err = rows.Scan(&r.ID, &r.Mode, &r.Fingerprint, &started, &finished,
			&r.Succeeded, &r.Failed, &r.Skipped, &r.Canceled); err != nil {
			return nil, err
		}
		r.StartedAt = time.UnixMilli(started)
		if finished.Valid {
			r.FinishedAt = time.UnixMilli(finished.Int64)
		}
		runs = append(runs, r)
	}
	err = rows.Err()
	return runs, err
}

// Results returns the per-file results of a run in insertion order.
func (l *Ledger) Results(ctx context.Context, runID string) (recs []Record, err error) {
	start := time.Now()
	defer func() { recordQuery("results", start, err) }()

	l.mu.Lock()
	defer l.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := l.db.QueryContext(ctx,
		"SELECT "+resultColumns+" FROM results WHERE run_id = ? ORDER BY id", runID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logging.Warn("failed to close result rows: %v", closeErr)
		}
	}()

	for rows.Next() {
		var rec *Record
		if rec, err = scanRecord(rows); err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	err = rows.Err()
	return recs, err
}

const resultColumns = `run_id, input, COALESCE(output, ''), COALESCE(content_hash, ''), fingerprint,
	status, COALESCE(kind, ''), COALESCE(error, ''), frames, duration_ms, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*Record, error) {
	var (
		rec        Record
		durationMs int64
		created    int64
	)
	if err := s.Scan(&rec.RunID, &rec.Input, &rec.Output, &rec.ContentHash, &rec.Fingerprint,
		&rec.Status, &rec.Kind, &rec.Error, &rec.Frames, &durationMs, &created); err != nil {
		return nil, err
	}
	rec.Duration = time.Duration(durationMs) * time.Millisecond
	rec.CreatedAt = time.UnixMilli(created)
	return &rec, nil
}

// HashFile returns the hex BLAKE2b-256 digest of a file's content.
func HashFile(path string) (string, error) {
	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return "", err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			logging.Warn("failed to close %s: %v", path, closeErr)
		}
	}()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// recordQuery records metrics for a ledger query
func recordQuery(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.LedgerQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.LedgerQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// ════════════════════════════════════════════════════════════════════════════════════════════════
// Soak Run Journal
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Component: sqlite ledger of soak runs and reader events
//
// Description:
//   Records each soak run (configuration, final report, verdict) and every
//   event the collector drains from the readers (overrun drops, corrupt
//   blocks, resyncs). Events are batched into one transaction and committed
//   every CommitBatchSize rows or when the run finishes.
//
// Concurrency:
//   - Owned by one goroutine (the soak collector, then main). Not safe for
//     concurrent use.
//   - One connection: ":memory:" databases exist per connection.
// ════════════════════════════════════════════════════════════════════════════════════════════════

package journal

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"audioring/debug"

	_ "github.com/mattn/go-sqlite3"
)

// CommitBatchSize is the number of events per transaction.
const CommitBatchSize = 4096

// Event is one reader event.
type Event struct {
	Reader     int
	Kind       string
	SampleTime int64
	Frames     int64
	At         time.Time
}

// Run is one recorded soak run.
type Run struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time // zero while the run is open
	Config     string
	Report     string
	Passed     bool
	Events     int64
}

// Journal is an open ledger.
type Journal struct {
	db *sql.DB

	// Database transaction for batching
	currentTx     *sql.Tx
	txEventStmt   *sql.Stmt
	eventsInBatch int

	// Prepared statements
	insertRunStmt   *sql.Stmt
	insertEventStmt *sql.Stmt
	finishRunStmt   *sql.Stmt
}

// Open opens (creating if needed) the journal at path. Use ":memory:" for a
// throwaway ledger.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	j := &Journal{db: db}
	if err := configureDatabase(db, path == ":memory:"); err != nil {
		j.cleanup()
		return nil, fmt.Errorf("failed to configure journal: %w", err)
	}
	if err := j.initializeSchema(); err != nil {
		j.cleanup()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := j.prepareStatements(); err != nil {
		j.cleanup()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}
	return j, nil
}

func configureDatabase(db *sql.DB, memory bool) error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL", // WAL makes NORMAL crash-safe
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 5000",
	}
	if !memory {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}
	return nil
}

func (j *Journal) initializeSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS soak_runs (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at  INTEGER NOT NULL,
		finished_at INTEGER NOT NULL DEFAULT 0,
		config      TEXT NOT NULL,
		report      TEXT NOT NULL DEFAULT '',
		passed      INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS reader_events (
		id          INTEGER PRIMARY KEY,
		run_id      INTEGER NOT NULL REFERENCES soak_runs(id),
		reader      INTEGER NOT NULL,
		kind        TEXT NOT NULL,
		sample_time INTEGER NOT NULL,
		frames      INTEGER NOT NULL,
		recorded_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS reader_events_run ON reader_events(run_id, reader);
	`
	_, err := j.db.Exec(schema)
	return err
}

func (j *Journal) prepareStatements() error {
	var err error
	j.insertRunStmt, err = j.db.Prepare(
		`INSERT INTO soak_runs (started_at, config) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	j.insertEventStmt, err = j.db.Prepare(
		`INSERT INTO reader_events (run_id, reader, kind, sample_time, frames, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	j.finishRunStmt, err = j.db.Prepare(
		`UPDATE soak_runs SET finished_at = ?, report = ?, passed = ? WHERE id = ?`)
	return err
}

// ============================================================================
// WRITES
// ============================================================================

// BeginRun opens a run record and returns its id.
func (j *Journal) BeginRun(startedAt time.Time, config []byte) (int64, error) {
	if err := j.Flush(); err != nil {
		return 0, err
	}
	res, err := j.insertRunStmt.Exec(startedAt.UnixNano(), string(config))
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	return res.LastInsertId()
}

// RecordEvent appends ev to run. The row becomes durable at the next batch
// commit, Flush or FinishRun.
func (j *Journal) RecordEvent(run int64, ev Event) error {
	if j.currentTx == nil {
		tx, err := j.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin batch: %w", err)
		}
		j.currentTx = tx
		j.txEventStmt = tx.Stmt(j.insertEventStmt)
	}
	if _, err := j.txEventStmt.Exec(run, ev.Reader, ev.Kind, ev.SampleTime, ev.Frames, ev.At.UnixNano()); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	if j.eventsInBatch++; j.eventsInBatch >= CommitBatchSize {
		return j.Flush()
	}
	return nil
}

// Flush commits the pending batch.
func (j *Journal) Flush() error {
	if j.currentTx == nil {
		return nil
	}
	tx := j.currentTx
	j.currentTx, j.txEventStmt, j.eventsInBatch = nil, nil, 0
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// FinishRun flushes pending events and stores the report and verdict.
func (j *Journal) FinishRun(run int64, finishedAt time.Time, report []byte, passed bool) error {
	if err := j.Flush(); err != nil {
		return err
	}
	res, err := j.finishRunStmt.Exec(finishedAt.UnixNano(), string(report), passed, run)
	if err != nil {
		return fmt.Errorf("failed to finish run %d: %w", run, err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return fmt.Errorf("failed to finish run %d: no such run", run)
	}
	return nil
}

// ============================================================================
// READS
// ============================================================================

// Runs lists all runs, newest first, with their event counts.
func (j *Journal) Runs() ([]Run, error) {
	if err := j.Flush(); err != nil {
		return nil, err
	}
	rows, err := j.db.Query(`
		SELECT r.id, r.started_at, r.finished_at, r.config, r.report, r.passed,
		       (SELECT COUNT(*) FROM reader_events e WHERE e.run_id = r.id)
		FROM soak_runs r
		ORDER BY r.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished int64
		if err := rows.Scan(&r.ID, &started, &finished, &r.Config, &r.Report, &r.Passed, &r.Events); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = time.Unix(0, started)
		if finished != 0 {
			r.FinishedAt = time.Unix(0, finished)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Events returns the events of run in insertion order, optionally limited
// to the given kinds.
func (j *Journal) Events(run int64, kinds ...string) ([]Event, error) {
	if err := j.Flush(); err != nil {
		return nil, err
	}
	query := `SELECT reader, kind, sample_time, frames, recorded_at FROM reader_events WHERE run_id = ?`
	args := []any{run}
	if len(kinds) > 0 {
		query += ` AND kind IN (?` + strings.Repeat(`, ?`, len(kinds)-1) + `)`
		for _, k := range kinds {
			args = append(args, k)
		}
	}
	query += ` ORDER BY id`

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var at int64
		if err := rows.Scan(&ev.Reader, &ev.Kind, &ev.SampleTime, &ev.Frames, &at); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.At = time.Unix(0, at)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// Close commits pending events and closes the database.
func (j *Journal) Close() error {
	err := j.Flush()
	j.cleanup()
	return err
}

func (j *Journal) cleanup() {
	if j.currentTx != nil {
		if err := j.currentTx.Rollback(); err != nil {
			debug.DropError("JOURNAL_ROLLBACK", err)
		}
		j.currentTx, j.txEventStmt = nil, nil
	}
	for _, stmt := range []*sql.Stmt{j.insertRunStmt, j.insertEventStmt, j.finishRunStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	if j.db != nil {
		if err := j.db.Close(); err != nil {
			debug.DropError("JOURNAL_CLOSE", err)
		}
		j.db = nil
	}
}

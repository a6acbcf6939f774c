// Package history keeps a SQLite ledger of runs and per-episode outcomes for
// `whisperer status`. Completion is never read from here; the published
// files remain the source of truth.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Status values for runs and episode results.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusPartial   = "partial"
)

// Run is one invocation of the podcast driver.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Podcasts   []string
	Status     string
	Processed  int
	Failed     int
	Notified   int
}

// EpisodeResult is the outcome of processing one episode.
type EpisodeResult struct {
	RunID        string
	Podcast      string
	Episode      string
	Title        string
	Status       string
	ErrorKind    string
	ErrorMessage string
	Duration     time.Duration
	RecordedAt   time.Time
}

// Totals are the counters written when a run finishes.
type Totals struct {
	Processed int
	Failed    int
	Notified  int
}

// Store is the ledger handle.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the ledger at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}
	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// StartRun records a new run in the running state.
func (s *Store) StartRun(ctx context.Context, id string, podcasts []string, started time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, podcasts, status) VALUES (?, ?, ?, ?)`,
		id, started.UTC().Format(time.RFC3339Nano), strings.Join(podcasts, ","), StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordEpisode appends an episode outcome to a run.
func (s *Store) RecordEpisode(ctx context.Context, r EpisodeResult) error {
	if r.RecordedAt.IsZero() {
		r.RecordedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO episode_results (
            run_id, podcast, episode, title, status, error_kind, error_message, duration_ms, recorded_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID,
		r.Podcast,
		r.Episode,
		nullableString(r.Title),
		r.Status,
		nullableString(r.ErrorKind),
		nullableString(r.ErrorMessage),
		r.Duration.Milliseconds(),
		r.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert episode result: %w", err)
	}
	return nil
}

// FinishRun closes a run with its final status and counters.
func (s *Store) FinishRun(ctx context.Context, id, status string, totals Totals, finished time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, processed = ?, failed = ?, notified = ?
         WHERE id = ?`,
		finished.UTC().Format(time.RFC3339Nano), status, totals.Processed, totals.Failed, totals.Notified, id,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update run: run %s not found", id)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, podcasts, status, processed, failed, notified
         FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run         Run
			startedRaw  string
			finishedRaw sql.NullString
			podcasts    string
		)
		if err := rows.Scan(&run.ID, &startedRaw, &finishedRaw, &podcasts, &run.Status,
			&run.Processed, &run.Failed, &run.Notified); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = parseTime(startedRaw)
		run.FinishedAt = parseTime(finishedRaw.String)
		if podcasts != "" {
			run.Podcasts = strings.Split(podcasts, ",")
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// EpisodeResults returns the outcomes recorded for a run, in insertion order.
func (s *Store) EpisodeResults(ctx context.Context, runID string) ([]EpisodeResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, podcast, episode, title, status, error_kind, error_message, duration_ms, recorded_at
         FROM episode_results WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query episode results: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}

// LastResult returns the most recent outcome for an episode, or nil.
func (s *Store) LastResult(ctx context.Context, podcastName, episode string) (*EpisodeResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, podcast, episode, title, status, error_kind, error_message, duration_ms, recorded_at
         FROM episode_results WHERE podcast = ? AND episode = ? ORDER BY id DESC LIMIT 1`, podcastName, episode)
	if err != nil {
		return nil, fmt.Errorf("query episode result: %w", err)
	}
	defer rows.Close()
	results, err := scanResults(rows)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return &results[0], nil
}

func scanResults(rows *sql.Rows) ([]EpisodeResult, error) {
	var out []EpisodeResult
	for rows.Next() {
		var (
			r           EpisodeResult
			title       sql.NullString
			kind        sql.NullString
			message     sql.NullString
			durationMS  int64
			recordedRaw string
		)
		if err := rows.Scan(&r.RunID, &r.Podcast, &r.Episode, &title, &r.Status, &kind, &message,
			&durationMS, &recordedRaw); err != nil {
			return nil, fmt.Errorf("scan episode result: %w", err)
		}
		r.Title = title.String
		r.ErrorKind = kind.String
		r.ErrorMessage = message.String
		r.Duration = time.Duration(durationMS) * time.Millisecond
		r.RecordedAt = parseTime(recordedRaw)
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

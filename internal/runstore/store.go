package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"uplink/internal/config"
	"uplink/internal/upload"
)

// ErrNoRun indicates no run matched the lookup.
var ErrNoRun = errors.New("runstore: no matching run")

// Store persists upload runs and their per-tracker outcomes in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the run database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "uplink.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Run is one orchestrator invocation for one release.
type Run struct {
	ID           int64
	ReleaseTitle string
	ReleaseDir   string
	SnapshotPath string
	Status       string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// TrackerRecord is the persisted outcome of one tracker in one run.
type TrackerRecord struct {
	RunID      int64
	Tracker    string
	State      string
	Reason     string
	TorrentID  string
	DetailsURL string
	Error      string
	Duration   time.Duration
	RecordedAt time.Time
}

// StartRun inserts a new running row and returns its id.
func (s *Store) StartRun(ctx context.Context, releaseTitle, releaseDir, snapshotPath string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (release_title, release_dir, snapshot_path, status, started_at)
         VALUES (?, ?, ?, 'running', ?)`,
		releaseTitle, releaseDir, snapshotPath, now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// FinishRun marks a run terminal with the given status.
func (s *Store) FinishRun(ctx context.Context, runID int64, status string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ? WHERE id = ?`,
		status, now, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run rows: %w", err)
	}
	if affected == 0 {
		return ErrNoRun
	}
	return nil
}

// RecordResult upserts one tracker outcome. Re-recording on resume replaces
// the previous row, so the table always reflects the latest terminal state.
func (s *Store) RecordResult(ctx context.Context, runID int64, result upload.Result) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	errText := ""
	if result.Err != nil {
		errText = result.Err.Error()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_trackers (
            run_id, tracker, state, reason, torrent_id, details_url, error, duration_ms, recorded_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (run_id, tracker) DO UPDATE SET
            state = excluded.state,
            reason = excluded.reason,
            torrent_id = excluded.torrent_id,
            details_url = excluded.details_url,
            error = excluded.error,
            duration_ms = excluded.duration_ms,
            recorded_at = excluded.recorded_at`,
		runID, result.Tracker, string(result.State), result.Reason,
		result.TorrentID, result.DetailsURL, errText,
		result.Duration.Milliseconds(), now,
	)
	if err != nil {
		return fmt.Errorf("record tracker result: %w", err)
	}
	return nil
}

// GetRun loads one run by id.
func (s *Store) GetRun(ctx context.Context, runID int64) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, release_title, release_dir, snapshot_path, status, started_at, finished_at
         FROM runs WHERE id = ?`, runID)
	return scanRun(row)
}

// LatestRunForRelease returns the most recent run for a release title, used
// by resume to find the snapshot to pick up.
func (s *Store) LatestRunForRelease(ctx context.Context, releaseTitle string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, release_title, release_dir, snapshot_path, status, started_at, finished_at
         FROM runs WHERE release_title = ? ORDER BY id DESC LIMIT 1`, releaseTitle)
	return scanRun(row)
}

// History lists the most recent runs, newest first.
func (s *Store) History(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, release_title, release_dir, snapshot_path, status, started_at, finished_at
         FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// TrackerResults lists the recorded outcomes for one run in tracker order.
func (s *Store) TrackerResults(ctx context.Context, runID int64) ([]TrackerRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, tracker, state, reason, torrent_id, details_url, error, duration_ms, recorded_at
         FROM run_trackers WHERE run_id = ? ORDER BY tracker`, runID)
	if err != nil {
		return nil, fmt.Errorf("query tracker results: %w", err)
	}
	defer rows.Close()

	var records []TrackerRecord
	for rows.Next() {
		var rec TrackerRecord
		var reason, torrentID, detailsURL, errText sql.NullString
		var durationMS int64
		var recordedAt string
		if err := rows.Scan(&rec.RunID, &rec.Tracker, &rec.State, &reason, &torrentID,
			&detailsURL, &errText, &durationMS, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan tracker result: %w", err)
		}
		rec.Reason = reason.String
		rec.TorrentID = torrentID.String
		rec.DetailsURL = detailsURL.String
		rec.Error = errText.String
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		rec.RecordedAt = parseTime(recordedAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var startedAt string
	var finishedAt sql.NullString
	err := row.Scan(&run.ID, &run.ReleaseTitle, &run.ReleaseDir, &run.SnapshotPath,
		&run.Status, &startedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRun
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.StartedAt = parseTime(startedAt)
	if finishedAt.Valid {
		run.FinishedAt = parseTime(finishedAt.String)
	}
	return &run, nil
}

func parseTime(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

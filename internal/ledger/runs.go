package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when no run matches an ID or prefix.
var ErrRunNotFound = errors.New("run not found")

// ErrAmbiguousRunID is returned when a prefix matches more than one run.
var ErrAmbiguousRunID = errors.New("ambiguous run id")

const runColumns = `r.id, r.output_path, r.threshold, r.file_count, r.status, r.started_at, r.finished_at, r.error_message,
    (SELECT COUNT(1) FROM run_files f WHERE f.run_id = r.id),
    (SELECT COUNT(1) FROM run_files f WHERE f.run_id = r.id AND f.status = 'detected'),
    (SELECT COUNT(1) FROM run_files f WHERE f.run_id = r.id AND f.status != 'detected')`

const fileColumns = "position, path, frame_rate, segment_count, frame_count, speech_seconds, role, device, rounds, attempts, status, error_message, recorded_at"

// BeginRun inserts a running run. A missing ID is filled with a fresh UUID.
func (s *Store) BeginRun(ctx context.Context, params RunParams) (Run, error) {
	id := strings.TrimSpace(params.ID)
	if id == "" {
		id = uuid.NewString()
	}
	run := Run{
		ID:        id,
		Output:    params.Output,
		Threshold: params.Threshold,
		FileCount: params.Files,
		Status:    RunRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO runs (id, output_path, threshold, file_count, status, started_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Output,
		nullableFloat(run.Threshold),
		run.FileCount,
		run.Status,
		run.StartedAt.Format(timestampLayout),
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// RecordFile stores one file's outcome for runID.
func (s *Store) RecordFile(ctx context.Context, runID string, rec FileRecord) error {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO run_files (
            run_id, position, path, frame_rate, segment_count, frame_count, speech_seconds,
            role, device, rounds, attempts, status, error_message, recorded_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		rec.Position,
		rec.Path,
		rec.FrameRate,
		rec.SegmentCount,
		rec.FrameCount,
		rec.SpeechSeconds,
		rec.Role,
		nullableString(rec.Device),
		rec.Rounds,
		rec.Attempts,
		rec.Status,
		nullableString(rec.Error),
		rec.RecordedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("record file %s: %w", rec.Path, err)
	}
	return nil
}

// FinishRun sets the final status of runID. cause may be nil.
func (s *Store) FinishRun(ctx context.Context, runID string, status RunStatus, cause error) error {
	var message string
	if cause != nil {
		message = cause.Error()
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, error_message = ? WHERE id = ?`,
		status,
		time.Now().UTC().Format(timestampLayout),
		nullableString(message),
		runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// GetRun returns the run whose ID equals or uniquely starts with idOrPrefix.
func (s *Store) GetRun(ctx context.Context, idOrPrefix string) (Run, error) {
	idOrPrefix = strings.TrimSpace(idOrPrefix)
	if idOrPrefix == "" {
		return Run{}, ErrRunNotFound
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs r WHERE r.id = ? OR r.id LIKE ? ORDER BY r.id = ? DESC LIMIT 2`,
		idOrPrefix, stripLikeWildcards(idOrPrefix)+"%", idOrPrefix,
	)
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	defer rows.Close()

	runs, err := scanRuns(rows)
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	switch {
	case len(runs) == 0:
		return Run{}, fmt.Errorf("%s: %w", idOrPrefix, ErrRunNotFound)
	case runs[0].ID == idOrPrefix || len(runs) == 1:
		return runs[0], nil
	default:
		return Run{}, fmt.Errorf("%s: %w", idOrPrefix, ErrAmbiguousRunID)
	}
}

// ListRuns returns the newest runs first. A non-positive limit returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs r ORDER BY r.started_at DESC, r.id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs, err := scanRuns(rows)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// ListFiles returns the files recorded for runID in processing order.
func (s *Store) ListFiles(ctx context.Context, runID string) ([]FileRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM run_files WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var records []FileRecord
	for rows.Next() {
		rec, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return records, nil
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

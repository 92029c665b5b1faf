package ledger

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

type scanner interface{ Scan(dest ...any) error }

func scanRun(row scanner) (Run, error) {
	var (
		run         Run
		threshold   sql.NullFloat64
		status      string
		startedRaw  string
		finishedRaw sql.NullString
		errorMsg    sql.NullString
	)
	if err := row.Scan(
		&run.ID,
		&run.Output,
		&threshold,
		&run.FileCount,
		&status,
		&startedRaw,
		&finishedRaw,
		&errorMsg,
		&run.Recorded,
		&run.Detected,
		&run.Failed,
	); err != nil {
		return Run{}, err
	}
	run.Threshold = threshold.Float64
	run.Status = RunStatus(status)
	run.Error = errorMsg.String
	if started, err := parseTimeString(startedRaw); err == nil {
		run.StartedAt = started
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			run.FinishedAt = &finished
		}
	}
	return run, nil
}

func scanFile(row scanner) (FileRecord, error) {
	var (
		rec         FileRecord
		device      sql.NullString
		status      string
		errorMsg    sql.NullString
		recordedRaw string
	)
	if err := row.Scan(
		&rec.Position,
		&rec.Path,
		&rec.FrameRate,
		&rec.SegmentCount,
		&rec.FrameCount,
		&rec.SpeechSeconds,
		&rec.Role,
		&device,
		&rec.Rounds,
		&rec.Attempts,
		&status,
		&errorMsg,
		&recordedRaw,
	); err != nil {
		return FileRecord{}, err
	}
	rec.Device = device.String
	rec.Status = FileStatus(status)
	rec.Error = errorMsg.String
	if recorded, err := parseTimeString(recordedRaw); err == nil {
		rec.RecordedAt = recorded
	}
	return rec, nil
}

// timestampLayout is fixed-width so stored timestamps sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// nullableFloat stores zero as NULL; a zero threshold means the model default.
func nullableFloat(value float64) any {
	if value == 0 {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func stripLikeWildcards(value string) string {
	return strings.NewReplacer("%", "", "_", "").Replace(value)
}

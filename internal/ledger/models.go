package ledger

import "time"

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunRunning     RunStatus = "running"
	RunCompleted   RunStatus = "completed"
	RunFailed      RunStatus = "failed"
	RunInterrupted RunStatus = "interrupted"
)

// FileStatus is the per-file outcome.
type FileStatus string

const (
	FileDetected      FileStatus = "detected"
	FileExhausted     FileStatus = "exhausted"
	FileExtractFailed FileStatus = "extract_failed"
)

// RunParams describes a run at start.
type RunParams struct {
	// ID is generated when empty.
	ID        string
	Output    string
	Threshold float64
	Files     int
}

// Run is one row of the runs table with aggregated file counts.
type Run struct {
	ID         string
	Output     string
	Threshold  float64
	FileCount  int
	Status     RunStatus
	StartedAt  time.Time
	FinishedAt *time.Time
	Error      string

	// Recorded, Detected and Failed are derived from run_files.
	Recorded int
	Detected int
	Failed   int
}

// Duration returns the wall time of a finished run, or zero.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// FileRecord is one processed file.
type FileRecord struct {
	Position      int
	Path          string
	FrameRate     float64
	SegmentCount  int
	FrameCount    int64
	SpeechSeconds float64
	// Role is accelerated, fallback or none.
	Role       string
	Device     string
	Rounds     int
	Attempts   int
	Status     FileStatus
	Error      string
	RecordedAt time.Time
}

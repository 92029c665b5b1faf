package timeline

import (
	"strconv"
	"strings"

	"speechline/internal/speech"
)

// Defaults applied when the analysis could not determine a setting.
const (
	DefaultSequenceName = "Speech"
	DefaultFrameRate    = 30.0
	DefaultWidth        = 1920
	DefaultHeight       = 1080
	DefaultSampleRate   = 48000
)

// Settings are the sequence-level properties derived from the candidate files.
type Settings struct {
	SequenceName string
	FrameRate    float64
	Width        int
	Height       int
	SampleRate   int
}

func (s Settings) normalize() Settings {
	s.SequenceName = strings.TrimSpace(s.SequenceName)
	if s.SequenceName == "" {
		s.SequenceName = DefaultSequenceName
	}
	if !(s.FrameRate > 0) {
		s.FrameRate = DefaultFrameRate
	}
	if s.Width <= 0 || s.Height <= 0 {
		s.Width, s.Height = DefaultWidth, DefaultHeight
	}
	if s.SampleRate <= 0 {
		s.SampleRate = DefaultSampleRate
	}
	return s
}

// Entry is one file's contribution to the timeline.
type Entry struct {
	Path      string
	FileID    string
	FrameRate float64
	Frames    speech.Frames
	// Failed marks a file whose detection was exhausted or whose audio could
	// not be extracted. Frames is empty in that case.
	Failed bool
}

// Timeline is the per-run aggregate of speech intervals.
type Timeline struct {
	settings Settings
	ids      map[string]string
	nextID   int
	entries  []Entry
}

// New creates an empty timeline. File IDs are assigned in candidate order so
// the exported document stays stable as files are appended.
func New(settings Settings, candidates []string) *Timeline {
	t := &Timeline{
		settings: settings.normalize(),
		ids:      make(map[string]string, len(candidates)),
	}
	for _, path := range candidates {
		t.fileID(path)
	}
	return t
}

func (t *Timeline) fileID(path string) string {
	if id, ok := t.ids[path]; ok {
		return id
	}
	t.nextID++
	id := "file-" + strconv.Itoa(t.nextID)
	t.ids[path] = id
	return id
}

// AddFile appends one file's frame ranges. The slice is copied.
func (t *Timeline) AddFile(path string, fps float64, frames speech.Frames, failed bool) {
	copied := make(speech.Frames, len(frames))
	copy(copied, frames)
	if failed {
		copied = speech.Frames{}
	}
	t.entries = append(t.entries, Entry{
		Path:      path,
		FileID:    t.fileID(path),
		FrameRate: fps,
		Frames:    copied,
		Failed:    failed,
	})
}

// Settings returns the normalized sequence settings.
func (t *Timeline) Settings() Settings {
	return t.settings
}

// Len returns the number of appended files.
func (t *Timeline) Len() int {
	return len(t.entries)
}

// Entries returns a copy of the appended entries.
func (t *Timeline) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// ClipCount returns the number of speech clips across all entries.
func (t *Timeline) ClipCount() int {
	total := 0
	for _, entry := range t.entries {
		total += len(entry.Frames)
	}
	return total
}

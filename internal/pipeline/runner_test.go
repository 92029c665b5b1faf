package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"speechline/internal/ledger"
	"speechline/internal/media/ffprobe"
	"speechline/internal/speech"
	"speechline/internal/timeline"
)

type fakeProber struct {
	fps  map[string]float64
	fail map[string]error
}

func (f fakeProber) Probe(_ context.Context, path string) (ffprobe.Properties, error) {
	if err := f.fail[path]; err != nil {
		return ffprobe.Properties{}, err
	}
	return ffprobe.Properties{Path: path, Video: ffprobe.VideoProperties{FrameRate: f.fps[path]}}, nil
}

type fakeAudio struct {
	fail      map[string]error
	scratches []string
}

func (f *fakeAudio) Prepare(_ context.Context, path, scratchDir string) (string, error) {
	f.scratches = append(f.scratches, scratchDir)
	if err := f.fail[path]; err != nil {
		return "", err
	}
	wav := filepath.Join(scratchDir, "audio.wav")
	return wav, os.WriteFile(wav, []byte("RIFF"), 0o644)
}

type fakeDispatcher struct {
	outcomes map[string]speech.Outcome
	byAudio  []string
	next     []string
}

// Detect maps the n-th call to the n-th queued source path.
func (f *fakeDispatcher) Detect(_ context.Context, audioPath string) speech.Outcome {
	f.byAudio = append(f.byAudio, audioPath)
	path := f.next[0]
	f.next = f.next[1:]
	return f.outcomes[path]
}

type fakeRecorder struct {
	records []ledger.FileRecord
	err     error
}

func (f *fakeRecorder) RecordFile(_ context.Context, _ string, rec ledger.FileRecord) error {
	f.records = append(f.records, rec)
	return f.err
}

type memoryWriter struct {
	writes [][]byte
	failAt int
}

func (m *memoryWriter) Write(data []byte) error {
	if m.failAt > 0 && len(m.writes)+1 == m.failAt {
		return errors.New("disk full")
	}
	m.writes = append(m.writes, append([]byte(nil), data...))
	return nil
}

func detected(device string, role speech.Role, segments ...speech.Segment) speech.Outcome {
	return speech.Outcome{Result: speech.Result{Segments: segments}, Role: role, Device: device, Rounds: 1,
		Attempts: []speech.Attempt{{Round: 1, Role: role, Device: device}}}
}

func exhausted() speech.Outcome {
	errs := []error{errors.New("cuda failed"), errors.New("cpu failed")}
	return speech.Outcome{Result: speech.Result{Segments: []speech.Segment{}}, Role: speech.RoleNone,
		Rounds: speech.MaxRounds, Exhausted: true, Errors: errs}
}

func TestRunWritesCumulativeTimelineAfterEachFile(t *testing.T) {
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.mp4"), filepath.Join(dir, "b.mp4")
	outPath := filepath.Join(dir, "out.xml")
	out, err := OpenOutput(outPath)
	if err != nil {
		t.Fatalf("OpenOutput: %v", err)
	}
	defer out.Close()

	outcomes := map[string]speech.Outcome{
		a: detected("cuda", speech.RoleAccelerated, speech.Segment{Start: 0.1, End: 1.0}),
		b: detected("cpu", speech.RoleFallback, speech.Segment{Start: 1, End: 2}),
	}
	recorder := &fakeRecorder{}
	var started []int
	tl := timeline.New(timeline.Settings{FrameRate: 30}, []string{a, b})

	summary, err := Run(context.Background(), []string{a, b}, Options{
		Prober:      fakeProber{fps: map[string]float64{a: 30, b: 25}},
		Audio:       &fakeAudio{},
		Dispatcher:  &fakeDispatcher{outcomes: outcomes, next: []string{a, b}},
		Timeline:    tl,
		Output:      out,
		ScratchRoot: dir,
		Recorder:    recorder,
		RunID:       "run-1",
		OnFileStart: func(index, _ int, _ string) { started = append(started, index) },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Detected != 2 || summary.Failed != 0 || summary.Clips != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Files[0].Frames[0] != (speech.FrameRange{Start: 3, End: 30}) {
		t.Fatalf("unexpected frames for a: %v", summary.Files[0].Frames)
	}
	if summary.Files[1].Frames[0] != (speech.FrameRange{Start: 25, End: 50}) {
		t.Fatalf("unexpected frames for b: %v", summary.Files[1].Frames)
	}
	if out.Writes() != 2 {
		t.Fatalf("expected one rewrite per file, got %d", out.Writes())
	}

	want, err := tl.Export()
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatal("output must equal the export of the whole timeline")
	}

	if len(started) != 2 || started[1] != 2 {
		t.Fatalf("unexpected file start callbacks: %v", started)
	}
	if len(recorder.records) != 2 || recorder.records[1].Role != "fallback" || recorder.records[1].Device != "cpu" {
		t.Fatalf("unexpected ledger records: %+v", recorder.records)
	}
}

func TestRunRewritesOutputAfterEachFile(t *testing.T) {
	dir := t.TempDir()
	a, b := filepath.Join(dir, "take-a.mp4"), filepath.Join(dir, "take-b.mp4")
	candidates := []string{a, b}
	settings := timeline.Settings{FrameRate: 30}
	writer := &memoryWriter{}

	_, err := Run(context.Background(), candidates, Options{
		Prober: fakeProber{fps: map[string]float64{a: 30, b: 30}},
		Audio:  &fakeAudio{},
		Dispatcher: &fakeDispatcher{next: candidates, outcomes: map[string]speech.Outcome{
			a: detected("cuda", speech.RoleAccelerated, speech.Segment{Start: 0.1, End: 1.0}),
			b: detected("cuda", speech.RoleAccelerated, speech.Segment{Start: 2, End: 3}),
		}},
		Timeline:    timeline.New(settings, candidates),
		Output:      writer,
		ScratchRoot: dir,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(writer.writes) != 2 {
		t.Fatalf("expected one write per file, got %d", len(writer.writes))
	}

	reference := timeline.New(settings, candidates)
	reference.AddFile(a, 30, speech.Frames{{Start: 3, End: 30}}, false)
	afterA, err := reference.Export()
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !bytes.Equal(writer.writes[0], afterA) {
		t.Fatalf("first write must equal a timeline holding only the first file:\n%s", writer.writes[0])
	}
	if bytes.Contains(writer.writes[0], []byte("take-b.mp4")) {
		t.Fatal("first write must not mention the second file")
	}

	reference.AddFile(b, 30, speech.Frames{{Start: 60, End: 90}}, false)
	afterB, err := reference.Export()
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !bytes.Equal(writer.writes[1], afterB) {
		t.Fatalf("second write must equal the two-file timeline:\n%s", writer.writes[1])
	}
	first, second := bytes.Index(writer.writes[1], []byte("take-a.mp4")), bytes.Index(writer.writes[1], []byte("take-b.mp4"))
	if first < 0 || second < 0 || first > second {
		t.Fatalf("expected the first file's clip before the second's (at %d and %d)", first, second)
	}
	if !bytes.Contains(writer.writes[1], []byte("<in>3</in>")) || !bytes.Contains(writer.writes[1], []byte("<in>60</in>")) {
		t.Fatalf("expected both files' source ranges in the second write:\n%s", writer.writes[1])
	}
}

func TestRunSingleFileOutputMatchesSingleExport(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.mp4")
	writer := &memoryWriter{}
	tl := timeline.New(timeline.Settings{FrameRate: 30}, []string{a})

	_, err := Run(context.Background(), []string{a}, Options{
		Prober:      fakeProber{fps: map[string]float64{a: 30}},
		Audio:       &fakeAudio{},
		Dispatcher:  &fakeDispatcher{outcomes: map[string]speech.Outcome{a: detected("cuda", speech.RoleAccelerated, speech.Segment{Start: 1, End: 2})}, next: []string{a}},
		Timeline:    tl,
		Output:      writer,
		ScratchRoot: dir,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	reference := timeline.New(timeline.Settings{FrameRate: 30}, []string{a})
	reference.AddFile(a, 30, speech.Frames{{Start: 30, End: 60}}, false)
	want, _ := reference.Export()
	if len(writer.writes) != 1 || !bytes.Equal(writer.writes[0], want) {
		t.Fatal("single-file output must equal a single-file timeline export")
	}
}

func TestRunExhaustedFileRemovesScratchAndContinues(t *testing.T) {
	dir := t.TempDir()
	scratchRoot := filepath.Join(dir, "scratch")
	if err := os.Mkdir(scratchRoot, 0o755); err != nil {
		t.Fatal(err)
	}
	a, b := filepath.Join(dir, "a.mp4"), filepath.Join(dir, "b.mp4")
	audio := &fakeAudio{}
	recorder := &fakeRecorder{err: errors.New("ledger is read-only")}
	writer := &memoryWriter{}

	summary, err := Run(context.Background(), []string{a, b}, Options{
		Prober: fakeProber{fps: map[string]float64{a: 30, b: 30}},
		Audio:  audio,
		Dispatcher: &fakeDispatcher{outcomes: map[string]speech.Outcome{
			a: exhausted(),
			b: detected("cuda", speech.RoleAccelerated, speech.Segment{Start: 0, End: 1}),
		}, next: []string{a, b}},
		Timeline:    timeline.New(timeline.Settings{}, nil),
		Output:      writer,
		ScratchRoot: scratchRoot,
		Recorder:    recorder,
		RunID:       "run-1",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Failed != 1 || summary.Detected != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	first := summary.Files[0]
	if first.Status != ledger.FileExhausted || len(first.Frames) != 0 || first.Err == nil {
		t.Fatalf("unexpected exhausted result: %+v", first)
	}
	for _, scratch := range audio.scratches {
		if _, err := os.Stat(scratch); !os.IsNotExist(err) {
			t.Fatalf("scratch directory %s not removed (err=%v)", scratch, err)
		}
	}
	entries, _ := os.ReadDir(scratchRoot)
	if len(entries) != 0 {
		t.Fatalf("scratch root not empty: %v", entries)
	}
	if len(writer.writes) != 2 {
		t.Fatalf("expected output written after the failed file too, got %d", len(writer.writes))
	}
	if len(recorder.records) != 2 || recorder.records[0].Status != ledger.FileExhausted || recorder.records[0].Rounds != speech.MaxRounds {
		t.Fatalf("unexpected ledger records: %+v", recorder.records)
	}
}

func TestRunExtractionFailureIsPerFile(t *testing.T) {
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.mp4"), filepath.Join(dir, "b.mp4")
	dispatcher := &fakeDispatcher{outcomes: map[string]speech.Outcome{
		b: detected("cuda", speech.RoleAccelerated, speech.Segment{Start: 0, End: 1}),
	}, next: []string{b}}

	summary, err := Run(context.Background(), []string{a, b}, Options{
		Prober:      fakeProber{fps: map[string]float64{a: 30, b: 30}},
		Audio:       &fakeAudio{fail: map[string]error{a: errors.New("no audio stream")}},
		Dispatcher:  dispatcher,
		Timeline:    timeline.New(timeline.Settings{}, nil),
		Output:      &memoryWriter{},
		ScratchRoot: dir,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Files[0].Status != ledger.FileExtractFailed || !summary.Files[0].Failed() {
		t.Fatalf("unexpected result for a: %+v", summary.Files[0])
	}
	if len(dispatcher.byAudio) != 1 {
		t.Fatalf("detector must not run without audio, calls=%v", dispatcher.byAudio)
	}
}

func TestRunProbeFailureAborts(t *testing.T) {
	dir := t.TempDir()
	a, b, c := filepath.Join(dir, "a.mp4"), filepath.Join(dir, "b.mp4"), filepath.Join(dir, "c.mp4")
	writer := &memoryWriter{}

	summary, err := Run(context.Background(), []string{a, b, c}, Options{
		Prober: fakeProber{
			fps:  map[string]float64{a: 30, c: 30},
			fail: map[string]error{b: ffprobe.ErrNoFrameRate},
		},
		Audio:       &fakeAudio{},
		Dispatcher:  &fakeDispatcher{outcomes: map[string]speech.Outcome{a: detected("cuda", speech.RoleAccelerated)}, next: []string{a}},
		Timeline:    timeline.New(timeline.Settings{}, nil),
		Output:      writer,
		ScratchRoot: dir,
	})
	if !errors.Is(err, ffprobe.ErrNoFrameRate) {
		t.Fatalf("expected probe error, got %v", err)
	}
	if len(summary.Files) != 1 || len(writer.writes) != 1 {
		t.Fatalf("expected only the first file completed, files=%d writes=%d", len(summary.Files), len(writer.writes))
	}
}

func TestRunOutputFailureAborts(t *testing.T) {
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.mp4"), filepath.Join(dir, "b.mp4")
	dispatcher := &fakeDispatcher{outcomes: map[string]speech.Outcome{
		a: detected("cuda", speech.RoleAccelerated),
		b: detected("cuda", speech.RoleAccelerated),
	}, next: []string{a, b}}

	_, err := Run(context.Background(), []string{a, b}, Options{
		Prober:      fakeProber{fps: map[string]float64{a: 30, b: 30}},
		Audio:       &fakeAudio{},
		Dispatcher:  dispatcher,
		Timeline:    timeline.New(timeline.Settings{}, nil),
		Output:      &memoryWriter{failAt: 1},
		ScratchRoot: dir,
	})
	if err == nil {
		t.Fatal("expected output failure to abort the run")
	}
	if len(dispatcher.byAudio) != 1 {
		t.Fatalf("expected the run to stop after the first file, calls=%d", len(dispatcher.byAudio))
	}
}

func TestRunStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, []string{"a.mp4"}, Options{
		Prober:     fakeProber{},
		Audio:      &fakeAudio{},
		Dispatcher: &fakeDispatcher{},
		Timeline:   timeline.New(timeline.Settings{}, nil),
		Output:     &memoryWriter{},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunRequiresCollaborators(t *testing.T) {
	if _, err := Run(context.Background(), nil, Options{}); err == nil {
		t.Fatal("expected validation error")
	}
}

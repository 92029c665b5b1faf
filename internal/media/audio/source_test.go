package audio

import (
	"context"
	"errors"
	"os"
	"testing"

	"speechline/internal/media/ffprobe"
)

type inspectorFunc func(ctx context.Context, path string) (ffprobe.Result, error)

func (f inspectorFunc) Inspect(ctx context.Context, path string) (ffprobe.Result, error) {
	return f(ctx, path)
}

func TestSourcePrepareExtractsSelectedStream(t *testing.T) {
	inspector := inspectorFunc(func(context.Context, string) (ffprobe.Result, error) {
		return ffprobe.Result{Streams: []ffprobe.Stream{
			{Index: 0, CodecType: "video", CodecName: "h264"},
			{Index: 1, CodecType: "audio", CodecName: "aac", Channels: 2, Tags: map[string]string{"language": "eng", "title": "Commentary"}},
			{Index: 2, CodecType: "audio", CodecName: "aac", Channels: 6, Tags: map[string]string{"language": "eng"}},
		}}, nil
	})
	var mapped string
	extractor := NewExtractor("ffmpeg", 0).WithCommandRunner(func(_ context.Context, _ string, args ...string) error {
		for i, arg := range args {
			if arg == "-map" {
				mapped = args[i+1]
			}
		}
		return os.WriteFile(args[len(args)-1], []byte("RIFF"), 0o644)
	})

	path, err := NewSource(inspector, extractor, nil).Prepare(context.Background(), "/media/film.mkv", t.TempDir())
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if path == "" || mapped != "0:2" {
		t.Fatalf("expected main dialogue stream 2, got map %q", mapped)
	}
}

func TestSourcePrepareWithoutAudio(t *testing.T) {
	inspector := inspectorFunc(func(context.Context, string) (ffprobe.Result, error) {
		return ffprobe.Result{Streams: []ffprobe.Stream{{Index: 0, CodecType: "video"}}}, nil
	})
	extractor := NewExtractor("ffmpeg", 0).WithCommandRunner(func(context.Context, string, ...string) error {
		t.Fatal("extractor must not run without an audio stream")
		return nil
	})
	_, err := NewSource(inspector, extractor, nil).Prepare(context.Background(), "/media/silent.mp4", t.TempDir())
	if !errors.Is(err, ErrNoAudio) {
		t.Fatalf("expected ErrNoAudio, got %v", err)
	}
}

func TestSourcePrepareInspectError(t *testing.T) {
	boom := errors.New("ffprobe failed")
	inspector := inspectorFunc(func(context.Context, string) (ffprobe.Result, error) {
		return ffprobe.Result{}, boom
	})
	_, err := NewSource(inspector, NewExtractor("ffmpeg", 0), nil).Prepare(context.Background(), "a.mp4", t.TempDir())
	if !errors.Is(err, boom) {
		t.Fatalf("expected inspect error, got %v", err)
	}
}

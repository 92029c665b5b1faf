package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteExecutable writes a shell script to dir/name and returns its path.
func WriteExecutable(t testing.TB, dir, name, body string) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, []byte(body), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}

// FFprobeScript returns a stub that prints one 1080p video stream at fps and
// one English stereo audio stream for any input.
func FFprobeScript(fps string) string {
	return `#!/bin/sh
cat <<'JSON'
{
  "streams": [
    {"index": 0, "codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080,
     "avg_frame_rate": "` + fps + `", "r_frame_rate": "` + fps + `"},
    {"index": 1, "codec_type": "audio", "codec_name": "aac", "channels": 2, "sample_rate": "48000",
     "tags": {"language": "eng"}, "disposition": {"default": 1}}
  ],
  "format": {"filename": "stub", "nb_streams": 2, "duration": "10.000000", "format_name": "mov,mp4"}
}
JSON
`
}

// FFmpegScript returns a stub that writes a non-empty file at its last argument.
func FFmpegScript() string {
	return "#!/bin/sh\nfor last; do :; done\nprintf 'RIFF' > \"$last\"\n"
}

// DetectorScript returns a stub detector speaking the JSON lines protocol.
// It exits non-zero when invoked with --device failDevice.
func DetectorScript(failDevice string, segments ...[2]float64) string {
	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	b.WriteString("device=\"\"\n")
	b.WriteString("while [ $# -gt 0 ]; do\n  case \"$1\" in\n    --device) device=\"$2\"; shift 2 ;;\n    *) shift ;;\n  esac\ndone\n")
	if failDevice != "" {
		fmt.Fprintf(&b, "if [ \"$device\" = %q ]; then\n  echo \"%s device unavailable\" >&2\n  exit 1\nfi\n", failDevice, failDevice)
	}
	b.WriteString("echo 'loading model'\n")
	total := len(segments)
	for i, seg := range segments {
		fmt.Fprintf(&b, "echo '{\"type\":\"progress\",\"count\":%d,\"total\":%d}'\n", i+1, total)
		fmt.Fprintf(&b, "echo '{\"type\":\"speech\",\"start\":%g,\"end\":%g}'\n", seg[0], seg[1])
	}
	return b.String()
}

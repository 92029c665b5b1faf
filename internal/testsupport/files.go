package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteMediaFiles creates placeholder files under dir and returns their
// paths in the order given. Stub tools never read the content.
func WriteMediaFiles(t testing.TB, dir string, names ...string) []string {
	t.Helper()

	paths := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir for %s: %v", path, err)
		}
		if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		paths = append(paths, path)
	}
	return paths
}

package pipeline

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// acceptedExtensions are the container suffixes kept when walking directories.
var acceptedExtensions = map[string]struct{}{
	".mp4":  {},
	".m4v":  {},
	".mov":  {},
	".avi":  {},
	".mpeg": {},
	".webm": {},
	".wmv":  {},
	".flv":  {},
	".mpg":  {},
	".mxf":  {},
	".mts":  {},
}

// IsAcceptedExtension reports whether path has a media suffix picked up by
// directory expansion. Matching is case-insensitive.
func IsAcceptedExtension(path string) bool {
	_, ok := acceptedExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Enumerate expands paths into the ordered candidate list. Directories are
// walked recursively in traversal order and contribute regular files with an
// accepted extension. Explicit files are kept unconditionally and appended,
// in input order, after every directory expansion.
func Enumerate(paths []string) ([]string, error) {
	var walked, explicit []string
	for _, input := range paths {
		info, err := os.Stat(input)
		if err != nil {
			return nil, fmt.Errorf("stat input: %w", err)
		}
		if !info.IsDir() {
			explicit = append(explicit, input)
			continue
		}
		err = filepath.WalkDir(input, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if !IsAcceptedExtension(path) || !isRegularFile(path, d) {
				return nil
			}
			walked = append(walked, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", input, err)
		}
	}
	return append(walked, explicit...), nil
}

// isRegularFile reports whether d, after following a symlink, is a regular
// file. Dangling links are skipped.
func isRegularFile(path string, d fs.DirEntry) bool {
	if d.Type()&fs.ModeSymlink == 0 {
		return d.Type().IsRegular()
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

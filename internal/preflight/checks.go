package preflight

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"speechline/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckOutputTarget verifies that path does not exist yet and that its parent
// directory accepts new files.
func CheckOutputTarget(path string) Result {
	const name = "Output file"
	if _, err := os.Lstat(path); err == nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: already exists)", path)}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	parent := CheckDirectoryAccess(name, filepath.Dir(path))
	if !parent.Passed {
		return parent
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (writable)", path)}
}

// CheckBinaries converts dependency statuses into preflight results.
// Optional binaries that are missing still pass.
func CheckBinaries(requirements []deps.Requirement) []Result {
	statuses := deps.CheckBinaries(requirements)
	results := make([]Result, 0, len(statuses))
	for _, status := range statuses {
		result := Result{Name: status.Name}
		switch {
		case status.Available:
			result.Passed = true
			result.Detail = status.Path
		case status.Optional:
			result.Passed = true
			result.Detail = fmt.Sprintf("optional: %s", status.Detail)
		default:
			result.Detail = status.Detail
		}
		results = append(results, result)
	}
	return results
}

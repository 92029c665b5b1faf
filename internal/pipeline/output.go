package pipeline

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gofrs/flock"
)

// ErrOutputLocked is returned when another run holds the output lock.
var ErrOutputLocked = errors.New("output file is locked by another run")

// OutputFile is the single handle a run rewrites after every file.
type OutputFile struct {
	path   string
	file   *os.File
	lock   *flock.Flock
	writes int
}

// OpenOutput takes an exclusive lock on path+".lock" and opens path for
// read/write, creating it when missing. The handle stays open until Close.
func OpenOutput(path string) (*OutputFile, error) {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire output lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", path, ErrOutputLocked)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		_ = lock.Unlock()
		_ = os.Remove(lock.Path())
		return nil, fmt.Errorf("open output: %w", err)
	}
	return &OutputFile{path: path, file: file, lock: lock}, nil
}

// Path returns the output path.
func (o *OutputFile) Path() string {
	return o.path
}

// Writes returns the number of successful rewrites.
func (o *OutputFile) Writes() int {
	return o.writes
}

// Write replaces the file content with data: seek to 0, truncate, write,
// then fsync so the document on disk is complete after every call.
func (o *OutputFile) Write(data []byte) error {
	if o == nil || o.file == nil {
		return errors.New("output file is closed")
	}
	if _, err := o.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek output: %w", err)
	}
	if err := o.file.Truncate(0); err != nil {
		return fmt.Errorf("truncate output: %w", err)
	}
	if _, err := o.file.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err := o.file.Sync(); err != nil {
		return fmt.Errorf("sync output: %w", err)
	}
	o.writes++
	return nil
}

// Close closes the handle and releases the lock.
func (o *OutputFile) Close() error {
	if o == nil || o.file == nil {
		return nil
	}
	err := o.file.Close()
	o.file = nil
	if unlockErr := o.lock.Unlock(); unlockErr != nil && err == nil {
		err = fmt.Errorf("release output lock: %w", unlockErr)
	}
	_ = os.Remove(o.lock.Path())
	return err
}

package fs

import (
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Download writes a dataset to a temporary file next to its final path and
// moves it into place on Commit.
//
// The temporary file doubles as a cooperative lock: while it exists, other
// downloads of the same path back off. The check and the creation are not
// atomic, so two processes can both pass the check. WithLock adds an
// advisory file lock on top.
type Download struct {
	path string
	file *os.File
	lock *flock.Flock
}

// DownloadOption configures a Download.
type DownloadOption func(*Download)

// WithLock guards the download with an advisory lock on <path>.lock.
func WithLock() DownloadOption {
	return func(d *Download) {
		d.lock = flock.New(d.path + LockSuffix)
	}
}

// NewDownload creates a Download targeting path.
func NewDownload(path string, opts ...DownloadOption) *Download {
	d := &Download{path: path}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// TempPath returns the path of the temporary file.
func (d *Download) TempPath() string {
	return TempPath(d.path)
}

// Reserve claims the download slot and creates an empty temporary file.
// It returns false when another download of the same path is in flight.
func (d *Download) Reserve() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(d.path), 0755); err != nil {
		return false, fmt.Errorf("failed to create cache directory: %w", err)
	}

	if d.lock != nil {
		locked, err := d.lock.TryLock()
		if err != nil {
			return false, fmt.Errorf("failed to lock %s: %w", d.path, err)
		}
		if !locked {
			return false, nil
		}
	}

	// Any existing temp file counts as a download in flight, regardless of age.
	if _, err := os.Stat(d.TempPath()); err == nil {
		d.unlock()
		return false, nil
	} else if !errors.Is(err, iofs.ErrNotExist) {
		d.unlock()
		return false, err
	}

	f, err := os.Create(d.TempPath())
	if err != nil {
		d.unlock()
		return false, err
	}
	d.file = f
	return true, nil
}

// Write appends to the temporary file.
func (d *Download) Write(p []byte) (int, error) {
	if d.file == nil {
		return 0, os.ErrClosed
	}
	return d.file.Write(p)
}

// Close flushes and closes the temporary file.
func (d *Download) Close() error {
	if d.file == nil {
		return nil
	}
	err := d.file.Sync()
	if cerr := d.file.Close(); err == nil {
		err = cerr
	}
	d.file = nil
	return err
}

// Commit renames the temporary file onto the final path.
func (d *Download) Commit() error {
	defer d.unlock()
	if err := d.Close(); err != nil {
		return err
	}
	return os.Rename(d.TempPath(), d.path)
}

// Abort discards the temporary file.
func (d *Download) Abort() error {
	defer d.unlock()
	_ = d.Close()
	if err := os.Remove(d.TempPath()); err != nil && !errors.Is(err, iofs.ErrNotExist) {
		return err
	}
	return nil
}

func (d *Download) unlock() {
	if d.lock != nil {
		_ = d.lock.Unlock()
	}
}

// Package runlock guards an output tree against concurrent dcmorg runs.
package runlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"dcmorg/internal/services"
)

// FileName is the lock file created at the root of a guarded tree.
const FileName = ".dcmorg.lock"

// ErrHeld reports that another process owns the lock.
var ErrHeld = errors.New("output tree is locked by another dcmorg process")

// Lock is an acquired advisory lock.
type Lock struct {
	path string
	lock *flock.Flock
}

// Acquire creates dir when needed and takes a non-blocking exclusive lock on
// dir/FileName.
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrFilesystem, "lock", "create directory", dir, err)
	}
	path := filepath.Join(dir, FileName)
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrFilesystem, "lock", "acquire", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHeld, path)
	}
	return &Lock{path: path, lock: fl}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Release unlocks and removes the lock file. Safe to call on nil.
func (l *Lock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		return services.Wrap(services.ErrFilesystem, "lock", "release", l.path, err)
	}
	l.lock = nil
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return services.Wrap(services.ErrFilesystem, "lock", "remove", l.path, err)
	}
	return nil
}

package output

import (
	"fmt"
	"os"

	"github.com/gofrs/flock"
)

// pathLock is an advisory lock on <path>.lock so two runs never write the
// same output concurrently.
type pathLock struct {
	fl *flock.Flock
}

func acquireLock(path string) (*pathLock, error) {
	fl := flock.New(path + ".lock")
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	return &pathLock{fl: fl}, nil
}

func (l *pathLock) release() error {
	if err := l.fl.Unlock(); err != nil {
		return err
	}
	if err := os.Remove(l.fl.Path()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

//go:build !unix

package statistic

import (
	"errors"
	"os"
)

var ErrLocked = errors.New("data directory is locked by another process")

// DirLock is a no-op where flock is unavailable.
type DirLock struct{}

func AcquireDirLock(dir string) (*DirLock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &DirLock{}, nil
}

func (l *DirLock) Release() error {
	return nil
}

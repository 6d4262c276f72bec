package acquire

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// StaleLockThreshold is the maximum age of a lock before it's considered stale.
	StaleLockThreshold = 10 * time.Minute

	lockName = ".depfetch.lock"
)

// destLock guards a destination directory against a second concurrent run.
type destLock struct {
	path string
	file *os.File
}

// lockDestination creates dir/.depfetch.lock with O_CREATE|O_EXCL. A lock
// older than StaleLockThreshold is replaced once.
func lockDestination(ctx context.Context, dir, runID string) (*destLock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lockPath := filepath.Join(dir, lockName)

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		if !os.IsExist(err) {
			return nil, fmt.Errorf("%w: create lock file: %v", ErrIO, err)
		}
		if !isLockStale(lockPath) {
			return nil, fmt.Errorf("%w (%s)", ErrLocked, lockPath)
		}
		os.Remove(lockPath)
		file, err = os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
		if err != nil {
			return nil, fmt.Errorf("%w (%s)", ErrLocked, lockPath)
		}
	}

	lockData := fmt.Sprintf("pid=%d\nrun=%s\ntimestamp=%s\n", os.Getpid(), runID, time.Now().UTC().Format(time.RFC3339))
	if _, err := file.WriteString(lockData); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("%w: write lock data: %v", ErrIO, err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("%w: sync lock file: %v", ErrIO, err)
	}

	return &destLock{path: lockPath, file: file}, nil
}

// release removes the lock file.
func (l *destLock) release() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	if l.path != "" {
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove lock file: %w", err)
		}
	}

	return nil
}

func isLockStale(lockPath string) bool {
	info, err := os.Stat(lockPath)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) > StaleLockThreshold
}

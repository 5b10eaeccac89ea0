package storage

import (
	"fmt"
	"os"
	"syscall"
	"time"
)

// LockTimeoutError reports that the exclusive store lock could not be
// acquired within the retry budget.
type LockTimeoutError struct {
	Path     string
	Attempts int
	Elapsed  time.Duration
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("could not acquire exclusive lock on %s after %d attempts (%s)", e.Path, e.Attempts, e.Elapsed.Round(time.Millisecond))
}

// maxLockBackoff caps the escalating retry delay.
const maxLockBackoff = time.Second

// acquireFileLock takes an exclusive advisory flock on the given lock file,
// retrying with escalating backoff so that concurrent CLI invocations
// serialize instead of failing immediately. The lock lives on a dedicated
// file, never on the data file itself, because atomic renames replace the
// data file's inode. The returned unlock releases the flock and closes the
// descriptor.
func acquireFileLock(path string, maxAttempts int, baseBackoff time.Duration) (unlock func() error, err error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	start := time.Now()
	backoff := baseBackoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			// Record the holder for debugging stuck locks.
			_ = f.Truncate(0)
			_, _ = f.Seek(0, 0)
			_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())
			return func() error {
				defer f.Close()
				return syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
			}, nil
		}
		if err != syscall.EWOULDBLOCK && err != syscall.EAGAIN {
			f.Close()
			return nil, fmt.Errorf("acquiring file lock: %w", err)
		}
		if attempt < maxAttempts {
			time.Sleep(backoff)
			backoff = backoff * 3 / 2
			if backoff > maxLockBackoff {
				backoff = maxLockBackoff
			}
		}
	}

	f.Close()
	return nil, &LockTimeoutError{Path: path, Attempts: maxAttempts, Elapsed: time.Since(start)}
}

package seqfile

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// flock acquires an advisory lock on a table file: exclusive for writers,
// shared for readers.
func flock(file *os.File, exclusive bool) error {
	flag := unix.LOCK_SH
	if exclusive {
		flag = unix.LOCK_EX
	}

	err := unix.Flock(int(file.Fd()), flag|unix.LOCK_NB)
	if err == nil {
		return nil
	} else if err == unix.EWOULDBLOCK || err == unix.EAGAIN {
		return ErrLocked
	} else {
		return errors.Wrap(err, "flock failed: unknown error")
	}
}

// waitflock retries flock until it succeeds or timeout elapses. A zero timeout
// makes a single attempt.
func waitflock(file *os.File, exclusive bool, timeout time.Duration) error {
	start := time.Now()
	for {
		err := flock(file, exclusive)
		if !errors.Is(err, ErrLocked) {
			return err
		}
		if timeout <= 0 || time.Since(start) > timeout {
			return errors.Wrapf(ErrLocked, "%s", file.Name())
		}
		// Wait for a bit and try again.
		time.Sleep(50 * time.Millisecond)
	}
}

// funlock releases an advisory lock on a file descriptor.
func funlock(file *os.File) error {
	return unix.Flock(int(file.Fd()), unix.LOCK_UN)
}

// Package lockfile provides the advisory run lock. At most one run may
// mutate a repository at a time; the lock is a pid file created with
// O_EXCL under the state directory and removed on release.
//
// The lock is advisory: it guards against concurrent regraft runs, not
// against other tools touching the repository.
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/tallgren/regraft/internal/errors"
)

// Lock is a held advisory lock. Release removes the backing file.
type Lock struct {
	path string
}

// Acquire takes the advisory lock at path, recording the current pid.
// Returns ErrLockHeld when another live process holds it. A lock whose
// recorded pid is no longer running is treated as stale and replaced.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create lock directory")
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			content := fmt.Sprintf("pid=%d\nacquired=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
			if _, werr := f.WriteString(content); werr != nil {
				f.Close()
				os.Remove(path)
				return nil, errors.Wrap(werr, "failed to write lock file")
			}
			if cerr := f.Close(); cerr != nil {
				os.Remove(path)
				return nil, errors.Wrap(cerr, "failed to write lock file")
			}
			return &Lock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, errors.Wrap(err, "failed to create lock file")
		}

		pid, readErr := readPid(path)
		if readErr == nil && processAlive(pid) {
			return nil, fmt.Errorf("%w: pid %d (lock file %s)", errors.ErrLockHeld, pid, path)
		}

		// Holder is gone or the file is unreadable garbage. Remove the
		// stale lock and retry once.
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			return nil, errors.Wrap(rmErr, "failed to remove stale lock file")
		}
	}

	return nil, fmt.Errorf("%w: lock file %s", errors.ErrLockHeld, path)
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release removes the lock file. Safe to call once per acquired lock.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove lock file")
	}
	return nil
}

// readPid parses the pid recorded in a lock file.
func readPid(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		if rest, ok := strings.CutPrefix(line, "pid="); ok {
			return strconv.Atoi(strings.TrimSpace(rest))
		}
	}
	return 0, fmt.Errorf("no pid line in lock file %s", path)
}

// processAlive reports whether a process with the given pid exists.
// Signal 0 probes for existence without delivering anything.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return err == syscall.EPERM
}

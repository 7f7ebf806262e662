// Package cache guards the on-disk cache directory against concurrent
// monitor instances.
package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// ErrAlreadyRunning reports that another live monitor owns the cache dir.
var ErrAlreadyRunning = errors.New("another dsv instance is already running")

// Acquire takes a single-instance lock on the cache directory by
// creating a monitor.lock file holding this process's PID.
// If a lock exists but its owner is dead, the stale lock is cleaned up
// and acquisition proceeds. If the owner is alive, ErrAlreadyRunning is
// returned: two monitors would fight over the same cache files.
// Returns an unlock function.
func Acquire(cacheDir string) (func() error, error) {
	lockFile := filepath.Join(cacheDir, "monitor.lock")

	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir for lock: %w", err)
	}

	for {
		// 1. Try to create the lock file exclusively.
		f, err := os.OpenFile(lockFile, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			content := fmt.Sprintf("%s %d", time.Now().Format(time.RFC3339), os.Getpid())
			if _, err := f.WriteString(content); err != nil {
				f.Close()
				os.Remove(lockFile)
				return nil, fmt.Errorf("failed to write lock file: %w", err)
			}
			f.Close()

			return func() error {
				return os.Remove(lockFile)
			}, nil
		}

		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}

		// 2. Lock file exists. Decide whether its owner is still alive.
		content, err := os.ReadFile(lockFile)
		if err != nil {
			if os.IsNotExist(err) {
				// Owner just released it; retry immediately.
				continue
			}
			return nil, fmt.Errorf("failed to read lock file: %w", err)
		}

		pid, perr := parseLockPid(string(content))
		if perr == nil && isPidAlive(pid) {
			return nil, fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, pid)
		}

		// Stale or corrupt lock. Remove and retry; a concurrent remover
		// is harmless.
		os.Remove(lockFile)
	}
}

// parseLockPid extracts the PID from "timestamp pid" lock content.
func parseLockPid(content string) (int, error) {
	parts := strings.Fields(strings.TrimSpace(content))
	if len(parts) < 2 {
		return 0, fmt.Errorf("malformed lock content %q", content)
	}
	return strconv.Atoi(parts[len(parts)-1])
}

func isPidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		// Should not happen on Unix
		return false
	}

	// Send signal 0 to check existence
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}

	if errors.Is(err, syscall.ESRCH) || errors.Is(err, os.ErrProcessDone) {
		return false
	}

	// EPERM or other error: process exists but we can't signal it.
	// Assume alive.
	return true
}

// Package logging routes the process-wide slog logger to the monitor
// log file inside the cache directory.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// maxLogSize caps the log file at 1 GiB. Past that the file is removed
// and started fresh; the monitor runs for months and nobody rotates it.
const maxLogSize = 1 << 30

// Setup opens (or resets) the log file at path and installs it as the
// default slog destination. The returned func closes the file.
func Setup(path string, verbose bool) (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	if fi, err := os.Stat(path); err == nil && fi.Size() > maxLogSize {
		// Best effort; an undeletable log is not worth refusing to start over.
		_ = os.Remove(path)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})))

	return f.Close, nil
}

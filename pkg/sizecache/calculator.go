package sizecache

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"dsv/pkg/config"
)

// Calculator computes directory sizes, consulting and populating
// per-directory records as it descends.
type Calculator struct {
	cfg *config.Config

	// now is replaceable in tests.
	now func() time.Time
}

// NewCalculator creates a calculator bound to the given configuration.
func NewCalculator(cfg *config.Config) *Calculator {
	return &Calculator{cfg: cfg, now: time.Now}
}

// SizeWithCache returns the total size of dir in bytes.
//
// A valid record for dir short-circuits the walk entirely. Otherwise
// the subtree is walked iteratively: a child directory with a valid
// record contributes its cached size and is not descended into;
// unreadable files and directories are skipped. The walk returns its
// partial total once the configured deadline passes. Any positive
// result is persisted as a fresh record for dir.
//
// Unexpected failures are logged and reported as size 0; one unreadable
// subtree must never take the dashboard down.
func (c *Calculator) SizeWithCache(dir string) (size int64) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("size calculation failed", "dir", dir, "panic", r)
			size = 0
		}
	}()

	if cached, ok := ReadRecord(dir, c.cfg.GetFolderCacheTTL(), c.now()); ok {
		return cached
	}

	total := c.walk(dir)
	if total > 0 {
		if err := WriteRecord(dir, total, c.now()); err != nil {
			slog.Error("failed to persist size record", "dir", dir, "err", err)
		}
	}
	return total
}

// walk sums the subtree rooted at dir with an explicit stack. A
// device+inode visited set guards against cycles, and depth is not
// otherwise bounded: valid child records prune most of the descent.
func (c *Calculator) walk(root string) int64 {
	deadline := c.now().Add(c.cfg.GetWalkDeadline())
	ttl := c.cfg.GetFolderCacheTTL()

	stack := []string{root}
	visited := make(map[string]struct{})
	var total int64

	for len(stack) > 0 {
		if c.now().After(deadline) {
			slog.Info("size walk hit deadline, keeping partial total", "root", root)
			break
		}

		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if key, ok := inodeKey(dir); ok {
			if _, seen := visited[key]; seen {
				continue
			}
			visited[key] = struct{}{}
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			// Permission denied or vanished: contributes nothing.
			continue
		}

		for _, ent := range entries {
			path := filepath.Join(dir, ent.Name())
			switch {
			case ent.IsDir():
				if cached, ok := ReadRecord(path, ttl, c.now()); ok {
					total += cached
				} else {
					stack = append(stack, path)
				}
			case ent.Type().IsRegular():
				if info, err := ent.Info(); err == nil {
					total += info.Size()
				}
			}
		}
	}

	return total
}

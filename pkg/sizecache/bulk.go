package sizecache

import (
	"context"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
)

// DirSize pairs a directory path with its size in bytes.
type DirSize struct {
	Path string
	Size int64
}

// BulkSizes sizes all given directories in a single external du
// invocation at 1-byte block granularity. It returns nil on any
// failure, including timeout; callers must fall back to per-directory
// calculation.
func (c *Calculator) BulkSizes(ctx context.Context, dirs []string) []DirSize {
	if len(dirs) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.GetBulkTimeout())
	defer cancel()

	args := append([]string{"-s", "--block-size=1"}, dirs...)
	out, err := exec.CommandContext(ctx, "du", args...).Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			slog.Error("bulk du timed out", "dirs", len(dirs))
		} else {
			slog.Error("bulk du failed", "dirs", len(dirs), "err", err)
		}
		return nil
	}

	return ParseDuOutput(string(out))
}

// ParseDuOutput parses du -s output, one "<size>\t<path>" line per
// directory. Malformed lines are dropped.
func ParseDuOutput(out string) []DirSize {
	var sizes []DirSize
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		sizeStr, path, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		size, err := strconv.ParseInt(strings.TrimSpace(sizeStr), 10, 64)
		if err != nil {
			continue
		}
		sizes = append(sizes, DirSize{Path: strings.TrimSpace(path), Size: size})
	}
	return sizes
}

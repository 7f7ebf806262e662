package snapshot

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"dsv/pkg/config"
	"dsv/pkg/sizecache"
	"dsv/pkg/volumes"
)

// ErrEmptySnapshot reports a build that found no level-1 directories.
// Such a snapshot is never persisted; a stale one, if any, stays
// authoritative.
var ErrEmptySnapshot = errors.New("snapshot has no level-1 directories")

// Builder assembles a volume's 3-level tree of largest subdirectories,
// preferring one bulk du invocation per sibling set and falling back to
// per-directory cached calculation.
type Builder struct {
	cfg  *config.Config
	calc *sizecache.Calculator

	// bulk and usagePercent are replaceable in tests.
	bulk         func(ctx context.Context, dirs []string) []sizecache.DirSize
	usagePercent func(mount string) (float64, error)
	now          func() time.Time
}

// NewBuilder creates a builder using the given calculator for both the
// bulk and the fallback sizing paths.
func NewBuilder(cfg *config.Config, calc *sizecache.Calculator) *Builder {
	return &Builder{
		cfg:          cfg,
		calc:         calc,
		bulk:         calc.BulkSizes,
		usagePercent: volumes.UsagePercent,
		now:          time.Now,
	}
}

// Build computes a fresh snapshot for a volume, keeping the topN
// largest directories per level, three levels deep. Each level is fully
// sized before the next is attempted, so level-3 work only ever runs
// for directories that survived the level-2 cut.
//
// Cancelling ctx aborts the build: without that check a dead context
// would only kill the bulk path, leaving the rest of the build to grind
// through per-directory walks nobody is waiting for.
func (b *Builder) Build(ctx context.Context, mount string, topN int) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	level1 := b.topSubdirs(ctx, mount, topN)
	if len(level1) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrEmptySnapshot
	}

	snap := &Snapshot{
		DiskMount: mount,
		Timestamp: float64(b.now().Unix()),
	}

	for _, d1 := range level1 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		node1 := Level1Node{Path: d1.Path, Size: d1.Size}
		for _, d2 := range b.topSubdirs(ctx, d1.Path, topN) {
			node2 := Level2Node{Path: d2.Path, Size: d2.Size}
			for _, d3 := range b.topSubdirs(ctx, d2.Path, topN) {
				node2.Level3 = append(node2.Level3, Level3Node{Path: d3.Path, Size: d3.Size})
			}
			node1.Level2 = append(node1.Level2, node2)
		}
		snap.Level1 = append(snap.Level1, node1)
	}

	if percent, err := b.usagePercent(mount); err == nil {
		snap.Percent = percent
		snap.PercentKnown = true
	} else {
		slog.Error("failed to read usage percent", "mount", mount, "err", err)
	}

	return snap, nil
}

// topSubdirs sizes the immediate subdirectories of path and keeps the
// topN largest, sorted descending. Equal sizes keep directory
// enumeration order; the sort is stable and size is the only key.
func (b *Builder) topSubdirs(ctx context.Context, path string, topN int) []sizecache.DirSize {
	if ctx.Err() != nil {
		return nil
	}

	subdirs := listSubdirs(path)
	if len(subdirs) == 0 {
		return nil
	}

	sized := b.bulk(ctx, subdirs)
	if len(sized) == 0 {
		// Bulk tool failed or timed out; size each sibling through the
		// per-directory cache instead. A cancelled context must not
		// reach the walker.
		for _, dir := range subdirs {
			if ctx.Err() != nil {
				return nil
			}
			sized = append(sized, sizecache.DirSize{Path: dir, Size: b.calc.SizeWithCache(dir)})
		}
	}

	sort.SliceStable(sized, func(i, j int) bool { return sized[i].Size > sized[j].Size })
	if len(sized) > topN {
		sized = sized[:topN]
	}
	return sized
}

// listSubdirs enumerates the immediate subdirectories of path.
// Unreadable directories yield nothing.
func listSubdirs(path string) []string {
	entries, err := os.ReadDir(path)
	if err != nil {
		slog.Error("failed to list subdirectories", "path", path, "err", err)
		return nil
	}

	var subdirs []string
	for _, ent := range entries {
		if ent.IsDir() {
			subdirs = append(subdirs, filepath.Join(path, ent.Name()))
		}
	}
	return subdirs
}

// Package scheduler decides when each volume's snapshot is rebuilt and
// makes sure at most one rebuild runs per volume at any time.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"dsv/pkg/config"
	"dsv/pkg/snapshot"
)

// Builder produces a fresh snapshot for one volume.
type Builder interface {
	Build(ctx context.Context, mount string, topN int) (*snapshot.Snapshot, error)
}

// Scheduler tracks per-volume rebuild state. Rebuilds run in background
// goroutines and communicate with readers only through the snapshot
// store, so the last persisted snapshot keeps being served while a
// rebuild is in flight.
type Scheduler struct {
	cfg     *config.Config
	store   *snapshot.Store
	builder Builder

	mu       sync.Mutex
	inflight map[string]time.Time

	wg  sync.WaitGroup
	now func() time.Time
}

// New creates a scheduler over the given store and builder.
func New(cfg *config.Config, store *snapshot.Store, builder Builder) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		store:    store,
		builder:  builder,
		inflight: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Snapshot returns the last persisted snapshot for a volume, stale or
// not, or nil when none exists yet. It never blocks on a rebuild.
func (s *Scheduler) Snapshot(mount string) *snapshot.Snapshot {
	return s.store.Load(mount)
}

// EnsureFresh launches a background rebuild for the volume if it has no
// snapshot or its snapshot has outlived the disk cache TTL. A volume
// already rebuilding is never double-scheduled. Safe to call on every
// display tick.
func (s *Scheduler) EnsureFresh(ctx context.Context, mount string) {
	snap := s.store.Load(mount)
	if snap != nil && !snap.Stale(s.cfg.GetDiskCacheTTL(), s.now()) {
		return
	}
	s.schedule(ctx, mount)
}

// ForceRefresh drops the volume's persisted snapshot and schedules a
// rebuild immediately, regardless of freshness. The user-triggered
// refresh path.
func (s *Scheduler) ForceRefresh(ctx context.Context, mount string) {
	if err := s.store.Delete(mount); err != nil {
		slog.Error("failed to drop snapshot for refresh", "mount", mount, "err", err)
	}
	s.schedule(ctx, mount)
}

// Rebuilding reports whether a rebuild is currently in flight for the
// volume.
func (s *Scheduler) Rebuilding(mount string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, busy := s.inflight[mount]
	return busy
}

// Wait blocks until all in-flight rebuilds have finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// schedule starts a rebuild goroutine unless one is already running for
// the volume. Reports whether a rebuild was started.
func (s *Scheduler) schedule(ctx context.Context, mount string) bool {
	s.mu.Lock()
	if _, busy := s.inflight[mount]; busy {
		s.mu.Unlock()
		return false
	}
	s.inflight[mount] = s.now()
	s.mu.Unlock()

	slog.Info("starting snapshot rebuild", "mount", mount)
	s.wg.Add(1)
	go s.rebuild(ctx, mount)
	return true
}

// rebuild is one unit of background work and its own failure boundary:
// whatever happens, the in-flight marker is cleared so a later pass can
// retry.
func (s *Scheduler) rebuild(ctx context.Context, mount string) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("snapshot rebuild panicked", "mount", mount, "panic", r)
		}
		s.mu.Lock()
		delete(s.inflight, mount)
		s.mu.Unlock()
	}()

	snap, err := s.builder.Build(ctx, mount, s.cfg.GetTopN())
	if err != nil {
		// No snapshot is written; the next scheduling pass reassesses.
		if ctx.Err() != nil {
			slog.Info("snapshot rebuild abandoned", "mount", mount)
			return
		}
		slog.Error("snapshot rebuild failed", "mount", mount, "err", err)
		return
	}

	if err := s.store.Save(snap); err != nil {
		slog.Error("failed to persist snapshot", "mount", mount, "err", err)
		return
	}
	if snap.PercentKnown {
		if err := s.store.WriteUsagePercent(mount, snap.Percent); err != nil {
			slog.Error("failed to write usage side file", "mount", mount, "err", err)
		}
	}

	slog.Info("snapshot rebuilt", "mount", mount, "level1", len(snap.Level1))
}

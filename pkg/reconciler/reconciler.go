// Package reconciler repairs snapshots where a parent's cached size is
// smaller than the sum of its cached children.
//
// The bulk and per-directory size methods can disagree about block
// accounting, leaving a parent recorded as smaller than its own listed
// children. Corrections are monotonic: sizes only ever increase.
package reconciler

import (
	"context"
	"log/slog"
	"time"

	"dsv/pkg/config"
	"dsv/pkg/sizecache"
	"dsv/pkg/snapshot"

	"github.com/dustin/go-humanize"
)

// Reconciler runs the periodic fixup pass over all persisted snapshots.
type Reconciler struct {
	cfg   *config.Config
	store *snapshot.Store
	now   func() time.Time
}

// New creates a reconciler over the given store.
func New(cfg *config.Config, store *snapshot.Store) *Reconciler {
	return &Reconciler{cfg: cfg, store: store, now: time.Now}
}

// Run executes a pass at the configured interval until ctx is
// cancelled. Each pass is its own failure boundary.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.GetReconcileInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.pass()
		}
	}
}

// pass checks every persisted snapshot and persists those it corrected.
func (r *Reconciler) pass() {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("reconciliation pass panicked", "panic", rec)
		}
	}()

	for _, mount := range r.store.Mounts() {
		snap := r.store.Load(mount)
		if snap == nil {
			continue
		}

		corrections := Reconcile(snap)
		if len(corrections) == 0 {
			continue
		}

		for _, c := range corrections {
			slog.Info("corrected cached size",
				"path", c.Path,
				"old", humanize.IBytes(uint64(c.OldSize)),
				"new", humanize.IBytes(uint64(c.NewSize)))
			// Propagate to the per-directory record so the
			// source-of-truth cache agrees with the snapshot.
			if err := sizecache.WriteRecord(c.Path, c.NewSize, r.now()); err != nil {
				slog.Error("failed to propagate correction", "path", c.Path, "err", err)
			}
		}

		if err := r.store.Save(snap); err != nil {
			slog.Error("failed to persist corrected snapshot", "mount", mount, "err", err)
			continue
		}
		slog.Info("snapshot corrected", "mount", mount, "corrections", len(corrections))
	}
}

// Correction records one size repair applied to a snapshot node.
type Correction struct {
	Path    string
	OldSize int64
	NewSize int64
}

// Reconcile raises every node whose recorded size is smaller than the
// sum of its children's recorded sizes, in place. Level-1 nodes are
// checked against level 2 and level-2 nodes against level 3; sizes are
// never decreased. Returns the corrections applied.
func Reconcile(snap *snapshot.Snapshot) []Correction {
	var corrections []Correction

	for i := range snap.Level1 {
		l1 := &snap.Level1[i]

		// The parent check uses the children's recorded sizes; a deeper
		// correction in the same pass surfaces on the next one.
		if sum := l1.SumLevel2(); sum > l1.Size {
			corrections = append(corrections, Correction{Path: l1.Path, OldSize: l1.Size, NewSize: sum})
			l1.Size = sum
		}

		for j := range l1.Level2 {
			l2 := &l1.Level2[j]
			if sum := l2.SumLevel3(); sum > l2.Size {
				corrections = append(corrections, Correction{Path: l2.Path, OldSize: l2.Size, NewSize: sum})
				l2.Size = sum
			}
		}
	}

	return corrections
}

package reconciler

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"dsv/pkg/config"
	"dsv/pkg/sizecache"
	"dsv/pkg/snapshot"
)

func TestReconcileRaisesParent(t *testing.T) {
	snap := &snapshot.Snapshot{
		DiskMount: "/data",
		Level1: []snapshot.Level1Node{
			{
				Path: "/data/a",
				Size: 100, // below the sum of its children
				Level2: []snapshot.Level2Node{
					{Path: "/data/a/x", Size: 300},
					{Path: "/data/a/y", Size: 200},
				},
			},
		},
	}

	corrections := Reconcile(snap)
	if len(corrections) != 1 {
		t.Fatalf("expected 1 correction, got %d: %+v", len(corrections), corrections)
	}
	c := corrections[0]
	if c.Path != "/data/a" || c.OldSize != 100 || c.NewSize != 500 {
		t.Errorf("unexpected correction: %+v", c)
	}
	if snap.Level1[0].Size != 500 {
		t.Errorf("expected parent raised to 500, got %d", snap.Level1[0].Size)
	}
}

func TestReconcileLevel2(t *testing.T) {
	snap := &snapshot.Snapshot{
		DiskMount: "/data",
		Level1: []snapshot.Level1Node{
			{
				Path: "/data/a",
				Size: 10000,
				Level2: []snapshot.Level2Node{
					{
						Path: "/data/a/x",
						Size: 50,
						Level3: []snapshot.Level3Node{
							{Path: "/data/a/x/1", Size: 80},
							{Path: "/data/a/x/2", Size: 40},
						},
					},
				},
			},
		},
	}

	corrections := Reconcile(snap)
	if len(corrections) != 1 {
		t.Fatalf("expected 1 correction, got %d", len(corrections))
	}
	if snap.Level1[0].Level2[0].Size != 120 {
		t.Errorf("expected level-2 node raised to 120, got %d", snap.Level1[0].Level2[0].Size)
	}
	// The level-1 node was already larger than its children's sum.
	if snap.Level1[0].Size != 10000 {
		t.Errorf("level-1 size must not change, got %d", snap.Level1[0].Size)
	}
}

func TestReconcileMonotonic(t *testing.T) {
	snap := &snapshot.Snapshot{
		DiskMount: "/data",
		Level1: []snapshot.Level1Node{
			{
				Path: "/data/a",
				Size: 9999, // well above the children's sum
				Level2: []snapshot.Level2Node{
					{Path: "/data/a/x", Size: 10},
				},
			},
		},
	}

	if corrections := Reconcile(snap); len(corrections) != 0 {
		t.Errorf("expected no corrections, got %+v", corrections)
	}
	if snap.Level1[0].Size != 9999 {
		t.Errorf("size decreased from 9999 to %d", snap.Level1[0].Size)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	snap := &snapshot.Snapshot{
		DiskMount: "/data",
		Level1: []snapshot.Level1Node{
			{
				Path:   "/data/a",
				Size:   1,
				Level2: []snapshot.Level2Node{{Path: "/data/a/x", Size: 500}},
			},
		},
	}

	if got := len(Reconcile(snap)); got != 1 {
		t.Fatalf("expected 1 correction on first pass, got %d", got)
	}
	if got := len(Reconcile(snap)); got != 0 {
		t.Errorf("expected no corrections on second pass, got %d", got)
	}
}

func TestPassPersistsCorrections(t *testing.T) {
	cacheDir := t.TempDir()
	cfg := config.New(cacheDir)
	store := snapshot.NewStore(cfg)

	// A real directory so the correction can propagate to its record.
	dirA := filepath.Join(t.TempDir(), "a")
	if err := os.Mkdir(dirA, 0755); err != nil {
		t.Fatal(err)
	}

	snap := &snapshot.Snapshot{
		DiskMount: "/data",
		Timestamp: float64(time.Now().Unix()),
		Level1: []snapshot.Level1Node{
			{
				Path: dirA,
				Size: 100,
				Level2: []snapshot.Level2Node{
					{Path: filepath.Join(dirA, "x"), Size: 700},
				},
			},
		},
	}
	if err := store.Save(snap); err != nil {
		t.Fatal(err)
	}

	r := New(cfg, store)
	r.pass()

	// The persisted snapshot carries the corrected size.
	got := store.Load("/data")
	if got == nil {
		t.Fatal("snapshot disappeared")
	}
	if got.Level1[0].Size != 700 {
		t.Errorf("expected persisted size 700, got %d", got.Level1[0].Size)
	}

	// The per-directory record was overwritten too.
	size, ok := sizecache.ReadRecord(dirA, cfg.GetFolderCacheTTL(), time.Now())
	if !ok {
		t.Fatal("expected a record for the corrected directory")
	}
	if size != 700 {
		t.Errorf("expected record size 700, got %d", size)
	}
}

func TestPassConsistentSnapshotUntouched(t *testing.T) {
	cacheDir := t.TempDir()
	cfg := config.New(cacheDir)
	store := snapshot.NewStore(cfg)

	snap := &snapshot.Snapshot{
		DiskMount: "/data",
		Timestamp: float64(time.Now().Unix()),
		Level1: []snapshot.Level1Node{
			{Path: "/data/a", Size: 1000, Level2: []snapshot.Level2Node{{Path: "/data/a/x", Size: 400}}},
		},
	}
	if err := store.Save(snap); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(cacheDir, "cache__data.json")
	before, err := os.Stat(file)
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(10 * time.Millisecond)
	New(cfg, store).pass()

	after, err := os.Stat(file)
	if err != nil {
		t.Fatal(err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Error("consistent snapshot was rewritten")
	}
}

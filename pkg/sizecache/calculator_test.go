package sizecache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dsv/pkg/config"
)

// writeFile creates a file of n bytes.
func writeFile(t *testing.T, path string, n int) {
	t.Helper()
	if err := os.WriteFile(path, bytes.Repeat([]byte("x"), n), 0644); err != nil {
		t.Fatal(err)
	}
}

// fixtureTree builds root/{a.txt 100, sub/{b.txt 200, c.txt 300}} and
// returns its total file size.
func fixtureTree(t *testing.T, root string) int64 {
	t.Helper()
	sub := filepath.Join(root, "sub")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(root, "a.txt"), 100)
	writeFile(t, filepath.Join(sub, "b.txt"), 200)
	writeFile(t, filepath.Join(sub, "c.txt"), 300)
	return 600
}

func TestSizeWithCacheWalk(t *testing.T) {
	root := t.TempDir()
	want := fixtureTree(t, root)

	calc := NewCalculator(config.New(t.TempDir()))
	if got := calc.SizeWithCache(root); got != want {
		t.Errorf("expected %d bytes, got %d", want, got)
	}

	// The walk must have left a record behind for root.
	if _, err := os.Stat(filepath.Join(root, RecordFileName)); err != nil {
		t.Errorf("expected size record after walk: %v", err)
	}
}

func TestSizeWithCacheIdempotent(t *testing.T) {
	root := t.TempDir()
	want := fixtureTree(t, root)

	calc := NewCalculator(config.New(t.TempDir()))
	first := calc.SizeWithCache(root)
	if first != want {
		t.Fatalf("expected %d bytes, got %d", want, first)
	}

	// Grow the tree underneath the cache. A second call must be served
	// from the record without walking, so the new file is invisible.
	writeFile(t, filepath.Join(root, "huge.bin"), 10000)

	second := calc.SizeWithCache(root)
	if second != first {
		t.Errorf("second call walked the tree: got %d, want cached %d", second, first)
	}
}

func TestSizeWithCacheUsesChildRecords(t *testing.T) {
	root := t.TempDir()
	child := filepath.Join(root, "child")
	if err := os.Mkdir(child, 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(root, "top.txt"), 50)
	writeFile(t, filepath.Join(child, "deep.txt"), 60)

	// A valid child record wins over the child's real contents.
	if err := WriteRecord(child, 99999, time.Now()); err != nil {
		t.Fatal(err)
	}

	calc := NewCalculator(config.New(t.TempDir()))
	if got, want := calc.SizeWithCache(root), int64(50+99999); got != want {
		t.Errorf("expected %d (file + cached child), got %d", want, got)
	}
}

func TestSizeWithCacheExpiredRecordRewalks(t *testing.T) {
	root := t.TempDir()
	want := fixtureTree(t, root)

	// Seed an expired record claiming a wild size.
	if err := WriteRecord(root, 1, time.Now().Add(-13*time.Hour)); err != nil {
		t.Fatal(err)
	}

	calc := NewCalculator(config.New(t.TempDir()))
	got := calc.SizeWithCache(root)
	// The stale record file itself now counts as tree content.
	if got < want {
		t.Errorf("expected at least %d bytes from a fresh walk, got %d", want, got)
	}
	if got == 1 {
		t.Error("expired record was served")
	}
}

func TestSizeWithCacheWalkDeadlineReturnsPartial(t *testing.T) {
	root := t.TempDir()
	full := fixtureTree(t, root)

	calc := NewCalculator(config.New(t.TempDir()))

	// A clock that jumps two minutes per reading. Against the five
	// minute walk ceiling, the deadline expires after the root
	// directory is summed but before sub is visited.
	base := time.Now()
	var readings int
	calc.now = func() time.Time {
		readings++
		return base.Add(time.Duration(readings) * 2 * time.Minute)
	}

	got := calc.SizeWithCache(root)
	if got != 100 {
		t.Fatalf("expected partial total 100 (root files only), got %d", got)
	}
	if got >= full {
		t.Fatalf("expired walk returned the full total %d", got)
	}

	// The partial total is positive, so it is still persisted.
	data, err := os.ReadFile(filepath.Join(root, RecordFileName))
	if err != nil {
		t.Fatalf("expected size record after partial walk: %v", err)
	}
	rec, err := DecodeRecord(data)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Size != 100 {
		t.Errorf("expected persisted partial size 100, got %d", rec.Size)
	}
}

func TestSizeWithCacheMissingDir(t *testing.T) {
	calc := NewCalculator(config.New(t.TempDir()))
	if got := calc.SizeWithCache("/no/such/dir/anywhere"); got != 0 {
		t.Errorf("expected 0 for missing directory, got %d", got)
	}
}

func TestSizeWithCacheSkipsUnreadable(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("root ignores permission bits")
	}

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "ok.txt"), 100)
	locked := filepath.Join(root, "locked")
	if err := os.Mkdir(locked, 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(locked, "hidden.txt"), 500)
	if err := os.Chmod(locked, 0000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(locked, 0755) })

	calc := NewCalculator(config.New(t.TempDir()))
	if got := calc.SizeWithCache(root); got != 100 {
		t.Errorf("expected unreadable subtree to contribute 0, got total %d", got)
	}
}

func TestParseDuOutput(t *testing.T) {
	out := "4096\t/data/movies\n123456\t/data/music\nnot-a-size\t/data/bad\nno tab here\n8192\t/data/with\ttab\n"

	sizes := ParseDuOutput(out)
	want := []DirSize{
		{Path: "/data/movies", Size: 4096},
		{Path: "/data/music", Size: 123456},
		{Path: "/data/with\ttab", Size: 8192},
	}
	if len(sizes) != len(want) {
		t.Fatalf("expected %d entries, got %d: %+v", len(want), len(sizes), sizes)
	}
	for i, w := range want {
		if sizes[i] != w {
			t.Errorf("entry %d: expected %+v, got %+v", i, w, sizes[i])
		}
	}
}

func TestParseDuOutputEmpty(t *testing.T) {
	if sizes := ParseDuOutput(""); sizes != nil {
		t.Errorf("expected nil for empty output, got %+v", sizes)
	}
}

func TestBulkSizesEmptyInput(t *testing.T) {
	calc := NewCalculator(config.New(t.TempDir()))
	if sizes := calc.BulkSizes(t.Context(), nil); sizes != nil {
		t.Errorf("expected nil for empty input, got %+v", sizes)
	}
}

package snapshot

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"dsv/pkg/config"
	"dsv/pkg/lazyjson"
)

// Store persists one snapshot file per volume inside the cache
// directory. All writes are full overwrites through atomic replacement,
// so concurrent readers always see a complete snapshot.
type Store struct {
	dir string

	mu       sync.Mutex
	managers map[string]lazyjson.Manager[Snapshot]
}

// NewStore creates a store rooted at the configured cache directory.
func NewStore(cfg *config.Config) *Store {
	return &Store{
		dir:      cfg.GetCacheDir(),
		managers: make(map[string]lazyjson.Manager[Snapshot]),
	}
}

// manager returns the lazyjson manager for one volume, creating it on
// first use. Managers are shared so every component in the process sees
// the same state for a volume.
func (s *Store) manager(mount string) lazyjson.Manager[Snapshot] {
	s.mu.Lock()
	defer s.mu.Unlock()

	mgr, ok := s.managers[mount]
	if !ok {
		path := filepath.Join(s.dir, "cache_"+safeName(mount)+".json")
		mgr = lazyjson.New(path, lazyjson.WithCreateIfMissing[Snapshot](false))
		s.managers[mount] = mgr
	}
	return mgr
}

// Load returns the persisted snapshot for a mount, or nil if there is
// none. A corrupt or half-written file is logged and treated as absent.
func (s *Store) Load(mount string) *Snapshot {
	snap, err := s.manager(mount).Get()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Error("discarding unreadable snapshot", "mount", mount, "err", err)
		}
		return nil
	}
	if snap == nil || snap.Timestamp == 0 || len(snap.Level1) == 0 {
		return nil
	}
	return snap.Clone()
}

// Save persists a snapshot, fully replacing the previous one.
func (s *Store) Save(snap *Snapshot) error {
	mgr := s.manager(snap.DiskMount)
	mgr.Replace(snap.Clone())
	if err := mgr.Save(); err != nil {
		return fmt.Errorf("failed to save snapshot for %s: %w", snap.DiskMount, err)
	}
	return nil
}

// Delete removes a volume's persisted snapshot. Used by the manual
// refresh path.
func (s *Store) Delete(mount string) error {
	return s.manager(mount).Delete()
}

// Mounts lists the volumes that currently have a persisted snapshot,
// discovered from the cache directory.
func (s *Store) Mounts() []string {
	files, err := filepath.Glob(filepath.Join(s.dir, "cache_*.json"))
	if err != nil {
		return nil
	}

	var mounts []string
	for _, file := range files {
		mount, ok := s.mountOf(file)
		if !ok {
			continue
		}
		mounts = append(mounts, mount)
	}
	return mounts
}

// mountOf recovers the mount path recorded inside a snapshot file. The
// safe file name is not invertible, so the disk_mount field is the
// source of truth.
func (s *Store) mountOf(file string) (string, bool) {
	s.mu.Lock()
	for mount, mgr := range s.managers {
		if mgr.Path() == file {
			s.mu.Unlock()
			return mount, true
		}
	}
	s.mu.Unlock()

	snap, err := lazyjson.New(file, lazyjson.WithCreateIfMissing[Snapshot](false)).Get()
	if err != nil || snap.DiskMount == "" {
		return "", false
	}
	return snap.DiskMount, true
}

// WriteUsagePercent writes the plain-text side file holding a volume's
// rounded usage percent, consumed by external tooling.
func (s *Store) WriteUsagePercent(mount string, percent float64) error {
	name := "usage_root.txt"
	if mount != "/" {
		name = "usage_" + strings.ReplaceAll(mount, "/", "_") + ".txt"
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}
	value := strconv.Itoa(int(math.Round(percent)))
	if err := os.WriteFile(filepath.Join(s.dir, name), []byte(value), 0644); err != nil {
		return fmt.Errorf("failed to write usage file for %s: %w", mount, err)
	}
	return nil
}

// safeName flattens a mount path into a filesystem-safe token.
func safeName(mount string) string {
	r := strings.NewReplacer("/", "_", ":", "_", `\`, "_")
	return r.Replace(mount)
}

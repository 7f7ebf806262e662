// Package config manages application-wide settings and directory layout.
// It follows XDG specifications for locating the cache directory and is
// constructed once at startup, then passed to every manager.
package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Defaults for the cache and scheduling knobs. The monitor tolerates
// stale data by design, so the TTLs are generous.
const (
	defaultFolderCacheTTL    = 12 * time.Hour
	defaultDiskCacheTTL      = 3 * time.Hour
	defaultReconcileInterval = 5 * time.Minute
	defaultScanInterval      = 7 * time.Minute
	defaultWalkDeadline      = 5 * time.Minute
	defaultBulkTimeout       = 30 * time.Minute
	defaultTopN              = 5
	defaultMinVolumeBytes    = 100 * 1024 * 1024
)

// Config holds the directory layout and timing knobs for dsv.
// Immutable after construction.
type Config struct {
	cacheDir string

	folderCacheTTL    time.Duration
	diskCacheTTL      time.Duration
	reconcileInterval time.Duration
	scanInterval      time.Duration
	walkDeadline      time.Duration
	bulkTimeout       time.Duration

	topN           int
	minVolumeBytes uint64
}

// GetCacheDir returns the directory holding snapshots, prefs and logs.
func (c *Config) GetCacheDir() string { return c.cacheDir }

// GetLogPath returns the monitor log file path.
func (c *Config) GetLogPath() string { return filepath.Join(c.cacheDir, "disk_monitor.log") }

// GetPrefsPath returns the persisted UI preferences file path.
func (c *Config) GetPrefsPath() string { return filepath.Join(c.cacheDir, "user_prefs.json") }

// GetFolderCacheTTL bounds the validity of a per-directory size record.
func (c *Config) GetFolderCacheTTL() time.Duration { return c.folderCacheTTL }

// GetDiskCacheTTL bounds the validity of a per-volume snapshot.
func (c *Config) GetDiskCacheTTL() time.Duration { return c.diskCacheTTL }

// GetReconcileInterval is the period of the consistency reconciler.
func (c *Config) GetReconcileInterval() time.Duration { return c.reconcileInterval }

// GetScanInterval is the period of the full volume rescan in the UI.
func (c *Config) GetScanInterval() time.Duration { return c.scanInterval }

// GetWalkDeadline caps the wall-clock time of one recursive size walk.
func (c *Config) GetWalkDeadline() time.Duration { return c.walkDeadline }

// GetBulkTimeout caps one external bulk du invocation.
func (c *Config) GetBulkTimeout() time.Duration { return c.bulkTimeout }

// GetTopN is the number of directories kept per hierarchy level.
func (c *Config) GetTopN() int { return c.topN }

// GetMinVolumeBytes is the smallest volume worth showing.
func (c *Config) GetMinVolumeBytes() uint64 { return c.minVolumeBytes }

// Init initializes the configuration using XDG base directories.
func Init() (*Config, error) {
	return New(filepath.Join(xdg.CacheHome, "dsv")), nil
}

// New builds a Config rooted at the given cache directory with default
// timing knobs. Tests use this to point dsv at a temp directory.
func New(cacheDir string) *Config {
	return &Config{
		cacheDir:          cacheDir,
		folderCacheTTL:    defaultFolderCacheTTL,
		diskCacheTTL:      defaultDiskCacheTTL,
		reconcileInterval: defaultReconcileInterval,
		scanInterval:      defaultScanInterval,
		walkDeadline:      defaultWalkDeadline,
		bulkTimeout:       defaultBulkTimeout,
		topN:              defaultTopN,
		minVolumeBytes:    defaultMinVolumeBytes,
	}
}

// Package volumes enumerates mounted physical volumes and their usage.
package volumes

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// Volume describes one mounted physical volume with corrected usage
// figures.
type Volume struct {
	Mount   string
	Name    string
	Device  string
	FSType  string
	Total   uint64
	Used    uint64
	Free    uint64
	Percent float64
}

// Usage holds raw capacity figures for one mount.
type Usage struct {
	Total uint64
	Free  uint64
}

// pseudoFSTypes are filesystem types that never represent physical
// storage worth monitoring.
var pseudoFSTypes = map[string]struct{}{
	"devfs":       {},
	"autofs":      {},
	"tmpfs":       {},
	"devtmpfs":    {},
	"proc":        {},
	"sysfs":       {},
	"cgroup":      {},
	"cgroup2":     {},
	"devpts":      {},
	"securityfs":  {},
	"debugfs":     {},
	"tracefs":     {},
	"configfs":    {},
	"fusectl":     {},
	"pstore":      {},
	"bpf":         {},
	"mqueue":      {},
	"hugetlbfs":   {},
	"binfmt_misc": {},
	"squashfs":    {},
	"overlay":     {},
	"ramfs":       {},
}

// systemVolumePrefixes are macOS auxiliary volumes hidden from the
// dashboard.
var systemVolumePrefixes = []string{
	"/System/Volumes/Data",
	"/System/Volumes/Preboot",
	"/System/Volumes/Update",
	"/System/Volumes/VM",
	"/System/Volumes/iSCPreboot",
	"/private/var/vm",
}

// mountEntry is one line of the mount table.
type mountEntry struct {
	Device string
	Mount  string
	FSType string
}

// List returns the mounted physical volumes, filtered and with usage
// figures corrected so used = total - free. Volumes smaller than
// minBytes are hidden; ESP partitions and the like are noise on a usage
// dashboard. Volumes whose usage cannot be read are skipped.
func List(minBytes uint64) []Volume {
	entries, err := readMounts()
	if err != nil {
		slog.Error("failed to read mount table", "err", err)
		return nil
	}
	return filterVolumes(entries, minBytes, statfsUsage)
}

// filterVolumes applies the physical-volume filters to raw mount
// entries, reading capacity through usageFn.
func filterVolumes(entries []mountEntry, minBytes uint64, usageFn func(string) (Usage, error)) []Volume {
	var vols []Volume
	seen := make(map[string]struct{})
	for _, e := range entries {
		if _, dup := seen[e.Mount]; dup {
			continue
		}
		if _, pseudo := pseudoFSTypes[e.FSType]; pseudo {
			continue
		}
		if strings.Contains(e.Device, "loop") {
			continue
		}
		if isSystemVolume(e.Mount) {
			continue
		}

		u, err := usageFn(e.Mount)
		if err != nil {
			slog.Error("failed to read volume usage", "mount", e.Mount, "err", err)
			continue
		}
		if u.Total < minBytes {
			continue
		}

		// Some platforms report used/free figures that double-count on
		// the root volume; recompute used from total and free.
		used := u.Total - u.Free
		percent := 0.0
		if u.Total > 0 {
			percent = 100 * float64(used) / float64(u.Total)
		}

		seen[e.Mount] = struct{}{}
		vols = append(vols, Volume{
			Mount:   e.Mount,
			Name:    volumeName(e.Mount),
			Device:  e.Device,
			FSType:  e.FSType,
			Total:   u.Total,
			Used:    used,
			Free:    u.Free,
			Percent: percent,
		})
	}
	return vols
}

// UsagePercent returns the corrected usage percent for one mount.
func UsagePercent(mount string) (float64, error) {
	u, err := statfsUsage(mount)
	if err != nil {
		return 0, err
	}
	if u.Total == 0 {
		return 0, nil
	}
	return 100 * float64(u.Total-u.Free) / float64(u.Total), nil
}

// statfsUsage reads capacity for a mount straight from the filesystem.
func statfsUsage(mount string) (Usage, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(mount, &stat); err != nil {
		return Usage{}, fmt.Errorf("statfs %s: %w", mount, err)
	}
	return Usage{
		Total: stat.Blocks * uint64(stat.Bsize),
		Free:  stat.Bavail * uint64(stat.Bsize),
	}, nil
}

// readMounts parses the kernel mount table.
func readMounts() ([]mountEntry, error) {
	data, err := os.ReadFile("/proc/self/mounts")
	if err != nil {
		return nil, err
	}

	var entries []mountEntry
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		entries = append(entries, mountEntry{
			Device: unescapeMount(fields[0]),
			Mount:  unescapeMount(fields[1]),
			FSType: fields[2],
		})
	}
	return entries, nil
}

// unescapeMount decodes the octal escapes the kernel uses for spaces
// and tabs in mount paths.
var mountUnescaper = strings.NewReplacer(`\040`, " ", `\011`, "\t", `\012`, "\n", `\134`, `\`)

func unescapeMount(s string) string {
	return mountUnescaper.Replace(s)
}

func isSystemVolume(mount string) bool {
	for _, prefix := range systemVolumePrefixes {
		if strings.HasPrefix(mount, prefix) {
			return true
		}
	}
	return false
}

// volumeName derives the display name for a mount point.
func volumeName(mount string) string {
	if mount == "/" {
		return "root"
	}
	return filepath.Base(strings.TrimRight(mount, "/"))
}

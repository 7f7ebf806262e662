package volumes

import (
	"errors"
	"testing"
)

func fixedUsage(total, free uint64) func(string) (Usage, error) {
	return func(string) (Usage, error) {
		return Usage{Total: total, Free: free}, nil
	}
}

func TestFilterVolumesPseudoFS(t *testing.T) {
	entries := []mountEntry{
		{Device: "/dev/sda1", Mount: "/", FSType: "ext4"},
		{Device: "proc", Mount: "/proc", FSType: "proc"},
		{Device: "tmpfs", Mount: "/run", FSType: "tmpfs"},
		{Device: "cgroup2", Mount: "/sys/fs/cgroup", FSType: "cgroup2"},
		{Device: "/dev/loop3", Mount: "/snap/thing", FSType: "ext4"},
	}

	vols := filterVolumes(entries, 0, fixedUsage(1<<30, 1<<29))
	if len(vols) != 1 {
		t.Fatalf("expected 1 volume, got %d: %+v", len(vols), vols)
	}
	if vols[0].Mount != "/" {
		t.Errorf("expected /, got %s", vols[0].Mount)
	}
	if vols[0].Name != "root" {
		t.Errorf("expected name root, got %s", vols[0].Name)
	}
}

func TestFilterVolumesSmallVolume(t *testing.T) {
	entries := []mountEntry{
		{Device: "/dev/sda1", Mount: "/boot/efi", FSType: "vfat"},
	}

	vols := filterVolumes(entries, 100*1024*1024, fixedUsage(50*1024*1024, 10*1024*1024))
	if len(vols) != 0 {
		t.Errorf("expected sub-100MiB volume to be dropped, got %+v", vols)
	}
}

func TestFilterVolumesSystemVolume(t *testing.T) {
	entries := []mountEntry{
		{Device: "/dev/disk1s1", Mount: "/System/Volumes/Data", FSType: "apfs"},
		{Device: "/dev/disk1s2", Mount: "/private/var/vm", FSType: "apfs"},
	}

	if vols := filterVolumes(entries, 0, fixedUsage(1<<40, 1<<39)); len(vols) != 0 {
		t.Errorf("expected system volumes to be dropped, got %+v", vols)
	}
}

func TestFilterVolumesUsedCorrection(t *testing.T) {
	entries := []mountEntry{
		{Device: "/dev/sda1", Mount: "/data", FSType: "ext4"},
	}

	vols := filterVolumes(entries, 0, fixedUsage(1000, 250))
	if len(vols) != 1 {
		t.Fatalf("expected 1 volume, got %d", len(vols))
	}
	v := vols[0]
	if v.Used != 750 {
		t.Errorf("expected used = total - free = 750, got %d", v.Used)
	}
	if v.Percent != 75 {
		t.Errorf("expected 75%%, got %v", v.Percent)
	}
	if v.Name != "data" {
		t.Errorf("expected name data, got %s", v.Name)
	}
}

func TestFilterVolumesUsageError(t *testing.T) {
	entries := []mountEntry{
		{Device: "/dev/sda1", Mount: "/broken", FSType: "ext4"},
		{Device: "/dev/sdb1", Mount: "/ok", FSType: "ext4"},
	}

	usageFn := func(mount string) (Usage, error) {
		if mount == "/broken" {
			return Usage{}, errors.New("boom")
		}
		return Usage{Total: 1 << 30, Free: 1 << 29}, nil
	}

	vols := filterVolumes(entries, 0, usageFn)
	if len(vols) != 1 || vols[0].Mount != "/ok" {
		t.Errorf("expected only /ok to survive, got %+v", vols)
	}
}

func TestFilterVolumesDuplicateMount(t *testing.T) {
	entries := []mountEntry{
		{Device: "/dev/sda1", Mount: "/data", FSType: "ext4"},
		{Device: "/dev/sda1", Mount: "/data", FSType: "ext4"},
	}

	if vols := filterVolumes(entries, 0, fixedUsage(1<<30, 1<<29)); len(vols) != 1 {
		t.Errorf("expected duplicate mount collapsed, got %+v", vols)
	}
}

func TestUnescapeMount(t *testing.T) {
	if got := unescapeMount(`/mnt/My\040Disk`); got != "/mnt/My Disk" {
		t.Errorf("expected escaped space decoded, got %q", got)
	}
}

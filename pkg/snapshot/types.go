// Package snapshot builds and persists the top-N hierarchical size tree
// for each volume.
package snapshot

import (
	"time"
)

// Snapshot is the persisted 3-level top-N size tree for one volume.
// Node sizes should each be at least the sum of their children; the
// reconciler repairs temporary violations.
type Snapshot struct {
	DiskMount string       `json:"disk_mount"`
	Timestamp float64      `json:"timestamp"`
	Percent   float64      `json:"percent"`
	Level1    []Level1Node `json:"level_1"`

	// PercentKnown reports whether Percent came from a live usage
	// reading during this build. Not persisted; gates the usage side
	// file so a failed reading never overwrites the last good value.
	PercentKnown bool `json:"-"`
}

// Level1Node is a largest-subdirectory entry directly under the mount.
type Level1Node struct {
	Path   string       `json:"path"`
	Size   int64        `json:"size"`
	Level2 []Level2Node `json:"level_2"`
}

// Level2Node is one level below a Level1Node.
type Level2Node struct {
	Path   string       `json:"path"`
	Size   int64        `json:"size"`
	Level3 []Level3Node `json:"level_3"`
}

// Level3Node is a leaf; the tree stops here.
type Level3Node struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// Age reports how long ago the snapshot was built.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return time.Duration(float64(now.Unix())-s.Timestamp) * time.Second
}

// Stale reports whether the snapshot has outlived ttl.
func (s *Snapshot) Stale(ttl time.Duration, now time.Time) bool {
	return s.Age(now) > ttl
}

// SumLevel2 is the total of the node's recorded children sizes.
func (n *Level1Node) SumLevel2() int64 {
	var sum int64
	for _, c := range n.Level2 {
		sum += c.Size
	}
	return sum
}

// SumLevel3 is the total of the node's recorded children sizes.
func (n *Level2Node) SumLevel3() int64 {
	var sum int64
	for _, c := range n.Level3 {
		sum += c.Size
	}
	return sum
}

// Clone returns a deep copy, so callers can hold snapshots without
// aliasing the store's in-memory state.
func (s *Snapshot) Clone() *Snapshot {
	out := *s
	out.Level1 = make([]Level1Node, len(s.Level1))
	for i, l1 := range s.Level1 {
		c1 := l1
		c1.Level2 = make([]Level2Node, len(l1.Level2))
		for j, l2 := range l1.Level2 {
			c2 := l2
			c2.Level3 = append([]Level3Node(nil), l2.Level3...)
			c1.Level2[j] = c2
		}
		out.Level1[i] = c1
	}
	return &out
}

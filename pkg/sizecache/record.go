package sizecache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// RecordFileName is the per-directory cache file, written inside the
// directory it describes.
const RecordFileName = ".dsvFolderSize"

const recordVersion = "1.0"

// ErrCorruptCache reports a record that is unreadable or missing
// required fields. Callers treat it as a cache miss, never as fatal.
var ErrCorruptCache = errors.New("corrupt size record")

// Record is the persisted size record a directory carries for itself.
type Record struct {
	Timestamp   float64 `json:"timestamp"`
	Size        int64   `json:"size"`
	Signature   string  `json:"signature"`
	Version     string  `json:"version"`
	GeneratedBy string  `json:"generated_by"`
}

// DecodeRecord parses a raw record payload, requiring the timestamp,
// size and signature fields to be present.
func DecodeRecord(data []byte) (*Record, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCache, err)
	}
	for _, key := range []string{"timestamp", "size", "signature"} {
		if _, ok := fields[key]; !ok {
			return nil, fmt.Errorf("%w: missing field %q", ErrCorruptCache, key)
		}
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCache, err)
	}
	return &rec, nil
}

// ReadRecord returns the cached size for dir if a record exists, has
// not outlived ttl, and still matches the directory's signature.
func ReadRecord(dir string, ttl time.Duration, now time.Time) (int64, bool) {
	data, err := os.ReadFile(filepath.Join(dir, RecordFileName))
	if err != nil {
		return 0, false
	}

	rec, err := DecodeRecord(data)
	if err != nil {
		slog.Error("discarding size record", "dir", dir, "err", err)
		return 0, false
	}

	age := now.Unix() - int64(rec.Timestamp)
	if float64(age) > ttl.Seconds() {
		return 0, false
	}

	if rec.Signature != Signature(dir) {
		slog.Debug("size record signature mismatch", "dir", dir)
		return 0, false
	}

	return rec.Size, true
}

// WriteRecord persists a fresh size record inside dir, replacing any
// previous one atomically. The file is made non-writable afterwards,
// best effort, to discourage casual edits.
func WriteRecord(dir string, size int64, now time.Time) error {
	rec := Record{
		Timestamp:   float64(now.Unix()),
		Size:        size,
		Signature:   Signature(dir),
		Version:     recordVersion,
		GeneratedBy: "dsv",
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal size record: %w", err)
	}

	target := filepath.Join(dir, RecordFileName)
	temp := target + ".tmp"
	if err := os.WriteFile(temp, data, 0644); err != nil {
		return fmt.Errorf("failed to write size record: %w", err)
	}
	if err := os.Rename(temp, target); err != nil {
		os.Remove(temp)
		return fmt.Errorf("failed to replace size record: %w", err)
	}

	if fi, err := os.Stat(target); err == nil {
		_ = os.Chmod(target, fi.Mode().Perm()&^0022)
	}

	return nil
}

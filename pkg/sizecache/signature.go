// Package sizecache computes recursive directory sizes cheaply by
// persisting a size record inside every directory it has measured.
// Records carry a device+inode signature so a cache entry dies with the
// directory it described, even when the path is recreated under the
// same name.
package sizecache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"syscall"
)

// SignatureSentinel is the token used when a directory cannot be
// stat'ed. It never validates against a real signature.
const SignatureSentinel = "00000000"

// Signature returns a compact identity fingerprint for a directory,
// derived from its device and inode numbers. Inaccessible paths yield
// the sentinel token.
func Signature(path string) string {
	fi, err := os.Stat(path)
	if err != nil {
		return SignatureSentinel
	}
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return SignatureSentinel
	}
	sum := md5.Sum([]byte(fmt.Sprintf("%s:%d:%d", path, st.Dev, st.Ino)))
	return hex.EncodeToString(sum[:])[:8]
}

// inodeKey identifies a directory by device and inode, for cycle
// detection during walks. ok is false when the path cannot be stat'ed.
func inodeKey(path string) (key string, ok bool) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", false
	}
	st, sok := fi.Sys().(*syscall.Stat_t)
	if !sok {
		return "", false
	}
	return fmt.Sprintf("%d:%d", st.Dev, st.Ino), true
}

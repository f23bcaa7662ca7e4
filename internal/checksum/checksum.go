// Package checksum fingerprints document content. The index stores a
// digest per file so sync and the watcher can tell real edits from
// no-op writes, and the service uses it to recognize its own saves
// echoing back through the watcher.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

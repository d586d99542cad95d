// Package fileid derives stable unit IDs from stored file paths.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const imagePrefix = "image_"

// ImageUnitID returns a stable unit ID for an image stored at absolutePath.
// The same path always yields the same ID, so rescanning the managed image
// root (startup sync, watcher events) never duplicates units.
func ImageUnitID(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return imagePrefix + hex.EncodeToString(hash[:])
}

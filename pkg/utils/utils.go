package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sha256Hex returns the hex encoded SHA-256 digest of data.
func Sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HasImageExtension reports whether the filename carries one of the
// supported raster extensions.
func HasImageExtension(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range []string{".png", ".jpg", ".jpeg", ".bmp"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

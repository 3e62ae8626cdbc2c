package processor

import (
	"crypto/sha256"
	"encoding/hex"
)

// DedupeKeyLength is the length of a hex-encoded SHA-256 digest.
const DedupeKeyLength = sha256.Size * 2

// DedupeKey fingerprints an item by straight concatenation of title and link.
// No normalization is applied: case, whitespace and URL variants all differ.
func DedupeKey(title, link string) string {
	sum := sha256.Sum256([]byte(title + link))
	return hex.EncodeToString(sum[:])
}

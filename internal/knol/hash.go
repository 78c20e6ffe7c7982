package knol

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Normalize cleans a field value before it is checksummed.
// It trims surrounding whitespace and normalizes line endings. Case is kept:
// "Cat" and "cat" are different values for uniqueness purposes.
func Normalize(value string) string {
	v := strings.ReplaceAll(value, "\r\n", "\n")
	return strings.TrimSpace(v)
}

// Checksum returns the SHA-256 of a normalized field value as a hex string.
func Checksum(value string) string {
	sum := sha256.Sum256([]byte(Normalize(value)))
	return fmt.Sprintf("%x", sum)
}

// MaybeChecksum returns the checksum for unique fields and "" otherwise;
// only unique fields are ever looked up by checksum.
func MaybeChecksum(value string, unique bool) string {
	if !unique {
		return ""
	}
	return Checksum(value)
}

package checkpoint

import (
	"crypto/sha256"
)

// ComputeChecksum computes the SHA-256 checksum of the concatenated parts.
func ComputeChecksum(parts ...[]byte) [ChecksumSize]byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var sum [ChecksumSize]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// ValidateChecksum compares computed checksum against stored checksum.
// Returns ErrChecksumMismatch if they don't match.
func ValidateChecksum(computed, stored [ChecksumSize]byte) error {
	if computed != stored {
		return ErrChecksumMismatch
	}
	return nil
}

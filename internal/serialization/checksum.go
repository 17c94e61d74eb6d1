package serialization

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Checksum is the SHA-256 digest that closes every file. It covers the JSON
// header and the block data, not the fixed header.
type Checksum [ChecksumSize]byte

// String returns the digest in hex.
func (c Checksum) String() string {
	return hex.EncodeToString(c[:])
}

// ComputeChecksumReader hashes a file body streamed from r.
func ComputeChecksumReader(r io.Reader) (Checksum, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return Checksum{}, err
	}
	var sum Checksum
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

// ValidateChecksum wraps ErrChecksumMismatch when the digests differ.
func ValidateChecksum(computed, stored Checksum) error {
	if computed != stored {
		return fmt.Errorf("%w: computed %s, stored %s", ErrChecksumMismatch, computed, stored)
	}
	return nil
}

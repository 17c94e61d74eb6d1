package serialization

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrChecksumMismatch   = errors.New("checksum mismatch: file may be corrupted")
	ErrOffsetOverlap      = errors.New("block offsets overlap")
	ErrUnorderedBlocks    = errors.New("block records are not in ascending index order")
	ErrOutOfBounds        = errors.New("block extends beyond data section")
	ErrNegativeOffset     = errors.New("negative offset or size")
	ErrTooManyBlocks      = errors.New("too many blocks in file")
	ErrHeaderTooLarge     = errors.New("header exceeds maximum size")
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrNotSymmetric       = errors.New("file does not hold a symmetric tensor")
)

// ValidationError provides detailed information about validation failures.
type ValidationError struct {
	Type    string // Type of error (e.g., "offset_overlap", "out_of_bounds")
	Block   string // Primary block index involved
	Block2  string // Secondary block index (for overlap errors)
	Details string // Additional details
	Err     error  // Matching sentinel, if any
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Block2 != "" {
		return fmt.Sprintf("%s: blocks %s and %s: %s", e.Type, e.Block, e.Block2, e.Details)
	}
	if e.Block != "" {
		return fmt.Sprintf("%s: block %s: %s", e.Type, e.Block, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Details)
}

// Unwrap returns the matching sentinel.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

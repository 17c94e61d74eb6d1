package tensor

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every engine package. Match with errors.Is.
var (
	// ErrShapeMismatch is returned when block counts or dense extents of an
	// operand or result disagree with what an operation infers.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrSymbolMismatch is returned when two symbolic mode lists, or a
	// permutation request, do not correspond one to one.
	ErrSymbolMismatch = errors.New("symbol mismatch")

	// ErrRankUnsupported is returned for ranks beyond MaxRank.
	ErrRankUnsupported = errors.New("rank unsupported")

	// ErrTerminatedAbnormally is returned when a backend factorization fails.
	ErrTerminatedAbnormally = errors.New("terminated abnormally")

	// ErrForbiddenBlock marks a block coordinate that violates the
	// conservation law. Inserts refuse such blocks without returning it;
	// it comes from the Must* helpers and from validation.
	ErrForbiddenBlock = errors.New("structurally forbidden block")
)

// ShapeError provides details about a shape mismatch.
type ShapeError struct {
	Op   string // Operation that detected the mismatch
	Want []int  // Expected extents or block counts
	Got  []int  // Observed extents or block counts
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %v: want %v, got %v", e.Op, ErrShapeMismatch, e.Want, e.Got)
}

// Unwrap makes errors.Is(err, ErrShapeMismatch) hold.
func (e *ShapeError) Unwrap() error {
	return ErrShapeMismatch
}

// shapeErr builds a ShapeError with copied extents.
func shapeErr(op string, want, got []int) error {
	return &ShapeError{
		Op:   op,
		Want: append([]int(nil), want...),
		Got:  append([]int(nil), got...),
	}
}

// NewShapeError builds a ShapeError for op.
func NewShapeError(op string, want, got []int) error {
	return shapeErr(op, want, got)
}

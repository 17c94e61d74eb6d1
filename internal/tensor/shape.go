package tensor

import "fmt"

// MaxRank is the largest tensor rank the engine accepts.
// Dense permutation kernels are specialized up to rank 4 and fall back to a
// generic odometer for anything above.
const MaxRank = 12

// Shape represents the dense extents of one block.
type Shape []int

// NumElements returns the total number of elements in the block.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks if the shape is valid (all dimensions > 0, rank <= MaxRank).
func (s Shape) Validate() error {
	if len(s) > MaxRank {
		return fmt.Errorf("shape %v: %w: rank %d exceeds %d", s, ErrRankUnsupported, len(s), MaxRank)
	}
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// Permute returns the shape with mode i taken from s[perm[i]].
func (s Shape) Permute(perm []int) Shape {
	out := make(Shape, len(perm))
	for i, p := range perm {
		out[i] = s[p]
	}
	return out
}

// Select returns the extents at the given modes, in that order.
func (s Shape) Select(modes []int) Shape {
	return s.Permute(modes)
}

// ComputeStrides calculates row-major strides for the shape.
// Strides define memory layout: stride[i] = product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// Split returns the products of the first n extents and of the remaining ones.
// It is how N-D blocks are viewed as matrices.
func (s Shape) Split(n int) (rows, cols int) {
	return s[:n].NumElements(), s[n:].NumElements()
}

// Concat returns the extents of s followed by those of other.
func (s Shape) Concat(other Shape) Shape {
	out := make(Shape, 0, len(s)+len(other))
	out = append(out, s...)
	return append(out, other...)
}

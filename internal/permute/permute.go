// Package permute implements mode permutations of dense blocks and the
// bookkeeping helpers shared by the sparse containers and the contraction
// planner.
//
// A permutation perm places source mode perm[i] at destination mode i, the
// same convention as an axes list passed to a transpose.
package permute

import (
	"fmt"

	"github.com/born-ml/qtensor/internal/tensor"
)

// Validate checks that perm is a bijection on [0, rank).
func Validate(perm []int, rank int) error {
	if rank > tensor.MaxRank {
		return fmt.Errorf("permute: %w: rank %d exceeds %d", tensor.ErrRankUnsupported, rank, tensor.MaxRank)
	}
	if len(perm) != rank {
		return fmt.Errorf("permute: %w: %d axes for rank %d", tensor.ErrSymbolMismatch, len(perm), rank)
	}
	seen := make([]bool, rank)
	for _, ax := range perm {
		if ax < 0 || ax >= rank {
			return fmt.Errorf("permute: %w: invalid axis %d for rank %d", tensor.ErrSymbolMismatch, ax, rank)
		}
		if seen[ax] {
			return fmt.Errorf("permute: %w: duplicate axis %d", tensor.ErrSymbolMismatch, ax)
		}
		seen[ax] = true
	}
	return nil
}

// Identity returns the identity permutation of the given rank.
func Identity(rank int) []int {
	perm := make([]int, rank)
	for i := range perm {
		perm[i] = i
	}
	return perm
}

// IsIdentity reports whether perm leaves every mode in place.
func IsIdentity(perm []int) bool {
	for i, p := range perm {
		if p != i {
			return false
		}
	}
	return true
}

// Inverse returns the permutation undoing perm.
func Inverse(perm []int) []int {
	inv := make([]int, len(perm))
	for i, p := range perm {
		inv[p] = i
	}
	return inv
}

// Apply returns xs reordered so that element i is xs[perm[i]].
func Apply[T any](xs []T, perm []int) []T {
	out := make([]T, len(perm))
	for i, p := range perm {
		out[i] = xs[p]
	}
	return out
}

// FromSymbols derives the permutation that reorders modes labelled from into
// the order labelled to. Both lists must hold the same distinct symbols.
//
// Example:
//
//	FromSymbols([]rune("ijk"), []rune("kij")) // [2 0 1]
func FromSymbols[S comparable](from, to []S) ([]int, error) {
	if len(from) != len(to) {
		return nil, fmt.Errorf("permute: %w: %v vs %v", tensor.ErrSymbolMismatch, from, to)
	}
	pos := make(map[S]int, len(from))
	for i, s := range from {
		if _, dup := pos[s]; dup {
			return nil, fmt.Errorf("permute: %w: duplicate symbol %v", tensor.ErrSymbolMismatch, s)
		}
		pos[s] = i
	}
	perm := make([]int, len(to))
	used := make([]bool, len(from))
	for i, s := range to {
		p, ok := pos[s]
		if !ok || used[p] {
			return nil, fmt.Errorf("permute: %w: symbol %v in %v does not match %v", tensor.ErrSymbolMismatch, s, to, from)
		}
		used[p] = true
		perm[i] = p
	}
	return perm, nil
}

package tensor

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// MultiIndex identifies one block (not one element) by its per-mode block
// coordinates.
type MultiIndex []int

// Compare orders multi-indices lexicographically.
// A shorter index that is a prefix of a longer one sorts first.
func (m MultiIndex) Compare(other MultiIndex) int {
	n := min(len(m), len(other))
	for i := 0; i < n; i++ {
		switch {
		case m[i] < other[i]:
			return -1
		case m[i] > other[i]:
			return 1
		}
	}
	switch {
	case len(m) < len(other):
		return -1
	case len(m) > len(other):
		return 1
	}
	return 0
}

// Less reports whether m sorts before other.
func (m MultiIndex) Less(other MultiIndex) bool {
	return m.Compare(other) < 0
}

// Equal reports whether both indices hold the same coordinates.
func (m MultiIndex) Equal(other MultiIndex) bool {
	return m.Compare(other) == 0
}

// Clone returns a copy of the index.
func (m MultiIndex) Clone() MultiIndex {
	clone := make(MultiIndex, len(m))
	copy(clone, m)
	return clone
}

// Permute returns the index with mode i taken from m[perm[i]].
func (m MultiIndex) Permute(perm []int) MultiIndex {
	out := make(MultiIndex, len(perm))
	for i, p := range perm {
		out[i] = m[p]
	}
	return out
}

// Select returns the coordinates at the given modes, in that order.
func (m MultiIndex) Select(modes []int) MultiIndex {
	out := make(MultiIndex, len(modes))
	for i, p := range modes {
		out[i] = m[p]
	}
	return out
}

// Key returns a compact comparable encoding of the index, for use as a map
// key.
func (m MultiIndex) Key() string {
	buf := make([]byte, 0, 2*len(m))
	for _, v := range m {
		buf = binary.AppendUvarint(buf, uint64(v))
	}
	return string(buf)
}

// Concat returns the coordinates of m followed by those of other.
func (m MultiIndex) Concat(other MultiIndex) MultiIndex {
	out := make(MultiIndex, 0, len(m)+len(other))
	out = append(out, m...)
	return append(out, other...)
}

// String formats the index as "[i0,i1,...]".
func (m MultiIndex) String() string {
	parts := make([]string, len(m))
	for i, v := range m {
		parts[i] = strconv.Itoa(v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// BlockShape gives the number of blocks along each mode.
type BlockShape []int

// Rank returns the number of modes.
func (s BlockShape) Rank() int {
	return len(s)
}

// NumBlocks returns the number of block coordinates, stored or not.
func (s BlockShape) NumBlocks() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Contains reports whether idx is a valid coordinate under the shape.
func (s BlockShape) Contains(idx MultiIndex) bool {
	if len(idx) != len(s) {
		return false
	}
	for i, v := range idx {
		if v < 0 || v >= s[i] {
			return false
		}
	}
	return true
}

// Validate checks rank limits and that no mode has a negative block count.
func (s BlockShape) Validate() error {
	if len(s) > MaxRank {
		return fmt.Errorf("block shape %v: %w: rank %d exceeds %d", s, ErrRankUnsupported, len(s), MaxRank)
	}
	for i, d := range s {
		if d < 0 {
			return fmt.Errorf("invalid block count at mode %d: %d", i, d)
		}
	}
	return nil
}

// Equal checks if two block shapes are equal.
func (s BlockShape) Equal(other BlockShape) bool {
	return Shape(s).Equal(Shape(other))
}

// Clone returns a copy of the block shape.
func (s BlockShape) Clone() BlockShape {
	return BlockShape(Shape(s).Clone())
}

// Permute returns the block shape with mode i taken from s[perm[i]].
func (s BlockShape) Permute(perm []int) BlockShape {
	return BlockShape(Shape(s).Permute(perm))
}

// Each calls fn for every coordinate under the shape in lexicographic order.
// The index passed to fn is reused between calls.
func (s BlockShape) Each(fn func(idx MultiIndex) bool) {
	for _, d := range s {
		if d == 0 {
			return
		}
	}
	idx := make(MultiIndex, len(s))
	for {
		if !fn(idx) {
			return
		}
		i := len(s) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < s[i] {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return
		}
	}
}

package serialization

import (
	"fmt"
	"sort"

	"github.com/born-ml/qtensor/internal/tensor"
)

// Validation limits for security and resource protection.
const (
	MaxHeaderSize = 100 * 1024 * 1024 // 100MB - maximum header size
	MaxBlockCount = 1_000_000         // Maximum number of blocks in a file
	MaxDataSize   = 1 << 34           // 16GB - maximum block data size
)

// ValidateBlockOffsets checks for overlapping block regions and
// out-of-bounds access.
func ValidateBlockOffsets(blocks []BlockMeta, dataSize int64) error {
	if len(blocks) > MaxBlockCount {
		return &ValidationError{
			Type:    "too_many_blocks",
			Details: fmt.Sprintf("got %d, max %d", len(blocks), MaxBlockCount),
			Err:     ErrTooManyBlocks,
		}
	}

	sorted := make([]BlockMeta, len(blocks))
	copy(sorted, blocks)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	for i, b := range sorted {
		name := tensor.MultiIndex(b.Index).String()
		if b.Offset < 0 || b.Size < 0 {
			return &ValidationError{
				Type:    "negative_offset",
				Block:   name,
				Details: fmt.Sprintf("offset=%d, size=%d (negative values not allowed)", b.Offset, b.Size),
				Err:     ErrNegativeOffset,
			}
		}
		if b.Offset+b.Size > dataSize {
			return &ValidationError{
				Type:    "out_of_bounds",
				Block:   name,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", b.Offset, b.Size, dataSize),
				Err:     ErrOutOfBounds,
			}
		}
		if i < len(sorted)-1 {
			next := sorted[i+1]
			if b.Offset+b.Size > next.Offset {
				return &ValidationError{
					Type:    "offset_overlap",
					Block:   name,
					Block2:  tensor.MultiIndex(next.Index).String(),
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap", b.Offset, b.Offset+b.Size, next.Offset, next.Offset+next.Size),
					Err:     ErrOffsetOverlap,
				}
			}
		}
	}
	return nil
}

// ValidateHeader checks the header's internal consistency: ranks, block
// indices inside the block shape and strictly ascending, block extents
// matching registered extents and byte sizes, and non-overlapping regions.
func ValidateHeader(h *Header, dataSize int64) error {
	shape := tensor.BlockShape(h.BlockShape)
	if err := shape.Validate(); err != nil {
		return &ValidationError{Type: "invalid_shape", Details: err.Error(), Err: err}
	}
	if len(h.Dims) != len(shape) {
		return &ValidationError{
			Type:    "invalid_dims",
			Details: fmt.Sprintf("%d dim lists for rank %d", len(h.Dims), len(shape)),
			Err:     tensor.ErrShapeMismatch,
		}
	}
	for m, d := range h.Dims {
		if len(d) != shape[m] {
			return &ValidationError{
				Type:    "invalid_dims",
				Details: fmt.Sprintf("mode %d has %d extents for %d blocks", m, len(d), shape[m]),
				Err:     tensor.ErrShapeMismatch,
			}
		}
	}

	var prev tensor.MultiIndex
	for i, b := range h.Blocks {
		idx := tensor.MultiIndex(b.Index)
		name := idx.String()
		if !shape.Contains(idx) || len(b.Shape) != len(idx) {
			return &ValidationError{
				Type:    "invalid_index",
				Block:   name,
				Details: fmt.Sprintf("outside block shape %v", h.BlockShape),
				Err:     tensor.ErrShapeMismatch,
			}
		}
		if i > 0 && !prev.Less(idx) {
			return &ValidationError{
				Type:    "unordered_blocks",
				Block:   name,
				Details: fmt.Sprintf("does not follow %s", prev),
				Err:     ErrUnorderedBlocks,
			}
		}
		prev = idx
		for m, c := range idx {
			if d := h.Dims[m][c]; d != 0 && d != b.Shape[m] {
				return &ValidationError{
					Type:    "invalid_extent",
					Block:   name,
					Details: fmt.Sprintf("mode %d extent %d, registered %d", m, b.Shape[m], d),
					Err:     tensor.ErrShapeMismatch,
				}
			}
		}
		if want := int64(tensor.Shape(b.Shape).NumElements()) * elementSize; want != b.Size {
			return &ValidationError{
				Type:    "invalid_size",
				Block:   name,
				Details: fmt.Sprintf("size %d bytes, extents need %d", b.Size, want),
				Err:     tensor.ErrShapeMismatch,
			}
		}
	}
	return ValidateBlockOffsets(h.Blocks, dataSize)
}

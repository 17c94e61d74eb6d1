package serialization

import (
	"encoding/json"
	"time"
)

// Format constants.
const (
	MagicBytes      = "QTNS"
	FormatVersion   = 1
	ChecksumSize    = 32 // SHA-256
	FixedHeaderSize = 4 + 4 + 4 + 8
	elementSize     = 8 // float64
)

// Flags.
const (
	FlagSymmetric uint32 = 1 << 0 // total label and label lists present
)

// Header is the JSON header of a tensor file.
type Header struct {
	FormatVersion int             `json:"format_version"`
	CreatedAt     time.Time       `json:"created_at"`
	BlockShape    []int           `json:"block_shape"`
	Dims          [][]int         `json:"dims"`
	Total         json.RawMessage `json:"total,omitempty"`
	Labels        json.RawMessage `json:"labels,omitempty"`
	Blocks        []BlockMeta     `json:"blocks"`
}

// Rank returns the number of modes.
func (h *Header) Rank() int {
	return len(h.BlockShape)
}

// DataSize returns the size in bytes of the block data section.
func (h *Header) DataSize() int64 {
	var n int64
	for _, b := range h.Blocks {
		n += b.Size
	}
	return n
}

// BlockMeta describes one stored block.
type BlockMeta struct {
	Index  []int `json:"index"`
	Shape  []int `json:"shape"`
	Offset int64 `json:"offset"` // bytes from start of block data
	Size   int64 `json:"size"`   // bytes
}

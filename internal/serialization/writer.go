package serialization

import (
	"bufio"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/born-ml/qtensor/internal/blocksparse"
	"github.com/born-ml/qtensor/internal/symmetry"
)

// newHeader describes the layout of t with offsets in index order.
func newHeader(t *blocksparse.Tensor) Header {
	h := Header{
		FormatVersion: FormatVersion,
		CreatedAt:     time.Now().UTC(),
		BlockShape:    []int(t.Shape().Clone()),
		Dims:          make([][]int, t.Rank()),
		Blocks:        make([]BlockMeta, 0, t.Len()),
	}
	for m := range h.Dims {
		h.Dims[m] = t.Dims(m)
	}
	var offset int64
	for idx, b := range t.All() {
		size := int64(b.NumElements()) * elementSize
		h.Blocks = append(h.Blocks, BlockMeta{
			Index:  []int(idx.Clone()),
			Shape:  []int(b.Shape().Clone()),
			Offset: offset,
			Size:   size,
		})
		offset += size
	}
	return h
}

// write emits the fixed header, the JSON header, the block data, and the
// checksum of everything after the fixed header.
func write(w io.Writer, flags uint32, h Header, t *blocksparse.Tensor) error {
	headerJSON, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(MagicBytes); err != nil {
		return fmt.Errorf("failed to write magic bytes: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(FormatVersion)); err != nil {
		return fmt.Errorf("failed to write version: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, flags); err != nil {
		return fmt.Errorf("failed to write flags: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}

	hash := sha256.New()
	body := io.MultiWriter(bw, hash)
	if _, err := body.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	buf := make([]byte, 0, 4096)
	for idx, b := range t.All() {
		buf = buf[:0]
		for _, v := range b.Data() {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
		}
		if _, err := body.Write(buf); err != nil {
			return fmt.Errorf("failed to write block %v: %w", idx, err)
		}
	}
	if _, err := bw.Write(hash.Sum(nil)); err != nil {
		return fmt.Errorf("failed to write checksum: %w", err)
	}
	return bw.Flush()
}

// WriteSparse writes a block-sparse tensor.
func WriteSparse(w io.Writer, t *blocksparse.Tensor) error {
	return write(w, 0, newHeader(t), t)
}

// WriteSymmetric writes a symmetry-constrained tensor, including its total
// and label lists.
func WriteSymmetric[Q symmetry.Label[Q]](w io.Writer, t *symmetry.Tensor[Q]) error {
	h := newHeader(t.Blocks())
	var err error
	if h.Total, err = json.Marshal(t.Total()); err != nil {
		return fmt.Errorf("failed to marshal total: %w", err)
	}
	if h.Labels, err = json.Marshal(t.AllLabels()); err != nil {
		return fmt.Errorf("failed to marshal labels: %w", err)
	}
	return write(w, FlagSymmetric, h, t.Blocks())
}

// SaveSparse writes a block-sparse tensor to a file.
func SaveSparse(path string, t *blocksparse.Tensor) error {
	return saveFile(path, func(w io.Writer) error { return WriteSparse(w, t) })
}

// SaveSymmetric writes a symmetry-constrained tensor to a file.
func SaveSymmetric[Q symmetry.Label[Q]](path string, t *symmetry.Tensor[Q]) error {
	return saveFile(path, func(w io.Writer) error { return WriteSymmetric(w, t) })
}

func saveFile(path string, fn func(io.Writer) error) error {
	//nolint:gosec // G304: File path comes from the caller.
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := fn(file); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

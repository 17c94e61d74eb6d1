package serialization

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/born-ml/qtensor/internal/blocksparse"
	"github.com/born-ml/qtensor/internal/symmetry"
	"github.com/born-ml/qtensor/internal/tensor"
)

// decoded is a validated file before it becomes a tensor.
type decoded struct {
	flags  uint32
	header Header
	data   []byte
}

// block returns the payload of block i.
func (d *decoded) block(i int) (*tensor.Block, error) {
	meta := d.header.Blocks[i]
	raw := d.data[meta.Offset : meta.Offset+meta.Size]
	values := make([]float64, len(raw)/elementSize)
	for j := range values {
		values[j] = math.Float64frombits(binary.LittleEndian.Uint64(raw[j*elementSize:]))
	}
	return tensor.FromSlice(values, tensor.Shape(meta.Shape))
}

func read(r io.Reader) (*decoded, error) {
	br := bufio.NewReader(r)
	magic := make([]byte, len(MagicBytes))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, fmt.Errorf("failed to read magic bytes: %w", err)
	}
	if string(magic) != MagicBytes {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidMagic, magic)
	}
	var version, flags uint32
	var headerSize uint64
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("failed to read version: %w", err)
	}
	if version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	if err := binary.Read(br, binary.LittleEndian, &flags); err != nil {
		return nil, fmt.Errorf("failed to read flags: %w", err)
	}
	if err := binary.Read(br, binary.LittleEndian, &headerSize); err != nil {
		return nil, fmt.Errorf("failed to read header size: %w", err)
	}
	if headerSize > MaxHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, headerSize)
	}

	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(br, headerJSON); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	d := &decoded{flags: flags}
	if err := json.Unmarshal(headerJSON, &d.header); err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}
	dataSize := d.header.DataSize()
	if dataSize < 0 || dataSize > MaxDataSize {
		return nil, &ValidationError{Type: "out_of_bounds", Details: fmt.Sprintf("data size %d", dataSize), Err: ErrOutOfBounds}
	}
	if err := ValidateHeader(&d.header, dataSize); err != nil {
		return nil, err
	}

	d.data = make([]byte, dataSize)
	if _, err := io.ReadFull(br, d.data); err != nil {
		return nil, fmt.Errorf("failed to read block data: %w", err)
	}
	computed, err := ComputeChecksumReader(io.MultiReader(bytes.NewReader(headerJSON), bytes.NewReader(d.data)))
	if err != nil {
		return nil, fmt.Errorf("failed to hash body: %w", err)
	}
	var stored Checksum
	if _, err := io.ReadFull(br, stored[:]); err != nil {
		return nil, fmt.Errorf("failed to read checksum: %w", err)
	}
	if err := ValidateChecksum(computed, stored); err != nil {
		return nil, err
	}
	return d, nil
}

// ReadSparse reads a block-sparse tensor. Files holding symmetric tensors
// are accepted; only their block structure is returned.
func ReadSparse(r io.Reader) (*blocksparse.Tensor, error) {
	d, err := read(r)
	if err != nil {
		return nil, err
	}
	t, err := blocksparse.New(tensor.BlockShape(d.header.BlockShape))
	if err != nil {
		return nil, err
	}
	for m, dims := range d.header.Dims {
		if err := t.SetDims(m, dims); err != nil {
			return nil, err
		}
	}
	for i := range d.header.Blocks {
		b, err := d.block(i)
		if err != nil {
			return nil, err
		}
		if err := t.Insert(tensor.MultiIndex(d.header.Blocks[i].Index), b); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// ReadSymmetric reads a symmetry-constrained tensor whose labels are of
// type Q. Every block must satisfy the conservation law.
func ReadSymmetric[Q symmetry.Label[Q]](r io.Reader, opts ...symmetry.Option) (*symmetry.Tensor[Q], error) {
	d, err := read(r)
	if err != nil {
		return nil, err
	}
	if d.flags&FlagSymmetric == 0 {
		return nil, ErrNotSymmetric
	}
	var total Q
	if err := json.Unmarshal(d.header.Total, &total); err != nil {
		return nil, fmt.Errorf("failed to parse total: %w", err)
	}
	var labels []symmetry.LabelList[Q]
	if err := json.Unmarshal(d.header.Labels, &labels); err != nil {
		return nil, fmt.Errorf("failed to parse labels: %w", err)
	}
	t := symmetry.New[Q](opts...)
	if len(labels) != d.header.Rank() {
		return nil, &ValidationError{
			Type:    "invalid_labels",
			Details: fmt.Sprintf("%d label lists for rank %d", len(labels), d.header.Rank()),
			Err:     tensor.ErrShapeMismatch,
		}
	}
	if err := t.SetShape(total, labels, d.header.Dims); err != nil {
		return nil, err
	}
	for i := range d.header.Blocks {
		b, err := d.block(i)
		if err != nil {
			return nil, err
		}
		if err := t.MustInsert(tensor.MultiIndex(d.header.Blocks[i].Index), b); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// LoadSparse reads a block-sparse tensor from a file.
func LoadSparse(path string) (*blocksparse.Tensor, error) {
	var t *blocksparse.Tensor
	err := loadFile(path, func(r io.Reader) (err error) {
		t, err = ReadSparse(r)
		return err
	})
	return t, err
}

// LoadSymmetric reads a symmetry-constrained tensor from a file.
func LoadSymmetric[Q symmetry.Label[Q]](path string, opts ...symmetry.Option) (*symmetry.Tensor[Q], error) {
	var t *symmetry.Tensor[Q]
	err := loadFile(path, func(r io.Reader) (err error) {
		t, err = ReadSymmetric[Q](r, opts...)
		return err
	})
	return t, err
}

func loadFile(path string, fn func(io.Reader) error) error {
	//nolint:gosec // G304: File path comes from the caller.
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()
	return fn(file)
}

package tensor

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

// blockBuffer is a reference-counted payload shared by shallow block copies.
type blockBuffer struct {
	data     []float64
	refCount atomic.Int32
	mu       sync.Mutex // For safe deallocation
}

// newBlockBuffer creates a zero-filled buffer with refCount = 1.
func newBlockBuffer(size int) *blockBuffer {
	buf := &blockBuffer{
		data: make([]float64, size),
	}
	buf.refCount.Store(1)
	return buf
}

// addRef increments the reference count (for Clone operations).
func (bb *blockBuffer) addRef() {
	bb.refCount.Add(1)
}

// release decrements the reference count and drops the payload at zero.
func (bb *blockBuffer) release() {
	if bb.refCount.Add(-1) == 0 {
		bb.mu.Lock()
		defer bb.mu.Unlock()
		bb.data = nil
	}
}

// isUnique returns true if this buffer has only one reference.
func (bb *blockBuffer) isUnique() bool {
	return bb.refCount.Load() == 1
}

// Block is a dense, row-major N-D array of float64 with explicit extents.
// The zero value is an empty block; operations writing into an empty block
// allocate the inferred shape first.
//
// Blocks created by Clone share their payload with the source (reference
// counted). Mutating methods detach a shared payload before writing, so an
// alias never observes another alias's writes.
type Block struct {
	buffer *blockBuffer
	shape  Shape
}

// NewBlock allocates a zero-filled block with the given extents.
func NewBlock(shape Shape) (*Block, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return &Block{
		buffer: newBlockBuffer(shape.NumElements()),
		shape:  shape.Clone(),
	}, nil
}

// MustBlock is NewBlock for extents known to be valid.
// Panics on invalid shape.
func MustBlock(shape Shape) *Block {
	b, err := NewBlock(shape)
	if err != nil {
		panic(err)
	}
	return b
}

// FromSlice creates a block from a Go slice.
// The slice is copied into the block's memory.
func FromSlice(data []float64, shape Shape) (*Block, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	b, err := NewBlock(shape)
	if err != nil {
		return nil, err
	}
	copy(b.buffer.data, data)
	return b, nil
}

// IsEmpty reports whether the block holds no payload.
func (b *Block) IsEmpty() bool {
	return b == nil || b.buffer == nil
}

// Shape returns the block's extents.
func (b *Block) Shape() Shape {
	return b.shape
}

// Rank returns the number of modes.
func (b *Block) Rank() int {
	return len(b.shape)
}

// NumElements returns the total number of elements.
func (b *Block) NumElements() int {
	if b.IsEmpty() {
		return 0
	}
	return b.shape.NumElements()
}

// Data returns the payload for reading.
// WARNING: the slice may be shared with aliases; write through Mutable.
func (b *Block) Data() []float64 {
	if b.IsEmpty() {
		return nil
	}
	return b.buffer.data
}

// Mutable returns the payload for writing, detaching it from any alias first.
func (b *Block) Mutable() []float64 {
	if b.IsEmpty() {
		return nil
	}
	b.detach()
	return b.buffer.data
}

// detach gives b its own copy of a shared payload.
func (b *Block) detach() {
	if b.buffer.isUnique() {
		return
	}
	buf := newBlockBuffer(len(b.buffer.data))
	copy(buf.data, b.buffer.data)
	b.buffer.release()
	b.buffer = buf
}

// Reset discards the payload and allocates a zero-filled one with the given
// extents.
func (b *Block) Reset(shape Shape) error {
	if err := shape.Validate(); err != nil {
		return fmt.Errorf("invalid shape: %w", err)
	}
	b.Release()
	b.buffer = newBlockBuffer(shape.NumElements())
	b.shape = shape.Clone()
	return nil
}

// Prepare makes b ready to receive a result of the given extents: an empty
// block is allocated and zero-filled, a non-empty one must match exactly.
func (b *Block) Prepare(op string, shape Shape) error {
	if b.IsEmpty() {
		return b.Reset(shape)
	}
	if !b.shape.Equal(shape) {
		return shapeErr(op, shape, b.shape)
	}
	return nil
}

// Clone creates a shallow copy sharing the payload (refCount + 1).
func (b *Block) Clone() *Block {
	if b.IsEmpty() {
		return &Block{}
	}
	b.buffer.addRef()
	return &Block{
		buffer: b.buffer,
		shape:  b.shape.Clone(),
	}
}

// DeepCopy creates an independent copy of the block.
func (b *Block) DeepCopy() *Block {
	if b.IsEmpty() {
		return &Block{}
	}
	buf := newBlockBuffer(len(b.buffer.data))
	copy(buf.data, b.buffer.data)
	return &Block{
		buffer: buf,
		shape:  b.shape.Clone(),
	}
}

// Release drops this block's reference to its payload and leaves it empty.
// Releasing an empty block is a no-op, so double releases are safe.
func (b *Block) Release() {
	if b.IsEmpty() {
		return
	}
	b.buffer.release()
	b.buffer = nil
	b.shape = nil
}

// IsUnique returns true if no alias shares the payload.
func (b *Block) IsUnique() bool {
	return b.IsEmpty() || b.buffer.isUnique()
}

// offset computes the flat position of the given element indices.
func (b *Block) offset(indices []int) int {
	if len(indices) != len(b.shape) {
		panic(fmt.Sprintf("expected %d indices, got %d", len(b.shape), len(indices)))
	}
	off := 0
	for i, idx := range indices {
		if idx < 0 || idx >= b.shape[i] {
			panic(fmt.Sprintf("index %d out of bounds for dimension %d (size %d)", idx, i, b.shape[i]))
		}
		off = off*b.shape[i] + idx
	}
	return off
}

// At returns the element at the given indices.
// Panics if indices are out of bounds.
func (b *Block) At(indices ...int) float64 {
	return b.buffer.data[b.offset(indices)]
}

// Set sets the element at the given indices.
// Panics if indices are out of bounds.
func (b *Block) Set(value float64, indices ...int) {
	off := b.offset(indices)
	b.Mutable()[off] = value
}

// Fill sets every element to v.
func (b *Block) Fill(v float64) {
	data := b.Mutable()
	for i := range data {
		data[i] = v
	}
}

// Generate fills the block with successive values of gen.
func (b *Block) Generate(gen func() float64) {
	data := b.Mutable()
	for i := range data {
		data[i] = gen()
	}
}

// Scale multiplies every element by alpha.
func (b *Block) Scale(alpha float64) {
	if alpha == 1 {
		return
	}
	data := b.Mutable()
	for i := range data {
		data[i] *= alpha
	}
}

// AddScaled performs b += alpha*x. An empty b takes x's extents.
func (b *Block) AddScaled(alpha float64, x *Block) error {
	if err := b.Prepare("add", x.Shape()); err != nil {
		return err
	}
	dst := b.Mutable()
	for i, v := range x.Data() {
		dst[i] += alpha * v
	}
	return nil
}

// Norm returns the Frobenius norm.
func (b *Block) Norm() float64 {
	var sum float64
	for _, v := range b.Data() {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// AllClose reports whether both blocks have equal extents and elements
// within tol of each other.
func (b *Block) AllClose(other *Block, tol float64) bool {
	if b.IsEmpty() || other.IsEmpty() {
		return b.IsEmpty() == other.IsEmpty()
	}
	if !b.shape.Equal(other.shape) {
		return false
	}
	od := other.Data()
	for i, v := range b.Data() {
		if math.Abs(v-od[i]) > tol {
			return false
		}
	}
	return true
}

// String returns a human-readable description of the block.
func (b *Block) String() string {
	if b.IsEmpty() {
		return "Block[empty]"
	}
	return fmt.Sprintf("Block%v", b.shape)
}

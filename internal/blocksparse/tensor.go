// Package blocksparse implements block-sparse tensors: an ordered map from
// block coordinates to dense blocks, with accumulate-on-insert semantics and
// lexicographic range queries.
package blocksparse

import (
	"fmt"
	"iter"
	"math"

	"github.com/google/btree"

	"github.com/born-ml/qtensor/internal/tensor"
)

// degree is the B-tree node degree used for block maps.
const degree = 16

// cell is one stored block.
type cell struct {
	key   tensor.MultiIndex
	block *tensor.Block
}

func lessCell(a, b *cell) bool {
	return a.key.Less(b.key)
}

func newTree() *btree.BTreeG[*cell] {
	return btree.NewG(degree, lessCell)
}

// Tensor is a block-sparse tensor of runtime rank.
//
// Invariants:
//   - every stored key lies inside Shape();
//   - the dense extent registered for coordinate c of mode i is shared by
//     every stored block whose i-th coordinate is c.
//
// The zero value is an empty tensor without shape; call Resize before use.
// A Tensor is not safe for concurrent mutation.
type Tensor struct {
	shape tensor.BlockShape
	dims  [][]int // dims[i][c] is the extent of coordinate c on mode i, 0 = unset
	tree  *btree.BTreeG[*cell]
}

// New creates an empty tensor with the given block shape.
func New(shape tensor.BlockShape) (*Tensor, error) {
	t := &Tensor{}
	if err := t.Resize(shape); err != nil {
		return nil, err
	}
	return t, nil
}

// Resize re-establishes the block shape and discards all blocks and
// registered extents.
func (t *Tensor) Resize(shape tensor.BlockShape) error {
	if err := shape.Validate(); err != nil {
		return fmt.Errorf("resize: %w", err)
	}
	t.Clear()
	t.shape = shape.Clone()
	t.dims = make([][]int, len(shape))
	for i, n := range shape {
		t.dims[i] = make([]int, n)
	}
	t.tree = newTree()
	return nil
}

// IsShaped reports whether Resize has been called.
func (t *Tensor) IsShaped() bool {
	return t.shape != nil
}

// Rank returns the number of modes.
func (t *Tensor) Rank() int {
	return len(t.shape)
}

// Shape returns the block counts per mode.
func (t *Tensor) Shape() tensor.BlockShape {
	return t.shape
}

// Len returns the number of stored blocks.
func (t *Tensor) Len() int {
	if t.tree == nil {
		return 0
	}
	return t.tree.Len()
}

// Dims returns a copy of the registered dense extents of a mode.
// Unregistered coordinates report 0.
func (t *Tensor) Dims(mode int) []int {
	return append([]int(nil), t.dims[mode]...)
}

// SetDims registers the dense extents of every coordinate of a mode.
// Extents already fixed by stored blocks must not change.
func (t *Tensor) SetDims(mode int, dims []int) error {
	if mode < 0 || mode >= len(t.shape) {
		return fmt.Errorf("set dims: %w: mode %d of rank %d", tensor.ErrShapeMismatch, mode, len(t.shape))
	}
	if len(dims) != t.shape[mode] {
		return tensor.NewShapeError("set dims", []int{t.shape[mode]}, []int{len(dims)})
	}
	for c, d := range dims {
		if cur := t.dims[mode][c]; cur != 0 && cur != d && t.modeInUse(mode, c) {
			return tensor.NewShapeError("set dims", []int{cur}, []int{d})
		}
	}
	copy(t.dims[mode], dims)
	return nil
}

// modeInUse reports whether a stored block sits at coordinate c of mode.
func (t *Tensor) modeInUse(mode, c int) bool {
	used := false
	t.tree.Ascend(func(it *cell) bool {
		used = it.key[mode] == c
		return !used
	})
	return used
}

// Extents returns the dense extents a block at idx must have, when every
// mode has a registered extent for its coordinate.
func (t *Tensor) Extents(idx tensor.MultiIndex) (tensor.Shape, bool) {
	if !t.shape.Contains(idx) {
		return nil, false
	}
	shape := make(tensor.Shape, len(idx))
	for i, c := range idx {
		shape[i] = t.dims[i][c]
		if shape[i] == 0 {
			return nil, false
		}
	}
	return shape, true
}

// check validates that a block of the given extents may live at idx.
func (t *Tensor) check(op string, idx tensor.MultiIndex, shape tensor.Shape) error {
	if !t.shape.Contains(idx) {
		return fmt.Errorf("%s: %w: index %v outside block shape %v", op, tensor.ErrShapeMismatch, idx, t.shape)
	}
	if len(shape) != len(idx) {
		return tensor.NewShapeError(op, []int{len(idx)}, []int{len(shape)})
	}
	for i, c := range idx {
		if d := t.dims[i][c]; d != 0 && d != shape[i] {
			return fmt.Errorf("%s: mode %d coordinate %d: %w", op, i, c,
				tensor.NewShapeError(op, []int{d}, []int{shape[i]}))
		}
	}
	return nil
}

// register records the extents of a block stored at idx.
func (t *Tensor) register(idx tensor.MultiIndex, shape tensor.Shape) {
	for i, c := range idx {
		t.dims[i][c] = shape[i]
	}
}

// put stores b at idx, replacing any previous block without releasing it.
func (t *Tensor) put(idx tensor.MultiIndex, b *tensor.Block) {
	t.register(idx, b.Shape())
	t.tree.ReplaceOrInsert(&cell{key: idx.Clone(), block: b})
}

// Find returns the block stored at idx.
func (t *Tensor) Find(idx tensor.MultiIndex) (*tensor.Block, bool) {
	if t.tree == nil {
		return nil, false
	}
	it, ok := t.tree.Get(&cell{key: idx})
	if !ok {
		return nil, false
	}
	return it.block, true
}

// Insert accumulates b into the block at idx, creating it when absent.
// The tensor keeps its own copy; b is never aliased.
// Shape-inconsistent insertion fails with ErrShapeMismatch.
func (t *Tensor) Insert(idx tensor.MultiIndex, b *tensor.Block) error {
	return t.insertScaled(idx, 1, b)
}

func (t *Tensor) insertScaled(idx tensor.MultiIndex, alpha float64, b *tensor.Block) error {
	if !t.IsShaped() {
		return fmt.Errorf("insert: %w: tensor has no shape", tensor.ErrShapeMismatch)
	}
	if b.IsEmpty() {
		return fmt.Errorf("insert: %w: empty block at %v", tensor.ErrShapeMismatch, idx)
	}
	if err := t.check("insert", idx, b.Shape()); err != nil {
		return err
	}
	if cur, ok := t.Find(idx); ok {
		return cur.AddScaled(alpha, b)
	}
	own := b.DeepCopy()
	own.Scale(alpha)
	t.put(idx, own)
	return nil
}

// Reserve returns the block at idx, creating a zero-filled one from the
// registered extents when absent.
func (t *Tensor) Reserve(idx tensor.MultiIndex) (*tensor.Block, error) {
	if cur, ok := t.Find(idx); ok {
		return cur, nil
	}
	shape, ok := t.Extents(idx)
	if !ok {
		return nil, fmt.Errorf("reserve: %w: extents of %v are not registered", tensor.ErrShapeMismatch, idx)
	}
	return t.ReserveShape(idx, shape)
}

// ReserveShape is Reserve with explicit extents, registering them.
func (t *Tensor) ReserveShape(idx tensor.MultiIndex, shape tensor.Shape) (*tensor.Block, error) {
	if !t.IsShaped() {
		return nil, fmt.Errorf("reserve: %w: tensor has no shape", tensor.ErrShapeMismatch)
	}
	if err := t.check("reserve", idx, shape); err != nil {
		return nil, err
	}
	if cur, ok := t.Find(idx); ok {
		return cur, nil
	}
	b, err := tensor.NewBlock(shape)
	if err != nil {
		return nil, fmt.Errorf("reserve: %w", err)
	}
	t.put(idx, b)
	return b, nil
}

// Delete removes and releases the block at idx.
func (t *Tensor) Delete(idx tensor.MultiIndex) bool {
	if t.tree == nil {
		return false
	}
	it, ok := t.tree.Delete(&cell{key: idx})
	if ok {
		it.block.Release()
	}
	return ok
}

// LowerBound returns the first stored block whose index is >= idx.
func (t *Tensor) LowerBound(idx tensor.MultiIndex) (tensor.MultiIndex, *tensor.Block, bool) {
	return t.seek(idx, false)
}

// UpperBound returns the first stored block whose index is > idx.
func (t *Tensor) UpperBound(idx tensor.MultiIndex) (tensor.MultiIndex, *tensor.Block, bool) {
	return t.seek(idx, true)
}

func (t *Tensor) seek(idx tensor.MultiIndex, strict bool) (tensor.MultiIndex, *tensor.Block, bool) {
	if t.tree == nil {
		return nil, nil, false
	}
	var found *cell
	t.tree.AscendGreaterOrEqual(&cell{key: idx}, func(it *cell) bool {
		if strict && it.key.Equal(idx) {
			return true
		}
		found = it
		return false
	})
	if found == nil {
		return nil, nil, false
	}
	return found.key, found.block, true
}

// AscendRange calls fn for every stored block with lo <= index < hi, in
// lexicographic order, until fn returns false.
func (t *Tensor) AscendRange(lo, hi tensor.MultiIndex, fn func(idx tensor.MultiIndex, b *tensor.Block) bool) {
	if t.tree == nil {
		return
	}
	t.tree.AscendRange(&cell{key: lo}, &cell{key: hi}, func(it *cell) bool {
		return fn(it.key, it.block)
	})
}

// All iterates over stored blocks in lexicographic index order.
// Callers must not mutate the key.
func (t *Tensor) All() iter.Seq2[tensor.MultiIndex, *tensor.Block] {
	return func(yield func(tensor.MultiIndex, *tensor.Block) bool) {
		if t.tree == nil {
			return
		}
		t.tree.Ascend(func(it *cell) bool {
			return yield(it.key, it.block)
		})
	}
}

// Keys returns the stored indices in order.
func (t *Tensor) Keys() []tensor.MultiIndex {
	keys := make([]tensor.MultiIndex, 0, t.Len())
	for k := range t.All() {
		keys = append(keys, k.Clone())
	}
	return keys
}

// Clear releases every block. Shape and registered extents are kept.
func (t *Tensor) Clear() {
	if t.tree == nil {
		return
	}
	t.tree.Ascend(func(it *cell) bool {
		it.block.Release()
		return true
	})
	t.tree.Clear(false)
}

// cloneLayout returns an empty tensor with t's shape and registered extents.
func (t *Tensor) cloneLayout() *Tensor {
	out := &Tensor{
		shape: t.shape.Clone(),
		dims:  make([][]int, len(t.dims)),
		tree:  newTree(),
	}
	for i, d := range t.dims {
		out.dims[i] = append([]int(nil), d...)
	}
	return out
}

// DeepCopy returns a tensor owning independent copies of every block.
func (t *Tensor) DeepCopy() *Tensor {
	out := t.cloneLayout()
	for k, b := range t.All() {
		out.put(k, b.DeepCopy())
	}
	return out
}

// ShallowCopy returns a tensor sharing every block with t.
// Both tensors must treat shared blocks as read-only; mutating helpers
// detach a shared payload before writing.
func (t *Tensor) ShallowCopy() *Tensor {
	out := t.cloneLayout()
	for k, b := range t.All() {
		out.put(k, b.Clone())
	}
	return out
}

// Scale multiplies every block by alpha.
func (t *Tensor) Scale(alpha float64) {
	for _, b := range t.All() {
		b.Scale(alpha)
	}
}

// Axpy accumulates alpha*x into t block by block.
func (t *Tensor) Axpy(alpha float64, x *Tensor) error {
	if !t.shape.Equal(x.shape) {
		return tensor.NewShapeError("axpy", x.shape, t.shape)
	}
	for k, b := range x.All() {
		if err := t.insertScaled(k, alpha, b); err != nil {
			return err
		}
	}
	return nil
}

// Generate fills every stored block, in index order, from gen.
func (t *Tensor) Generate(gen func() float64) {
	for _, b := range t.All() {
		b.Generate(gen)
	}
}

// Norm returns the Frobenius norm over all blocks.
func (t *Tensor) Norm() float64 {
	var sum float64
	for _, b := range t.All() {
		n := b.Norm()
		sum += n * n
	}
	return math.Sqrt(sum)
}

// AllClose reports whether both tensors store the same indices with blocks
// equal within tol.
func (t *Tensor) AllClose(other *Tensor, tol float64) bool {
	if !t.shape.Equal(other.shape) || t.Len() != other.Len() {
		return false
	}
	for k, b := range t.All() {
		ob, ok := other.Find(k)
		if !ok || !b.AllClose(ob, tol) {
			return false
		}
	}
	return true
}

// String returns a human-readable description of the tensor.
func (t *Tensor) String() string {
	return fmt.Sprintf("BlockSparse%v{%d blocks}", []int(t.shape), t.Len())
}

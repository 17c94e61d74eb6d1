package blocksparse

import (
	"fmt"
	"iter"

	"github.com/google/btree"

	"github.com/born-ml/qtensor/internal/permute"
	"github.com/born-ml/qtensor/internal/tensor"
)

// Permute returns a new tensor with modes reordered: coordinates, registered
// extents, and every block payload are permuted.
func (t *Tensor) Permute(perm []int) (*Tensor, error) {
	if err := permute.Validate(perm, t.Rank()); err != nil {
		return nil, err
	}
	if permute.IsIdentity(perm) {
		return t.DeepCopy(), nil
	}
	out := &Tensor{
		shape: t.shape.Permute(perm),
		dims:  permute.Apply(t.dims, perm),
		tree:  newTree(),
	}
	for i := range out.dims {
		out.dims[i] = append([]int(nil), out.dims[i]...)
	}
	for k, b := range t.All() {
		pb, err := permute.Dense(b, perm)
		if err != nil {
			return nil, fmt.Errorf("permute block %v: %w", k, err)
		}
		out.put(k.Permute(perm), pb)
	}
	return out, nil
}

// View is a read-only reinterpretation of a tensor under a mode permutation.
// Only coordinates are permuted; each block keeps the source tensor's payload
// layout. It exists so that range scans can run over a permuted key order
// without touching any payload.
type View struct {
	perm  []int
	shape tensor.BlockShape
	tree  *btree.BTreeG[*cell]
}

// TransposeView rewrites the coordinate map of t under perm.
// The view shares t's blocks and must not outlive mutations of t.
func (t *Tensor) TransposeView(perm []int) (*View, error) {
	if err := permute.Validate(perm, t.Rank()); err != nil {
		return nil, err
	}
	v := &View{
		perm:  append([]int(nil), perm...),
		shape: t.shape.Permute(perm),
		tree:  newTree(),
	}
	for k, b := range t.All() {
		v.tree.ReplaceOrInsert(&cell{key: k.Permute(perm), block: b})
	}
	return v, nil
}

// Perm returns the permutation the view was built with.
func (v *View) Perm() []int {
	return v.perm
}

// Shape returns the permuted block shape.
func (v *View) Shape() tensor.BlockShape {
	return v.shape
}

// Len returns the number of blocks.
func (v *View) Len() int {
	return v.tree.Len()
}

// SourceIndex maps a view index back to the source tensor's index.
func (v *View) SourceIndex(idx tensor.MultiIndex) tensor.MultiIndex {
	return idx.Permute(permute.Inverse(v.perm))
}

// Find returns the block at a view index.
func (v *View) Find(idx tensor.MultiIndex) (*tensor.Block, bool) {
	it, ok := v.tree.Get(&cell{key: idx})
	if !ok {
		return nil, false
	}
	return it.block, true
}

// AscendPrefix calls fn, in order, for every block whose view index starts
// with prefix. An empty prefix visits every block.
func (v *View) AscendPrefix(prefix tensor.MultiIndex, fn func(idx tensor.MultiIndex, b *tensor.Block) bool) {
	if len(prefix) == 0 {
		v.tree.Ascend(func(it *cell) bool { return fn(it.key, it.block) })
		return
	}
	// A strict prefix sorts before all of its extensions, so [prefix, next)
	// is exactly the set of keys sharing it.
	next := prefix.Clone()
	next[len(next)-1]++
	v.tree.AscendRange(&cell{key: prefix}, &cell{key: next}, func(it *cell) bool {
		return fn(it.key, it.block)
	})
}

// All iterates over the view's blocks in permuted index order.
func (v *View) All() iter.Seq2[tensor.MultiIndex, *tensor.Block] {
	return func(yield func(tensor.MultiIndex, *tensor.Block) bool) {
		v.tree.Ascend(func(it *cell) bool {
			return yield(it.key, it.block)
		})
	}
}

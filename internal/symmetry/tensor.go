package symmetry

import (
	"fmt"
	"iter"

	"github.com/born-ml/qtensor/internal/blocksparse"
	"github.com/born-ml/qtensor/internal/logger"
	"github.com/born-ml/qtensor/internal/permute"
	"github.com/born-ml/qtensor/internal/tensor"
)

// Tensor is a block-sparse tensor constrained by a conservation law.
//
// Every mode i has a LabelList labels[i] and dense extents dims[i], one entry
// per block coordinate. A block at m is stored only if
//
//	labels[0][m[0]] + ... + labels[N-1][m[N-1]] == total
//
// Requests that would store any other block are refused without error,
// since trying candidate blocks is a normal access pattern.
//
// The zero value is an empty tensor without shape.
type Tensor[Q Label[Q]] struct {
	blocks *blocksparse.Tensor
	total  Q
	labels []LabelList[Q]
	log    *logger.Logger
}

// Option configures a Tensor.
type Option func(*options)

type options struct {
	log *logger.Logger
}

// WithLogger reports refused blocks at debug level.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// New creates an empty tensor without shape.
func New[Q Label[Q]](opts ...Option) *Tensor[Q] {
	o := options{log: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Tensor[Q]{
		blocks: &blocksparse.Tensor{},
		log:    o.log,
	}
}

// Resize re-establishes labels and extents, discards all blocks, and
// allocates a zero block for every coordinate that satisfies the
// conservation law and has non-zero extent on every mode.
func (t *Tensor[Q]) Resize(total Q, labels []LabelList[Q], dims [][]int) error {
	if err := t.SetShape(total, labels, dims); err != nil {
		return err
	}
	var err error
	t.eachAllowed(func(idx tensor.MultiIndex) bool {
		if _, ok := t.core().Extents(idx); !ok {
			return true
		}
		_, err = t.core().Reserve(idx)
		return err == nil
	})
	return err
}

// SetShape re-establishes labels and extents and discards all blocks
// without allocating any.
func (t *Tensor[Q]) SetShape(total Q, labels []LabelList[Q], dims [][]int) error {
	if len(dims) != len(labels) {
		return tensor.NewShapeError("resize", []int{len(labels)}, []int{len(dims)})
	}
	shape := make(tensor.BlockShape, len(labels))
	for i, l := range labels {
		if len(dims[i]) != len(l) {
			return fmt.Errorf("resize: mode %d: %w", i, tensor.NewShapeError("resize", []int{len(l)}, []int{len(dims[i])}))
		}
		for _, d := range dims[i] {
			if d < 0 {
				return fmt.Errorf("resize: mode %d: negative extent %d", i, d)
			}
		}
		shape[i] = len(l)
	}
	if err := t.core().Resize(shape); err != nil {
		return err
	}
	for i := range dims {
		if err := t.core().SetDims(i, dims[i]); err != nil {
			return err
		}
	}
	t.total = total
	t.labels = make([]LabelList[Q], len(labels))
	for i, l := range labels {
		t.labels[i] = l.Clone()
	}
	return nil
}

// eachAllowed visits, in lexicographic order, every coordinate whose labels
// sum to the total. The last mode is resolved by lookup instead of
// enumeration.
func (t *Tensor[Q]) eachAllowed(fn func(idx tensor.MultiIndex) bool) {
	n := len(t.labels)
	var zero Q
	if n == 0 {
		if t.total == zero {
			fn(tensor.MultiIndex{})
		}
		return
	}
	last := make(map[Q][]int)
	for c, q := range t.labels[n-1] {
		last[q] = append(last[q], c)
	}
	idx := make(tensor.MultiIndex, n)
	var walk func(mode int, partial Q) bool
	walk = func(mode int, partial Q) bool {
		if mode == n-1 {
			for _, c := range last[t.total.Add(partial.Neg())] {
				idx[mode] = c
				if !fn(idx) {
					return false
				}
			}
			return true
		}
		for c, q := range t.labels[mode] {
			idx[mode] = c
			if !walk(mode+1, partial.Add(q)) {
				return false
			}
		}
		return true
	}
	walk(0, zero)
}

// IsShaped reports whether the tensor has labels.
func (t *Tensor[Q]) IsShaped() bool {
	return t.core().IsShaped()
}

// Rank returns the number of modes.
func (t *Tensor[Q]) Rank() int {
	return len(t.labels)
}

// Total returns the conserved total label.
func (t *Tensor[Q]) Total() Q {
	return t.total
}

// Labels returns the label list of a mode. The result must not be modified.
func (t *Tensor[Q]) Labels(mode int) LabelList[Q] {
	return t.labels[mode]
}

// AllLabels returns a copy of every mode's label list.
func (t *Tensor[Q]) AllLabels() []LabelList[Q] {
	out := make([]LabelList[Q], len(t.labels))
	for i, l := range t.labels {
		out[i] = l.Clone()
	}
	return out
}

// Dims returns the dense extents of a mode.
func (t *Tensor[Q]) Dims(mode int) []int {
	return t.core().Dims(mode)
}

// AllDims returns the dense extents of every mode.
func (t *Tensor[Q]) AllDims() [][]int {
	out := make([][]int, t.Rank())
	for i := range out {
		out[i] = t.core().Dims(i)
	}
	return out
}

// Shape returns the block counts per mode.
func (t *Tensor[Q]) Shape() tensor.BlockShape {
	return t.core().Shape()
}

// Len returns the number of stored blocks.
func (t *Tensor[Q]) Len() int {
	return t.core().Len()
}

// Blocks exposes the underlying block-sparse tensor. Writers must preserve
// the conservation law.
func (t *Tensor[Q]) Blocks() *blocksparse.Tensor {
	return t.core()
}

// core returns the block store, allocating it for a zero-value Tensor.
func (t *Tensor[Q]) core() *blocksparse.Tensor {
	if t.blocks == nil {
		t.blocks = &blocksparse.Tensor{}
	}
	return t.blocks
}

// LabelAt returns the sum of the labels at idx.
func (t *Tensor[Q]) LabelAt(idx tensor.MultiIndex) Q {
	var sum Q
	for i, c := range idx {
		sum = sum.Add(t.labels[i][c])
	}
	return sum
}

// Allowed reports whether idx is in range and satisfies the conservation
// law.
func (t *Tensor[Q]) Allowed(idx tensor.MultiIndex) bool {
	if !t.core().Shape().Contains(idx) {
		return false
	}
	return t.LabelAt(idx) == t.total
}

// refuse records a structurally forbidden request.
func (t *Tensor[Q]) refuse(op string, idx tensor.MultiIndex) {
	if t.log == nil || !t.core().Shape().Contains(idx) {
		return
	}
	t.log.Debug("refused forbidden block",
		"op", op,
		"index", idx.String(),
		"label", fmt.Sprint(t.LabelAt(idx)),
		"total", fmt.Sprint(t.total),
	)
}

// Find returns the block stored at idx.
func (t *Tensor[Q]) Find(idx tensor.MultiIndex) (*tensor.Block, bool) {
	return t.core().Find(idx)
}

// Insert accumulates b into the block at idx. A forbidden coordinate is
// refused and reported with ok == false; shape inconsistencies are errors.
func (t *Tensor[Q]) Insert(idx tensor.MultiIndex, b *tensor.Block) (ok bool, err error) {
	if !t.Allowed(idx) {
		t.refuse("insert", idx)
		return false, nil
	}
	if err := t.core().Insert(idx, b); err != nil {
		return false, err
	}
	return true, nil
}

// MustInsert is Insert that reports a refused block as ErrForbiddenBlock.
func (t *Tensor[Q]) MustInsert(idx tensor.MultiIndex, b *tensor.Block) error {
	ok, err := t.Insert(idx, b)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("insert %v: %w", idx, tensor.ErrForbiddenBlock)
	}
	return nil
}

// Reserve returns the block at idx, creating a zero block when absent.
// A forbidden coordinate is refused with ok == false.
func (t *Tensor[Q]) Reserve(idx tensor.MultiIndex) (b *tensor.Block, ok bool, err error) {
	if !t.Allowed(idx) {
		t.refuse("reserve", idx)
		return nil, false, nil
	}
	b, err = t.core().Reserve(idx)
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// All iterates over stored blocks in lexicographic index order.
func (t *Tensor[Q]) All() iter.Seq2[tensor.MultiIndex, *tensor.Block] {
	return t.core().All()
}

// Clear releases every block; labels and extents are kept.
func (t *Tensor[Q]) Clear() {
	t.core().Clear()
}

func (t *Tensor[Q]) withBlocks(blocks *blocksparse.Tensor) *Tensor[Q] {
	return &Tensor[Q]{
		blocks: blocks,
		total:  t.total,
		labels: t.AllLabels(),
		log:    t.log,
	}
}

// DeepCopy returns a tensor owning independent copies of every block.
func (t *Tensor[Q]) DeepCopy() *Tensor[Q] {
	return t.withBlocks(t.core().DeepCopy())
}

// ShallowCopy returns a tensor sharing every block with t.
func (t *Tensor[Q]) ShallowCopy() *Tensor[Q] {
	return t.withBlocks(t.core().ShallowCopy())
}

// Permute reorders modes; labels, extents, and payloads follow.
func (t *Tensor[Q]) Permute(perm []int) (*Tensor[Q], error) {
	blocks, err := t.core().Permute(perm)
	if err != nil {
		return nil, err
	}
	out := t.withBlocks(blocks)
	out.labels = permute.Apply(out.labels, perm)
	return out, nil
}

// Scale multiplies every block by alpha.
func (t *Tensor[Q]) Scale(alpha float64) {
	t.core().Scale(alpha)
}

// Axpy accumulates alpha*x into t. Both must share total and labels.
func (t *Tensor[Q]) Axpy(alpha float64, x *Tensor[Q]) error {
	if err := t.SameStructure(x); err != nil {
		return fmt.Errorf("axpy: %w", err)
	}
	return t.core().Axpy(alpha, x.core())
}

// SameStructure checks that x has t's total and label lists, and that
// extents registered on both sides agree.
func (t *Tensor[Q]) SameStructure(x *Tensor[Q]) error {
	if t.total != x.total {
		return fmt.Errorf("%w: total %v vs %v", tensor.ErrShapeMismatch, t.total, x.total)
	}
	if len(t.labels) != len(x.labels) {
		return tensor.NewShapeError("labels", []int{len(t.labels)}, []int{len(x.labels)})
	}
	for i := range t.labels {
		if !t.labels[i].Equal(x.labels[i]) {
			return fmt.Errorf("%w: mode %d labels %v vs %v", tensor.ErrShapeMismatch, i, t.labels[i], x.labels[i])
		}
		td, xd := t.Dims(i), x.Dims(i)
		for c := range td {
			if td[c] != 0 && xd[c] != 0 && td[c] != xd[c] {
				return fmt.Errorf("%w: mode %d coordinate %d extent %d vs %d", tensor.ErrShapeMismatch, i, c, td[c], xd[c])
			}
		}
	}
	return nil
}

// Generate fills every stored block, in index order, from gen.
func (t *Tensor[Q]) Generate(gen func() float64) {
	t.core().Generate(gen)
}

// Norm returns the Frobenius norm.
func (t *Tensor[Q]) Norm() float64 {
	return t.core().Norm()
}

// AllClose reports whether x has the same structure and blocks within tol.
func (t *Tensor[Q]) AllClose(x *Tensor[Q], tol float64) bool {
	return t.SameStructure(x) == nil && t.core().AllClose(x.core(), tol)
}

// Validate checks that every stored block satisfies the conservation law.
func (t *Tensor[Q]) Validate() error {
	for idx := range t.core().All() {
		if !t.Allowed(idx) {
			return fmt.Errorf("block %v: %w", idx, tensor.ErrForbiddenBlock)
		}
	}
	return nil
}

// String returns a human-readable description of the tensor.
func (t *Tensor[Q]) String() string {
	return fmt.Sprintf("Symmetry%v{total %v, %d blocks}", []int(t.Shape()), t.total, t.Len())
}

package contract

import (
	"fmt"
	"slices"

	"github.com/born-ml/qtensor/internal/blocksparse"
	"github.com/born-ml/qtensor/internal/parallel"
	"github.com/born-ml/qtensor/internal/tensor"
)

// pair is one block product feeding an output block.
type pair struct {
	a, b *tensor.Block // canonical layout
}

// output is one result block and everything that accumulates into it.
type output struct {
	key   tensor.MultiIndex
	shape tensor.Shape
	pairs []pair
	block *tensor.Block
}

// Sparse computes c := alpha·contract(a, b) + beta·c over block-sparse
// tensors. An unshaped c is allocated with the derived block shape.
func Sparse(be tensor.Backend, alpha float64, a *blocksparse.Tensor, idxA []int, b *blocksparse.Tensor, idxB []int, beta float64, c *blocksparse.Tensor, opts ...Option) error {
	p, err := NewPlan(a.Rank(), idxA, b.Rank(), idxB)
	if err != nil {
		return err
	}
	return p.Sparse(be, alpha, a, b, beta, c, opts...)
}

// Sparse runs the plan on block-sparse operands.
//
// Partners of each block of a are found with a prefix scan over a view of b
// whose contracted modes lead. Every output block's contributors are listed
// before any multiply runs, so output blocks are filled independently.
func (p *Plan) Sparse(be tensor.Backend, alpha float64, a, b *blocksparse.Tensor, beta float64, c *blocksparse.Tensor, opts ...Option) error {
	o := newOptions(opts)
	if !a.IsShaped() || !b.IsShaped() {
		return fmt.Errorf("contract: %w: operand has no shape", tensor.ErrShapeMismatch)
	}
	if a.Rank() != p.RankA || b.Rank() != p.RankB {
		return tensor.NewShapeError("contract", []int{p.RankA, p.RankB}, []int{a.Rank(), b.Rank()})
	}
	if err := p.validateSparse(a, b); err != nil {
		return err
	}
	shape, dims := p.resultLayout(a, b)
	if err := checkResult(shape, dims, c); err != nil {
		return err
	}

	outputs, err := p.collect(a, b)
	if err != nil {
		return err
	}
	if err := prepareResult(shape, dims, beta, c); err != nil {
		return err
	}
	for _, out := range outputs {
		out.block, err = c.ReserveShape(out.key, out.shape)
		if err != nil {
			return fmt.Errorf("contract: %w", err)
		}
	}
	o.log.Debug("sparse contraction",
		"family", p.Family.String(),
		"k", p.K,
		"a_blocks", a.Len(),
		"b_blocks", b.Len(),
		"outputs", len(outputs),
	)

	return parallel.ForErr(len(outputs), func(i int) error {
		out := outputs[i]
		for _, pr := range out.pairs {
			if err := p.dispatch(be, alpha, pr.a, pr.b, 1, out.block); err != nil {
				return fmt.Errorf("contract block %v: %w", out.key, err)
			}
		}
		return nil
	}, o.parallel)
}

// validateSparse checks block counts and registered extents of every
// contracted pair.
func (p *Plan) validateSparse(a, b *blocksparse.Tensor) error {
	for i := range p.IdxA {
		ma, mb := p.IdxA[i], p.IdxB[i]
		if na, nb := a.Shape()[ma], b.Shape()[mb]; na != nb {
			return fmt.Errorf("contract: pair %d block count: %w", i, tensor.NewShapeError("contract", []int{na}, []int{nb}))
		}
		da, db := a.Dims(ma), b.Dims(mb)
		for x := range da {
			if da[x] != 0 && db[x] != 0 && da[x] != db[x] {
				return fmt.Errorf("contract: pair %d coordinate %d: %w", i, x, tensor.NewShapeError("contract", []int{da[x]}, []int{db[x]}))
			}
		}
	}
	return nil
}

// resultLayout returns the block shape and registered extents of the result.
func (p *Plan) resultLayout(a, b *blocksparse.Tensor) (tensor.BlockShape, [][]int) {
	shape := make(tensor.BlockShape, 0, p.RankC())
	dims := make([][]int, 0, p.RankC())
	for _, m := range p.FreeA {
		shape = append(shape, a.Shape()[m])
		dims = append(dims, a.Dims(m))
	}
	for _, m := range p.FreeB {
		shape = append(shape, b.Shape()[m])
		dims = append(dims, b.Dims(m))
	}
	return shape, dims
}

// checkResult verifies a shaped c against the derived block shape and
// extents. It never modifies c.
func checkResult(shape tensor.BlockShape, dims [][]int, c *blocksparse.Tensor) error {
	if !c.IsShaped() {
		return nil
	}
	if !c.Shape().Equal(shape) {
		return tensor.NewShapeError("contract", shape, c.Shape())
	}
	for m := range dims {
		cur := c.Dims(m)
		for x, d := range dims[m] {
			if cur[x] != 0 && d != 0 && d != cur[x] {
				return fmt.Errorf("contract: result mode %d coordinate %d: %w", m, x, tensor.NewShapeError("contract", []int{cur[x]}, []int{d}))
			}
		}
	}
	return nil
}

// prepareResult allocates an unshaped c, or applies beta to a shaped one
// that already passed checkResult, and registers the result extents.
func prepareResult(shape tensor.BlockShape, dims [][]int, beta float64, c *blocksparse.Tensor) error {
	if !c.IsShaped() {
		if err := c.Resize(shape); err != nil {
			return fmt.Errorf("contract: %w", err)
		}
	} else {
		for m := range dims {
			cur := c.Dims(m)
			for x, d := range dims[m] {
				if cur[x] == 0 {
					cur[x] = d
				}
			}
			dims[m] = cur
		}
		if beta != 1 {
			c.Scale(beta)
		}
	}
	for m, d := range dims {
		if err := c.SetDims(m, d); err != nil {
			return fmt.Errorf("contract: %w", err)
		}
	}
	return nil
}

// collect lists every output block with its contributors in canonical
// layout, ordered by output index.
func (p *Plan) collect(a, b *blocksparse.Tensor) ([]*output, error) {
	view, err := b.TransposeView(slices.Concat(p.IdxB, p.FreeB))
	if err != nil {
		return nil, fmt.Errorf("contract: %w", err)
	}
	canonB := make(map[string]*tensor.Block)
	byKey := make(map[string]*output)
	var outputs []*output

	for ka, ba := range a.All() {
		pa, err := prepare(ba, p.PermA)
		if err != nil {
			return nil, fmt.Errorf("contract: permute A block %v: %w", ka, err)
		}
		freeA := ka.Select(p.FreeA)
		var scanErr error
		view.AscendPrefix(ka.Select(p.IdxA), func(kv tensor.MultiIndex, bb *tensor.Block) bool {
			vkey := kv.Key()
			pb, ok := canonB[vkey]
			if !ok {
				if pb, scanErr = prepare(bb, p.PermB); scanErr != nil {
					scanErr = fmt.Errorf("contract: permute B block %v: %w", view.SourceIndex(kv), scanErr)
					return false
				}
				canonB[vkey] = pb
			}
			kc := freeA.Concat(kv[p.K:])
			ckey := kc.Key()
			out, ok := byKey[ckey]
			if !ok {
				shape, err := p.ResultShape(ba.Shape(), bb.Shape())
				if err != nil {
					scanErr = fmt.Errorf("contract block %v: %w", kc, err)
					return false
				}
				out = &output{key: kc, shape: shape}
				byKey[ckey] = out
				outputs = append(outputs, out)
			}
			out.pairs = append(out.pairs, pair{a: pa, b: pb})
			return true
		})
		if scanErr != nil {
			return nil, scanErr
		}
	}
	slices.SortFunc(outputs, func(x, y *output) int {
		return x.key.Compare(y.key)
	})
	return outputs, nil
}

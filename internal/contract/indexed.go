package contract

import (
	"fmt"

	"github.com/born-ml/qtensor/internal/blocksparse"
	"github.com/born-ml/qtensor/internal/permute"
	"github.com/born-ml/qtensor/internal/symmetry"
	"github.com/born-ml/qtensor/internal/tensor"
)

// Indexed is a contraction written with symbolic mode labels, in the style
// of "ijk,kl->ilj": symbols shared by A and B are contracted, the remaining
// ones must appear in C exactly once.
type Indexed[S comparable] struct {
	Plan *Plan
	// Perm reorders the natural result (free A modes, then free B modes)
	// into C's order. Nil when no reordering is needed.
	Perm []int
}

// NewIndexed resolves symbolic labels into a plan.
func NewIndexed[S comparable](symA, symB, symC []S) (*Indexed[S], error) {
	posB, err := positions("B", symB)
	if err != nil {
		return nil, err
	}
	if _, err := positions("A", symA); err != nil {
		return nil, err
	}
	var idxA, idxB []int
	var natural []S
	for i, s := range symA {
		if j, ok := posB[s]; ok {
			idxA = append(idxA, i)
			idxB = append(idxB, j)
		} else {
			natural = append(natural, s)
		}
	}
	contracted := make(map[S]bool, len(idxA))
	for _, i := range idxA {
		contracted[symA[i]] = true
	}
	for _, s := range symB {
		if !contracted[s] {
			natural = append(natural, s)
		}
	}

	p, err := NewPlan(len(symA), idxA, len(symB), idxB)
	if err != nil {
		return nil, err
	}
	perm, err := permute.FromSymbols(natural, symC)
	if err != nil {
		return nil, fmt.Errorf("contract: result labels: %w", err)
	}
	ix := &Indexed[S]{Plan: p}
	if !permute.IsIdentity(perm) {
		ix.Perm = perm
	}
	return ix, nil
}

func positions[S comparable](name string, syms []S) (map[S]int, error) {
	pos := make(map[S]int, len(syms))
	for i, s := range syms {
		if _, dup := pos[s]; dup {
			return nil, fmt.Errorf("contract: %w: symbol %v repeated in %s", tensor.ErrSymbolMismatch, s, name)
		}
		pos[s] = i
	}
	return pos, nil
}

func checkRank[S comparable](name string, syms []S, rank int) error {
	if len(syms) != rank {
		return fmt.Errorf("contract: %w: %d labels for %s of rank %d", tensor.ErrSymbolMismatch, len(syms), name, rank)
	}
	return nil
}

// DenseIndexed contracts dense blocks by symbolic labels:
// c := alpha·contract(a, b) + beta·c with c's modes ordered as symC.
func DenseIndexed[S comparable](be tensor.Backend, alpha float64, a *tensor.Block, symA []S, b *tensor.Block, symB []S, beta float64, c *tensor.Block, symC []S) error {
	if err := checkRank("A", symA, a.Rank()); err != nil {
		return err
	}
	if err := checkRank("B", symB, b.Rank()); err != nil {
		return err
	}
	ix, err := NewIndexed(symA, symB, symC)
	if err != nil {
		return err
	}
	if ix.Perm == nil {
		return ix.Plan.Dense(be, alpha, a, b, beta, c)
	}
	out, err := ix.Plan.ResultShape(a.Shape(), b.Shape())
	if err != nil {
		return err
	}
	if want := out.Permute(ix.Perm); !c.IsEmpty() && !c.Shape().Equal(want) {
		return tensor.NewShapeError("contract", want, c.Shape())
	}
	natural := &tensor.Block{}
	if err := ix.Plan.Dense(be, alpha, a, b, 0, natural); err != nil {
		return err
	}
	result, err := permute.Dense(natural, ix.Perm)
	if err != nil {
		return fmt.Errorf("contract: %w", err)
	}
	natural.Release()
	if c.IsEmpty() {
		*c = *result
		return nil
	}
	c.Scale(beta)
	return c.AddScaled(1, result)
}

// SparseIndexed contracts block-sparse tensors by symbolic labels.
func SparseIndexed[S comparable](be tensor.Backend, alpha float64, a *blocksparse.Tensor, symA []S, b *blocksparse.Tensor, symB []S, beta float64, c *blocksparse.Tensor, symC []S, opts ...Option) error {
	if err := checkRank("A", symA, a.Rank()); err != nil {
		return err
	}
	if err := checkRank("B", symB, b.Rank()); err != nil {
		return err
	}
	ix, err := NewIndexed(symA, symB, symC)
	if err != nil {
		return err
	}
	if ix.Perm == nil {
		return ix.Plan.Sparse(be, alpha, a, b, beta, c, opts...)
	}
	if a.IsShaped() && b.IsShaped() {
		shape, dims := ix.Plan.resultLayout(a, b)
		if err := checkResult(shape.Permute(ix.Perm), permute.Apply(dims, ix.Perm), c); err != nil {
			return err
		}
	}
	natural := &blocksparse.Tensor{}
	if err := ix.Plan.Sparse(be, alpha, a, b, 0, natural, opts...); err != nil {
		return err
	}
	result, err := natural.Permute(ix.Perm)
	if err != nil {
		return fmt.Errorf("contract: %w", err)
	}
	natural.Clear()
	if !c.IsShaped() {
		if err := c.Resize(result.Shape()); err != nil {
			return fmt.Errorf("contract: %w", err)
		}
		for m := 0; m < result.Rank(); m++ {
			if err := c.SetDims(m, result.Dims(m)); err != nil {
				return fmt.Errorf("contract: %w", err)
			}
		}
	} else {
		c.Scale(beta)
	}
	return c.Axpy(1, result)
}

// SymmetricIndexed contracts symmetry-constrained tensors by symbolic
// labels.
func SymmetricIndexed[Q symmetry.Label[Q], S comparable](be tensor.Backend, alpha float64, a *symmetry.Tensor[Q], symA []S, b *symmetry.Tensor[Q], symB []S, beta float64, c *symmetry.Tensor[Q], symC []S, opts ...Option) error {
	if err := checkRank("A", symA, a.Rank()); err != nil {
		return err
	}
	if err := checkRank("B", symB, b.Rank()); err != nil {
		return err
	}
	ix, err := NewIndexed(symA, symB, symC)
	if err != nil {
		return err
	}
	if ix.Perm == nil {
		return SymmetricPlan(ix.Plan, be, alpha, a, b, beta, c, opts...)
	}
	total, labels, dims := symmetricLayout(ix.Plan, a, b)
	if err := checkSymmetricResult(c, total, permute.Apply(labels, ix.Perm), permute.Apply(dims, ix.Perm)); err != nil {
		return err
	}
	natural := symmetry.New[Q]()
	if err := SymmetricPlan(ix.Plan, be, alpha, a, b, 0, natural, opts...); err != nil {
		return err
	}
	result, err := natural.Permute(ix.Perm)
	if err != nil {
		return fmt.Errorf("contract: %w", err)
	}
	natural.Clear()
	if !c.IsShaped() {
		if err := c.SetShape(result.Total(), result.AllLabels(), result.AllDims()); err != nil {
			return fmt.Errorf("contract: %w", err)
		}
	} else {
		c.Scale(beta)
	}
	return c.Axpy(1, result)
}

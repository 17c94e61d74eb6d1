// Package contract reduces tensor contractions over arbitrary mode pairs to
// dense matrix-multiply-family calls on a tensor.Backend, for dense blocks,
// block-sparse tensors, and symmetry-constrained tensors.
package contract

import (
	"fmt"

	"github.com/born-ml/qtensor/internal/permute"
	"github.com/born-ml/qtensor/internal/tensor"
)

// Family selects the multiply primitive a contraction dispatches to.
type Family int

const (
	// Matrix contracts part of both operands: Gemm.
	Matrix Family = iota
	// VectorA contracts every mode of A: Gemv with A as the vector.
	VectorA
	// VectorB contracts every mode of B: Gemv with B as the vector.
	VectorB
)

// String returns the family name.
func (f Family) String() string {
	switch f {
	case Matrix:
		return "matrix"
	case VectorA:
		return "vector-a"
	case VectorB:
		return "vector-b"
	default:
		return fmt.Sprintf("Family(%d)", int(f))
	}
}

// Classify picks the family for operands of rank na and nb sharing k
// contracted modes.
func Classify(na, nb, k int) Family {
	switch {
	case k == na:
		return VectorA
	case k == nb:
		return VectorB
	default:
		return Matrix
	}
}

// Plan is the canonical form of one contraction.
//
// After applying PermA (nil = none), A's contracted modes are trailing when
// TransA is NoTrans and leading when it is Trans. After PermB, B's contracted
// modes are leading for NoTrans and trailing for Trans. The result holds A's
// free modes followed by B's free modes.
type Plan struct {
	RankA, RankB int
	K            int
	IdxA, IdxB   []int // contracted modes, paired by position
	FreeA, FreeB []int // uncontracted modes in ascending order
	PermA, PermB []int
	TransA       tensor.Transpose
	TransB       tensor.Transpose
	Family       Family
}

// RankC returns the rank of the result.
func (p *Plan) RankC() int {
	return p.RankA + p.RankB - 2*p.K
}

// NewPlan validates the mode pairs and derives permutations and transpose
// flags. Contracted modes already leading or trailing in pair order are
// handled with a transpose flag instead of a permutation.
func NewPlan(rankA int, idxA []int, rankB int, idxB []int) (*Plan, error) {
	if rankA > tensor.MaxRank || rankB > tensor.MaxRank {
		return nil, fmt.Errorf("plan: %w: ranks %d and %d", tensor.ErrRankUnsupported, rankA, rankB)
	}
	if len(idxA) != len(idxB) {
		return nil, fmt.Errorf("plan: %w: %d modes of A paired with %d modes of B", tensor.ErrSymbolMismatch, len(idxA), len(idxB))
	}
	freeA, err := free("A", rankA, idxA)
	if err != nil {
		return nil, err
	}
	freeB, err := free("B", rankB, idxB)
	if err != nil {
		return nil, err
	}
	k := len(idxA)
	p := &Plan{
		RankA:  rankA,
		RankB:  rankB,
		K:      k,
		IdxA:   append([]int(nil), idxA...),
		IdxB:   append([]int(nil), idxB...),
		FreeA:  freeA,
		FreeB:  freeB,
		Family: Classify(rankA, rankB, k),
	}

	switch {
	case isRun(idxA, rankA-k):
		p.TransA = tensor.NoTrans
	case isRun(idxA, 0):
		p.TransA = tensor.Trans
	default:
		p.PermA = append(append([]int(nil), freeA...), idxA...)
	}
	switch {
	case isRun(idxB, 0):
		p.TransB = tensor.NoTrans
	case isRun(idxB, rankB-k):
		p.TransB = tensor.Trans
	default:
		p.PermB = append(append([]int(nil), idxB...), freeB...)
	}
	return p, nil
}

// free validates contracted modes and returns the remaining ones in order.
func free(name string, rank int, idx []int) ([]int, error) {
	seen := make([]bool, rank)
	for _, m := range idx {
		if m < 0 || m >= rank {
			return nil, fmt.Errorf("plan: %w: mode %d of %s out of range for rank %d", tensor.ErrShapeMismatch, m, name, rank)
		}
		if seen[m] {
			return nil, fmt.Errorf("plan: %w: mode %d of %s contracted twice", tensor.ErrSymbolMismatch, m, name)
		}
		seen[m] = true
	}
	out := make([]int, 0, rank-len(idx))
	for m, s := range seen {
		if !s {
			out = append(out, m)
		}
	}
	return out, nil
}

// isRun reports whether idx is exactly start, start+1, ...
func isRun(idx []int, start int) bool {
	for i, m := range idx {
		if m != start+i {
			return false
		}
	}
	return true
}

// prepare brings a dense operand into canonical layout.
func prepare(x *tensor.Block, perm []int) (*tensor.Block, error) {
	if perm == nil {
		return x, nil
	}
	return permute.Dense(x, perm)
}

// ResultShape returns the dense extents of the result for operands of the
// given extents, validating contracted extents.
func (p *Plan) ResultShape(a, b tensor.Shape) (tensor.Shape, error) {
	if len(a) != p.RankA || len(b) != p.RankB {
		return nil, tensor.NewShapeError("contract", []int{p.RankA, p.RankB}, []int{len(a), len(b)})
	}
	for i := range p.IdxA {
		if da, db := a[p.IdxA[i]], b[p.IdxB[i]]; da != db {
			return nil, fmt.Errorf("contract: pair %d: %w", i, tensor.NewShapeError("contract", []int{da}, []int{db}))
		}
	}
	return a.Select(p.FreeA).Concat(b.Select(p.FreeB)), nil
}

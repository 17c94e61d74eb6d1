package contract

import (
	"fmt"

	"github.com/born-ml/qtensor/internal/symmetry"
	"github.com/born-ml/qtensor/internal/tensor"
)

// Symmetric computes c := alpha·contract(a, b) + beta·c over
// symmetry-constrained tensors.
//
// Each contracted mode of a must carry the negated labels of its partner in
// b. The result has total a.Total()+b.Total(); an unshaped c takes that
// total and the labels of the free modes.
func Symmetric[Q symmetry.Label[Q]](be tensor.Backend, alpha float64, a *symmetry.Tensor[Q], idxA []int, b *symmetry.Tensor[Q], idxB []int, beta float64, c *symmetry.Tensor[Q], opts ...Option) error {
	p, err := NewPlan(a.Rank(), idxA, b.Rank(), idxB)
	if err != nil {
		return err
	}
	return SymmetricPlan(p, be, alpha, a, b, beta, c, opts...)
}

// SymmetricPlan runs a prepared plan on symmetry-constrained tensors.
func SymmetricPlan[Q symmetry.Label[Q]](p *Plan, be tensor.Backend, alpha float64, a, b *symmetry.Tensor[Q], beta float64, c *symmetry.Tensor[Q], opts ...Option) error {
	if a.Rank() != p.RankA || b.Rank() != p.RankB {
		return tensor.NewShapeError("contract", []int{p.RankA, p.RankB}, []int{a.Rank(), b.Rank()})
	}
	for i := range p.IdxA {
		la, lb := a.Labels(p.IdxA[i]), b.Labels(p.IdxB[i])
		if !la.Equal(lb.Neg()) {
			return fmt.Errorf("contract: %w: pair %d labels %v do not cancel %v", tensor.ErrSymbolMismatch, i, la, lb)
		}
	}

	total, labels, dims := symmetricLayout(p, a, b)
	if !c.IsShaped() {
		if err := c.SetShape(total, labels, dims); err != nil {
			return fmt.Errorf("contract: %w", err)
		}
	} else if err := checkSymmetricResult(c, total, labels, dims); err != nil {
		return err
	}
	return p.Sparse(be, alpha, a.Blocks(), b.Blocks(), beta, c.Blocks(), opts...)
}

// symmetricLayout returns the total, labels and extents of the result in
// natural mode order.
func symmetricLayout[Q symmetry.Label[Q]](p *Plan, a, b *symmetry.Tensor[Q]) (Q, []symmetry.LabelList[Q], [][]int) {
	total := a.Total().Add(b.Total())
	labels := make([]symmetry.LabelList[Q], 0, p.RankC())
	dims := make([][]int, 0, p.RankC())
	for _, m := range p.FreeA {
		labels = append(labels, a.Labels(m))
		dims = append(dims, a.Dims(m))
	}
	for _, m := range p.FreeB {
		labels = append(labels, b.Labels(m))
		dims = append(dims, b.Dims(m))
	}
	return total, labels, dims
}

// checkSymmetricResult verifies that a shaped c has the given structure.
func checkSymmetricResult[Q symmetry.Label[Q]](c *symmetry.Tensor[Q], total Q, labels []symmetry.LabelList[Q], dims [][]int) error {
	if !c.IsShaped() {
		return nil
	}
	want := symmetry.New[Q]()
	if err := want.SetShape(total, labels, dims); err != nil {
		return fmt.Errorf("contract: %w", err)
	}
	if err := c.SameStructure(want); err != nil {
		return fmt.Errorf("contract: result: %w", err)
	}
	return nil
}

package contract

import (
	"fmt"

	"github.com/born-ml/qtensor/internal/tensor"
)

func flip(t tensor.Transpose) tensor.Transpose {
	if t == tensor.NoTrans {
		return tensor.Trans
	}
	return tensor.NoTrans
}

// Dense computes c := alpha·contract(a, b) + beta·c, contracting a's modes
// idxA against b's modes idxB pairwise. An empty c is allocated.
func Dense(be tensor.Backend, alpha float64, a *tensor.Block, idxA []int, b *tensor.Block, idxB []int, beta float64, c *tensor.Block) error {
	p, err := NewPlan(a.Rank(), idxA, b.Rank(), idxB)
	if err != nil {
		return err
	}
	return p.Dense(be, alpha, a, b, beta, c)
}

// Dense runs the plan on dense operands.
func (p *Plan) Dense(be tensor.Backend, alpha float64, a, b *tensor.Block, beta float64, c *tensor.Block) error {
	out, err := p.ResultShape(a.Shape(), b.Shape())
	if err != nil {
		return err
	}
	if err := c.Prepare("contract", out); err != nil {
		return err
	}
	ap, err := prepare(a, p.PermA)
	if err != nil {
		return fmt.Errorf("contract: permute A: %w", err)
	}
	bp, err := prepare(b, p.PermB)
	if err != nil {
		return fmt.Errorf("contract: permute B: %w", err)
	}
	return p.dispatch(be, alpha, ap, bp, beta, c)
}

// dispatch calls the backend primitive for canonical operands.
func (p *Plan) dispatch(be tensor.Backend, alpha float64, a, b *tensor.Block, beta float64, c *tensor.Block) error {
	switch p.Family {
	case VectorA:
		return be.Gemv(flip(p.TransB), alpha, b, a, beta, c)
	case VectorB:
		return be.Gemv(p.TransA, alpha, a, b, beta, c)
	default:
		return be.Gemm(p.TransA, p.TransB, p.K, alpha, a, b, beta, c)
	}
}

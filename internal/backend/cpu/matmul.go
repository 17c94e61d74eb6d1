package cpu

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"

	"github.com/born-ml/qtensor/internal/tensor"
)

// blasTrans maps an engine transpose flag to gonum's.
func blasTrans(t tensor.Transpose) blas.Transpose {
	if t == tensor.Trans {
		return blas.Trans
	}
	return blas.NoTrans
}

// general views data as a row-major rows×cols matrix.
func general(rows, cols int, data []float64) blas64.General {
	return blas64.General{Rows: rows, Cols: cols, Stride: cols, Data: data}
}

// Gemv computes y := alpha*op(A)*x + beta*y.
//
// A is viewed as a matrix by splitting its modes at x's rank: with NoTrans
// the trailing modes of A are contracted against x, with Trans the leading
// ones are.
func (cpu *CPUBackend) Gemv(trans tensor.Transpose, alpha float64, a, x *tensor.Block, beta float64, y *tensor.Block) error {
	rows, cols, out, err := tensor.GemvShape(trans, a, x)
	if err != nil {
		return err
	}
	if err := y.Prepare("gemv", out); err != nil {
		return err
	}
	blas64.Gemv(blasTrans(trans), alpha, general(rows, cols, a.Data()), vector(x.Data()), beta, vector(y.Mutable()))
	return nil
}

// Ger computes a := alpha*x⊗y + a. An empty a takes the extents of x
// followed by those of y.
func (cpu *CPUBackend) Ger(alpha float64, x, y, a *tensor.Block) error {
	if err := a.Prepare("ger", x.Shape().Concat(y.Shape())); err != nil {
		return err
	}
	m, n := x.NumElements(), y.NumElements()
	blas64.Ger(alpha, vector(x.Data()), vector(y.Data()), general(m, n, a.Mutable()))
	return nil
}

// Gemm computes c := alpha*op(A)*op(B) + beta*c over k contracted modes.
//
// A's trailing (NoTrans) or leading (Trans) k modes are contracted against
// B's leading (NoTrans) or trailing (Trans) k modes. With k == 0 the inner
// dimension is 1 and Gemm degenerates to an outer product.
func (cpu *CPUBackend) Gemm(transA, transB tensor.Transpose, k int, alpha float64, a, b *tensor.Block, beta float64, c *tensor.Block) error {
	m, n, inner, out, err := tensor.GemmShape(transA, transB, k, a, b)
	if err != nil {
		return err
	}
	if err := c.Prepare("gemm", out); err != nil {
		return err
	}

	// Stored layouts of the operands.
	am := general(m, inner, a.Data())
	if transA == tensor.Trans {
		am = general(inner, m, a.Data())
	}
	bm := general(inner, n, b.Data())
	if transB == tensor.Trans {
		bm = general(n, inner, b.Data())
	}

	blas64.Gemm(blasTrans(transA), blasTrans(transB), alpha, am, bm, beta, general(m, n, c.Mutable()))
	return nil
}

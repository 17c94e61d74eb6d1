package cpu

import (
	"gonum.org/v1/gonum/blas/blas64"

	"github.com/born-ml/qtensor/internal/tensor"
)

// vector views the whole payload of b as a unit-stride BLAS vector.
func vector(data []float64) blas64.Vector {
	return blas64.Vector{N: len(data), Data: data, Inc: 1}
}

// Copy performs y := x. An empty y takes x's extents.
func (cpu *CPUBackend) Copy(x, y *tensor.Block) error {
	if err := y.Prepare("copy", x.Shape()); err != nil {
		return err
	}
	blas64.Copy(vector(x.Data()), vector(y.Mutable()))
	return nil
}

// Scal performs x := alpha*x.
func (cpu *CPUBackend) Scal(alpha float64, x *tensor.Block) {
	if x.IsEmpty() || alpha == 1 {
		return
	}
	blas64.Scal(alpha, vector(x.Mutable()))
}

// Axpy performs y := alpha*x + y. An empty y is zero-filled first.
func (cpu *CPUBackend) Axpy(alpha float64, x, y *tensor.Block) error {
	if err := y.Prepare("axpy", x.Shape()); err != nil {
		return err
	}
	blas64.Axpy(alpha, vector(x.Data()), vector(y.Mutable()))
	return nil
}

// Dot returns the sum of elementwise products of two blocks with identical
// extents.
func (cpu *CPUBackend) Dot(x, y *tensor.Block) (float64, error) {
	if !x.Shape().Equal(y.Shape()) {
		return 0, tensor.NewShapeError("dot", x.Shape(), y.Shape())
	}
	return blas64.Dot(vector(x.Data()), vector(y.Data())), nil
}

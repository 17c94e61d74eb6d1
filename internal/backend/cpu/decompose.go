package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/qtensor/internal/tensor"
)

// EigenSym diagonalizes a symmetric block viewed as a square matrix whose
// rows are the first rowModes modes.
//
// Eigenvalues are returned in ascending order; eigenvector j is column j of
// vecs, whose extents are the row extents followed by the eigenpair count.
func (cpu *CPUBackend) EigenSym(a *tensor.Block, rowModes int) (vals, vecs *tensor.Block, err error) {
	if rowModes < 0 || rowModes > a.Rank() {
		return nil, nil, tensor.NewShapeError("eigensym", []int{a.Rank()}, []int{rowModes})
	}
	rows, cols := a.Shape().Split(rowModes)
	if rows != cols {
		return nil, nil, tensor.NewShapeError("eigensym", []int{rows, rows}, []int{rows, cols})
	}

	sym := mat.NewSymDense(rows, append([]float64(nil), a.Data()...))
	var es mat.EigenSym
	if ok := es.Factorize(sym, true); !ok {
		return nil, nil, fmt.Errorf("eigensym: %w", tensor.ErrTerminatedAbnormally)
	}

	vals, err = tensor.FromSlice(es.Values(nil), tensor.Shape{rows})
	if err != nil {
		return nil, nil, err
	}

	var ev mat.Dense
	es.VectorsTo(&ev)
	vecs, err = tensor.NewBlock(a.Shape()[:rowModes].Concat(tensor.Shape{rows}))
	if err != nil {
		return nil, nil, err
	}
	copyDense(vecs.Mutable(), &ev, false)
	return vals, vecs, nil
}

// SVD factorizes a block viewed as a matrix whose rows are the first rowModes
// modes: a = U·diag(s)·Vᵀ with the thin number of singular values.
func (cpu *CPUBackend) SVD(a *tensor.Block, rowModes int) (s, u, vt *tensor.Block, err error) {
	if rowModes < 0 || rowModes > a.Rank() {
		return nil, nil, nil, tensor.NewShapeError("svd", []int{a.Rank()}, []int{rowModes})
	}
	rows, cols := a.Shape().Split(rowModes)
	k := min(rows, cols)

	var svd mat.SVD
	if ok := svd.Factorize(mat.NewDense(rows, cols, append([]float64(nil), a.Data()...)), mat.SVDThin); !ok {
		return nil, nil, nil, fmt.Errorf("svd: %w", tensor.ErrTerminatedAbnormally)
	}

	s, err = tensor.FromSlice(svd.Values(nil), tensor.Shape{k})
	if err != nil {
		return nil, nil, nil, err
	}

	var um, vm mat.Dense
	svd.UTo(&um)
	svd.VTo(&vm)

	u, err = tensor.NewBlock(a.Shape()[:rowModes].Concat(tensor.Shape{k}))
	if err != nil {
		return nil, nil, nil, err
	}
	copyDense(u.Mutable(), &um, false)

	vt, err = tensor.NewBlock(tensor.Shape{k}.Concat(a.Shape()[rowModes:]))
	if err != nil {
		return nil, nil, nil, err
	}
	copyDense(vt.Mutable(), &vm, true)
	return s, u, vt, nil
}

// copyDense writes m (or its transpose) row-major into dst.
func copyDense(dst []float64, m *mat.Dense, transpose bool) {
	r, c := m.Dims()
	if transpose {
		for j := 0; j < c; j++ {
			for i := 0; i < r; i++ {
				dst[j*r+i] = m.At(i, j)
			}
		}
		return
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst[i*c+j] = m.At(i, j)
		}
	}
}

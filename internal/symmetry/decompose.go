package symmetry

import (
	"fmt"

	"github.com/born-ml/qtensor/internal/blocksparse"
	"github.com/born-ml/qtensor/internal/tensor"
)

// Decomposition is the sector-wise SVD x = U·diag(S)·VT.
//
// U has the row modes of x followed by a bond mode and total zero. VT has
// the bond mode followed by the column modes of x and x's total. The bond
// labels of U are the negated bond labels of VT, so contracting U's last
// mode with VT's first one is a valid symmetric contraction.
type Decomposition[Q Label[Q]] struct {
	U  *Tensor[Q]
	S  *blocksparse.Tensor // rank 1, one block per bond coordinate
	VT *Tensor[Q]
}

// SVD factorizes x viewed as a matrix whose rows are its first rowModes
// modes. Each symmetry sector is factorized independently through d.
func SVD[Q Label[Q]](d tensor.Decomposer, x *Tensor[Q], rowModes int) (*Decomposition[Q], error) {
	rank := x.Rank()
	if rowModes < 1 || rowModes >= rank {
		return nil, fmt.Errorf("svd: %w: %d row modes of rank %d", tensor.ErrShapeMismatch, rowModes, rank)
	}
	cols, colPlan, err := Merge(x, rowModes, rank-rowModes)
	if err != nil {
		return nil, fmt.Errorf("svd: %w", err)
	}
	mat, rowPlan, err := Merge(cols, 0, rowModes)
	if err != nil {
		return nil, fmt.Errorf("svd: %w", err)
	}

	// Merged labels are distinct, so each row coordinate meets at most one
	// column coordinate and stored blocks map 1:1 onto bond coordinates.
	type sector struct {
		row, col int
		s, u, vt *tensor.Block
	}
	var sectors []sector
	for idx, b := range mat.All() {
		s, u, vt, err := d.SVD(b, 1)
		if err != nil {
			return nil, fmt.Errorf("svd sector %v: %w", idx, err)
		}
		sectors = append(sectors, sector{row: idx[0], col: idx[1], s: s, u: u, vt: vt})
	}

	bondU := make(LabelList[Q], len(sectors))
	bondV := make(LabelList[Q], len(sectors))
	bondDims := make([]int, len(sectors))
	for i, sec := range sectors {
		bondV[i] = rowPlan.Merged[sec.row]
		bondU[i] = bondV[i].Neg()
		bondDims[i] = sec.s.NumElements()
	}

	var zero Q
	u := New[Q](WithLogger(x.log))
	if err := u.SetShape(zero, []LabelList[Q]{rowPlan.Merged, bondU}, [][]int{rowPlan.MergedDims, bondDims}); err != nil {
		return nil, fmt.Errorf("svd: %w", err)
	}
	vt := New[Q](WithLogger(x.log))
	if err := vt.SetShape(x.Total(), []LabelList[Q]{bondV, colPlan.Merged}, [][]int{bondDims, colPlan.MergedDims}); err != nil {
		return nil, fmt.Errorf("svd: %w", err)
	}
	s, err := blocksparse.New(tensor.BlockShape{len(sectors)})
	if err != nil {
		return nil, fmt.Errorf("svd: %w", err)
	}
	for i, sec := range sectors {
		if err := u.MustInsert(tensor.MultiIndex{sec.row, i}, sec.u); err != nil {
			return nil, fmt.Errorf("svd: %w", err)
		}
		if err := vt.MustInsert(tensor.MultiIndex{i, sec.col}, sec.vt); err != nil {
			return nil, fmt.Errorf("svd: %w", err)
		}
		if err := s.Insert(tensor.MultiIndex{i}, sec.s); err != nil {
			return nil, fmt.Errorf("svd: %w", err)
		}
	}

	if u, err = Expand(u, 0, rowPlan.Layout()); err != nil {
		return nil, fmt.Errorf("svd: %w", err)
	}
	if vt, err = Expand(vt, 1, colPlan.Layout()); err != nil {
		return nil, fmt.Errorf("svd: %w", err)
	}
	return &Decomposition[Q]{U: u, S: s, VT: vt}, nil
}

// AbsorbS returns U with every bond column scaled by its singular value.
func (dc *Decomposition[Q]) AbsorbS() *Tensor[Q] {
	us := dc.U.DeepCopy()
	bond := us.Rank() - 1
	for idx, b := range us.All() {
		sb, ok := dc.S.Find(tensor.MultiIndex{idx[bond]})
		if !ok {
			continue
		}
		sv := sb.Data()
		k := len(sv)
		data := b.Mutable()
		for i := range data {
			data[i] *= sv[i%k]
		}
	}
	return us
}

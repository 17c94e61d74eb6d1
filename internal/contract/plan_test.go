package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/qtensor/internal/tensor"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, VectorA, Classify(2, 3, 2))
	assert.Equal(t, VectorB, Classify(3, 2, 2))
	assert.Equal(t, Matrix, Classify(3, 3, 1))
	assert.Equal(t, Matrix, Classify(2, 2, 0))
	assert.Equal(t, "vector-a", VectorA.String())
	assert.Equal(t, "Family(7)", Family(7).String())
}

func TestNewPlan(t *testing.T) {
	tests := []struct {
		name           string
		rankA          int
		idxA           []int
		rankB          int
		idxB           []int
		transA, transB tensor.Transpose
		permA, permB   []int
		family         Family
		freeA, freeB   []int
	}{
		{
			name: "trailing leading", rankA: 3, idxA: []int{2}, rankB: 2, idxB: []int{0},
			transA: tensor.NoTrans, transB: tensor.NoTrans, family: Matrix,
			freeA: []int{0, 1}, freeB: []int{1},
		},
		{
			name: "leading trailing", rankA: 3, idxA: []int{0, 1}, rankB: 4, idxB: []int{2, 3},
			transA: tensor.Trans, transB: tensor.Trans, family: Matrix,
			freeA: []int{2}, freeB: []int{0, 1},
		},
		{
			name: "interior modes", rankA: 3, idxA: []int{1}, rankB: 3, idxB: []int{1},
			permA: []int{0, 2, 1}, permB: []int{1, 0, 2}, family: Matrix,
			freeA: []int{0, 2}, freeB: []int{0, 2},
		},
		{
			name: "swapped pair order", rankA: 2, idxA: []int{1, 0}, rankB: 3, idxB: []int{0, 1},
			permA: []int{1, 0}, transB: tensor.NoTrans, family: VectorA,
			freeA: []int{}, freeB: []int{2},
		},
		{
			name: "vector b", rankA: 3, idxA: []int{1, 2}, rankB: 2, idxB: []int{0, 1},
			transA: tensor.NoTrans, transB: tensor.NoTrans, family: VectorB,
			freeA: []int{0}, freeB: []int{},
		},
		{
			name: "outer", rankA: 2, rankB: 1, family: Matrix,
			freeA: []int{0, 1}, freeB: []int{0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPlan(tt.rankA, tt.idxA, tt.rankB, tt.idxB)
			require.NoError(t, err)
			assert.Equal(t, tt.family, p.Family)
			assert.Equal(t, len(tt.idxA), p.K)
			assert.Equal(t, tt.freeA, p.FreeA)
			assert.Equal(t, tt.freeB, p.FreeB)
			assert.Equal(t, tt.permA, p.PermA)
			assert.Equal(t, tt.permB, p.PermB)
			if tt.permA == nil {
				assert.Equal(t, tt.transA, p.TransA)
			}
			if tt.permB == nil {
				assert.Equal(t, tt.transB, p.TransB)
			}
			assert.Equal(t, len(tt.freeA)+len(tt.freeB), p.RankC())
		})
	}
}

func TestNewPlan_Errors(t *testing.T) {
	_, err := NewPlan(2, []int{0}, 2, []int{0, 1})
	assert.ErrorIs(t, err, tensor.ErrSymbolMismatch)

	_, err = NewPlan(2, []int{2}, 2, []int{0})
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)

	_, err = NewPlan(2, []int{0}, 2, []int{-1})
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)

	_, err = NewPlan(3, []int{1, 1}, 3, []int{0, 1})
	assert.ErrorIs(t, err, tensor.ErrSymbolMismatch)

	_, err = NewPlan(tensor.MaxRank+1, nil, 1, nil)
	assert.ErrorIs(t, err, tensor.ErrRankUnsupported)
}

func TestPlan_ResultShape(t *testing.T) {
	p, err := NewPlan(3, []int{1}, 2, []int{1})
	require.NoError(t, err)

	shape, err := p.ResultShape(tensor.Shape{2, 3, 4}, tensor.Shape{5, 3})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 4, 5}, shape)

	_, err = p.ResultShape(tensor.Shape{2, 3, 4}, tensor.Shape{5, 4})
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)

	_, err = p.ResultShape(tensor.Shape{2, 3}, tensor.Shape{5, 3})
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

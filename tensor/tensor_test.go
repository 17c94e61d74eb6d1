// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/qtensor/backend/cpu"
	"github.com/born-ml/qtensor/tensor"
)

func TestContract_Dense(t *testing.T) {
	be := cpu.New()
	a, err := tensor.FromSlice([]float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	require.NoError(t, err)
	b, err := tensor.FromSlice([]float64{1, 0, 0, 1, 1, 1}, tensor.Shape{3, 2})
	require.NoError(t, err)

	c := &tensor.Block{}
	require.NoError(t, tensor.Contract(be, 1, a, []int{1}, b, []int{0}, 0, c))
	assert.Equal(t, tensor.Shape{2, 2}, c.Shape())
	assert.InDeltaSlice(t, []float64{4, 5, 10, 11}, c.Data(), 1e-12)

	ct := &tensor.Block{}
	require.NoError(t, tensor.ContractIndexed(be, 1, a, []rune("ij"), b, []rune("jk"), 0, ct, []rune("ki")))
	want, err := tensor.Permute(c, []int{1, 0})
	require.NoError(t, err)
	assert.True(t, want.AllClose(ct, 1e-12))

	perm, err := tensor.PermutationFromSymbols([]rune("ijk"), []rune("kij"))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0, 1}, perm)
	assert.Equal(t, []int{1, 2, 0}, tensor.InversePermutation(perm))

	_, err = tensor.NewPlan(2, []int{0}, 2, []int{0, 1})
	assert.ErrorIs(t, err, tensor.ErrSymbolMismatch)
}

func TestContract_Sparse(t *testing.T) {
	a, err := tensor.NewSparse(tensor.BlockShape{2, 2})
	require.NoError(t, err)
	blk, err := tensor.NewBlock(tensor.Shape{1, 1})
	require.NoError(t, err)
	blk.Fill(3)
	require.NoError(t, a.Insert(tensor.MultiIndex{0, 1}, blk))

	c := &tensor.SparseTensor{}
	require.NoError(t, tensor.ContractSparse(cpu.New(), 1, a, []int{1}, a, []int{1}, 0, c,
		tensor.WithParallel(tensor.ParallelConfig{Enabled: false})))
	got, ok := c.Find(tensor.MultiIndex{0, 0})
	require.True(t, ok)
	assert.Equal(t, []float64{9}, got.Data())
}

func TestSymmetry_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	be := cpu.New()
	labels := []tensor.LabelList[tensor.U1]{{-1, 0, 1}, {0, 1}, {1, 0, -1}}
	dims := [][]int{{1, 2, 1}, {1, 1}, {2, 2, 1}}

	x := tensor.NewSymmetry[tensor.U1]()
	require.NoError(t, x.Resize(0, labels, dims))
	x.Generate(rng.NormFloat64)

	merged, plan, err := tensor.Merge(x, 0, 2)
	require.NoError(t, err)
	back, err := tensor.Expand(merged, 0, plan)
	require.NoError(t, err)
	assert.True(t, back.AllClose(x, 0))

	dc, err := tensor.SVD(be, x, 2)
	require.NoError(t, err)
	us := dc.AbsorbS()
	rebuilt := tensor.NewSymmetry[tensor.U1]()
	require.NoError(t, tensor.ContractSymmetricIndexed(be, 1,
		us, []rune("ijb"), dc.VT, []rune("bk"), 0, rebuilt, []rune("ijk")))
	assert.True(t, rebuilt.AllClose(x, 1e-10))

	_, err = tensor.SVD(be, x, 3)
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

func TestSymmetry_Forbidden(t *testing.T) {
	x := tensor.NewSymmetry[tensor.Z2]()
	require.NoError(t, x.SetShape(0,
		[]tensor.LabelList[tensor.Z2]{{0, 1}, {0, 1}},
		[][]int{{1, 1}, {1, 1}}))
	blk, err := tensor.NewBlock(tensor.Shape{1, 1})
	require.NoError(t, err)
	assert.ErrorIs(t, x.MustInsert(tensor.MultiIndex{0, 1}, blk), tensor.ErrForbiddenBlock)
	require.NoError(t, x.MustInsert(tensor.MultiIndex{1, 1}, blk))
	assert.Equal(t, 1, x.Len())
}

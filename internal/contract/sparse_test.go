package contract

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/born-ml/qtensor/internal/backend/cpu"
	"github.com/born-ml/qtensor/internal/blocksparse"
	"github.com/born-ml/qtensor/internal/logger"
	"github.com/born-ml/qtensor/internal/parallel"
	"github.com/born-ml/qtensor/internal/tensor"
)

var sparseCases = []struct {
	name         string
	dimsA, dimsB [][]int
	idxA, idxB   []int
}{
	{
		name:  "trailing",
		dimsA: [][]int{{1, 2}, {2, 1, 3}, {2, 2}},
		dimsB: [][]int{{2, 2}, {3, 1}},
		idxA:  []int{2}, idxB: []int{0},
	},
	{
		name:  "interior",
		dimsA: [][]int{{1, 2}, {2, 1, 3}, {2, 2}},
		dimsB: [][]int{{1, 2}, {2, 1, 3}},
		idxA:  []int{1}, idxB: []int{1},
	},
	{
		name:  "crossed pairs",
		dimsA: [][]int{{1, 2}, {2, 1, 3}, {2, 3}},
		dimsB: [][]int{{2, 3}, {1, 1}, {1, 2}},
		idxA:  []int{0, 2}, idxB: []int{2, 0},
	},
	{
		name:  "vector a",
		dimsA: [][]int{{2, 1}, {1, 3}},
		dimsB: [][]int{{2, 1}, {1, 3}, {2, 2}},
		idxA:  []int{0, 1}, idxB: []int{0, 1},
	},
	{
		name:  "vector b",
		dimsA: [][]int{{2, 2}, {2, 1}, {1, 3}},
		dimsB: [][]int{{1, 3}, {2, 1}},
		idxA:  []int{2, 1}, idxB: []int{0, 1},
	},
	{
		name:  "outer",
		dimsA: [][]int{{1, 2}, {3}},
		dimsB: [][]int{{2, 1}},
	},
}

func sequential() Option {
	return WithParallel(parallel.Sequential())
}

func eager() Option {
	return WithParallel(parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1})
}

func TestSparse_MatchesDense(t *testing.T) {
	rng := rand.New(rand.NewPCG(41, 42))
	for _, tc := range sparseCases {
		for name, be := range backends() {
			t.Run(tc.name+"/"+name, func(t *testing.T) {
				a := randomSparse(t, rng, tc.dimsA, 0.6)
				b := randomSparse(t, rng, tc.dimsB, 0.6)
				want := naive(t, densify(t, a), tc.idxA, densify(t, b), tc.idxB)

				c := &blocksparse.Tensor{}
				require.NoError(t, Sparse(be, 1, a, tc.idxA, b, tc.idxB, 0, c, sequential()))
				got := densify(t, c)
				assert.Equal(t, want.Shape(), got.Shape())
				assert.True(t, want.AllClose(got, 1e-10))
			})
		}
	}
}

func TestSparse_OnlyReachableBlocks(t *testing.T) {
	be := tensor.NewMockBackend()
	a, err := blocksparse.New(tensor.BlockShape{2, 2})
	require.NoError(t, err)
	b, err := blocksparse.New(tensor.BlockShape{2, 2})
	require.NoError(t, err)

	one := tensor.MustBlock(tensor.Shape{1, 1})
	one.Fill(2)
	require.NoError(t, a.Insert(tensor.MultiIndex{0, 1}, one))
	require.NoError(t, a.Insert(tensor.MultiIndex{1, 1}, one))
	require.NoError(t, b.Insert(tensor.MultiIndex{1, 0}, one))
	require.NoError(t, b.Insert(tensor.MultiIndex{0, 1}, one))

	c := &blocksparse.Tensor{}
	require.NoError(t, Sparse(be, 1, a, []int{1}, b, []int{0}, 0, c))
	assert.Equal(t, []tensor.MultiIndex{{0, 0}, {1, 0}}, c.Keys())
	for _, blk := range c.All() {
		assert.Equal(t, []float64{4}, blk.Data())
	}
}

func TestSparse_ParallelMatchesSequential(t *testing.T) {
	rng := rand.New(rand.NewPCG(51, 52))
	dimsA := [][]int{{1, 2, 2, 1}, {2, 1, 3}, {2, 2, 1}}
	dimsB := [][]int{{2, 2, 1}, {1, 3, 2, 2}}
	a := randomSparse(t, rng, dimsA, 0.7)
	b := randomSparse(t, rng, dimsB, 0.7)

	seq := &blocksparse.Tensor{}
	require.NoError(t, Sparse(cpu.New(), 1.5, a, []int{2}, b, []int{0}, 0, seq, sequential()))
	par := &blocksparse.Tensor{}
	require.NoError(t, Sparse(cpu.New(), 1.5, a, []int{2}, b, []int{0}, 0, par, eager()))

	assert.Equal(t, seq.Keys(), par.Keys())
	assert.True(t, seq.AllClose(par, 0))
}

func TestSparse_AlphaBeta(t *testing.T) {
	rng := rand.New(rand.NewPCG(61, 62))
	dimsA := [][]int{{1, 2}, {2, 1, 3}}
	dimsB := [][]int{{2, 1, 3}, {2, 2}}
	a := randomSparse(t, rng, dimsA, 0.6)
	b := randomSparse(t, rng, dimsB, 0.6)
	c := randomSparse(t, rng, [][]int{{1, 2}, {2, 2}}, 0.5)

	ab := naive(t, densify(t, a), []int{1}, densify(t, b), []int{0})
	c0 := densify(t, c)

	require.NoError(t, Sparse(tensor.NewMockBackend(), 2, a, []int{1}, b, []int{0}, 0.5, c, eager()))
	got := densify(t, c)
	for i, v := range got.Data() {
		assert.InDelta(t, 2*ab.Data()[i]+0.5*c0.Data()[i], v, 1e-10)
	}
}

func TestSparse_OperandsUntouched(t *testing.T) {
	rng := rand.New(rand.NewPCG(71, 72))
	a := randomSparse(t, rng, [][]int{{1, 2}, {2, 1}, {3, 1}}, 0.8)
	b := randomSparse(t, rng, [][]int{{2, 1}, {2, 2}}, 0.8)
	a0, b0 := a.DeepCopy(), b.DeepCopy()

	c := &blocksparse.Tensor{}
	require.NoError(t, Sparse(cpu.New(), 1, a, []int{1}, b, []int{0}, 0, c))
	assert.True(t, a.AllClose(a0, 0))
	assert.True(t, b.AllClose(b0, 0))
}

func TestSparse_Errors(t *testing.T) {
	be := tensor.NewMockBackend()
	rng := rand.New(rand.NewPCG(81, 82))
	a := randomSparse(t, rng, [][]int{{1, 2}, {2, 1}}, 1)

	counts := randomSparse(t, rng, [][]int{{2, 1, 1}, {1}}, 1)
	err := Sparse(be, 1, a, []int{1}, counts, []int{0}, 0, &blocksparse.Tensor{})
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)

	extents := randomSparse(t, rng, [][]int{{1, 2}, {1}}, 1)
	err = Sparse(be, 1, a, []int{1}, extents, []int{0}, 0, &blocksparse.Tensor{})
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)

	err = Sparse(be, 1, a, []int{1}, &blocksparse.Tensor{}, []int{0}, 0, &blocksparse.Tensor{})
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)

	b := randomSparse(t, rng, [][]int{{2, 1}, {3}}, 1)
	wrongShape, err := blocksparse.New(tensor.BlockShape{2, 2})
	require.NoError(t, err)
	err = Sparse(be, 1, a, []int{1}, b, []int{0}, 0, wrongShape)
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)

	wrongDims, err := blocksparse.New(tensor.BlockShape{2, 1})
	require.NoError(t, err)
	require.NoError(t, wrongDims.SetDims(1, []int{4}))
	err = Sparse(be, 1, a, []int{1}, b, []int{0}, 0, wrongDims)
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)

	err = Sparse(be, 1, a, []int{1}, b, []int{1}, 0, &blocksparse.Tensor{})
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

func TestSparse_Logs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	rng := rand.New(rand.NewPCG(91, 92))
	a := randomSparse(t, rng, [][]int{{1, 2}, {2, 1}}, 1)
	b := randomSparse(t, rng, [][]int{{2, 1}, {3}}, 1)

	c := &blocksparse.Tensor{}
	require.NoError(t, Sparse(cpu.New(), 1, a, []int{1}, b, []int{0}, 0, c,
		WithLogger(logger.FromZap(zap.New(core)))))

	entries := logs.FilterMessage("sparse contraction").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "matrix", fields["family"])
	assert.EqualValues(t, 2, fields["outputs"])
}

func TestSparseIndexed(t *testing.T) {
	rng := rand.New(rand.NewPCG(101, 102))
	a := randomSparse(t, rng, [][]int{{1, 2}, {2, 1, 3}, {2, 2}}, 0.6)
	b := randomSparse(t, rng, [][]int{{2, 2}, {3, 1}}, 0.6)

	natural := &blocksparse.Tensor{}
	require.NoError(t, Sparse(cpu.New(), 1, a, []int{2}, b, []int{0}, 0, natural))
	want, err := natural.Permute([]int{2, 0, 1})
	require.NoError(t, err)

	c := &blocksparse.Tensor{}
	require.NoError(t, SparseIndexed(cpu.New(), 1, a, []rune("ijk"), b, []rune("kl"), 0, c, []rune("lij")))
	assert.Equal(t, tensor.BlockShape{2, 2, 3}, c.Shape())
	assert.True(t, want.AllClose(c, 1e-12))
	for m := 0; m < 3; m++ {
		assert.Equal(t, want.Dims(m), c.Dims(m))
	}

	require.NoError(t, SparseIndexed(cpu.New(), 1, a, []rune("ijk"), b, []rune("kl"), 1, c, []rune("lij")))
	twice := want.DeepCopy()
	twice.Scale(2)
	assert.True(t, twice.AllClose(c, 1e-10))
}

func TestSparseIndexed_RejectsResultBeforeWriting(t *testing.T) {
	rng := rand.New(rand.NewPCG(103, 104))
	a := randomSparse(t, rng, [][]int{{4}, {2}}, 1)
	b := randomSparse(t, rng, [][]int{{2}, {3}}, 1)

	// c is laid out as (l, i) but registers i's extent on l.
	c, err := blocksparse.New(tensor.BlockShape{1, 1})
	require.NoError(t, err)
	require.NoError(t, c.SetDims(0, []int{4}))
	require.NoError(t, c.SetDims(1, []int{2}))
	blk, err := c.Reserve(tensor.MultiIndex{0, 0})
	require.NoError(t, err)
	blk.Fill(5)
	before := c.DeepCopy()

	err = SparseIndexed(cpu.New(), 1, a, []rune("ik"), b, []rune("kl"), 0, c, []rune("li"))
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
	assert.True(t, before.AllClose(c, 0))
	assert.Equal(t, []int{4}, c.Dims(0))
}

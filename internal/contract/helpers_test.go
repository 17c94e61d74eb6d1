package contract

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/born-ml/qtensor/internal/blocksparse"
	"github.com/born-ml/qtensor/internal/tensor"
)

// each visits every element index of shape in row-major order.
func each(shape tensor.Shape, fn func(idx []int)) {
	for _, d := range shape {
		if d == 0 {
			return
		}
	}
	idx := make([]int, len(shape))
	for {
		fn(idx)
		i := len(shape) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < shape[i] {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return
		}
	}
}

// naive contracts element by element.
func naive(t *testing.T, a *tensor.Block, idxA []int, b *tensor.Block, idxB []int) *tensor.Block {
	t.Helper()
	p, err := NewPlan(a.Rank(), idxA, b.Rank(), idxB)
	require.NoError(t, err)
	shape, err := p.ResultShape(a.Shape(), b.Shape())
	require.NoError(t, err)
	c := tensor.MustBlock(shape)
	inner := a.Shape().Select(idxA)

	ia := make([]int, a.Rank())
	ib := make([]int, b.Rank())
	each(shape, func(ic []int) {
		for i, m := range p.FreeA {
			ia[m] = ic[i]
		}
		for i, m := range p.FreeB {
			ib[m] = ic[len(p.FreeA)+i]
		}
		sum := 0.0
		each(inner, func(ik []int) {
			for i := range ik {
				ia[idxA[i]] = ik[i]
				ib[idxB[i]] = ik[i]
			}
			sum += a.At(ia...) * b.At(ib...)
		})
		c.Set(sum, ic...)
	})
	return c
}

func randomBlock(rng *rand.Rand, shape tensor.Shape) *tensor.Block {
	b := tensor.MustBlock(shape)
	b.Generate(rng.NormFloat64)
	return b
}

// randomSparse registers extents for every coordinate and stores a random
// subset of blocks.
func randomSparse(t *testing.T, rng *rand.Rand, dims [][]int, fill float64) *blocksparse.Tensor {
	t.Helper()
	shape := make(tensor.BlockShape, len(dims))
	for i, d := range dims {
		shape[i] = len(d)
	}
	x, err := blocksparse.New(shape)
	require.NoError(t, err)
	for i, d := range dims {
		require.NoError(t, x.SetDims(i, d))
	}
	shape.Each(func(idx tensor.MultiIndex) bool {
		if rng.Float64() >= fill {
			return true
		}
		b, err := x.Reserve(idx)
		require.NoError(t, err)
		b.Generate(rng.NormFloat64)
		return true
	})
	return x
}

// densify lays every block of x out at its coordinate offsets. Missing
// blocks are zero.
func densify(t *testing.T, x *blocksparse.Tensor) *tensor.Block {
	t.Helper()
	rank := x.Rank()
	offsets := make([][]int, rank)
	full := make(tensor.Shape, rank)
	for m := 0; m < rank; m++ {
		dims := x.Dims(m)
		offsets[m] = make([]int, len(dims))
		for c, d := range dims {
			offsets[m][c] = full[m]
			full[m] += d
		}
	}
	out := tensor.MustBlock(full)
	pos := make([]int, rank)
	for k, b := range x.All() {
		each(b.Shape(), func(e []int) {
			for m := range e {
				pos[m] = offsets[m][k[m]] + e[m]
			}
			out.Set(b.At(e...), pos...)
		})
	}
	return out
}

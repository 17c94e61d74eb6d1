package contract

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/qtensor/internal/backend/cpu"
	"github.com/born-ml/qtensor/internal/blocksparse"
	"github.com/born-ml/qtensor/internal/symmetry"
	"github.com/born-ml/qtensor/internal/tensor"
)

type u1 = symmetry.U1

func symmetric(t *testing.T, rng *rand.Rand, total u1, labels []symmetry.LabelList[u1], dims [][]int) *symmetry.Tensor[u1] {
	t.Helper()
	x := symmetry.New[u1]()
	require.NoError(t, x.Resize(total, labels, dims))
	x.Generate(rng.NormFloat64)
	return x
}

// operands returns A(ijk) with total 0 and B(jl) with total 1 whose j legs
// cancel.
func operands(t *testing.T, rng *rand.Rand) (a, b *symmetry.Tensor[u1]) {
	a = symmetric(t, rng, 0,
		[]symmetry.LabelList[u1]{{0, 1}, {-1, 0, 1}, {0, -1}},
		[][]int{{1, 2}, {2, 1, 1}, {2, 1}})
	b = symmetric(t, rng, 1,
		[]symmetry.LabelList[u1]{{1, 0, -1}, {0, 1}},
		[][]int{{2, 1, 1}, {1, 2}})
	return a, b
}

func TestSymmetric_Contract(t *testing.T) {
	rng := rand.New(rand.NewPCG(111, 112))
	a, b := operands(t, rng)

	c := symmetry.New[u1]()
	require.NoError(t, Symmetric(cpu.New(), 1, a, []int{1}, b, []int{0}, 0, c, sequential()))
	require.NoError(t, c.Validate())
	assert.Equal(t, u1(1), c.Total())
	assert.Equal(t, symmetry.LabelList[u1]{0, 1}, c.Labels(0))
	assert.Equal(t, symmetry.LabelList[u1]{0, -1}, c.Labels(1))
	assert.Equal(t, symmetry.LabelList[u1]{0, 1}, c.Labels(2))
	assert.Equal(t, [][]int{{1, 2}, {2, 1}, {1, 2}}, c.AllDims())
	assert.Positive(t, c.Len())

	plain := &blocksparse.Tensor{}
	require.NoError(t, Sparse(cpu.New(), 1, a.Blocks(), []int{1}, b.Blocks(), []int{0}, 0, plain))
	assert.True(t, plain.AllClose(c.Blocks(), 1e-12))

	want := naive(t, densify(t, a.Blocks()), []int{1}, densify(t, b.Blocks()), []int{0})
	assert.True(t, want.AllClose(densify(t, c.Blocks()), 1e-10))

	// Accumulate: c := AB + c.
	require.NoError(t, Symmetric(cpu.New(), 1, a, []int{1}, b, []int{0}, 1, c, eager()))
	plain.Scale(2)
	assert.True(t, plain.AllClose(c.Blocks(), 1e-10))
}

func TestSymmetric_LabelsMustCancel(t *testing.T) {
	rng := rand.New(rand.NewPCG(121, 122))
	a, _ := operands(t, rng)
	same := symmetric(t, rng, 0,
		[]symmetry.LabelList[u1]{{-1, 0, 1}, {0, 1}},
		[][]int{{2, 1, 1}, {1, 2}})

	c := symmetry.New[u1]()
	err := Symmetric(cpu.New(), 1, a, []int{1}, same, []int{0}, 0, c)
	assert.ErrorIs(t, err, tensor.ErrSymbolMismatch)
	assert.False(t, c.IsShaped())
}

func TestSymmetric_ResultStructure(t *testing.T) {
	rng := rand.New(rand.NewPCG(131, 132))
	a, b := operands(t, rng)

	c := symmetry.New[u1]()
	require.NoError(t, c.SetShape(0,
		[]symmetry.LabelList[u1]{{0, 1}, {0, -1}, {0, 1}},
		[][]int{{1, 2}, {2, 1}, {1, 2}}))
	err := Symmetric(cpu.New(), 1, a, []int{1}, b, []int{0}, 0, c)
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

func TestSymmetric_Chain(t *testing.T) {
	// Contracting a tensor with its leg-reversed partner conserves the
	// combined total at every step.
	rng := rand.New(rand.NewPCG(141, 142))
	be := cpu.New()
	bond := symmetry.LabelList[u1]{-1, 0, 1}
	bondDims := []int{1, 2, 1}
	phys := symmetry.LabelList[u1]{0, 1}
	physDims := []int{1, 1}

	left := symmetric(t, rng, 0, []symmetry.LabelList[u1]{bond, phys, bond.Neg()}, [][]int{bondDims, physDims, bondDims})
	right := symmetric(t, rng, 0, []symmetry.LabelList[u1]{bond, phys, bond.Neg()}, [][]int{bondDims, physDims, bondDims})

	two := symmetry.New[u1]()
	require.NoError(t, Symmetric(be, 1, left, []int{2}, right, []int{0}, 0, two))
	require.NoError(t, two.Validate())
	assert.Equal(t, 4, two.Rank())

	// Close the outer bonds against themselves with an identity.
	id := symmetry.New[u1]()
	require.NoError(t, id.Resize(0, []symmetry.LabelList[u1]{bond, bond.Neg()}, [][]int{bondDims, bondDims}))
	for idx, blk := range id.All() {
		for i := 0; i < bondDims[idx[0]]; i++ {
			blk.Set(1, i, i)
		}
	}
	closed := symmetry.New[u1]()
	require.NoError(t, Symmetric(be, 1, two, []int{3, 0}, id, []int{0, 1}, 0, closed))
	require.NoError(t, closed.Validate())
	assert.Equal(t, []symmetry.LabelList[u1]{phys, phys}, closed.AllLabels())

	want := naive(t, densify(t, two.Blocks()), []int{3, 0}, densify(t, id.Blocks()), []int{0, 1})
	assert.True(t, want.AllClose(densify(t, closed.Blocks()), 1e-10))
}

func TestSymmetricIndexed(t *testing.T) {
	rng := rand.New(rand.NewPCG(151, 152))
	a, b := operands(t, rng)

	natural := symmetry.New[u1]()
	require.NoError(t, Symmetric(cpu.New(), 1, a, []int{1}, b, []int{0}, 0, natural))
	want, err := natural.Permute([]int{2, 1, 0})
	require.NoError(t, err)

	c := symmetry.New[u1]()
	require.NoError(t, SymmetricIndexed(cpu.New(), 1, a, []rune("ijk"), b, []rune("jl"), 0, c, []rune("lki")))
	require.NoError(t, c.Validate())
	assert.True(t, want.AllClose(c, 1e-12))

	require.NoError(t, SymmetricIndexed(cpu.New(), -1, a, []rune("ijk"), b, []rune("jl"), 1, c, []rune("lki")))
	assert.InDelta(t, 0, c.Norm(), 1e-12)

	other := symmetry.New[u1]()
	require.NoError(t, other.SetShape(1, want.AllLabels()[:2], want.AllDims()[:2]))
	err = SymmetricIndexed(cpu.New(), 1, a, []rune("ijk"), b, []rune("jl"), 0, other, []rune("lki"))
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)

	// Matching labels but swapped extents on l.
	swapped := symmetric(t, rng, 1, want.AllLabels(), [][]int{{2, 1}, {2, 1}, {1, 2}})
	before := swapped.DeepCopy()
	err = SymmetricIndexed(cpu.New(), 1, a, []rune("ijk"), b, []rune("jl"), 0, swapped, []rune("lki"))
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
	assert.True(t, before.AllClose(swapped, 0))
}

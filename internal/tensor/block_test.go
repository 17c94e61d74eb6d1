package tensor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBlock(t *testing.T) {
	b, err := NewBlock(Shape{2, 3})
	require.NoError(t, err)
	assert.Equal(t, 6, b.NumElements())
	assert.Equal(t, 2, b.Rank())
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 0}, b.Data())

	_, err = NewBlock(Shape{2, 0})
	assert.Error(t, err)

	_, err = NewBlock(make(Shape, MaxRank+1))
	assert.ErrorIs(t, err, ErrRankUnsupported)
}

func TestBlock_Scalar(t *testing.T) {
	b, err := NewBlock(Shape{})
	require.NoError(t, err)
	assert.Equal(t, 1, b.NumElements())
	b.Set(2.5)
	assert.InDelta(t, 2.5, b.At(), 0)
}

func TestBlock_Empty(t *testing.T) {
	var b Block
	assert.True(t, b.IsEmpty())
	assert.Equal(t, 0, b.NumElements())
	assert.Nil(t, b.Data())
	assert.Equal(t, "Block[empty]", b.String())

	// Releasing twice is safe.
	b.Release()
	b.Release()
	assert.True(t, b.IsEmpty())
}

func TestBlock_AtSet(t *testing.T) {
	b := MustBlock(Shape{2, 3, 4})
	b.Set(7, 1, 2, 3)
	assert.InDelta(t, 7.0, b.At(1, 2, 3), 0)
	assert.InDelta(t, 7.0, b.Data()[1*12+2*4+3], 0)

	assert.Panics(t, func() { b.At(2, 0, 0) })
	assert.Panics(t, func() { b.At(0, 0) })
}

func TestBlock_CloneIsCopyOnWrite(t *testing.T) {
	a, err := FromSlice([]float64{1, 2, 3, 4}, Shape{2, 2})
	require.NoError(t, err)

	alias := a.Clone()
	assert.False(t, a.IsUnique())
	assert.False(t, alias.IsUnique())

	alias.Set(10, 0, 0)
	assert.InDelta(t, 1.0, a.At(0, 0), 0, "source must not see alias writes")
	assert.InDelta(t, 10.0, alias.At(0, 0), 0)
	assert.True(t, a.IsUnique())
	assert.True(t, alias.IsUnique())
}

func TestBlock_ReleaseKeepsSharedPayload(t *testing.T) {
	a, err := FromSlice([]float64{1, 2, 3}, Shape{3})
	require.NoError(t, err)
	alias := a.Clone()

	a.Release()
	assert.True(t, a.IsEmpty())
	assert.Equal(t, []float64{1, 2, 3}, alias.Data())
	assert.True(t, alias.IsUnique())
}

func TestBlock_DeepCopy(t *testing.T) {
	a, err := FromSlice([]float64{1, 2}, Shape{2})
	require.NoError(t, err)
	c := a.DeepCopy()
	assert.True(t, a.IsUnique())
	c.Scale(3)
	assert.Equal(t, []float64{1, 2}, a.Data())
	assert.Equal(t, []float64{3, 6}, c.Data())
}

func TestBlock_Prepare(t *testing.T) {
	var b Block
	require.NoError(t, b.Prepare("test", Shape{2, 2}))
	assert.Equal(t, Shape{2, 2}, b.Shape())
	assert.Equal(t, []float64{0, 0, 0, 0}, b.Data())

	require.NoError(t, b.Prepare("test", Shape{2, 2}))

	err := b.Prepare("test", Shape{4})
	require.ErrorIs(t, err, ErrShapeMismatch)
	var se *ShapeError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "test", se.Op)
	assert.Equal(t, []int{4}, se.Want)
	assert.Equal(t, []int{2, 2}, se.Got)
}

func TestBlock_AddScaled(t *testing.T) {
	x, err := FromSlice([]float64{1, 2, 3}, Shape{3})
	require.NoError(t, err)

	var y Block
	require.NoError(t, y.AddScaled(2, x))
	assert.Equal(t, []float64{2, 4, 6}, y.Data())

	require.NoError(t, y.AddScaled(-1, x))
	assert.Equal(t, []float64{1, 2, 3}, y.Data())

	z := MustBlock(Shape{2})
	assert.ErrorIs(t, z.AddScaled(1, x), ErrShapeMismatch)
}

func TestBlock_FillGenerateNorm(t *testing.T) {
	b := MustBlock(Shape{2, 2})
	b.Fill(1)
	assert.InDelta(t, 2.0, b.Norm(), 1e-12)

	next := 0.0
	b.Generate(func() float64 {
		next++
		return next
	})
	assert.Equal(t, []float64{1, 2, 3, 4}, b.Data())
}

func TestBlock_AllClose(t *testing.T) {
	a, _ := FromSlice([]float64{1, 2}, Shape{2})
	b, _ := FromSlice([]float64{1, 2.0001}, Shape{2})
	c, _ := FromSlice([]float64{1, 2}, Shape{1, 2})

	assert.True(t, a.AllClose(b, 1e-3))
	assert.False(t, a.AllClose(b, 1e-6))
	assert.False(t, a.AllClose(c, 1))
	assert.False(t, a.AllClose(&Block{}, 1))
	assert.True(t, (&Block{}).AllClose(&Block{}, 0))
}

func TestFromSlice_SizeMismatch(t *testing.T) {
	_, err := FromSlice([]float64{1, 2, 3}, Shape{2, 2})
	assert.Error(t, err)
}

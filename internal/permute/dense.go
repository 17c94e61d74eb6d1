package permute

import "github.com/born-ml/qtensor/internal/tensor"

// Dense returns a new block holding x with its modes permuted.
// An identity permutation short-circuits to a plain copy.
func Dense(x *tensor.Block, perm []int) (*tensor.Block, error) {
	y := &tensor.Block{}
	if err := DenseInto(x, perm, y); err != nil {
		return nil, err
	}
	return y, nil
}

// DenseInto writes x with its modes permuted into y. An empty y is allocated;
// a non-empty y must already have the permuted extents.
func DenseInto(x *tensor.Block, perm []int, y *tensor.Block) error {
	if err := Validate(perm, x.Rank()); err != nil {
		return err
	}
	if err := y.Prepare("permute", x.Shape().Permute(perm)); err != nil {
		return err
	}
	if IsIdentity(perm) {
		copy(y.Mutable(), x.Data())
		return nil
	}
	kernel(y.Mutable(), x.Data(), x.Shape(), perm)
	return nil
}

// kernel dispatches to a rank-specialized loop, or the generic odometer.
func kernel(dst, src []float64, shape tensor.Shape, perm []int) {
	strides := shape.ComputeStrides()
	dims := shape.Permute(perm)
	ps := make([]int, len(perm)) // source stride of each destination mode
	for i, p := range perm {
		ps[i] = strides[p]
	}

	switch len(perm) {
	case 2:
		permute2(dst, src, dims, ps)
	case 3:
		permute3(dst, src, dims, ps)
	case 4:
		permute4(dst, src, dims, ps)
	default:
		permuteN(dst, src, dims, ps)
	}
}

func permute2(dst, src []float64, d tensor.Shape, ps []int) {
	n := 0
	for i0 := 0; i0 < d[0]; i0++ {
		o0 := i0 * ps[0]
		for i1 := 0; i1 < d[1]; i1++ {
			dst[n] = src[o0+i1*ps[1]]
			n++
		}
	}
}

func permute3(dst, src []float64, d tensor.Shape, ps []int) {
	n := 0
	for i0 := 0; i0 < d[0]; i0++ {
		o0 := i0 * ps[0]
		for i1 := 0; i1 < d[1]; i1++ {
			o1 := o0 + i1*ps[1]
			for i2 := 0; i2 < d[2]; i2++ {
				dst[n] = src[o1+i2*ps[2]]
				n++
			}
		}
	}
}

func permute4(dst, src []float64, d tensor.Shape, ps []int) {
	n := 0
	for i0 := 0; i0 < d[0]; i0++ {
		o0 := i0 * ps[0]
		for i1 := 0; i1 < d[1]; i1++ {
			o1 := o0 + i1*ps[1]
			for i2 := 0; i2 < d[2]; i2++ {
				o2 := o1 + i2*ps[2]
				for i3 := 0; i3 < d[3]; i3++ {
					dst[n] = src[o2+i3*ps[3]]
					n++
				}
			}
		}
	}
}

// permuteN walks destination elements in row-major order while tracking the
// matching source offset incrementally.
func permuteN(dst, src []float64, d tensor.Shape, ps []int) {
	rank := len(d)
	idx := make([]int, rank)
	off := 0
	for n := range dst {
		dst[n] = src[off]
		for i := rank - 1; i >= 0; i-- {
			idx[i]++
			off += ps[i]
			if idx[i] < d[i] {
				break
			}
			off -= idx[i] * ps[i]
			idx[i] = 0
		}
	}
}

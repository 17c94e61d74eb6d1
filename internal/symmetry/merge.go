package symmetry

import (
	"fmt"
	"slices"

	"github.com/born-ml/qtensor/internal/tensor"
)

// Contribution is one sub-coordinate folded into a merged coordinate.
type Contribution struct {
	Sub    tensor.MultiIndex // coordinates on the merged modes
	Size   int               // product of the sub-coordinate extents
	Offset int               // start of the region inside the merged extent
}

// MergePlan records how a run of modes was folded into one. It is all that
// Expand needs to undo the fold.
type MergePlan[Q Label[Q]] struct {
	Start      int
	Labels     []LabelList[Q] // labels of the folded modes
	Dims       [][]int        // extents of the folded modes
	Merged     LabelList[Q]
	MergedDims []int
	Contrib    [][]Contribution // per merged coordinate, in sub-coordinate order

	lookup  map[string]located
	sources map[string]struct{} // unmerged indices stored when Merge ran; nil = all
}

type located struct {
	coord int
	pos   int
}

// Count returns the number of folded modes.
func (p *MergePlan[Q]) Count() int {
	return len(p.Labels)
}

// Layout returns a plan with the same fold that restores every contributor
// on Expand. Use it to unfold tensors other than the one Merge produced.
func (p *MergePlan[Q]) Layout() *MergePlan[Q] {
	out := *p
	out.sources = nil
	return &out
}

// Locate returns the merged coordinate and contribution of a sub-coordinate.
// Combinations with zero size are not part of any merged coordinate.
func (p *MergePlan[Q]) Locate(sub tensor.MultiIndex) (int, Contribution, bool) {
	l, ok := p.lookup[sub.Key()]
	if !ok {
		return 0, Contribution{}, false
	}
	return l.coord, p.Contrib[l.coord][l.pos], true
}

// NewMergePlan groups every sub-coordinate combination of the given modes by
// label sum. Merged labels are the distinct sums in ascending order; each
// merged extent is the sum of its contributors' sizes.
func NewMergePlan[Q Label[Q]](start int, labels []LabelList[Q], dims [][]int) (*MergePlan[Q], error) {
	if len(labels) == 0 || len(labels) != len(dims) {
		return nil, tensor.NewShapeError("merge plan", []int{len(labels)}, []int{len(dims)})
	}
	shape := make(tensor.BlockShape, len(labels))
	for i, l := range labels {
		if len(dims[i]) != len(l) {
			return nil, tensor.NewShapeError("merge plan", []int{len(l)}, []int{len(dims[i])})
		}
		shape[i] = len(l)
	}

	type entry struct {
		label Q
		sub   tensor.MultiIndex
		size  int
	}
	var entries []entry
	shape.Each(func(idx tensor.MultiIndex) bool {
		size := 1
		var sum Q
		for i, c := range idx {
			size *= dims[i][c]
			sum = sum.Add(labels[i][c])
		}
		if size > 0 {
			entries = append(entries, entry{label: sum, sub: idx.Clone(), size: size})
		}
		return true
	})
	// Stable so contributors keep sub-coordinate order within one label.
	slices.SortStableFunc(entries, func(a, b entry) int {
		return a.label.Compare(b.label)
	})

	p := &MergePlan[Q]{
		Start:  start,
		Labels: make([]LabelList[Q], len(labels)),
		Dims:   make([][]int, len(dims)),
		lookup: make(map[string]located, len(entries)),
	}
	for i := range labels {
		p.Labels[i] = labels[i].Clone()
		p.Dims[i] = slices.Clone(dims[i])
	}
	for _, e := range entries {
		n := len(p.Merged)
		if n == 0 || p.Merged[n-1] != e.label {
			p.Merged = append(p.Merged, e.label)
			p.MergedDims = append(p.MergedDims, 0)
			p.Contrib = append(p.Contrib, nil)
			n++
		}
		c := n - 1
		p.lookup[e.sub.Key()] = located{coord: c, pos: len(p.Contrib[c])}
		p.Contrib[c] = append(p.Contrib[c], Contribution{Sub: e.sub, Size: e.size, Offset: p.MergedDims[c]})
		p.MergedDims[c] += e.size
	}
	return p, nil
}

// region describes how a block splits around a run of modes: pre elements
// before, the run itself, and post elements after.
func region(shape tensor.Shape, start, count int) (pre, post int) {
	return shape[:start].NumElements(), shape[start+count:].NumElements()
}

// Merge folds modes [start, start+count) of x into one mode placed at start.
// Every block of x is copied into its region of the merged block.
func Merge[Q Label[Q]](x *Tensor[Q], start, count int) (*Tensor[Q], *MergePlan[Q], error) {
	rank := x.Rank()
	if count < 1 || start < 0 || start+count > rank {
		return nil, nil, fmt.Errorf("merge: %w: modes [%d,%d) of rank %d", tensor.ErrShapeMismatch, start, start+count, rank)
	}
	labels := x.AllLabels()
	dims := x.AllDims()
	plan, err := NewMergePlan(start, labels[start:start+count], dims[start:start+count])
	if err != nil {
		return nil, nil, fmt.Errorf("merge: %w", err)
	}

	outLabels := slices.Concat(labels[:start], []LabelList[Q]{plan.Merged}, labels[start+count:])
	outDims := slices.Concat(dims[:start], [][]int{plan.MergedDims}, dims[start+count:])
	out := New[Q](WithLogger(x.log))
	if err := out.SetShape(x.Total(), outLabels, outDims); err != nil {
		return nil, nil, fmt.Errorf("merge: %w", err)
	}

	plan.sources = make(map[string]struct{}, x.Len())
	for idx, b := range x.All() {
		coord, contrib, ok := plan.Locate(idx[start : start+count])
		if !ok {
			continue
		}
		plan.sources[idx.Key()] = struct{}{}
		dst := slices.Concat(idx[:start], tensor.MultiIndex{coord}, idx[start+count:])
		shape := slices.Concat(b.Shape()[:start], tensor.Shape{plan.MergedDims[coord]}, b.Shape()[start+count:])
		target, err := out.blocks.ReserveShape(dst, shape)
		if err != nil {
			return nil, nil, fmt.Errorf("merge block %v: %w", idx, err)
		}
		pre, post := region(b.Shape(), start, count)
		width := plan.MergedDims[coord]
		src, td := b.Data(), target.Mutable()
		n := contrib.Size * post
		for p := 0; p < pre; p++ {
			copy(td[(p*width+contrib.Offset)*post:][:n], src[p*n:][:n])
		}
	}
	return out, plan, nil
}

// Expand unfolds mode of x back into the modes recorded by plan. A plan
// returned by Merge restores exactly the blocks that were merged; any other
// plan turns every contributor region of every stored block into a block.
func Expand[Q Label[Q]](x *Tensor[Q], mode int, plan *MergePlan[Q]) (*Tensor[Q], error) {
	rank := x.Rank()
	if mode < 0 || mode >= rank {
		return nil, fmt.Errorf("expand: %w: mode %d of rank %d", tensor.ErrShapeMismatch, mode, rank)
	}
	if !x.Labels(mode).Equal(plan.Merged) {
		return nil, fmt.Errorf("expand: %w: mode %d labels %v, plan has %v", tensor.ErrShapeMismatch, mode, x.Labels(mode), plan.Merged)
	}
	if !slices.Equal(x.Dims(mode), plan.MergedDims) {
		return nil, tensor.NewShapeError("expand", plan.MergedDims, x.Dims(mode))
	}

	labels := x.AllLabels()
	dims := x.AllDims()
	outLabels := slices.Concat(labels[:mode], plan.Labels, labels[mode+1:])
	outDims := slices.Concat(dims[:mode], plan.Dims, dims[mode+1:])
	out := New[Q](WithLogger(x.log))
	if err := out.SetShape(x.Total(), outLabels, outDims); err != nil {
		return nil, fmt.Errorf("expand: %w", err)
	}

	count := plan.Count()
	for idx, b := range x.All() {
		coord := idx[mode]
		pre, post := region(b.Shape(), mode, 1)
		width := plan.MergedDims[coord]
		src := b.Data()
		for _, c := range plan.Contrib[coord] {
			dst := slices.Concat(idx[:mode], c.Sub, idx[mode+1:])
			if plan.sources != nil {
				if _, ok := plan.sources[dst.Key()]; !ok {
					continue
				}
			}
			subShape := make(tensor.Shape, count)
			for i, s := range c.Sub {
				subShape[i] = plan.Dims[i][s]
			}
			shape := slices.Concat(b.Shape()[:mode], subShape, b.Shape()[mode+1:])
			target, err := out.blocks.ReserveShape(dst, shape)
			if err != nil {
				return nil, fmt.Errorf("expand block %v: %w", idx, err)
			}
			td := target.Mutable()
			n := c.Size * post
			for p := 0; p < pre; p++ {
				copy(td[p*n:][:n], src[(p*width+c.Offset)*post:][:n])
			}
		}
	}
	return out, nil
}

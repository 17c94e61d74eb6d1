// Package symmetry overlays an additive conservation law on block-sparse
// tensors: every mode carries one label per block coordinate and a block may
// be non-zero only when its labels sum to the tensor's total label.
package symmetry

import (
	"cmp"
	"fmt"
	"strconv"
)

// Label is an element of a commutative group with a total order.
// The zero value of Q must be the group identity.
//
// Directions are folded into the labels: an outgoing leg carries negated
// labels, so the conservation law is a plain group sum.
type Label[Q any] interface {
	comparable
	Add(Q) Q
	Neg() Q
	Compare(Q) int
}

// U1 is an integer charge, e.g. particle number.
type U1 int

func (q U1) Add(o U1) U1      { return q + o }
func (q U1) Neg() U1          { return -q }
func (q U1) Compare(o U1) int { return cmp.Compare(q, o) }
func (q U1) String() string   { return fmt.Sprintf("%d", int(q)) }

// Z2 is a parity.
type Z2 uint8

func (q Z2) Add(o Z2) Z2      { return (q + o) % 2 }
func (q Z2) Neg() Z2          { return q }
func (q Z2) Compare(o Z2) int { return cmp.Compare(q, o) }

// MarshalJSON encodes the parity as a number so that label lists encode as
// arrays rather than byte strings.
func (q Z2) MarshalJSON() ([]byte, error) { return strconv.AppendUint(nil, uint64(q), 10), nil }

// U1U1 carries a particle number and twice the spin projection, the usual
// pair of conserved quantities of fermionic chains.
type U1U1 struct {
	N  int `json:"n"`
	Sz int `json:"sz"`
}

func (q U1U1) Add(o U1U1) U1U1 { return U1U1{N: q.N + o.N, Sz: q.Sz + o.Sz} }
func (q U1U1) Neg() U1U1       { return U1U1{N: -q.N, Sz: -q.Sz} }

// Compare orders by particle number, then spin.
func (q U1U1) Compare(o U1U1) int {
	if c := cmp.Compare(q.N, o.N); c != 0 {
		return c
	}
	return cmp.Compare(q.Sz, o.Sz)
}

func (q U1U1) String() string { return fmt.Sprintf("(%d,%d)", q.N, q.Sz) }

// LabelList holds one label per block coordinate of a mode.
type LabelList[Q Label[Q]] []Q

// Neg returns the list with every label negated (the reversed leg).
func (l LabelList[Q]) Neg() LabelList[Q] {
	out := make(LabelList[Q], len(l))
	for i, q := range l {
		out[i] = q.Neg()
	}
	return out
}

// Equal reports whether both lists hold the same labels in order.
func (l LabelList[Q]) Equal(o LabelList[Q]) bool {
	if len(l) != len(o) {
		return false
	}
	for i := range l {
		if l[i] != o[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the list.
func (l LabelList[Q]) Clone() LabelList[Q] {
	return append(LabelList[Q](nil), l...)
}

// Sum adds labels, starting from the identity.
func Sum[Q Label[Q]](qs ...Q) Q {
	var total Q
	for _, q := range qs {
		total = total.Add(q)
	}
	return total
}

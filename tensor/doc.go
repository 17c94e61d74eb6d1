// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides block-sparse, symmetry-constrained tensors and
// their contraction engine.
//
// # Overview
//
// Three containers share one set of operations:
//   - Block: a dense row-major float64 array with copy-on-write payloads
//   - SparseTensor: an ordered map from block coordinates to Blocks
//   - SymmetryTensor[Q]: a SparseTensor that stores only the blocks allowed
//     by an additive conservation law over labels of type Q
//
// Contractions over arbitrary mode pairs are reduced to matrix multiplies on
// a Backend. Modes may be given by position or by symbol.
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/qtensor/backend/cpu"
//	    "github.com/born-ml/qtensor/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//
//	    charges := tensor.LabelList[tensor.U1]{-1, 0, 1}
//	    a := tensor.NewSymmetry[tensor.U1]()
//	    _ = a.Resize(0, []tensor.LabelList[tensor.U1]{charges, charges.Neg()}, [][]int{{2, 2, 2}, {2, 2, 2}})
//
//	    c := tensor.NewSymmetry[tensor.U1]()
//	    _ = tensor.ContractSymmetricIndexed(backend, 1, a, []rune("ij"), a, []rune("jk"), 0, c, []rune("ik"))
//	}
//
// # Conservation Law
//
// A block at coordinates m is allowed when the labels of its coordinates sum
// to the tensor's total. Inserting or reserving any other block is refused
// with ok == false rather than an error, so callers can try candidate
// blocks freely.
//
// # Errors
//
// Shape, symbol, and rank problems are reported as wrapped sentinels
// (ErrShapeMismatch, ErrSymbolMismatch, ErrRankUnsupported); a failing
// factorization reports ErrTerminatedAbnormally.
package tensor

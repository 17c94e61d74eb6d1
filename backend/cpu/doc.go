// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the CPU backend for dense block primitives.
//
// # Overview
//
// This package implements tensor.Backend and tensor.Decomposer with:
//   - Pure Go implementation (no CGO) through gonum's blas64 and mat
//   - Float64 blocks of any rank viewed as matrices
//   - Explicit per-operand transpose flags for every multiply
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
//	    a, _ := tensor.FromSlice([]float64{1, 2, 3, 4}, tensor.Shape{2, 2})
//	    b, _ := tensor.FromSlice([]float64{5, 6, 7, 8}, tensor.Shape{2, 2})
//	    c := &tensor.Block{}
//	    _ = tensor.Contract(backend, 1, a, []int{1}, b, []int{0}, 0, c)
//	}
//
// # Thread Safety
//
// The CPU backend is safe for concurrent use. Each operation writes only to
// its result block and does not share mutable state.
package cpu

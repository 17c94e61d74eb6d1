// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/born-ml/qtensor/internal/backend/cpu"
	"github.com/born-ml/qtensor/tensor"
)

// Backend represents the CPU backend implementation.
//
// Multiplies run on gonum BLAS; EigenSym and SVD run on gonum's LAPACK
// ports.
type Backend = internalcpu.CPUBackend

// Compile-time checks that Backend implements the tensor interfaces.
var (
	_ tensor.Backend    = (*Backend)(nil)
	_ tensor.Decomposer = (*Backend)(nil)
)

// New creates a new CPU backend.
//
// Example:
//
//	backend := cpu.New()
//	err := tensor.ContractSparse(backend, 1, a, []int{2}, b, []int{0}, 0, c)
func New() *Backend {
	return internalcpu.New()
}

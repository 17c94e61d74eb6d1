// Package cpu implements the CPU backend on top of gonum BLAS and LAPACK.
package cpu

import (
	"github.com/born-ml/qtensor/internal/tensor"
)

// Compile-time checks.
var (
	_ tensor.Backend    = (*CPUBackend)(nil)
	_ tensor.Decomposer = (*CPUBackend)(nil)
)

// CPUBackend implements the dense block primitives on CPU.
// Every operation views N-D blocks as matrices and hands them to gonum's
// blas64/mat routines, which are treated as pure functions.
type CPUBackend struct {
	name string
}

// New creates a new CPU backend.
func New() *CPUBackend {
	return &CPUBackend{
		name: "CPU",
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return cpu.name
}

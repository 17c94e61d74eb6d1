// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/qtensor/internal/blocksparse"
	"github.com/born-ml/qtensor/internal/contract"
	"github.com/born-ml/qtensor/internal/logger"
	"github.com/born-ml/qtensor/internal/parallel"
	"github.com/born-ml/qtensor/internal/permute"
	"github.com/born-ml/qtensor/internal/symmetry"
	"github.com/born-ml/qtensor/internal/tensor"
)

// Type aliases for public API

// Shape gives the dense extents of one block.
type Shape = tensor.Shape

// MultiIndex identifies one block by its per-mode block coordinates.
type MultiIndex = tensor.MultiIndex

// BlockShape gives the number of blocks along each mode.
type BlockShape = tensor.BlockShape

// Block is a dense row-major float64 array with a copy-on-write payload.
type Block = tensor.Block

// Transpose selects how an operand is viewed as a matrix.
type Transpose = tensor.Transpose

// Transpose flags.
const (
	NoTrans = tensor.NoTrans
	Trans   = tensor.Trans
)

// MaxRank is the largest supported rank.
const MaxRank = tensor.MaxRank

// Backend defines the dense primitives a compute backend must implement.
//
// Implementations:
//   - backend/cpu: gonum BLAS
type Backend = tensor.Backend

// Decomposer provides dense eigensolve and SVD.
type Decomposer = tensor.Decomposer

// ShapeError reports extents that disagree with what an operation infers.
type ShapeError = tensor.ShapeError

// Errors.
var (
	ErrShapeMismatch        = tensor.ErrShapeMismatch
	ErrSymbolMismatch       = tensor.ErrSymbolMismatch
	ErrRankUnsupported      = tensor.ErrRankUnsupported
	ErrTerminatedAbnormally = tensor.ErrTerminatedAbnormally
	ErrForbiddenBlock       = tensor.ErrForbiddenBlock
)

// SparseTensor is a block-sparse tensor of runtime rank.
type SparseTensor = blocksparse.Tensor

// SparseView is a coordinate-only permutation of a SparseTensor.
type SparseView = blocksparse.View

// Label is the algebra of conserved labels.
type Label[Q any] = symmetry.Label[Q]

// LabelList holds one label per block coordinate of a mode.
type LabelList[Q Label[Q]] = symmetry.LabelList[Q]

// Label algebras.
type (
	U1   = symmetry.U1
	Z2   = symmetry.Z2
	U1U1 = symmetry.U1U1
)

// SymmetryTensor is a block-sparse tensor constrained by a conservation law.
type SymmetryTensor[Q Label[Q]] = symmetry.Tensor[Q]

// SymmetryOption configures a SymmetryTensor.
type SymmetryOption = symmetry.Option

// MergePlan records how a run of modes was folded into one.
type MergePlan[Q Label[Q]] = symmetry.MergePlan[Q]

// Decomposition is a sector-wise SVD.
type Decomposition[Q Label[Q]] = symmetry.Decomposition[Q]

// Plan is the canonical form of one contraction.
type Plan = contract.Plan

// Option configures sparse and symmetric contractions.
type Option = contract.Option

// ParallelConfig controls how output blocks are spread over workers.
type ParallelConfig = parallel.Config

// Logger is the structured logger used for diagnostics.
type Logger = logger.Logger

// NewBlock allocates a zero-filled block.
func NewBlock(shape Shape) (*Block, error) {
	return tensor.NewBlock(shape)
}

// FromSlice creates a block holding a copy of data.
func FromSlice(data []float64, shape Shape) (*Block, error) {
	return tensor.FromSlice(data, shape)
}

// NewSparse creates an empty block-sparse tensor.
func NewSparse(shape BlockShape) (*SparseTensor, error) {
	return blocksparse.New(shape)
}

// NewSymmetry creates an empty symmetry-constrained tensor.
func NewSymmetry[Q Label[Q]](opts ...SymmetryOption) *SymmetryTensor[Q] {
	return symmetry.New[Q](opts...)
}

// WithDiagnostics logs refused blocks of a SymmetryTensor at debug level.
func WithDiagnostics(l *Logger) SymmetryOption {
	return symmetry.WithLogger(l)
}

// WithParallel sets the worker configuration of a contraction.
func WithParallel(cfg ParallelConfig) Option {
	return contract.WithParallel(cfg)
}

// WithLogger reports contraction progress at debug level.
func WithLogger(l *Logger) Option {
	return contract.WithLogger(l)
}

// Permute returns x with modes reordered so that mode i is x's mode perm[i].
func Permute(x *Block, perm []int) (*Block, error) {
	return permute.Dense(x, perm)
}

// InversePermutation returns the permutation undoing perm.
func InversePermutation(perm []int) []int {
	return permute.Inverse(perm)
}

// PermutationFromSymbols derives the permutation taking modes labelled from
// to the order labelled to.
func PermutationFromSymbols[S comparable](from, to []S) ([]int, error) {
	return permute.FromSymbols(from, to)
}

// NewPlan validates a contraction of idxA against idxB.
func NewPlan(rankA int, idxA []int, rankB int, idxB []int) (*Plan, error) {
	return contract.NewPlan(rankA, idxA, rankB, idxB)
}

// Contract computes c := alpha·contract(a, b) + beta·c for dense blocks.
func Contract(be Backend, alpha float64, a *Block, idxA []int, b *Block, idxB []int, beta float64, c *Block) error {
	return contract.Dense(be, alpha, a, idxA, b, idxB, beta, c)
}

// ContractSparse computes c := alpha·contract(a, b) + beta·c for
// block-sparse tensors.
func ContractSparse(be Backend, alpha float64, a *SparseTensor, idxA []int, b *SparseTensor, idxB []int, beta float64, c *SparseTensor, opts ...Option) error {
	return contract.Sparse(be, alpha, a, idxA, b, idxB, beta, c, opts...)
}

// ContractSymmetric computes c := alpha·contract(a, b) + beta·c for
// symmetry-constrained tensors.
func ContractSymmetric[Q Label[Q]](be Backend, alpha float64, a *SymmetryTensor[Q], idxA []int, b *SymmetryTensor[Q], idxB []int, beta float64, c *SymmetryTensor[Q], opts ...Option) error {
	return contract.Symmetric(be, alpha, a, idxA, b, idxB, beta, c, opts...)
}

// ContractIndexed contracts dense blocks by symbolic mode labels.
func ContractIndexed[S comparable](be Backend, alpha float64, a *Block, symA []S, b *Block, symB []S, beta float64, c *Block, symC []S) error {
	return contract.DenseIndexed(be, alpha, a, symA, b, symB, beta, c, symC)
}

// ContractSparseIndexed contracts block-sparse tensors by symbolic mode
// labels.
func ContractSparseIndexed[S comparable](be Backend, alpha float64, a *SparseTensor, symA []S, b *SparseTensor, symB []S, beta float64, c *SparseTensor, symC []S, opts ...Option) error {
	return contract.SparseIndexed(be, alpha, a, symA, b, symB, beta, c, symC, opts...)
}

// ContractSymmetricIndexed contracts symmetry-constrained tensors by
// symbolic mode labels.
func ContractSymmetricIndexed[Q Label[Q], S comparable](be Backend, alpha float64, a *SymmetryTensor[Q], symA []S, b *SymmetryTensor[Q], symB []S, beta float64, c *SymmetryTensor[Q], symC []S, opts ...Option) error {
	return contract.SymmetricIndexed(be, alpha, a, symA, b, symB, beta, c, symC, opts...)
}

// Merge folds modes [start, start+count) of x into one mode.
func Merge[Q Label[Q]](x *SymmetryTensor[Q], start, count int) (*SymmetryTensor[Q], *MergePlan[Q], error) {
	return symmetry.Merge(x, start, count)
}

// Expand unfolds mode of x back into the modes recorded by plan.
func Expand[Q Label[Q]](x *SymmetryTensor[Q], mode int, plan *MergePlan[Q]) (*SymmetryTensor[Q], error) {
	return symmetry.Expand(x, mode, plan)
}

// SVD factorizes x sector by sector, with its first rowModes modes as rows.
func SVD[Q Label[Q]](d Decomposer, x *SymmetryTensor[Q], rowModes int) (*Decomposition[Q], error) {
	return symmetry.SVD(d, x, rowModes)
}

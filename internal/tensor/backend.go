package tensor

// Transpose selects which portion of an operand's modes is contracted in the
// multiply family.
//
// For the left operand A, NoTrans contracts its trailing k modes and Trans its
// leading k modes. For the right operand B, NoTrans contracts its leading k
// modes and Trans its trailing k modes. The result always lists A's
// uncontracted modes followed by B's uncontracted modes.
type Transpose int

// Transpose flags.
const (
	NoTrans Transpose = iota
	Trans
)

// String returns "N" or "T".
func (t Transpose) String() string {
	if t == Trans {
		return "T"
	}
	return "N"
}

// Backend defines the dense primitives every compute backend must implement.
// Results written into an empty block are allocated and zero-filled first;
// a non-empty result must match the inferred extents exactly.
//
// Implementations:
//   - cpu: gonum BLAS
//   - MockBackend: naive loops, for cross-checking
type Backend interface {
	// Level-1 operations
	Copy(x, y *Block) error                // y := x
	Scal(alpha float64, x *Block)          // x := alpha*x
	Axpy(alpha float64, x, y *Block) error // y := alpha*x + y
	Dot(x, y *Block) (float64, error)      // sum of x*y over identical extents

	// Gemv computes y := alpha*op(A)*x + beta*y where x's modes are contracted
	// against A's trailing (NoTrans) or leading (Trans) modes.
	Gemv(trans Transpose, alpha float64, a, x *Block, beta float64, y *Block) error

	// Ger computes a := alpha*x⊗y + a. a's modes are x's followed by y's.
	Ger(alpha float64, x, y, a *Block) error

	// Gemm computes c := alpha*op(A)*op(B) + beta*c contracting k modes.
	Gemm(transA, transB Transpose, k int, alpha float64, a, b *Block, beta float64, c *Block) error

	// Metadata
	Name() string
}

// Decomposer provides the dense factorizations used by leg decompositions.
// The first rowModes modes of the input form the matrix rows.
type Decomposer interface {
	// EigenSym returns ascending eigenvalues (rank 1) and eigenvectors whose
	// leading modes are the row modes and whose last mode indexes the
	// eigenpair.
	EigenSym(a *Block, rowModes int) (vals, vecs *Block, err error)

	// SVD returns singular values s (rank 1, descending), U with the row
	// modes followed by the singular index, and Vᵀ with the singular index
	// followed by the column modes.
	SVD(a *Block, rowModes int) (s, u, vt *Block, err error)
}

// GemmShape validates the operands of a multiply-family call and returns the
// matrix view dimensions (m rows of op(A), n cols of op(B), k contracted
// elements) plus the extents of the result.
func GemmShape(transA, transB Transpose, k int, a, b *Block) (m, n, kk int, out Shape, err error) {
	na, nb := a.Rank(), b.Rank()
	if k < 0 || k > na || k > nb {
		return 0, 0, 0, nil, shapeErr("gemm", []int{k}, []int{na, nb})
	}
	var aFree, aCon, bFree, bCon Shape
	if transA == NoTrans {
		aFree, aCon = a.Shape()[:na-k], a.Shape()[na-k:]
	} else {
		aCon, aFree = a.Shape()[:k], a.Shape()[k:]
	}
	if transB == NoTrans {
		bCon, bFree = b.Shape()[:k], b.Shape()[k:]
	} else {
		bFree, bCon = b.Shape()[:nb-k], b.Shape()[nb-k:]
	}
	if !aCon.Equal(bCon) {
		return 0, 0, 0, nil, shapeErr("gemm", aCon, bCon)
	}
	return aFree.NumElements(), bFree.NumElements(), aCon.NumElements(), aFree.Concat(bFree), nil
}

// GemvShape validates the operands of a Gemv call and returns the matrix view
// dimensions of A as stored (rows, cols) plus the extents of the result.
func GemvShape(trans Transpose, a, x *Block) (rows, cols int, out Shape, err error) {
	na, k := a.Rank(), x.Rank()
	if k > na {
		return 0, 0, nil, shapeErr("gemv", []int{na}, []int{k})
	}
	var con Shape
	if trans == NoTrans {
		out, con = a.Shape()[:na-k], a.Shape()[na-k:]
		rows, cols = a.Shape().Split(na - k)
	} else {
		con, out = a.Shape()[:k], a.Shape()[k:]
		rows, cols = a.Shape().Split(k)
	}
	if !con.Equal(x.Shape()) {
		return 0, 0, nil, shapeErr("gemv", con, x.Shape())
	}
	return rows, cols, out.Clone(), nil
}

package tensor

// Verify that MockBackend implements Backend.
var _ Backend = (*MockBackend)(nil)

// MockBackend is a simple backend for testing.
// It implements all operations with naive loops for correctness verification.
type MockBackend struct{}

// NewMockBackend creates a new MockBackend.
func NewMockBackend() *MockBackend {
	return &MockBackend{}
}

// Name returns the backend name.
func (m *MockBackend) Name() string {
	return "mock"
}

// Copy performs y := x.
func (m *MockBackend) Copy(x, y *Block) error {
	if err := y.Prepare("copy", x.Shape()); err != nil {
		return err
	}
	copy(y.Mutable(), x.Data())
	return nil
}

// Scal performs x := alpha*x.
func (m *MockBackend) Scal(alpha float64, x *Block) {
	x.Scale(alpha)
}

// Axpy performs y := alpha*x + y.
func (m *MockBackend) Axpy(alpha float64, x, y *Block) error {
	return y.AddScaled(alpha, x)
}

// Dot returns the sum of elementwise products.
func (m *MockBackend) Dot(x, y *Block) (float64, error) {
	if !x.Shape().Equal(y.Shape()) {
		return 0, shapeErr("dot", x.Shape(), y.Shape())
	}
	var sum float64
	yd := y.Data()
	for i, v := range x.Data() {
		sum += v * yd[i]
	}
	return sum, nil
}

// Gemv computes y := alpha*op(A)*x + beta*y.
func (m *MockBackend) Gemv(trans Transpose, alpha float64, a, x *Block, beta float64, y *Block) error {
	rows, cols, out, err := GemvShape(trans, a, x)
	if err != nil {
		return err
	}
	if err := y.Prepare("gemv", out); err != nil {
		return err
	}
	ad, xd, yd := a.Data(), x.Data(), y.Mutable()
	if trans == NoTrans {
		for i := 0; i < rows; i++ {
			sum := 0.0
			for j := 0; j < cols; j++ {
				sum += ad[i*cols+j] * xd[j]
			}
			yd[i] = alpha*sum + beta*yd[i]
		}
		return nil
	}
	for j := 0; j < cols; j++ {
		sum := 0.0
		for i := 0; i < rows; i++ {
			sum += ad[i*cols+j] * xd[i]
		}
		yd[j] = alpha*sum + beta*yd[j]
	}
	return nil
}

// Ger computes a := alpha*x⊗y + a.
func (m *MockBackend) Ger(alpha float64, x, y, a *Block) error {
	if err := a.Prepare("ger", x.Shape().Concat(y.Shape())); err != nil {
		return err
	}
	xd, yd, ad := x.Data(), y.Data(), a.Mutable()
	n := len(yd)
	for i, xv := range xd {
		for j, yv := range yd {
			ad[i*n+j] += alpha * xv * yv
		}
	}
	return nil
}

// Gemm computes c := alpha*op(A)*op(B) + beta*c.
func (m *MockBackend) Gemm(transA, transB Transpose, k int, alpha float64, a, b *Block, beta float64, c *Block) error {
	rows, cols, inner, out, err := GemmShape(transA, transB, k, a, b)
	if err != nil {
		return err
	}
	if err := c.Prepare("gemm", out); err != nil {
		return err
	}
	ad, bd, cd := a.Data(), b.Data(), c.Mutable()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			sum := 0.0
			for l := 0; l < inner; l++ {
				var av, bv float64
				if transA == NoTrans {
					av = ad[i*inner+l]
				} else {
					av = ad[l*rows+i]
				}
				if transB == NoTrans {
					bv = bd[l*cols+j]
				} else {
					bv = bd[j*inner+l]
				}
				sum += av * bv
			}
			cd[i*cols+j] = alpha*sum + beta*cd[i*cols+j]
		}
	}
	return nil
}

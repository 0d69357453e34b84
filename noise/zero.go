package noise

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Zero is degenerate noise of a fixed dimension: every sample equals its zero mean.
// It stands in for sensors and processes simulated without noise.
type Zero struct {
	dim int
}

// NewZero returns zero noise of dimension dim.
// It returns error if dim is not positive.
func NewZero(dim int) (*Zero, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid noise dimension: %d", dim)
	}

	return &Zero{dim: dim}, nil
}

// Dim returns noise dimension
func (z *Zero) Dim() int {
	return z.dim
}

// Sample returns a zero vector
func (z *Zero) Sample() mat.Vector {
	return mat.NewVecDense(z.dim, nil)
}

// Cov returns zero diagonal covariance
func (z *Zero) Cov() mat.Symmetric {
	return mat.NewDiagDense(z.dim, nil)
}

// Mean returns zero mean
func (z *Zero) Mean() []float64 {
	return make([]float64, z.dim)
}

// Reset is a no-op.
func (z *Zero) Reset() error { return nil }

// String implements the Stringer interface.
func (z *Zero) String() string {
	return fmt.Sprintf("Zero{Dim=%d}", z.dim)
}

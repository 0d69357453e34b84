package rand

import (
	"fmt"
	"math"
	"time"

	rnd "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// NewSource returns a new source of random numbers seeded with seed.
// Zero seed seeds the source from the current time.
func NewSource(seed uint64) rnd.Source {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	return rnd.NewSource(seed)
}

// WithCovN draws n random samples from a zero-mean Normal (aka Gaussian) distribution with covariance cov.
// Samples are drawn from src; if src is nil a clock seeded source is used.
// It returns matrix which contains the randomly generated samples stored in its columns.
// It fails with error if n is non-positive or if SVD factorization of cov fails.
func WithCovN(cov mat.Symmetric, n int, src rnd.Source) (*mat.Dense, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid number of samples requested: %d", n)
	}

	if cov == nil || cov.SymmetricDim() == 0 {
		return nil, fmt.Errorf("invalid covariance matrix")
	}

	if src == nil {
		src = NewSource(0)
	}
	r := rnd.New(src)

	// SVD rather than Cholesky: cov may be (almost) singular
	var svd mat.SVD
	ok := svd.Factorize(cov, mat.SVDFull)
	if !ok {
		return nil, fmt.Errorf("SVD factorization failed")
	}

	u := new(mat.Dense)
	svd.UTo(u)
	vals := svd.Values(nil)
	for i := range vals {
		vals[i] = math.Sqrt(vals[i])
	}
	u.Mul(u, mat.NewDiagDense(len(vals), vals))

	rows := cov.SymmetricDim()
	data := make([]float64, rows*n)
	for i := range data {
		data[i] = r.NormFloat64()
	}
	samples := mat.NewDense(rows, n, data)
	samples.Mul(u, samples)

	return samples, nil
}

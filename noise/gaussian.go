package noise

import (
	"fmt"
	"time"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// Gaussian is gaussian noise
type Gaussian struct {
	// dist is a multivariate normal distribution
	dist *distmv.Normal
	// mean is Gaussian mean
	mean []float64
	// cov is Gaussian covariance
	cov *mat.SymDense
	// seed is the random source seed; zero means seed from the clock
	seed uint64
}

// NewGaussian creates new Gaussian noise with given mean and covariance.
// It returns error if the dimensions don't match or if the covariance is not positive definite.
func NewGaussian(mean []float64, cov mat.Symmetric) (*Gaussian, error) {
	return newGaussian(mean, cov, 0)
}

// NewGaussianWithSeed creates new Gaussian noise whose samples are drawn from a source seeded with seed.
// Two noises created with the same seed produce the same sequence of samples.
func NewGaussianWithSeed(mean []float64, cov mat.Symmetric, seed uint64) (*Gaussian, error) {
	return newGaussian(mean, cov, seed)
}

// NewDiagonal creates new zero mean Gaussian noise with independent components
// whose standard deviations are given by std.
// It returns error if std is empty or if any of its values is not positive.
func NewDiagonal(std ...float64) (*Gaussian, error) {
	if len(std) == 0 {
		return nil, fmt.Errorf("invalid noise dimension: %d", len(std))
	}

	cov := mat.NewSymDense(len(std), nil)
	for i, s := range std {
		if s <= 0 {
			return nil, fmt.Errorf("invalid standard deviation %d: %v", i, s)
		}
		cov.SetSym(i, i, s*s)
	}

	return newGaussian(make([]float64, len(std)), cov, 0)
}

func newGaussian(mean []float64, cov mat.Symmetric, seed uint64) (*Gaussian, error) {
	if cov == nil || cov.SymmetricDim() != len(mean) {
		return nil, fmt.Errorf("invalid Gaussian dimensions: mean %d", len(mean))
	}

	c := mat.NewSymDense(cov.SymmetricDim(), nil)
	c.CopySym(cov)

	m := make([]float64, len(mean))
	copy(m, mean)

	dist, ok := newGaussianDist(m, c, seed)
	if !ok {
		return nil, fmt.Errorf("failed to create new Gaussian noise")
	}

	return &Gaussian{
		dist: dist,
		mean: m,
		cov:  c,
		seed: seed,
	}, nil
}

// Sample generates a sample from Gaussian noise and returns it.
func (g *Gaussian) Sample() mat.Vector {
	r := g.dist.Rand(nil)
	return mat.NewVecDense(len(r), r)
}

// Cov returns covariance matrix of Gaussian noise.
func (g *Gaussian) Cov() mat.Symmetric {
	cov := mat.NewSymDense(g.cov.SymmetricDim(), nil)
	cov.CopySym(g.cov)

	return cov
}

// Mean returns Gaussian mean.
func (g *Gaussian) Mean() []float64 {
	mean := make([]float64, len(g.mean))
	copy(mean, g.mean)

	return mean
}

// Reset resets Gaussian noise.
// Seeded noise restarts its sample sequence from the beginning.
// It returns error if it fails to reset the noise.
func (g *Gaussian) Reset() error {
	dist, ok := newGaussianDist(g.mean, g.cov, g.seed)
	if !ok {
		return fmt.Errorf("failed to reset Gaussian noise")
	}
	g.dist = dist

	return nil
}

func newGaussianDist(mean []float64, cov mat.Symmetric, seed uint64) (*distmv.Normal, bool) {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	src := rand.NewSource(seed)

	return distmv.NewNormal(mean, cov, src)
}

// String implements the Stringer interface.
func (g *Gaussian) String() string {
	return fmt.Sprintf("Gaussian{\nMean=%v\nCov=%v\n}", g.mean, mat.Formatted(g.cov, mat.Prefix("    "), mat.Squeeze()))
}

package kalman

import (
	"fmt"

	fusion "github.com/milosgajdos/go-fusion"
	"gonum.org/v1/gonum/mat"
)

// Gain returns Kalman gain K = Pxz * S^-1 given state-measurement cross covariance pxz
// and innovation covariance s.
// It returns fusion.ErrNumerical if s is not positive definite.
func Gain(pxz mat.Matrix, s mat.Symmetric) (*mat.Dense, error) {
	chol, err := factorize(s)
	if err != nil {
		return nil, err
	}

	// K*S = Pxz <=> S*K' = Pxz' since S is symmetric
	kt := &mat.Dense{}
	if err := chol.SolveTo(kt, pxz.T()); err != nil {
		return nil, fmt.Errorf("%w: failed to calculate Kalman gain: %v", fusion.ErrNumerical, err)
	}

	gain := &mat.Dense{}
	gain.CloneFrom(kt.T())

	return gain, nil
}

// NIS returns Normalized Innovation Squared y' * S^-1 * y of innovation y with covariance s.
// It returns fusion.ErrNumerical if s is not positive definite.
func NIS(y mat.Vector, s mat.Symmetric) (float64, error) {
	chol, err := factorize(s)
	if err != nil {
		return 0, err
	}

	sy := &mat.VecDense{}
	if err := chol.SolveVecTo(sy, y); err != nil {
		return 0, fmt.Errorf("%w: failed to calculate NIS: %v", fusion.ErrNumerical, err)
	}

	return mat.Dot(y, sy), nil
}

func factorize(s mat.Symmetric) (*mat.Cholesky, error) {
	if s == nil {
		return nil, fmt.Errorf("invalid innovation covariance")
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(s); !ok {
		return nil, fmt.Errorf("%w: innovation covariance is not positive definite", fusion.ErrNumerical)
	}

	return &chol, nil
}

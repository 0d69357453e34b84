package sim

import (
	"fmt"
	"math"

	"github.com/milosgajdos/matrix"
	"gonum.org/v1/gonum/mat"
)

// Errors returns Cartesian estimation errors [px, py, vx, vy] of CTRV estimates est
// against true states truth. Errors of each step are stored in matrix columns.
// It returns error if est and truth are empty or their lengths differ.
func Errors(est, truth []mat.Vector) (*mat.Dense, error) {
	if len(est) == 0 || len(est) != len(truth) {
		return nil, fmt.Errorf("invalid data: %d estimates, %d true states", len(est), len(truth))
	}

	errs := mat.NewDense(4, len(est), nil)
	for c := range est {
		e, x := Cartesian(est[c]), Cartesian(truth[c])
		for r := range e {
			errs.Set(r, c, e[r]-x[r])
		}
	}

	return errs, nil
}

// RMSE returns root mean squared error of each row of errs
func RMSE(errs *mat.Dense) ([]float64, error) {
	rows, _ := errs.Dims()

	sq := &mat.Dense{}
	sq.MulElem(errs, errs)

	rmse, err := matrix.RowsMean(rows, sq)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate mean squared error: %w", err)
	}

	for i := range rmse {
		rmse[i] = math.Sqrt(rmse[i])
	}

	return rmse, nil
}

// ErrorCov returns empirical covariance of errors stored in columns of errs
func ErrorCov(errs *mat.Dense) (mat.Symmetric, error) {
	cov, err := matrix.Cov(errs, "cols")
	if err != nil {
		return nil, fmt.Errorf("failed to calculate error covariance: %w", err)
	}

	return cov, nil
}

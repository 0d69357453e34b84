package matrix

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// NormFunc normalizes a residual vector in place
type NormFunc func(*mat.VecDense)

// WeightedRowSums returns a vector whose i-th element is the sum of the i-th row of m weighted by w.
// When m stores samples in its columns this is their weighted mean.
// It returns error if the length of w does not match the number of columns of m.
func WeightedRowSums(m *mat.Dense, w []float64) (*mat.VecDense, error) {
	rows, cols := m.Dims()
	if cols != len(w) {
		return nil, fmt.Errorf("invalid weights length: %d, expected %d", len(w), cols)
	}

	sum := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		sum.SetVec(i, floats.Dot(m.RawRowView(i), w))
	}

	return sum, nil
}

// WeightedMean returns the weighted mean of the samples stored in columns of m.
// If norm is not nil the mean is accumulated from normalized residuals of every sample
// against the first one and the result is normalized, so angular rows whose samples
// straddle the wrap point average to the angle between them rather than its antipode.
// Weights are expected to sum to one. With nil norm WeightedMean is equivalent to WeightedRowSums.
// It returns error if the length of w does not match the number of columns of m.
func WeightedMean(m *mat.Dense, w []float64, norm NormFunc) (*mat.VecDense, error) {
	if norm == nil {
		return WeightedRowSums(m, w)
	}

	rows, cols := m.Dims()
	if cols != len(w) {
		return nil, fmt.Errorf("invalid weights length: %d, expected %d", len(w), cols)
	}

	ref := mat.VecDenseCopyOf(m.ColView(0))
	sum := mat.NewVecDense(rows, nil)
	res := mat.NewVecDense(rows, nil)
	for c := 1; c < cols; c++ {
		res.SubVec(m.ColView(c), ref)
		norm(res)
		sum.AddScaledVec(sum, w[c], res)
	}
	// w is expected to sum to one
	sum.AddVec(sum, ref)
	norm(sum)

	return sum, nil
}

// WeightedCov returns the weighted covariance of the samples stored in columns of x around mean.
// If norm is not nil it is applied to every residual before it is accumulated.
// It returns error if the dimensions of x, mean and w do not match.
func WeightedCov(x *mat.Dense, mean mat.Vector, w []float64, norm NormFunc) (*mat.SymDense, error) {
	rows, cols := x.Dims()
	if cols != len(w) || mean.Len() != rows {
		return nil, fmt.Errorf("invalid dimensions: samples [%d x %d], mean %d, weights %d", rows, cols, mean.Len(), len(w))
	}

	cov := mat.NewSymDense(rows, nil)
	res := mat.NewVecDense(rows, nil)
	for c := 0; c < cols; c++ {
		res.SubVec(x.ColView(c), mean)
		if norm != nil {
			norm(res)
		}
		cov.SymRankOne(cov, w[c], res)
	}

	return cov, nil
}

// WeightedCrossCov returns the weighted cross covariance of the samples stored in columns of x and z
// around their respective means xMean and zMean.
// Residuals are normalized with xNorm and zNorm if they are not nil.
// It returns error if the dimensions of the supplied samples, means and weights do not match.
func WeightedCrossCov(x *mat.Dense, xMean mat.Vector, z *mat.Dense, zMean mat.Vector, w []float64, xNorm, zNorm NormFunc) (*mat.Dense, error) {
	xRows, xCols := x.Dims()
	zRows, zCols := z.Dims()
	if xCols != len(w) || zCols != len(w) || xMean.Len() != xRows || zMean.Len() != zRows {
		return nil, fmt.Errorf("invalid dimensions: x [%d x %d], z [%d x %d], weights %d", xRows, xCols, zRows, zCols, len(w))
	}

	cov := mat.NewDense(xRows, zRows, nil)
	xRes := mat.NewVecDense(xRows, nil)
	zRes := mat.NewVecDense(zRows, nil)
	for c := 0; c < xCols; c++ {
		xRes.SubVec(x.ColView(c), xMean)
		if xNorm != nil {
			xNorm(xRes)
		}
		zRes.SubVec(z.ColView(c), zMean)
		if zNorm != nil {
			zNorm(zRes)
		}
		cov.RankOne(cov, w[c], xRes, zRes)
	}

	return cov, nil
}

// Symmetrize returns symmetric matrix (m + m')/2.
// It panics if m is not square.
func Symmetrize(m mat.Matrix) *mat.SymDense {
	r, c := m.Dims()
	if r != c {
		panic(mat.ErrShape)
	}

	sym := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			sym.SetSym(i, j, 0.5*(m.At(i, j)+m.At(j, i)))
		}
	}

	return sym
}

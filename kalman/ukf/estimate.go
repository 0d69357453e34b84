package ukf

import (
	"github.com/milosgajdos/go-fusion/estimate"
	"gonum.org/v1/gonum/mat"
)

// Prediction is UKF prediction: predicted state estimate together with
// the predicted sigma points consumed by the measurement update.
type Prediction struct {
	*estimate.Base
	// x stores predicted sigma points in columns
	x *mat.Dense
	// dt is prediction time step
	dt float64
}

// SigmaPoints returns predicted sigma points stored in columns
func (p *Prediction) SigmaPoints() *mat.Dense {
	x := &mat.Dense{}
	x.CloneFrom(p.x)

	return x
}

// Dt returns prediction time step in seconds
func (p *Prediction) Dt() float64 {
	return p.dt
}

// Correction is UKF measurement update result
type Correction struct {
	*estimate.Base
	// zPred is predicted measurement
	zPred *mat.VecDense
	// inn is innovation vector
	inn *mat.VecDense
	// s is innovation covariance
	s *mat.SymDense
	// gain is Kalman gain
	gain *mat.Dense
	// nis is Normalized Innovation Squared
	nis float64
}

// PredictedMeasurement returns measurement predicted from the sigma points
func (c *Correction) PredictedMeasurement() mat.Vector {
	return mat.VecDenseCopyOf(c.zPred)
}

// Innovation returns innovation vector: measurement minus predicted measurement
func (c *Correction) Innovation() mat.Vector {
	return mat.VecDenseCopyOf(c.inn)
}

// InnovationCov returns innovation covariance
func (c *Correction) InnovationCov() mat.Symmetric {
	s := mat.NewSymDense(c.s.SymmetricDim(), nil)
	s.CopySym(c.s)

	return s
}

// Gain returns Kalman gain
func (c *Correction) Gain() mat.Matrix {
	gain := &mat.Dense{}
	gain.CloneFrom(c.gain)

	return gain
}

// NIS returns Normalized Innovation Squared consistency score
func (c *Correction) NIS() float64 {
	return c.nis
}

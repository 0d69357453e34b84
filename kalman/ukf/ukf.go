package ukf

import (
	"fmt"
	"math"

	fusion "github.com/milosgajdos/go-fusion"
	"github.com/milosgajdos/go-fusion/estimate"
	"github.com/milosgajdos/go-fusion/kalman"
	"github.com/milosgajdos/go-fusion/matrix"
	"github.com/milosgajdos/go-fusion/model"
	gomatrix "github.com/milosgajdos/matrix"
	"gonum.org/v1/gonum/mat"
)

// SigmaPoints stores augmented sigma points and the distribution they were drawn from
type SigmaPoints struct {
	// X stores sigma point vectors in columns
	X *mat.Dense
	// Mean is augmented state mean
	Mean *mat.VecDense
	// Cov is augmented state covariance
	Cov *mat.SymDense
}

// Config contains UKF [unitless] configuration parameters
type Config struct {
	// Lambda is sigma point spreading parameter.
	// Lambda + augmented state dimension must be positive.
	Lambda float64
}

// DefaultConfig returns UKF configuration for a model with augmented state dimension nAug:
// Lambda = 3 - nAug.
func DefaultConfig(nAug int) *Config {
	return &Config{Lambda: 3 - float64(nAug)}
}

// UKF is Unscented Kalman Filter which propagates process noise through the model
// by augmenting the state with noise dimensions.
// UKF holds no estimation state: estimates flow through Predict and Update.
type UKF struct {
	// m is UKF system model
	m fusion.Model
	// q is process noise
	q *mat.SymDense
	// nx is state dimension
	nx int
	// nAug is augmented state dimension
	nAug int
	// lambda is sigma point spreading parameter
	lambda float64
	// gamma is the square root sigma point covariance scaling factor
	gamma float64
	// w stores sigma point weights
	w []float64
}

// New creates new UKF and returns it.
// It accepts the following arguments:
//   - m: dynamical system model
//   - q: process noise; its dimension must match model noise dimension
//   - c: filter configuration; if nil DefaultConfig is used
//
// It returns error if either of the following conditions is met:
//   - model dimensions are not positive
//   - process noise dimension does not match the model
//   - Lambda + augmented state dimension is not positive
func New(m fusion.Model, q fusion.Noise, c *Config) (*UKF, error) {
	if m == nil {
		return nil, fmt.Errorf("invalid model: %v", m)
	}

	nx, nq := m.Dims()
	if nx <= 0 || nq <= 0 {
		return nil, fmt.Errorf("invalid model dimensions: [%d x %d]", nx, nq)
	}

	if q == nil || q.Cov().SymmetricDim() != nq {
		return nil, fmt.Errorf("invalid process noise dimension: expected %d", nq)
	}

	nAug := nx + nq
	if c == nil {
		c = DefaultConfig(nAug)
	}

	if c.Lambda+float64(nAug) <= 0 {
		return nil, fmt.Errorf("invalid config supplied: %v", c)
	}

	qCov := mat.NewSymDense(nq, nil)
	qCov.CopySym(q.Cov())

	n := float64(nAug) + c.Lambda

	// weights of the mean sigma point and the rest of sigma points
	w := make([]float64, 2*nAug+1)
	w[0] = c.Lambda / n
	for i := 1; i < len(w); i++ {
		w[i] = 1 / (2 * n)
	}

	return &UKF{
		m:      m,
		q:      qCov,
		nx:     nx,
		nAug:   nAug,
		lambda: c.Lambda,
		gamma:  math.Sqrt(n),
		w:      w,
	}, nil
}

// Weights returns sigma point weights
func (k *UKF) Weights() []float64 {
	w := make([]float64, len(k.w))
	copy(w, k.w)

	return w
}

// Lambda returns sigma point spreading parameter
func (k *UKF) Lambda() float64 {
	return k.lambda
}

// GenSigmaPoints generates augmented sigma points around estimate est and returns them.
// Augmented mean is est value extended with zero noise mean; augmented covariance is
// block diagonal with est covariance and process noise covariance on its diagonal.
// It returns fusion.ErrNumerical if the augmented covariance is not positive definite.
func (k *UKF) GenSigmaPoints(est fusion.Estimate) (*SigmaPoints, error) {
	if err := k.checkEstimate(est); err != nil {
		return nil, err
	}

	x := est.Val()
	p := est.Cov()

	mean := mat.NewVecDense(k.nAug, nil)
	mean.SliceVec(0, k.nx).(*mat.VecDense).CopyVec(x)

	cov := gomatrix.BlockSymDiag([]mat.Symmetric{p, k.q})

	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		return nil, fmt.Errorf("%w: augmented covariance is not positive definite", fusion.ErrNumerical)
	}
	var l mat.TriDense
	chol.LTo(&l)

	sp := mat.NewDense(k.nAug, 2*k.nAug+1, nil)
	sp.SetCol(0, mean.RawVector().Data)

	col := mat.NewVecDense(k.nAug, nil)
	for i := 0; i < k.nAug; i++ {
		li := mat.NewVecDense(k.nAug, mat.Col(nil, i, &l))

		col.AddScaledVec(mean, k.gamma, li)
		sp.SetCol(i+1, col.RawVector().Data)

		col.AddScaledVec(mean, -k.gamma, li)
		sp.SetCol(i+1+k.nAug, col.RawVector().Data)
	}

	return &SigmaPoints{
		X:    sp,
		Mean: mean,
		Cov:  cov,
	}, nil
}

// Predict propagates estimate est dt seconds ahead and returns the prediction.
// It generates augmented sigma points around est, propagates them through the model
// and recombines them into predicted mean and covariance; state angle residuals are
// normalized before they are accumulated.
// It returns fusion.ErrTimeRegression if dt is negative and fusion.ErrNumerical
// if sigma points can't be generated or the prediction is not finite.
func (k *UKF) Predict(est fusion.Estimate, dt float64) (*Prediction, error) {
	if dt < 0 || math.IsNaN(dt) {
		return nil, fmt.Errorf("%w: invalid time step: %v", fusion.ErrTimeRegression, dt)
	}

	sp, err := k.GenSigmaPoints(est)
	if err != nil {
		return nil, fmt.Errorf("failed to generate sigma points: %w", err)
	}

	cols := 2*k.nAug + 1
	x := mat.NewDense(k.nx, cols, nil)

	for c := 0; c < cols; c++ {
		col := sp.X.ColView(c).(*mat.VecDense)
		xNext, err := k.m.Propagate(col.SliceVec(0, k.nx), col.SliceVec(k.nx, k.nAug), dt)
		if err != nil {
			return nil, fmt.Errorf("failed to propagate sigma point %d: %w", c, err)
		}
		x.SetCol(c, mat.Col(nil, 0, xNext))
	}

	xMean, err := matrix.WeightedRowSums(x, k.w)
	if err != nil {
		return nil, fmt.Errorf("failed to predict mean: %w", err)
	}

	cov, err := matrix.WeightedCov(x, xMean, k.w, normFunc(k.m.Angles()))
	if err != nil {
		return nil, fmt.Errorf("failed to predict covariance: %w", err)
	}

	base, err := estimate.NewBaseWithCov(xMean, cov)
	if err != nil {
		return nil, fmt.Errorf("failed to estimate next state: %w", err)
	}

	if !base.IsFinite() {
		return nil, fmt.Errorf("%w: non-finite prediction", fusion.ErrNumerical)
	}

	return &Prediction{
		Base: base,
		x:    x,
		dt:   dt,
	}, nil
}

// Update corrects prediction pred using measurement z observed by obs and returns the correction.
// Predicted measurement angles are averaged from normalized residuals against the first
// sigma point and wrapped. Measurement angle residuals are normalized in the innovation
// covariance, the cross covariance and the innovation; state angle residuals are
// normalized in the cross covariance.
// It returns fusion.ErrNumerical if the sigma points can't be observed, the innovation
// covariance is not positive definite or the corrected estimate is not finite.
func (k *UKF) Update(pred *Prediction, obs fusion.Observer, z mat.Vector) (*Correction, error) {
	if pred == nil || obs == nil {
		return nil, fmt.Errorf("invalid update arguments")
	}

	nx, nz := obs.Dims()
	if nx != k.nx {
		return nil, fmt.Errorf("invalid observer state dimension: %d", nx)
	}

	if z == nil || z.Len() != nz {
		return nil, fmt.Errorf("invalid measurement supplied: %v", z)
	}

	r := obs.Noise().Cov()
	if r.SymmetricDim() != nz {
		return nil, fmt.Errorf("invalid measurement noise dimension: %d", r.SymmetricDim())
	}

	_, cols := pred.x.Dims()
	zSig := mat.NewDense(nz, cols, nil)
	for c := 0; c < cols; c++ {
		y, err := obs.Observe(pred.x.ColView(c))
		if err != nil {
			return nil, fmt.Errorf("failed to observe sigma point %d: %w", c, err)
		}
		zSig.SetCol(c, mat.Col(nil, 0, y))
	}

	zNorm := normFunc(obs.Angles())
	xNorm := normFunc(k.m.Angles())

	zMean, err := matrix.WeightedMean(zSig, k.w, zNorm)
	if err != nil {
		return nil, fmt.Errorf("failed to predict measurement: %w", err)
	}

	s, err := matrix.WeightedCov(zSig, zMean, k.w, zNorm)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate innovation covariance: %w", err)
	}
	s.AddSym(s, r)

	xMean := pred.Base.Val()
	tc, err := matrix.WeightedCrossCov(pred.x, xMean, zSig, zMean, k.w, xNorm, zNorm)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate cross covariance: %w", err)
	}

	gain, err := kalman.Gain(tc, s)
	if err != nil {
		return nil, err
	}

	// innovation vector
	inn := &mat.VecDense{}
	inn.SubVec(z, zMean)
	if zNorm != nil {
		zNorm(inn)
	}

	nis, err := kalman.NIS(inn, s)
	if err != nil {
		return nil, err
	}

	// correct state
	x := &mat.VecDense{}
	x.MulVec(gain, inn)
	x.AddVec(xMean, x)

	// correct covariance: P - K*S*K'
	ks := &mat.Dense{}
	ks.Mul(gain, s)
	ksk := &mat.Dense{}
	ksk.Mul(ks, gain.T())
	pCorr := &mat.Dense{}
	pCorr.Sub(pred.Base.Cov(), ksk)

	base, err := estimate.NewBaseWithCov(x, matrix.Symmetrize(pCorr))
	if err != nil {
		return nil, fmt.Errorf("failed to update estimate: %w", err)
	}

	if !base.IsFinite() {
		return nil, fmt.Errorf("%w: non-finite correction", fusion.ErrNumerical)
	}

	return &Correction{
		Base:  base,
		zPred: zMean,
		inn:   inn,
		s:     s,
		gain:  gain,
		nis:   nis,
	}, nil
}

func (k *UKF) checkEstimate(est fusion.Estimate) error {
	if est == nil {
		return fmt.Errorf("invalid estimate: %v", est)
	}

	if est.Val().Len() != k.nx || est.Cov().SymmetricDim() != k.nx {
		return fmt.Errorf("invalid estimate dimensions: expected %d", k.nx)
	}

	return nil
}

func normFunc(angles []int) matrix.NormFunc {
	if len(angles) == 0 {
		return nil
	}

	return func(v *mat.VecDense) {
		model.NormalizeAngles(v, angles)
	}
}

package ukf

import (
	"errors"
	"math"
	"os"
	"testing"

	fusion "github.com/milosgajdos/go-fusion"
	"github.com/milosgajdos/go-fusion/estimate"
	"github.com/milosgajdos/go-fusion/matrix"
	"github.com/milosgajdos/go-fusion/model"
	"github.com/milosgajdos/go-fusion/noise"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

type invalidModel struct {
	*model.CTRV
}

func (m *invalidModel) Dims() (int, int) {
	return -10, 2
}

var (
	ctrv  *model.CTRV
	q     fusion.Noise
	lidar *model.Lidar
	radar *model.Radar
	est   *estimate.Base
)

func setup() {
	ctrv, _ = model.NewCTRV(model.CurvedTextbook)
	q, _ = noise.NewDiagonal(2.0, 0.4)

	rl, _ := noise.NewDiagonal(0.15, 0.15)
	lidar, _ = model.NewLidar(rl)

	rr, _ := noise.NewDiagonal(0.3, 0.03, 0.3)
	radar, _ = model.NewRadar(rr)

	x := mat.NewVecDense(model.StateDim, []float64{5.7441, 1.3800, 2.2049, 0.5015, 0.3528})
	p := mat.NewSymDense(model.StateDim, []float64{
		0.0043, -0.0013, 0.0030, -0.0022, -0.0020,
		-0.0013, 0.0077, 0.0011, 0.0071, 0.0060,
		0.0030, 0.0011, 0.0054, 0.0007, 0.0008,
		-0.0022, 0.0071, 0.0007, 0.0098, 0.0100,
		-0.0020, 0.0060, 0.0008, 0.0100, 0.0123,
	})
	est, _ = estimate.NewBaseWithCov(x, p)
}

func TestMain(m *testing.M) {
	// set up tests
	setup()
	// run the tests
	retCode := m.Run()
	// call with result of m.Run()
	os.Exit(retCode)
}

func TestUKFNew(t *testing.T) {
	assert := assert.New(t)

	f, err := New(ctrv, q, nil)
	assert.NotNil(f)
	assert.NoError(err)
	assert.Equal(-4.0, f.Lambda())

	// invalid model: incorrect dimensions
	f, err = New(&invalidModel{ctrv}, q, nil)
	assert.Nil(f)
	assert.Error(err)

	f, err = New(nil, q, nil)
	assert.Nil(f)
	assert.Error(err)

	// invalid process noise dimension
	bad, _ := noise.NewDiagonal(1, 1, 1)
	f, err = New(ctrv, bad, nil)
	assert.Nil(f)
	assert.Error(err)

	f, err = New(ctrv, nil, nil)
	assert.Nil(f)
	assert.Error(err)

	// invalid config
	f, err = New(ctrv, q, &Config{Lambda: -7})
	assert.Nil(f)
	assert.Error(err)
}

func TestWeights(t *testing.T) {
	assert := assert.New(t)

	for _, c := range []*Config{nil, {Lambda: -4}, {Lambda: 0}, {Lambda: 1}, {Lambda: 3}, {Lambda: -6.5}} {
		f, err := New(ctrv, q, c)
		require.NoError(t, err)

		w := f.Weights()
		assert.Len(w, 15)
		assert.InDelta(1.0, floats.Sum(w), 1e-12)

		lambda := f.Lambda()
		assert.InDelta(lambda/(lambda+7), w[0], 1e-12)
		for i := 1; i < len(w); i++ {
			assert.InDelta(1/(2*(lambda+7)), w[i], 1e-12)
		}
	}

	// returned weights are a copy
	f, err := New(ctrv, q, nil)
	require.NoError(t, err)
	f.Weights()[0] = 100
	assert.InDelta(-4.0/3.0, f.Weights()[0], 1e-12)
}

func TestGenSigmaPoints(t *testing.T) {
	assert := assert.New(t)

	f, err := New(ctrv, q, nil)
	require.NoError(t, err)

	sp, err := f.GenSigmaPoints(est)
	assert.NoError(err)
	require.NotNil(t, sp)

	rows, cols := sp.X.Dims()
	assert.Equal(7, rows)
	assert.Equal(15, cols)

	// mean sigma point is the augmented mean
	x := est.Val()
	for i := 0; i < model.StateDim; i++ {
		assert.Equal(x.AtVec(i), sp.X.At(i, 0))
	}
	assert.Equal(0.0, sp.X.At(5, 0))
	assert.Equal(0.0, sp.X.At(6, 0))

	// augmented covariance carries process noise variances
	assert.InDelta(4.0, sp.Cov.At(5, 5), 1e-12)
	assert.InDelta(0.16, sp.Cov.At(6, 6), 1e-12)
	assert.Zero(sp.Cov.At(0, 5))
	assert.Zero(sp.Cov.At(5, 6))

	// sigma points are symmetric around the mean
	for i := 1; i <= 7; i++ {
		for r := 0; r < rows; r++ {
			assert.InDelta(2*sp.X.At(r, 0), sp.X.At(r, i)+sp.X.At(r, i+7), 1e-12)
		}
	}
}

func TestSigmaPointsRoundTrip(t *testing.T) {
	assert := assert.New(t)

	for _, c := range []*Config{nil, {Lambda: 0}, {Lambda: 2}} {
		f, err := New(ctrv, q, c)
		require.NoError(t, err)

		sp, err := f.GenSigmaPoints(est)
		require.NoError(t, err)

		w := f.Weights()
		mean, err := matrix.WeightedRowSums(sp.X, w)
		assert.NoError(err)
		assert.True(mat.EqualApprox(sp.Mean, mean, 1e-12))

		cov, err := matrix.WeightedCov(sp.X, sp.Mean, w, nil)
		assert.NoError(err)
		assert.True(mat.EqualApprox(sp.Cov, cov, 1e-12))
	}
}

func TestGenSigmaPointsInvalid(t *testing.T) {
	assert := assert.New(t)

	f, err := New(ctrv, q, nil)
	require.NoError(t, err)

	// not positive definite covariance
	bad, err := estimate.NewBaseWithCov(est.Val(), mat.NewSymDense(model.StateDim, nil))
	require.NoError(t, err)
	sp, err := f.GenSigmaPoints(bad)
	assert.Nil(sp)
	assert.True(errors.Is(err, fusion.ErrNumerical))

	// invalid dimensions
	small, err := estimate.NewBaseWithCov(mat.NewVecDense(2, nil), mat.NewSymDense(2, nil))
	require.NoError(t, err)
	sp, err = f.GenSigmaPoints(small)
	assert.Nil(sp)
	assert.Error(err)

	sp, err = f.GenSigmaPoints(nil)
	assert.Nil(sp)
	assert.Error(err)
}

func TestPredict(t *testing.T) {
	assert := assert.New(t)

	f, err := New(ctrv, q, nil)
	require.NoError(t, err)

	pred, err := f.Predict(est, 0.1)
	assert.NoError(err)
	require.NotNil(t, pred)
	assert.Equal(0.1, pred.Dt())

	x := pred.Val()
	assert.Equal(model.StateDim, x.Len())
	assert.True(pred.IsFinite())

	// the mean moves along the heading
	assert.Greater(x.AtVec(0), est.Val().AtVec(0))
	assert.Greater(x.AtVec(1), est.Val().AtVec(1))

	cov := pred.Cov()
	for i := 0; i < model.StateDim; i++ {
		assert.Greater(cov.At(i, i), 0.0)
	}

	rows, cols := pred.SigmaPoints().Dims()
	assert.Equal(model.StateDim, rows)
	assert.Equal(15, cols)

	// the predicted mean is the weighted mean of the predicted sigma points
	mean, err := matrix.WeightedRowSums(pred.SigmaPoints(), f.Weights())
	assert.NoError(err)
	assert.True(mat.EqualApprox(x, mean, 1e-12))

	// negative time step
	pred, err = f.Predict(est, -0.1)
	assert.Nil(pred)
	assert.True(errors.Is(err, fusion.ErrTimeRegression))
}

func TestPredictYawWrap(t *testing.T) {
	assert := assert.New(t)

	f, err := New(ctrv, q, nil)
	require.NoError(t, err)

	// heading right at the wrap boundary must not blow up the yaw variance
	x := mat.NewVecDense(model.StateDim, []float64{1, 1, 1, math.Pi - 0.01, 0})
	p := mat.NewDiagDense(model.StateDim, []float64{0.1, 0.1, 0.1, 0.1, 0.1})
	e, err := estimate.NewBaseWithCov(x, p)
	require.NoError(t, err)

	pred, err := f.Predict(e, 0.1)
	require.NoError(t, err)
	assert.Less(pred.Cov().At(model.Yaw, model.Yaw), 1.0)
}

func TestUpdateLidar(t *testing.T) {
	assert := assert.New(t)

	f, err := New(ctrv, q, nil)
	require.NoError(t, err)

	pred, err := f.Predict(est, 0.1)
	require.NoError(t, err)

	z := mat.NewVecDense(model.LidarDim, []float64{6.0, 1.6})
	corr, err := f.Update(pred, lidar, z)
	assert.NoError(err)
	require.NotNil(t, corr)

	r, c := corr.Gain().Dims()
	assert.Equal(model.StateDim, r)
	assert.Equal(model.LidarDim, c)
	assert.Equal(model.LidarDim, corr.InnovationCov().SymmetricDim())
	assert.Greater(corr.NIS(), 0.0)

	// the corrected position moves towards the measurement
	before := distance(pred.Val(), z)
	after := distance(corr.Val(), z)
	assert.Less(after, before)

	// the corrected covariance is symmetric and shrinks in position
	cov := corr.Cov()
	for i := 0; i < model.LidarDim; i++ {
		assert.Less(cov.At(i, i), pred.Cov().At(i, i))
	}
}

func TestUpdateZeroInnovation(t *testing.T) {
	assert := assert.New(t)

	f, err := New(ctrv, q, nil)
	require.NoError(t, err)

	pred, err := f.Predict(est, 0.1)
	require.NoError(t, err)

	corr, err := f.Update(pred, lidar, mat.NewVecDense(model.LidarDim, []float64{0, 0}))
	require.NoError(t, err)

	z := corr.PredictedMeasurement()
	corr, err = f.Update(pred, lidar, z)
	require.NoError(t, err)

	assert.Zero(mat.Norm(corr.Innovation(), 2))
	assert.True(mat.Equal(pred.Val(), corr.Val()))
	assert.Zero(corr.NIS())
}

func TestUpdateRadar(t *testing.T) {
	assert := assert.New(t)

	f, err := New(ctrv, q, nil)
	require.NoError(t, err)

	pred, err := f.Predict(est, 0.1)
	require.NoError(t, err)

	z := mat.NewVecDense(model.RadarDim, []float64{5.9214, 0.2187, 2.0062})
	corr, err := f.Update(pred, radar, z)
	assert.NoError(err)
	require.NotNil(t, corr)

	r, c := corr.Gain().Dims()
	assert.Equal(model.StateDim, r)
	assert.Equal(model.RadarDim, c)
	assert.True(corr.IsFinite())
	assert.GreaterOrEqual(corr.NIS(), 0.0)

	// bearing innovation is normalized
	inn := corr.Innovation()
	assert.True(math.Abs(inn.AtVec(model.Bearing)) <= math.Pi)
}

func TestUpdateRadarBearingWrap(t *testing.T) {
	assert := assert.New(t)

	f, err := New(ctrv, q, nil)
	require.NoError(t, err)

	// object behind the sensor: bearing close to Pi
	x := mat.NewVecDense(model.StateDim, []float64{-5, 0.5, 1, 0, 0})
	p := mat.NewDiagDense(model.StateDim, []float64{0.01, 0.01, 0.01, 0.01, 0.01})
	e, err := estimate.NewBaseWithCov(x, p)
	require.NoError(t, err)

	pred, err := f.Predict(e, 0.1)
	require.NoError(t, err)

	// measured bearing on the other side of the wrap boundary
	z := mat.NewVecDense(model.RadarDim, []float64{4.925, -math.Pi + 0.001, -1})
	corr, err := f.Update(pred, radar, z)
	require.NoError(t, err)

	assert.Less(math.Abs(corr.Innovation().AtVec(model.Bearing)), 0.2)
	assert.Less(corr.NIS(), 100.0)
}

func TestUpdateRadarBearingMirror(t *testing.T) {
	assert := assert.New(t)

	f, err := New(ctrv, q, nil)
	require.NoError(t, err)

	// loosely initialized object: position sigma points on the -x axis straddle +-pi bearing
	update := func(px, py float64) *Correction {
		x := mat.NewVecDense(model.StateDim, []float64{px, py, 0, 0, 0})
		p := mat.NewDiagDense(model.StateDim, []float64{0.15, 0.15, 1, 1, 1})
		e, err := estimate.NewBaseWithCov(x, p)
		require.NoError(t, err)

		pred, err := f.Predict(e, 0.1)
		require.NoError(t, err)

		z := mat.NewVecDense(model.RadarDim, []float64{math.Hypot(px, py), math.Atan2(py, px) + 0.01, 0})
		corr, err := f.Update(pred, radar, z)
		require.NoError(t, err)

		return corr
	}

	front := update(5, 0.05)
	behind := update(-5, -0.05)

	delta := 1e-4
	assert.InDelta(0.0935, front.Val().AtVec(1), delta)
	assert.InDelta(0.0198, front.Cov().At(1, 1), delta)
	assert.InDelta(0.0155, front.NIS(), delta)

	// the object behind the sensor is the point reflection of the one in front of it
	delta = 1e-9
	assert.InDelta(-front.Val().AtVec(0), behind.Val().AtVec(0), delta)
	assert.InDelta(-front.Val().AtVec(1), behind.Val().AtVec(1), delta)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			assert.InDelta(front.Cov().At(i, j), behind.Cov().At(i, j), delta)
		}
	}
	assert.InDelta(front.NIS(), behind.NIS(), delta)

	// predicted bearing stays behind the sensor
	assert.InDelta(math.Atan2(-0.05, -5), behind.PredictedMeasurement().AtVec(model.Bearing), 1e-3)
}

func TestUpdateRadarOrigin(t *testing.T) {
	assert := assert.New(t)

	f, err := New(ctrv, q, nil)
	require.NoError(t, err)

	// all sigma points of a deterministic estimate sit at the origin
	x := mat.NewVecDense(model.StateDim, []float64{0, 0, 0, 0, 0})
	p := mat.NewDiagDense(model.StateDim, []float64{1e-12, 1e-12, 1e-12, 1e-12, 1e-12})
	e, err := estimate.NewBaseWithCov(x, p)
	require.NoError(t, err)

	pred, err := f.Predict(e, 0)
	require.NoError(t, err)

	corr, err := f.Update(pred, radar, mat.NewVecDense(model.RadarDim, []float64{1, 0, 0}))
	assert.Nil(corr)
	assert.True(errors.Is(err, fusion.ErrNumerical))
}

func TestUpdateInvalid(t *testing.T) {
	assert := assert.New(t)

	f, err := New(ctrv, q, nil)
	require.NoError(t, err)

	pred, err := f.Predict(est, 0.1)
	require.NoError(t, err)

	corr, err := f.Update(pred, lidar, mat.NewVecDense(model.RadarDim, nil))
	assert.Nil(corr)
	assert.Error(err)

	corr, err = f.Update(nil, lidar, mat.NewVecDense(model.LidarDim, nil))
	assert.Nil(corr)
	assert.Error(err)

	corr, err = f.Update(pred, nil, mat.NewVecDense(model.LidarDim, nil))
	assert.Nil(corr)
	assert.Error(err)
}

func distance(x, z mat.Vector) float64 {
	return math.Hypot(x.AtVec(0)-z.AtVec(0), x.AtVec(1)-z.AtVec(1))
}

package model

import (
	"errors"
	"math"
	"testing"

	fusion "github.com/milosgajdos/go-fusion"
	"github.com/milosgajdos/go-fusion/noise"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestLidar(t *testing.T) {
	assert := assert.New(t)

	r, err := noise.NewDiagonal(0.15, 0.15)
	require.NoError(t, err)

	l, err := NewLidar(r)
	assert.NotNil(l)
	assert.NoError(err)

	nx, nz := l.Dims()
	assert.Equal(StateDim, nx)
	assert.Equal(LidarDim, nz)
	assert.Nil(l.Angles())
	assert.Equal(r, l.Noise())

	z, err := l.Observe(mat.NewVecDense(StateDim, []float64{1, 2, 3, 4, 5}))
	assert.NoError(err)
	assert.Equal([]float64{1, 2}, mat.Col(nil, 0, z))

	_, err = l.Observe(mat.NewVecDense(2, nil))
	assert.Error(err)

	x, err := l.Init(mat.NewVecDense(LidarDim, []float64{1.0, 0.8}))
	assert.NoError(err)
	assert.Equal([]float64{1.0, 0.8, 0, 0, 0}, x.RawVector().Data)

	_, err = l.Init(mat.NewVecDense(3, nil))
	assert.Error(err)

	// invalid noise
	bad, _ := noise.NewDiagonal(0.3, 0.03, 0.3)
	l, err = NewLidar(bad)
	assert.Nil(l)
	assert.Error(err)

	l, err = NewLidar(nil)
	assert.Nil(l)
	assert.Error(err)
}

func TestRadar(t *testing.T) {
	assert := assert.New(t)

	r, err := noise.NewDiagonal(0.3, 0.03, 0.3)
	require.NoError(t, err)

	rd, err := NewRadar(r)
	assert.NotNil(rd)
	assert.NoError(err)

	nx, nz := rd.Dims()
	assert.Equal(StateDim, nx)
	assert.Equal(RadarDim, nz)
	assert.Equal([]int{Bearing}, rd.Angles())
	assert.Equal(r, rd.Noise())

	// object at (3, 4) moving with speed 2 along the line of sight
	yaw := math.Atan2(4, 3)
	z, err := rd.Observe(mat.NewVecDense(StateDim, []float64{3, 4, 2, yaw, 0.1}))
	assert.NoError(err)
	assert.InDeltaSlice([]float64{5, yaw, 2}, mat.Col(nil, 0, z), 1e-12)

	// moving perpendicular to the line of sight
	z, err = rd.Observe(mat.NewVecDense(StateDim, []float64{0, 2, 1, 0, 0}))
	assert.NoError(err)
	assert.InDeltaSlice([]float64{2, math.Pi / 2, 0}, mat.Col(nil, 0, z), 1e-12)

	_, err = rd.Observe(mat.NewVecDense(4, nil))
	assert.Error(err)

	x, err := rd.Init(mat.NewVecDense(RadarDim, []float64{2, math.Pi / 2, 3}))
	assert.NoError(err)
	assert.InDeltaSlice([]float64{0, 2, 0, 0, 0}, x.RawVector().Data, 1e-12)

	rd, err = NewRadar(nil)
	assert.Nil(rd)
	assert.Error(err)
}

func TestRadarOrigin(t *testing.T) {
	assert := assert.New(t)

	r, err := noise.NewDiagonal(0.3, 0.03, 0.3)
	require.NoError(t, err)
	rd, err := NewRadar(r)
	require.NoError(t, err)

	for _, x := range [][]float64{
		{0, 0, 1, 0, 0},
		{MinRange / 10, 0, 1, 0, 0},
		{math.NaN(), 0, 1, 0, 0},
	} {
		z, err := rd.Observe(mat.NewVecDense(StateDim, x))
		assert.Nil(z)
		assert.True(errors.Is(err, fusion.ErrNumerical))
	}
}

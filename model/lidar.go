package model

import (
	"fmt"

	fusion "github.com/milosgajdos/go-fusion"
	"gonum.org/v1/gonum/mat"
)

// LidarDim is lidar measurement dimension: [px, py]
const LidarDim = 2

// Lidar is laser measurement model: it observes Cartesian position of CTRV state.
type Lidar struct {
	r fusion.Noise
}

// NewLidar creates new lidar measurement model with measurement noise r.
// It returns error if r is nil or its dimension is not LidarDim.
func NewLidar(r fusion.Noise) (*Lidar, error) {
	if r == nil || r.Cov().SymmetricDim() != LidarDim {
		return nil, fmt.Errorf("invalid lidar noise")
	}

	return &Lidar{r: r}, nil
}

// Observe maps CTRV state x to lidar measurement space
func (l *Lidar) Observe(x mat.Vector) (mat.Vector, error) {
	if x == nil || x.Len() != StateDim {
		return nil, fmt.Errorf("invalid state vector")
	}

	return mat.NewVecDense(LidarDim, []float64{x.AtVec(0), x.AtVec(1)}), nil
}

// Init returns CTRV state seeded from lidar measurement z.
// Velocity, yaw and yaw rate are not observed and are set to zero.
func (l *Lidar) Init(z mat.Vector) (*mat.VecDense, error) {
	if z == nil || z.Len() != LidarDim {
		return nil, fmt.Errorf("invalid lidar measurement")
	}

	return mat.NewVecDense(StateDim, []float64{z.AtVec(0), z.AtVec(1), 0, 0, 0}), nil
}

// Dims returns state and measurement dimensions
func (l *Lidar) Dims() (int, int) {
	return StateDim, LidarDim
}

// Angles returns nil: lidar measurement has no angle components
func (l *Lidar) Angles() []int {
	return nil
}

// Noise returns lidar measurement noise
func (l *Lidar) Noise() fusion.Noise {
	return l.r
}

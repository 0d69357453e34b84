package model

import (
	"fmt"
	"math"

	fusion "github.com/milosgajdos/go-fusion"
	"gonum.org/v1/gonum/mat"
)

const (
	// RadarDim is radar measurement dimension: [rho, theta, rho_dot]
	RadarDim = 3
	// Bearing is the index of the bearing angle in radar measurement
	Bearing = 1
	// MinRange is the range [m] below which range rate is undefined
	MinRange = 1e-6
)

// Radar is radar measurement model: it observes range, bearing and range rate of CTRV state.
type Radar struct {
	r fusion.Noise
}

// NewRadar creates new radar measurement model with measurement noise r.
// It returns error if r is nil or its dimension is not RadarDim.
func NewRadar(r fusion.Noise) (*Radar, error) {
	if r == nil || r.Cov().SymmetricDim() != RadarDim {
		return nil, fmt.Errorf("invalid radar noise")
	}

	return &Radar{r: r}, nil
}

// Observe maps CTRV state x to radar measurement space.
// It returns fusion.ErrNumerical if the object is too close to the sensor origin
// for the range rate to be defined.
func (r *Radar) Observe(x mat.Vector) (mat.Vector, error) {
	if x == nil || x.Len() != StateDim {
		return nil, fmt.Errorf("invalid state vector")
	}

	px, py := x.AtVec(0), x.AtVec(1)
	v, yaw := x.AtVec(2), x.AtVec(3)

	rho := math.Hypot(px, py)
	if !(rho >= MinRange) {
		return nil, fmt.Errorf("%w: radar range %v below %v", fusion.ErrNumerical, rho, MinRange)
	}

	vx := v * math.Cos(yaw)
	vy := v * math.Sin(yaw)

	return mat.NewVecDense(RadarDim, []float64{
		rho,
		math.Atan2(py, px),
		(px*vx + py*vy) / rho,
	}), nil
}

// Init returns CTRV state seeded from radar measurement z.
// Only position is recovered; velocity, yaw and yaw rate are set to zero.
func (r *Radar) Init(z mat.Vector) (*mat.VecDense, error) {
	if z == nil || z.Len() != RadarDim {
		return nil, fmt.Errorf("invalid radar measurement")
	}

	rho, theta := z.AtVec(0), z.AtVec(1)

	return mat.NewVecDense(StateDim, []float64{rho * math.Cos(theta), rho * math.Sin(theta), 0, 0, 0}), nil
}

// Dims returns state and measurement dimensions
func (r *Radar) Dims() (int, int) {
	return StateDim, RadarDim
}

// Angles returns indices of radar measurement components which are angles
func (r *Radar) Angles() []int {
	return []int{Bearing}
}

// Noise returns radar measurement noise
func (r *Radar) Noise() fusion.Noise {
	return r.r
}

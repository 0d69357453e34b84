package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	// StateDim is CTRV state dimension: [px, py, v, yaw, yaw_rate]
	StateDim = 5
	// NoiseDim is CTRV process noise dimension: [nu_a, nu_yawdd]
	NoiseDim = 2
	// Yaw is the index of the heading angle in CTRV state
	Yaw = 3
	// YawRateThreshold is the yaw rate [rad/s] below which the object is assumed to move in a straight line
	YawRateThreshold = 0.001
)

// Variant selects the curved path position update of the CTRV model
type Variant int

const (
	// CurvedTextbook is the standard CTRV position update:
	//  px' = px + v/yawd * (sin(yaw + yawd*dt) - sin(yaw))
	CurvedTextbook Variant = iota
	// CurvedReference drops the -sin(yaw) term from the px update:
	//  px' = px + v/yawd * sin(yaw + yawd*dt)
	// It only exists to reproduce legacy results.
	CurvedReference
)

// CTRV is Constant Turn Rate and Velocity motion model.
// State vector is [px, py, v, yaw, yaw_rate] and process noise is
// longitudinal acceleration nu_a and yaw acceleration nu_yawdd.
type CTRV struct {
	variant Variant
}

// NewCTRV creates new CTRV model using the given curved path variant.
// It returns error if the variant is unknown.
func NewCTRV(v Variant) (*CTRV, error) {
	if v != CurvedTextbook && v != CurvedReference {
		return nil, fmt.Errorf("invalid CTRV variant: %d", v)
	}

	return &CTRV{variant: v}, nil
}

// Propagate propagates state x over dt seconds given process noise sample q.
// Noise is injected after the noiseless propagation; nil q means no noise.
// It returns error if x or q have invalid dimensions or if dt is negative.
func (c *CTRV) Propagate(x, q mat.Vector, dt float64) (mat.Vector, error) {
	if x == nil || x.Len() != StateDim {
		return nil, fmt.Errorf("invalid state vector")
	}

	if q != nil && q.Len() != NoiseDim {
		return nil, fmt.Errorf("invalid process noise vector")
	}

	if dt < 0 || math.IsNaN(dt) {
		return nil, fmt.Errorf("invalid time step: %v", dt)
	}

	px, py := x.AtVec(0), x.AtVec(1)
	v, yaw, yawd := x.AtVec(2), x.AtVec(3), x.AtVec(4)

	var pxNext, pyNext float64
	if math.Abs(yawd) > YawRateThreshold {
		r := v / yawd
		yawNext := yaw + yawd*dt
		switch c.variant {
		case CurvedReference:
			pxNext = px + r*math.Sin(yawNext)
		default:
			pxNext = px + r*(math.Sin(yawNext)-math.Sin(yaw))
		}
		pyNext = py + r*(math.Cos(yaw)-math.Cos(yawNext))
	} else {
		pxNext = px + v*dt*math.Cos(yaw)
		pyNext = py + v*dt*math.Sin(yaw)
	}

	out := mat.NewVecDense(StateDim, []float64{
		pxNext,
		pyNext,
		v,
		yaw + yawd*dt,
		yawd,
	})

	if q != nil {
		nuA, nuYawdd := q.AtVec(0), q.AtVec(1)
		dt2 := 0.5 * dt * dt
		out.SetVec(0, out.AtVec(0)+dt2*math.Cos(yaw)*nuA)
		out.SetVec(1, out.AtVec(1)+dt2*math.Sin(yaw)*nuA)
		out.SetVec(2, out.AtVec(2)+dt*nuA)
		out.SetVec(3, out.AtVec(3)+dt2*nuYawdd)
		out.SetVec(4, out.AtVec(4)+dt*nuYawdd)
	}

	return out, nil
}

// Dims returns state and process noise dimensions
func (c *CTRV) Dims() (int, int) {
	return StateDim, NoiseDim
}

// Angles returns indices of state components which are angles
func (c *CTRV) Angles() []int {
	return []int{Yaw}
}

// Variant returns curved path variant of the model
func (c *CTRV) Variant() Variant {
	return c.variant
}

package fusion

import "gonum.org/v1/gonum/mat"

// Propagator propagates internal state of the system to the next step
type Propagator interface {
	// Propagate propagates state x over dt seconds given process noise sample q
	Propagate(x, q mat.Vector, dt float64) (mat.Vector, error)
}

// Observer observes external state (output) of the system
type Observer interface {
	// Observe maps state x into the measurement space
	Observe(x mat.Vector) (mat.Vector, error)
	// Dims returns state and measurement dimensions
	Dims() (nx, nz int)
	// Angles returns indices of measurement components which are angles
	Angles() []int
	// Noise returns measurement noise
	Noise() Noise
}

// Model is a model of a dynamical system driven by process noise
type Model interface {
	// Propagator is system propagator
	Propagator
	// Dims returns state and process noise dimensions
	Dims() (nx, nq int)
	// Angles returns indices of state components which are angles
	Angles() []int
}

// InitCond is initial state condition of the filter
type InitCond interface {
	// State returns initial filter state
	State() mat.Vector
	// Cov returns initial state covariance
	Cov() mat.Symmetric
}

// Estimate is dynamical system filter estimate
type Estimate interface {
	// Val returns estimate value
	Val() mat.Vector
	// Cov returns estimate covariance
	Cov() mat.Symmetric
}

// Noise is dynamical system noise
type Noise interface {
	// Mean returns noise mean
	Mean() []float64
	// Cov returns covariance matrix of the noise
	Cov() mat.Symmetric
	// Sample returns a sample of the noise
	Sample() mat.Vector
	// Reset resets the noise
	Reset() error
}

package fusion

import "errors"

var (
	// ErrNumerical is returned when a filter cycle hits a numerically degenerate state:
	// a covariance which is not positive definite or a singular measurement mapping.
	ErrNumerical = errors.New("numerical error")
	// ErrInvalidMeasurement is returned when a measurement violates its sensor contract.
	ErrInvalidMeasurement = errors.New("invalid measurement")
	// ErrTimeRegression is returned when measurement timestamps go backwards.
	ErrTimeRegression = errors.New("time regression")
)

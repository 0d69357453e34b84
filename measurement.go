package fusion

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Sensor identifies the sensor which produced a measurement
type Sensor int

const (
	// Laser measures Cartesian position [px, py]
	Laser Sensor = iota + 1
	// Radar measures range, bearing and range rate [rho, theta, rho_dot]
	Radar
)

// Dim returns the length of the raw reading produced by the sensor.
// It returns 0 for unknown sensors.
func (s Sensor) Dim() int {
	switch s {
	case Laser:
		return 2
	case Radar:
		return 3
	}

	return 0
}

// String implements the Stringer interface.
func (s Sensor) String() string {
	switch s {
	case Laser:
		return "laser"
	case Radar:
		return "radar"
	}

	return fmt.Sprintf("Sensor(%d)", int(s))
}

// Measurement is a single sensor reading
type Measurement struct {
	// Sensor is the sensor which produced the reading
	Sensor Sensor
	// Raw is the raw reading
	Raw mat.Vector
	// Timestamp is the reading time in microseconds
	Timestamp int64
}

// Validate checks the measurement matches the shape of its sensor reading.
// It returns ErrInvalidMeasurement if the sensor is unknown, the raw reading
// has a wrong length or contains non-finite values.
func (m Measurement) Validate() error {
	dim := m.Sensor.Dim()
	if dim == 0 {
		return fmt.Errorf("%w: unknown sensor: %v", ErrInvalidMeasurement, m.Sensor)
	}

	if m.Raw == nil || m.Raw.Len() != dim {
		return fmt.Errorf("%w: %v reading must have %d components", ErrInvalidMeasurement, m.Sensor, dim)
	}

	for i := 0; i < dim; i++ {
		if v := m.Raw.AtVec(i); math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite %v reading component %d", ErrInvalidMeasurement, m.Sensor, i)
		}
	}

	return nil
}

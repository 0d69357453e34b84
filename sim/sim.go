package sim

import (
	"fmt"
	"math"

	fusion "github.com/milosgajdos/go-fusion"
	"github.com/milosgajdos/go-fusion/model"
	"github.com/milosgajdos/go-fusion/noise"
	"github.com/milosgajdos/go-fusion/rand"
	"gonum.org/v1/gonum/mat"
)

// Config configures a simulated scenario
type Config struct {
	// Steps is the number of generated measurements
	Steps int
	// Interval is the time between two measurements in microseconds
	Interval int64
	// Start is the initial true CTRV state [px, py, v, yaw, yaw_rate]
	Start []float64
	// ProcessStd are standard deviations of longitudinal and yaw acceleration
	// driving the true trajectory; empty means noiseless motion
	ProcessStd []float64
	// LaserStd are laser noise standard deviations; empty means noiseless laser
	LaserStd []float64
	// RadarStd are radar noise standard deviations; empty means noiseless radar
	RadarStd []float64
	// Sensors are cycled through to pick the sensor of each measurement
	Sensors []fusion.Sensor
	// Seed seeds all random sources; zero seeds them from the clock
	Seed uint64
}

// DefaultConfig returns configuration of a noisy object turning in a circle
// observed by alternating laser and radar measurements
func DefaultConfig() *Config {
	return &Config{
		Steps:    200,
		Interval: 50000,
		Start:    []float64{2, 1, 5, 0, 0.3},
		LaserStd: []float64{0.15, 0.15},
		RadarStd: []float64{0.3, 0.03, 0.3},
		Sensors:  []fusion.Sensor{fusion.Laser, fusion.Radar},
	}
}

// Step is a single simulation step
type Step struct {
	// Truth is the true CTRV state at the measurement time
	Truth *mat.VecDense
	// Measurement is the noisy sensor reading of Truth
	Measurement fusion.Measurement
}

// Sim generates true CTRV trajectories and their noisy measurements
type Sim struct {
	c       *Config
	ctrv    *model.CTRV
	sensors map[fusion.Sensor]fusion.Observer
}

// New creates new simulator and returns it.
// If c is nil DefaultConfig is used.
// It returns error if the configuration is invalid.
func New(c *Config) (*Sim, error) {
	if c == nil {
		c = DefaultConfig()
	}

	if c.Steps <= 0 || c.Interval <= 0 {
		return nil, fmt.Errorf("invalid simulation length: %d steps every %d us", c.Steps, c.Interval)
	}

	if len(c.Start) != model.StateDim {
		return nil, fmt.Errorf("invalid start state dimension: %d", len(c.Start))
	}

	if len(c.Sensors) == 0 {
		return nil, fmt.Errorf("no sensors configured")
	}

	if len(c.ProcessStd) != 0 && len(c.ProcessStd) != model.NoiseDim {
		return nil, fmt.Errorf("invalid process noise dimension: %d", len(c.ProcessStd))
	}

	ctrv, err := model.NewCTRV(model.CurvedTextbook)
	if err != nil {
		return nil, err
	}

	rl, err := newNoise(model.LidarDim, c.LaserStd, c.Seed)
	if err != nil {
		return nil, fmt.Errorf("invalid laser noise: %w", err)
	}

	lidar, err := model.NewLidar(rl)
	if err != nil {
		return nil, err
	}

	rr, err := newNoise(model.RadarDim, c.RadarStd, seedOffset(c.Seed, 1))
	if err != nil {
		return nil, fmt.Errorf("invalid radar noise: %w", err)
	}

	radar, err := model.NewRadar(rr)
	if err != nil {
		return nil, err
	}

	for _, s := range c.Sensors {
		if s != fusion.Laser && s != fusion.Radar {
			return nil, fmt.Errorf("unknown sensor: %v", s)
		}
	}

	return &Sim{
		c:    c,
		ctrv: ctrv,
		sensors: map[fusion.Sensor]fusion.Observer{
			fusion.Laser: lidar,
			fusion.Radar: radar,
		},
	}, nil
}

// Run generates the scenario and returns its steps.
// Runs with the same non-zero seed generate the same steps.
func (s *Sim) Run() ([]Step, error) {
	for _, o := range s.sensors {
		if err := o.Noise().Reset(); err != nil {
			return nil, err
		}
	}

	var q *mat.Dense
	if len(s.c.ProcessStd) > 0 {
		cov := mat.NewSymDense(model.NoiseDim, nil)
		for i, std := range s.c.ProcessStd {
			cov.SetSym(i, i, std*std)
		}

		var err error
		q, err = rand.WithCovN(cov, s.c.Steps, rand.NewSource(seedOffset(s.c.Seed, 2)))
		if err != nil {
			return nil, fmt.Errorf("failed to draw process noise: %w", err)
		}
	}

	dt := float64(s.c.Interval) / 1e6
	x := mat.NewVecDense(model.StateDim, nil)
	for i, v := range s.c.Start {
		x.SetVec(i, v)
	}

	steps := make([]Step, s.c.Steps)
	for i := range steps {
		if i > 0 {
			var nu mat.Vector
			if q != nil {
				nu = q.ColView(i)
			}

			xNext, err := s.ctrv.Propagate(x, nu, dt)
			if err != nil {
				return nil, fmt.Errorf("failed to propagate step %d: %w", i, err)
			}
			x = mat.VecDenseCopyOf(xNext)
		}

		sensor := s.c.Sensors[i%len(s.c.Sensors)]
		z, err := s.measure(sensor, x)
		if err != nil {
			return nil, fmt.Errorf("failed to measure step %d: %w", i, err)
		}

		steps[i] = Step{
			Truth: mat.VecDenseCopyOf(x),
			Measurement: fusion.Measurement{
				Sensor:    sensor,
				Raw:       z,
				Timestamp: int64(i) * s.c.Interval,
			},
		}
	}

	return steps, nil
}

func (s *Sim) measure(sensor fusion.Sensor, x mat.Vector) (*mat.VecDense, error) {
	o := s.sensors[sensor]

	y, err := o.Observe(x)
	if err != nil {
		return nil, err
	}

	z := mat.VecDenseCopyOf(y)
	z.AddVec(z, o.Noise().Sample())
	model.NormalizeAngles(z, o.Angles())

	return z, nil
}

// Cartesian returns position and Cartesian velocity [px, py, vx, vy] of CTRV state x
func Cartesian(x mat.Vector) []float64 {
	v, yaw := x.AtVec(2), x.AtVec(3)

	return []float64{x.AtVec(0), x.AtVec(1), v * math.Cos(yaw), v * math.Sin(yaw)}
}

// Position returns Cartesian position of measurement m
func Position(m fusion.Measurement) (float64, float64) {
	if m.Sensor == fusion.Radar {
		rho, theta := m.Raw.AtVec(0), m.Raw.AtVec(1)
		return rho * math.Cos(theta), rho * math.Sin(theta)
	}

	return m.Raw.AtVec(0), m.Raw.AtVec(1)
}

func newNoise(dim int, std []float64, seed uint64) (fusion.Noise, error) {
	if len(std) == 0 {
		z, err := noise.NewZero(dim)
		if err != nil {
			return nil, err
		}
		return z, nil
	}

	if len(std) != dim {
		return nil, fmt.Errorf("expected %d standard deviations, got %d", dim, len(std))
	}

	cov := mat.NewSymDense(dim, nil)
	for i, s := range std {
		if !(s > 0) {
			return nil, fmt.Errorf("invalid standard deviation %d: %v", i, s)
		}
		cov.SetSym(i, i, s*s)
	}

	g, err := noise.NewGaussianWithSeed(make([]float64, dim), cov, seed)
	if err != nil {
		return nil, err
	}

	return g, nil
}

func seedOffset(seed, off uint64) uint64 {
	if seed == 0 {
		return 0
	}

	return seed + off
}

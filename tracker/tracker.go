package tracker

import (
	"fmt"
	"io"
	"log/slog"

	fusion "github.com/milosgajdos/go-fusion"
	"github.com/milosgajdos/go-fusion/estimate"
	"github.com/milosgajdos/go-fusion/kalman/ukf"
	"github.com/milosgajdos/go-fusion/model"
	"github.com/milosgajdos/go-fusion/noise"
	"gonum.org/v1/gonum/mat"
)

// Option configures Tracker
type Option func(*Tracker)

// WithLogger sets tracker logger
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// seeder seeds CTRV state from a raw sensor reading
type seeder interface {
	Init(z mat.Vector) (*mat.VecDense, error)
}

// sensorModel is a measurement model which can also seed the state
type sensorModel interface {
	fusion.Observer
	seeder
}

// Result is the outcome of processing a single measurement
type Result struct {
	// Sensor is the sensor which produced the measurement
	Sensor fusion.Sensor
	// Timestamp is the measurement timestamp in microseconds
	Timestamp int64
	// Seeded is true if the measurement initialized the tracker
	Seeded bool
	// Skipped is true if the measurement was ignored because its sensor is disabled
	Skipped bool
	// Dt is the prediction time step in seconds
	Dt float64
	// NIS is normalized innovation squared of the update
	NIS float64
	// Estimate is the estimate after the measurement was processed
	Estimate fusion.Estimate
}

// Tracker tracks a single object from a stream of laser and radar measurements.
// It is not safe for concurrent use.
type Tracker struct {
	cfg     *Config
	filter  *ukf.UKF
	sensors map[fusion.Sensor]sensorModel
	enabled map[fusion.Sensor]bool
	p0      *mat.SymDense
	est     *estimate.Base
	ts      int64
	nis     map[fusion.Sensor]float64
	logger  *slog.Logger
}

// New creates new Tracker and returns it.
// If cfg is nil DefaultConfig is used. Tracker keeps its own copy of cfg.
// It returns error if the configuration is invalid.
func New(cfg *Config, opts ...Option) (*Tracker, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg = cfg.clone()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	v, err := cfg.variant()
	if err != nil {
		return nil, err
	}

	m, err := model.NewCTRV(v)
	if err != nil {
		return nil, err
	}

	q, err := noise.NewDiagonal(cfg.ProcessNoiseAccelStd, cfg.ProcessNoiseYawddStd)
	if err != nil {
		return nil, fmt.Errorf("invalid process noise: %w", err)
	}

	f, err := ukf.New(m, q, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create filter: %w", err)
	}

	rl, err := noise.NewDiagonal(cfg.LaserNoiseStdX, cfg.LaserNoiseStdY)
	if err != nil {
		return nil, fmt.Errorf("invalid laser noise: %w", err)
	}

	lidar, err := model.NewLidar(rl)
	if err != nil {
		return nil, err
	}

	rr, err := noise.NewDiagonal(cfg.RadarNoiseStdRange, cfg.RadarNoiseStdBearing, cfg.RadarNoiseStdRangeRate)
	if err != nil {
		return nil, fmt.Errorf("invalid radar noise: %w", err)
	}

	radar, err := model.NewRadar(rr)
	if err != nil {
		return nil, err
	}

	p0 := mat.NewSymDense(model.StateDim, nil)
	for i, v := range cfg.InitialCov {
		p0.SetSym(i, i, v)
	}

	t := &Tracker{
		cfg:    cfg,
		filter: f,
		sensors: map[fusion.Sensor]sensorModel{
			fusion.Laser: lidar,
			fusion.Radar: radar,
		},
		enabled: map[fusion.Sensor]bool{
			fusion.Laser: cfg.UseLaser,
			fusion.Radar: cfg.UseRadar,
		},
		p0:     p0,
		nis:    make(map[fusion.Sensor]float64),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t, nil
}

// ProcessMeasurement runs a single filter cycle for measurement m.
// The first valid measurement seeds the tracker regardless of which sensors are enabled.
// Afterwards measurements of disabled sensors are skipped; every other measurement
// predicts the state to the measurement time and corrects it with the measurement.
//
// On error the tracker stays usable:
//   - invalid measurement or time regression: nothing changes
//   - sigma point or prediction failure: state, covariance and clock are retained
//   - update failure: the prediction is kept and the clock advances to m.Timestamp
func (t *Tracker) ProcessMeasurement(m fusion.Measurement) (*Result, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	s := t.sensors[m.Sensor]

	if t.est == nil {
		return t.seed(s, m)
	}

	if !t.enabled[m.Sensor] {
		t.logger.Debug("measurement skipped", "sensor", m.Sensor, "timestamp", m.Timestamp)
		return &Result{
			Sensor:    m.Sensor,
			Timestamp: m.Timestamp,
			Skipped:   true,
			Estimate:  t.Estimate(),
		}, nil
	}

	if m.Timestamp < t.ts {
		return nil, fmt.Errorf("%w: measurement at %d precedes %d", fusion.ErrTimeRegression, m.Timestamp, t.ts)
	}

	dt := float64(m.Timestamp-t.ts) / 1e6

	pred, err := t.filter.Predict(t.est, dt)
	if err != nil {
		t.logger.Warn("prediction failed", "sensor", m.Sensor, "timestamp", m.Timestamp, "error", err)
		return nil, fmt.Errorf("prediction failed: %w", err)
	}

	corr, err := t.filter.Update(pred, s, m.Raw)
	if err != nil {
		t.est = pred.Base
		t.ts = m.Timestamp
		t.logger.Warn("update failed", "sensor", m.Sensor, "timestamp", m.Timestamp, "error", err)
		return nil, fmt.Errorf("%v update failed: %w", m.Sensor, err)
	}

	t.est = corr.Base
	t.ts = m.Timestamp
	t.nis[m.Sensor] = corr.NIS()

	t.logger.Debug("measurement processed", "sensor", m.Sensor, "timestamp", m.Timestamp, "dt", dt, "nis", corr.NIS())

	return &Result{
		Sensor:    m.Sensor,
		Timestamp: m.Timestamp,
		Dt:        dt,
		NIS:       corr.NIS(),
		Estimate:  t.Estimate(),
	}, nil
}

func (t *Tracker) seed(s sensorModel, m fusion.Measurement) (*Result, error) {
	x, err := s.Init(m.Raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fusion.ErrInvalidMeasurement, err)
	}

	ic := model.NewInitCond(x, t.p0)

	est, err := estimate.NewBaseWithCov(ic.State(), ic.Cov())
	if err != nil {
		return nil, fmt.Errorf("failed to seed tracker: %w", err)
	}

	t.est = est
	t.ts = m.Timestamp

	t.logger.Info("tracker initialized", "sensor", m.Sensor, "timestamp", m.Timestamp,
		"px", x.AtVec(0), "py", x.AtVec(1))

	return &Result{
		Sensor:    m.Sensor,
		Timestamp: m.Timestamp,
		Seeded:    true,
		Estimate:  t.Estimate(),
	}, nil
}

// Initialized returns true once the tracker has been seeded
func (t *Tracker) Initialized() bool {
	return t.est != nil
}

// Estimate returns a copy of the current estimate or nil if the tracker is not initialized
func (t *Tracker) Estimate() fusion.Estimate {
	if t.est == nil {
		return nil
	}

	est, _ := estimate.NewBaseWithCov(t.est.Val(), t.est.Cov())

	return est
}

// State returns current state mean [px, py, v, yaw, yaw_rate] or nil if the tracker is not initialized
func (t *Tracker) State() mat.Vector {
	if t.est == nil {
		return nil
	}

	return t.est.Val()
}

// Cov returns current state covariance or nil if the tracker is not initialized
func (t *Tracker) Cov() mat.Symmetric {
	if t.est == nil {
		return nil
	}

	return t.est.Cov()
}

// Timestamp returns the time of the last processed measurement in microseconds
func (t *Tracker) Timestamp() int64 {
	return t.ts
}

// NIS returns normalized innovation squared of the last update of sensor s.
// It returns false if no update of s has succeeded yet.
func (t *Tracker) NIS(s fusion.Sensor) (float64, bool) {
	nis, ok := t.nis[s]
	return nis, ok
}

// Config returns a copy of tracker configuration
func (t *Tracker) Config() *Config {
	return t.cfg.clone()
}

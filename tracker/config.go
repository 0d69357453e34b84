package tracker

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/milosgajdos/go-fusion/model"
	"gopkg.in/yaml.v3"
)

// Config configures the tracker.
// All noise values are standard deviations.
type Config struct {
	// UseLaser enables laser updates once the tracker is initialized
	UseLaser bool `yaml:"use_laser"`
	// UseRadar enables radar updates once the tracker is initialized
	UseRadar bool `yaml:"use_radar"`
	// ProcessNoiseAccelStd is longitudinal acceleration noise [m/s^2]
	ProcessNoiseAccelStd float64 `yaml:"process_noise_accel_std"`
	// ProcessNoiseYawddStd is yaw acceleration noise [rad/s^2]
	ProcessNoiseYawddStd float64 `yaml:"process_noise_yawdd_std"`
	// LaserNoiseStdX is laser noise of the x position [m]
	LaserNoiseStdX float64 `yaml:"laser_noise_std_x"`
	// LaserNoiseStdY is laser noise of the y position [m]
	LaserNoiseStdY float64 `yaml:"laser_noise_std_y"`
	// RadarNoiseStdRange is radar range noise [m]
	RadarNoiseStdRange float64 `yaml:"radar_noise_std_range"`
	// RadarNoiseStdBearing is radar bearing noise [rad]
	RadarNoiseStdBearing float64 `yaml:"radar_noise_std_bearing"`
	// RadarNoiseStdRangeRate is radar range rate noise [m/s]
	RadarNoiseStdRangeRate float64 `yaml:"radar_noise_std_range_rate"`
	// InitialCov is the diagonal of the state covariance set when the tracker is seeded
	InitialCov []float64 `yaml:"initial_cov"`
	// Variant is the CTRV curved path variant: "textbook" or "reference"
	Variant string `yaml:"ctrv_variant"`
}

// DefaultConfig returns default tracker configuration
func DefaultConfig() *Config {
	return &Config{
		UseLaser:               true,
		UseRadar:               true,
		ProcessNoiseAccelStd:   2.0,
		ProcessNoiseYawddStd:   0.4,
		LaserNoiseStdX:         0.15,
		LaserNoiseStdY:         0.15,
		RadarNoiseStdRange:     0.3,
		RadarNoiseStdBearing:   0.03,
		RadarNoiseStdRangeRate: 0.3,
		InitialCov:             []float64{0.15, 0.15, 1, 1, 1},
		Variant:                "textbook",
	}
}

// LoadConfig reads YAML configuration from path over the defaults and validates it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig decodes YAML configuration over the defaults and validates it.
// Unknown keys are rejected.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration values.
// It returns error if any noise value or initial covariance entry is not positive
// or if the CTRV variant is unknown.
func (c *Config) Validate() error {
	for _, v := range []struct {
		name string
		val  float64
	}{
		{"process_noise_accel_std", c.ProcessNoiseAccelStd},
		{"process_noise_yawdd_std", c.ProcessNoiseYawddStd},
		{"laser_noise_std_x", c.LaserNoiseStdX},
		{"laser_noise_std_y", c.LaserNoiseStdY},
		{"radar_noise_std_range", c.RadarNoiseStdRange},
		{"radar_noise_std_bearing", c.RadarNoiseStdBearing},
		{"radar_noise_std_range_rate", c.RadarNoiseStdRangeRate},
	} {
		if !(v.val > 0) {
			return fmt.Errorf("%s must be positive, got %v", v.name, v.val)
		}
	}

	if len(c.InitialCov) != model.StateDim {
		return fmt.Errorf("initial_cov must have %d values, got %d", model.StateDim, len(c.InitialCov))
	}
	for i, v := range c.InitialCov {
		if !(v > 0) {
			return fmt.Errorf("initial_cov[%d] must be positive, got %v", i, v)
		}
	}

	if _, err := c.variant(); err != nil {
		return err
	}

	return nil
}

// Marshal encodes the configuration to YAML
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func (c *Config) variant() (model.Variant, error) {
	switch c.Variant {
	case "", "textbook":
		return model.CurvedTextbook, nil
	case "reference":
		return model.CurvedReference, nil
	}

	return 0, fmt.Errorf("unknown ctrv_variant: %q", c.Variant)
}

func (c *Config) clone() *Config {
	cc := *c
	cc.InitialCov = append([]float64(nil), c.InitialCov...)

	return &cc
}

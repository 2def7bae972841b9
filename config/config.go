package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/milosgajdos/go-localize/matrix"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDt       = 0.1
	DefaultTicks    = 500
	DefaultVelocity = 1.0
	DefaultYawRate  = 0.1
	DefaultChi      = 0.3
)

// ErrInvalid is returned when configuration fails validation
var ErrInvalid = errors.New("invalid config")

// Config is localization simulation configuration
type Config struct {
	Dt      float64       `yaml:"dt"`
	Ticks   int           `yaml:"ticks"`
	Seed    uint64        `yaml:"seed"`
	Control ControlConfig `yaml:"control"`
	Filter  FilterConfig  `yaml:"filter"`
	Noise   NoiseConfig   `yaml:"noise"`
	Chi     float64       `yaml:"chi"`
}

// ControlConfig is the constant control input
type ControlConfig struct {
	Velocity float64 `yaml:"velocity"`
	YawRate  float64 `yaml:"yaw_rate"`
}

// FilterConfig holds the EKF trust model: diagonals of Q and R
type FilterConfig struct {
	Q []float64 `yaml:"q"`
	R []float64 `yaml:"r"`
}

// NoiseConfig holds diagonals of the covariances used to corrupt simulated signals
type NoiseConfig struct {
	GPS   []float64 `yaml:"gps"`
	Input []float64 `yaml:"input"`
}

func deg2rad(d float64) float64 {
	return d * math.Pi / 180.0
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Dt:    DefaultDt,
		Ticks: DefaultTicks,
		Control: ControlConfig{
			Velocity: DefaultVelocity,
			YawRate:  DefaultYawRate,
		},
		Filter: FilterConfig{
			// yaw variance is deg2rad(1), not squared
			Q: []float64{0.1 * 0.1, 0.1 * 0.1, deg2rad(1.0), 1.0},
			R: []float64{1.0, 1.0},
		},
		Noise: NoiseConfig{
			GPS:   []float64{0.5 * 0.5, 0.5 * 0.5},
			Input: []float64{1.0, deg2rad(30.0) * deg2rad(30.0)},
		},
		Chi: DefaultChi,
	}
}

// Load reads YAML configuration from path on top of the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg to path as YAML
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks cfg and returns error wrapping ErrInvalid if it's not usable.
func (c *Config) Validate() error {
	if c.Dt <= 0 || math.IsNaN(c.Dt) || math.IsInf(c.Dt, 0) {
		return fmt.Errorf("%w: dt must be positive: %v", ErrInvalid, c.Dt)
	}

	if c.Ticks <= 0 {
		return fmt.Errorf("%w: ticks must be positive: %d", ErrInvalid, c.Ticks)
	}

	if c.Chi <= 0 {
		return fmt.Errorf("%w: chi must be positive: %v", ErrInvalid, c.Chi)
	}

	for _, d := range []struct {
		name string
		vals []float64
		size int
	}{
		{"filter.q", c.Filter.Q, 4},
		{"filter.r", c.Filter.R, 2},
		{"noise.gps", c.Noise.GPS, 2},
		{"noise.input", c.Noise.Input, 2},
	} {
		if err := checkDiag(d.vals, d.size); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, d.name, err)
		}
	}

	return nil
}

func checkDiag(vals []float64, size int) error {
	if len(vals) != size {
		return fmt.Errorf("expected %d values, got %d", size, len(vals))
	}

	for i, v := range vals {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("invalid variance %v at %d", v, i)
		}
	}

	return nil
}

// Q returns process noise covariance
func (c *Config) Q() *mat.SymDense { return matrix.Diag(c.Filter.Q...) }

// R returns measurement noise covariance
func (c *Config) R() *mat.SymDense { return matrix.Diag(c.Filter.R...) }

// GPSNoise returns covariance of the noise added to simulated position fixes
func (c *Config) GPSNoise() *mat.SymDense { return matrix.Diag(c.Noise.GPS...) }

// InputNoise returns covariance of the noise added to simulated control inputs
func (c *Config) InputNoise() *mat.SymDense { return matrix.Diag(c.Noise.Input...) }

// ZeroNoise returns a copy of cfg with no simulated GPS and input noise
func (c *Config) ZeroNoise() *Config {
	z := *c
	z.Filter.Q = append([]float64(nil), c.Filter.Q...)
	z.Filter.R = append([]float64(nil), c.Filter.R...)
	z.Noise = NoiseConfig{
		GPS:   make([]float64, 2),
		Input: make([]float64, 2),
	}

	return &z
}

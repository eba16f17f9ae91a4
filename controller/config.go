package controller

import (
	"fmt"
	"time"
)

// ForceConfig maps the force sensor's raw reading to velocity and level.
type ForceConfig struct {
	// Activation is the raw reading at or below which DefaultFloor applies.
	Activation int
	// Saturation is the raw reading at or above which Max applies.
	Saturation   int
	DefaultFloor float64
	Max          float64

	// LowCutoff and HighCutoff split raw readings into LOW, MID and HIGH.
	LowCutoff  int
	HighCutoff int
}

// BendConfig holds the flex sensor's Schmitt trigger thresholds.
type BendConfig struct {
	On  int
	Off int
}

// InertialConfig bounds the summed absolute angular rate before it is
// normalized to a vibrato amount.
type InertialConfig struct {
	NoiseFloor float64
	Ceiling    float64
	// Smoothing is the weight kept from the previous value.
	Smoothing float64
}

// Config is the controller's threshold and timing configuration. It is
// validated once at startup.
type Config struct {
	NumSwitches int

	SwitchPeriod   time.Duration
	DebounceDelay  time.Duration
	ForcePeriod    time.Duration
	BendPeriod     time.Duration
	InertialPeriod time.Duration

	Force    ForceConfig
	Bend     BendConfig
	Inertial InertialConfig
}

// DefaultConfig returns thresholds for a 12-bit ADC and a gyro reporting rad/s.
func DefaultConfig() Config {
	return Config{
		NumSwitches:    8,
		SwitchPeriod:   5 * time.Millisecond,
		DebounceDelay:  15 * time.Millisecond,
		ForcePeriod:    20 * time.Millisecond,
		BendPeriod:     20 * time.Millisecond,
		InertialPeriod: 20 * time.Millisecond,
		Force: ForceConfig{
			Activation:   200,
			Saturation:   3500,
			DefaultFloor: 0.5,
			Max:          1.0,
			LowCutoff:    1200,
			HighCutoff:   2800,
		},
		Bend: BendConfig{
			On:  2300,
			Off: 2000,
		},
		Inertial: InertialConfig{
			NoiseFloor: 0.15,
			Ceiling:    6.0,
			Smoothing:  0.75,
		},
	}
}

// Validate checks ranges and threshold ordering.
func (c Config) Validate() error {
	if c.NumSwitches < 1 || c.NumSwitches > 16 {
		return fmt.Errorf("num_switches must be in [1,16]")
	}
	if c.SwitchPeriod <= 0 || c.ForcePeriod <= 0 || c.BendPeriod <= 0 || c.InertialPeriod <= 0 {
		return fmt.Errorf("poll periods must be > 0")
	}
	if c.DebounceDelay < 0 {
		return fmt.Errorf("debounce_delay must be >= 0")
	}

	f := c.Force
	if f.Saturation <= f.Activation {
		return fmt.Errorf("force saturation (%d) must be > activation (%d)", f.Saturation, f.Activation)
	}
	if f.DefaultFloor < 0 || f.DefaultFloor > 1 {
		return fmt.Errorf("force default_floor must be in [0,1]")
	}
	if f.Max <= 0 || f.Max > 1 {
		return fmt.Errorf("force max must be in (0,1]")
	}
	if f.HighCutoff <= f.LowCutoff {
		return fmt.Errorf("force high_cutoff (%d) must be > low_cutoff (%d)", f.HighCutoff, f.LowCutoff)
	}

	if c.Bend.On <= c.Bend.Off {
		return fmt.Errorf("bend on threshold (%d) must be > off threshold (%d)", c.Bend.On, c.Bend.Off)
	}

	in := c.Inertial
	if in.NoiseFloor < 0 {
		return fmt.Errorf("inertial noise_floor must be >= 0")
	}
	if in.Ceiling <= in.NoiseFloor {
		return fmt.Errorf("inertial ceiling must be > noise_floor")
	}
	if in.Smoothing < 0 || in.Smoothing >= 1 {
		return fmt.Errorf("inertial smoothing must be in [0,1)")
	}
	return nil
}

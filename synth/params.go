package synth

import (
	"fmt"
	"time"
)

// Params holds engine tuning.
type Params struct {
	// Sustained voice envelope.
	AttackTime  time.Duration
	ReleaseTime time.Duration
	StopDelay   time.Duration

	// One-shot envelope.
	OneShotAttack  time.Duration
	OneShotRelease time.Duration

	// Gain at velocity 1. MinVelocity floors quiet triggers.
	PeakGain    float64
	MinVelocity float64

	// Fraction of a range recording reachable by the one-shot seek.
	SeekFraction float64

	VibratoRateHz     float64
	VibratoDepthCents float64
	VibratoPeriod     time.Duration

	OutputGain   float32
	OutputCutoff float32
}

// NewDefaultParams creates default parameters.
func NewDefaultParams() *Params {
	return &Params{
		AttackTime:        20 * time.Millisecond,
		ReleaseTime:       180 * time.Millisecond,
		StopDelay:         220 * time.Millisecond,
		OneShotAttack:     5 * time.Millisecond,
		OneShotRelease:    120 * time.Millisecond,
		PeakGain:          0.35,
		MinVelocity:       0.05,
		SeekFraction:      0.6,
		VibratoRateHz:     5.5,
		VibratoDepthCents: 35,
		VibratoPeriod:     20 * time.Millisecond,
		OutputGain:        1.0,
		OutputCutoff:      14000,
	}
}

// Validate checks parameter ranges.
func (p *Params) Validate() error {
	if p == nil {
		return fmt.Errorf("nil params")
	}
	if p.AttackTime < 0 || p.OneShotAttack < 0 || p.OneShotRelease < 0 {
		return fmt.Errorf("envelope times must be >= 0")
	}
	if p.ReleaseTime <= 0 {
		return fmt.Errorf("release_time must be > 0")
	}
	if p.StopDelay < p.ReleaseTime {
		return fmt.Errorf("stop_delay must be >= release_time")
	}
	if p.PeakGain <= 0 || p.PeakGain > 1 {
		return fmt.Errorf("peak_gain must be in (0,1]")
	}
	if p.MinVelocity < 0 || p.MinVelocity > 1 {
		return fmt.Errorf("min_velocity must be in [0,1]")
	}
	if p.SeekFraction < 0 || p.SeekFraction > 1 {
		return fmt.Errorf("seek_fraction must be in [0,1]")
	}
	if p.VibratoRateHz < 0 || p.VibratoDepthCents < 0 {
		return fmt.Errorf("vibrato rate and depth must be >= 0")
	}
	if p.VibratoPeriod <= 0 {
		return fmt.Errorf("vibrato_period must be > 0")
	}
	if p.OutputGain <= 0 {
		return fmt.Errorf("output_gain must be > 0")
	}
	return nil
}

func (p *Params) gainFor(velocity float64) float64 {
	return p.PeakGain * clamp(velocity, p.MinVelocity, 1)
}

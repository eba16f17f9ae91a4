package synth

import (
	"math"
	"time"
)

// Vibrato is a sine LFO producing a pitch ratio.
type Vibrato struct {
	rateHz     float64
	depthCents float64
	amount     float64
	phase      float64
	ratio      float64
}

// NewVibrato creates a modulator with amount 0.
func NewVibrato(rateHz, depthCents float64) *Vibrato {
	return &Vibrato{rateHz: rateHz, depthCents: depthCents, ratio: 1}
}

// SetAmount sets the depth scale, clamped to [0,1]. NaN counts as 0.
func (v *Vibrato) SetAmount(x float64) {
	if math.IsNaN(x) {
		x = 0
	}
	v.amount = clamp(x, 0, 1)
}

func (v *Vibrato) Amount() float64 { return v.amount }

// Phase returns the LFO phase in radians, wrapped to [0, 2π).
func (v *Vibrato) Phase() float64 { return v.phase }

// Ratio returns the ratio computed by the last Step.
func (v *Vibrato) Ratio() float64 { return v.ratio }

// Step advances the phase by dt and returns 2^(cents/1200). The ratio is
// exactly 1 whenever amount is 0.
func (v *Vibrato) Step(dt time.Duration) float64 {
	v.phase += 2 * math.Pi * v.rateHz * dt.Seconds()
	v.phase = math.Mod(v.phase, 2*math.Pi)
	if v.amount == 0 {
		v.ratio = 1
		return 1
	}
	cents := v.depthCents * v.amount * math.Sin(v.phase)
	v.ratio = math.Exp2(cents / 1200)
	return v.ratio
}

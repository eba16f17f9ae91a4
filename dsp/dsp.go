// Package dsp holds the small filters used on the engine's mixed output and
// the interpolator used for sample playback.
package dsp

import (
	"math"

	dspcore "github.com/cwbudde/algo-dsp/dsp/core"
)

// Biquad implements a second-order IIR filter (no heap allocations in Process)
type Biquad struct {
	b0, b1, b2 float32
	a1, a2     float32

	x1, x2 float32
	y1, y2 float32
}

// NewBiquad creates a new biquad filter with the given coefficients
func NewBiquad(b0, b1, b2, a1, a2 float32) *Biquad {
	return &Biquad{b0: b0, b1: b1, b2: b2, a1: a1, a2: a2}
}

// Process processes one sample through the biquad filter
func (b *Biquad) Process(input float32) float32 {
	// Direct Form I
	output := b.b0*input + b.b1*b.x1 + b.b2*b.x2 - b.a1*b.y1 - b.a2*b.y2
	output = float32(dspcore.FlushDenormals(float64(output)))

	b.x2 = b.x1
	b.x1 = input
	b.y2 = b.y1
	b.y1 = output

	return output
}

// Reset clears the filter state
func (b *Biquad) Reset() {
	b.x1, b.x2 = 0, 0
	b.y1, b.y2 = 0, 0
}

// NewLowpass creates an RBJ lowpass biquad.
func NewLowpass(cutoff, sampleRate, q float32) *Biquad {
	w0 := 2.0 * math.Pi * float64(cutoff) / float64(sampleRate)
	alpha := math.Sin(w0) / (2.0 * float64(q))
	cosw0 := math.Cos(w0)

	b0 := (1.0 - cosw0) / 2.0
	b1 := 1.0 - cosw0
	b2 := (1.0 - cosw0) / 2.0
	a0 := 1.0 + alpha
	a1 := -2.0 * cosw0
	a2 := 1.0 - alpha

	return NewBiquad(
		float32(b0/a0),
		float32(b1/a0),
		float32(b2/a0),
		float32(a1/a0),
		float32(a2/a0),
	)
}

// DCBlocker is a one-pole highpass removing offset from looped samples.
type DCBlocker struct {
	r      float32
	x1, y1 float32
}

// NewDCBlocker returns a blocker with a corner around 10 Hz.
func NewDCBlocker(sampleRate float32) *DCBlocker {
	r := float32(1.0 - 2.0*math.Pi*10.0/float64(sampleRate))
	if r < 0.9 {
		r = 0.9
	}
	return &DCBlocker{r: r}
}

// Process filters one sample.
func (d *DCBlocker) Process(x float32) float32 {
	y := x - d.x1 + d.r*d.y1
	y = float32(dspcore.FlushDenormals(float64(y)))
	d.x1 = x
	d.y1 = y
	return y
}

// SoftClip saturates smoothly toward +-1.
func SoftClip(x float32) float32 {
	return float32(math.Tanh(float64(x)))
}

// OutputStage conditions the mono voice mix before it reaches the device.
type OutputStage struct {
	gain    float32
	dc      *DCBlocker
	lowpass *Biquad
}

// NewOutputStage builds the output chain. cutoff <= 0 disables the lowpass.
func NewOutputStage(sampleRate int, gain float32, cutoff float32) *OutputStage {
	s := &OutputStage{
		gain: gain,
		dc:   NewDCBlocker(float32(sampleRate)),
	}
	if cutoff > 0 && cutoff < 0.45*float32(sampleRate) {
		s.lowpass = NewLowpass(cutoff, float32(sampleRate), 0.707)
	}
	return s
}

// Process filters buf in place.
func (s *OutputStage) Process(buf []float32) {
	for i, x := range buf {
		y := s.dc.Process(x)
		if s.lowpass != nil {
			y = s.lowpass.Process(y)
		}
		buf[i] = SoftClip(y * s.gain)
	}
}

// Cubic performs 4-point 3rd-order Lagrange interpolation between y1 and y2.
func Cubic(y0, y1, y2, y3, frac float32) float32 {
	d := frac
	c0 := y1
	c1 := y2 - y0/3.0 - y1/2.0 - y3/6.0
	c2 := y0/2.0 - y1 + y2/2.0
	c3 := y1/2.0 - y2/2.0 + (y3-y0)/6.0
	return c0 + d*(c1+d*(c2+d*c3))
}

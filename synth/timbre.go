package synth

import (
	"fmt"
	"math"
	"time"

	"github.com/cwbudde/algo-jam/sampler"
)

// Timbre is how an instrument produces sound. The set is closed:
// Oscillator, SingleSampleSet and RangeSampleSet.
type Timbre interface {
	Name() string
	// Sustains reports whether the timbre is played as tracked sustained
	// voices. Non-sustaining timbres are percussive and only fire one-shots.
	Sustains() bool

	sustained(pitch int, when time.Duration) (*unit, error)
	oneShot(pitch int, when, duration time.Duration, p *Params) (*unit, error)
}

// Oscillator is a synthetic timbre.
type Oscillator struct {
	Label    string
	Waveform Waveform
}

func (o Oscillator) Name() string {
	if o.Label != "" {
		return o.Label
	}
	return o.Waveform.String()
}

func (o Oscillator) Sustains() bool { return true }

func (o Oscillator) sustained(pitch int, when time.Duration) (*unit, error) {
	return newOscillatorUnit(o.Waveform, PitchToFreq(pitch), when), nil
}

func (o Oscillator) oneShot(pitch int, when, duration time.Duration, _ *Params) (*unit, error) {
	return newOscillatorUnit(o.Waveform, PitchToFreq(pitch), when), nil
}

// SingleSampleSet plays the nearest single-note recording, looped while held.
type SingleSampleSet struct {
	Label   string
	Library *sampler.Library
}

func (s SingleSampleSet) Name() string {
	if s.Label != "" {
		return s.Label
	}
	return s.Library.Name()
}

func (s SingleSampleSet) Sustains() bool { return true }

func (s SingleSampleSet) sustained(pitch int, when time.Duration) (*unit, error) {
	smp, ok := s.Library.NearestSingle(pitch)
	if !ok {
		return nil, fmt.Errorf("%s pitch %d: %w", s.Name(), pitch, sampler.ErrNoMatch)
	}
	u := newSampleUnit(smp, smp.PlaybackRate(pitch), when)
	u.loop = true
	return u, nil
}

func (s SingleSampleSet) oneShot(pitch int, when, duration time.Duration, _ *Params) (*unit, error) {
	smp, ok := s.Library.NearestSingle(pitch)
	if !ok {
		return nil, fmt.Errorf("%s pitch %d: %w", s.Name(), pitch, sampler.ErrNoMatch)
	}
	return newSampleUnit(smp, smp.PlaybackRate(pitch), when), nil
}

// RangeSampleSet plays recordings that each cover a pitch range. It is
// percussive: one-shots seek into the take proportionally to the target's
// place in the range and play a bounded slice.
type RangeSampleSet struct {
	Label   string
	Library *sampler.Library
}

func (r RangeSampleSet) Name() string {
	if r.Label != "" {
		return r.Label
	}
	return r.Library.Name()
}

func (r RangeSampleSet) Sustains() bool { return false }

func (r RangeSampleSet) sustained(pitch int, when time.Duration) (*unit, error) {
	smp, ok := r.Library.BestRange(pitch)
	if !ok {
		return nil, fmt.Errorf("%s pitch %d: %w", r.Name(), pitch, sampler.ErrNoMatch)
	}
	u := newSampleUnit(smp, smp.PlaybackRate(pitch), when)
	u.loop = true
	return u, nil
}

func (r RangeSampleSet) oneShot(pitch int, when, duration time.Duration, p *Params) (*unit, error) {
	smp, ok := r.Library.BestRange(pitch)
	if !ok {
		return nil, fmt.Errorf("%s pitch %d: %w", r.Name(), pitch, sampler.ErrNoMatch)
	}
	rate := smp.PlaybackRate(pitch)
	offset := SeekOffset(smp, pitch, p.SeekFraction)

	u := newSampleUnit(smp, rate, when)
	rateHz := float64(smp.Buffer.SampleRate)
	u.pos = offset * rateHz
	slice := duration.Seconds() * rate * rateHz
	if end := u.pos + slice; end < u.end {
		u.end = end
	}
	return u, nil
}

// SeekOffset is the start offset in seconds into a range recording for
// target: the target's fractional position within the range, scaled by
// seekFraction of the buffer duration.
func SeekOffset(s sampler.Sample, target int, seekFraction float64) float64 {
	span := s.End - s.Start
	if span < 1 {
		span = 1
	}
	frac := clamp(float64(target-s.Start)/float64(span), 0, 1)
	return frac * (s.Buffer.Duration() * seekFraction)
}

// PitchToFreq converts a pitch to Hz, 69 = A4 = 440 Hz.
func PitchToFreq(pitch int) float64 {
	return 440.0 * math.Pow(2, float64(pitch-69)/12.0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

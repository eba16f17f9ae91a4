package synth

import (
	"math"
	"time"

	"github.com/cwbudde/algo-jam/dsp"
	"github.com/cwbudde/algo-jam/sampler"
)

// Waveform selects the oscillator shape.
type Waveform int

const (
	Sine Waveform = iota
	Triangle
	Sawtooth
	Square
)

func (w Waveform) String() string {
	switch w {
	case Triangle:
		return "triangle"
	case Sawtooth:
		return "sawtooth"
	case Square:
		return "square"
	default:
		return "sine"
	}
}

// UnitKind tells how a unit's pitch is modulated.
type UnitKind int

const (
	KindOscillator UnitKind = iota
	KindSample
)

func (k UnitKind) String() string {
	if k == KindSample {
		return "sample"
	}
	return "oscillator"
}

// never is the stop time of a unit that runs until released.
const never = time.Duration(math.MaxInt64)

// unit is one sounding source: an oscillator or a sample player with its own
// gain automation and absolute start/stop times.
type unit struct {
	kind UnitKind

	// oscillator
	waveform Waveform
	phase    float64

	// sample player
	buf      *sampler.Buffer
	pos      float64
	loop     bool
	loopFrom float64
	end      float64
	source   string

	// base is the frequency in Hz for oscillators and the playback rate for
	// samples. mod is the vibrato ratio applied on top.
	base float64
	mod  float64

	gain  envelope
	start time.Duration
	stop  time.Duration
	done  bool

	heapIndex int
}

func newOscillatorUnit(w Waveform, freq float64, start time.Duration) *unit {
	return &unit{
		kind:      KindOscillator,
		waveform:  w,
		base:      freq,
		mod:       1,
		start:     start,
		stop:      never,
		heapIndex: -1,
	}
}

func newSampleUnit(s sampler.Sample, rate float64, start time.Duration) *unit {
	return &unit{
		kind:      KindSample,
		buf:       s.Buffer,
		end:       float64(len(s.Buffer.Data)),
		source:    s.Source,
		base:      rate,
		mod:       1,
		start:     start,
		stop:      never,
		heapIndex: -1,
	}
}

// current returns the modulated frequency (oscillator) or rate (sample).
func (u *unit) current() float64 {
	return u.base * u.mod
}

// render mixes the unit into out. t0 is the time of out[0].
func (u *unit) render(out []float32, t0 time.Duration, sampleRate int) {
	if u.done {
		return
	}
	frame := float64(time.Second) / float64(sampleRate)
	for i := range out {
		t := t0 + time.Duration(float64(i)*frame)
		if t < u.start {
			continue
		}
		if t >= u.stop {
			return
		}
		g := u.gain.valueAt(t)
		var s float32
		switch u.kind {
		case KindSample:
			var ok bool
			s, ok = u.nextSample(sampleRate)
			if !ok {
				u.done = true
				return
			}
		default:
			s = u.nextOscillator(sampleRate)
		}
		out[i] += s * float32(g)
	}
}

func (u *unit) nextOscillator(sampleRate int) float32 {
	var v float64
	switch u.waveform {
	case Triangle:
		if u.phase < 0.5 {
			v = 4.0*u.phase - 1.0
		} else {
			v = 3.0 - 4.0*u.phase
		}
	case Sawtooth:
		v = 2.0*u.phase - 1.0
	case Square:
		if u.phase < 0.5 {
			v = 1.0
		} else {
			v = -1.0
		}
	default:
		v = math.Sin(2 * math.Pi * u.phase)
	}
	u.phase += u.current() / float64(sampleRate)
	u.phase -= math.Floor(u.phase)
	return float32(v)
}

func (u *unit) nextSample(sampleRate int) (float32, bool) {
	if u.pos >= u.end {
		if !u.loop {
			return 0, false
		}
		span := u.end - u.loopFrom
		if span <= 0 {
			return 0, false
		}
		u.pos = u.loopFrom + math.Mod(u.pos-u.loopFrom, span)
	}
	data := u.buf.Data
	i := int(u.pos)
	frac := float32(u.pos - float64(i))
	s := dsp.Cubic(at(data, i-1), at(data, i), at(data, i+1), at(data, i+2), frac)
	u.pos += u.current() * float64(u.buf.SampleRate) / float64(sampleRate)
	return s, true
}

func at(data []float32, i int) float32 {
	if i < 0 || i >= len(data) {
		return 0
	}
	return data[i]
}

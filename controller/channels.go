package controller

import "math"

// SwitchBank remembers the last level of each switch. Switches are pulled
// up: a press reads false (LOW).
type SwitchBank struct {
	last []bool
}

// NewSwitchBank creates a bank of n released switches.
func NewSwitchBank(n int) *SwitchBank {
	last := make([]bool, n)
	for i := range last {
		last[i] = true
	}
	return &SwitchBank{last: last}
}

// Scan compares levels against the previous scan. HIGH to LOW emits NoteOn
// with velocity, LOW to HIGH emits NoteOff. Degrees are 1-based switch
// indices. Levels beyond the bank size are ignored.
func (b *SwitchBank) Scan(levels []bool, velocity float64) []Event {
	var out []Event
	for i, high := range levels {
		if i >= len(b.last) {
			break
		}
		prev := b.last[i]
		b.last[i] = high
		switch {
		case prev && !high:
			out = append(out, Event{Type: NoteOn, Degree: i + 1, Velocity: velocity})
		case !prev && high:
			out = append(out, Event{Type: NoteOff, Degree: i + 1})
		}
	}
	return out
}

// Pressed returns the degrees currently held down.
func (b *SwitchBank) Pressed() []int {
	var out []int
	for i, high := range b.last {
		if !high {
			out = append(out, i+1)
		}
	}
	return out
}

// ForceChannel turns force readings into velocity and a level bucket.
type ForceChannel struct {
	cfg   ForceConfig
	level Level
}

// NewForceChannel starts in the LOW bucket.
func NewForceChannel(cfg ForceConfig) *ForceChannel {
	return &ForceChannel{cfg: cfg, level: Low}
}

// Velocity maps raw to [0,1]. At or below Activation the reading is treated
// as no pressure and DefaultFloor applies.
func (f *ForceChannel) Velocity(raw int) float64 {
	c := f.cfg
	var v float64
	switch {
	case raw <= c.Activation:
		v = c.DefaultFloor
	case raw >= c.Saturation:
		v = c.Max
	default:
		frac := float64(raw-c.Activation) / float64(c.Saturation-c.Activation)
		v = c.DefaultFloor + (c.Max-c.DefaultFloor)*frac
	}
	return clamp(v, 0, 1)
}

// Bucket classifies raw without changing state.
func (f *ForceChannel) Bucket(raw int) Level {
	switch {
	case raw >= f.cfg.HighCutoff:
		return High
	case raw >= f.cfg.LowCutoff:
		return Mid
	default:
		return Low
	}
}

// Update returns the velocity for raw, the bucket, and whether the bucket
// differs from the previous update.
func (f *ForceChannel) Update(raw int) (velocity float64, level Level, changed bool) {
	level = f.Bucket(raw)
	changed = level != f.level
	f.level = level
	return f.Velocity(raw), level, changed
}

// Level returns the bucket of the last update.
func (f *ForceChannel) Level() Level { return f.level }

// SchmittTrigger is a two-state machine with hysteresis.
type SchmittTrigger struct {
	On  int
	Off int

	triggered bool
}

// NewSchmittTrigger creates an armed trigger. on must exceed off.
func NewSchmittTrigger(on, off int) *SchmittTrigger {
	return &SchmittTrigger{On: on, Off: off}
}

// Update feeds one reading and reports whether it fired. It fires on the
// armed to triggered transition (raw >= On) and rearms only once raw drops
// to Off or below.
func (s *SchmittTrigger) Update(raw int) bool {
	if s.triggered {
		if raw <= s.Off {
			s.triggered = false
		}
		return false
	}
	if raw >= s.On {
		s.triggered = true
		return true
	}
	return false
}

// Triggered reports whether the trigger is waiting to rearm.
func (s *SchmittTrigger) Triggered() bool { return s.triggered }

// Armed reports whether the next crossing above On will fire.
func (s *SchmittTrigger) Armed() bool { return !s.triggered }

// InertialChannel smooths gyro magnitude into a vibrato amount.
type InertialChannel struct {
	cfg      InertialConfig
	smoothed float64
}

func NewInertialChannel(cfg InertialConfig) *InertialChannel {
	return &InertialChannel{cfg: cfg}
}

// Update folds one gyro sample into the smoothed amount and returns it.
func (c *InertialChannel) Update(gx, gy, gz float64) float64 {
	mag := math.Abs(gx) + math.Abs(gy) + math.Abs(gz)
	if math.IsNaN(mag) {
		mag = 0
	}
	mag = clamp(mag, c.cfg.NoiseFloor, c.cfg.Ceiling)
	norm := (mag - c.cfg.NoiseFloor) / (c.cfg.Ceiling - c.cfg.NoiseFloor)
	k := c.cfg.Smoothing
	c.smoothed = clamp(k*c.smoothed+(1-k)*norm, 0, 1)
	return c.smoothed
}

// Amount returns the current smoothed value.
func (c *InertialChannel) Amount() float64 { return c.smoothed }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

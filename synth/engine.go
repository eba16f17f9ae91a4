// Package synth is the voice engine: it owns the table of sustained voices,
// the untracked one-shots, the vibrato modulator and the output mix.
package synth

import (
	"container/heap"
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cwbudde/algo-jam/dsp"
)

// Voice is one logical sustained sound made of one unit per pitch.
type Voice struct {
	ID      string
	Timbre  Timbre
	Pitches []int
	Started time.Duration
	units   []*unit
}

// VoiceInfo is a read-only snapshot of a voice.
type VoiceInfo struct {
	ID      string
	Timbre  string
	Pitches []int
	Units   []UnitInfo
}

// UnitInfo is a read-only snapshot of one sounding unit.
type UnitInfo struct {
	Kind UnitKind
	// Base is the unmodulated frequency (Hz) or playback rate.
	Base float64
	// Current includes the vibrato ratio.
	Current float64
	Source  string
	Start   time.Duration
	// Stop is when the unit is freed, zero while it runs until released.
	Stop time.Duration
}

func (u *unit) info() UnitInfo {
	stop := u.stop
	if stop == never {
		stop = 0
	}
	return UnitInfo{Kind: u.kind, Base: u.base, Current: u.current(), Source: u.source, Start: u.start, Stop: stop}
}

// stopQueue orders units by absolute stop time.
type stopQueue []*unit

func (q stopQueue) Len() int           { return len(q) }
func (q stopQueue) Less(i, j int) bool { return q[i].stop < q[j].stop }
func (q stopQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].heapIndex = i
	q[j].heapIndex = j
}
func (q *stopQueue) Push(x any) {
	u := x.(*unit)
	u.heapIndex = len(*q)
	*q = append(*q, u)
}
func (q *stopQueue) Pop() any {
	old := *q
	n := len(old)
	u := old[n-1]
	old[n-1] = nil
	u.heapIndex = -1
	*q = old[:n-1]
	return u
}

// Engine is the explicit context owning all mutable audio state. All
// scheduling calls take an absolute time on the engine's clock.
type Engine struct {
	mu sync.Mutex

	sampleRate int
	params     *Params
	clock      Clock
	logger     *slog.Logger

	voices  map[string]*Voice
	units   []*unit
	stops   stopQueue
	vibrato *Vibrato

	out      *dsp.OutputStage
	rendered int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the timeline. The default is a SampleClock advanced by Process.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the logger. nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an engine rendering at sampleRate.
func NewEngine(sampleRate int, params *Params, opts ...Option) *Engine {
	if params == nil {
		params = NewDefaultParams()
	}
	e := &Engine{
		sampleRate: sampleRate,
		params:     params,
		logger:     slog.Default(),
		voices:     make(map[string]*Voice),
		vibrato:    NewVibrato(params.VibratoRateHz, params.VibratoDepthCents),
		out:        dsp.NewOutputStage(sampleRate, params.OutputGain, params.OutputCutoff),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.clock == nil {
		e.clock = NewSampleClock(sampleRate)
	}
	return e
}

// SampleRate returns the render rate.
func (e *Engine) SampleRate() int { return e.sampleRate }

// Params returns the engine parameters. Callers must not mutate them.
func (e *Engine) Params() *Params { return e.params }

// Now returns the current time on the engine's clock.
func (e *Engine) Now() time.Duration { return e.clock.Now() }

// StartSustained starts a tracked voice with one unit per pitch. It is a
// no-op returning false when id is already sounding. Units whose source
// cannot be built are skipped without affecting the others.
func (e *Engine) StartSustained(id string, pitches []int, timbre Timbre, velocity float64, when time.Duration) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.voices[id]; ok {
		e.logger.Debug("voice already sounding", "id", id)
		return false
	}

	target := e.params.gainFor(velocity)
	v := &Voice{
		ID:      id,
		Timbre:  timbre,
		Pitches: append([]int(nil), pitches...),
		Started: when,
		units:   make([]*unit, 0, len(pitches)),
	}
	for _, p := range pitches {
		u, err := timbre.sustained(p, when)
		if err != nil {
			e.logger.Debug("unit muted", "id", id, "pitch", p, "err", err)
			continue
		}
		u.mod = e.vibrato.Ratio()
		u.gain.setValueAt(0, when)
		u.gain.linearRampTo(target, when+e.params.AttackTime)
		v.units = append(v.units, u)
		e.units = append(e.units, u)
	}
	e.voices[id] = v
	e.logger.Debug("voice started", "id", id, "timbre", timbre.Name(), "pitches", pitches, "units", len(v.units), "velocity", velocity)
	return true
}

// Release removes id from the voice table at once and lets its units decay
// to silence, stopping them StopDelay after when. Unknown ids are a no-op.
func (e *Engine) Release(id string, when time.Duration) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.releaseLocked(id, when)
}

func (e *Engine) releaseLocked(id string, when time.Duration) bool {
	v, ok := e.voices[id]
	if !ok {
		return false
	}
	delete(e.voices, id)
	for _, u := range v.units {
		u.gain.holdAt(when)
		u.gain.expRampTo(silentGain, when+e.params.ReleaseTime)
		e.scheduleStop(u, when+e.params.StopDelay)
	}
	e.logger.Debug("voice released", "id", id, "units", len(v.units))
	return true
}

// StopAll releases every voice in the table.
func (e *Engine) StopAll(when time.Duration) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.voices))
	for id := range e.voices {
		ids = append(ids, id)
	}
	for _, id := range ids {
		e.releaseLocked(id, when)
	}
	return len(ids)
}

// OneShot fires an untracked sound with a baked-in envelope. It cannot be
// cancelled and frees itself at when+duration. It reports whether a unit
// was scheduled.
func (e *Engine) OneShot(pitch int, timbre Timbre, velocity float64, duration, when time.Duration) bool {
	if duration <= 0 {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	u, err := timbre.oneShot(pitch, when, duration, e.params)
	if err != nil {
		e.logger.Debug("one-shot muted", "pitch", pitch, "err", err)
		return false
	}

	peak := e.params.gainFor(velocity)
	attack := e.params.OneShotAttack
	if attack > duration/2 {
		attack = duration / 2
	}
	releaseAt := when + duration - e.params.OneShotRelease
	if releaseAt < when+attack {
		releaseAt = when + attack
	}
	u.gain.setValueAt(0, when)
	u.gain.linearRampTo(peak, when+attack)
	u.gain.setValueAt(peak, releaseAt)
	u.gain.expRampTo(silentGain, when+duration)

	e.units = append(e.units, u)
	e.scheduleStop(u, when+duration)
	e.logger.Debug("one-shot", "timbre", timbre.Name(), "pitch", pitch, "velocity", velocity, "duration", duration)
	return true
}

func (e *Engine) scheduleStop(u *unit, at time.Duration) {
	u.stop = at
	if u.heapIndex >= 0 {
		heap.Fix(&e.stops, u.heapIndex)
		return
	}
	heap.Push(&e.stops, u)
}

// Reap frees every unit whose stop time has passed on the engine clock and
// returns how many were freed.
func (e *Engine) Reap() int {
	now := e.clock.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reapLocked(now)
}

func (e *Engine) reapLocked(now time.Duration) int {
	freed := 0
	for e.stops.Len() > 0 && e.stops[0].stop <= now {
		u := heap.Pop(&e.stops).(*unit)
		u.done = true
		freed++
	}
	if freed == 0 {
		return 0
	}
	keep := e.units[:0]
	for _, u := range e.units {
		if !u.done || u.stop > now {
			keep = append(keep, u)
		}
	}
	for i := len(keep); i < len(e.units); i++ {
		e.units[i] = nil
	}
	e.units = keep
	return freed
}

// Has reports whether id is in the voice table.
func (e *Engine) Has(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.voices[id]
	return ok
}

// VoiceCount returns the number of tracked voices.
func (e *Engine) VoiceCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.voices)
}

// ActiveUnits returns the number of units not yet freed, including release
// tails and one-shots.
func (e *Engine) ActiveUnits() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.units)
}

// Voices returns snapshots of the tracked voices sorted by id.
func (e *Engine) Voices() []VoiceInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]VoiceInfo, 0, len(e.voices))
	for _, v := range e.voices {
		info := VoiceInfo{
			ID:      v.ID,
			Timbre:  v.Timbre.Name(),
			Pitches: append([]int(nil), v.Pitches...),
			Units:   make([]UnitInfo, 0, len(v.units)),
		}
		for _, u := range v.units {
			info.Units = append(info.Units, u.info())
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Units returns snapshots of every live unit in scheduling order, tracked
// or not.
func (e *Engine) Units() []UnitInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]UnitInfo, len(e.units))
	for i, u := range e.units {
		out[i] = u.info()
	}
	return out
}

// GainAt returns the envelope value of every unit of id at t.
func (e *Engine) GainAt(id string, t time.Duration) []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.voices[id]
	if !ok {
		return nil
	}
	out := make([]float64, len(v.units))
	for i, u := range v.units {
		out[i] = u.gain.valueAt(t)
	}
	return out
}

// Process renders numFrames of mono audio, advances a frame-driven clock and
// frees units that finished within the block.
func (e *Engine) Process(numFrames int) []float32 {
	out := make([]float32, numFrames)
	if numFrames <= 0 {
		return out
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	t0 := framesToDuration(e.rendered, e.sampleRate)
	for _, u := range e.units {
		u.render(out, t0, e.sampleRate)
	}
	e.rendered += int64(numFrames)
	if fc, ok := e.clock.(FrameClock); ok {
		fc.AdvanceFrames(numFrames)
	}
	e.reapLocked(framesToDuration(e.rendered, e.sampleRate))
	e.out.Process(out)
	return out
}

// SetVibratoAmount sets the modulation depth, clamped to [0,1].
func (e *Engine) SetVibratoAmount(x float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vibrato.SetAmount(x)
}

// VibratoAmount returns the current modulation depth.
func (e *Engine) VibratoAmount() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vibrato.Amount()
}

// TickVibrato advances the LFO by dt and applies the new ratio to every unit
// of every tracked voice. It returns the ratio.
func (e *Engine) TickVibrato(dt time.Duration) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	ratio := e.vibrato.Step(dt)
	for _, v := range e.voices {
		for _, u := range v.units {
			u.mod = ratio
		}
	}
	return ratio
}

// RunVibrato ticks the modulator every VibratoPeriod until ctx is done.
func (e *Engine) RunVibrato(ctx context.Context) {
	period := e.params.VibratoPeriod
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.TickVibrato(period)
		}
	}
}

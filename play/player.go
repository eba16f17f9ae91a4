// Package play turns degree-level commands into engine calls according to
// the current play mode.
package play

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/cwbudde/algo-jam/harmony"
	"github.com/cwbudde/algo-jam/synth"
)

// Mode is a play strategy.
type Mode int

const (
	Single Mode = iota
	Chord
	Arpeggio
	numModes
)

func (m Mode) String() string {
	switch m {
	case Chord:
		return "chord"
	case Arpeggio:
		return "arpeggio"
	default:
		return "single"
	}
}

// Next returns the mode that follows m in the cycle single, chord, arpeggio.
func (m Mode) Next() Mode {
	return (m + 1) % numModes
}

// ParseMode accepts the names printed by Mode.String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "single":
		return Single, nil
	case "chord":
		return Chord, nil
	case "arpeggio", "arp":
		return Arpeggio, nil
	}
	return Single, fmt.Errorf("unknown play mode %q", s)
}

// Instrument binds a timbre to the register its pitches are folded into.
type Instrument struct {
	Name     string
	Timbre   synth.Timbre
	Register harmony.Register
}

func (inst Instrument) validate() error {
	if inst.Timbre == nil {
		return fmt.Errorf("instrument %q has no timbre", inst.Name)
	}
	if err := inst.Register.Validate(); err != nil {
		return fmt.Errorf("instrument %q: %w", inst.Name, err)
	}
	return nil
}

// Settings tunes the strategies.
type Settings struct {
	// ChordVelocityScale scales each chord tone's velocity.
	ChordVelocityScale float64
	// OneShotDuration is the length of single and chord one-shots on
	// percussive instruments.
	OneShotDuration time.Duration
	ArpeggioPasses  int
	ArpeggioSpacing time.Duration
	// ArpeggioLength is each arpeggio note's duration as a multiple of the spacing.
	ArpeggioLength float64
	// Lead is added to the engine clock when scheduling, absorbing dispatch jitter.
	Lead time.Duration
}

// DefaultSettings returns the stock strategy tuning.
func DefaultSettings() Settings {
	return Settings{
		ChordVelocityScale: 0.65,
		OneShotDuration:    900 * time.Millisecond,
		ArpeggioPasses:     2,
		ArpeggioSpacing:    120 * time.Millisecond,
		ArpeggioLength:     2.6,
		Lead:               0,
	}
}

// Validate checks the settings.
func (s Settings) Validate() error {
	if s.ChordVelocityScale <= 0 || s.ChordVelocityScale > 1 {
		return fmt.Errorf("chord_velocity_scale must be in (0,1]")
	}
	if s.OneShotDuration <= 0 {
		return fmt.Errorf("one_shot_duration must be > 0")
	}
	if s.ArpeggioPasses < 1 {
		return fmt.Errorf("arpeggio_passes must be >= 1")
	}
	if s.ArpeggioSpacing <= 0 {
		return fmt.Errorf("arpeggio_spacing must be > 0")
	}
	if s.ArpeggioLength <= 0 {
		return fmt.Errorf("arpeggio_length must be > 0")
	}
	if s.Lead < 0 {
		return fmt.Errorf("lead must be >= 0")
	}
	return nil
}

// Status is the last-triggered note and current control values, for display.
type Status struct {
	Degree     int     `json:"degree"`
	Pitch      int     `json:"pitch"`
	NoteName   string  `json:"note_name"`
	Velocity   float64 `json:"velocity"`
	Vibrato    float64 `json:"vibrato"`
	Mode       string  `json:"mode"`
	Instrument string  `json:"instrument"`
	Key        string  `json:"key"`
}

// Player is the command surface of the core.
type Player struct {
	mu sync.Mutex

	engine   *synth.Engine
	key      harmony.KeyMode
	inst     Instrument
	mode     Mode
	settings Settings
	rng      *rand.Rand
	logger   *slog.Logger

	status Status
}

// Option configures a Player.
type Option func(*Player)

func WithLogger(l *slog.Logger) Option {
	return func(p *Player) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithSeed makes arpeggio permutations reproducible.
func WithSeed(seed uint64) Option {
	return func(p *Player) { p.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

func WithSettings(s Settings) Option {
	return func(p *Player) { p.settings = s }
}

func WithMode(m Mode) Option {
	return func(p *Player) { p.mode = m }
}

// NewPlayer creates a player driving engine. The instrument's register and
// the settings are validated here, so every later trigger stays in range.
func NewPlayer(engine *synth.Engine, key harmony.KeyMode, inst Instrument, opts ...Option) (*Player, error) {
	if engine == nil {
		return nil, fmt.Errorf("player needs an engine")
	}
	if err := inst.validate(); err != nil {
		return nil, err
	}
	p := &Player{
		engine:   engine,
		key:      key,
		inst:     inst,
		settings: DefaultSettings(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.settings.Validate(); err != nil {
		return nil, fmt.Errorf("play settings: %w", err)
	}
	if p.rng == nil {
		p.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	p.status.Mode = p.mode.String()
	p.status.Instrument = inst.Name
	p.status.Key = key.String()
	return p, nil
}

// NoteOn triggers degree in the current mode.
func (p *Player) NoteOn(degree int, velocity float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	velocity = clamp01(velocity)
	timbre := p.inst.Timbre
	pitch := harmony.DegreeToPitch(degree, p.key, p.inst.Register)
	p.status.Degree = degree
	p.status.Pitch = pitch
	p.status.NoteName = harmony.NoteName(pitch)
	p.status.Velocity = velocity

	when := p.engine.Now() + p.settings.Lead
	switch p.mode {
	case Chord:
		p.chordOn(degree, velocity, when)
	case Arpeggio:
		p.arpeggio(degree, velocity, when)
	default:
		if timbre.Sustains() {
			p.engine.StartSustained(singleID(degree), []int{pitch}, timbre, velocity, when)
		} else {
			p.engine.OneShot(pitch, timbre, velocity, p.settings.OneShotDuration, when)
		}
	}
	p.logger.Debug("note on", "degree", degree, "pitch", pitch, "note", p.status.NoteName, "mode", p.mode, "velocity", velocity)
}

func (p *Player) chordOn(degree int, velocity float64, when time.Duration) {
	tones := harmony.ChordTones(degree, p.key, p.inst.Register)
	v := velocity * p.settings.ChordVelocityScale
	timbre := p.inst.Timbre
	if !timbre.Sustains() {
		for _, t := range tones {
			p.engine.OneShot(t-12, timbre, v, p.settings.OneShotDuration, when)
		}
		return
	}
	p.engine.StartSustained(chordID(degree), tones[:], timbre, v, when)
}

func (p *Player) arpeggio(degree int, velocity float64, when time.Duration) {
	tones := harmony.ChordTones(degree, p.key, p.inst.Register)
	spacing := p.settings.ArpeggioSpacing
	length := time.Duration(float64(spacing) * p.settings.ArpeggioLength)
	step := 0
	for pass := 0; pass < p.settings.ArpeggioPasses; pass++ {
		for _, i := range p.rng.Perm(len(tones)) {
			at := when + time.Duration(step)*spacing
			p.engine.OneShot(tones[i], p.inst.Timbre, velocity, length, at)
			step++
		}
	}
}

// NoteOff releases degree's sustained voices. Arpeggios run to completion.
// Both single and chord ids are released so a mode change while a key is
// held cannot strand a voice.
func (p *Player) NoteOff(degree int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	when := p.engine.Now() + p.settings.Lead
	a := p.engine.Release(singleID(degree), when)
	b := p.engine.Release(chordID(degree), when)
	p.logger.Debug("note off", "degree", degree, "released", a || b)
}

// SetVibratoAmount sets the modulation depth, clamped to [0,1].
func (p *Player) SetVibratoAmount(x float64) {
	x = clamp01(x)
	p.engine.SetVibratoAmount(x)
	p.mu.Lock()
	p.status.Vibrato = x
	p.mu.Unlock()
}

// CycleMode advances to the next play mode and returns it.
func (p *Player) CycleMode() Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mode = p.mode.Next()
	p.status.Mode = p.mode.String()
	p.logger.Info("play mode", "mode", p.mode)
	return p.mode
}

// Mode returns the current play mode.
func (p *Player) Mode() Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// SetKey changes the key for subsequent triggers. Sounding voices keep their pitch.
func (p *Player) SetKey(key harmony.KeyMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.key = key
	p.status.Key = key.String()
}

// SetInstrument releases every sustained voice and switches instrument. An
// invalid instrument is rejected and the current one keeps playing.
func (p *Player) SetInstrument(inst Instrument) error {
	if err := inst.validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	released := p.engine.StopAll(p.engine.Now() + p.settings.Lead)
	p.inst = inst
	p.status.Instrument = inst.Name
	p.logger.Info("instrument", "name", inst.Name, "released", released)
	return nil
}

// StopAll releases every sustained voice.
func (p *Player) StopAll() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.StopAll(p.engine.Now() + p.settings.Lead)
}

// Status returns the display snapshot.
func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func singleID(degree int) string { return fmt.Sprintf("single-%d", degree) }
func chordID(degree int) string  { return fmt.Sprintf("chord-%d", degree) }

func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

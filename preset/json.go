// Package preset loads performance presets: key, instruments, engine tuning
// and controller thresholds.
package preset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cwbudde/algo-jam/controller"
	"github.com/cwbudde/algo-jam/harmony"
	"github.com/cwbudde/algo-jam/play"
	"github.com/cwbudde/algo-jam/sampler"
	"github.com/cwbudde/algo-jam/synth"
)

// File is the JSON schema for presets. Absent fields keep their defaults.
type File struct {
	Key         *KeySetting                  `json:"key"`
	Mode        string                       `json:"mode"`
	Instrument  string                       `json:"instrument"`
	Instruments map[string]InstrumentSetting `json:"instruments"`
	Engine      *EngineSetting               `json:"engine"`
	Play        *PlaySetting                 `json:"play"`
	Controller  *ControllerSetting           `json:"controller"`
	MIDI        *MIDISetting                 `json:"midi"`
}

// KeySetting names a key, e.g. {"tonic": "F#", "mode": "minor"}.
type KeySetting struct {
	Tonic string `json:"tonic"`
	Mode  string `json:"mode"`
}

// InstrumentSetting describes one instrument.
type InstrumentSetting struct {
	// Timbre is "oscillator", "single" or "range".
	Timbre   string           `json:"timbre"`
	Waveform string           `json:"waveform"`
	Register *RegisterSetting `json:"register"`
	// Samples maps descriptors ("C4", "A3-C5") to WAV paths.
	Samples map[string]string `json:"samples"`
}

// RegisterSetting bounds are note names or pitch numbers.
type RegisterSetting struct {
	BaseOctave *int   `json:"base_octave"`
	Min        string `json:"min"`
	Max        string `json:"max"`
}

type EngineSetting struct {
	AttackMS          *float64 `json:"attack_ms"`
	ReleaseMS         *float64 `json:"release_ms"`
	StopDelayMS       *float64 `json:"stop_delay_ms"`
	OneShotAttackMS   *float64 `json:"one_shot_attack_ms"`
	OneShotReleaseMS  *float64 `json:"one_shot_release_ms"`
	PeakGain          *float64 `json:"peak_gain"`
	MinVelocity       *float64 `json:"min_velocity"`
	SeekFraction      *float64 `json:"seek_fraction"`
	VibratoRateHz     *float64 `json:"vibrato_rate_hz"`
	VibratoDepthCents *float64 `json:"vibrato_depth_cents"`
	VibratoPeriodMS   *float64 `json:"vibrato_period_ms"`
	OutputGain        *float32 `json:"output_gain"`
	OutputCutoff      *float32 `json:"output_cutoff"`
}

type PlaySetting struct {
	ChordVelocityScale *float64 `json:"chord_velocity_scale"`
	OneShotMS          *float64 `json:"one_shot_ms"`
	ArpeggioPasses     *int     `json:"arpeggio_passes"`
	ArpeggioSpacingMS  *float64 `json:"arpeggio_spacing_ms"`
	ArpeggioLength     *float64 `json:"arpeggio_length"`
	LeadMS             *float64 `json:"lead_ms"`
}

type ControllerSetting struct {
	NumSwitches      *int     `json:"num_switches"`
	DebounceMS       *float64 `json:"debounce_ms"`
	SwitchPeriodMS   *float64 `json:"switch_period_ms"`
	AnalogPeriodMS   *float64 `json:"analog_period_ms"`
	InertialPeriodMS *float64 `json:"inertial_period_ms"`

	ForceActivation   *int     `json:"force_activation"`
	ForceSaturation   *int     `json:"force_saturation"`
	ForceDefaultFloor *float64 `json:"force_default_floor"`
	ForceMax          *float64 `json:"force_max"`
	ForceLowCutoff    *int     `json:"force_low_cutoff"`
	ForceHighCutoff   *int     `json:"force_high_cutoff"`

	BendOn  *int `json:"bend_on"`
	BendOff *int `json:"bend_off"`

	InertialNoiseFloor *float64 `json:"inertial_noise_floor"`
	InertialCeiling    *float64 `json:"inertial_ceiling"`
	InertialSmoothing  *float64 `json:"inertial_smoothing"`
}

type MIDISetting struct {
	BaseNote  string   `json:"base_note"`
	ForceCC   *int     `json:"force_cc"`
	BendCC    *int     `json:"bend_cc"`
	MotionCC  *int     `json:"motion_cc"`
	RawMax    *int     `json:"raw_max"`
	MotionMax *float64 `json:"motion_max"`
}

// Instrument is a resolved instrument description. Sample paths are
// absolute once loaded through LoadJSON.
type Instrument struct {
	Name     string
	Timbre   string
	Waveform synth.Waveform
	Register harmony.Register
	Samples  map[string]string
}

// Preset is the resolved configuration.
type Preset struct {
	Key         harmony.KeyMode
	Mode        play.Mode
	Instrument  string
	Instruments map[string]*Instrument
	Engine      *synth.Params
	Play        play.Settings
	Controller  controller.Config
	MIDI        controller.MIDIMapping
}

// Default returns C major, single mode and a sine instrument.
func Default() *Preset {
	return &Preset{
		Key:        harmony.KeyMode{Tonic: 0, Mode: harmony.Major},
		Mode:       play.Single,
		Instrument: "sine",
		Instruments: map[string]*Instrument{
			"sine": {Name: "sine", Timbre: "oscillator", Waveform: synth.Sine, Register: harmony.DefaultRegister()},
		},
		Engine:     synth.NewDefaultParams(),
		Play:       play.DefaultSettings(),
		Controller: controller.DefaultConfig(),
		MIDI:       controller.DefaultMIDIMapping(),
	}
}

// LoadJSON loads a preset file and applies it on top of Default. Relative
// sample paths are resolved against the preset's directory.
func LoadJSON(path string) (*Preset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("preset %s: %w", path, err)
	}

	p := Default()
	if err := ApplyFile(p, &f); err != nil {
		return nil, fmt.Errorf("preset %s: %w", path, err)
	}

	base := filepath.Dir(path)
	for _, inst := range p.Instruments {
		for d, src := range inst.Samples {
			if !filepath.IsAbs(src) {
				inst.Samples[d] = filepath.Clean(filepath.Join(base, src))
			}
		}
	}
	return p, nil
}

// ApplyFile applies a parsed preset file onto an existing preset and
// validates the result.
func ApplyFile(dst *Preset, f *File) error {
	if dst == nil {
		return fmt.Errorf("nil destination preset")
	}
	if f == nil {
		return nil
	}

	if f.Key != nil {
		k, err := harmony.ParseKey(f.Key.Tonic, f.Key.Mode)
		if err != nil {
			return fmt.Errorf("key: %w", err)
		}
		dst.Key = k
	}
	if f.Mode != "" {
		m, err := play.ParseMode(f.Mode)
		if err != nil {
			return err
		}
		dst.Mode = m
	}

	names := make([]string, 0, len(f.Instruments))
	for name := range f.Instruments {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		inst, err := parseInstrument(name, f.Instruments[name])
		if err != nil {
			return err
		}
		if dst.Instruments == nil {
			dst.Instruments = make(map[string]*Instrument)
		}
		dst.Instruments[name] = inst
	}
	if f.Instrument != "" {
		dst.Instrument = strings.TrimSpace(f.Instrument)
	}
	if _, ok := dst.Instruments[dst.Instrument]; !ok {
		return fmt.Errorf("instrument %q is not defined", dst.Instrument)
	}

	if f.Engine != nil {
		applyEngine(dst.Engine, f.Engine)
		if err := dst.Engine.Validate(); err != nil {
			return fmt.Errorf("engine: %w", err)
		}
	}
	if f.Play != nil {
		applyPlay(&dst.Play, f.Play)
		if err := dst.Play.Validate(); err != nil {
			return fmt.Errorf("play: %w", err)
		}
	}
	if f.Controller != nil {
		applyController(&dst.Controller, f.Controller)
		if err := dst.Controller.Validate(); err != nil {
			return fmt.Errorf("controller: %w", err)
		}
	}
	if f.MIDI != nil {
		if err := applyMIDI(&dst.MIDI, f.MIDI); err != nil {
			return fmt.Errorf("midi: %w", err)
		}
	}
	return nil
}

func parseInstrument(name string, s InstrumentSetting) (*Instrument, error) {
	inst := &Instrument{
		Name:     name,
		Timbre:   strings.ToLower(strings.TrimSpace(s.Timbre)),
		Register: harmony.DefaultRegister(),
	}
	switch inst.Timbre {
	case "", "oscillator":
		inst.Timbre = "oscillator"
		w, err := parseWaveform(s.Waveform)
		if err != nil {
			return nil, fmt.Errorf("instruments[%s]: %w", name, err)
		}
		inst.Waveform = w
	case "single", "range":
		if len(s.Samples) == 0 {
			return nil, fmt.Errorf("instruments[%s]: %s timbre needs samples", name, inst.Timbre)
		}
		inst.Samples = make(map[string]string, len(s.Samples))
		for d, src := range s.Samples {
			if _, err := sampler.ParseDescriptor(d); err != nil {
				return nil, fmt.Errorf("instruments[%s]: %w", name, err)
			}
			if strings.TrimSpace(src) == "" {
				return nil, fmt.Errorf("instruments[%s]: empty path for %q", name, d)
			}
			inst.Samples[d] = strings.TrimSpace(src)
		}
	default:
		return nil, fmt.Errorf("instruments[%s]: unknown timbre %q", name, s.Timbre)
	}

	if r := s.Register; r != nil {
		if r.BaseOctave != nil {
			inst.Register.BaseOctave = *r.BaseOctave
		}
		if r.Min != "" {
			v, err := harmony.ParseNote(r.Min)
			if err != nil {
				return nil, fmt.Errorf("instruments[%s].register.min: %w", name, err)
			}
			inst.Register.Min = v
		}
		if r.Max != "" {
			v, err := harmony.ParseNote(r.Max)
			if err != nil {
				return nil, fmt.Errorf("instruments[%s].register.max: %w", name, err)
			}
			inst.Register.Max = v
		}
	}
	if err := inst.Register.Validate(); err != nil {
		return nil, fmt.Errorf("instruments[%s].register: %w", name, err)
	}
	return inst, nil
}

func parseWaveform(s string) (synth.Waveform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sine":
		return synth.Sine, nil
	case "triangle":
		return synth.Triangle, nil
	case "sawtooth", "saw":
		return synth.Sawtooth, nil
	case "square":
		return synth.Square, nil
	}
	return synth.Sine, fmt.Errorf("unknown waveform %q", s)
}

func ms(v float64) time.Duration {
	return time.Duration(v * float64(time.Millisecond))
}

func applyEngine(p *synth.Params, s *EngineSetting) {
	if s.AttackMS != nil {
		p.AttackTime = ms(*s.AttackMS)
	}
	if s.ReleaseMS != nil {
		p.ReleaseTime = ms(*s.ReleaseMS)
	}
	if s.StopDelayMS != nil {
		p.StopDelay = ms(*s.StopDelayMS)
	}
	if s.OneShotAttackMS != nil {
		p.OneShotAttack = ms(*s.OneShotAttackMS)
	}
	if s.OneShotReleaseMS != nil {
		p.OneShotRelease = ms(*s.OneShotReleaseMS)
	}
	if s.PeakGain != nil {
		p.PeakGain = *s.PeakGain
	}
	if s.MinVelocity != nil {
		p.MinVelocity = *s.MinVelocity
	}
	if s.SeekFraction != nil {
		p.SeekFraction = *s.SeekFraction
	}
	if s.VibratoRateHz != nil {
		p.VibratoRateHz = *s.VibratoRateHz
	}
	if s.VibratoDepthCents != nil {
		p.VibratoDepthCents = *s.VibratoDepthCents
	}
	if s.VibratoPeriodMS != nil {
		p.VibratoPeriod = ms(*s.VibratoPeriodMS)
	}
	if s.OutputGain != nil {
		p.OutputGain = *s.OutputGain
	}
	if s.OutputCutoff != nil {
		p.OutputCutoff = *s.OutputCutoff
	}
}

func applyPlay(p *play.Settings, s *PlaySetting) {
	if s.ChordVelocityScale != nil {
		p.ChordVelocityScale = *s.ChordVelocityScale
	}
	if s.OneShotMS != nil {
		p.OneShotDuration = ms(*s.OneShotMS)
	}
	if s.ArpeggioPasses != nil {
		p.ArpeggioPasses = *s.ArpeggioPasses
	}
	if s.ArpeggioSpacingMS != nil {
		p.ArpeggioSpacing = ms(*s.ArpeggioSpacingMS)
	}
	if s.ArpeggioLength != nil {
		p.ArpeggioLength = *s.ArpeggioLength
	}
	if s.LeadMS != nil {
		p.Lead = ms(*s.LeadMS)
	}
}

func applyController(c *controller.Config, s *ControllerSetting) {
	if s.NumSwitches != nil {
		c.NumSwitches = *s.NumSwitches
	}
	if s.DebounceMS != nil {
		c.DebounceDelay = ms(*s.DebounceMS)
	}
	if s.SwitchPeriodMS != nil {
		c.SwitchPeriod = ms(*s.SwitchPeriodMS)
	}
	if s.AnalogPeriodMS != nil {
		c.ForcePeriod = ms(*s.AnalogPeriodMS)
		c.BendPeriod = ms(*s.AnalogPeriodMS)
	}
	if s.InertialPeriodMS != nil {
		c.InertialPeriod = ms(*s.InertialPeriodMS)
	}
	if s.ForceActivation != nil {
		c.Force.Activation = *s.ForceActivation
	}
	if s.ForceSaturation != nil {
		c.Force.Saturation = *s.ForceSaturation
	}
	if s.ForceDefaultFloor != nil {
		c.Force.DefaultFloor = *s.ForceDefaultFloor
	}
	if s.ForceMax != nil {
		c.Force.Max = *s.ForceMax
	}
	if s.ForceLowCutoff != nil {
		c.Force.LowCutoff = *s.ForceLowCutoff
	}
	if s.ForceHighCutoff != nil {
		c.Force.HighCutoff = *s.ForceHighCutoff
	}
	if s.BendOn != nil {
		c.Bend.On = *s.BendOn
	}
	if s.BendOff != nil {
		c.Bend.Off = *s.BendOff
	}
	if s.InertialNoiseFloor != nil {
		c.Inertial.NoiseFloor = *s.InertialNoiseFloor
	}
	if s.InertialCeiling != nil {
		c.Inertial.Ceiling = *s.InertialCeiling
	}
	if s.InertialSmoothing != nil {
		c.Inertial.Smoothing = *s.InertialSmoothing
	}
}

func applyMIDI(m *controller.MIDIMapping, s *MIDISetting) error {
	if s.BaseNote != "" {
		n, err := harmony.ParseNote(s.BaseNote)
		if err != nil || n < 0 || n > 127 {
			return fmt.Errorf("base_note %q must be a note in 0..127", s.BaseNote)
		}
		m.BaseNote = uint8(n)
	}
	for _, cc := range []struct {
		name string
		src  *int
		dst  *uint8
	}{
		{"force_cc", s.ForceCC, &m.ForceCC},
		{"bend_cc", s.BendCC, &m.BendCC},
		{"motion_cc", s.MotionCC, &m.MotionCC},
	} {
		if cc.src == nil {
			continue
		}
		if *cc.src < 0 || *cc.src > 127 {
			return fmt.Errorf("%s must be in 0..127, got %d", cc.name, *cc.src)
		}
		*cc.dst = uint8(*cc.src)
	}
	if s.RawMax != nil {
		if *s.RawMax <= 0 {
			return fmt.Errorf("raw_max must be > 0")
		}
		m.RawMax = *s.RawMax
	}
	if s.MotionMax != nil {
		if *s.MotionMax <= 0 {
			return fmt.Errorf("motion_max must be > 0")
		}
		m.MotionMax = *s.MotionMax
	}
	return nil
}

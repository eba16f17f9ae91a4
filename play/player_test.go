package play

import (
	"math"
	"sort"
	"testing"
	"time"

	"github.com/cwbudde/algo-jam/harmony"
	"github.com/cwbudde/algo-jam/sampler"
	"github.com/cwbudde/algo-jam/synth"
)

func newTestPlayer(t *testing.T, timbre synth.Timbre, opts ...Option) (*Player, *synth.Engine, *synth.VirtualClock) {
	t.Helper()
	clk := &synth.VirtualClock{}
	e := synth.NewEngine(48000, synth.NewDefaultParams(), synth.WithClock(clk))
	key, err := harmony.ParseKey("C", "major")
	if err != nil {
		t.Fatalf("ParseKey: %v", err)
	}
	inst := Instrument{Name: timbre.Name(), Timbre: timbre, Register: harmony.DefaultRegister()}
	opts = append([]Option{WithSeed(7)}, opts...)
	p, err := NewPlayer(e, key, inst, opts...)
	if err != nil {
		t.Fatalf("NewPlayer: %v", err)
	}
	return p, e, clk
}

func pluckTimbre(t *testing.T) synth.Timbre {
	t.Helper()
	buf := &sampler.Buffer{Data: make([]float32, 48000), SampleRate: 48000}
	for i := range buf.Data {
		buf.Data[i] = float32(math.Sin(float64(i) * 0.05))
	}
	lib, err := sampler.NewLibrary("pluck", []sampler.Entry{
		{Descriptor: "C2-B3", Buffer: buf},
		{Descriptor: "C4-B5", Buffer: buf},
	})
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}
	return synth.RangeSampleSet{Label: "pluck", Library: lib}
}

func TestSingleModeSustainsAndReleases(t *testing.T) {
	p, e, _ := newTestPlayer(t, synth.Oscillator{Waveform: synth.Sine})

	p.NoteOn(1, 0.8)
	st := p.Status()
	if st.Pitch != 60 || st.NoteName != "C4" || st.Degree != 1 {
		t.Fatalf("status mismatch: got=%+v want pitch 60 C4", st)
	}
	voices := e.Voices()
	if len(voices) != 1 || voices[0].ID != "single-1" || voices[0].Pitches[0] != 60 {
		t.Fatalf("voice mismatch: got=%+v", voices)
	}

	p.NoteOff(1)
	if e.Has("single-1") {
		t.Fatalf("expected single-1 released")
	}
}

func TestDuplicateNoteOnKeepsOneVoice(t *testing.T) {
	p, e, _ := newTestPlayer(t, synth.Oscillator{Waveform: synth.Sine})
	p.NoteOn(3, 0.8)
	p.NoteOn(3, 0.8)
	if got := e.VoiceCount(); got != 1 {
		t.Fatalf("voice table size mismatch: got=%d want=1", got)
	}
	p.NoteOff(3)
	p.NoteOff(3)
	if got := e.VoiceCount(); got != 0 {
		t.Fatalf("voice table size mismatch: got=%d want=0", got)
	}
}

func TestChordModeSustainsTriad(t *testing.T) {
	p, e, _ := newTestPlayer(t, synth.Oscillator{Waveform: synth.Triangle}, WithMode(Chord))

	p.NoteOn(1, 0.8)
	voices := e.Voices()
	if len(voices) != 1 || voices[0].ID != "chord-1" {
		t.Fatalf("expected chord-1 voice, got %+v", voices)
	}
	want := []int{60, 64, 67}
	for i, pitch := range voices[0].Pitches {
		if pitch != want[i] {
			t.Fatalf("chord tones mismatch: got=%v want=%v", voices[0].Pitches, want)
		}
	}

	params := e.Params()
	gains := e.GainAt("chord-1", time.Second)
	wantGain := params.PeakGain * 0.8 * 0.65
	for _, g := range gains {
		if math.Abs(g-wantGain) > 1e-12 {
			t.Fatalf("chord tone gain mismatch: got=%f want=%f", g, wantGain)
		}
	}

	p.NoteOff(1)
	if e.VoiceCount() != 0 {
		t.Fatalf("expected chord released")
	}
}

func TestChordVelocityFloor(t *testing.T) {
	p, e, _ := newTestPlayer(t, synth.Oscillator{}, WithMode(Chord))
	p.NoteOn(2, 0.01)
	params := e.Params()
	for _, g := range e.GainAt("chord-2", time.Second) {
		if math.Abs(g-params.PeakGain*0.05) > 1e-12 {
			t.Fatalf("floored gain mismatch: got=%f want=%f", g, params.PeakGain*0.05)
		}
	}
}

func TestPercussiveChordFiresLoweredOneShots(t *testing.T) {
	p, e, _ := newTestPlayer(t, pluckTimbre(t), WithMode(Chord))
	p.NoteOn(1, 1)

	if got := e.VoiceCount(); got != 0 {
		t.Fatalf("percussive chord must not be tracked: got=%d", got)
	}
	units := e.Units()
	if len(units) != 3 {
		t.Fatalf("expected three one-shots, got %d", len(units))
	}
	// C2-B3 spans 36..59 with its midpoint at 47.5; tones 48, 52, 55 play relative to it.
	for i, pitch := range []int{48, 52, 55} {
		want := math.Pow(2, (float64(pitch)-47.5)/12)
		if math.Abs(units[i].Base-want) > 1e-12 {
			t.Fatalf("tone %d rate mismatch: got=%f want=%f", i, units[i].Base, want)
		}
		if units[i].Stop-units[i].Start != DefaultSettings().OneShotDuration {
			t.Fatalf("one-shot length mismatch: got=%v", units[i].Stop-units[i].Start)
		}
	}

	p.NoteOff(1)
	if got := len(e.Units()); got != 3 {
		t.Fatalf("note off must not cut one-shots: got=%d", got)
	}
}

func TestPercussiveSingleIsOneShot(t *testing.T) {
	p, e, clk := newTestPlayer(t, pluckTimbre(t))
	p.NoteOn(5, 0.9)
	if e.VoiceCount() != 0 || e.ActiveUnits() != 1 {
		t.Fatalf("expected one untracked unit: voices=%d units=%d", e.VoiceCount(), e.ActiveUnits())
	}
	clk.Advance(DefaultSettings().OneShotDuration)
	e.Reap()
	if got := e.ActiveUnits(); got != 0 {
		t.Fatalf("expected one-shot freed: got=%d", got)
	}
}

func TestArpeggioPlaysTwoPermutedPasses(t *testing.T) {
	p, e, _ := newTestPlayer(t, synth.Oscillator{Waveform: synth.Sine}, WithMode(Arpeggio))
	p.NoteOn(1, 0.7)

	units := e.Units()
	if len(units) != 6 {
		t.Fatalf("expected six arpeggio notes, got %d", len(units))
	}
	if e.VoiceCount() != 0 {
		t.Fatalf("arpeggio must not be tracked")
	}
	s := DefaultSettings()
	length := time.Duration(float64(s.ArpeggioSpacing) * s.ArpeggioLength)
	chord := []float64{synth.PitchToFreq(60), synth.PitchToFreq(64), synth.PitchToFreq(67)}
	for pass := 0; pass < 2; pass++ {
		got := make([]float64, 0, 3)
		for i := 0; i < 3; i++ {
			u := units[pass*3+i]
			wantStart := time.Duration(pass*3+i) * s.ArpeggioSpacing
			if u.Start != wantStart {
				t.Fatalf("note %d start mismatch: got=%v want=%v", pass*3+i, u.Start, wantStart)
			}
			if u.Stop-u.Start != length {
				t.Fatalf("note %d length mismatch: got=%v want=%v", pass*3+i, u.Stop-u.Start, length)
			}
			got = append(got, u.Base)
		}
		sort.Float64s(got)
		for i := range chord {
			if got[i] != chord[i] {
				t.Fatalf("pass %d is not a permutation of the triad: got=%v want=%v", pass, got, chord)
			}
		}
	}

	p.NoteOff(1)
	if got := len(e.Units()); got != 6 {
		t.Fatalf("arpeggio must ignore note off: got=%d", got)
	}
}

func TestCycleModeOrder(t *testing.T) {
	p, _, _ := newTestPlayer(t, synth.Oscillator{})
	want := []Mode{Chord, Arpeggio, Single, Chord}
	for i, w := range want {
		if got := p.CycleMode(); got != w {
			t.Fatalf("cycle %d mismatch: got=%s want=%s", i, got, w)
		}
	}
	if p.Status().Mode != "chord" {
		t.Fatalf("status mode mismatch: got=%s", p.Status().Mode)
	}
}

func TestModeChangeWhileHeldStillReleases(t *testing.T) {
	p, e, _ := newTestPlayer(t, synth.Oscillator{})
	p.NoteOn(4, 1)
	p.CycleMode()
	p.NoteOff(4)
	if e.VoiceCount() != 0 {
		t.Fatalf("expected held voice to release after mode change")
	}
}

func TestStatusClampsControls(t *testing.T) {
	p, e, _ := newTestPlayer(t, synth.Oscillator{})
	p.NoteOn(8, 1.7)
	if got := p.Status().Velocity; got != 1 {
		t.Fatalf("velocity not clamped: got=%f", got)
	}
	if got := p.Status().Pitch; got != 72 {
		t.Fatalf("degree 8 pitch mismatch: got=%d want=72", got)
	}
	p.SetVibratoAmount(-0.3)
	if p.Status().Vibrato != 0 || e.VibratoAmount() != 0 {
		t.Fatalf("vibrato not clamped: status=%f engine=%f", p.Status().Vibrato, e.VibratoAmount())
	}
	p.SetVibratoAmount(0.4)
	if p.Status().Vibrato != 0.4 || e.VibratoAmount() != 0.4 {
		t.Fatalf("vibrato mismatch: status=%f engine=%f", p.Status().Vibrato, e.VibratoAmount())
	}
}

func TestSetKeyChangesPitch(t *testing.T) {
	p, _, _ := newTestPlayer(t, synth.Oscillator{})
	key, _ := harmony.ParseKey("A", "minor")
	p.SetKey(key)
	p.NoteOn(3, 1)
	if got := p.Status().NoteName; got != "C5" {
		t.Fatalf("note mismatch: got=%s want=C5", got)
	}
}

func TestSettingsValidate(t *testing.T) {
	if err := DefaultSettings().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	s := DefaultSettings()
	s.ArpeggioPasses = 0
	if err := s.Validate(); err == nil {
		t.Fatalf("expected error for zero passes")
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"single": Single, "Chord": Chord, "arp": Arpeggio} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) mismatch: got=%v err=%v want=%v", in, got, err, want)
		}
	}
	if _, err := ParseMode("drone"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestNewPlayerRejectsInvalidInstrument(t *testing.T) {
	e := synth.NewEngine(48000, nil, synth.WithClock(&synth.VirtualClock{}))
	key := harmony.KeyMode{}
	cases := map[string]Instrument{
		"narrow register": {Name: "x", Timbre: synth.Oscillator{}, Register: harmony.Register{BaseOctave: 5, Min: 60, Max: 62}},
		"no timbre":       {Name: "x", Register: harmony.DefaultRegister()},
	}
	for name, inst := range cases {
		if _, err := NewPlayer(e, key, inst); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	bad := DefaultSettings()
	bad.ArpeggioSpacing = 0
	inst := Instrument{Name: "sine", Timbre: synth.Oscillator{}, Register: harmony.DefaultRegister()}
	if _, err := NewPlayer(e, key, inst, WithSettings(bad)); err == nil {
		t.Fatalf("expected error for invalid settings")
	}
}

func TestSetInstrumentReleasesAndSwitches(t *testing.T) {
	p, e, _ := newTestPlayer(t, synth.Oscillator{})
	p.NoteOn(1, 0.8)
	if !e.Has("single-1") {
		t.Fatalf("expected single-1 before switching")
	}

	if err := p.SetInstrument(Instrument{Name: "bad", Timbre: synth.Oscillator{}, Register: harmony.Register{Min: 60, Max: 62}}); err == nil {
		t.Fatalf("expected error for narrow register")
	}
	if !e.Has("single-1") || p.Status().Instrument != "sine" {
		t.Fatalf("rejected instrument must leave state alone: has=%v status=%+v", e.Has("single-1"), p.Status())
	}

	pluck := pluckTimbre(t)
	if err := p.SetInstrument(Instrument{Name: "pluck", Timbre: pluck, Register: harmony.DefaultRegister()}); err != nil {
		t.Fatalf("SetInstrument: %v", err)
	}
	if e.VoiceCount() != 0 {
		t.Fatalf("switching must release held voices: got=%d", e.VoiceCount())
	}
	if got := p.Status().Instrument; got != "pluck" {
		t.Fatalf("status instrument mismatch: got=%s want=pluck", got)
	}

	before := e.ActiveUnits()
	p.NoteOn(1, 0.8)
	if e.VoiceCount() != 0 || e.ActiveUnits() != before+1 {
		t.Fatalf("new instrument should fire a one-shot: voices=%d units=%d", e.VoiceCount(), e.ActiveUnits()-before)
	}
}

func TestHugeDegreeChordStaysInRegister(t *testing.T) {
	p, e, _ := newTestPlayer(t, synth.Oscillator{}, WithMode(Chord))
	reg := harmony.DefaultRegister()
	p.NoteOn(10000000000, 1)
	voices := e.Voices()
	if len(voices) != 1 || voices[0].ID != "chord-10000000000" {
		t.Fatalf("unexpected voices: %+v", voices)
	}
	if st := p.Status(); st.Pitch < reg.Min || st.Pitch > reg.Max {
		t.Fatalf("pitch out of register: got=%d", st.Pitch)
	}
	p.NoteOff(10000000000)
	if e.VoiceCount() != 0 {
		t.Fatalf("expected release of the chord voice")
	}
}

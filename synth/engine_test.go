package synth

import (
	"testing"
	"time"

	"github.com/cwbudde/algo-jam/analysis"
	"github.com/cwbudde/algo-jam/sampler"
)

func TestStartSustainedIsIdempotent(t *testing.T) {
	e, _ := newVirtualEngine(48000)
	sine := Oscillator{Waveform: Sine}

	if !e.StartSustained("single-3", []int{64}, sine, 0.8, 0) {
		t.Fatalf("expected first start to create the voice")
	}
	if e.StartSustained("single-3", []int{64}, sine, 0.8, 0) {
		t.Fatalf("expected duplicate start to be a no-op")
	}
	if got := e.VoiceCount(); got != 1 {
		t.Fatalf("voice table size mismatch: got=%d want=1", got)
	}
	if got := e.ActiveUnits(); got != 1 {
		t.Fatalf("unit count mismatch: got=%d want=1", got)
	}
}

func TestReleaseTwiceIsNoOp(t *testing.T) {
	e, _ := newVirtualEngine(48000)
	e.StartSustained("single-3", []int{64}, Oscillator{Waveform: Sine}, 0.8, 0)

	if !e.Release("single-3", 10*time.Millisecond) {
		t.Fatalf("expected release of a sounding voice to succeed")
	}
	if e.Release("single-3", 20*time.Millisecond) {
		t.Fatalf("expected second release to be a no-op")
	}
	if e.Release("never-started", 0) {
		t.Fatalf("expected release of an absent id to be a no-op")
	}
	if e.Has("single-3") {
		t.Fatalf("expected voice to leave the table on release")
	}
}

func TestReleaseTailRunsUntilStop(t *testing.T) {
	e, clk := newVirtualEngine(48000)
	p := e.Params()
	e.StartSustained("chord-1", []int{60, 64, 67}, Oscillator{Waveform: Triangle}, 1, 0)

	releaseAt := 100 * time.Millisecond
	clk.Set(releaseAt)
	e.Release("chord-1", releaseAt)
	if got := e.ActiveUnits(); got != 3 {
		t.Fatalf("expected release tail to keep units alive: got=%d want=3", got)
	}

	clk.Set(releaseAt + p.StopDelay - time.Millisecond)
	if got := e.Reap(); got != 0 {
		t.Fatalf("expected no units freed before stop: got=%d", got)
	}
	clk.Set(releaseAt + p.StopDelay)
	if got := e.Reap(); got != 3 {
		t.Fatalf("expected all units freed at stop: got=%d want=3", got)
	}
	if got := e.ActiveUnits(); got != 0 {
		t.Fatalf("expected no units left: got=%d", got)
	}
}

func TestRestartAfterReleaseCreatesFreshVoice(t *testing.T) {
	e, _ := newVirtualEngine(48000)
	sine := Oscillator{Waveform: Sine}
	e.StartSustained("single-1", []int{60}, sine, 0.8, 0)
	e.Release("single-1", 50*time.Millisecond)
	if !e.StartSustained("single-1", []int{60}, sine, 0.8, 60*time.Millisecond) {
		t.Fatalf("expected restart during release tail to succeed")
	}
	if got := e.ActiveUnits(); got != 2 {
		t.Fatalf("expected tail and new unit: got=%d want=2", got)
	}
}

func TestOneShotSelfFrees(t *testing.T) {
	e, clk := newVirtualEngine(48000)
	if !e.OneShot(72, Oscillator{Waveform: Sawtooth}, 1, 300*time.Millisecond, 0) {
		t.Fatalf("expected one-shot to be scheduled")
	}
	if got := e.VoiceCount(); got != 0 {
		t.Fatalf("one-shot must not enter the voice table: got=%d", got)
	}
	if got := e.ActiveUnits(); got != 1 {
		t.Fatalf("unit count mismatch: got=%d want=1", got)
	}

	clk.Advance(299 * time.Millisecond)
	if got := e.Reap(); got != 0 {
		t.Fatalf("expected one-shot alive before its end: freed=%d", got)
	}
	clk.Advance(time.Millisecond)
	if got := e.Reap(); got != 1 {
		t.Fatalf("expected one-shot freed at its end: freed=%d", got)
	}
	if got := e.ActiveUnits(); got != 0 {
		t.Fatalf("expected no units left: got=%d", got)
	}
}

func TestOneShotRejectsNonPositiveDuration(t *testing.T) {
	e, _ := newVirtualEngine(48000)
	if e.OneShot(60, Oscillator{}, 1, 0, 0) {
		t.Fatalf("expected zero-length one-shot to be rejected")
	}
}

func TestStopAllReleasesEveryVoice(t *testing.T) {
	e, _ := newVirtualEngine(48000)
	sine := Oscillator{Waveform: Sine}
	e.StartSustained("single-1", []int{60}, sine, 1, 0)
	e.StartSustained("single-2", []int{62}, sine, 1, 0)
	e.StartSustained("chord-5", []int{67, 71, 74}, sine, 1, 0)

	if got := e.StopAll(10 * time.Millisecond); got != 3 {
		t.Fatalf("released count mismatch: got=%d want=3", got)
	}
	if got := e.VoiceCount(); got != 0 {
		t.Fatalf("expected empty table: got=%d", got)
	}
}

func TestAttackAndReleaseEnvelope(t *testing.T) {
	e, _ := newVirtualEngine(48000)
	p := e.Params()
	e.StartSustained("single-1", []int{60}, Oscillator{Waveform: Sine}, 1, 0)

	target := p.PeakGain
	mid := e.GainAt("single-1", p.AttackTime/2)
	if len(mid) != 1 || !almostEqual(mid[0], target/2, 1e-9) {
		t.Fatalf("mid-attack gain mismatch: got=%v want=%f", mid, target/2)
	}
	full := e.GainAt("single-1", time.Second)
	if !almostEqual(full[0], target, 1e-12) {
		t.Fatalf("sustain gain mismatch: got=%f want=%f", full[0], target)
	}

	e.mu.Lock()
	u := e.voices["single-1"].units[0]
	e.mu.Unlock()

	releaseAt := time.Second
	e.Release("single-1", releaseAt)
	if got := u.gain.valueAt(releaseAt); !almostEqual(got, target, 1e-12) {
		t.Fatalf("release start mismatch: got=%f want=%f", got, target)
	}
	half := u.gain.valueAt(releaseAt + p.ReleaseTime/2)
	if !(half < target && half > silentGain) {
		t.Fatalf("expected decaying gain mid release, got %f", half)
	}
	if got := u.gain.valueAt(releaseAt + p.ReleaseTime); !almostEqual(got, silentGain, 1e-9) {
		t.Fatalf("release end mismatch: got=%g want=%g", got, silentGain)
	}
	if u.stop != releaseAt+p.StopDelay {
		t.Fatalf("stop time mismatch: got=%v want=%v", u.stop, releaseAt+p.StopDelay)
	}
}

func TestReleaseDuringAttackHoldsCurrentGain(t *testing.T) {
	e, _ := newVirtualEngine(48000)
	p := e.Params()
	e.StartSustained("single-1", []int{60}, Oscillator{}, 1, 0)
	e.mu.Lock()
	u := e.voices["single-1"].units[0]
	e.mu.Unlock()

	at := p.AttackTime / 4
	e.Release("single-1", at)
	want := p.PeakGain / 4
	if got := u.gain.valueAt(at); !almostEqual(got, want, 1e-9) {
		t.Fatalf("held gain mismatch: got=%f want=%f", got, want)
	}
	if got := u.gain.valueAt(at + p.ReleaseTime/2); got >= want {
		t.Fatalf("expected gain to fall from the held value, got %f", got)
	}
}

func TestUnitFailuresAreIsolated(t *testing.T) {
	e, _ := newVirtualEngine(48000)
	timbre := flakyTimbre{fail: map[int]bool{64: true}}

	if !e.StartSustained("chord-1", []int{60, 64, 67}, timbre, 1, 0) {
		t.Fatalf("expected voice to start")
	}
	voices := e.Voices()
	if len(voices) != 1 || len(voices[0].Units) != 2 {
		t.Fatalf("expected two surviving units, got %+v", voices)
	}
}

func TestEmptyLibraryMutesSilently(t *testing.T) {
	e, _ := newVirtualEngine(48000)
	empty := SingleSampleSet{Label: "empty", Library: mustLibrary(t, "empty")}

	if !e.StartSustained("single-1", []int{60}, empty, 1, 0) {
		t.Fatalf("expected voice bookkeeping even without units")
	}
	if got := e.ActiveUnits(); got != 0 {
		t.Fatalf("expected no units for empty library: got=%d", got)
	}
	if e.OneShot(60, RangeSampleSet{Library: mustLibrary(t, "empty")}, 1, time.Second, 0) {
		t.Fatalf("expected one-shot on empty library to be muted")
	}
	if !e.Release("single-1", 0) {
		t.Fatalf("expected unitless voice to release")
	}
}

func TestSampleVoiceUsesNearestSampleRate(t *testing.T) {
	e, _ := newVirtualEngine(48000)
	lib := mustLibrary(t, "keys",
		sampler.Entry{Descriptor: "C4", Buffer: sineBuffer(261.63, 1, 48000)},
		sampler.Entry{Descriptor: "G4", Buffer: sineBuffer(392.0, 1, 48000)},
	)
	e.StartSustained("single-1", []int{62}, SingleSampleSet{Library: lib}, 1, 0)

	v := e.Voices()
	if len(v) != 1 || len(v[0].Units) != 1 {
		t.Fatalf("expected one unit, got %+v", v)
	}
	u := v[0].Units[0]
	if u.Kind != KindSample || u.Source != "C4" {
		t.Fatalf("expected C4 sample unit, got %+v", u)
	}
	want := sampler.Sample{Descriptor: sampler.Descriptor{Start: 60, End: 60}}.PlaybackRate(62)
	if !almostEqual(u.Base, want, 1e-12) {
		t.Fatalf("playback rate mismatch: got=%f want=%f", u.Base, want)
	}
}

func TestOscillatorRendersExactPitch(t *testing.T) {
	const sr = 48000
	e := NewEngine(sr, NewDefaultParams())
	e.StartSustained("single-6", []int{69}, Oscillator{Waveform: Sine}, 1, 0)

	out := e.Process(16384)
	got, err := analysis.DominantFrequency(out, sr, 16384)
	if err != nil {
		t.Fatalf("DominantFrequency: %v", err)
	}
	if !almostEqual(got, 440, 2) {
		t.Fatalf("oscillator pitch mismatch: got=%f want=440", got)
	}
}

func TestSampleRenderIsPitchShifted(t *testing.T) {
	const sr = 48000
	e := NewEngine(sr, NewDefaultParams())
	lib := mustLibrary(t, "keys", sampler.Entry{Descriptor: "C4", Buffer: sineBuffer(261.63, 1, sr)})
	e.StartSustained("single-8", []int{72}, SingleSampleSet{Library: lib}, 1, 0)

	out := e.Process(16384)
	got, err := analysis.DominantFrequency(out, sr, 16384)
	if err != nil {
		t.Fatalf("DominantFrequency: %v", err)
	}
	if !almostEqual(got, 523.25, 3) {
		t.Fatalf("shifted pitch mismatch: got=%f want=523.25", got)
	}
}

func TestProcessFreesFinishedOneShots(t *testing.T) {
	const sr = 48000
	e := NewEngine(sr, NewDefaultParams())
	e.OneShot(60, Oscillator{Waveform: Square}, 1, 50*time.Millisecond, 0)

	out := e.Process(sr / 5)
	if got := e.ActiveUnits(); got != 0 {
		t.Fatalf("expected one-shot freed after render: got=%d", got)
	}
	if got := e.Now(); got != 200*time.Millisecond {
		t.Fatalf("clock mismatch: got=%v want=200ms", got)
	}
	l := analysis.Measure(out, sr)
	if l.Peak == 0 {
		t.Fatalf("expected audible one-shot")
	}
	if l.TailSeconds > 0.06 {
		t.Fatalf("expected silence after stop, tail=%f", l.TailSeconds)
	}
}

func TestRangeOneShotSeeksIntoTake(t *testing.T) {
	e, _ := newVirtualEngine(48000)
	buf := sineBuffer(200, 2, 48000)
	lib := mustLibrary(t, "pluck", sampler.Entry{Descriptor: "C3-C5", Buffer: buf})
	pluck := RangeSampleSet{Library: lib}
	p := e.Params()

	dur := 200 * time.Millisecond
	if !e.OneShot(60, pluck, 1, dur, 0) {
		t.Fatalf("expected one-shot to be scheduled")
	}
	u := e.units[0]
	if u.mod != 1 || u.loop {
		t.Fatalf("one-shot must be unmodulated and unlooped: mod=%f loop=%v", u.mod, u.loop)
	}
	wantPos := 0.5 * 2 * p.SeekFraction * 48000
	if !almostEqual(u.pos, wantPos, 1e-6) {
		t.Fatalf("seek position mismatch: got=%f want=%f", u.pos, wantPos)
	}
	wantEnd := wantPos + dur.Seconds()*u.base*48000
	if !almostEqual(u.end, wantEnd, 1e-6) {
		t.Fatalf("slice end mismatch: got=%f want=%f", u.end, wantEnd)
	}
	if !almostEqual(u.base, 1, 1e-12) {
		t.Fatalf("midpoint pitch should play at rate 1, got %f", u.base)
	}
}

func TestSeekOffset(t *testing.T) {
	s := sampler.Sample{
		Descriptor: sampler.Descriptor{Start: 48, End: 60, Range: true},
		Buffer:     sineBuffer(100, 2, 1000),
	}
	cases := []struct {
		target int
		want   float64
	}{
		{40, 0},
		{48, 0},
		{54, 0.6},
		{60, 1.2},
		{72, 1.2},
	}
	for _, tc := range cases {
		if got := SeekOffset(s, tc.target, 0.6); !almostEqual(got, tc.want, 1e-9) {
			t.Fatalf("SeekOffset(%d) mismatch: got=%f want=%f", tc.target, got, tc.want)
		}
	}

	single := sampler.Sample{Descriptor: sampler.Descriptor{Start: 50, End: 50}, Buffer: sineBuffer(100, 2, 1000)}
	if got := SeekOffset(single, 51, 0.6); !almostEqual(got, 1.2, 1e-9) {
		t.Fatalf("zero-span SeekOffset mismatch: got=%f want=1.2", got)
	}
}

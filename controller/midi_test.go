package controller

import (
	"testing"

	"gitlab.com/gomidi/midi/v2"
)

func TestMIDIReaderMapsDesk(t *testing.T) {
	m := DefaultMIDIMapping()
	r := NewMIDIReader(8, m, nil)

	r.Handle(midi.NoteOn(0, m.BaseNote+2, 100))
	sw, _ := r.ReadSwitches()
	if sw[2] || !sw[0] {
		t.Fatalf("switch levels mismatch after note on: got=%v", sw)
	}
	r.Handle(midi.NoteOff(0, m.BaseNote+2))
	sw, _ = r.ReadSwitches()
	if !sw[2] {
		t.Fatalf("switch 3 should be released: got=%v", sw)
	}

	// Keys outside the bank are ignored.
	r.Handle(midi.NoteOn(0, m.BaseNote-1, 100))
	r.Handle(midi.NoteOn(0, m.BaseNote+8, 100))
	sw, _ = r.ReadSwitches()
	for i, high := range sw {
		if !high {
			t.Fatalf("switch %d pressed by an unmapped key", i+1)
		}
	}

	r.Handle(midi.ControlChange(0, m.ForceCC, 127))
	r.Handle(midi.ControlChange(0, m.BendCC, 64))
	r.Handle(midi.ControlChange(0, m.MotionCC, 127))
	if f, _ := r.ReadForce(); f != m.RawMax {
		t.Fatalf("force mismatch: got=%d want=%d", f, m.RawMax)
	}
	if b, _ := r.ReadBend(); b != 64*m.RawMax/127 {
		t.Fatalf("bend mismatch: got=%d want=%d", b, 64*m.RawMax/127)
	}
	if gx, _, _, _ := r.ReadInertial(); gx != m.MotionMax {
		t.Fatalf("motion mismatch: got=%f want=%f", gx, m.MotionMax)
	}
}

func TestMIDIReaderFeedsController(t *testing.T) {
	cfg := DefaultConfig()
	m := DefaultMIDIMapping()
	r := NewMIDIReader(cfg.NumSwitches, m, nil)
	s := &recordSink{}
	c, err := New(cfg, r, s)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	r.Handle(midi.ControlChange(0, m.BendCC, 127))
	c.PollBend()
	r.Handle(midi.NoteOn(0, m.BaseNote, 90))
	c.PollSwitches()

	ev := s.take()
	if len(ev) != 2 || ev[0].Type != CycleMode || ev[1].Type != NoteOn || ev[1].Degree != 1 {
		t.Fatalf("events mismatch: got=%v", ev)
	}
}

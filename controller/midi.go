package controller

import (
	"fmt"
	"log/slog"
	"sync"

	"gitlab.com/gomidi/midi/v2"
)

// MIDIMapping assigns desk controls to the controller's channels.
type MIDIMapping struct {
	// BaseNote is the key mapped to switch 1; the next keys map upward.
	BaseNote uint8
	ForceCC  uint8
	BendCC   uint8
	MotionCC uint8
	// RawMax is the raw value a CC of 127 maps to.
	RawMax int
	// MotionMax is the angular rate a motion CC of 127 maps to.
	MotionMax float64
}

// DefaultMIDIMapping maps C4 upward to the switches, expression to force,
// breath to bend and the mod wheel to motion.
func DefaultMIDIMapping() MIDIMapping {
	return MIDIMapping{
		BaseNote:  60,
		ForceCC:   11,
		BendCC:    2,
		MotionCC:  1,
		RawMax:    4095,
		MotionMax: 6,
	}
}

// MIDIReader stands in for the sensor board with a MIDI keyboard or desk.
type MIDIReader struct {
	mapping MIDIMapping
	logger  *slog.Logger
	stop    func()

	mu       sync.Mutex
	switches []bool
	force    int
	bend     int
	motion   float64
}

// NewMIDIReader creates a reader with every switch released. Feed it with
// Handle or attach it to a port with ListenMIDI.
func NewMIDIReader(numSwitches int, mapping MIDIMapping, logger *slog.Logger) *MIDIReader {
	if logger == nil {
		logger = slog.Default()
	}
	sw := make([]bool, numSwitches)
	for i := range sw {
		sw[i] = true
	}
	return &MIDIReader{mapping: mapping, logger: logger, switches: sw}
}

// ListenMIDI opens the named input port and feeds its messages to a new
// MIDIReader. A MIDI driver must be registered by the caller.
func ListenMIDI(port string, numSwitches int, mapping MIDIMapping, logger *slog.Logger) (*MIDIReader, error) {
	in, err := midi.FindInPort(port)
	if err != nil {
		return nil, fmt.Errorf("midi: find %q: %w", port, err)
	}
	r := NewMIDIReader(numSwitches, mapping, logger)
	stop, err := midi.ListenTo(in, func(msg midi.Message, _ int32) {
		r.Handle(msg)
	}, midi.HandleError(func(err error) {
		r.logger.Warn("midi: listener error", "device", port, "err", err)
	}))
	if err != nil {
		return nil, fmt.Errorf("midi: listen %q: %w", port, err)
	}
	r.stop = stop
	r.logger.Info("midi: connected", "device", in.String())
	return r, nil
}

// Handle applies one MIDI message.
func (r *MIDIReader) Handle(msg midi.Message) {
	var ch, key, vel, cc, val uint8
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		r.setSwitch(key, false)
	case msg.GetNoteEnd(&ch, &key):
		r.setSwitch(key, true)
	case msg.GetControlChange(&ch, &cc, &val):
		m := r.mapping
		switch cc {
		case m.ForceCC:
			r.force = int(val) * m.RawMax / 127
		case m.BendCC:
			r.bend = int(val) * m.RawMax / 127
		case m.MotionCC:
			r.motion = float64(val) / 127 * m.MotionMax
		default:
			r.logger.Debug("midi: unmapped control change", "cc", cc, "value", val)
		}
	default:
		r.logger.Debug("midi: unhandled message", "msg", msg.String())
	}
}

func (r *MIDIReader) setSwitch(key uint8, high bool) {
	if key < r.mapping.BaseNote {
		return
	}
	i := int(key - r.mapping.BaseNote)
	if i < len(r.switches) {
		r.switches[i] = high
	}
}

func (r *MIDIReader) ReadSwitches() ([]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.switches...), nil
}

func (r *MIDIReader) ReadForce() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.force, nil
}

func (r *MIDIReader) ReadBend() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bend, nil
}

// ReadInertial reports the motion control on the x axis only.
func (r *MIDIReader) ReadInertial() (float64, float64, float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.motion, 0, 0, nil
}

// Close stops listening.
func (r *MIDIReader) Close() {
	if r.stop != nil {
		r.stop()
		r.stop = nil
	}
}

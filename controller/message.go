package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
)

// ErrMalformedMessage marks an inbound message that was dropped.
var ErrMalformedMessage = errors.New("malformed controller message")

// defaultMessageVelocity applies to note_on messages without a velocity.
const defaultMessageVelocity = 0.5

type message struct {
	Type     string   `json:"type"`
	Degree   *int     `json:"degree,omitempty"`
	Velocity *float64 `json:"velocity,omitempty"`
	Amount   *float64 `json:"amount,omitempty"`
	Level    string   `json:"level,omitempty"`
}

// EncodeMessage renders e in the controller wire schema.
func EncodeMessage(e Event) ([]byte, error) {
	m := message{Type: e.Type.String()}
	switch e.Type {
	case NoteOn:
		d, v := e.Degree, clamp(e.Velocity, 0, 1)
		m.Degree, m.Velocity = &d, &v
	case NoteOff:
		d := e.Degree
		m.Degree = &d
	case Vibrato:
		a := clamp(e.Amount, 0, 1)
		m.Amount = &a
	case CycleMode:
	case ForceLevel:
		m.Level = e.Level.String()
	default:
		return nil, fmt.Errorf("encode %s: unknown event type", e.Type)
	}
	return json.Marshal(m)
}

// DecodeMessage parses one wire message. Any error wraps ErrMalformedMessage.
func DecodeMessage(data []byte) (Event, error) {
	var m message
	if err := json.Unmarshal(data, &m); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	switch strings.ToLower(m.Type) {
	case "note_on":
		if m.Degree == nil {
			return Event{}, fmt.Errorf("%w: note_on without degree", ErrMalformedMessage)
		}
		v := defaultMessageVelocity
		if m.Velocity != nil {
			v = *m.Velocity
		}
		if math.IsNaN(v) {
			return Event{}, fmt.Errorf("%w: velocity is NaN", ErrMalformedMessage)
		}
		return Event{Type: NoteOn, Degree: *m.Degree, Velocity: clamp(v, 0, 1)}, nil
	case "note_off":
		if m.Degree == nil {
			return Event{}, fmt.Errorf("%w: note_off without degree", ErrMalformedMessage)
		}
		return Event{Type: NoteOff, Degree: *m.Degree}, nil
	case "vibrato":
		if m.Amount == nil {
			return Event{}, fmt.Errorf("%w: vibrato without amount", ErrMalformedMessage)
		}
		return Event{Type: Vibrato, Amount: clamp(*m.Amount, 0, 1)}, nil
	case "flex":
		return Event{Type: CycleMode}, nil
	case "force_level":
		l, ok := parseLevel(strings.ToLower(m.Level))
		if !ok {
			return Event{}, fmt.Errorf("%w: force level %q", ErrMalformedMessage, m.Level)
		}
		return Event{Type: ForceLevel, Level: l}, nil
	case "":
		return Event{}, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	default:
		return Event{}, fmt.Errorf("%w: unknown type %q", ErrMalformedMessage, m.Type)
	}
}

// ReplayStats counts the outcome of a Replay.
type ReplayStats struct {
	Delivered int
	Dropped   int
	Failed    int
}

// Replay decodes newline separated messages from r and forwards them to
// sink until r is exhausted or ctx is done. Blank lines are skipped and
// malformed lines dropped.
func Replay(ctx context.Context, r io.Reader, sink Sink) (ReplayStats, error) {
	var st ReplayStats
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		e, err := DecodeMessage([]byte(line))
		if err != nil {
			st.Dropped++
			continue
		}
		if err := sink.Send(e); err != nil {
			st.Failed++
			continue
		}
		st.Delivered++
	}
	if err := sc.Err(); err != nil {
		return st, fmt.Errorf("replay: %w", err)
	}
	return st, nil
}

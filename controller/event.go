// Package controller is the physical-controller state machine: it polls
// switches and analog sensors, debounces them and emits normalized events.
package controller

import "fmt"

// EventType tags an Event.
type EventType int

const (
	NoteOn EventType = iota
	NoteOff
	Vibrato
	CycleMode
	// ForceLevel reports a LOW/MID/HIGH bucket change of the force sensor.
	ForceLevel
)

func (t EventType) String() string {
	switch t {
	case NoteOn:
		return "note_on"
	case NoteOff:
		return "note_off"
	case Vibrato:
		return "vibrato"
	case CycleMode:
		return "flex"
	case ForceLevel:
		return "force_level"
	default:
		return fmt.Sprintf("event(%d)", int(t))
	}
}

// Event is one normalized controller command. Only the fields of its Type
// are meaningful.
type Event struct {
	Type     EventType
	Degree   int
	Velocity float64
	Amount   float64
	Level    Level
}

func (e Event) String() string {
	switch e.Type {
	case NoteOn:
		return fmt.Sprintf("note_on degree=%d velocity=%.3f", e.Degree, e.Velocity)
	case NoteOff:
		return fmt.Sprintf("note_off degree=%d", e.Degree)
	case Vibrato:
		return fmt.Sprintf("vibrato amount=%.3f", e.Amount)
	case ForceLevel:
		return fmt.Sprintf("force_level level=%s", e.Level)
	default:
		return e.Type.String()
	}
}

// Level is a force bucket.
type Level int

const (
	Low Level = iota
	Mid
	High
)

func (l Level) String() string {
	switch l {
	case Mid:
		return "mid"
	case High:
		return "high"
	default:
		return "low"
	}
}

func parseLevel(s string) (Level, bool) {
	switch s {
	case "low":
		return Low, true
	case "mid":
		return Mid, true
	case "high":
		return High, true
	}
	return Low, false
}

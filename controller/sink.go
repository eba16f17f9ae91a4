package controller

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/cwbudde/algo-jam/play"
)

// Performer is the command surface events are dispatched to.
type Performer interface {
	NoteOn(degree int, velocity float64)
	NoteOff(degree int)
	SetVibratoAmount(x float64)
	CycleMode() play.Mode
}

// DispatchSink applies events to a Performer directly.
type DispatchSink struct {
	Performer Performer
	Logger    *slog.Logger
}

func (d DispatchSink) Send(e Event) error {
	switch e.Type {
	case NoteOn:
		d.Performer.NoteOn(e.Degree, e.Velocity)
	case NoteOff:
		d.Performer.NoteOff(e.Degree)
	case Vibrato:
		d.Performer.SetVibratoAmount(e.Amount)
	case CycleMode:
		m := d.Performer.CycleMode()
		if d.Logger != nil {
			d.Logger.Debug("mode cycled", "mode", m)
		}
	case ForceLevel:
		if d.Logger != nil {
			d.Logger.Debug("force level", "level", e.Level)
		}
	default:
		return fmt.Errorf("dispatch: unknown event type %s", e.Type)
	}
	return nil
}

// JSONSink writes one encoded message per line.
type JSONSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{w: w}
}

func (s *JSONSink) Send(e Event) error {
	data, err := EncodeMessage(e)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(data); err != nil {
		return fmt.Errorf("json sink: %w", err)
	}
	return nil
}

// MultiSink sends to every sink and returns the first error.
type MultiSink []Sink

func (m MultiSink) Send(e Event) error {
	var first error
	for _, s := range m {
		if err := s.Send(e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

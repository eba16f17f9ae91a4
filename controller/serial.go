package controller

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.bug.st/serial"
)

// SerialReader keeps the latest snapshot streamed by the sensor board. The
// Reader methods never block; they return the most recent values.
type SerialReader struct {
	numSwitches int
	logger      *slog.Logger
	closer      io.Closer

	mu   sync.Mutex
	snap Snapshot
	have bool

	frames atomic.Int64
	bad    atomic.Int64
	done   chan struct{}
	err    error
}

// NewStreamReader starts decoding snapshot frames from r in the background.
// If r is also an io.Closer, Close closes it.
func NewStreamReader(r io.Reader, numSwitches int, logger *slog.Logger) *SerialReader {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SerialReader{
		numSwitches: numSwitches,
		logger:      logger,
		done:        make(chan struct{}),
	}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	go s.loop(NewFrameDecoder(r))
	return s
}

// OpenSerial opens the named device and streams snapshots from it.
func OpenSerial(name string, baud int, numSwitches int, logger *slog.Logger) (*SerialReader, error) {
	p, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", name, err)
	}
	if logger != nil {
		logger.Info("serial: port opened", "device", name, "baud", baud)
	}
	return NewStreamReader(p, numSwitches, logger), nil
}

func (s *SerialReader) loop(dec *FrameDecoder) {
	defer close(s.done)
	for {
		cmd, payload, err := dec.Next()
		if errors.Is(err, ErrBadChecksum) {
			s.bad.Add(1)
			s.logger.Debug("serial: dropped frame", "err", err)
			continue
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Warn("serial: read loop ended", "err", err)
			}
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			return
		}
		if cmd != CmdSnapshot {
			s.logger.Debug("serial: ignoring frame", "cmd", cmd)
			continue
		}
		snap, err := DecodeSnapshot(payload)
		if err != nil {
			s.bad.Add(1)
			s.logger.Debug("serial: dropped snapshot", "err", err)
			continue
		}
		s.mu.Lock()
		s.snap = snap
		s.have = true
		s.mu.Unlock()
		s.frames.Add(1)
	}
}

func (s *SerialReader) latest() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.have {
		if s.err != nil {
			return Snapshot{}, fmt.Errorf("%w: %v", ErrNoData, s.err)
		}
		return Snapshot{}, ErrNoData
	}
	return s.snap, nil
}

func (s *SerialReader) ReadSwitches() ([]bool, error) {
	snap, err := s.latest()
	if err != nil {
		return nil, err
	}
	return snap.Levels(s.numSwitches), nil
}

func (s *SerialReader) ReadForce() (int, error) {
	snap, err := s.latest()
	return int(snap.Force), err
}

func (s *SerialReader) ReadBend() (int, error) {
	snap, err := s.latest()
	return int(snap.Bend), err
}

func (s *SerialReader) ReadInertial() (float64, float64, float64, error) {
	snap, err := s.latest()
	return snap.GX, snap.GY, snap.GZ, err
}

// Frames returns the number of snapshots received and frames dropped.
func (s *SerialReader) Frames() (received, dropped int64) {
	return s.frames.Load(), s.bad.Load()
}

// Done is closed when the stream ends.
func (s *SerialReader) Done() <-chan struct{} { return s.done }

// Close closes the underlying stream when it is closable.
func (s *SerialReader) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

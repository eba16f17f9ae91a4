package main

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/cwbudde/algo-jam/synth"
)

func TestEngineStreamEncodesFloat32LE(t *testing.T) {
	engine := synth.NewEngine(8000, nil)
	engine.StartSustained("a", []int{69}, synth.Oscillator{}, 1, 0)

	s := &engineStream{engine: engine}
	buf := make([]byte, 4*800+3)
	n, err := s.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 4*800 {
		t.Fatalf("byte count mismatch: got=%d want=%d", n, 4*800)
	}
	if now := engine.Now(); now != 100*time.Millisecond {
		t.Fatalf("clock should follow reads: got=%v want=100ms", now)
	}

	var peak float64
	for i := 0; i < 800; i++ {
		v := math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
		if math.IsNaN(float64(v)) {
			t.Fatalf("NaN at frame %d", i)
		}
		peak = math.Max(peak, math.Abs(float64(v)))
	}
	if peak < 0.1 || peak > 1 {
		t.Fatalf("unexpected peak: %f", peak)
	}
}

func TestEngineStreamShortBuffer(t *testing.T) {
	s := &engineStream{engine: synth.NewEngine(8000, nil)}
	n, err := s.Read(make([]byte, 3))
	if n != 0 || err != nil {
		t.Fatalf("short read mismatch: n=%d err=%v", n, err)
	}
}

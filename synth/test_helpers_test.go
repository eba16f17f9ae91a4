package synth

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/cwbudde/algo-jam/sampler"
)

func sineBuffer(freq float64, seconds float64, sampleRate int) *sampler.Buffer {
	n := int(seconds * float64(sampleRate))
	data := make([]float32, n)
	for i := range data {
		data[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return &sampler.Buffer{Data: data, SampleRate: sampleRate}
}

func mustLibrary(t *testing.T, name string, entries ...sampler.Entry) *sampler.Library {
	t.Helper()
	lib, err := sampler.NewLibrary(name, entries)
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}
	return lib
}

func newVirtualEngine(sampleRate int) (*Engine, *VirtualClock) {
	clk := &VirtualClock{}
	return NewEngine(sampleRate, NewDefaultParams(), WithClock(clk)), clk
}

var errUnplayable = errors.New("unplayable pitch")

// flakyTimbre fails to build units for the listed pitches.
type flakyTimbre struct {
	fail map[int]bool
}

func (f flakyTimbre) Name() string   { return "flaky" }
func (f flakyTimbre) Sustains() bool { return true }

func (f flakyTimbre) sustained(pitch int, when time.Duration) (*unit, error) {
	if f.fail[pitch] {
		return nil, fmt.Errorf("pitch %d: %w", pitch, errUnplayable)
	}
	return newOscillatorUnit(Sine, PitchToFreq(pitch), when), nil
}

func (f flakyTimbre) oneShot(pitch int, when, _ time.Duration, _ *Params) (*unit, error) {
	return f.sustained(pitch, when)
}

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// Package sampler indexes decoded instrument recordings by pitch.
package sampler

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/cwbudde/algo-jam/harmony"
)

// ErrNoMatch is returned when a library holds no usable sample.
var ErrNoMatch = errors.New("sampler: no matching sample")

// Buffer is decoded mono PCM.
type Buffer struct {
	Data       []float32
	SampleRate int
}

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Data)) / float64(b.SampleRate)
}

// Descriptor is the parsed pitch coverage of one recording.
type Descriptor struct {
	Start int
	End   int
	Range bool
}

// ParseDescriptor parses "C4", "60", "A3-C4" or "57-60". Ranges are inclusive
// and may be written in either order.
func ParseDescriptor(s string) (Descriptor, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Descriptor{}, fmt.Errorf("empty sample descriptor")
	}
	if i := rangeSeparator(s); i > 0 {
		lo, err := harmony.ParseNote(s[:i])
		if err != nil {
			return Descriptor{}, fmt.Errorf("descriptor %q: %w", s, err)
		}
		hi, err := harmony.ParseNote(s[i+1:])
		if err != nil {
			return Descriptor{}, fmt.Errorf("descriptor %q: %w", s, err)
		}
		if hi < lo {
			lo, hi = hi, lo
		}
		return Descriptor{Start: lo, End: hi, Range: true}, nil
	}
	p, err := harmony.ParseNote(s)
	if err != nil {
		return Descriptor{}, fmt.Errorf("descriptor %q: %w", s, err)
	}
	return Descriptor{Start: p, End: p}, nil
}

// rangeSeparator finds the '-' between two notes. Octave -1 ("C-1") uses a
// minus too, so only a '-' directly after a digit separates.
func rangeSeparator(s string) int {
	for i := 1; i < len(s)-1; i++ {
		if s[i] != '-' {
			continue
		}
		prev := s[i-1]
		if prev < '0' || prev > '9' {
			continue
		}
		return i
	}
	return -1
}

// Sample is one immutable recording and its pitch coverage.
type Sample struct {
	Descriptor
	Buffer *Buffer
	Source string
}

// Pitch returns the exact pitch of a single-note sample, or the range start.
func (s Sample) Pitch() int { return s.Start }

// Span is End-Start, zero for single-note samples.
func (s Sample) Span() int { return s.End - s.Start }

// Midpoint is the range center, or the exact pitch for single-note samples.
func (s Sample) Midpoint() float64 {
	return float64(s.Start+s.End) / 2
}

// Contains reports whether target lies within the sample's inclusive range.
func (s Sample) Contains(target int) bool {
	return target >= s.Start && target <= s.End
}

// ReferencePitch is the pitch at which the recording plays at rate 1.
func (s Sample) ReferencePitch() float64 {
	if s.Range {
		return s.Midpoint()
	}
	return float64(s.Start)
}

// PlaybackRate is the rate that shifts the sample to target.
func (s Sample) PlaybackRate(target int) float64 {
	return math.Pow(2, (float64(target)-s.ReferencePitch())/12)
}

// Entry pairs a descriptor string with its decoded buffer.
type Entry struct {
	Descriptor string
	Buffer     *Buffer
	Source     string
}

// Library is the per-instrument sample index. It is never mutated after
// NewLibrary returns and is safe for concurrent readers.
type Library struct {
	name    string
	samples []Sample
}

// NewLibrary parses and sorts entries ascending by pitch (start pitch for ranges).
func NewLibrary(name string, entries []Entry) (*Library, error) {
	samples := make([]Sample, 0, len(entries))
	for _, e := range entries {
		d, err := ParseDescriptor(e.Descriptor)
		if err != nil {
			return nil, fmt.Errorf("library %s: %w", name, err)
		}
		if e.Buffer == nil || len(e.Buffer.Data) == 0 {
			return nil, fmt.Errorf("library %s: empty buffer for %q", name, e.Descriptor)
		}
		src := e.Source
		if src == "" {
			src = e.Descriptor
		}
		samples = append(samples, Sample{Descriptor: d, Buffer: e.Buffer, Source: src})
	}
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Start < samples[j].Start
	})
	return &Library{name: name, samples: samples}, nil
}

// Name returns the instrument name the library was built for.
func (l *Library) Name() string {
	if l == nil {
		return ""
	}
	return l.name
}

// Len returns the number of samples.
func (l *Library) Len() int {
	if l == nil {
		return 0
	}
	return len(l.samples)
}

// Samples returns a copy of the sorted sample list.
func (l *Library) Samples() []Sample {
	if l == nil {
		return nil
	}
	out := make([]Sample, len(l.samples))
	copy(out, l.samples)
	return out
}

// NearestSingle returns the sample whose pitch is closest to target. Ties go
// to the earlier sample in ascending order.
func (l *Library) NearestSingle(target int) (Sample, bool) {
	if l.Len() == 0 {
		return Sample{}, false
	}
	best := 0
	bestDist := absInt(l.samples[0].Pitch() - target)
	for i := 1; i < len(l.samples); i++ {
		d := absInt(l.samples[i].Pitch() - target)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return l.samples[best], true
}

// BestRange returns the narrowest sample containing target. When no sample
// contains it, the sample with the closest midpoint wins.
func (l *Library) BestRange(target int) (Sample, bool) {
	if l.Len() == 0 {
		return Sample{}, false
	}
	best := -1
	for i, s := range l.samples {
		if !s.Contains(target) {
			continue
		}
		if best < 0 || s.Span() < l.samples[best].Span() {
			best = i
		}
	}
	if best >= 0 {
		return l.samples[best], true
	}

	best = 0
	bestDist := math.Abs(float64(target) - l.samples[0].Midpoint())
	for i := 1; i < len(l.samples); i++ {
		d := math.Abs(float64(target) - l.samples[i].Midpoint())
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return l.samples[best], true
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

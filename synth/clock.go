package synth

import (
	"sync"
	"sync/atomic"
	"time"
)

// Clock is the monotonic timeline every scheduling call is expressed on.
type Clock interface {
	Now() time.Duration
}

// FrameClock is a Clock driven by rendered audio frames.
type FrameClock interface {
	Clock
	AdvanceFrames(n int)
}

// SampleClock counts frames handed to the audio device. Now is the start
// time of the next frame to be rendered.
type SampleClock struct {
	sampleRate int
	frames     atomic.Int64
}

// NewSampleClock creates a clock for the given output rate.
func NewSampleClock(sampleRate int) *SampleClock {
	return &SampleClock{sampleRate: sampleRate}
}

func (c *SampleClock) Now() time.Duration {
	return framesToDuration(c.frames.Load(), c.sampleRate)
}

func (c *SampleClock) AdvanceFrames(n int) {
	c.frames.Add(int64(n))
}

// VirtualClock is a manually driven clock for tests and offline scripts.
type VirtualClock struct {
	mu  sync.Mutex
	now time.Duration
}

func (c *VirtualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t. Moving backwards is ignored.
func (c *VirtualClock) Set(t time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t > c.now {
		c.now = t
	}
}

// Advance moves the clock forward by d.
func (c *VirtualClock) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}

func framesToDuration(frames int64, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(frames * int64(time.Second) / int64(sampleRate))
}

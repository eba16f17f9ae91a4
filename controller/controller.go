package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrNoData is returned by readers that have not received a reading yet.
var ErrNoData = errors.New("no sensor data yet")

// Reader is the hardware side: one call per channel per poll.
type Reader interface {
	// ReadSwitches returns one level per switch, true for HIGH (released).
	ReadSwitches() ([]bool, error)
	ReadForce() (int, error)
	ReadBend() (int, error)
	// ReadInertial returns the gyro's angular rates.
	ReadInertial() (gx, gy, gz float64, err error)
}

// Sink receives emitted events. Send must not block for long; failures are
// counted and never retried.
type Sink interface {
	Send(Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event) error

func (f SinkFunc) Send(e Event) error { return f(e) }

// Stats are the controller's counters.
type Stats struct {
	Sent       int64
	Failed     int64
	ReadErrors int64
}

// SensorState is the latest reading of the analog channels and what the
// controller derived from them. It changes once per poll tick.
type SensorState struct {
	ForceRaw     int
	ForceLevel   Level
	Velocity     float64 // carried by the next NoteOn
	BendRaw      int
	BendActive   bool
	GyroSmoothed float64 // vibrato amount in [0,1]
}

// Controller polls a Reader and emits events to a Sink.
type Controller struct {
	cfg    Config
	reader Reader
	sink   Sink
	logger *slog.Logger
	now    func() time.Time

	mu            sync.Mutex
	switches      *SwitchBank
	force         *ForceChannel
	bend          *SchmittTrigger
	inertial      *InertialChannel
	state         SensorState
	debounceUntil time.Time

	sent       atomic.Int64
	failed     atomic.Int64
	readErrors atomic.Int64
}

// Option configures a Controller.
type Option func(*Controller)

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithNow replaces the wall clock used for debouncing.
func WithNow(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New validates cfg and creates a controller.
func New(cfg Config, r Reader, s Sink, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("controller config: %w", err)
	}
	if r == nil || s == nil {
		return nil, fmt.Errorf("controller needs a reader and a sink")
	}
	c := &Controller{
		cfg:      cfg,
		reader:   r,
		sink:     s,
		logger:   slog.Default(),
		now:      time.Now,
		switches: NewSwitchBank(cfg.NumSwitches),
		force:    NewForceChannel(cfg.Force),
		bend:     NewSchmittTrigger(cfg.Bend.On, cfg.Bend.Off),
		inertial: NewInertialChannel(cfg.Inertial),
		state: SensorState{
			ForceLevel: Low,
			Velocity:   cfg.Force.DefaultFloor,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Velocity returns the velocity the next NoteOn will carry.
func (c *Controller) Velocity() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Velocity
}

// State returns a snapshot of the sensor state.
func (c *Controller) State() SensorState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns a snapshot of the counters.
func (c *Controller) Stats() Stats {
	return Stats{
		Sent:       c.sent.Load(),
		Failed:     c.failed.Load(),
		ReadErrors: c.readErrors.Load(),
	}
}

func (c *Controller) emit(events ...Event) {
	for _, e := range events {
		if err := c.sink.Send(e); err != nil {
			c.failed.Add(1)
			c.logger.Debug("send failed", "event", e.Type, "err", err)
			continue
		}
		c.sent.Add(1)
	}
}

func (c *Controller) readFailed(channel string, err error) {
	c.readErrors.Add(1)
	c.logger.Debug("read failed", "channel", channel, "err", err)
}

// PollSwitches scans all switches once. Scans inside the debounce window
// after the previous scan are skipped.
func (c *Controller) PollSwitches() {
	now := c.now()
	c.mu.Lock()
	if now.Before(c.debounceUntil) {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	levels, err := c.reader.ReadSwitches()
	if err != nil {
		c.readFailed("switches", err)
		return
	}

	c.mu.Lock()
	events := c.switches.Scan(levels, c.state.Velocity)
	c.debounceUntil = now.Add(c.cfg.DebounceDelay)
	c.mu.Unlock()
	c.emit(events...)
}

// PollForce updates velocity and emits ForceLevel on bucket transitions.
func (c *Controller) PollForce() {
	raw, err := c.reader.ReadForce()
	if err != nil {
		c.readFailed("force", err)
		return
	}
	c.mu.Lock()
	v, level, changed := c.force.Update(raw)
	c.state.ForceRaw = raw
	c.state.ForceLevel = level
	c.state.Velocity = v
	c.mu.Unlock()
	if changed {
		c.emit(Event{Type: ForceLevel, Level: level})
	}
}

// PollBend emits CycleMode when the flex trigger fires.
func (c *Controller) PollBend() {
	raw, err := c.reader.ReadBend()
	if err != nil {
		c.readFailed("bend", err)
		return
	}
	c.mu.Lock()
	fired := c.bend.Update(raw)
	c.state.BendRaw = raw
	c.state.BendActive = c.bend.Triggered()
	c.mu.Unlock()
	if fired {
		c.emit(Event{Type: CycleMode})
	}
}

// PollInertial emits Vibrato every tick.
func (c *Controller) PollInertial() {
	gx, gy, gz, err := c.reader.ReadInertial()
	if err != nil {
		c.readFailed("inertial", err)
		return
	}
	c.mu.Lock()
	amount := c.inertial.Update(gx, gy, gz)
	c.state.GyroSmoothed = amount
	c.mu.Unlock()
	c.emit(Event{Type: Vibrato, Amount: amount})
}

// Run polls every channel on its own period until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	sw := time.NewTicker(c.cfg.SwitchPeriod)
	defer sw.Stop()
	fo := time.NewTicker(c.cfg.ForcePeriod)
	defer fo.Stop()
	be := time.NewTicker(c.cfg.BendPeriod)
	defer be.Stop()
	in := time.NewTicker(c.cfg.InertialPeriod)
	defer in.Stop()

	c.logger.Info("controller running", "switches", c.cfg.NumSwitches)
	for {
		select {
		case <-ctx.Done():
			st := c.Stats()
			c.logger.Info("controller stopped", "sent", st.Sent, "failed", st.Failed, "read_errors", st.ReadErrors)
			return ctx.Err()
		case <-sw.C:
			c.PollSwitches()
		case <-fo.C:
			c.PollForce()
		case <-be.C:
			c.PollBend()
		case <-in.C:
			c.PollInertial()
		}
	}
}

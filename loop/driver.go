// Package loop paces the simulation: one fixed step per wall period, events
// dispatched right after each step, and no catch-up after an overrun.
package loop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/milk9111/contactsim/event"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/milk9111/contactsim/loop"

var (
	ErrNoStepper = errors.New("loop: nil stepper")
	ErrNotIdle   = errors.New("loop: driver already started")
)

// Stepper advances the simulation by dt seconds and returns the step's raw
// notifications.
type Stepper interface {
	Step(dt float64) event.Batch
}

type Dispatcher interface {
	Dispatch(b event.Batch) int
}

type DispatcherFunc func(b event.Batch) int

func (f DispatcherFunc) Dispatch(b event.Batch) int { return f(b) }

// Updater runs once per iteration after dispatch.
type Updater interface {
	Update(dt float64)
}

type UpdaterFunc func(dt float64)

func (f UpdaterFunc) Update(dt float64) { f(dt) }

type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "invalid"
	}
}

type Stats struct {
	Iterations  uint64
	Overruns    uint64
	Records     uint64
	LastElapsed time.Duration
}

type Option func(*Driver)

func WithUpdater(u Updater) Option {
	return func(d *Driver) { d.updater = u }
}

func WithTimeProvider(p TimeProvider) Option {
	return func(d *Driver) {
		if p != nil {
			d.now = p
		}
	}
}

func WithSleeper(s Sleeper) Option {
	return func(d *Driver) {
		if s != nil {
			d.sleeper = s
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(d *Driver) {
		if t != nil {
			d.tracer = t
		}
	}
}

// Driver runs the fixed-step loop. A driver runs once; after Run returns it
// stays stopped.
type Driver struct {
	clock      *Clock
	stepper    Stepper
	dispatcher Dispatcher
	updater    Updater
	now        TimeProvider
	sleeper    Sleeper
	tracer     trace.Tracer

	state    atomic.Int32
	stop     chan struct{}
	stopOnce sync.Once

	mu    sync.RWMutex
	stats Stats
}

func NewDriver(clock *Clock, stepper Stepper, dispatcher Dispatcher, opts ...Option) (*Driver, error) {
	if stepper == nil {
		return nil, ErrNoStepper
	}
	if clock == nil {
		clock = NewClock(0, 1)
	}
	d := &Driver{
		clock:      clock,
		stepper:    stepper,
		dispatcher: dispatcher,
		now:        RealTime{},
		sleeper:    RealTime{},
		tracer:     otel.Tracer(tracerName),
		stop:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *Driver) Clock() *Clock {
	return d.clock
}

func (d *Driver) State() State {
	return State(d.state.Load())
}

func (d *Driver) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stats
}

// Stop asks the loop to end at the next iteration boundary. It is safe to
// call from any goroutine and more than once.
func (d *Driver) Stop() {
	d.stopOnce.Do(func() { close(d.stop) })
}

// Run steps until ctx is cancelled or Stop is called.
func (d *Driver) Run(ctx context.Context) error {
	return d.run(ctx, -1)
}

// RunSteps runs at most n iterations.
func (d *Driver) RunSteps(ctx context.Context, n int) error {
	if n < 0 {
		n = 0
	}
	return d.run(ctx, n)
}

func (d *Driver) run(ctx context.Context, limit int) error {
	if !d.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrNotIdle
	}
	defer d.state.Store(int32(StateStopped))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-d.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	for i := 0; limit < 0 || i < limit; i++ {
		if d.stopped(ctx) {
			return nil
		}
		if err := d.iterate(ctx); err != nil {
			if d.stopped(ctx) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (d *Driver) stopped(ctx context.Context) bool {
	select {
	case <-d.stop:
		return true
	default:
	}
	return ctx.Err() != nil
}

func (d *Driver) iterate(ctx context.Context) error {
	start := d.now.Now()
	_, span := d.tracer.Start(ctx, "loop.step")

	dt := d.clock.StepSeconds()
	batch := d.stepper.Step(dt)
	records := 0
	if d.dispatcher != nil {
		records = d.dispatcher.Dispatch(batch)
	}
	if d.updater != nil {
		d.updater.Update(dt)
	}
	d.clock.advance(start)

	elapsed := d.now.Now().Sub(start)
	overrun := elapsed >= d.clock.FixedStep

	span.SetAttributes(
		attribute.Int64("sim.step", int64(d.clock.Steps)),
		attribute.Int("sim.records", records),
		attribute.Bool("sim.overrun", overrun),
	)
	span.End()

	d.mu.Lock()
	d.stats.Iterations++
	d.stats.Records += uint64(records)
	d.stats.LastElapsed = elapsed
	if overrun {
		d.stats.Overruns++
	}
	d.mu.Unlock()

	if overrun {
		return nil
	}
	return d.sleeper.Sleep(ctx, d.clock.FixedStep-elapsed)
}

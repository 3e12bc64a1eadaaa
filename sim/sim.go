// Package sim assembles a runnable simulation from a scene spec: the ECS
// world, the physics adapter, the classifier and its sinks, the post-step
// systems and the loop driver.
package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/contactsim/common"
	"github.com/milk9111/contactsim/config"
	"github.com/milk9111/contactsim/ecs"
	"github.com/milk9111/contactsim/ecs/component"
	"github.com/milk9111/contactsim/ecs/entity"
	"github.com/milk9111/contactsim/ecs/system"
	"github.com/milk9111/contactsim/event"
	"github.com/milk9111/contactsim/filter"
	"github.com/milk9111/contactsim/loop"
	"github.com/milk9111/contactsim/physics"
	"github.com/milk9111/contactsim/prefabs"
	"github.com/milk9111/contactsim/sink"
)

var ErrNoScene = errors.New("sim: scene spec is nil")

type Options struct {
	Scene   *prefabs.SceneSpec
	Runtime config.Runtime

	// Out receives the console lines. Nil disables the log sink.
	Out      io.Writer
	Quiet    bool
	Advances bool

	// Sink receives every record in addition to the configured sinks.
	Sink event.Sink

	TimeProvider loop.TimeProvider
	Sleeper      loop.Sleeper
}

// Simulation owns everything one run needs. Close releases it.
type Simulation struct {
	World      *ecs.World
	Physics    *physics.World
	Scene      *entity.Scene
	Classifier *event.Classifier
	Scheduler  *ecs.Scheduler
	Poses      *system.PoseSnapshots
	Driver     *loop.Driver
	Sinks      *sink.Fanout
	Log        *sink.LogSink
	Journal    *sink.Journal
	Script     *sink.ScriptSink

	steps  int
	closed bool
}

func New(opts Options) (*Simulation, error) {
	spec := opts.Scene
	if spec == nil {
		return nil, ErrNoScene
	}
	policy, err := filter.ParsePolicy(spec.Filter.Policy)
	if err != nil {
		return nil, fmt.Errorf("sim: %w", err)
	}

	s := &Simulation{World: ecs.NewWorld(), steps: opts.Runtime.Steps}
	s.Physics, err = physics.NewWorld(s.World, physics.Config{
		Gravity:            spec.World.Gravity.Vector(),
		Iterations:         spec.World.Iterations,
		SleepTimeThreshold: spec.World.SleepTimeThreshold,
		Substeps:           spec.World.Substeps,
		PosePreview:        spec.World.PosePreview,
		Policy:             policy,
	})
	if err != nil {
		return nil, fmt.Errorf("sim: %w", err)
	}

	s.Scene, err = entity.BuildScene(s.World, s.Physics, spec)
	if err != nil {
		s.Physics.Close()
		return nil, fmt.Errorf("sim: %w", err)
	}

	if err := s.openSinks(opts, spec); err != nil {
		_ = s.Close()
		return nil, err
	}
	s.Classifier = event.NewClassifier(s.Physics, s.Sinks)

	s.Poses = system.NewPoseSnapshots()
	s.Scheduler = ecs.NewScheduler(system.NewCharacterSystem(), s.Poses)

	clock := loop.NewClock(fixedStep(opts.Runtime, spec), timeScale(opts.Runtime, spec))
	s.Driver, err = loop.NewDriver(clock, s.Physics, s.Classifier,
		loop.WithUpdater(loop.UpdaterFunc(func(dt float64) { s.Scheduler.Update(s.World, dt) })),
		loop.WithTimeProvider(opts.TimeProvider),
		loop.WithSleeper(opts.Sleeper),
	)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("sim: %w", err)
	}
	return s, nil
}

func (s *Simulation) openSinks(opts Options, spec *prefabs.SceneSpec) error {
	s.Sinks = sink.NewFanout()
	if opts.Out != nil {
		s.Log = sink.NewLogSink(opts.Out, sink.WithQuiet(opts.Quiet), sink.WithAdvances(opts.Advances))
		s.Sinks.Add("log", s.Log)
	}

	if path := opts.Runtime.Journal; path != "" {
		j, err := sink.OpenJournal(path)
		if err != nil {
			return fmt.Errorf("sim: journal: %w", err)
		}
		s.Journal = j
		s.Sinks.Add("journal", j)
		log.Printf("Simulation: journaling run %s to %s", j.RunID(), path)
	}

	script := spec.Script
	if opts.Runtime.Script != "" {
		script = opts.Runtime.Script
	}
	if script != "" {
		src, err := prefabs.LoadScript(script)
		if err != nil {
			return fmt.Errorf("sim: load script %s: %w", script, err)
		}
		sc, err := sink.NewScriptSink(script, src)
		if err != nil {
			return fmt.Errorf("sim: %w", err)
		}
		s.Script = sc
		s.Sinks.Add("script", sc)
	}

	s.Sinks.Add("extra", opts.Sink)
	return nil
}

func fixedStep(rt config.Runtime, spec *prefabs.SceneSpec) time.Duration {
	if rt.FixedStep > 0 {
		return rt.FixedStep
	}
	return common.FixedStep(spec.Loop.TickRate)
}

func timeScale(rt config.Runtime, spec *prefabs.SceneSpec) float64 {
	if rt.TimeScale > 0 {
		return rt.TimeScale
	}
	return spec.Loop.TimeScale
}

// Run drives the loop until ctx is done, Stop is called, or the configured
// step count is reached.
func (s *Simulation) Run(ctx context.Context) error {
	if s.steps > 0 {
		return s.Driver.RunSteps(ctx, s.steps)
	}
	return s.Driver.Run(ctx)
}

func (s *Simulation) Stop() {
	if s.Driver != nil {
		s.Driver.Stop()
	}
}

// Actor resolves a scene actor by name.
func (s *Simulation) Actor(name string) (ecs.Entity, bool) {
	return s.Scene.Actor(name)
}

// Name returns the scene name of an actor, or its entity string.
func (s *Simulation) Name(e ecs.Entity) string {
	if n, ok := ecs.Get(s.World, e, component.NameComponent.Kind()); ok {
		return n.Value
	}
	return e.String()
}

// Body returns an actor's Chipmunk body.
func (s *Simulation) Body(name string) (*cp.Body, bool) {
	e, ok := s.Actor(name)
	if !ok {
		return nil, false
	}
	pb, ok := ecs.Get(s.World, e, component.PhysicsBodyComponent.Kind())
	if !ok {
		return nil, false
	}
	return pb.Body, pb.Body != nil
}

// Close stops the driver, closes the sinks (the log sink prints its summary)
// and drops the physics world. It is safe to call twice.
func (s *Simulation) Close() error {
	if s == nil || s.closed {
		return nil
	}
	s.closed = true
	s.Stop()

	var err error
	if s.Sinks != nil {
		err = s.Sinks.Close()
	}
	if s.Classifier != nil {
		st := s.Classifier.Stats()
		log.Printf("Simulation: %d records, %d suppressed, %d unresolved, %d sink errors",
			st.Emitted, st.Suppressed, st.Unresolved, st.SinkErrors)
	}
	if s.Physics != nil {
		s.Physics.Close()
	}
	return err
}

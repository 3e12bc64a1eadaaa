// Package physics adapts a Chipmunk2D space to the tagging and notification
// model: actors are tagged before they enter the space, every candidate pair
// goes through a filter.Policy, and each Step returns the step's raw
// notifications as an event.Batch.
package physics

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/contactsim/ecs"
	"github.com/milk9111/contactsim/ecs/component"
	"github.com/milk9111/contactsim/event"
	"github.com/milk9111/contactsim/filter"
)

// Every tagged shape shares one collision type so a single handler sees all
// tagged pairs and can apply the policy to them.
const collisionTypeTagged cp.CollisionType = 1

var (
	ErrNoWorld         = errors.New("physics: nil ecs world")
	ErrNoBody          = errors.New("physics: actor has no body")
	ErrAlreadyTagged   = errors.New("physics: actor already tagged")
	ErrUntagged        = errors.New("physics: actor is not tagged")
	ErrAlreadyAdmitted = errors.New("physics: actor already admitted")
	ErrInvalidCategory = errors.New("physics: invalid category")
)

type Config struct {
	Gravity            cp.Vector
	Iterations         uint
	SleepTimeThreshold float64
	// Substeps splits each step into equal solver sub-steps.
	Substeps int
	// PosePreview reports the pose of every awake dynamic body after each
	// sub-step.
	PosePreview bool
	Policy      filter.Policy
}

type trackedBody struct {
	entity   ecs.Entity
	body     *cp.Body
	sleeping bool
}

type joint struct {
	name       string
	constraint *cp.Constraint
	a, b       ecs.Entity
	breakForce float64
	broken     bool
}

// World owns the Chipmunk space and the actor side tables. It is driven from
// a single goroutine.
type World struct {
	ecs           *ecs.World
	space         *cp.Space
	policy        filter.Policy
	buffers       *ShapeBuffers
	substeps      int
	posePreview   bool
	handlersReady bool

	bodyToEntity map[*cp.Body]ecs.Entity
	shapeIDs     map[*cp.Shape]uint32
	admitted     map[ecs.Entity]bool
	dynamic      []*trackedBody
	joints       map[*cp.Constraint]*joint

	step    uint64
	simTime time.Duration
	lastDt  float64
	batch   event.Batch
}

// NewWorld creates a physics world whose actors live in w.
func NewWorld(w *ecs.World, cfg Config) (*World, error) {
	if w == nil {
		return nil, ErrNoWorld
	}
	if cfg.Iterations == 0 {
		cfg.Iterations = 10
	}
	if cfg.Substeps <= 0 {
		cfg.Substeps = 1
	}
	if cfg.Policy == nil {
		cfg.Policy = filter.InterestPolicy
	}

	space := cp.NewSpace()
	space.Iterations = cfg.Iterations
	space.SetGravity(cfg.Gravity)
	if cfg.SleepTimeThreshold > 0 {
		space.SleepTimeThreshold = cfg.SleepTimeThreshold
	}

	pw := &World{
		ecs:          w,
		space:        space,
		policy:       cfg.Policy,
		buffers:      NewShapeBuffers(),
		substeps:     cfg.Substeps,
		posePreview:  cfg.PosePreview,
		bodyToEntity: make(map[*cp.Body]ecs.Entity),
		shapeIDs:     make(map[*cp.Shape]uint32),
		admitted:     make(map[ecs.Entity]bool),
		joints:       make(map[*cp.Constraint]*joint),
	}
	pw.setupHandlers()
	return pw, nil
}

// Space returns the underlying Chipmunk space.
func (pw *World) Space() *cp.Space {
	if pw == nil {
		return nil
	}
	return pw.space
}

// Buffers exposes the scratch buffer pool used while tagging.
func (pw *World) Buffers() *ShapeBuffers {
	if pw == nil {
		return nil
	}
	return pw.buffers
}

// StepCount returns the number of completed steps.
func (pw *World) StepCount() uint64 {
	if pw == nil {
		return 0
	}
	return pw.step
}

// Tag binds tag to the actor e. The actor must carry a PhysicsBody; each of
// its shapes is stamped with the same filter datum and the body is recorded
// in the body->entity side table. A tag is written once.
func (pw *World) Tag(e ecs.Entity, tag filter.Tag) error {
	if pw == nil || pw.ecs == nil {
		return ErrNoWorld
	}
	if !tag.Category.Valid() {
		return fmt.Errorf("%w: %v", ErrInvalidCategory, tag.Category)
	}
	pb, ok := ecs.Get(pw.ecs, e, component.PhysicsBodyComponent.Kind())
	if !ok || pb.Body == nil {
		return fmt.Errorf("%w: entity %s", ErrNoBody, e)
	}
	if ecs.Has(pw.ecs, e, component.ActorTagComponent.Kind()) {
		return fmt.Errorf("%w: entity %s", ErrAlreadyTagged, e)
	}
	if owner, ok := pw.bodyToEntity[pb.Body]; ok {
		return fmt.Errorf("%w: body owned by entity %s", ErrAlreadyTagged, owner)
	}

	shapes := pw.buffers.Get(len(pb.Shapes))
	defer pw.buffers.Put(shapes)
	*shapes = append(*shapes, pb.Shapes...)

	datum := filter.Datum{Tag: tag, Trigger: pb.Sensor}
	for _, shape := range *shapes {
		if shape == nil {
			continue
		}
		shape.UserData = datum
		shape.SetCollisionType(collisionTypeTagged)
	}

	if err := ecs.Add(pw.ecs, e, component.ActorTagComponent.Kind(), &component.ActorTag{Tag: tag}); err != nil {
		return fmt.Errorf("physics: tag entity %s: %w", e, err)
	}
	pw.bodyToEntity[pb.Body] = e
	return nil
}

// Admit adds a tagged actor's body and shapes to the space.
func (pw *World) Admit(e ecs.Entity) error {
	if pw == nil || pw.space == nil {
		return ErrNoWorld
	}
	if !ecs.Has(pw.ecs, e, component.ActorTagComponent.Kind()) {
		return fmt.Errorf("%w: entity %s", ErrUntagged, e)
	}
	if pw.admitted[e] {
		return fmt.Errorf("%w: entity %s", ErrAlreadyAdmitted, e)
	}
	pb, ok := ecs.Get(pw.ecs, e, component.PhysicsBodyComponent.Kind())
	if !ok || pb.Body == nil {
		return fmt.Errorf("%w: entity %s", ErrNoBody, e)
	}

	if pb.Body != pw.space.StaticBody {
		pw.space.AddBody(pb.Body)
	}
	for _, shape := range pb.Shapes {
		if shape != nil {
			pw.shapeIDs[shape] = uint32(len(pw.shapeIDs) + 1)
			pw.space.AddShape(shape)
		}
	}
	if !pb.Static && !pb.Kinematic {
		pw.dynamic = append(pw.dynamic, &trackedBody{entity: e, body: pb.Body})
	}
	pw.admitted[e] = true
	return nil
}

// Spawn tags and admits an actor.
func (pw *World) Spawn(e ecs.Entity, tag filter.Tag) error {
	if err := pw.Tag(e, tag); err != nil {
		return err
	}
	return pw.Admit(e)
}

// Category resolves an actor's category from its tag.
func (pw *World) Category(e ecs.Entity) (filter.Category, bool) {
	if pw == nil || pw.ecs == nil {
		return 0, false
	}
	tag, ok := ecs.Get(pw.ecs, e, component.ActorTagComponent.Kind())
	if !ok {
		return 0, false
	}
	return tag.Category, true
}

// Entity returns the actor that owns body. Unknown bodies return the zero
// entity.
func (pw *World) Entity(body *cp.Body) (ecs.Entity, bool) {
	if pw == nil || body == nil {
		return 0, false
	}
	e, ok := pw.bodyToEntity[body]
	return e, ok
}

// Pose returns the current pose of an actor's body.
func (pw *World) Pose(e ecs.Entity) (event.Pose, bool) {
	pb, ok := ecs.Get(pw.ecs, e, component.PhysicsBodyComponent.Kind())
	if !ok || pb.Body == nil {
		return event.Pose{}, false
	}
	return event.Pose{Position: pb.Body.Position(), Angle: pb.Body.Angle()}, true
}

// AddJoint adds a constraint between two actors. A positive breakForce makes
// it breakable: once the force it applies exceeds the threshold the break is
// reported and the constraint is removed after that step.
func (pw *World) AddJoint(name string, c *cp.Constraint, a, b ecs.Entity, breakForce float64) {
	if pw == nil || pw.space == nil || c == nil {
		return
	}
	j := &joint{name: name, constraint: c, a: a, b: b, breakForce: breakForce}
	if breakForce > 0 {
		c.PostSolve = func(_ *cp.Constraint, _ *cp.Space) {
			pw.checkJoint(j)
		}
	}
	pw.joints[c] = j
	pw.space.AddConstraint(c)
}

// Joints returns the number of constraints still in the space.
func (pw *World) Joints() int {
	if pw == nil {
		return 0
	}
	return len(pw.joints)
}

// Step advances the space by dt seconds and returns what happened. The batch
// is owned by the caller.
func (pw *World) Step(dt float64) event.Batch {
	if pw == nil || pw.space == nil {
		return event.Batch{}
	}
	pw.batch = event.Batch{}
	if dt > 0 {
		sub := dt / float64(pw.substeps)
		for i := 0; i < pw.substeps; i++ {
			pw.lastDt = sub
			pw.space.Step(sub)
			if pw.posePreview {
				pw.sampleAdvances(i)
			}
		}
		pw.collectSleepTransitions()
		pw.simTime += time.Duration(dt * float64(time.Second))
	}
	pw.step++

	out := pw.batch
	out.Step = event.Step{Number: pw.step, SimTime: pw.simTime}
	pw.batch = event.Batch{}
	return out
}

// Close drops the space and all side tables.
func (pw *World) Close() {
	if pw == nil {
		return
	}
	pw.space = nil
	pw.dynamic = nil
	clear(pw.bodyToEntity)
	clear(pw.admitted)
	clear(pw.shapeIDs)
	clear(pw.joints)
}

func (pw *World) sampleAdvances(substep int) {
	alpha := float64(substep+1) / float64(pw.substeps)
	for _, tb := range pw.dynamic {
		if tb.body.IsSleeping() {
			continue
		}
		pw.batch.Advances = append(pw.batch.Advances, event.PoseSample{
			Actor:   tb.entity,
			Pose:    event.Pose{Position: tb.body.Position(), Angle: tb.body.Angle()},
			Substep: substep,
			Alpha:   alpha,
		})
	}
}

func (pw *World) collectSleepTransitions() {
	for _, tb := range pw.dynamic {
		sleeping := tb.body.IsSleeping()
		if sleeping == tb.sleeping {
			continue
		}
		tb.sleeping = sleeping
		if sleeping {
			pw.batch.Sleeps = append(pw.batch.Sleeps, tb.entity)
		} else {
			pw.batch.Wakes = append(pw.batch.Wakes, tb.entity)
		}
	}
}

func (pw *World) checkJoint(j *joint) {
	if j.broken || pw.lastDt <= 0 {
		return
	}
	force := math.Abs(j.constraint.Class.GetImpulse()) / pw.lastDt
	if force <= j.breakForce {
		return
	}
	j.broken = true
	pw.batch.Breaks = append(pw.batch.Breaks, event.ConstraintBreak{
		Name:      j.name,
		A:         j.a,
		B:         j.b,
		Force:     force,
		Threshold: j.breakForce,
	})
	pw.space.AddPostStepCallback(removeJoint, j.constraint, pw)
}

func removeJoint(space *cp.Space, key interface{}, data interface{}) {
	c, ok := key.(*cp.Constraint)
	if !ok || c == nil {
		return
	}
	space.RemoveConstraint(c)
	if pw, ok := data.(*World); ok && pw != nil {
		if j := pw.joints[c]; j != nil {
			log.Printf("PhysicsWorld: removed joint %q after break", j.name)
		}
		delete(pw.joints, c)
	}
}

func (pw *World) datum(shape *cp.Shape) filter.Datum {
	if shape == nil {
		return filter.Datum{}
	}
	d, _ := shape.UserData.(filter.Datum)
	return d
}

func (pw *World) owner(shape *cp.Shape) ecs.Entity {
	if shape == nil {
		return 0
	}
	return pw.bodyToEntity[shape.Body()]
}

func (pw *World) setupHandlers() {
	if pw == nil || pw.handlersReady || pw.space == nil {
		return
	}

	handler := pw.space.NewCollisionHandler(collisionTypeTagged, collisionTypeTagged)
	handler.UserData = pw
	handler.BeginFunc = func(arb *cp.Arbiter, space *cp.Space, userData interface{}) bool {
		world, ok := userData.(*World)
		if !ok || world == nil {
			return true
		}
		return world.begin(arb)
	}
	handler.SeparateFunc = func(arb *cp.Arbiter, space *cp.Space, userData interface{}) {
		world, ok := userData.(*World)
		if !ok || world == nil {
			return
		}
		world.separate(arb)
	}

	pw.handlersReady = true
}

// begin runs once when a tagged pair first touches. Returning false makes
// Chipmunk skip the pair until it separates.
func (pw *World) begin(arb *cp.Arbiter) bool {
	shapeA, shapeB := arb.Shapes()
	da, db := pw.datum(shapeA), pw.datum(shapeB)
	dec := pw.policy.Classify(da, db)

	switch {
	case dec.Outcome == filter.Ignore:
		return false
	case !dec.Notify():
		return true
	case !dec.Solid:
		pw.batch.Triggers = append(pw.batch.Triggers, pw.triggerPair(shapeA, shapeB, da, event.StatusFound))
		// non-sensor shapes only overlap when the policy says so
		return da.Trigger || db.Trigger
	default:
		pw.batch.Contacts = append(pw.batch.Contacts, event.ContactPair{
			A:      pw.owner(shapeA),
			B:      pw.owner(shapeB),
			Status: event.StatusFound,
		})
		return true
	}
}

func (pw *World) separate(arb *cp.Arbiter) {
	shapeA, shapeB := arb.Shapes()
	da, db := pw.datum(shapeA), pw.datum(shapeB)
	dec := pw.policy.Classify(da, db)
	if !dec.Notify() {
		return
	}
	if !dec.Solid {
		pw.batch.Triggers = append(pw.batch.Triggers, pw.triggerPair(shapeA, shapeB, da, event.StatusLost))
		return
	}
	pw.batch.Contacts = append(pw.batch.Contacts, event.ContactPair{
		A:      pw.owner(shapeA),
		B:      pw.owner(shapeB),
		Status: event.StatusLost,
	})
}

func (pw *World) triggerPair(shapeA, shapeB *cp.Shape, da filter.Datum, status event.Status) event.TriggerPair {
	if !da.Trigger {
		shapeA, shapeB = shapeB, shapeA
	}
	return event.TriggerPair{
		Trigger: pw.owner(shapeA),
		Other:   pw.owner(shapeB),
		Part:    uint64(pw.shapeIDs[shapeA])<<32 | uint64(pw.shapeIDs[shapeB]),
		Status:  status,
	}
}

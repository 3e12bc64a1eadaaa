// Package event turns the raw per-step notification batches of the physics
// engine into classified records and hands them to sinks.
package event

import (
	"time"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/contactsim/ecs"
)

// Status is the touch state of a pair within one step.
type Status uint8

const (
	StatusFound Status = iota + 1
	StatusPersist
	StatusLost
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusPersist:
		return "persist"
	case StatusLost:
		return "lost"
	default:
		return "invalid"
	}
}

// ContactPair is a solid contact between two notifying objects.
type ContactPair struct {
	A, B   ecs.Entity
	Status Status
}

// TriggerPair is an overlap between a trigger volume and another object.
type TriggerPair struct {
	Trigger ecs.Entity
	Other   ecs.Entity
	// Part tells apart the shape pairs of one actor pair. Actors with a
	// single shape each leave it zero.
	Part   uint64
	Status Status
}

// Pose is a body transform.
type Pose struct {
	Position cp.Vector
	Angle    float64
}

// PoseSample is the pose of one body after a solver sub-step. Alpha is the
// fraction of the full step completed at that sub-step.
type PoseSample struct {
	Actor   ecs.Entity
	Pose    Pose
	Substep int
	Alpha   float64
}

// ConstraintBreak reports a joint whose break force was exceeded.
type ConstraintBreak struct {
	Name      string
	A, B      ecs.Entity
	Force     float64
	Threshold float64
}

// Step identifies the simulation step a batch belongs to.
type Step struct {
	Number  uint64
	SimTime time.Duration
}

// Batch holds everything the engine reported during one step. It is only
// valid until the next step.
type Batch struct {
	Step     Step
	Contacts []ContactPair
	Triggers []TriggerPair
	Wakes    []ecs.Entity
	Sleeps   []ecs.Entity
	Advances []PoseSample
	Breaks   []ConstraintBreak
}

// Len returns the number of raw notifications in the batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Contacts) + len(b.Triggers) + len(b.Wakes) + len(b.Sleeps) + len(b.Advances) + len(b.Breaks)
}

package event

import (
	"fmt"
	"time"

	"github.com/milk9111/contactsim/ecs"
	"github.com/milk9111/contactsim/filter"
)

type Kind string

const (
	KindContact         Kind = "contact"
	KindTriggerEnter    Kind = "trigger-enter"
	KindTriggerExit     Kind = "trigger-exit"
	KindWake            Kind = "wake"
	KindSleep           Kind = "sleep"
	KindAdvance         Kind = "advance"
	KindConstraintBreak Kind = "constraint-break"
)

type Label string

const (
	LabelBoxVsBox       Label = "box-vs-box"
	LabelBoxVsFloor     Label = "box-vs-floor"
	LabelCharacterVsBox Label = "character-vs-box"
	LabelUnknown        Label = "unknown"
)

// ContactLabel classifies a contact by its unordered category pair. Pairs
// that are not enumerated, including unresolved ones, are LabelUnknown.
func ContactLabel(a, b filter.Category) Label {
	switch pair := filter.MaskOf(a, b); {
	case a == filter.CategoryBox && b == filter.CategoryBox:
		return LabelBoxVsBox
	case pair == filter.MaskOf(filter.CategoryBox, filter.CategoryFloor):
		return LabelBoxVsFloor
	case pair == filter.MaskOf(filter.CategoryBox, filter.CategoryCharacter):
		return LabelCharacterVsBox
	default:
		return LabelUnknown
	}
}

// PairLabel names a non-contact pair in bit order, e.g. "box-vs-zone".
func PairLabel(a, b filter.Category) Label {
	if !a.Valid() || !b.Valid() {
		return LabelUnknown
	}
	if b < a {
		a, b = b, a
	}
	return Label(a.String() + "-vs-" + b.String())
}

// ActorLabel names a single-actor record by its category.
func ActorLabel(c filter.Category) Label {
	if !c.Valid() {
		return LabelUnknown
	}
	return Label(c.String())
}

// Record is one classified notification.
type Record struct {
	Kind      Kind
	Label     Label
	A, B      ecs.Entity
	CategoryA filter.Category
	CategoryB filter.Category
	Pose      Pose
	Joint     string
	Force     float64
	Step      uint64
	SimTime   time.Duration
	At        time.Time
}

// Message renders the record the way the console sample prints it.
func (r Record) Message() string {
	switch r.Kind {
	case KindContact:
		switch r.Label {
		case LabelBoxVsBox:
			return "Box hit another Box!"
		case LabelBoxVsFloor:
			return "Box hit the Floor!"
		case LabelCharacterVsBox:
			return "Character hit the Box!"
		default:
			return "Unknown collision detected!"
		}
	case KindTriggerEnter:
		return "Trigger detected!"
	case KindTriggerExit:
		return "Trigger released!"
	case KindWake:
		return "Actor woke up!"
	case KindSleep:
		return "Actor went to sleep!"
	case KindAdvance:
		return "Advanced stage of rigid body!"
	case KindConstraintBreak:
		return "Constraint broken!"
	default:
		return fmt.Sprintf("Unhandled event %q", string(r.Kind))
	}
}

// Sink consumes classified records. Emit is called serially from the loop
// goroutine.
type Sink interface {
	Emit(r Record) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(r Record) error

func (f SinkFunc) Emit(r Record) error { return f(r) }

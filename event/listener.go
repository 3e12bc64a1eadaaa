package event

import "github.com/milk9111/contactsim/ecs"

// Listener receives the six notification families of a step. Each call gets
// the whole family for that step; empty slices are allowed.
type Listener interface {
	OnContact(s Step, pairs []ContactPair)
	OnTrigger(s Step, pairs []TriggerPair)
	OnWake(s Step, actors []ecs.Entity)
	OnSleep(s Step, actors []ecs.Entity)
	OnAdvance(s Step, samples []PoseSample)
	OnConstraintBreak(s Step, breaks []ConstraintBreak)
}

// Deliver hands every family of b to l in a fixed order.
func Deliver(l Listener, b Batch) {
	if l == nil {
		return
	}
	l.OnContact(b.Step, b.Contacts)
	l.OnTrigger(b.Step, b.Triggers)
	l.OnWake(b.Step, b.Wakes)
	l.OnSleep(b.Step, b.Sleeps)
	l.OnAdvance(b.Step, b.Advances)
	l.OnConstraintBreak(b.Step, b.Breaks)
}

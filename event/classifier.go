package event

import (
	"time"

	"github.com/milk9111/contactsim/ecs"
	"github.com/milk9111/contactsim/filter"
)

// Resolver recovers the category of an actor from its back-reference.
type Resolver interface {
	Category(e ecs.Entity) (filter.Category, bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(e ecs.Entity) (filter.Category, bool)

func (f ResolverFunc) Category(e ecs.Entity) (filter.Category, bool) { return f(e) }

// Stats counts what the classifier did with the notifications it received.
// Every notification ends up in exactly one of Emitted or Suppressed.
type Stats struct {
	Emitted    uint64
	Suppressed uint64
	Unresolved uint64
	SinkErrors uint64
}

type pairKey struct {
	lo, hi ecs.Entity
}

func makePairKey(a, b ecs.Entity) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

// Classifier is the single Listener implementation. It resolves categories,
// labels each notification and forwards the record to its sink. Trigger
// overlaps are tracked across steps so that only the transition into an
// overlap is reported. It must not be called concurrently.
type Classifier struct {
	resolver Resolver
	sink     Sink
	now      func() time.Time

	overlaps map[pairKey]map[uint64]struct{}
	stats    Stats
	emitted  int
}

type ClassifierOption func(*Classifier)

// WithClock overrides the wall clock used to stamp records.
func WithClock(now func() time.Time) ClassifierOption {
	return func(c *Classifier) {
		if now != nil {
			c.now = now
		}
	}
}

func NewClassifier(resolver Resolver, sink Sink, opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		resolver: resolver,
		sink:     sink,
		now:      time.Now,
		overlaps: make(map[pairKey]map[uint64]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dispatch classifies a full batch and returns the number of records emitted.
func (c *Classifier) Dispatch(b Batch) int {
	if c == nil {
		return 0
	}
	c.emitted = 0
	Deliver(c, b)
	return c.emitted
}

// Stats returns the running totals.
func (c *Classifier) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return c.stats
}

// Overlapping returns the number of trigger pairs currently inside an overlap.
func (c *Classifier) Overlapping() int {
	if c == nil {
		return 0
	}
	return len(c.overlaps)
}

func (c *Classifier) OnContact(s Step, pairs []ContactPair) {
	for _, p := range pairs {
		if p.Status != StatusFound {
			c.stats.Suppressed++
			continue
		}
		ca, cb := c.resolve(p.A), c.resolve(p.B)
		c.emit(s, Record{
			Kind:      KindContact,
			Label:     ContactLabel(ca, cb),
			A:         p.A,
			B:         p.B,
			CategoryA: ca,
			CategoryB: cb,
		})
	}
}

func (c *Classifier) OnTrigger(s Step, pairs []TriggerPair) {
	for _, p := range pairs {
		key := makePairKey(p.Trigger, p.Other)
		parts := c.overlaps[key]
		_, touching := parts[p.Part]

		var kind Kind
		switch {
		case p.Status == StatusFound && !touching:
			if parts == nil {
				parts = make(map[uint64]struct{})
				c.overlaps[key] = parts
			}
			parts[p.Part] = struct{}{}
			kind = KindTriggerEnter
		case p.Status == StatusLost && touching:
			delete(parts, p.Part)
			if len(parts) == 0 {
				delete(c.overlaps, key)
			}
			kind = KindTriggerExit
		}
		// the actor pair enters with its first shape pair and leaves with its last
		if kind == "" || (kind == KindTriggerEnter && len(parts) > 1) || (kind == KindTriggerExit && len(parts) > 0) {
			c.stats.Suppressed++
			continue
		}

		ct, co := c.resolve(p.Trigger), c.resolve(p.Other)
		c.emit(s, Record{
			Kind:      kind,
			Label:     PairLabel(ct, co),
			A:         p.Trigger,
			B:         p.Other,
			CategoryA: ct,
			CategoryB: co,
		})
	}
}

func (c *Classifier) OnWake(s Step, actors []ecs.Entity) {
	c.lifecycle(s, KindWake, actors)
}

func (c *Classifier) OnSleep(s Step, actors []ecs.Entity) {
	c.lifecycle(s, KindSleep, actors)
}

func (c *Classifier) lifecycle(s Step, kind Kind, actors []ecs.Entity) {
	for _, e := range actors {
		cat := c.resolve(e)
		c.emit(s, Record{Kind: kind, Label: ActorLabel(cat), A: e, CategoryA: cat})
	}
}

func (c *Classifier) OnAdvance(s Step, samples []PoseSample) {
	for _, sample := range samples {
		cat := c.resolve(sample.Actor)
		c.emit(s, Record{
			Kind:      KindAdvance,
			Label:     ActorLabel(cat),
			A:         sample.Actor,
			CategoryA: cat,
			Pose:      sample.Pose,
		})
	}
}

func (c *Classifier) OnConstraintBreak(s Step, breaks []ConstraintBreak) {
	for _, br := range breaks {
		ca, cb := c.resolve(br.A), c.resolve(br.B)
		c.emit(s, Record{
			Kind:      KindConstraintBreak,
			Label:     PairLabel(ca, cb),
			A:         br.A,
			B:         br.B,
			CategoryA: ca,
			CategoryB: cb,
			Joint:     br.Name,
			Force:     br.Force,
		})
	}
}

// resolve returns 0 for actors without a recoverable tag.
func (c *Classifier) resolve(e ecs.Entity) filter.Category {
	if c.resolver != nil && e.Valid() {
		if cat, ok := c.resolver.Category(e); ok && cat.Valid() {
			return cat
		}
	}
	c.stats.Unresolved++
	return 0
}

func (c *Classifier) emit(s Step, r Record) {
	r.Step = s.Number
	r.SimTime = s.SimTime
	r.At = c.now()
	c.stats.Emitted++
	c.emitted++
	if c.sink == nil {
		return
	}
	// sinks report their own failures
	if err := c.sink.Emit(r); err != nil {
		c.stats.SinkErrors++
	}
}

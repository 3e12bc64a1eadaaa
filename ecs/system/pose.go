package system

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/contactsim/common"
	"github.com/milk9111/contactsim/ecs"
	"github.com/milk9111/contactsim/ecs/component"
)

// PoseSnapshot is a copy of one actor's pose taken after a step.
type PoseSnapshot struct {
	Entity    ecs.Entity
	Name      string
	Position  mgl64.Vec2
	Angle     float64
	Transform mgl64.Mat3
	Sleeping  bool
}

// PoseSnapshots publishes the poses of every tagged actor once per step.
// Readers on other goroutines get copies and never touch engine state.
type PoseSnapshots struct {
	mu    sync.RWMutex
	step  uint64
	prev  []PoseSnapshot
	poses []PoseSnapshot
}

func NewPoseSnapshots() *PoseSnapshots {
	return &PoseSnapshots{}
}

func (p *PoseSnapshots) Update(w *ecs.World, dt float64) {
	if w == nil {
		return
	}

	next := make([]PoseSnapshot, 0, len(p.poses))
	ecs.ForEach2(w, component.ActorTagComponent.Kind(), component.PhysicsBodyComponent.Kind(),
		func(e ecs.Entity, _ *component.ActorTag, pb *component.PhysicsBody) {
			if pb.Body == nil {
				return
			}
			pos, angle := pb.Body.Position(), pb.Body.Angle()
			snap := PoseSnapshot{
				Entity:    e,
				Position:  common.Vec2(pos),
				Angle:     angle,
				Transform: common.Transform2D(pos, angle),
				Sleeping:  pb.Body.IsSleeping(),
			}
			if name, ok := ecs.Get(w, e, component.NameComponent.Kind()); ok {
				snap.Name = name.Value
			}
			next = append(next, snap)
		})

	p.mu.Lock()
	p.prev, p.poses = p.poses, next
	p.step++
	p.mu.Unlock()
}

// Snapshot returns the latest published poses and the step they belong to.
func (p *PoseSnapshots) Snapshot() (uint64, []PoseSnapshot) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PoseSnapshot, len(p.poses))
	copy(out, p.poses)
	return p.step, out
}

// Lookup returns the latest pose of one actor.
func (p *PoseSnapshots) Lookup(e ecs.Entity) (PoseSnapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, s := range p.poses {
		if s.Entity == e {
			return s, true
		}
	}
	return PoseSnapshot{}, false
}

// Interpolate blends an actor's position between the previous and latest
// snapshot. alpha is clamped to [0, 1].
func (p *PoseSnapshots) Interpolate(e ecs.Entity, alpha float64) (mgl64.Vec2, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var cur, prev *PoseSnapshot
	for i := range p.poses {
		if p.poses[i].Entity == e {
			cur = &p.poses[i]
			break
		}
	}
	if cur == nil {
		return mgl64.Vec2{}, false
	}
	for i := range p.prev {
		if p.prev[i].Entity == e {
			prev = &p.prev[i]
			break
		}
	}
	if prev == nil {
		return cur.Position, true
	}
	t := common.Clamp(alpha, 0, 1)
	return mgl64.Vec2{
		common.Lerp(prev.Position.X(), cur.Position.X(), t),
		common.Lerp(prev.Position.Y(), cur.Position.Y(), t),
	}, true
}

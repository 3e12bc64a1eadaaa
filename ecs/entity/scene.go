package entity

import (
	"fmt"
	"log"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/contactsim/ecs"
	"github.com/milk9111/contactsim/ecs/component"
	"github.com/milk9111/contactsim/physics"
	"github.com/milk9111/contactsim/prefabs"
)

// Scene indexes the actors built from a scene spec by name.
type Scene struct {
	Name   string
	actors map[string]ecs.Entity
	order  []string
}

func (s *Scene) Actor(name string) (ecs.Entity, bool) {
	if s == nil {
		return 0, false
	}
	e, ok := s.actors[name]
	return e, ok
}

// Names lists actor names in build order.
func (s *Scene) Names() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.order...)
}

func (s *Scene) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

func (s *Scene) add(name string, e ecs.Entity) {
	s.actors[name] = e
	s.order = append(s.order, name)
}

// BuildScene spawns the floor, the box stack, the character, zones, free-form
// actors and joints of spec, in that order.
func BuildScene(w *ecs.World, pw *physics.World, spec *prefabs.SceneSpec) (*Scene, error) {
	if w == nil || pw == nil {
		return nil, fmt.Errorf("build scene: world is nil")
	}
	if spec == nil {
		return nil, fmt.Errorf("build scene: spec is nil")
	}

	scene := &Scene{Name: spec.Name, actors: make(map[string]ecs.Entity)}
	spawn := func(b prefabs.BodySpec, template component.PhysicsBody) error {
		tag, err := b.Tag.Tag()
		if err != nil {
			return fmt.Errorf("build scene: %q: %w", b.Name, err)
		}
		mat := spec.Material
		if b.Material != nil {
			mat = *b.Material
		}
		template.Width, template.Height = b.Width, b.Height
		template.Mass = b.Mass
		template.Friction, template.Elasticity = mat.Friction, mat.Elasticity

		e, err := SpawnBody(w, pw, b.Name, b.Position.Vector(), template, tag)
		if err != nil {
			return fmt.Errorf("build scene: %w", err)
		}
		scene.add(b.Name, e)
		return nil
	}

	if spec.Floor != nil {
		if err := spawn(*spec.Floor, component.PhysicsBody{Static: true}); err != nil {
			return nil, err
		}
	}

	stack := spec.Boxes
	for i := 0; i < stack.Count; i++ {
		pos := stack.BoxPosition(i)
		box := prefabs.BodySpec{
			Name:     stack.BoxName(i),
			Position: prefabs.VecSpec{X: pos.X, Y: pos.Y},
			Width:    2 * stack.HalfExtent,
			Height:   2 * stack.HalfExtent,
			Mass:     stack.Mass,
			Material: stack.Material,
			Tag:      stack.Tag,
		}
		if err := spawn(box, component.PhysicsBody{}); err != nil {
			return nil, err
		}
	}

	if ch := spec.Character; ch != nil {
		if err := spawn(ch.BodySpec, component.PhysicsBody{Kinematic: true}); err != nil {
			return nil, err
		}
		e, _ := scene.Actor(ch.Name)
		ctrl := &component.CharacterController{Speed: ch.Speed, MinX: ch.MinX, MaxX: ch.MaxX, Direction: 1}
		if err := ecs.Add(w, e, component.CharacterControllerComponent.Kind(), ctrl); err != nil {
			return nil, fmt.Errorf("build scene: %q: %w", ch.Name, err)
		}
	}

	for _, z := range spec.Zones {
		if err := spawn(z, component.PhysicsBody{Static: true, Sensor: true}); err != nil {
			return nil, err
		}
	}

	for _, a := range spec.Actors {
		e, err := BuildEntity(w, pw, a)
		if err != nil {
			return nil, fmt.Errorf("build scene: %w", err)
		}
		scene.add(a.Name, e)
	}

	for _, j := range spec.Joints {
		if err := addJoint(w, pw, scene, j); err != nil {
			return nil, err
		}
	}

	log.Printf("Scene: built %q with %d actors and %d joints", spec.Name, scene.Len(), pw.Joints())
	return scene, nil
}

func addJoint(w *ecs.World, pw *physics.World, scene *Scene, j prefabs.JointSpec) error {
	bodyA, entA, err := jointBody(w, pw, scene, j.A)
	if err != nil {
		return fmt.Errorf("build scene: joint %q: %w", j.Name, err)
	}
	bodyB, entB, err := jointBody(w, pw, scene, j.B)
	if err != nil {
		return fmt.Errorf("build scene: joint %q: %w", j.Name, err)
	}
	c := cp.NewPinJoint(bodyA, bodyB, j.AnchorA.Vector(), j.AnchorB.Vector())
	pw.AddJoint(j.Name, c, entA, entB, j.BreakForce)
	return nil
}

func jointBody(w *ecs.World, pw *physics.World, scene *Scene, name string) (*cp.Body, ecs.Entity, error) {
	if name == prefabs.StaticAnchor {
		return pw.Space().StaticBody, 0, nil
	}
	e, ok := scene.Actor(name)
	if !ok {
		return nil, 0, fmt.Errorf("unknown actor %q", name)
	}
	pb, ok := ecs.Get(w, e, component.PhysicsBodyComponent.Kind())
	if !ok || pb.Body == nil {
		return nil, 0, fmt.Errorf("actor %q has no body", name)
	}
	return pb.Body, e, nil
}

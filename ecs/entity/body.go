package entity

import (
	"fmt"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/contactsim/ecs"
	"github.com/milk9111/contactsim/ecs/component"
	"github.com/milk9111/contactsim/filter"
	"github.com/milk9111/contactsim/physics"
)

// SpawnBody creates a named actor with a single box shape described by
// template, tags it and adds it to the physics world. The entity is
// destroyed again if any step fails.
func SpawnBody(w *ecs.World, pw *physics.World, name string, pos cp.Vector, template component.PhysicsBody, tag filter.Tag) (ecs.Entity, error) {
	if w == nil || pw == nil {
		return 0, fmt.Errorf("spawn %q: world is nil", name)
	}
	if template.Width <= 0 || template.Height <= 0 {
		return 0, fmt.Errorf("spawn %q: width and height must be positive", name)
	}

	pb := template
	pb.Body = newBody(pb)
	pb.Body.SetPosition(pos)

	shape := cp.NewBox(pb.Body, pb.Width, pb.Height, 0)
	shape.SetFriction(pb.Friction)
	shape.SetElasticity(pb.Elasticity)
	shape.SetSensor(pb.Sensor)
	pb.Shapes = []*cp.Shape{shape}

	e := ecs.CreateEntity(w)
	if err := ecs.Add(w, e, component.NameComponent.Kind(), &component.Name{Value: name}); err != nil {
		ecs.DestroyEntity(w, e)
		return 0, fmt.Errorf("spawn %q: %w", name, err)
	}
	if err := ecs.Add(w, e, component.PhysicsBodyComponent.Kind(), &pb); err != nil {
		ecs.DestroyEntity(w, e)
		return 0, fmt.Errorf("spawn %q: %w", name, err)
	}
	if err := pw.Spawn(e, tag); err != nil {
		ecs.DestroyEntity(w, e)
		return 0, fmt.Errorf("spawn %q: %w", name, err)
	}
	return e, nil
}

func newBody(pb component.PhysicsBody) *cp.Body {
	switch {
	case pb.Static:
		return cp.NewStaticBody()
	case pb.Kinematic:
		return cp.NewKinematicBody()
	default:
		mass := pb.Mass
		if mass <= 0 {
			mass = 1
		}
		return cp.NewBody(mass, cp.MomentForBox(mass, pb.Width, pb.Height))
	}
}

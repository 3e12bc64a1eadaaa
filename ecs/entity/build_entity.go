package entity

import (
	"fmt"
	"sort"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/contactsim/ecs"
	"github.com/milk9111/contactsim/ecs/component"
	"github.com/milk9111/contactsim/physics"
	"github.com/milk9111/contactsim/prefabs"
)

type buildContext struct {
	Name    string
	Physics *physics.World
}

type componentBuildFn func(w *ecs.World, e ecs.Entity, raw any, ctx *buildContext) error

// body and tag are consumed by SpawnBody; the registry covers the extras.
var componentRegistry = map[string]componentBuildFn{
	"character": addCharacter,
}

var reservedComponents = map[string]bool{
	"body": true,
	"tag":  true,
}

// BuildEntity spawns a free-form actor from its component specs.
func BuildEntity(w *ecs.World, pw *physics.World, spec prefabs.EntityBuildSpec) (ecs.Entity, error) {
	if w == nil || pw == nil {
		return 0, fmt.Errorf("build entity: world is nil")
	}
	if len(spec.Components) == 0 {
		return 0, fmt.Errorf("build entity: %q does not define components", spec.Name)
	}

	body, err := spec.Body()
	if err != nil {
		return 0, fmt.Errorf("build entity: %w", err)
	}
	tagSpec, err := spec.Tag()
	if err != nil {
		return 0, fmt.Errorf("build entity: %w", err)
	}
	tag, err := tagSpec.Tag()
	if err != nil {
		return 0, fmt.Errorf("build entity: %q: %w", spec.Name, err)
	}

	names := make([]string, 0, len(spec.Components))
	for name := range spec.Components {
		if reservedComponents[name] {
			continue
		}
		if _, ok := componentRegistry[name]; !ok {
			return 0, fmt.Errorf("build entity: %q: no builder for component %q", spec.Name, name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	_, hasCharacter := spec.Components["character"]
	template := component.PhysicsBody{
		Width:      body.Width,
		Height:     body.Height,
		Mass:       body.Mass,
		Friction:   body.Friction,
		Elasticity: body.Elasticity,
		Static:     body.Static,
		Kinematic:  body.Kinematic || hasCharacter,
		Sensor:     body.Sensor,
	}
	e, err := SpawnBody(w, pw, spec.Name, cp.Vector{X: body.X, Y: body.Y}, template, tag)
	if err != nil {
		return 0, fmt.Errorf("build entity: %w", err)
	}

	ctx := &buildContext{Name: spec.Name, Physics: pw}
	for _, name := range names {
		builder := componentRegistry[name]
		if err := builder(w, e, spec.Components[name], ctx); err != nil {
			return 0, fmt.Errorf("build entity: %q: add %q: %w", spec.Name, name, err)
		}
	}
	return e, nil
}

func addCharacter(w *ecs.World, e ecs.Entity, raw any, ctx *buildContext) error {
	spec, err := prefabs.DecodeComponentSpec[prefabs.CharacterComponentSpec](raw)
	if err != nil {
		return err
	}
	if spec.MinX > spec.MaxX {
		return fmt.Errorf("min_x is greater than max_x")
	}
	return ecs.Add(w, e, component.CharacterControllerComponent.Kind(), &component.CharacterController{
		Speed:     spec.Speed,
		MinX:      spec.MinX,
		MaxX:      spec.MaxX,
		Direction: 1,
	})
}

package entity

import (
	"strings"
	"testing"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/contactsim/ecs"
	"github.com/milk9111/contactsim/ecs/component"
	"github.com/milk9111/contactsim/filter"
	"github.com/milk9111/contactsim/physics"
	"github.com/milk9111/contactsim/prefabs"
)

func newWorlds(t *testing.T) (*ecs.World, *physics.World) {
	t.Helper()
	w := ecs.NewWorld()
	pw, err := physics.NewWorld(w, physics.Config{Gravity: cp.Vector{Y: -9.81}})
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	return w, pw
}

func TestBuildDefaultScene(t *testing.T) {
	spec, err := prefabs.LoadSceneSpec("")
	if err != nil {
		t.Fatalf("LoadSceneSpec: %v", err)
	}
	w, pw := newWorlds(t)

	scene, err := BuildScene(w, pw, spec)
	if err != nil {
		t.Fatalf("BuildScene: %v", err)
	}

	wantNames := []string{"floor", "box-0", "box-1", "box-2", "box-3", "box-4", "walker", "beacon", "crate"}
	if got := scene.Names(); strings.Join(got, ",") != strings.Join(wantNames, ",") {
		t.Fatalf("names = %v", got)
	}
	if pw.Joints() != 1 {
		t.Fatalf("joints = %d", pw.Joints())
	}

	wantCategory := map[string]filter.Category{
		"floor":  filter.CategoryFloor,
		"box-0":  filter.CategoryBox,
		"walker": filter.CategoryCharacter,
		"beacon": filter.CategoryZone,
		"crate":  filter.CategoryBox,
	}
	for name, want := range wantCategory {
		e, ok := scene.Actor(name)
		if !ok {
			t.Fatalf("missing actor %q", name)
		}
		if got, ok := pw.Category(e); !ok || got != want {
			t.Fatalf("%s category = %v, want %v", name, got, want)
		}
	}

	beacon, _ := scene.Actor("beacon")
	pb, _ := ecs.Get(w, beacon, component.PhysicsBodyComponent.Kind())
	if !pb.Sensor {
		t.Fatalf("zone is not a sensor")
	}

	walker, _ := scene.Actor("walker")
	if !ecs.Has(w, walker, component.CharacterControllerComponent.Kind()) {
		t.Fatalf("walker has no controller")
	}

	top, _ := scene.Actor("box-4")
	pb, _ = ecs.Get(w, top, component.PhysicsBodyComponent.Kind())
	if got := pb.Body.Position(); got.Y != 17.5 {
		t.Fatalf("box-4 at %v", got)
	}
	if pb.Friction != 0.5 || pb.Elasticity != 0.1 || pb.Width != 2 {
		t.Fatalf("box-4 body = %+v", pb)
	}
	if pw.Buffers().Outstanding() != 0 {
		t.Fatalf("tagging leaked %d buffers", pw.Buffers().Outstanding())
	}
}

func TestBuildSceneErrors(t *testing.T) {
	tests := []struct {
		name string
		spec *prefabs.SceneSpec
		want string
	}{
		{"nil spec", nil, "spec is nil"},
		{"bad tag", &prefabs.SceneSpec{Zones: []prefabs.BodySpec{{Name: "z", Width: 1, Height: 1, Tag: prefabs.TagSpec{Category: "lava"}}}}, "lava"},
		{"zero size", &prefabs.SceneSpec{Zones: []prefabs.BodySpec{{Name: "z", Tag: prefabs.TagSpec{Category: "zone"}}}}, "positive"},
		{"unknown joint actor", &prefabs.SceneSpec{Joints: []prefabs.JointSpec{{Name: "j", A: prefabs.StaticAnchor, B: "ghost"}}}, "ghost"},
		{"unknown component", &prefabs.SceneSpec{Actors: []prefabs.EntityBuildSpec{{
			Name: "odd",
			Components: map[string]any{
				"body":   map[string]any{"width": 1, "height": 1},
				"tag":    map[string]any{"category": "box"},
				"sprite": map[string]any{},
			},
		}}}, "no builder"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, pw := newWorlds(t)
			_, err := BuildScene(w, pw, tt.spec)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("got %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}

func TestBuildEntityWithCharacter(t *testing.T) {
	w, pw := newWorlds(t)
	e, err := BuildEntity(w, pw, prefabs.EntityBuildSpec{
		Name: "runner",
		Components: map[string]any{
			"body":      map[string]any{"x": 2, "y": 1, "width": 1, "height": 2},
			"tag":       map[string]any{"category": "character", "interest": []any{"box"}},
			"character": map[string]any{"speed": 4, "min_x": -3, "max_x": 3},
		},
	})
	if err != nil {
		t.Fatalf("BuildEntity: %v", err)
	}

	pb, _ := ecs.Get(w, e, component.PhysicsBodyComponent.Kind())
	if !pb.Kinematic {
		t.Fatalf("characters are kinematic")
	}
	ctrl, ok := ecs.Get(w, e, component.CharacterControllerComponent.Kind())
	if !ok || ctrl.Speed != 4 || ctrl.MaxX != 3 || ctrl.Direction != 1 {
		t.Fatalf("controller = %+v", ctrl)
	}
	tag, _ := ecs.Get(w, e, component.ActorTagComponent.Kind())
	if tag.Interest != filter.MaskOf(filter.CategoryBox) {
		t.Fatalf("interest = %v", tag.Interest)
	}
	name, _ := ecs.Get(w, e, component.NameComponent.Kind())
	if name.Value != "runner" {
		t.Fatalf("name = %q", name.Value)
	}
}

func TestSpawnBodyCleansUpOnTagFailure(t *testing.T) {
	w, pw := newWorlds(t)
	before := w.Len()
	_, err := SpawnBody(w, pw, "bad", cp.Vector{}, component.PhysicsBody{Width: 1, Height: 1}, filter.Tag{})
	if err == nil {
		t.Fatalf("expected an error for an untyped tag")
	}
	if w.Len() != before {
		t.Fatalf("entity leaked: %d -> %d", before, w.Len())
	}
}

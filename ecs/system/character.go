package system

import (
	"github.com/jakecoffman/cp"
	"github.com/milk9111/contactsim/common"
	"github.com/milk9111/contactsim/ecs"
	"github.com/milk9111/contactsim/ecs/component"
)

// CharacterSystem walks kinematic characters back and forth between their
// bounds. It runs after each physics step, so the velocity it sets applies
// to the next one.
type CharacterSystem struct{}

func NewCharacterSystem() *CharacterSystem {
	return &CharacterSystem{}
}

func (s *CharacterSystem) Update(w *ecs.World, dt float64) {
	if w == nil {
		return
	}
	ecs.ForEach2(w, component.CharacterControllerComponent.Kind(), component.PhysicsBodyComponent.Kind(),
		func(e ecs.Entity, ctrl *component.CharacterController, pb *component.PhysicsBody) {
			if pb.Body == nil {
				return
			}
			if ctrl.Direction == 0 {
				ctrl.Direction = 1
			}

			pos := pb.Body.Position()
			switch {
			case pos.X >= ctrl.MaxX && ctrl.Direction > 0:
				ctrl.Direction = -1
			case pos.X <= ctrl.MinX && ctrl.Direction < 0:
				ctrl.Direction = 1
			}
			if clamped := common.Clamp(pos.X, ctrl.MinX, ctrl.MaxX); clamped != pos.X {
				pb.Body.SetPosition(cp.Vector{X: clamped, Y: pos.Y})
			}
			pb.Body.SetVelocity(ctrl.Speed*ctrl.Direction, 0)
		})
}

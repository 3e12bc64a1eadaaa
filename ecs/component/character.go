package component

// CharacterController drives a kinematic body back and forth between two x
// bounds. It is updated after each physics step.
type CharacterController struct {
	Speed     float64
	MinX      float64
	MaxX      float64
	Direction float64
}

var CharacterControllerComponent = NewComponent[CharacterController]()

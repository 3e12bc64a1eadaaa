package component

import "github.com/jakecoffman/cp"

// PhysicsBody stores the Chipmunk2D body of an actor and the shapes that
// belong to it. Shapes are listed here because cp only links shapes to their
// body once they are added to a space, and actors are tagged before that.
type PhysicsBody struct {
	Body       *cp.Body
	Shapes     []*cp.Shape
	Width      float64
	Height     float64
	Mass       float64
	Friction   float64
	Elasticity float64
	Static     bool
	Kinematic  bool
	Sensor     bool
}

var PhysicsBodyComponent = NewComponent[PhysicsBody]()

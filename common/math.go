package common

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/jakecoffman/cp"
)

// TickRate is the default number of fixed steps per simulated second.
const TickRate = 60

// FixedStep returns the step length for a tick rate. Non-positive rates fall
// back to TickRate.
func FixedStep(rate float64) time.Duration {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		rate = TickRate
	}
	return time.Duration(float64(time.Second) / rate)
}

func Lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Vec2 converts a Chipmunk vector.
func Vec2(v cp.Vector) mgl64.Vec2 {
	return mgl64.Vec2{v.X, v.Y}
}

// Transform2D builds the homogeneous 2D transform of a body pose.
func Transform2D(pos cp.Vector, angle float64) mgl64.Mat3 {
	return mgl64.Translate2D(pos.X, pos.Y).Mul3(mgl64.HomogRotate2D(angle))
}

package loop

import (
	"time"

	"github.com/milk9111/contactsim/common"
)

// Clock is the simulation clock. Only the driver advances it.
type Clock struct {
	FixedStep time.Duration
	TimeScale float64

	LastStep time.Time
	SimTime  time.Duration
	Steps    uint64
}

// NewClock returns a clock with the given wall period and time scale. A zero
// step means the default tick rate; a non-positive scale means real time.
func NewClock(fixedStep time.Duration, timeScale float64) *Clock {
	if fixedStep <= 0 {
		fixedStep = common.FixedStep(common.TickRate)
	}
	if timeScale <= 0 {
		timeScale = 1
	}
	return &Clock{FixedStep: fixedStep, TimeScale: timeScale}
}

// StepSeconds is the simulated duration of one step.
func (c *Clock) StepSeconds() float64 {
	return c.FixedStep.Seconds() * c.TimeScale
}

func (c *Clock) advance(start time.Time) {
	c.LastStep = start
	c.SimTime += time.Duration(float64(c.FixedStep) * c.TimeScale)
	c.Steps++
}

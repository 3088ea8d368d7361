// Package motion drives the gantry: stepper pulses timed by the precision
// timer service, axis loops fed by a direction channel and joystick tasks
// that turn switch edges into direction commands.
package motion

// Direction is the motion command passed from input tasks to axis tasks
type Direction uint8

const (
	Idle             Direction = iota // Stop after the pulse in progress
	Clockwise                         // Away from home
	CounterClockwise                  // Toward home
)

// Invert returns the opposite direction, used for the mirrored twin motor
func (d Direction) Invert() Direction {
	switch d {
	case Clockwise:
		return CounterClockwise
	case CounterClockwise:
		return Clockwise
	default:
		return Idle
	}
}

func (d Direction) String() string {
	switch d {
	case Idle:
		return "idle"
	case Clockwise:
		return "cw"
	case CounterClockwise:
		return "ccw"
	default:
		return "invalid"
	}
}

package motion

import (
	"time"

	"claw/core"
)

const (
	// MaxSteps is the travel of an axis from home to the far end
	MaxSteps = 6000

	// DefaultPulseWidth is how long the step line is held high
	DefaultPulseWidth = 1000 * time.Microsecond
)

// Stepper is one step/direction driver. Position counts steps away from
// home and is bounded to [0, max]; a mirrored motor starts at max because
// it turns the other way for the same carriage travel.
type Stepper struct {
	pins     core.PinWriter
	stepPin  core.GPIOPin // Step pulse output
	dirPin   core.GPIOPin // Direction output, high moves toward home
	inverted bool
	max      uint32

	position uint32
	steps    uint32 // Pulses issued since creation
}

// NewStepper creates a driver at its home position
func NewStepper(pins core.PinWriter, stepPin, dirPin core.GPIOPin, max uint32, inverted bool) *Stepper {
	s := &Stepper{
		pins:     pins,
		stepPin:  stepPin,
		dirPin:   dirPin,
		inverted: inverted,
		max:      max,
	}
	s.Home()
	pins.SetPin(stepPin, false)
	pins.SetPin(dirPin, false)
	return s
}

// Home resets the position to the home end of travel
func (s *Stepper) Home() {
	if s.inverted {
		s.position = s.max
	} else {
		s.position = 0
	}
}

// Position returns the current step count
func (s *Stepper) Position() uint32 {
	return s.position
}

// Steps returns the number of pulses issued
func (s *Stepper) Steps() uint32 {
	return s.steps
}

// CanStep reports whether a pulse in d stays within travel
func (s *Stepper) CanStep(d Direction) bool {
	switch d {
	case Clockwise:
		return s.position < s.max
	case CounterClockwise:
		return s.position > 0
	default:
		return false
	}
}

// Pulse returns a future that issues one step in d, holding the step line
// high for width on timer. A step that would leave travel completes at once
// without touching the outputs.
func (s *Stepper) Pulse(timer *core.TimerService, d Direction, width time.Duration) Pulse {
	return Pulse{stepper: s, dir: d, delay: timer.Delay(width)}
}

// HomingPulse is Pulse without the travel bound, for finding home when the
// count cannot be trusted. The count saturates at the ends of travel.
func (s *Stepper) HomingPulse(timer *core.TimerService, d Direction, width time.Duration) Pulse {
	p := s.Pulse(timer, d, width)
	p.unbounded = true
	return p
}

func (s *Stepper) begin(d Direction) {
	if d == CounterClockwise {
		s.pins.SetPin(s.dirPin, true)
	}
	s.pins.SetPin(s.stepPin, true)
}

func (s *Stepper) end(d Direction) {
	s.pins.SetPin(s.stepPin, false)
	if d == CounterClockwise {
		s.pins.SetPin(s.dirPin, false)
		if s.position > 0 {
			s.position--
		}
	} else if s.position < s.max {
		s.position++
	}
	s.steps++
}

// Release lowers both outputs without counting a step
func (s *Stepper) Release() {
	s.pins.SetPin(s.stepPin, false)
	s.pins.SetPin(s.dirPin, false)
}

// Pulse is the future returned by Stepper.Pulse
type Pulse struct {
	stepper *Stepper
	dir     Direction
	delay   core.Delay
	// Ignores the travel bound
	unbounded bool
	started   bool
	moved     bool
	done      bool
}

func (p *Pulse) Poll(cx *core.Context) core.Poll {
	if p.done {
		return core.Ready
	}
	if !p.started {
		p.started = true
		if p.dir == Idle || !p.unbounded && !p.stepper.CanStep(p.dir) {
			p.done = true
			return core.Ready
		}
		p.stepper.begin(p.dir)
		p.moved = true
	}
	if p.delay.Poll(cx) == core.Pending {
		return core.Pending
	}
	p.stepper.end(p.dir)
	p.done = true
	return core.Ready
}

// Abort ends a pulse in progress at once. The rising edge has already gone
// out, so the step is counted.
func (p *Pulse) Abort() {
	if p.moved && !p.done {
		p.stepper.end(p.dir)
	}
	p.done = true
}

// Moved reports whether the pulse was issued
func (p *Pulse) Moved() bool {
	return p.moved
}

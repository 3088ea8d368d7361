package sim

import "claw/core"

type changeGroup struct {
	pins    []core.GPIOPin
	handler func()
}

// Pins is a bank of digital lines. Inputs are driven by the test script,
// outputs are set by firmware code. It implements core.PinReader and
// core.PinWriter.
type Pins struct {
	levels   map[core.GPIOPin]bool
	groups   []changeGroup
	rises    map[core.GPIOPin]int
	watchers map[core.GPIOPin][]func(level bool)
}

func newPins() *Pins {
	return &Pins{
		levels:   make(map[core.GPIOPin]bool),
		rises:    make(map[core.GPIOPin]int),
		watchers: make(map[core.GPIOPin][]func(bool)),
	}
}

// ReadPin returns the current level
func (p *Pins) ReadPin(pin core.GPIOPin) bool {
	return p.levels[pin]
}

// SetPin drives an output
func (p *Pins) SetPin(pin core.GPIOPin, value bool) {
	old := p.levels[pin]
	if value && !old {
		p.rises[pin]++
	}
	p.levels[pin] = value
	if value != old {
		for _, fn := range p.watchers[pin] {
			fn(value)
		}
	}
}

// Watch calls fn after every level change on an output
func (p *Pins) Watch(pin core.GPIOPin, fn func(level bool)) {
	p.watchers[pin] = append(p.watchers[pin], fn)
}

// Set puts a line at level without raising an interrupt, for initial state
func (p *Pins) Set(pin core.GPIOPin, level bool) {
	p.levels[pin] = level
}

// OnChange attaches a pin-change handler shared by pins
func (p *Pins) OnChange(handler func(), pins ...core.GPIOPin) {
	p.groups = append(p.groups, changeGroup{pins: pins, handler: handler})
}

// Drive changes an input and raises the pin-change interrupt of every group
// containing it. Driving the current level raises nothing.
func (p *Pins) Drive(gp core.GPIOPin, level bool) {
	if p.levels[gp] == level {
		return
	}
	p.SetPin(gp, level)
	for _, g := range p.groups {
		for _, member := range g.pins {
			if member == gp {
				g.handler()
				break
			}
		}
	}
}

// Rises counts low-to-high transitions on a line, i.e. step pulses
func (p *Pins) Rises(pin core.GPIOPin) int {
	return p.rises[pin]
}

package sim

import "claw/core"

// Gantry models the mechanics behind one stepper driver: it counts step
// pulses, follows the direction line and closes the home switch whenever
// the carriage sits at position zero.
type Gantry struct {
	board     *Board
	dir, home core.GPIOPin
	closed    bool // Home switch level when pressed

	// Position is the carriage position in steps
	Position int
}

// NewGantry attaches a gantry to the step and direction outputs. The home
// switch starts in the state that matches start.
func (b *Board) NewGantry(step, dir, home core.GPIOPin, closed bool, start int) *Gantry {
	g := &Gantry{board: b, dir: dir, home: home, closed: closed, Position: start}
	b.Pins.Set(home, g.atHome() == closed)
	b.Pins.Watch(step, g.onStep)
	return g
}

func (g *Gantry) atHome() bool {
	return g.Position <= 0
}

// onStep moves the carriage on the rising edge of a step pulse. A high
// direction line moves toward home.
func (g *Gantry) onStep(level bool) {
	if !level {
		return
	}
	wasHome := g.atHome()
	if g.board.Pins.ReadPin(g.dir) {
		g.Position--
	} else {
		g.Position++
	}
	if home := g.atHome(); home != wasHome {
		// The switch interrupt follows the pulse, it does not preempt it
		g.board.Drive(g.board.now, g.home, home == g.closed)
	}
}

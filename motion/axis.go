package motion

import (
	"time"

	"claw/core"
)

// DefaultStepGap is the low time between two pulses
const DefaultStepGap = 1000 * time.Microsecond

// AxisConfig holds the timing of one axis
type AxisConfig struct {
	Name  string
	Pulse time.Duration // Step line high time
	Gap   time.Duration // Step line low time between pulses
}

const (
	axisIdle  = iota // Waiting for a command
	axisPulse        // Step line high
	axisGap          // Between pulses, racing the next command
)

// Axis is the task that moves one axis. It waits for a direction, then
// pulses until the direction changes. A command never cuts a pulse short:
// the pulse runs to completion and the gap that follows is raced against
// the channel, with the gap timer winning ties.
//
// An optional twin motor is driven in the mirrored direction in lockstep,
// and an optional home switch stops travel toward home and re-zeroes both
// motors.
type Axis struct {
	cfg     AxisConfig
	timer   *core.TimerService
	cmds    *core.Channel[Direction]
	primary *Stepper
	twin    *Stepper

	limits      *core.EdgeNotifier
	limitLine   int
	limitClosed bool

	dir    Direction
	state  uint8
	recv   core.Receive[Direction]
	p1     Pulse
	p2     Pulse
	join   core.JoinFuture
	gap    core.Delay
	sel    core.SelectFuture
	homed  uint32
	homing bool
}

// NewAxis creates an idle axis driving primary from commands on cmds
func NewAxis(cfg AxisConfig, timer *core.TimerService, cmds *core.Channel[Direction], primary *Stepper) *Axis {
	if cfg.Pulse <= 0 {
		cfg.Pulse = DefaultPulseWidth
	}
	if cfg.Gap <= 0 {
		cfg.Gap = DefaultStepGap
	}
	a := &Axis{cfg: cfg, timer: timer, cmds: cmds, primary: primary, limitLine: -1}
	a.Reset()
	return a
}

// SetTwin adds a motor that turns opposite to the primary
func (a *Axis) SetTwin(twin *Stepper) {
	a.twin = twin
}

// SetHomeSwitch guards travel toward home with switch line of limits, which
// reads closed when pressed
func (a *Axis) SetHomeSwitch(limits *core.EdgeNotifier, line int, closed bool) {
	a.limits = limits
	a.limitLine = line
	a.limitClosed = closed
}

// SetHoming lets travel toward home pass the lower end of the step count
// until the home switch closes. It has no effect without a home switch.
func (a *Axis) SetHoming(on bool) {
	a.homing = on
}

// Name returns the configured axis name
func (a *Axis) Name() string {
	return a.cfg.Name
}

// Direction returns the direction currently being executed
func (a *Axis) Direction() Direction {
	return a.dir
}

// Homed returns how many times the home switch stopped the axis
func (a *Axis) Homed() uint32 {
	return a.homed
}

// Reset drops any motion in progress and lowers the outputs. Call it before
// the axis is installed in a new task set: registrations made under the old
// set can no longer wake it.
func (a *Axis) Reset() {
	if a.state == axisPulse {
		a.p1.Abort()
		if a.twin != nil {
			a.p2.Abort()
		}
	}
	a.dir = Idle
	a.state = axisIdle
	a.recv = a.cmds.Receive()
}

// Release lowers the outputs of every motor on the axis. It is the
// shutdown path and does not touch the task state.
func (a *Axis) Release() {
	a.primary.Release()
	if a.twin != nil {
		a.twin.Release()
	}
}

// Primary returns the main motor
func (a *Axis) Primary() *Stepper {
	return a.primary
}

// Twin returns the mirrored motor, nil when there is none
func (a *Axis) Twin() *Stepper {
	return a.twin
}

func (a *Axis) Poll(cx *core.Context) core.Poll {
	for {
		switch a.state {
		case axisIdle:
			if a.recv.Poll(cx) == core.Pending {
				return core.Pending
			}
			a.command(a.recv.Value())
			if a.dir != Idle {
				a.startPulse()
			}

		case axisPulse:
			if a.pulses(cx) == core.Pending {
				return core.Pending
			}
			if !a.p1.Moved() {
				// End of travel
				a.stop()
				continue
			}
			a.gap = a.timer.Delay(a.cfg.Gap)
			a.sel = core.Select(&a.gap, &a.recv)
			a.state = axisGap

		case axisGap:
			if a.sel.Poll(cx) == core.Pending {
				return core.Pending
			}
			if a.sel.Winner() == core.SelectedSecond {
				a.command(a.recv.Value())
				if a.dir == Idle {
					continue
				}
			}
			a.startPulse()
		}
	}
}

// command takes a received direction and re-arms the receive
func (a *Axis) command(d Direction) {
	a.recv = a.cmds.Receive()
	a.dir = d
	if d == Idle {
		a.state = axisIdle
	}
}

func (a *Axis) stop() {
	a.dir = Idle
	a.state = axisIdle
}

func (a *Axis) atHome() bool {
	return a.limits != nil && a.limits.Level(a.limitLine) == a.limitClosed
}

func (a *Axis) startPulse() {
	if a.dir == CounterClockwise && a.atHome() {
		a.primary.Home()
		if a.twin != nil {
			a.twin.Home()
		}
		a.homed++
		a.stop()
		return
	}
	pulse := (*Stepper).Pulse
	if a.homing && a.dir == CounterClockwise && a.limits != nil {
		pulse = (*Stepper).HomingPulse
	}
	a.p1 = pulse(a.primary, a.timer, a.dir, a.cfg.Pulse)
	if a.twin != nil {
		a.p2 = pulse(a.twin, a.timer, a.dir.Invert(), a.cfg.Pulse)
		a.join = core.Join(&a.p1, &a.p2)
	}
	a.state = axisPulse
}

func (a *Axis) pulses(cx *core.Context) core.Poll {
	if a.twin == nil {
		return a.p1.Poll(cx)
	}
	return a.join.Poll(cx)
}

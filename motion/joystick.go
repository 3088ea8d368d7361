package motion

import (
	"time"

	"claw/core"
)

// DefaultDebounce is the settle time after a joystick edge
const DefaultDebounce = 20 * time.Millisecond

// JoystickConfig maps one joystick axis to two switch lines
type JoystickConfig struct {
	Positive int           // Line that commands Clockwise
	Negative int           // Line that commands CounterClockwise
	Pressed  bool          // Level the lines read when deflected
	Debounce time.Duration // Settle time after every edge
}

const (
	joyReleased = iota
	joySettlePress
	joyHeld
	joySettleRelease
)

// Joystick is the task that turns one joystick axis into direction
// commands: a deflection sends its direction, the release sends Idle. After
// every accepted edge the task sleeps for the debounce time before it looks
// at the switch again, so contact bounce never reaches the axis.
type Joystick struct {
	cfg    JoystickConfig
	inputs *core.EdgeNotifier
	timer  *core.TimerService
	out    *core.Channel[Direction]

	state   uint8
	pos     core.EdgeWait
	neg     core.EdgeWait
	sel     core.SelectFuture
	release core.EdgeWait
	settle  core.Delay
	held    int
	sent    uint32
}

// NewJoystick creates a joystick task reading inputs and debouncing on
// timer, usually the generic service
func NewJoystick(cfg JoystickConfig, inputs *core.EdgeNotifier, timer *core.TimerService, out *core.Channel[Direction]) *Joystick {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	j := &Joystick{cfg: cfg, inputs: inputs, timer: timer, out: out}
	j.Reset()
	return j
}

// Reset re-arms the task for a new task set
func (j *Joystick) Reset() {
	j.pos = j.inputs.WaitFor(j.cfg.Positive, j.cfg.Pressed)
	j.neg = j.inputs.WaitFor(j.cfg.Negative, j.cfg.Pressed)
	j.sel = core.Select(&j.pos, &j.neg)
	j.state = joyReleased
}

// Sent returns the number of commands sent
func (j *Joystick) Sent() uint32 {
	return j.sent
}

func (j *Joystick) Poll(cx *core.Context) core.Poll {
	for {
		switch j.state {
		case joyReleased:
			if j.sel.Poll(cx) == core.Pending {
				return core.Pending
			}
			if j.sel.Winner() == core.SelectedFirst {
				j.held = j.cfg.Positive
				j.send(Clockwise)
			} else {
				j.held = j.cfg.Negative
				j.send(CounterClockwise)
			}
			j.settle = j.timer.Delay(j.cfg.Debounce)
			j.state = joySettlePress

		case joySettlePress:
			if j.settle.Poll(cx) == core.Pending {
				return core.Pending
			}
			j.release = j.inputs.WaitFor(j.held, !j.cfg.Pressed)
			j.state = joyHeld

		case joyHeld:
			if j.release.Poll(cx) == core.Pending {
				return core.Pending
			}
			j.send(Idle)
			j.settle = j.timer.Delay(j.cfg.Debounce)
			j.state = joySettleRelease

		case joySettleRelease:
			if j.settle.Poll(cx) == core.Pending {
				return core.Pending
			}
			j.Reset()
		}
	}
}

func (j *Joystick) send(d Direction) {
	j.out.Send(d)
	j.sent++
}

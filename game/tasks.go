package game

import (
	"time"

	"claw/core"
	"claw/motion"
)

// pressTask ends the phase when a button is pressed. A button that is
// already held when the phase starts has to be released first, so one press
// never counts for two phases.
type pressTask struct {
	exec    *core.Executor
	inputs  *core.EdgeNotifier
	line    int
	pressed bool
	next    core.Phase

	wait     core.EdgeWait
	released bool
}

func (p *pressTask) reset() {
	p.wait = p.inputs.WaitFor(p.line, !p.pressed)
	p.released = false
}

func (p *pressTask) Poll(cx *core.Context) core.Poll {
	if p.wait.Poll(cx) == core.Pending {
		return core.Pending
	}
	if !p.released {
		p.released = true
		p.wait = p.inputs.WaitFor(p.line, p.pressed)
		if p.wait.Poll(cx) == core.Pending {
			return core.Pending
		}
	}
	p.exec.Advance(p.next)
	return core.Ready
}

// timeoutTask ends the phase after a fixed time on the generic service
type timeoutTask struct {
	exec  *core.Executor
	timer *core.TimerService
	after time.Duration
	next  core.Phase

	delay   core.Delay
	expired bool
}

func (t *timeoutTask) reset() {
	t.delay = t.timer.Delay(t.after)
	t.expired = false
}

func (t *timeoutTask) Poll(cx *core.Context) core.Poll {
	if t.delay.Poll(cx) == core.Pending {
		return core.Pending
	}
	t.expired = true
	t.exec.Advance(t.next)
	return core.Ready
}

// homingTask drives every axis toward home and waits for all home switches,
// then drops the prize and ends the phase
type homingTask struct {
	m       *Machine
	started bool
	line    int
	wait    core.EdgeWait
}

func (h *homingTask) reset() {
	h.started = false
	h.line = 0
}

func (h *homingTask) Poll(cx *core.Context) core.Poll {
	m := h.m
	if !h.started {
		h.started = true
		for _, ch := range m.cmds {
			ch.Send(motion.CounterClockwise)
		}
		h.wait = m.limits.WaitFor(0, m.cfg.SwitchPressed)
	}
	for {
		if h.wait.Poll(cx) == core.Pending {
			return core.Pending
		}
		h.line++
		if h.line == m.limits.Lines() {
			break
		}
		h.wait = m.limits.WaitFor(h.line, m.cfg.SwitchPressed)
	}
	m.gripper.Open()
	m.exec.Advance(PhaseIdle)
	return core.Ready
}

//go:build rp2040

package main

import (
	"device/rp"
	"runtime/interrupt"
	"runtime/volatile"
)

// The RP2040 timer is a free-running 1MHz counter with four absolute alarms.
// The TinyGo runtime sleeps on alarm 0; the game uses alarms 2 and 3.
const (
	precisionAlarm = 2
	genericAlarm   = 3

	precisionShift = 0 // 1us ticks
	genericShift   = 4 // 16us ticks
)

// alarmTimer presents one alarm as a compare timer that restarts at every
// match. Matches are counted from the previous scheduled match, not from
// when the interrupt ran, so interrupt latency never accumulates.
type alarmTimer struct {
	alarm     uint8
	shift     uint8
	max       uint32
	compare   uint32
	lastMatch uint32 // Microsecond counter at the previous match
	armed     bool
	handler   func()
}

func newAlarmTimer(alarm, shift uint8, max uint32) *alarmTimer {
	return &alarmTimer{alarm: alarm, shift: shift, max: max, compare: max}
}

func (t *alarmTimer) mask() uint32 {
	return 1 << t.alarm
}

func (t *alarmTimer) alarmRegister() *volatile.Register32 {
	if t.alarm == precisionAlarm {
		return &rp.TIMER.ALARM2
	}
	return &rp.TIMER.ALARM3
}

// Attach sets the match handler and starts counting from now. The owning
// TimerService arms the first compare when it starts.
func (t *alarmTimer) Attach(handler func()) {
	t.handler = handler
	t.lastMatch = rp.TIMER.TIMERAWL.Get()
	rp.TIMER.INTE.SetBits(t.mask())
}

// SetCompare programs the next match relative to the previous one
func (t *alarmTimer) SetCompare(ticks uint32) {
	t.compare = ticks
	t.arm()
}

// Elapsed returns whole ticks since the previous match
func (t *alarmTimer) Elapsed() uint32 {
	return (rp.TIMER.TIMERAWL.Get() - t.lastMatch) >> t.shift
}

func (t *alarmTimer) MaxCompare() uint32 {
	return t.max
}

func (t *alarmTimer) arm() {
	span := t.compare << t.shift
	target := t.lastMatch + span
	t.alarmRegister().Set(target)
	t.armed = true
	// A target already behind the counter would only match after wrapping
	if rp.TIMER.TIMERAWL.Get()-t.lastMatch >= span {
		rp.TIMER.INTF.SetBits(t.mask())
	}
}

func (t *alarmTimer) match() {
	rp.TIMER.ARMED.Set(t.mask())
	rp.TIMER.INTR.Set(t.mask())
	rp.TIMER.INTF.ClearBits(t.mask())
	t.lastMatch += t.compare << t.shift
	t.armed = false
	if t.handler != nil {
		t.handler()
	}
	// A compare register keeps its value across matches; so does this one
	if !t.armed {
		t.arm()
	}
}

var (
	precisionTimer = newAlarmTimer(precisionAlarm, precisionShift, 1<<20)
	genericTimer   = newAlarmTimer(genericAlarm, genericShift, 62500)
)

func initAlarms() {
	interrupt.New(rp.IRQ_TIMER_IRQ_2, func(interrupt.Interrupt) { precisionTimer.match() }).Enable()
	interrupt.New(rp.IRQ_TIMER_IRQ_3, func(interrupt.Interrupt) { genericTimer.match() }).Enable()
}

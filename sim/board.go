// Package sim provides simulated board hardware for host builds: compare
// timers and a pin bank on one virtual clock. Board.WaitForInterrupt is the
// executor's idle function; instead of sleeping it advances the clock to the
// next interrupt and runs its handler, so runs are deterministic and take no
// wall time.
package sim

import (
	"time"

	"claw/core"
)

// DefaultLimit bounds virtual time so a run that never ends fails instead of
// looping forever
const DefaultLimit = 10 * time.Minute

type scripted struct {
	at  time.Duration
	seq uint64
	fn  func()
}

// Board owns the virtual clock
type Board struct {
	now    time.Duration
	timers []*Timer
	events []scripted
	seq    uint64

	// Limit is the virtual time after which WaitForInterrupt stalls
	Limit time.Duration
	// OnStall runs when there is nothing left to wait for; it panics by default
	OnStall func()

	Pins *Pins
}

// NewBoard creates a board at time zero
func NewBoard() *Board {
	b := &Board{Limit: DefaultLimit}
	b.Pins = newPins()
	return b
}

// Now returns the virtual time
func (b *Board) Now() time.Duration {
	return b.now
}

// NewTimer adds a compare timer counting one tick every tick
func (b *Board) NewTimer(tick time.Duration, max uint32) *Timer {
	t := &Timer{board: b, tick: tick, max: max, compare: max, lastMatch: b.now}
	b.timers = append(b.timers, t)
	return t
}

// At schedules fn, an external stimulus such as a button press, at virtual
// time t. Events at the same time run in the order they were added.
func (b *Board) At(t time.Duration, fn func()) {
	if t < b.now {
		t = b.now
	}
	b.seq++
	e := scripted{at: t, seq: b.seq, fn: fn}
	i := len(b.events)
	b.events = append(b.events, e)
	for i > 0 && b.events[i-1].at > t {
		b.events[i] = b.events[i-1]
		i--
	}
	b.events[i] = e
}

// After schedules fn d from now
func (b *Board) After(d time.Duration, fn func()) {
	b.At(b.now+d, fn)
}

// Drive schedules an input level change at virtual time t
func (b *Board) Drive(t time.Duration, pin core.GPIOPin, level bool) {
	b.At(t, func() { b.Pins.Drive(pin, level) })
}

// next finds the earliest pending interrupt: a timer match or a scripted
// event. Timers win ties, in creation order.
func (b *Board) next() (at time.Duration, timer *Timer, ok bool) {
	for _, t := range b.timers {
		if t.handler == nil {
			continue
		}
		m := t.nextMatch()
		if !ok || m < at {
			at, timer, ok = m, t, true
		}
	}
	if len(b.events) > 0 && (!ok || b.events[0].at < at) {
		return b.events[0].at, nil, true
	}
	return at, timer, ok
}

// Step moves the clock to the next interrupt and services it. It reports
// false when nothing is pending before Limit.
func (b *Board) Step() bool {
	at, timer, ok := b.next()
	if !ok || at > b.Limit {
		return false
	}
	b.now = at
	if timer != nil {
		timer.match()
		return true
	}
	e := b.events[0]
	copy(b.events, b.events[1:])
	b.events = b.events[:len(b.events)-1]
	e.fn()
	return true
}

// AdvanceTo services every interrupt up to t and leaves the clock at t
func (b *Board) AdvanceTo(t time.Duration) {
	for {
		at, _, ok := b.next()
		if !ok || at > t {
			break
		}
		b.Step()
	}
	if t > b.now {
		b.now = t
	}
}

// Advance is AdvanceTo relative to now
func (b *Board) Advance(d time.Duration) {
	b.AdvanceTo(b.now + d)
}

// WaitForInterrupt is the executor idle hook
func (b *Board) WaitForInterrupt() {
	if b.Step() {
		return
	}
	if b.OnStall != nil {
		b.OnStall()
		return
	}
	panic("sim: no interrupt pending before " + b.Limit.String())
}

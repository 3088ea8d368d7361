package sim

import (
	"strconv"
	"time"
)

// Timer is a CTC-style compare timer: the counter restarts at every match.
// It implements core.TimerHardware.
type Timer struct {
	board     *Board
	tick      time.Duration
	max       uint32
	compare   uint32
	lastMatch time.Duration
	handler   func()

	// Matches counts compare interrupts
	Matches int
}

// Attach sets the compare-match handler, normally TimerService.HandleInterrupt
func (t *Timer) Attach(handler func()) {
	t.handler = handler
}

// SetCompare programs the next match relative to the previous one
func (t *Timer) SetCompare(ticks uint32) {
	if ticks == 0 || ticks > t.max {
		panic("sim: compare " + strconv.FormatUint(uint64(ticks), 10) + " outside register width")
	}
	if ticks <= t.Elapsed() {
		panic("sim: compare " + strconv.FormatUint(uint64(ticks), 10) + " already passed")
	}
	t.compare = ticks
}

// Elapsed returns whole ticks since the previous match
func (t *Timer) Elapsed() uint32 {
	return uint32((t.board.now - t.lastMatch) / t.tick)
}

// MaxCompare returns the register width
func (t *Timer) MaxCompare() uint32 {
	return t.max
}

// Compare returns the programmed compare value
func (t *Timer) Compare() uint32 {
	return t.compare
}

// Tick returns the duration of one tick
func (t *Timer) Tick() time.Duration {
	return t.tick
}

func (t *Timer) nextMatch() time.Duration {
	return t.lastMatch + time.Duration(t.compare)*t.tick
}

func (t *Timer) match() {
	t.lastMatch = t.nextMatch()
	t.Matches++
	if t.handler != nil {
		t.handler()
	}
}

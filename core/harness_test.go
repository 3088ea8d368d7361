package core_test

import (
	"errors"
	"testing"
	"time"

	"claw/core"
	"claw/sim"
)

const (
	precisionTick = 2500 * time.Nanosecond
	genericTick   = 16 * time.Microsecond

	phaseDone core.Phase = 1
)

// rig wires an executor and both timer services to a simulated board
type rig struct {
	board       *sim.Board
	exec        *core.Executor
	precisionHW *sim.Timer
	precision   *core.TimerService
	genericHW   *sim.Timer
	generic     *core.TimerService
	remaining   int
}

func newRig(t *testing.T) *rig {
	t.Helper()
	core.ClearTimingRing()

	b := sim.NewBoard()
	b.Limit = time.Minute
	r := &rig{board: b}
	r.exec = core.NewExecutor(core.ReadyQueueSize, b.WaitForInterrupt)

	r.precisionHW = b.NewTimer(precisionTick, 250)
	r.precision = core.NewTimerService(core.PrecisionConfig(), r.precisionHW)
	r.precisionHW.Attach(r.precision.HandleInterrupt)
	r.precision.Start()

	r.genericHW = b.NewTimer(genericTick, 65535)
	r.generic = core.NewTimerService(core.GenericConfig(), r.genericHW)
	r.genericHW.Attach(r.generic.HandleInterrupt)
	r.generic.Start()
	return r
}

// runUntilDone runs tasks until done has been called n times
func (r *rig) runUntilDone(n int, tasks ...core.Future) core.Phase {
	r.remaining = n
	return r.exec.Run(tasks)
}

// done marks one task finished and ends the phase after the last one
func (r *rig) done() {
	r.remaining--
	if r.remaining == 0 {
		r.exec.Advance(phaseDone)
	}
}

// ticksAt converts a precision tick count to virtual time
func ticksAt(ticks uint64) time.Duration {
	return time.Duration(ticks) * precisionTick
}

// expectHalt runs fn and checks that it halts with kind
func expectHalt(t *testing.T, kind core.FatalKind, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		if r == nil {
			t.Fatalf("Expected halt (%v), got none", kind)
		}
		err, ok := r.(error)
		var fatal *core.FatalError
		if !ok || !errors.As(err, &fatal) {
			t.Fatalf("Expected *core.FatalError, got %v", r)
		}
		if fatal.Kind != kind {
			t.Fatalf("Expected halt kind %v, got %v (%s)", kind, fatal.Kind, fatal.Reason)
		}
	}()
	fn()
}

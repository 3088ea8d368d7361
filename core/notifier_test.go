package core_test

import (
	"testing"
	"time"

	"claw/core"
	"claw/sim"
)

func newNotifierBoard(levels ...bool) (*sim.Board, *core.EdgeNotifier, *core.Executor) {
	b := sim.NewBoard()
	lines := make([]core.GPIOPin, len(levels))
	for i, level := range levels {
		lines[i] = core.GPIOPin(10 + i)
		b.Pins.Set(lines[i], level)
	}
	n := core.NewEdgeNotifier("test", b.Pins, lines...)
	b.Pins.OnChange(n.HandleInterrupt, lines...)
	n.Start()
	return b, n, core.NewExecutor(4, b.WaitForInterrupt)
}

func TestWaitForCurrentLevelResolvesImmediately(t *testing.T) {
	b, n, exec := newNotifierBoard(true)

	w := n.WaitFor(0, true)
	polls := 0
	task := core.FutureFunc(func(cx *core.Context) core.Poll {
		polls++
		if w.Poll(cx) == core.Pending {
			return core.Pending
		}
		exec.Advance(phaseDone)
		return core.Ready
	})
	exec.Run([]core.Future{task})

	if polls != 1 {
		t.Errorf("Expected a single poll, got %d", polls)
	}
	if b.Now() != 0 {
		t.Errorf("Expected no interrupt to be serviced, now %v", b.Now())
	}
}

func TestEdgesWakeMatchingWaitersInOrder(t *testing.T) {
	b, n, exec := newNotifierBoard(false, false)

	type mark struct {
		level bool
		at    time.Duration
	}
	var seen []mark

	rise := n.WaitFor(0, true)
	fall := n.WaitFor(0, false)
	follower := core.FutureFunc(func(cx *core.Context) core.Poll {
		if rise.Poll(cx) == core.Pending {
			return core.Pending
		}
		if len(seen) == 0 {
			seen = append(seen, mark{true, b.Now()})
		}
		if fall.Poll(cx) == core.Pending {
			return core.Pending
		}
		seen = append(seen, mark{false, b.Now()})
		return core.Ready
	})

	otherPolls := 0
	other := n.WaitFor(1, true)
	bystander := core.FutureFunc(func(cx *core.Context) core.Poll {
		otherPolls++
		return other.Poll(cx)
	})

	b.Drive(time.Millisecond, 10, true)
	b.Drive(2*time.Millisecond, 10, false)
	b.At(5*time.Millisecond, func() { exec.Advance(phaseDone) })
	exec.Run([]core.Future{follower, bystander})

	want := []mark{{true, time.Millisecond}, {false, 2 * time.Millisecond}}
	if len(seen) != len(want) {
		t.Fatalf("Observed %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("Edge %d: got %v, want %v", i, seen[i], want[i])
		}
	}
	if otherPolls != 1 {
		t.Errorf("Waiter on an unchanged line polled %d times", otherPolls)
	}
	if n.Level(0) {
		t.Error("Expected line 0 low")
	}
}

func TestEdgeSlotConflictHalts(t *testing.T) {
	_, n, exec := newNotifierBoard(false)

	a := n.WaitFor(0, true)
	c := n.WaitFor(0, true)
	tasks := []core.Future{&a, &c}
	expectHalt(t, core.FatalInvariant, func() { exec.Run(tasks) })
}

func TestEdgeSameTaskMayReregister(t *testing.T) {
	b, n, exec := newNotifierBoard(false)

	first := n.WaitFor(0, true)
	second := n.WaitFor(0, true)
	var firstAt, secondAt time.Duration
	firstDone, secondDone := false, false
	task := core.FutureFunc(func(cx *core.Context) core.Poll {
		if !firstDone && first.Poll(cx) == core.Ready {
			firstDone, firstAt = true, b.Now()
		}
		if !secondDone && second.Poll(cx) == core.Ready {
			secondDone, secondAt = true, b.Now()
		}
		if firstDone && secondDone {
			exec.Advance(phaseDone)
			return core.Ready
		}
		return core.Pending
	})
	// A wake with no edge behind it must not complete either wait
	b.At(500*time.Microsecond, func() { exec.Wake(0) })
	b.Drive(time.Millisecond, 10, true)
	exec.Run([]core.Future{task})

	if firstAt != time.Millisecond || secondAt != time.Millisecond {
		t.Errorf("Expected both waits to complete at the 1ms rise, got %v and %v", firstAt, secondAt)
	}
}

func TestEdgeSelectOnOneLineWaitsForTheLevel(t *testing.T) {
	b, n, exec := newNotifierBoard(false)

	a := n.WaitFor(0, true)
	c := n.WaitFor(0, true)
	sel := core.Select(&a, &c)
	var level bool
	var at time.Duration
	task := core.FutureFunc(func(cx *core.Context) core.Poll {
		if sel.Poll(cx) == core.Pending {
			return core.Pending
		}
		level, at = n.Level(0), b.Now()
		exec.Advance(phaseDone)
		return core.Ready
	})
	b.At(time.Millisecond, func() { exec.Wake(0) })
	b.At(2*time.Millisecond, func() { exec.Wake(0) })
	b.Drive(3*time.Millisecond, 10, true)
	exec.Run([]core.Future{task})

	if !level || at != 3*time.Millisecond {
		t.Errorf("Expected the select to finish on the 3ms rise, got level=%v at %v", level, at)
	}
}

func TestEdgeBadIndexHalts(t *testing.T) {
	_, n, _ := newNotifierBoard(false)
	expectHalt(t, core.FatalInvariant, func() { n.WaitFor(3, true) })
}

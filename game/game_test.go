package game_test

import (
	"testing"
	"time"

	"claw/config"
	"claw/core"
	"claw/game"
	"claw/sim"
)

type fakeGripper struct {
	events []string
}

func (g *fakeGripper) Open()  { g.events = append(g.events, "open") }
func (g *fakeGripper) Close() { g.events = append(g.events, "close") }

type arcade struct {
	board   *sim.Board
	cfg     *config.MachineConfig
	m       *game.Machine
	gripper *fakeGripper
	x, y    *sim.Gantry
}

func newArcade(t *testing.T) *arcade {
	t.Helper()
	return newArcadeAt(t, 0)
}

// newArcadeAt places the x carriage xStart steps from home while the step
// count still reads zero
func newArcadeAt(t *testing.T, xStart int) *arcade {
	t.Helper()
	core.ClearTimingRing()
	cfg := config.Default()
	b := sim.NewBoard()

	// Pull-ups: released switches read high
	for _, p := range []uint32{cfg.StartPin, cfg.GrabPin} {
		b.Pins.Set(core.GPIOPin(p), true)
	}
	for _, a := range cfg.Axes {
		b.Pins.Set(core.GPIOPin(a.JoystickPositive), true)
		b.Pins.Set(core.GPIOPin(a.JoystickNegative), true)
	}
	x := b.NewGantry(core.GPIOPin(cfg.Axes[0].Stepper.StepPin), core.GPIOPin(cfg.Axes[0].Stepper.DirPin),
		core.GPIOPin(cfg.Axes[0].HomePin), cfg.SwitchPressed, xStart)
	y := b.NewGantry(core.GPIOPin(cfg.Axes[1].Stepper.StepPin), core.GPIOPin(cfg.Axes[1].Stepper.DirPin),
		core.GPIOPin(cfg.Axes[1].HomePin), cfg.SwitchPressed, 0)

	phw := b.NewTimer(2500*time.Nanosecond, cfg.Precision.MaxCompare)
	ghw := b.NewTimer(16*time.Microsecond, cfg.Generic.MaxCompare)
	gripper := &fakeGripper{}
	m := game.New(cfg, game.Hardware{
		Pins:      b.Pins,
		Precision: phw,
		Generic:   ghw,
		Gripper:   gripper,
		Idle:      b.WaitForInterrupt,
	})
	phw.Attach(m.Precision().HandleInterrupt)
	ghw.Attach(m.Generic().HandleInterrupt)
	b.Pins.OnChange(m.Buttons().HandleInterrupt, core.GPIOPin(cfg.StartPin), core.GPIOPin(cfg.GrabPin))
	for _, a := range cfg.Axes {
		b.Pins.OnChange(m.Joystick().HandleInterrupt, core.GPIOPin(a.JoystickPositive), core.GPIOPin(a.JoystickNegative))
		b.Pins.OnChange(m.Limits().HandleInterrupt, core.GPIOPin(a.HomePin))
	}
	m.Start()

	return &arcade{board: b, cfg: cfg, m: m, gripper: gripper, x: x, y: y}
}

// press holds a switch for d starting at t
func (a *arcade) press(pin uint32, t, d time.Duration) {
	a.board.Drive(t, core.GPIOPin(pin), a.cfg.SwitchPressed)
	a.board.Drive(t+d, core.GPIOPin(pin), !a.cfg.SwitchPressed)
}

func TestPlayOneRound(t *testing.T) {
	a := newArcade(t)
	a.press(a.cfg.StartPin, 10*time.Millisecond, 50*time.Millisecond)
	a.press(a.cfg.Axes[0].JoystickPositive, 100*time.Millisecond, 40*time.Millisecond)
	a.press(a.cfg.Axes[1].JoystickPositive, 200*time.Millisecond, 20*time.Millisecond)
	a.press(a.cfg.GrabPin, 300*time.Millisecond, 50*time.Millisecond)

	if next := a.m.Step(); next != game.PhaseRunning {
		t.Fatalf("Expected running after start, got %s", game.PhaseName(next))
	}
	if a.board.Now() != 10*time.Millisecond {
		t.Errorf("Expected start at 10ms, now %v", a.board.Now())
	}

	if next := a.m.Step(); next != game.PhaseFinished {
		t.Fatalf("Expected finished after grab, got %s", game.PhaseName(next))
	}
	if a.board.Now() != 300*time.Millisecond {
		t.Errorf("Expected grab at 300ms, now %v", a.board.Now())
	}
	xOut, yOut := a.x.Position, a.y.Position
	if xOut < 15 || yOut < 5 {
		t.Errorf("Expected the joystick to move both axes, x=%d y=%d", xOut, yOut)
	}
	if got := a.m.Axes()[0].Primary().Position(); got != uint32(xOut) {
		t.Errorf("Stepper x at %d, carriage at %d", got, xOut)
	}
	twin := a.m.Axes()[1].Twin()
	if twin == nil || twin.Position() != uint32(6000-yOut) {
		t.Errorf("Expected the mirrored motor to follow y")
	}

	if next := a.m.Step(); next != game.PhaseIdle {
		t.Fatalf("Expected idle after homing, got %s", game.PhaseName(next))
	}
	if a.x.Position != 0 || a.y.Position != 0 {
		t.Errorf("Expected carriage home, x=%d y=%d", a.x.Position, a.y.Position)
	}
	want := []string{"open", "close", "open"}
	if len(a.gripper.events) != len(want) {
		t.Fatalf("Gripper events %v, want %v", a.gripper.events, want)
	}
	for i := range want {
		if a.gripper.events[i] != want[i] {
			t.Fatalf("Gripper events %v, want %v", a.gripper.events, want)
		}
	}
	if a.m.Rounds() != 1 {
		t.Errorf("Expected 1 round, got %d", a.m.Rounds())
	}
}

func TestRoundEndsOnTimeout(t *testing.T) {
	a := newArcade(t)
	a.press(a.cfg.StartPin, 10*time.Millisecond, 50*time.Millisecond)

	a.m.Step()
	if next := a.m.Step(); next != game.PhaseFinished {
		t.Fatalf("Expected finished on timeout, got %s", game.PhaseName(next))
	}
	want := 10*time.Millisecond + a.cfg.GameTimeout()
	if d := a.board.Now() - want; d < 0 || d > time.Millisecond {
		t.Errorf("Expected timeout near %v, now %v", want, a.board.Now())
	}

	// Never left home, so homing completes at once
	finished := a.board.Now()
	if next := a.m.Step(); next != game.PhaseIdle {
		t.Fatalf("Expected idle, got %s", game.PhaseName(next))
	}
	if a.board.Now() != finished {
		t.Errorf("Homing from home took %v", a.board.Now()-finished)
	}
}

func TestHomingRunsToTheSwitch(t *testing.T) {
	a := newArcadeAt(t, 30)
	a.press(a.cfg.StartPin, 10*time.Millisecond, 10*time.Millisecond)
	a.press(a.cfg.GrabPin, 30*time.Millisecond, 10*time.Millisecond)

	a.m.Step()
	if next := a.m.Step(); next != game.PhaseFinished {
		t.Fatalf("Expected finished after grab, got %s", game.PhaseName(next))
	}
	x := a.m.Axes()[0]
	if x.Primary().Position() != 0 || a.x.Position != 30 {
		t.Fatalf("Expected count 0 with the carriage at 30, got %d and %d", x.Primary().Position(), a.x.Position)
	}

	finished := a.board.Now()
	if next := a.m.Step(); next != game.PhaseIdle {
		t.Fatalf("Expected idle after homing, got %s", game.PhaseName(next))
	}
	if a.x.Position != 0 {
		t.Errorf("Expected carriage home, x=%d", a.x.Position)
	}
	if d := a.board.Now() - finished; d > 200*time.Millisecond {
		t.Errorf("Homing took %v, expected the switch to end it", d)
	}
	if x.Homed() == 0 || x.Primary().Position() != 0 {
		t.Errorf("Expected the switch to re-zero x, homed=%d position=%d", x.Homed(), x.Primary().Position())
	}
	if twin := a.m.Axes()[1].Twin(); twin != nil && twin.Position() != 6000 {
		t.Errorf("Expected the mirrored motor to stay at the end of travel, got %d", twin.Position())
	}
}

func TestHeldStartButtonNeedsRelease(t *testing.T) {
	a := newArcade(t)
	// Held from boot; only the second press counts
	a.board.Pins.Set(core.GPIOPin(a.cfg.StartPin), a.cfg.SwitchPressed)
	a.board.Drive(20*time.Millisecond, core.GPIOPin(a.cfg.StartPin), !a.cfg.SwitchPressed)
	a.board.Drive(40*time.Millisecond, core.GPIOPin(a.cfg.StartPin), a.cfg.SwitchPressed)
	a.m.Buttons().Start()

	if next := a.m.Step(); next != game.PhaseRunning {
		t.Fatalf("Expected running, got %s", game.PhaseName(next))
	}
	if a.board.Now() != 40*time.Millisecond {
		t.Errorf("Expected the second press at 40ms to start, now %v", a.board.Now())
	}
}

func TestConsecutiveRounds(t *testing.T) {
	a := newArcade(t)
	for round := 0; round < 3; round++ {
		base := a.board.Now()
		a.press(a.cfg.StartPin, base+10*time.Millisecond, 20*time.Millisecond)
		a.press(a.cfg.Axes[0].JoystickPositive, base+50*time.Millisecond, 30*time.Millisecond)
		a.press(a.cfg.GrabPin, base+100*time.Millisecond, 20*time.Millisecond)
		for i := 0; i < 3; i++ {
			a.m.Step()
		}
		if a.m.Phase() != game.PhaseIdle {
			t.Fatalf("Round %d ended in %s", round, game.PhaseName(a.m.Phase()))
		}
		if a.x.Position != 0 {
			t.Fatalf("Round %d left x at %d", round, a.x.Position)
		}
	}
	if a.m.Rounds() != 3 {
		t.Errorf("Expected 3 rounds, got %d", a.m.Rounds())
	}
}

func TestPhaseName(t *testing.T) {
	if game.PhaseName(game.PhaseRunning) != "running" || game.PhaseName(9) != "unknown" {
		t.Error("Unexpected phase names")
	}
}

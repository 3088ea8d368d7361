package motion_test

import (
	"testing"
	"time"

	"claw/core"
	"claw/motion"
	"claw/sim"
)

const (
	stepPin  core.GPIOPin = 1
	dirPin   core.GPIOPin = 2
	twinStep core.GPIOPin = 3
	twinDir  core.GPIOPin = 4
	homePin  core.GPIOPin = 20
	joyPos   core.GPIOPin = 30
	joyNeg   core.GPIOPin = 31

	phaseDone core.Phase = 1
)

type bench struct {
	board     *sim.Board
	exec      *core.Executor
	precision *core.TimerService
	generic   *core.TimerService
}

func newBench(t *testing.T) *bench {
	t.Helper()
	b := sim.NewBoard()
	b.Limit = time.Minute

	phw := b.NewTimer(2500*time.Nanosecond, 250)
	precision := core.NewTimerService(core.PrecisionConfig(), phw)
	phw.Attach(precision.HandleInterrupt)
	precision.Start()

	ghw := b.NewTimer(16*time.Microsecond, 65535)
	generic := core.NewTimerService(core.GenericConfig(), ghw)
	ghw.Attach(generic.HandleInterrupt)
	generic.Start()

	return &bench{
		board:     b,
		exec:      core.NewExecutor(core.ReadyQueueSize, b.WaitForInterrupt),
		precision: precision,
		generic:   generic,
	}
}

func (b *bench) runFor(d time.Duration, tasks ...core.Future) {
	b.board.At(d, func() { b.exec.Advance(phaseDone) })
	b.exec.Run(tasks)
}

func TestDirectionInvert(t *testing.T) {
	tests := []struct {
		in, want motion.Direction
		name     string
	}{
		{motion.Idle, motion.Idle, "idle"},
		{motion.Clockwise, motion.CounterClockwise, "cw"},
		{motion.CounterClockwise, motion.Clockwise, "ccw"},
	}
	for _, tt := range tests {
		if got := tt.in.Invert(); got != tt.want {
			t.Errorf("%v.Invert() = %v, want %v", tt.in, got, tt.want)
		}
		if tt.in.String() != tt.name {
			t.Errorf("String() = %q, want %q", tt.in.String(), tt.name)
		}
	}
}

func TestStepperTravelBounds(t *testing.T) {
	b := sim.NewBoard()
	s := motion.NewStepper(b.Pins, stepPin, dirPin, 3, false)
	if s.CanStep(motion.CounterClockwise) {
		t.Error("Stepper at home should not step toward home")
	}
	if !s.CanStep(motion.Clockwise) {
		t.Error("Stepper at home should step away")
	}
	if s.CanStep(motion.Idle) {
		t.Error("Idle is not a step")
	}

	m := motion.NewStepper(b.Pins, twinStep, twinDir, 3, true)
	if m.Position() != 3 {
		t.Errorf("Mirrored stepper should start at max, got %d", m.Position())
	}
	if m.CanStep(motion.Clockwise) {
		t.Error("Mirrored stepper at max should not step clockwise")
	}
}

func TestPulseHoldsStepLine(t *testing.T) {
	bn := newBench(t)
	s := motion.NewStepper(bn.board.Pins, stepPin, dirPin, motion.MaxSteps, false)
	p := s.Pulse(bn.precision, motion.Clockwise, time.Millisecond)

	var high bool
	bn.board.At(500*time.Microsecond, func() { high = bn.board.Pins.ReadPin(stepPin) })
	bn.runFor(2*time.Millisecond, &p)

	if !high {
		t.Error("Step line should be high during the pulse")
	}
	if bn.board.Pins.ReadPin(stepPin) {
		t.Error("Step line should be low after the pulse")
	}
	if !p.Moved() || s.Position() != 1 || s.Steps() != 1 {
		t.Errorf("Expected one step, position %d steps %d", s.Position(), s.Steps())
	}
}

func TestAxisStepsUntilIdle(t *testing.T) {
	bn := newBench(t)
	cmds := core.NewChannel[motion.Direction](0)
	s := motion.NewStepper(bn.board.Pins, stepPin, dirPin, motion.MaxSteps, false)
	axis := motion.NewAxis(motion.AxisConfig{Name: "x"}, bn.precision, cmds, s)

	cmds.Send(motion.Clockwise)
	// Pulses start every 2ms. The Idle at 10ms ties with the end of a gap;
	// the timer wins, so the pulse at 10ms still goes out.
	bn.board.At(10*time.Millisecond, func() { cmds.Send(motion.Idle) })
	bn.runFor(20*time.Millisecond, axis)

	if got := bn.board.Pins.Rises(stepPin); got != 6 {
		t.Errorf("Expected 6 pulses, got %d", got)
	}
	if s.Position() != 6 {
		t.Errorf("Expected position 6, got %d", s.Position())
	}
	if axis.Direction() != motion.Idle {
		t.Errorf("Expected idle axis, got %v", axis.Direction())
	}
	if bn.board.Pins.ReadPin(stepPin) {
		t.Error("Step line left high")
	}
}

func TestAxisStopsAtEndOfTravel(t *testing.T) {
	bn := newBench(t)
	cmds := core.NewChannel[motion.Direction](0)
	s := motion.NewStepper(bn.board.Pins, stepPin, dirPin, 4, false)
	axis := motion.NewAxis(motion.AxisConfig{Name: "x"}, bn.precision, cmds, s)

	cmds.Send(motion.Clockwise)
	bn.runFor(50*time.Millisecond, axis)

	if s.Position() != 4 || bn.board.Pins.Rises(stepPin) != 4 {
		t.Errorf("Expected to stop at 4, position %d pulses %d", s.Position(), bn.board.Pins.Rises(stepPin))
	}
	if axis.Direction() != motion.Idle {
		t.Errorf("Expected idle axis, got %v", axis.Direction())
	}
}

func TestTwinMotorMirrors(t *testing.T) {
	bn := newBench(t)
	cmds := core.NewChannel[motion.Direction](0)
	s := motion.NewStepper(bn.board.Pins, stepPin, dirPin, motion.MaxSteps, false)
	twin := motion.NewStepper(bn.board.Pins, twinStep, twinDir, motion.MaxSteps, true)
	axis := motion.NewAxis(motion.AxisConfig{Name: "y"}, bn.precision, cmds, s)
	axis.SetTwin(twin)

	cmds.Send(motion.Clockwise)
	bn.board.At(5*time.Millisecond, func() { cmds.Send(motion.Idle) })
	bn.runFor(20*time.Millisecond, axis)

	if s.Position() != 3 {
		t.Errorf("Expected primary at 3, got %d", s.Position())
	}
	if twin.Position() != motion.MaxSteps-3 {
		t.Errorf("Expected twin at %d, got %d", motion.MaxSteps-3, twin.Position())
	}
	if got := bn.board.Pins.Rises(twinDir); got != 3 {
		t.Errorf("Twin should drive its direction line on every pulse, got %d", got)
	}
	if bn.board.Pins.Rises(dirPin) != 0 {
		t.Error("Primary moved toward home")
	}
}

func TestAxisStopsAtHomeSwitch(t *testing.T) {
	bn := newBench(t)
	gantry := bn.board.NewGantry(stepPin, dirPin, homePin, false, 0)
	limits := core.NewEdgeNotifier("limits", bn.board.Pins, homePin)
	bn.board.Pins.OnChange(limits.HandleInterrupt, homePin)
	limits.Start()

	cmds := core.NewChannel[motion.Direction](0)
	s := motion.NewStepper(bn.board.Pins, stepPin, dirPin, motion.MaxSteps, false)
	axis := motion.NewAxis(motion.AxisConfig{Name: "x"}, bn.precision, cmds, s)
	axis.SetHomeSwitch(limits, 0, false)

	cmds.Send(motion.Clockwise)
	bn.board.At(5500*time.Microsecond, func() { cmds.Send(motion.CounterClockwise) })
	bn.runFor(30*time.Millisecond, axis)

	if gantry.Position != 0 || s.Position() != 0 {
		t.Errorf("Expected carriage home, gantry %d stepper %d", gantry.Position, s.Position())
	}
	if axis.Homed() != 1 {
		t.Errorf("Expected the home switch to stop the axis once, got %d", axis.Homed())
	}
	if limits.Level(0) {
		t.Error("Home switch should read closed")
	}
	if got := bn.board.Pins.Rises(stepPin); got != 6 {
		t.Errorf("Expected 3 steps out and 3 back, got %d", got)
	}
}

func TestHomingPassesTheLowerBound(t *testing.T) {
	bn := newBench(t)
	// Carriage 4 steps out with the count at zero
	gantry := bn.board.NewGantry(stepPin, dirPin, homePin, false, 4)
	limits := core.NewEdgeNotifier("limits", bn.board.Pins, homePin)
	bn.board.Pins.OnChange(limits.HandleInterrupt, homePin)
	limits.Start()

	cmds := core.NewChannel[motion.Direction](0)
	s := motion.NewStepper(bn.board.Pins, stepPin, dirPin, motion.MaxSteps, false)
	axis := motion.NewAxis(motion.AxisConfig{Name: "x"}, bn.precision, cmds, s)
	axis.SetHomeSwitch(limits, 0, false)

	cmds.Send(motion.CounterClockwise)
	bn.runFor(10*time.Millisecond, axis)
	if gantry.Position != 4 || bn.board.Pins.Rises(stepPin) != 0 {
		t.Fatalf("Expected no steps below zero outside homing, gantry %d", gantry.Position)
	}

	axis.Reset()
	axis.SetHoming(true)
	cmds.Send(motion.CounterClockwise)
	bn.runFor(bn.board.Now()+30*time.Millisecond, axis)

	if gantry.Position != 0 || s.Position() != 0 {
		t.Errorf("Expected carriage home, gantry %d stepper %d", gantry.Position, s.Position())
	}
	if got := bn.board.Pins.Rises(stepPin); got != 4 {
		t.Errorf("Expected 4 steps to the switch, got %d", got)
	}
	if axis.Homed() != 1 || axis.Direction() != motion.Idle {
		t.Errorf("Expected the switch to stop the axis, homed %d dir %v", axis.Homed(), axis.Direction())
	}
}

func TestHomingPulseSaturates(t *testing.T) {
	bn := newBench(t)
	s := motion.NewStepper(bn.board.Pins, stepPin, dirPin, 3, false)
	p := s.HomingPulse(bn.precision, motion.CounterClockwise, time.Millisecond)
	bn.runFor(2*time.Millisecond, &p)

	if !p.Moved() || s.Steps() != 1 {
		t.Errorf("Expected a step past the lower bound, steps %d", s.Steps())
	}
	if s.Position() != 0 {
		t.Errorf("Expected the count to hold at 0, got %d", s.Position())
	}
}

// recorder collects every command from a channel
type recorder struct {
	board *sim.Board
	ch    *core.Channel[motion.Direction]
	recv  core.Receive[motion.Direction]
	got   []motion.Direction
	at    []time.Duration
}

func newRecorder(board *sim.Board, ch *core.Channel[motion.Direction]) *recorder {
	return &recorder{board: board, ch: ch, recv: ch.Receive()}
}

func (r *recorder) Poll(cx *core.Context) core.Poll {
	for r.recv.Poll(cx) == core.Ready {
		r.got = append(r.got, r.recv.Value())
		r.at = append(r.at, r.board.Now())
		r.recv = r.ch.Receive()
	}
	return core.Pending
}

func newJoystickInputs(bn *bench, pos, neg bool) *core.EdgeNotifier {
	bn.board.Pins.Set(joyPos, pos)
	bn.board.Pins.Set(joyNeg, neg)
	inputs := core.NewEdgeNotifier("joystick", bn.board.Pins, joyPos, joyNeg)
	bn.board.Pins.OnChange(inputs.HandleInterrupt, joyPos, joyNeg)
	inputs.Start()
	return inputs
}

func TestJoystickSendsDebouncedDirections(t *testing.T) {
	bn := newBench(t)
	inputs := newJoystickInputs(bn, true, true)
	out := core.NewChannel[motion.Direction](1)
	joy := motion.NewJoystick(motion.JoystickConfig{Positive: 0, Negative: 1, Pressed: false}, inputs, bn.generic, out)
	rec := newRecorder(bn.board, out)

	bn.board.Drive(1*time.Millisecond, joyPos, false)
	// Contact bounce inside the settle time
	bn.board.Drive(1500*time.Microsecond, joyPos, true)
	bn.board.Drive(1600*time.Microsecond, joyPos, false)
	bn.board.Drive(50*time.Millisecond, joyPos, true)
	bn.board.Drive(80*time.Millisecond, joyNeg, false)
	bn.runFor(100*time.Millisecond, joy, rec)

	want := []motion.Direction{motion.Clockwise, motion.Idle, motion.CounterClockwise}
	wantAt := []time.Duration{time.Millisecond, 50 * time.Millisecond, 80 * time.Millisecond}
	if len(rec.got) != len(want) {
		t.Fatalf("Received %v, want %v", rec.got, want)
	}
	for i := range want {
		if rec.got[i] != want[i] || rec.at[i] != wantAt[i] {
			t.Errorf("Command %d: got %v at %v, want %v at %v", i, rec.got[i], rec.at[i], want[i], wantAt[i])
		}
	}
	if joy.Sent() != 3 {
		t.Errorf("Expected 3 sends, got %d", joy.Sent())
	}
}

func TestJoystickAlreadyDeflected(t *testing.T) {
	bn := newBench(t)
	inputs := newJoystickInputs(bn, true, false)
	out := core.NewChannel[motion.Direction](1)
	joy := motion.NewJoystick(motion.JoystickConfig{Positive: 0, Negative: 1}, inputs, bn.generic, out)

	bn.runFor(time.Millisecond, joy)

	v, ok := out.TryReceive()
	if !ok || v != motion.CounterClockwise {
		t.Errorf("Expected ccw on the first poll, got %v (ok=%v)", v, ok)
	}
}

func TestJoystickDrivesAxis(t *testing.T) {
	bn := newBench(t)
	inputs := newJoystickInputs(bn, true, true)
	cmds := core.NewChannel[motion.Direction](0)
	joy := motion.NewJoystick(motion.JoystickConfig{Positive: 0, Negative: 1}, inputs, bn.generic, cmds)
	s := motion.NewStepper(bn.board.Pins, stepPin, dirPin, motion.MaxSteps, false)
	axis := motion.NewAxis(motion.AxisConfig{Name: "x"}, bn.precision, cmds, s)

	bn.board.Drive(time.Millisecond, joyPos, false)
	bn.board.Drive(41*time.Millisecond, joyPos, true)
	bn.runFor(100*time.Millisecond, joy, axis)

	// 40ms deflection at one pulse every 2ms
	if got := s.Position(); got < 19 || got > 21 {
		t.Errorf("Expected about 20 steps, got %d", got)
	}
	if axis.Direction() != motion.Idle {
		t.Errorf("Expected idle after release, got %v", axis.Direction())
	}
}

// Package game is the claw machine itself: a loop over three phases, each
// running its own task set on the executor until a button, a timeout or the
// end of homing asks for the next one.
package game

import (
	"claw/config"
	"claw/core"
	"claw/motion"
)

// Game phases
const (
	PhaseIdle     core.Phase = iota // Waiting for the start button
	PhaseRunning                    // Joystick control until grab or timeout
	PhaseFinished                   // Claw closed, returning home
)

// PhaseName returns the printable name of a phase
func PhaseName(p core.Phase) string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Gripper is the claw actuator
type Gripper interface {
	Open()
	Close()
}

// Pins is the digital I/O of the board
type Pins interface {
	core.PinReader
	core.PinWriter
}

// Hardware is everything the machine needs from a target
type Hardware struct {
	Pins      Pins
	Precision core.TimerHardware
	Generic   core.TimerHardware
	Gripper   Gripper
	Idle      func() // Executor idle hook, nil for the platform default
}

// Background is a task that runs in every phase, like the trace uplink.
// Reset is called before each phase starts.
type Background interface {
	core.Future
	Reset()
}

// Machine owns the core services and every task of the game
type Machine struct {
	cfg     *config.MachineConfig
	exec    *core.Executor
	gripper Gripper

	precision *core.TimerService
	generic   *core.TimerService

	buttons  *core.EdgeNotifier // start, grab
	joystick *core.EdgeNotifier // positive, negative per axis
	limits   *core.EdgeNotifier // home switch per axis

	cmds   []*core.Channel[motion.Direction]
	axes   []*motion.Axis
	sticks []*motion.Joystick

	start       pressTask
	grab        pressTask
	gameTimeout timeoutTask
	homeTimeout timeoutTask
	homing      homingTask
	background  []Background

	phase  core.Phase
	rounds uint32
	tasks  []core.Future
}

// Button lines
const (
	ButtonStart = 0
	ButtonGrab  = 1
)

// New builds the machine from a validated configuration. Interrupt
// handlers are not attached; the target wires HandleInterrupt of the timer
// services and notifiers to its interrupt sources and then calls Start.
func New(cfg *config.MachineConfig, hw Hardware) *Machine {
	m := &Machine{
		cfg:     cfg,
		exec:    core.NewExecutor(cfg.ReadyQueue, hw.Idle),
		gripper: hw.Gripper,
		tasks:   make([]core.Future, 0, cfg.ReadyQueue),
	}
	m.precision = core.NewTimerService(cfg.Precision.Core("precision", 0), hw.Precision)
	m.generic = core.NewTimerService(cfg.Generic.Core("generic", 1), hw.Generic)

	m.buttons = core.NewEdgeNotifier("buttons", hw.Pins, pin(cfg.StartPin), pin(cfg.GrabPin))

	var sticks, homes []core.GPIOPin
	for _, a := range cfg.Axes {
		sticks = append(sticks, pin(a.JoystickPositive), pin(a.JoystickNegative))
		homes = append(homes, pin(a.HomePin))
	}
	m.joystick = core.NewEdgeNotifier("joystick", hw.Pins, sticks...)
	m.limits = core.NewEdgeNotifier("limits", hw.Pins, homes...)

	// Edge trace tags: buttons 0-1, joystick from 2, limits after
	m.joystick.SetTraceTag(2)
	m.limits.SetTraceTag(2 + uint8(len(sticks)))

	for i, a := range cfg.Axes {
		ch := core.NewChannel[motion.Direction](uint8(i))
		primary := motion.NewStepper(hw.Pins, pin(a.Stepper.StepPin), pin(a.Stepper.DirPin), a.MaxSteps, false)
		axis := motion.NewAxis(motion.AxisConfig{Name: a.Name, Pulse: a.Pulse(), Gap: a.Gap()}, m.precision, ch, primary)
		if a.Twin != nil {
			axis.SetTwin(motion.NewStepper(hw.Pins, pin(a.Twin.StepPin), pin(a.Twin.DirPin), a.MaxSteps, true))
		}
		axis.SetHomeSwitch(m.limits, i, cfg.SwitchPressed)

		stick := motion.NewJoystick(motion.JoystickConfig{
			Positive: 2 * i,
			Negative: 2*i + 1,
			Pressed:  cfg.SwitchPressed,
			Debounce: cfg.Debounce(),
		}, m.joystick, m.generic, ch)

		m.cmds = append(m.cmds, ch)
		m.axes = append(m.axes, axis)
		m.sticks = append(m.sticks, stick)
	}

	m.start = pressTask{exec: m.exec, inputs: m.buttons, line: ButtonStart, pressed: cfg.SwitchPressed, next: PhaseRunning}
	m.grab = pressTask{exec: m.exec, inputs: m.buttons, line: ButtonGrab, pressed: cfg.SwitchPressed, next: PhaseFinished}
	m.gameTimeout = timeoutTask{exec: m.exec, timer: m.generic, after: cfg.GameTimeout(), next: PhaseFinished}
	m.homeTimeout = timeoutTask{exec: m.exec, timer: m.generic, after: cfg.HomingTimeout(), next: PhaseIdle}
	m.homing = homingTask{m: m}

	core.SetShutdownHandler(m.shutdown)
	return m
}

func pin(p uint32) core.GPIOPin {
	return core.GPIOPin(p)
}

// AddBackground adds a task to every phase
func (m *Machine) AddBackground(b Background) {
	m.background = append(m.background, b)
}

// Precision returns the step timing service
func (m *Machine) Precision() *core.TimerService { return m.precision }

// Generic returns the gameplay timing service
func (m *Machine) Generic() *core.TimerService { return m.generic }

// Buttons returns the start/grab notifier
func (m *Machine) Buttons() *core.EdgeNotifier { return m.buttons }

// Joystick returns the joystick notifier
func (m *Machine) Joystick() *core.EdgeNotifier { return m.joystick }

// Limits returns the home switch notifier
func (m *Machine) Limits() *core.EdgeNotifier { return m.limits }

// Axes returns the axis tasks in configuration order
func (m *Machine) Axes() []*motion.Axis { return m.axes }

// Executor returns the executor the phases run on
func (m *Machine) Executor() *core.Executor { return m.exec }

// Phase returns the phase that runs next
func (m *Machine) Phase() core.Phase { return m.phase }

// Rounds returns the number of completed games
func (m *Machine) Rounds() uint32 { return m.rounds }

// Start samples every input, starts both timer services and opens the
// claw. Call it after the interrupt handlers are attached.
func (m *Machine) Start() {
	m.precision.Start()
	m.generic.Start()
	m.buttons.Start()
	m.joystick.Start()
	m.limits.Start()
	m.gripper.Open()
	m.phase = PhaseIdle
}

// Step runs the current phase to completion and returns the next one
func (m *Machine) Step() core.Phase {
	core.DebugPrintln("[GAME] phase " + PhaseName(m.phase))
	next := m.exec.Run(m.prepare(m.phase))
	if m.phase != PhaseIdle {
		// A pulse may still be high when the phase ends
		m.resetAxes()
	}

	switch {
	case m.phase == PhaseRunning && next == PhaseFinished:
		if m.gameTimeout.expired {
			core.DebugPrintln("[GAME] time is up")
		}
		m.gripper.Close()
	case m.phase == PhaseFinished:
		if m.homeTimeout.expired {
			core.DebugPrintln("[GAME] homing timed out")
			m.gripper.Open()
		}
		m.rounds++
	}
	m.phase = next
	return next
}

// Run plays forever
func (m *Machine) Run() {
	for {
		m.Step()
	}
}

// prepare resets the tasks of phase and returns its task set
func (m *Machine) prepare(phase core.Phase) []core.Future {
	m.tasks = m.tasks[:0]
	switch phase {
	case PhaseIdle:
		m.start.reset()
		m.tasks = append(m.tasks, &m.start)

	case PhaseRunning:
		m.resetAxes()
		for _, s := range m.sticks {
			s.Reset()
			m.tasks = append(m.tasks, s)
		}
		for _, a := range m.axes {
			a.SetHoming(false)
			m.tasks = append(m.tasks, a)
		}
		m.grab.reset()
		m.gameTimeout.reset()
		m.tasks = append(m.tasks, &m.grab, &m.gameTimeout)

	case PhaseFinished:
		m.resetAxes()
		for _, a := range m.axes {
			// The count may be off after a skipped step; run to the switch
			a.SetHoming(true)
			m.tasks = append(m.tasks, a)
		}
		m.homing.reset()
		m.homeTimeout.reset()
		m.tasks = append(m.tasks, &m.homing, &m.homeTimeout)

	default:
		core.Halt(core.FatalInvariant, "unknown phase "+PhaseName(phase))
	}
	for _, b := range m.background {
		b.Reset()
		m.tasks = append(m.tasks, b)
	}
	return m.tasks
}

// resetAxes stops the axes and drops commands left over from the last phase
func (m *Machine) resetAxes() {
	for i, a := range m.axes {
		m.cmds[i].TryReceive()
		a.Reset()
	}
}

// shutdown de-energizes every motor; it runs on the halt path
func (m *Machine) shutdown() {
	for _, a := range m.axes {
		a.Release()
	}
}

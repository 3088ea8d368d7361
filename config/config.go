// Package config describes the claw machine: pin assignments, timer
// sizings and gameplay timings. Every static capacity of the core is
// checked against the task layout at startup, so a mis-sized queue fails
// before the first task runs instead of halting mid-game.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"claw/core"
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid machine config")

// TimerConfig sizes one timer service and its hardware
type TimerConfig struct {
	TickHz     uint64 `json:"tick_hz"`
	Capacity   int    `json:"capacity"`
	Epsilon    uint32 `json:"epsilon"`
	MaxCompare uint32 `json:"max_compare"` // Widest compare the hardware accepts
}

// StepperConfig is one step/direction driver
type StepperConfig struct {
	StepPin uint32 `json:"step_pin"`
	DirPin  uint32 `json:"dir_pin"`
}

// AxisConfig is one gantry axis with its joystick and home switch
type AxisConfig struct {
	Name     string         `json:"name"`
	Stepper  StepperConfig  `json:"stepper"`
	Twin     *StepperConfig `json:"twin,omitempty"` // Mirrored second motor
	MaxSteps uint32         `json:"max_steps"`
	PulseUS  uint32         `json:"pulse_us"`
	GapUS    uint32         `json:"gap_us"`
	HomePin  uint32         `json:"home_pin"`

	JoystickPositive uint32 `json:"joystick_positive"`
	JoystickNegative uint32 `json:"joystick_negative"`
}

// GripperConfig is the claw servo
type GripperConfig struct {
	Pin       uint32 `json:"pin"`
	OpenDeg   int    `json:"open_deg"`
	ClosedDeg int    `json:"closed_deg"`
}

// MachineConfig is the complete machine description
type MachineConfig struct {
	ReadyQueue int         `json:"ready_queue"`
	Precision  TimerConfig `json:"precision"`
	Generic    TimerConfig `json:"generic"`

	Axes []AxisConfig `json:"axes"`

	StartPin      uint32 `json:"start_pin"`
	GrabPin       uint32 `json:"grab_pin"`
	SwitchPressed bool   `json:"switch_pressed"` // Level of a pressed switch, false with pull-ups
	DebounceMS    uint32 `json:"debounce_ms"`

	GameTimeoutS   uint32 `json:"game_timeout_s"`
	HomingTimeoutS uint32 `json:"homing_timeout_s"`

	Gripper GripperConfig `json:"gripper"`

	TraceEnabled bool   `json:"trace_enabled"`
	TraceBaud    uint32 `json:"trace_baud"`
}

// LoadConfig parses a JSON configuration, fills in defaults and validates
// the result
func LoadConfig(jsonData []byte) (*MachineConfig, error) {
	var config MachineConfig

	err := json.Unmarshal(jsonData, &config)
	if err != nil {
		return nil, fmt.Errorf("parse machine config: %w", err)
	}

	applyDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// applyDefaults fills in missing configuration values with the reference
// claw machine settings
func applyDefaults(config *MachineConfig) {
	if config.ReadyQueue == 0 {
		config.ReadyQueue = core.ReadyQueueSize
	}

	if config.Precision.TickHz == 0 {
		config.Precision.TickHz = core.PrecisionTickHz
	}
	if config.Precision.Capacity == 0 {
		config.Precision.Capacity = core.PrecisionCapacity
	}
	if config.Precision.Epsilon == 0 {
		config.Precision.Epsilon = core.PrecisionEpsilon
	}
	if config.Precision.MaxCompare == 0 {
		config.Precision.MaxCompare = 250
	}

	if config.Generic.TickHz == 0 {
		config.Generic.TickHz = core.GenericTickHz
	}
	if config.Generic.Capacity == 0 {
		config.Generic.Capacity = core.GenericCapacity
	}
	if config.Generic.Epsilon == 0 {
		config.Generic.Epsilon = core.GenericEpsilon
	}
	if config.Generic.MaxCompare == 0 {
		config.Generic.MaxCompare = 62500 // One second
	}

	for i := range config.Axes {
		axis := &config.Axes[i]
		if axis.MaxSteps == 0 {
			axis.MaxSteps = 6000
		}
		if axis.PulseUS == 0 {
			axis.PulseUS = 1000
		}
		if axis.GapUS == 0 {
			axis.GapUS = 1000
		}
	}

	if config.DebounceMS == 0 {
		config.DebounceMS = 20
	}
	if config.GameTimeoutS == 0 {
		config.GameTimeoutS = 30
	}
	if config.HomingTimeoutS == 0 {
		config.HomingTimeoutS = 60
	}
	if config.Gripper.OpenDeg == 0 && config.Gripper.ClosedDeg == 0 {
		config.Gripper.OpenDeg = 90
		config.Gripper.ClosedDeg = 10
	}
	if config.TraceBaud == 0 {
		config.TraceBaud = 115200
	}
}

// Tasks per phase: idle runs the start button; running runs a joystick and
// an axis per axis plus the grab button and the game timeout; finished runs
// the axes, the homing task and the homing timeout. The trace uplink runs in
// every phase.
func (c *MachineConfig) phaseTasks() (idle, running, finished int) {
	n := len(c.Axes)
	idle, running, finished = 1, 2*n+2, n+2
	if c.TraceEnabled {
		idle++
		running++
		finished++
	}
	return idle, running, finished
}

// precisionWaiters is the most delays pending on the precision service: a
// pulse per motor plus the abandoned gap timer of every axis
func (c *MachineConfig) precisionWaiters() int {
	n := 0
	for _, axis := range c.Axes {
		n += 2
		if axis.Twin != nil {
			n++
		}
	}
	return n
}

// genericWaiters is the most delays pending on the generic service: the
// debounce of every joystick, the phase timeout and the uplink period
func (c *MachineConfig) genericWaiters() int {
	n := len(c.Axes) + 1
	if c.TraceEnabled {
		n++
	}
	return n
}

type pinUse struct {
	pin uint32
	use string
}

// Validate checks the configuration against the static capacities of the
// core
func (c *MachineConfig) Validate() error {
	if len(c.Axes) == 0 {
		return fmt.Errorf("%w: no axes", ErrInvalid)
	}

	idle, running, finished := c.phaseTasks()
	largest := max(idle, running, finished)
	if c.ReadyQueue < largest {
		return fmt.Errorf("%w: ready queue of %d cannot hold %d tasks", ErrInvalid, c.ReadyQueue, largest)
	}
	if c.ReadyQueue > 256 {
		return fmt.Errorf("%w: ready queue of %d exceeds the task index space", ErrInvalid, c.ReadyQueue)
	}

	if err := c.Precision.validate("precision", c.precisionWaiters()); err != nil {
		return err
	}
	if err := c.Generic.validate("generic", c.genericWaiters()); err != nil {
		return err
	}

	pins := make(map[uint32]string)
	claim := func(pin uint32, use string) error {
		if other, ok := pins[pin]; ok {
			return fmt.Errorf("%w: pin %d used by %s and %s", ErrInvalid, pin, other, use)
		}
		pins[pin] = use
		return nil
	}

	names := make(map[string]bool)
	for _, axis := range c.Axes {
		if axis.Name == "" || names[axis.Name] {
			return fmt.Errorf("%w: axis name %q missing or repeated", ErrInvalid, axis.Name)
		}
		names[axis.Name] = true

		uses := []pinUse{
			{axis.Stepper.StepPin, axis.Name + " step"},
			{axis.Stepper.DirPin, axis.Name + " dir"},
			{axis.HomePin, axis.Name + " home switch"},
			{axis.JoystickPositive, axis.Name + " joystick+"},
			{axis.JoystickNegative, axis.Name + " joystick-"},
		}
		if axis.Twin != nil {
			uses = append(uses,
				pinUse{axis.Twin.StepPin, axis.Name + " twin step"},
				pinUse{axis.Twin.DirPin, axis.Name + " twin dir"})
		}
		for _, u := range uses {
			if err := claim(u.pin, u.use); err != nil {
				return err
			}
		}
	}
	for _, u := range []pinUse{{c.StartPin, "start button"}, {c.GrabPin, "grab button"}, {c.Gripper.Pin, "gripper"}} {
		if err := claim(u.pin, u.use); err != nil {
			return err
		}
	}

	if c.Gripper.OpenDeg < 0 || c.Gripper.OpenDeg > 180 || c.Gripper.ClosedDeg < 0 || c.Gripper.ClosedDeg > 180 {
		return fmt.Errorf("%w: gripper angles must be within 0..180", ErrInvalid)
	}
	return nil
}

func (t TimerConfig) validate(name string, waiters int) error {
	if t.TickHz == 0 {
		return fmt.Errorf("%w: %s timer has no tick rate", ErrInvalid, name)
	}
	if t.Capacity < waiters {
		return fmt.Errorf("%w: %s timer capacity %d below %d concurrent delays", ErrInvalid, name, t.Capacity, waiters)
	}
	if t.MaxCompare == 0 || t.Epsilon >= t.MaxCompare {
		return fmt.Errorf("%w: %s timer epsilon %d not below compare width %d", ErrInvalid, name, t.Epsilon, t.MaxCompare)
	}
	return nil
}

// Core converts to the core sizing. tag tells the services apart in
// trace events.
func (t TimerConfig) Core(name string, tag uint8) core.TimerConfig {
	return core.TimerConfig{
		Name:     name,
		Tag:      tag,
		TickHz:   t.TickHz,
		Capacity: t.Capacity,
		Epsilon:  t.Epsilon,
	}
}

// Pulse returns the step line high time
func (a AxisConfig) Pulse() time.Duration {
	return time.Duration(a.PulseUS) * time.Microsecond
}

// Gap returns the step line low time
func (a AxisConfig) Gap() time.Duration {
	return time.Duration(a.GapUS) * time.Microsecond
}

// Debounce returns the switch settle time
func (c *MachineConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// GameTimeout returns the length of a round
func (c *MachineConfig) GameTimeout() time.Duration {
	return time.Duration(c.GameTimeoutS) * time.Second
}

// HomingTimeout bounds the return to home after a round
func (c *MachineConfig) HomingTimeout() time.Duration {
	return time.Duration(c.HomingTimeoutS) * time.Second
}

// Default returns the reference claw machine on a Raspberry Pi Pico: X on
// one motor, Y on a mirrored pair, pull-up switches.
func Default() *MachineConfig {
	config := &MachineConfig{
		Axes: []AxisConfig{
			{
				Name:             "x",
				Stepper:          StepperConfig{StepPin: 2, DirPin: 3},
				HomePin:          10,
				JoystickPositive: 12,
				JoystickNegative: 13,
			},
			{
				Name:             "y",
				Stepper:          StepperConfig{StepPin: 4, DirPin: 5},
				Twin:             &StepperConfig{StepPin: 6, DirPin: 7},
				HomePin:          11,
				JoystickPositive: 14,
				JoystickNegative: 15,
			},
		},
		StartPin:      16,
		GrabPin:       17,
		SwitchPressed: false,
		Gripper:       GripperConfig{Pin: 18},
		TraceEnabled:  true,
	}
	applyDefaults(config)
	return config
}

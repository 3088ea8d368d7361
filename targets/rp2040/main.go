//go:build rp2040

// Firmware for a Raspberry Pi Pico driving one claw machine cabinet.
package main

import (
	"machine"

	"claw/config"
	"claw/core"
	"claw/game"
	"claw/uplink"
)

var (
	board    boardPins
	traceTX  = machine.UART0
	debugOut = machine.Serial
)

func main() {
	// Clear any watchdog left armed by a previous image
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	cfg := config.Default()
	// The Pico timer counts microseconds; precision runs on raw ticks
	cfg.Precision.TickHz = 1000000 >> precisionShift
	cfg.Precision.Epsilon = 12
	cfg.Precision.MaxCompare = precisionTimer.MaxCompare()
	cfg.Generic.TickHz = 1000000 >> genericShift
	cfg.Generic.MaxCompare = genericTimer.MaxCompare()
	if err := cfg.Validate(); err != nil {
		core.Halt(core.FatalInvariant, err.Error())
	}

	// Debug lines go to USB, the trace to UART0; both can run at once
	core.SetDebugWriter(debugPrintln)
	core.SetDebugEnabled(true)

	for _, a := range cfg.Axes {
		board.Output(core.GPIOPin(a.Stepper.StepPin), core.GPIOPin(a.Stepper.DirPin))
		if a.Twin != nil {
			board.Output(core.GPIOPin(a.Twin.StepPin), core.GPIOPin(a.Twin.DirPin))
		}
	}

	m := game.New(cfg, game.Hardware{
		Pins:      &board,
		Precision: precisionTimer,
		Generic:   genericTimer,
		Gripper:   newServoGripper(machine.Pin(cfg.Gripper.Pin), cfg.Gripper.OpenDeg, cfg.Gripper.ClosedDeg),
	})

	precisionTimer.Attach(m.Precision().HandleInterrupt)
	genericTimer.Attach(m.Generic().HandleInterrupt)
	initAlarms()

	board.Input(m.Buttons().HandleInterrupt, core.GPIOPin(cfg.StartPin), core.GPIOPin(cfg.GrabPin))
	for _, a := range cfg.Axes {
		board.Input(m.Joystick().HandleInterrupt, core.GPIOPin(a.JoystickPositive), core.GPIOPin(a.JoystickNegative))
		board.Input(m.Limits().HandleInterrupt, core.GPIOPin(a.HomePin))
	}

	core.SetTimingEnabled(cfg.TraceEnabled)
	if cfg.TraceEnabled {
		err := traceTX.Configure(machine.UARTConfig{
			BaudRate: cfg.TraceBaud,
			TX:       machine.UART0_TX_PIN,
			RX:       machine.UART0_RX_PIN,
		})
		if err != nil {
			core.Halt(core.FatalInvariant, "trace uart: "+err.Error())
		}
		core.SetTimingClock(func() uint32 { return uint32(m.Precision().Now()) })
		m.AddBackground(uplink.New(traceTX, m.Generic(), uplink.DefaultPeriod))
	}

	m.Start()
	m.Run()
}

func debugPrintln(s string) {
	debugOut.Write([]byte(s))
	debugOut.Write([]byte("\r\n"))
}

// itoa converts int to string without importing strconv
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	negative := i < 0
	if negative {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if negative {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

//go:build rp2040

package main

import (
	"machine"

	"tinygo.org/x/drivers/servo"
)

// servoGripper drives the claw with a hobby servo on a PWM pin
type servoGripper struct {
	servo   servo.Servo
	open    int
	closed  int
	enabled bool
}

// pwmSlice returns the PWM slice that owns pin: GPIO N is on slice (N>>1)&7
func pwmSlice(pin machine.Pin) servo.PWM {
	switch (pin >> 1) & 7 {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	default:
		return machine.PWM7
	}
}

func newServoGripper(pin machine.Pin, openDeg, closedDeg int) *servoGripper {
	g := &servoGripper{open: openDeg, closed: closedDeg}
	s, err := servo.New(pwmSlice(pin), pin)
	if err != nil {
		debugPrintln("[GRIP] servo init failed: " + err.Error())
		return g
	}
	g.servo = s
	g.enabled = true
	return g
}

func (g *servoGripper) Open() {
	g.set(g.open)
}

func (g *servoGripper) Close() {
	g.set(g.closed)
}

func (g *servoGripper) set(deg int) {
	if !g.enabled {
		return
	}
	if err := g.servo.SetAngle(deg); err != nil {
		debugPrintln("[GRIP] " + err.Error())
	}
}

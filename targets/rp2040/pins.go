//go:build rp2040

package main

import (
	"machine"

	"claw/core"
)

// boardPins implements core.PinReader and core.PinWriter over machine.Pin.
// GPIO numbers map directly to machine pins on the RP2040.
type boardPins struct {
	groups [30]func() // Pin-change handler per GPIO
}

func (p *boardPins) ReadPin(pin core.GPIOPin) bool {
	return machine.Pin(pin).Get()
}

func (p *boardPins) SetPin(pin core.GPIOPin, value bool) {
	machine.Pin(pin).Set(value)
}

// Output configures pins as outputs driven low
func (p *boardPins) Output(pins ...core.GPIOPin) {
	for _, pin := range pins {
		mp := machine.Pin(pin)
		mp.Configure(machine.PinConfig{Mode: machine.PinOutput})
		mp.Low()
	}
}

// Input configures switch inputs with pull-ups and raises handler on both
// edges of any of them
func (p *boardPins) Input(handler func(), pins ...core.GPIOPin) {
	for _, pin := range pins {
		mp := machine.Pin(pin)
		mp.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
		p.groups[pin] = handler
		err := mp.SetInterrupt(machine.PinRising|machine.PinFalling, p.changed)
		if err != nil {
			core.Halt(core.FatalCapacity, "no pin interrupt for gpio"+itoa(int(pin)))
		}
	}
}

func (p *boardPins) changed(mp machine.Pin) {
	if h := p.groups[mp]; h != nil {
		h()
	}
}

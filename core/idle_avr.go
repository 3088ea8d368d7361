//go:build tinygo && avr

package core

import "device"

// waitForInterrupt enters the configured AVR sleep mode until the next
// interrupt. AVR only wakes with interrupts enabled, and sei takes effect one
// instruction late, so no interrupt can slip in between the two.
func waitForInterrupt() {
	device.Asm("sei\n\tsleep")
}

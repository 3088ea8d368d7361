//go:build tinygo && cortexm

package core

import "device"

// waitForInterrupt sleeps the core until the next interrupt. It is called with
// interrupts masked; a pending interrupt still ends the sleep and is serviced
// once the mask is restored.
func waitForInterrupt() {
	device.Asm("wfi")
}

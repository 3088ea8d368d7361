//go:build !tinygo || !(cortexm || avr)

package core

// waitForInterrupt has no hardware to sleep on in a host build. Host code
// always supplies an idle function (see package sim); reaching this means the
// executor would spin with nothing able to wake it.
func waitForInterrupt() {
	Halt(FatalInvariant, "executor idle without an interrupt source")
}

package core

import "claw/protocol"

// FatalKind classifies an unrecoverable condition
type FatalKind uint8

const (
	// FatalCapacity means a static queue was sized too small for the load
	FatalCapacity FatalKind = iota + 1
	// FatalInvariant means a wake handle or registration broke a core rule
	FatalInvariant
)

func (k FatalKind) String() string {
	switch k {
	case FatalCapacity:
		return "capacity exhausted"
	case FatalInvariant:
		return "invariant violated"
	default:
		return "unknown"
	}
}

// FatalError is the panic value raised by Halt
type FatalError struct {
	Kind   FatalKind
	Reason string
}

func (e *FatalError) Error() string {
	return e.Kind.String() + ": " + e.Reason
}

// shutdownHandler puts outputs into a safe state before the halt panic
var shutdownHandler func()

// SetShutdownHandler registers the hook Halt runs before stopping. Targets use
// it to de-energize motors.
func SetShutdownHandler(handler func()) {
	shutdownHandler = handler
}

// Halt stops the system. There is no degraded mode: the shutdown hook runs,
// the cause is logged and traced, and the call panics with *FatalError.
func Halt(kind FatalKind, reason string) {
	if shutdownHandler != nil {
		shutdownHandler()
	}
	RecordTiming(protocol.EvtHalt, 0, uint32(kind))
	debugPrintln("[HALT] " + kind.String() + ": " + reason)
	panic(&FatalError{Kind: kind, Reason: reason})
}

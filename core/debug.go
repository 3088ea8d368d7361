package core

import "claw/protocol"

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

const (
	TimingRingSize = 64 // Events kept for post-mortem and the trace uplink
)

// timingRing holds the most recent scheduler events. Interrupt handlers
// record into it, so every access happens with interrupts masked.
type timingRing struct {
	events  [TimingRingSize]protocol.TraceEvent
	head    uint8 // Next write position
	count   uint8 // Unread events
	dropped uint32
	enabled bool
	clock   func() uint32
}

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {}

	// debugEnabled controls whether debug output is active
	debugEnabled bool

	timing = NewMutex(timingRing{enabled: true})
)

// SetDebugWriter sets the platform-specific debug output function
func SetDebugWriter(writer DebugWriter) {
	if writer == nil {
		writer = func(string) {}
	}
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// DebugPrintln writes a debug message using the platform-specific writer.
// It blocks for as long as the writer does; never call it from a handler.
func DebugPrintln(msg string) {
	if debugEnabled {
		debugPrintln(msg)
	}
}

// SetTimingEnabled turns event capture on or off
func SetTimingEnabled(enabled bool) {
	timing.Lock(func(r *timingRing) {
		r.enabled = enabled
	})
}

// SetTimingClock sets the source for event timestamps, usually the precision
// timer's Now truncated to 32 bits
func SetTimingClock(clock func() uint32) {
	timing.Lock(func(r *timingRing) {
		r.clock = clock
	})
}

// RecordTiming captures an event in the ring. When unread events are
// overwritten the loss is counted and reported as an EvtOverrun on drain.
func RecordTiming(kind, task uint8, value uint32) {
	timing.Lock(func(r *timingRing) {
		if !r.enabled {
			return
		}
		var clock uint32
		if r.clock != nil {
			clock = r.clock()
		}
		r.events[r.head] = protocol.TraceEvent{Kind: kind, Task: task, Clock: clock, Value: value}
		r.head = (r.head + 1) % TimingRingSize
		if r.count == TimingRingSize {
			r.dropped++
		} else {
			r.count++
		}
	})
}

// DrainTiming moves up to len(dst) unread events, oldest first, into dst and
// returns how many were written.
func DrainTiming(dst []protocol.TraceEvent) int {
	n := 0
	timing.Lock(func(r *timingRing) {
		if r.dropped > 0 && len(dst) > 0 {
			dst[0] = protocol.TraceEvent{Kind: protocol.EvtOverrun, Value: r.dropped}
			r.dropped = 0
			n++
		}
		start := (int(r.head) - int(r.count) + TimingRingSize) % TimingRingSize
		for n < len(dst) && r.count > 0 {
			dst[n] = r.events[start]
			start = (start + 1) % TimingRingSize
			r.count--
			n++
		}
	})
	return n
}

// DumpTimingRing prints all unread events through the debug writer
func DumpTimingRing() {
	var buf [TimingRingSize + 1]protocol.TraceEvent
	n := DrainTiming(buf[:])

	debugPrintln("[TIMING] === Timing Ring Dump ===")
	for _, evt := range buf[:n] {
		debugPrintln("[TIMING] " + EventName(evt.Kind) +
			" task=" + utoa(uint64(evt.Task)) +
			" clock=" + utoa(uint64(evt.Clock)) +
			" value=" + utoa(uint64(evt.Value)))
	}
	debugPrintln("[TIMING] === End Dump ===")
}

// ClearTimingRing discards all captured events
func ClearTimingRing() {
	timing.Lock(func(r *timingRing) {
		r.head = 0
		r.count = 0
		r.dropped = 0
	})
}

// EventName returns the printable name of a trace event kind
func EventName(kind uint8) string {
	switch kind {
	case protocol.EvtWake:
		return "WAKE"
	case protocol.EvtPoll:
		return "POLL"
	case protocol.EvtStaleWake:
		return "STALE_WAKE"
	case protocol.EvtTimerArm:
		return "TIMER_ARM"
	case protocol.EvtTimerFire:
		return "TIMER_FIRE"
	case protocol.EvtEdge:
		return "EDGE"
	case protocol.EvtPhase:
		return "PHASE"
	case protocol.EvtHalt:
		return "HALT"
	case protocol.EvtSend:
		return "SEND"
	case protocol.EvtOverrun:
		return "OVERRUN"
	default:
		return "UNKNOWN"
	}
}

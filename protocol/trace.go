package protocol

// Trace event kinds
const (
	EvtWake      = 1  // Task index pushed onto the ready queue
	EvtPoll      = 2  // Task polled; Value is 1 when it completed
	EvtStaleWake = 3  // Wake from a previous task set dropped
	EvtTimerArm  = 4  // Compare programmed; Task is the service, Value the ticks
	EvtTimerFire = 5  // Compare interrupt; Value is the entries woken
	EvtEdge      = 6  // Level change; Task is the line index, Value the level
	EvtPhase     = 7  // Run returned; Value is the next phase
	EvtHalt      = 8  // Fatal halt; Value is the fatal kind
	EvtSend      = 9  // Channel send; Value is the message
	EvtOverrun   = 10 // Trace ring overwrote Value unread events
)

// TraceEvent is one entry of the firmware timing ring
type TraceEvent struct {
	Kind  uint8
	Task  uint8
	Clock uint32 // Low 32 bits of the precision tick counter
	Value uint32
}

// TraceEventMaxSize is the worst-case encoded size of one event
const TraceEventMaxSize = 1 + 1 + 5 + 5

// EncodeTraceEvent appends one event
func EncodeTraceEvent(output OutputBuffer, e TraceEvent) {
	EncodeVLQUint(output, uint32(e.Kind))
	EncodeVLQUint(output, uint32(e.Task))
	EncodeVLQUint(output, e.Clock)
	EncodeVLQUint(output, e.Value)
}

// DecodeTraceEvent reads one event and advances data past it
func DecodeTraceEvent(data *[]byte) (TraceEvent, error) {
	var e TraceEvent
	kind, err := DecodeVLQUint(data)
	if err != nil {
		return e, err
	}
	task, err := DecodeVLQUint(data)
	if err != nil {
		return e, err
	}
	if kind > 0xFF || task > 0xFF {
		return e, ErrInvalidVLQ
	}
	e.Kind, e.Task = uint8(kind), uint8(task)
	if e.Clock, err = DecodeVLQUint(data); err != nil {
		return e, err
	}
	if e.Value, err = DecodeVLQUint(data); err != nil {
		return e, err
	}
	return e, nil
}

// EncodeTraceBlock packs as many events as fit into one block and returns how
// many were consumed. It returns 0 when the output has no room for a block.
func EncodeTraceBlock(output OutputBuffer, seq uint8, events []TraceEvent) int {
	const room = BlockMax - BlockMin
	if len(events) == 0 {
		return 0
	}
	used := 0
	ok := EncodeBlock(output, seq, func(out OutputBuffer) {
		size := 0
		for _, e := range events {
			if size+TraceEventMaxSize > room {
				break
			}
			before := out.CurPosition()
			EncodeTraceEvent(out, e)
			size += out.CurPosition() - before
			used++
		}
	})
	if !ok {
		return 0
	}
	return used
}

// DecodeTracePayload decodes every event in a block payload
func DecodeTracePayload(payload []byte, fn func(TraceEvent)) error {
	for len(payload) > 0 {
		e, err := DecodeTraceEvent(&payload)
		if err != nil {
			return err
		}
		fn(e)
	}
	return nil
}

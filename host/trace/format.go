package trace

import (
	"fmt"
	"io"
	"sort"

	"claw/core"
	"claw/game"
	"claw/protocol"
)

// Format renders one event as a log line
func Format(e protocol.TraceEvent) string {
	name := core.EventName(e.Kind)
	switch e.Kind {
	case protocol.EvtWake, protocol.EvtStaleWake:
		return fmt.Sprintf("%10d %-10s task=%d", e.Clock, name, e.Task)
	case protocol.EvtPoll:
		state := "pending"
		if core.Poll(e.Value) == core.Ready {
			state = "ready"
		}
		return fmt.Sprintf("%10d %-10s task=%d %s", e.Clock, name, e.Task, state)
	case protocol.EvtTimerArm:
		return fmt.Sprintf("%10d %-10s %s compare=%d", e.Clock, name, serviceName(e.Task), e.Value)
	case protocol.EvtTimerFire:
		return fmt.Sprintf("%10d %-10s %s woke=%d", e.Clock, name, serviceName(e.Task), e.Value)
	case protocol.EvtEdge:
		return fmt.Sprintf("%10d %-10s line=%d level=%d", e.Clock, name, e.Task, e.Value)
	case protocol.EvtPhase:
		return fmt.Sprintf("%10d %-10s next=%s", e.Clock, name, game.PhaseName(core.Phase(e.Value)))
	case protocol.EvtHalt:
		return fmt.Sprintf("%10d %-10s %s", e.Clock, name, core.FatalKind(e.Value))
	case protocol.EvtSend:
		return fmt.Sprintf("%10d %-10s channel=%d", e.Clock, name, e.Task)
	case protocol.EvtOverrun:
		return fmt.Sprintf("%10d %-10s dropped=%d", e.Clock, name, e.Value)
	default:
		return fmt.Sprintf("%10d %-10s task=%d value=%d", e.Clock, name, e.Task, e.Value)
	}
}

// ANSI colours for Highlight
const (
	colorRed    = "\x1b[31m"
	colorYellow = "\x1b[33m"
	colorCyan   = "\x1b[36m"
	colorReset  = "\x1b[0m"
)

// Highlight is Format with halts, overruns and stale wakes coloured for a
// terminal, and phase changes set apart
func Highlight(e protocol.TraceEvent) string {
	line := Format(e)
	switch e.Kind {
	case protocol.EvtHalt:
		return colorRed + line + colorReset
	case protocol.EvtOverrun, protocol.EvtStaleWake:
		return colorYellow + line + colorReset
	case protocol.EvtPhase:
		return colorCyan + line + colorReset
	default:
		return line
	}
}

func serviceName(tag uint8) string {
	switch tag {
	case 0:
		return "precision"
	case 1:
		return "generic"
	default:
		return fmt.Sprintf("timer%d", tag)
	}
}

// Summary counts events per kind
type Summary map[uint8]int

// Add counts e
func (s Summary) Add(e protocol.TraceEvent) {
	s[e.Kind]++
}

// WriteTo prints one line per kind, in kind order
func (s Summary) WriteTo(w io.Writer) (int64, error) {
	kinds := make([]int, 0, len(s))
	for k := range s {
		kinds = append(kinds, int(k))
	}
	sort.Ints(kinds)

	var total int64
	for _, k := range kinds {
		n, err := fmt.Fprintf(w, "%-10s %d\n", core.EventName(uint8(k)), s[uint8(k)])
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

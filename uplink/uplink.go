// Package uplink ships the scheduler timing ring off the board as framed
// trace blocks. It runs as an ordinary task next to the game tasks and is
// the only code that writes to the trace port.
package uplink

import (
	"io"
	"time"

	"claw/core"
	"claw/protocol"
)

// DefaultPeriod is the time between two flushes. The ring holds
// core.TimingRingSize events; busier periods are reported as an overrun.
const DefaultPeriod = 50 * time.Millisecond

// Uplink is the trace task
type Uplink struct {
	w      io.Writer
	timer  *core.TimerService
	period time.Duration

	seq    uint8
	out    protocol.ScratchOutput
	events [core.TimingRingSize + 1]protocol.TraceEvent
	delay  core.Delay

	blocks uint32
	fails  uint32
	err    error
}

// New creates an uplink writing to w every period on timer, normally the
// generic service
func New(w io.Writer, timer *core.TimerService, period time.Duration) *Uplink {
	if period <= 0 {
		period = DefaultPeriod
	}
	u := &Uplink{w: w, timer: timer, period: period}
	u.Reset()
	return u
}

// Reset re-arms the flush timer for a new task set
func (u *Uplink) Reset() {
	u.delay = u.timer.Delay(u.period)
}

// Blocks returns the number of blocks written
func (u *Uplink) Blocks() uint32 {
	return u.blocks
}

// Failures returns the number of flushes that failed to write
func (u *Uplink) Failures() uint32 {
	return u.fails
}

// LastError returns the most recent write error
func (u *Uplink) LastError() error {
	return u.err
}

func (u *Uplink) Poll(cx *core.Context) core.Poll {
	if u.delay.Poll(cx) == core.Pending {
		return core.Pending
	}
	if err := u.Flush(); err != nil {
		u.err = err
		u.fails++
	}
	u.Reset()
	// Arms the next period
	u.delay.Poll(cx)
	return core.Pending
}

// Flush drains the ring and writes it out as blocks. Events that do not
// make it out are lost; the ring keeps recording meanwhile.
func (u *Uplink) Flush() error {
	n := core.DrainTiming(u.events[:])
	events := u.events[:n]
	for len(events) > 0 {
		u.out.Reset()
		for len(events) > 0 {
			used := protocol.EncodeTraceBlock(&u.out, u.seq, events)
			if used == 0 {
				break
			}
			u.seq = (u.seq + 1) & protocol.BlockSeqMask
			u.blocks++
			events = events[used:]
		}
		if u.out.CurPosition() == 0 {
			return nil
		}
		if _, err := u.w.Write(u.out.Result()); err != nil {
			return err
		}
	}
	return nil
}

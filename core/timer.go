package core

import (
	"math"
	"time"

	"claw/protocol"
)

// Reference sizings. Precision ticks drive step pulses, generic ticks drive
// gameplay timeouts.
const (
	PrecisionTickHz   = 400000 // 2.5us per tick
	PrecisionCapacity = 8
	PrecisionEpsilon  = 5

	GenericTickHz   = 62500 // 16us per tick, a 16-bit compare spans ~1s
	GenericCapacity = 4
	GenericEpsilon  = 10
)

// TimerConfig sizes one timer service
type TimerConfig struct {
	Name     string
	Tag      uint8  // Task field of this service's trace events
	TickHz   uint64 // Ticks per second
	Capacity int    // Most delays pending at once
	Epsilon  uint32 // Deadlines this close are treated as reached
}

// PrecisionConfig returns the reference sub-millisecond service
func PrecisionConfig() TimerConfig {
	return TimerConfig{
		Name:     "precision",
		Tag:      0,
		TickHz:   PrecisionTickHz,
		Capacity: PrecisionCapacity,
		Epsilon:  PrecisionEpsilon,
	}
}

// GenericConfig returns the reference second-scale service
func GenericConfig() TimerConfig {
	return TimerConfig{
		Name:     "generic",
		Tag:      1,
		TickHz:   GenericTickHz,
		Capacity: GenericCapacity,
		Epsilon:  GenericEpsilon,
	}
}

// timerState is shared between Delay polls and the compare handler
type timerState struct {
	counter uint64 // Ticks at the previous match
	period  uint32 // Compare currently programmed
	horizon uint64 // Largest deadline woken early within epsilon
	queue   timerQueue
}

// reached returns the tick count up to which every deadline is satisfied
func (st *timerState) reached() uint64 {
	if st.horizon > st.counter {
		return st.horizon
	}
	return st.counter
}

// TimerService turns delays into compare-match interrupts on one hardware
// timer. Pending delays sit in a bounded deadline queue; the compare is kept
// pointed at the earliest one, capped at the register width.
type TimerService struct {
	cfg   TimerConfig
	hw    TimerHardware
	max   uint32
	state Mutex[timerState]
}

// NewTimerService binds a service to its hardware. The epsilon must be
// smaller than the compare width or no interrupt could ever be armed.
func NewTimerService(cfg TimerConfig, hw TimerHardware) *TimerService {
	if cfg.Capacity <= 0 || cfg.TickHz == 0 {
		Halt(FatalCapacity, cfg.Name+" timer has no capacity")
	}
	max := hw.MaxCompare()
	if max == 0 || cfg.Epsilon >= max {
		Halt(FatalInvariant, cfg.Name+" timer epsilon exceeds compare width")
	}
	s := &TimerService{cfg: cfg, hw: hw, max: max}
	s.state.value.queue = newTimerQueue(cfg.Capacity)
	return s
}

// Config returns the sizing the service was built with
func (s *TimerService) Config() TimerConfig {
	return s.cfg
}

// Start zeroes the tick counter and lets the hardware free-run at the full
// compare width until the first delay is registered.
func (s *TimerService) Start() {
	s.state.Lock(func(st *timerState) {
		st.counter = 0
		st.horizon = 0
		st.queue.reset()
		st.period = s.max
		s.hw.SetCompare(s.max)
	})
}

// Now returns the current tick count
func (s *TimerService) Now() uint64 {
	var now uint64
	s.state.Lock(func(st *timerState) {
		now = st.counter + uint64(s.hw.Elapsed())
	})
	return now
}

// Pending returns the number of delays waiting for their deadline
func (s *TimerService) Pending() int {
	n := 0
	s.state.Lock(func(st *timerState) {
		n = st.queue.len()
	})
	return n
}

// Ticks converts a duration to ticks, rounding up so a delay never comes
// out shorter than asked
func (s *TimerService) Ticks(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	secs := uint64(d / time.Second)
	frac := uint64(d % time.Second)
	return secs*s.cfg.TickHz + (frac*s.cfg.TickHz+uint64(time.Second)-1)/uint64(time.Second)
}

// Duration converts ticks back to time
func (s *TimerService) Duration(ticks uint64) time.Duration {
	secs := ticks / s.cfg.TickHz
	rem := ticks % s.cfg.TickHz
	return time.Duration(secs)*time.Second + time.Duration(rem*uint64(time.Second)/s.cfg.TickHz)
}

// Millis returns the elapsed time since Start in milliseconds
func (s *TimerService) Millis() uint64 {
	return s.Now() * 1000 / s.cfg.TickHz
}

// Seconds returns the elapsed time since Start in whole seconds
func (s *TimerService) Seconds() uint64 {
	return s.Now() / s.cfg.TickHz
}

// Delay returns a future that completes once d has passed
func (s *TimerService) Delay(d time.Duration) Delay {
	return Delay{svc: s, ticks: s.Ticks(d)}
}

// DelayTicks returns a future that completes after n ticks
func (s *TimerService) DelayTicks(n uint64) Delay {
	return Delay{svc: s, ticks: n}
}

// register queues a deadline n ticks from now and returns it
func (s *TimerService) register(n uint64, w Waker) uint64 {
	var deadline uint64
	full := false
	s.state.Lock(func(st *timerState) {
		elapsed := s.hw.Elapsed()
		deadline = addSaturating(st.counter+uint64(elapsed), n)

		if st.queue.len() == st.queue.cap() {
			// Entries of a retired task set can never wake anyone
			st.queue.dropStale()
		}
		first := st.queue.len() == 0 || deadline < st.queue.first().deadline
		if !st.queue.insert(timerEntry{deadline: deadline, waker: w}) {
			full = true
			return
		}
		// A match that is due but not yet handled will reschedule on its own
		if first && elapsed < st.period {
			s.schedule(st, elapsed, false)
		}
	})
	if full {
		Halt(FatalCapacity, s.cfg.Name+" timer queue full")
	}
	return deadline
}

// schedule wakes every entry due within epsilon of now and points the
// compare at the next one. Interrupts must be masked.
func (s *TimerService) schedule(st *timerState, elapsed uint32, fromISR bool) uint32 {
	woken := uint32(0)
	for st.queue.len() > 0 {
		e := st.queue.first()
		var remaining uint64
		if e.deadline > st.counter {
			remaining = e.deadline - st.counter
		}

		if remaining <= uint64(elapsed)+uint64(s.cfg.Epsilon) {
			// Another interrupt for a handful of ticks is not worth it
			st.queue.removeFirst()
			if e.deadline > st.horizon {
				st.horizon = e.deadline
			}
			e.waker.Wake()
			woken++
			continue
		}

		compare := s.max
		if remaining < uint64(s.max) {
			compare = uint32(remaining)
		}
		if fromISR || compare != st.period {
			s.hw.SetCompare(compare)
			st.period = compare
			RecordTiming(protocol.EvtTimerArm, s.cfg.Tag, compare)
		}
		return woken
	}

	if fromISR && st.period != s.max {
		// Nothing pending: free-run, the idle matches only advance the counter
		s.hw.SetCompare(s.max)
		st.period = s.max
	}
	return woken
}

// HandleInterrupt is the compare-match handler. The counter advances by the
// compare that just matched, then due entries are woken and the next match
// is armed.
func (s *TimerService) HandleInterrupt() {
	var woken uint32
	s.state.Lock(func(st *timerState) {
		st.counter += uint64(st.period)
		woken = s.schedule(st, s.hw.Elapsed(), true)
	})
	if woken > 0 {
		RecordTiming(protocol.EvtTimerFire, s.cfg.Tag, woken)
	}
}

// reached reports whether deadline has been satisfied
func (s *TimerService) reached(deadline uint64) bool {
	ok := false
	s.state.Lock(func(st *timerState) {
		ok = st.reached() >= deadline
	})
	return ok
}

func addSaturating(a, b uint64) uint64 {
	if b > math.MaxUint64-a {
		return math.MaxUint64
	}
	return a + b
}

// Delay is the future returned by TimerService.Delay. The first poll
// registers the deadline; later polls only compare against the counter, the
// queue entry is consumed by the interrupt side.
type Delay struct {
	svc      *TimerService
	ticks    uint64
	deadline uint64
	armed    bool
}

func (d *Delay) Poll(cx *Context) Poll {
	if !d.armed {
		d.deadline = d.svc.register(d.ticks, cx.Waker())
		d.armed = true
		return Pending
	}
	if d.svc.reached(d.deadline) {
		return Ready
	}
	return Pending
}

// Armed reports whether the delay has been registered
func (d *Delay) Armed() bool {
	return d.armed
}

// Deadline returns the absolute tick the delay waits for. It is only
// meaningful once Armed.
func (d *Delay) Deadline() uint64 {
	return d.deadline
}

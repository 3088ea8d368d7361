package core

import "claw/protocol"

// edgeWaiter is the per-line registration slot
type edgeWaiter struct {
	waker  Waker
	level  bool
	active bool
	gen    uint32 // Bumped on every registration
	fired  uint32 // Registration the handler last woke
}

// edgeState is shared between EdgeWait polls and the pin-change handler
type edgeState struct {
	level   []bool
	waiting []edgeWaiter
}

// EdgeNotifier watches a group of inputs that share one pin-change interrupt
// (the joystick, the buttons, the limit switches). It remembers the last
// level of every line and wakes the task waiting for the level a line just
// changed to. It does no timing; consumers debounce with a timer delay.
type EdgeNotifier struct {
	name  string
	tag   uint8 // Added to the line index in trace events
	pins  PinReader
	lines []GPIOPin
	state Mutex[edgeState]
}

// NewEdgeNotifier creates a notifier for lines. Switches are addressed by
// their position in lines.
func NewEdgeNotifier(name string, pins PinReader, lines ...GPIOPin) *EdgeNotifier {
	n := &EdgeNotifier{
		name:  name,
		pins:  pins,
		lines: append([]GPIOPin(nil), lines...),
	}
	n.state.value.level = make([]bool, len(lines))
	n.state.value.waiting = make([]edgeWaiter, len(lines))
	return n
}

// SetTraceTag offsets this group's line indices in trace events so several
// notifiers can be told apart
func (n *EdgeNotifier) SetTraceTag(tag uint8) {
	n.tag = tag
}

// Name returns the group name
func (n *EdgeNotifier) Name() string {
	return n.name
}

// Lines returns the number of monitored inputs
func (n *EdgeNotifier) Lines() int {
	return len(n.lines)
}

// Start samples every line and clears all registrations. Call it before the
// pin-change interrupt is enabled.
func (n *EdgeNotifier) Start() {
	n.state.Lock(func(st *edgeState) {
		for i, line := range n.lines {
			st.level[i] = n.pins.ReadPin(line)
			st.waiting[i] = edgeWaiter{}
		}
	})
}

// Level returns the last level the handler observed on switch i
func (n *EdgeNotifier) Level(i int) bool {
	n.check(i)
	level := false
	n.state.Lock(func(st *edgeState) {
		level = st.level[i]
	})
	return level
}

// WaitFor returns a future that completes when switch i is at level
func (n *EdgeNotifier) WaitFor(i int, level bool) EdgeWait {
	n.check(i)
	return EdgeWait{n: n, index: i, level: level}
}

// HandleInterrupt is the pin-change handler for the group. Every line is
// sampled; each one that changed has its remembered level updated, and its
// waiter is woken when the new level is the one it asked for.
func (n *EdgeNotifier) HandleInterrupt() {
	n.state.Lock(func(st *edgeState) {
		for i, line := range n.lines {
			level := n.pins.ReadPin(line)
			if level == st.level[i] {
				continue
			}
			st.level[i] = level
			RecordTiming(protocol.EvtEdge, n.tag+uint8(i), boolValue(level))

			w := &st.waiting[i]
			if w.active && w.level == level {
				w.active = false
				w.fired = w.gen
				w.waker.Wake()
			}
		}
	})
}

// register records the waiter for switch i, or reports that the level is
// already there. A slot held by another task halts; one task may replace its
// own registration, e.g. after abandoning it in a Select.
func (n *EdgeNotifier) register(i int, level bool, w Waker) (gen uint32, ready bool) {
	busy := false
	n.state.Lock(func(st *edgeState) {
		if st.level[i] == level {
			ready = true
			return
		}
		slot := &st.waiting[i]
		if slot.active && slot.waker != w && slot.waker.live() {
			busy = true
			return
		}
		slot.gen++
		slot.waker = w
		slot.level = level
		slot.active = true
		gen = slot.gen
	})
	if busy {
		Halt(FatalInvariant, n.name+" switch "+utoa(uint64(i))+" already awaited")
	}
	return gen, ready
}

// fired reports whether the handler woke registration gen. lost means the
// slot now holds a later registration, so gen can never fire.
func (n *EdgeNotifier) fired(i int, gen uint32) (done, lost bool) {
	n.state.Lock(func(st *edgeState) {
		slot := &st.waiting[i]
		done = slot.fired == gen
		lost = !done && slot.gen != gen
	})
	return done, lost
}

func (n *EdgeNotifier) check(i int) {
	if i < 0 || i >= len(n.lines) {
		Halt(FatalInvariant, n.name+" has no switch "+utoa(uint64(i)))
	}
}

func boolValue(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// EdgeWait is the future returned by EdgeNotifier.WaitFor. If the switch
// already sits at the wanted level it completes on the first poll without
// registering, so no edge can be missed.
type EdgeWait struct {
	n     *EdgeNotifier
	index int
	level bool
	gen   uint32
	state uint8
}

const (
	edgeInit = iota
	edgeWaiting
	edgeDone
)

func (e *EdgeWait) Poll(cx *Context) Poll {
	switch e.state {
	case edgeInit:
		return e.register(cx)
	case edgeWaiting:
		done, lost := e.n.fired(e.index, e.gen)
		if done {
			e.state = edgeDone
			return Ready
		}
		if lost {
			// Another wait of this task took the slot; take it back
			return e.register(cx)
		}
		return Pending
	default:
		return Ready
	}
}

func (e *EdgeWait) register(cx *Context) Poll {
	gen, ready := e.n.register(e.index, e.level, cx.Waker())
	if ready {
		e.state = edgeDone
		return Ready
	}
	e.gen = gen
	e.state = edgeWaiting
	return Pending
}

// Level returns the level this future waits for
func (e *EdgeWait) Level() bool {
	return e.level
}

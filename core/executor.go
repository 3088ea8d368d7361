package core

import "claw/protocol"

// Waker wakes the task it was handed to. It carries the task index and the
// generation of the task set, so resolving it needs no lookup.
type Waker struct {
	exec  *Executor
	id    TaskID
	epoch uint32
}

// TaskID returns the index of the task this waker belongs to. Resolving a
// waker from a task set that is no longer installed halts.
func (w Waker) TaskID() TaskID {
	if !w.live() {
		Halt(FatalInvariant, "waker from a retired task set")
	}
	return w.id
}

// Wake queues the task for another poll. It is safe from handlers. Wakes for
// a retired task set are dropped.
func (w Waker) Wake() {
	if w.exec != nil {
		w.exec.wake(w.id, w.epoch)
	}
}

// live reports whether the waker belongs to the installed task set
func (w Waker) live() bool {
	return w.exec != nil && w.exec.current(w.epoch)
}

// IsZero reports whether the waker was never assigned
func (w Waker) IsZero() bool {
	return w.exec == nil
}

// Context is passed to every Poll
type Context struct {
	waker Waker
}

// Waker returns the wake handle of the task being polled
func (cx *Context) Waker() Waker {
	return cx.waker
}

// TaskID returns the index of the task being polled
func (cx *Context) TaskID() TaskID {
	return cx.waker.id
}

// execState is shared with handlers
type execState struct {
	epoch   uint32
	tasks   int
	advance bool
	next    Phase
}

// Executor polls a fixed set of tasks until one of them, or a handler, asks
// for the next phase.
type Executor struct {
	ready *ReadyQueue
	idle  func()
	state Mutex[execState]

	// Owned by the loop
	tasks   []Future
	done    []bool
	epoch   uint32
	cx      Context
	running bool
}

// NewExecutor creates an executor whose ready queue holds capacity wakes. A
// task set may not be larger than the queue. idle is called with interrupts
// masked when there is nothing to poll and must return once an interrupt is
// pending; nil selects the platform wait-for-interrupt.
func NewExecutor(capacity int, idle func()) *Executor {
	if capacity > 256 {
		Halt(FatalCapacity, "ready queue larger than the task index space")
	}
	if idle == nil {
		idle = waitForInterrupt
	}
	q := NewReadyQueue(capacity)
	return &Executor{
		ready: q,
		idle:  idle,
		done:  make([]bool, q.Cap()),
	}
}

// Capacity returns the largest task set Run accepts
func (e *Executor) Capacity() int {
	return e.ready.Cap()
}

// Run installs tasks as the current task set, gives every task one poll and
// then keeps polling woken tasks, sleeping whenever none are ready. It only
// returns when Advance is called, with the requested phase. Tasks that
// complete are not polled again during this Run.
func (e *Executor) Run(tasks []Future) Phase {
	if e.running {
		Halt(FatalInvariant, "Run called from a task")
	}
	if len(tasks) > e.ready.Cap() {
		Halt(FatalCapacity, "task set of "+utoa(uint64(len(tasks)))+" exceeds ready queue")
	}
	e.running = true
	defer func() { e.running = false }()

	e.state.Lock(func(s *execState) {
		s.epoch++
		s.tasks = len(tasks)
		s.advance = false
		e.epoch = s.epoch
	})
	e.tasks = tasks
	for i := range e.done {
		e.done[i] = false
	}
	e.ready.Reset()
	for i := range tasks {
		e.ready.Push(TaskID(i))
	}

	for {
		for {
			id, ok := e.ready.Pop()
			if !ok {
				break
			}
			e.poll(id)
			if next, ok := e.takeAdvance(); ok {
				return e.retire(next)
			}
		}

		state := disableInterrupts()
		if e.ready.Len() == 0 && !e.advancePending() {
			e.idle()
		}
		restoreInterrupts(state)

		if next, ok := e.takeAdvance(); ok {
			return e.retire(next)
		}
	}
}

func (e *Executor) poll(id TaskID) {
	if int(id) >= len(e.tasks) {
		Halt(FatalInvariant, "wake for unknown task "+utoa(uint64(id)))
	}
	if e.done[id] {
		return
	}
	e.cx.waker = Waker{exec: e, id: id, epoch: e.epoch}
	result := e.tasks[id].Poll(&e.cx)
	if result == Ready {
		e.done[id] = true
	}
	RecordTiming(protocol.EvtPoll, uint8(id), uint32(result))
}

// retire ends the current task set. Wakers handed out during this Run go
// stale immediately.
func (e *Executor) retire(next Phase) Phase {
	e.state.Lock(func(s *execState) {
		s.epoch++
		s.tasks = 0
	})
	e.ready.Reset()
	e.tasks = nil
	RecordTiming(protocol.EvtPhase, 0, uint32(next))
	return next
}

// Advance asks the running task set to end; Run returns next after the poll
// in progress. It is safe from handlers. The first request wins until Run
// returns.
func (e *Executor) Advance(next Phase) {
	e.state.Lock(func(s *execState) {
		if !s.advance {
			s.advance = true
			s.next = next
		}
	})
}

func (e *Executor) advancePending() bool {
	pending := false
	e.state.Lock(func(s *execState) {
		pending = s.advance
	})
	return pending
}

func (e *Executor) takeAdvance() (Phase, bool) {
	var next Phase
	ok := false
	e.state.Lock(func(s *execState) {
		if s.advance {
			next, ok = s.next, true
			s.advance = false
		}
	})
	return next, ok
}

// Wake queues task id of the current task set. It is meant for handlers that
// hold a plain index; an index outside the set halts.
func (e *Executor) Wake(id TaskID) {
	valid := false
	e.state.Lock(func(s *execState) {
		if int(id) >= s.tasks {
			return
		}
		valid = true
		e.ready.Push(id)
	})
	if !valid {
		Halt(FatalInvariant, "wake for unknown task "+utoa(uint64(id)))
	}
	RecordTiming(protocol.EvtWake, uint8(id), 0)
}

func (e *Executor) wake(id TaskID, epoch uint32) {
	stale := false
	e.state.Lock(func(s *execState) {
		if s.epoch != epoch || s.tasks == 0 {
			stale = true
			return
		}
		e.ready.Push(id)
	})
	if stale {
		RecordTiming(protocol.EvtStaleWake, uint8(id), uint32(epoch))
		return
	}
	RecordTiming(protocol.EvtWake, uint8(id), 0)
}

func (e *Executor) current(epoch uint32) bool {
	ok := false
	e.state.Lock(func(s *execState) {
		ok = s.epoch == epoch && s.tasks > 0
	})
	return ok
}

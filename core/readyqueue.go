package core

// ReadyQueueSize is the reference ready-queue capacity
const ReadyQueueSize = 16

// readyRing is a bounded FIFO of task indices
type readyRing struct {
	slots []TaskID
	head  int
	count int
}

// ReadyQueue holds the indices of tasks that need another poll. Handlers and
// tasks push, the executor loop pops. Indices are not deduplicated: a task
// woken twice is polled twice.
type ReadyQueue struct {
	ring Mutex[readyRing]
}

// NewReadyQueue allocates a queue with room for capacity wakes
func NewReadyQueue(capacity int) *ReadyQueue {
	if capacity <= 0 {
		capacity = ReadyQueueSize
	}
	q := &ReadyQueue{}
	q.ring.value.slots = make([]TaskID, capacity)
	return q
}

// Cap returns the fixed capacity
func (q *ReadyQueue) Cap() int {
	return len(q.ring.value.slots)
}

// Push appends id. Pushing onto a full queue halts: dropping a wake would
// strand that task forever.
func (q *ReadyQueue) Push(id TaskID) {
	full := false
	q.ring.Lock(func(r *readyRing) {
		if r.count == len(r.slots) {
			full = true
			return
		}
		r.slots[(r.head+r.count)%len(r.slots)] = id
		r.count++
	})
	if full {
		Halt(FatalCapacity, "ready queue full, task "+utoa(uint64(id)))
	}
}

// Pop removes the oldest index
func (q *ReadyQueue) Pop() (TaskID, bool) {
	var id TaskID
	ok := false
	q.ring.Lock(func(r *readyRing) {
		if r.count == 0 {
			return
		}
		id = r.slots[r.head]
		r.head = (r.head + 1) % len(r.slots)
		r.count--
		ok = true
	})
	return id, ok
}

// Len returns the number of queued wakes
func (q *ReadyQueue) Len() int {
	n := 0
	q.ring.Lock(func(r *readyRing) {
		n = r.count
	})
	return n
}

// Reset drops every queued wake
func (q *ReadyQueue) Reset() {
	q.ring.Lock(func(r *readyRing) {
		r.head = 0
		r.count = 0
	})
}

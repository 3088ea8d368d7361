package core

// timerEntry is a pending delay: the absolute deadline and who to wake
type timerEntry struct {
	deadline uint64
	waker    Waker
}

// timerQueue keeps entries sorted by deadline in a fixed backing array.
// Capacities are single digits, so sorted insertion beats a heap. Entries
// with equal deadlines stay in insertion order.
type timerQueue struct {
	entries []timerEntry
	n       int
}

func newTimerQueue(capacity int) timerQueue {
	return timerQueue{entries: make([]timerEntry, capacity)}
}

func (q *timerQueue) len() int {
	return q.n
}

func (q *timerQueue) cap() int {
	return len(q.entries)
}

// insert reports false when the queue is full
func (q *timerQueue) insert(e timerEntry) bool {
	if q.n == len(q.entries) {
		return false
	}
	i := q.n
	for i > 0 && q.entries[i-1].deadline > e.deadline {
		q.entries[i] = q.entries[i-1]
		i--
	}
	q.entries[i] = e
	q.n++
	return true
}

// first returns the earliest entry; the queue must not be empty
func (q *timerQueue) first() timerEntry {
	return q.entries[0]
}

func (q *timerQueue) removeFirst() {
	copy(q.entries, q.entries[1:q.n])
	q.n--
	q.entries[q.n] = timerEntry{}
}

// dropStale removes entries whose waker belongs to a retired task set and
// returns how many were removed
func (q *timerQueue) dropStale() int {
	kept := 0
	for i := 0; i < q.n; i++ {
		if q.entries[i].waker.live() {
			q.entries[kept] = q.entries[i]
			kept++
		}
	}
	dropped := q.n - kept
	for i := kept; i < q.n; i++ {
		q.entries[i] = timerEntry{}
	}
	q.n = kept
	return dropped
}

func (q *timerQueue) reset() {
	for i := 0; i < q.n; i++ {
		q.entries[i] = timerEntry{}
	}
	q.n = 0
}

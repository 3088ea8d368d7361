package core

import "claw/protocol"

// channelSlot is the single mailbox slot
type channelSlot[T any] struct {
	value    T
	full     bool
	receiver Waker
}

// Channel passes the latest value from senders to one receiving task. Send
// overwrites whatever is unread and never blocks. A receive that finds the
// slot empty leaves its waker behind, and the next Send wakes it.
type Channel[T any] struct {
	slot Mutex[channelSlot[T]]
	tag  uint8
}

// NewChannel creates an empty channel. tag identifies it in trace events.
func NewChannel[T any](tag uint8) *Channel[T] {
	return &Channel[T]{tag: tag}
}

// Send stores v, replacing any unread value. It is safe from handlers.
func (c *Channel[T]) Send(v T) {
	var w Waker
	c.slot.Lock(func(s *channelSlot[T]) {
		s.value = v
		s.full = true
		w = s.receiver
		s.receiver = Waker{}
	})
	RecordTiming(protocol.EvtSend, c.tag, 0)
	w.Wake()
}

// TryReceive takes the value if one is waiting
func (c *Channel[T]) TryReceive() (T, bool) {
	var v T
	ok := false
	c.slot.Lock(func(s *channelSlot[T]) {
		if !s.full {
			return
		}
		v, ok = s.value, true
		var zero T
		s.value = zero
		s.full = false
	})
	return v, ok
}

// Receive returns a future that completes with the next value
func (c *Channel[T]) Receive() Receive[T] {
	return Receive[T]{ch: c}
}

func (c *Channel[T]) poll(w Waker) (T, bool) {
	var v T
	ok := false
	c.slot.Lock(func(s *channelSlot[T]) {
		if !s.full {
			s.receiver = w
			return
		}
		v, ok = s.value, true
		var zero T
		s.value = zero
		s.full = false
		s.receiver = Waker{}
	})
	return v, ok
}

// Receive is the future returned by Channel.Receive
type Receive[T any] struct {
	ch    *Channel[T]
	value T
	done  bool
}

func (r *Receive[T]) Poll(cx *Context) Poll {
	if r.done {
		return Ready
	}
	v, ok := r.ch.poll(cx.Waker())
	if !ok {
		return Pending
	}
	r.value = v
	r.done = true
	return Ready
}

// Value returns the received value once the future is Ready
func (r *Receive[T]) Value() T {
	return r.value
}

// Package core is the concurrency substrate of the claw machine firmware: a
// cooperative executor, compare-match timer services, edge notifiers for
// switch inputs and a single-slot channel for motion commands.
//
// Everything runs on one core. Tasks are polled state machines; interrupt
// handlers only ever wake tasks by index and never run task code. State that
// both sides touch lives in a Mutex and is only accessed with interrupts
// masked.
package core

// TaskID identifies a slot in the task set installed by Executor.Run
type TaskID uint8

// Poll is the result of polling a future once
type Poll uint8

const (
	Pending Poll = iota
	Ready
)

// Future is a resumable computation. Poll must not block; a future that
// returns Pending has arranged for its task to be woken, or relies on a
// sibling future that has.
type Future interface {
	Poll(cx *Context) Poll
}

// FutureFunc adapts a function to Future
type FutureFunc func(cx *Context) Poll

func (f FutureFunc) Poll(cx *Context) Poll {
	return f(cx)
}

// Phase names the game phase that follows a Run. The executor attaches no
// meaning to the value.
type Phase uint8

package core

// Mutex guards a value shared between task code and interrupt handlers. The
// value is only reachable inside Lock, which runs with interrupts masked.
//
// Handlers may call Lock as well: masking nests, and on the host build the
// critical section is a no-op because everything runs on one goroutine.
type Mutex[T any] struct {
	value T
}

// NewMutex wraps an initial value.
func NewMutex[T any](value T) *Mutex[T] {
	return &Mutex[T]{value: value}
}

// Lock runs fn with interrupts masked.
func (m *Mutex[T]) Lock(fn func(v *T)) {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	fn(&m.value)
}

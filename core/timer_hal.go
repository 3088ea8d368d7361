package core

// TimerHardware is a compare-match timer whose counter restarts from zero at
// every match, the way an AVR timer runs in CTC mode. The platform calls the
// owning TimerService's HandleInterrupt on each match.
type TimerHardware interface {
	// SetCompare programs the next match, counted in ticks from the previous
	// match. The value is at most MaxCompare and always greater than Elapsed.
	SetCompare(ticks uint32)

	// Elapsed returns the ticks counted since the previous match. It must
	// keep counting, not wrap, while a match is pending but not yet handled.
	Elapsed() uint32

	// MaxCompare is the widest value the compare register holds
	MaxCompare() uint32
}

package core

// Selected tells which side of a Select completed
type Selected uint8

const (
	SelectedNone Selected = iota
	SelectedFirst
	SelectedSecond
)

// SelectFuture completes as soon as either side does. first is polled before
// second on every poll, so when both are ready together first wins. The
// losing side is never polled again; whatever it registered stays registered
// until its own wake arrives, which is then a harmless extra poll.
type SelectFuture struct {
	first, second Future
	winner        Selected
}

// Select races first against second
func Select(first, second Future) SelectFuture {
	return SelectFuture{first: first, second: second}
}

func (s *SelectFuture) Poll(cx *Context) Poll {
	if s.winner != SelectedNone {
		return Ready
	}
	if s.first.Poll(cx) == Ready {
		s.winner = SelectedFirst
		return Ready
	}
	if s.second.Poll(cx) == Ready {
		s.winner = SelectedSecond
		return Ready
	}
	return Pending
}

// Winner returns the side that completed, SelectedNone while pending
func (s *SelectFuture) Winner() Selected {
	return s.winner
}

// JoinFuture completes once both sides have
type JoinFuture struct {
	a, b         Future
	aDone, bDone bool
}

// Join waits for a and b. Each side stops being polled once it completes.
func Join(a, b Future) JoinFuture {
	return JoinFuture{a: a, b: b}
}

func (j *JoinFuture) Poll(cx *Context) Poll {
	if !j.aDone && j.a.Poll(cx) == Ready {
		j.aDone = true
	}
	if !j.bDone && j.b.Poll(cx) == Ready {
		j.bDone = true
	}
	if j.aDone && j.bDone {
		return Ready
	}
	return Pending
}

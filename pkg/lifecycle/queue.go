package lifecycle

// loadQueue holds the listeners of one scope that are waiting for OnLoad.
// A listener is pending at most once.
type loadQueue struct {
	pending []Listener
	queued  map[Listener]struct{}
}

func newLoadQueue() *loadQueue {
	return &loadQueue{queued: make(map[Listener]struct{})}
}

// push appends l unless it is already pending. It reports whether l was added.
func (q *loadQueue) push(l Listener) bool {
	if _, ok := q.queued[l]; ok {
		return false
	}
	q.queued[l] = struct{}{}
	q.pending = append(q.pending, l)
	return true
}

// pop removes the oldest pending listener.
func (q *loadQueue) pop() (Listener, bool) {
	if len(q.pending) == 0 {
		return nil, false
	}
	l := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	delete(q.queued, l)
	return l, true
}

// reset replaces the queue with ls, in order.
func (q *loadQueue) reset(ls []Listener) {
	q.clear()
	for _, l := range ls {
		q.push(l)
	}
}

func (q *loadQueue) clear() {
	q.pending = nil
	q.queued = make(map[Listener]struct{})
}

func (q *loadQueue) len() int {
	return len(q.pending)
}

// admit applies the registration admission rule for phase. drainNow is true
// when the caller must run a drain before returning.
func (q *loadQueue) admit(l Listener, phase Phase) (drainNow bool, err error) {
	switch phase {
	case PhaseSaving:
		return false, ErrRegisterDuringSave
	case PhaseLoading:
		q.push(l)
		return false, nil
	default:
		q.push(l)
		return true, nil
	}
}

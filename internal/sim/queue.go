package sim

import "dispatchsim/internal/demand"

// StopQueue is the FIFO of passengers waiting at one stop. Arrival events
// are processed in time order, so append order is arrival order. A
// passenger leaves only by boarding or by the horizon sweep.
type StopQueue struct {
	waiting []*demand.Request
	head    int
}

// Push appends a waiting passenger.
func (q *StopQueue) Push(r *demand.Request) {
	q.waiting = append(q.waiting, r)
}

// Pop removes and returns the longest-waiting passenger, or nil when empty.
func (q *StopQueue) Pop() *demand.Request {
	if q.head >= len(q.waiting) {
		return nil
	}
	r := q.waiting[q.head]
	q.waiting[q.head] = nil
	q.head++
	if q.head == len(q.waiting) {
		q.waiting = q.waiting[:0]
		q.head = 0
	}
	return r
}

// Len returns the number of passengers still waiting.
func (q *StopQueue) Len() int {
	return len(q.waiting) - q.head
}

// Drain removes and returns all waiting passengers in FIFO order.
// Used by the horizon sweep to fail everyone still queued.
func (q *StopQueue) Drain() []*demand.Request {
	out := make([]*demand.Request, 0, q.Len())
	for q.Len() > 0 {
		out = append(out, q.Pop())
	}
	return out
}

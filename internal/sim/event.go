package sim

import (
	"container/heap"

	"dispatchsim/internal/demand"
)

// Kind identifies an event type. The numeric order is the tie-break
// priority at equal instants: arrivals are processed before departures so
// passengers already waiting board before a bus leaves, and forecast checks
// see the queue state after all arrivals at that instant.
type Kind uint8

const (
	KindPassengerArrival Kind = iota
	KindBusArrival
	KindBusDeparture
	KindForecastCheck
)

func (k Kind) String() string {
	switch k {
	case KindPassengerArrival:
		return "passenger_arrival"
	case KindBusArrival:
		return "bus_arrival"
	case KindBusDeparture:
		return "bus_departure"
	case KindForecastCheck:
		return "forecast_check"
	}
	return "unknown"
}

// Event is a scheduled discrete point in simulated time. Payload fields are
// set per kind: Request for passenger arrivals, Bus/StopID for bus events,
// TripID for baseline trip events.
type Event struct {
	At   int64 // simulated seconds since service-day midnight
	Kind Kind

	Request *demand.Request
	Bus     *Bus
	StopID  string
	TripID  string
	Index   int // baseline: visit index within the trip

	seq uint64 // insertion order, final deterministic tie-break
}

// eventQueue is a min-heap ordered by (At, Kind, seq).
type eventQueue []*Event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].At != q[j].At {
		return q[i].At < q[j].At
	}
	if q[i].Kind != q[j].Kind {
		return q[i].Kind < q[j].Kind
	}
	return q[i].seq < q[j].seq
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) { *q = append(*q, x.(*Event)) }

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return ev
}

// Loop is the deterministic single-threaded event scheduler shared by both
// engines. Horizon is a simulated-time bound: events past it are not
// handled, but are still surfaced to the expired callback so the engine can
// account for every passenger.
type Loop struct {
	pq      eventQueue
	seq     uint64
	Horizon int64
	Now     int64
}

// NewLoop creates a Loop with the given simulated-time horizon.
func NewLoop(horizon int64) *Loop {
	return &Loop{Horizon: horizon}
}

// Schedule enqueues an event. Scheduling at an instant earlier than Now
// would break ordering; such events are clamped to Now.
func (l *Loop) Schedule(ev Event) {
	if ev.At < l.Now {
		ev.At = l.Now
	}
	ev.seq = l.seq
	l.seq++
	e := ev
	heap.Push(&l.pq, &e)
}

// Pending returns the number of events not yet processed.
func (l *Loop) Pending() int { return l.pq.Len() }

// Run drains the queue in (At, Kind, seq) order. handle is called for each
// event with At <= Horizon; expired for each event past it. Handlers may
// call Schedule. Run returns when the queue is empty.
func (l *Loop) Run(handle func(*Event), expired func(*Event)) {
	for l.pq.Len() > 0 {
		ev := heap.Pop(&l.pq).(*Event)
		if ev.At > l.Horizon {
			if expired != nil {
				expired(ev)
			}
			continue
		}
		l.Now = ev.At
		handle(ev)
	}
}

package sim

import (
	"sort"

	"dispatchsim/internal/demand"
	"dispatchsim/internal/metrics"
	"dispatchsim/internal/network"
	"dispatchsim/internal/report"
	"dispatchsim/internal/transit"
)

// Baseline replays the published timetable unchanged: every scheduled trip
// runs regardless of demand, and passengers board whatever visits their stop
// next. Its mileage is a constant function of the timetable.
type Baseline struct {
	cost     CostModel
	net      *network.Model
	horizon  int64
	staticKm float64 // audit override for total km; 0 computes from the timetable

	trips      map[string]*baselineTrip
	tripOrder  []string
	queues     map[string]*StopQueue
	knownStops map[string]bool

	loop *Loop
	t    tally
	mcol *metrics.Collector
}

// baselineTrip is one scheduled trip with its own bus.
type baselineTrip struct {
	id        string
	stops     []string
	times     []int64
	km        float64
	bus       *Bus
	firstIdx  map[string]int // stop id -> first visit index on the trip
	alighting map[int]int    // visit index -> passengers alighting there
}

// NewBaseline builds the engine from schedule visits. Visits are grouped by
// trip and ordered by stop sequence; trip order is sorted for determinism.
func NewBaseline(cost CostModel, net *network.Model, visits []transit.Visit, horizon int64, staticKm float64, mcol *metrics.Collector) *Baseline {
	b := &Baseline{
		cost:       cost,
		net:        net,
		horizon:    horizon,
		staticKm:   staticKm,
		trips:      make(map[string]*baselineTrip),
		queues:     make(map[string]*StopQueue),
		knownStops: make(map[string]bool),
		mcol:       mcol,
	}

	grouped := make(map[string][]transit.Visit)
	for _, v := range visits {
		grouped[v.TripID] = append(grouped[v.TripID], v)
	}
	for tripID, vs := range grouped {
		sort.Slice(vs, func(i, j int) bool { return vs[i].Sequence < vs[j].Sequence })
		t := &baselineTrip{
			id:        tripID,
			firstIdx:  make(map[string]int, len(vs)),
			alighting: make(map[int]int),
			bus:       &Bus{Remaining: cost.BusCapacity},
		}
		for i, v := range vs {
			t.stops = append(t.stops, v.StopID)
			t.times = append(t.times, v.ArrivalSec)
			if _, seen := t.firstIdx[v.StopID]; !seen {
				t.firstIdx[v.StopID] = i
			}
			if i > 0 {
				t.km += net.DistanceKm(t.stops[i-1], v.StopID)
			}
			b.knownStops[v.StopID] = true
		}
		b.trips[tripID] = t
		b.tripOrder = append(b.tripOrder, tripID)
	}
	sort.Strings(b.tripOrder)
	return b
}

// Run replays the demand trace against the timetable and returns the
// aggregated result. Single-threaded and deterministic.
func (b *Baseline) Run(trace []demand.Request) report.SimulationResult {
	b.loop = NewLoop(b.horizon)

	for i := range trace {
		r := &trace[i]
		b.loop.Schedule(Event{At: r.ArrivalSec, Kind: KindPassengerArrival, Request: r})
	}
	for _, tripID := range b.tripOrder {
		t := b.trips[tripID]
		if len(t.times) == 0 {
			continue
		}
		b.loop.Schedule(Event{At: t.times[0], Kind: KindBusDeparture, TripID: tripID})
		for i := range t.stops {
			b.loop.Schedule(Event{At: t.times[i], Kind: KindBusArrival, TripID: tripID, StopID: t.stops[i], Index: i})
		}
	}

	b.loop.Run(b.handle, b.expired)
	b.sweepQueues()

	km := b.t.totalKm
	cost := b.t.totalCost
	if b.staticKm > 0 {
		// Operator-audited total replaces the geometric estimate.
		cost += (b.staticKm - km) * b.cost.KmCost
		km = b.staticKm
	}
	cpp := costPerPassenger(cost, b.t.served)
	return report.SimulationResult{
		AverageWaitMinutes: b.t.avgWaitMinutes(),
		TotalCost:          cost,
		TotalKmDriven:      km,
		PassengersServed:   b.t.served,
		PassengersFailed:   b.t.failed,
		CostPerPassenger:   cpp,
		SampleSize:         int64(len(trace)),
		EngineType:         "baseline",
	}
}

func (b *Baseline) handle(ev *Event) {
	if b.mcol != nil {
		b.mcol.EventsProcessed.Inc()
	}
	switch ev.Kind {
	case KindPassengerArrival:
		b.onPassengerArrival(ev.Request)
	case KindBusDeparture:
		b.onTripStart(b.trips[ev.TripID])
	case KindBusArrival:
		b.onTripVisit(b.trips[ev.TripID], ev.Index)
	}
}

func (b *Baseline) expired(ev *Event) {
	if ev.Kind == KindPassengerArrival {
		b.fail()
	}
}

func (b *Baseline) onPassengerArrival(r *demand.Request) {
	if !b.knownStops[r.Origin] {
		b.fail()
		return
	}
	q, ok := b.queues[r.Origin]
	if !ok {
		q = &StopQueue{}
		b.queues[r.Origin] = q
	}
	q.Push(r)
	if b.mcol != nil {
		b.mcol.QueuedPassengers.Inc()
	}
}

// onTripStart accrues the trip's full scheduled mileage and its fixed cost.
// The trip runs whether or not anyone is waiting: the static operator
// cannot react to demand.
func (b *Baseline) onTripStart(t *baselineTrip) {
	b.t.driveKm(t.km, b.cost.KmCost)
	b.t.dispatch(b.cost.DispatchCost)
	if b.mcol != nil {
		b.mcol.Dispatches.Inc()
	}
}

func (b *Baseline) onTripVisit(t *baselineTrip, idx int) {
	now := b.loop.Now

	if n := t.alighting[idx]; n > 0 {
		t.bus.Alight(n, b.cost.BusCapacity)
		delete(t.alighting, idx)
	}

	q, ok := b.queues[t.stops[idx]]
	if !ok {
		return
	}
	for t.bus.Remaining > 0 {
		r := q.Pop()
		if r == nil {
			break
		}
		if b.mcol != nil {
			b.mcol.QueuedPassengers.Dec()
		}
		wait := now - r.ArrivalSec
		if wait > b.cost.MaxWaitSec {
			// Gave up before this visit.
			b.fail()
			continue
		}
		t.bus.Board()
		b.serve(wait)
		if r.Dest != "" {
			if j, ok := t.firstIdx[r.Dest]; ok && j > idx {
				t.alighting[j]++
			}
			// Destination not downstream: rides to the terminal, still served.
		}
	}
}

func (b *Baseline) sweepQueues() {
	stops := make([]string, 0, len(b.queues))
	for s := range b.queues {
		stops = append(stops, s)
	}
	sort.Strings(stops)
	for _, s := range stops {
		for range b.queues[s].Drain() {
			b.fail()
		}
	}
	if b.mcol != nil {
		b.mcol.QueuedPassengers.Set(0)
	}
}

func (b *Baseline) serve(waitSec int64) {
	b.t.serve(waitSec)
	if b.mcol != nil {
		b.mcol.PassengersServed.Inc()
	}
}

func (b *Baseline) fail() {
	b.t.fail()
	if b.mcol != nil {
		b.mcol.PassengersFailed.Inc()
	}
}

// costPerPassenger guards the division: nil when nobody was served.
func costPerPassenger(totalCost float64, served int64) *float64 {
	if served == 0 {
		return nil
	}
	v := totalCost / float64(served)
	return &v
}

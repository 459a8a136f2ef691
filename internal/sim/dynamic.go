package sim

import (
	"math"
	"sort"
	"time"

	"dispatchsim/internal/demand"
	"dispatchsim/internal/forecast"
	"dispatchsim/internal/metrics"
	"dispatchsim/internal/network"
	"dispatchsim/internal/report"
)

const (
	// minServiceSec/maxServiceSec clamp a service leg's duration.
	minServiceSec = 10 * 60
	maxServiceSec = 60 * 60
	// emptyHoldSec keeps a bus at a stop after an over-predicted dispatch
	// found nobody waiting.
	emptyHoldSec = 5 * 60
)

// Dynamic emulates an operator who dispatches buses in reaction to
// forecast and observed demand. At every forecast check it combines the
// oracle's predicted arrivals with live queue lengths, per cluster, and
// sends the nearest idle buses where the combined demand exceeds capacity.
type Dynamic struct {
	cost        CostModel
	net         *network.Model
	oracle      forecast.Oracle
	clusters    *forecast.Assignments
	horizon     int64
	intervalSec int64

	fleet  []*Bus
	active map[int]int // cluster id -> buses currently assigned
	queues map[string]*StopQueue

	// DispatchesByCluster counts dispatch decisions per cluster over the run.
	DispatchesByCluster map[int]int64

	loop *Loop
	t    tally
	mcol *metrics.Collector
}

// NewDynamic builds the engine. The fleet is placed round-robin across
// clusters in ascending id order, each bus at its cluster's first stop, so
// two runs start from identical state.
func NewDynamic(cost CostModel, net *network.Model, oracle forecast.Oracle, clusters *forecast.Assignments, fleetSize int, intervalSec, horizon int64, mcol *metrics.Collector) *Dynamic {
	d := &Dynamic{
		cost:                cost,
		net:                 net,
		oracle:              oracle,
		clusters:            clusters,
		horizon:             horizon,
		intervalSec:         intervalSec,
		active:              make(map[int]int),
		queues:              make(map[string]*StopQueue),
		DispatchesByCluster: make(map[int]int64),
		mcol:                mcol,
	}
	ids := clusters.Clusters()
	for i := 0; i < fleetSize; i++ {
		at := ""
		if len(ids) > 0 {
			at = clusters.StopsIn(ids[i%len(ids)])[0]
		}
		d.fleet = append(d.fleet, &Bus{ID: i, AtStop: at, Remaining: cost.BusCapacity, State: BusIdle})
	}
	if mcol != nil {
		mcol.IdleBuses.Set(float64(fleetSize))
	}
	return d
}

// Run replays the demand trace under the dispatch policy and returns the
// aggregated result. Single-threaded and deterministic.
func (d *Dynamic) Run(trace []demand.Request) report.SimulationResult {
	d.loop = NewLoop(d.horizon)

	for i := range trace {
		r := &trace[i]
		d.loop.Schedule(Event{At: r.ArrivalSec, Kind: KindPassengerArrival, Request: r})
	}
	// Immediate first evaluation; later ticks reschedule themselves.
	d.loop.Schedule(Event{At: 0, Kind: KindForecastCheck})

	d.loop.Run(d.handle, d.expired)
	d.sweepQueues()

	cpp := costPerPassenger(d.t.totalCost, d.t.served)
	return report.SimulationResult{
		AverageWaitMinutes: d.t.avgWaitMinutes(),
		TotalCost:          d.t.totalCost,
		TotalKmDriven:      d.t.totalKm,
		PassengersServed:   d.t.served,
		PassengersFailed:   d.t.failed,
		CostPerPassenger:   cpp,
		SampleSize:         int64(len(trace)),
		EngineType:         "dynamic",
	}
}

func (d *Dynamic) handle(ev *Event) {
	if d.mcol != nil {
		d.mcol.EventsProcessed.Inc()
	}
	switch ev.Kind {
	case KindPassengerArrival:
		d.onPassengerArrival(ev.Request)
	case KindForecastCheck:
		d.onForecastCheck()
	case KindBusArrival:
		d.onBusArrival(ev.Bus, ev.StopID)
	case KindBusDeparture:
		d.onServiceComplete(ev.Bus)
	}
}

func (d *Dynamic) expired(ev *Event) {
	if ev.Kind == KindPassengerArrival {
		d.fail()
	}
}

func (d *Dynamic) onPassengerArrival(r *demand.Request) {
	if _, ok := d.clusters.ClusterOf(r.Origin); !ok || !d.net.HasStop(r.Origin) {
		d.fail()
		return
	}
	if r.Dest != "" && !d.net.HasStop(r.Dest) {
		// Unreachable destination: non-fatal, the run continues.
		d.fail()
		return
	}
	q, ok := d.queues[r.Origin]
	if !ok {
		q = &StopQueue{}
		d.queues[r.Origin] = q
	}
	q.Push(r)
	if d.mcol != nil {
		d.mcol.QueuedPassengers.Inc()
	}
}

// onForecastCheck runs one decision pass over all clusters in ascending id
// order, then schedules the next tick if it falls within the horizon.
func (d *Dynamic) onForecastCheck() {
	start := time.Now()
	now := d.loop.Now

	for _, cluster := range d.clusters.Clusters() {
		expected, ok := d.oracle.Predict(cluster, now, d.intervalSec)
		if !ok {
			// Degrade to the live queue signal for this interval.
			expected = 0
			if d.mcol != nil {
				d.mcol.ForecastFallbacks.Inc()
			}
		}
		if expected < 0 {
			expected = 0
		}
		queued := d.clusterQueueLen(cluster)
		needed := int(math.Ceil((expected + float64(queued)) / float64(d.cost.BusCapacity)))
		for d.active[cluster] < needed {
			target := d.busiestStop(cluster)
			bus := d.nearestIdle(target)
			if bus == nil {
				break // fleet exhausted; queue holds until the next tick
			}
			d.dispatch(bus, cluster, target)
		}
	}

	if d.mcol != nil {
		d.mcol.ObserveDecision(start)
	}
	if next := now + d.intervalSec; next <= d.horizon {
		d.loop.Schedule(Event{At: next, Kind: KindForecastCheck})
	}
}

// dispatch commits a bus to a cluster: the leg's km and the fixed dispatch
// cost accrue at decision time, and the arrival is scheduled from the
// network model's travel time.
func (d *Dynamic) dispatch(bus *Bus, cluster int, target string) {
	legKm := d.net.DistanceKm(bus.AtStop, target)
	travel := int64(math.Round(d.net.TravelSeconds(bus.AtStop, target)))

	d.t.driveKm(legKm, d.cost.KmCost)
	d.t.dispatch(d.cost.DispatchCost)
	d.DispatchesByCluster[cluster]++
	if d.mcol != nil {
		d.mcol.Dispatches.Inc()
		if bus.State == BusIdle {
			d.mcol.IdleBuses.Dec()
		}
	}

	bus.State = BusEnRoute
	bus.Cluster = cluster
	d.active[cluster]++
	d.loop.Schedule(Event{At: d.loop.Now + travel, Kind: KindBusArrival, Bus: bus, StopID: target})
}

// onBusArrival boards waiting passengers FIFO up to capacity, then runs the
// service leg delivering them. An empty queue (over-prediction) just holds
// the bus briefly: wasted km, not an error.
func (d *Dynamic) onBusArrival(bus *Bus, stopID string) {
	now := d.loop.Now
	bus.AtStop = stopID
	bus.State = BusLoading
	bus.Remaining = d.cost.BusCapacity

	var boarded []*demand.Request
	if q, ok := d.queues[stopID]; ok {
		for bus.Remaining > 0 {
			r := q.Pop()
			if r == nil {
				break
			}
			if d.mcol != nil {
				d.mcol.QueuedPassengers.Dec()
			}
			wait := now - r.ArrivalSec
			if wait > d.cost.MaxWaitSec {
				d.fail()
				continue
			}
			bus.Board()
			d.serve(wait)
			boarded = append(boarded, r)
		}
	}

	if len(boarded) == 0 {
		bus.State = BusEnRoute
		d.loop.Schedule(Event{At: now + emptyHoldSec, Kind: KindBusDeparture, Bus: bus})
		return
	}

	serviceKm := 0.0
	dropStop := stopID
	for _, r := range boarded {
		if r.Dest == "" {
			continue
		}
		serviceKm += d.net.DistanceKm(r.Origin, r.Dest)
		if dropStop == stopID {
			// The bus ends its service leg at the first rider's destination.
			dropStop = r.Dest
		}
	}
	d.t.driveKm(serviceKm, d.cost.KmCost)

	durSec := int64(math.Round(serviceKm / d.cost.AvgSpeedKmph * 3600))
	if durSec < minServiceSec {
		durSec = minServiceSec
	}
	if durSec > maxServiceSec {
		durSec = maxServiceSec
	}
	bus.AtStop = dropStop
	bus.State = BusEnRoute
	d.loop.Schedule(Event{At: now + durSec, Kind: KindBusDeparture, Bus: bus})
}

// onServiceComplete frees the bus and either continues it toward the
// highest-need cluster or returns it to idle.
func (d *Dynamic) onServiceComplete(bus *Bus) {
	if d.active[bus.Cluster] > 0 {
		d.active[bus.Cluster]--
	}

	next, queued := -1, 0
	for _, cluster := range d.clusters.Clusters() {
		if n := d.clusterQueueLen(cluster); n > queued {
			next, queued = cluster, n
		}
	}
	if next < 0 {
		bus.State = BusIdle
		if d.mcol != nil {
			d.mcol.IdleBuses.Inc()
		}
		return
	}
	d.dispatch(bus, next, d.busiestStop(next))
}

func (d *Dynamic) clusterQueueLen(cluster int) int {
	n := 0
	for _, stop := range d.clusters.StopsIn(cluster) {
		if q, ok := d.queues[stop]; ok {
			n += q.Len()
		}
	}
	return n
}

// busiestStop returns the cluster stop with the longest queue; ties keep
// the first stop in sorted order, and an idle cluster targets its first
// stop so a dispatched bus has somewhere to wait.
func (d *Dynamic) busiestStop(cluster int) string {
	stops := d.clusters.StopsIn(cluster)
	if len(stops) == 0 {
		return ""
	}
	best, bestLen := stops[0], 0
	for _, stop := range stops {
		if q, ok := d.queues[stop]; ok && q.Len() > bestLen {
			best, bestLen = stop, q.Len()
		}
	}
	return best
}

// nearestIdle returns the idle bus with the least travel time to the
// target; ties break toward the lowest bus id because the fleet is scanned
// in id order with a strict comparison.
func (d *Dynamic) nearestIdle(target string) *Bus {
	var best *Bus
	bestSec := math.MaxFloat64
	for _, bus := range d.fleet {
		if bus.State != BusIdle {
			continue
		}
		sec := d.net.TravelSeconds(bus.AtStop, target)
		if sec < bestSec {
			best, bestSec = bus, sec
		}
	}
	return best
}

func (d *Dynamic) sweepQueues() {
	stops := make([]string, 0, len(d.queues))
	for s := range d.queues {
		stops = append(stops, s)
	}
	sort.Strings(stops)
	for _, s := range stops {
		for range d.queues[s].Drain() {
			d.fail()
		}
	}
	if d.mcol != nil {
		d.mcol.QueuedPassengers.Set(0)
	}
}

func (d *Dynamic) serve(waitSec int64) {
	d.t.serve(waitSec)
	if d.mcol != nil {
		d.mcol.PassengersServed.Inc()
	}
}

func (d *Dynamic) fail() {
	d.t.fail()
	if d.mcol != nil {
		d.mcol.PassengersFailed.Inc()
	}
}

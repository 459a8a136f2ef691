package sim

import (
	"testing"

	"dispatchsim/internal/demand"
	"dispatchsim/internal/forecast"
	"dispatchsim/internal/network"
	"dispatchsim/internal/report"
	"dispatchsim/internal/transit"
)

// oracleFunc adapts a function to the forecast.Oracle interface.
type oracleFunc func(cluster int, startSec, durSec int64) (float64, bool)

func (f oracleFunc) Predict(cluster int, startSec, durSec int64) (float64, bool) {
	return f(cluster, startSec, durSec)
}

func flatOracle(expected float64) oracleFunc {
	return func(int, int64, int64) (float64, bool) { return expected, true }
}

func noOracle() oracleFunc {
	return func(int, int64, int64) (float64, bool) { return 0, false }
}

// twoClusterNetwork: cluster 0 holds A and B (~1.1 km apart), cluster 1
// holds the distant C.
func twoClusterNetwork() (*network.Model, *forecast.Assignments) {
	stops := []transit.Stop{
		{ID: "A", Lat: 0, Lon: 0},
		{ID: "B", Lat: 0, Lon: 0.01},
		{ID: "C", Lat: 0, Lon: 1},
	}
	net := network.New(stops, nil, 18)
	clusters := forecast.NewAssignments(map[string]int{"A": 0, "B": 0, "C": 1})
	return net, clusters
}

const halfHour = 30 * 60

func TestDynamic_UnderPredictionStillServes(t *testing.T) {
	// The forecast insists nothing is coming, but passengers queue up. The
	// live queue signal alone must trigger a dispatch on the next tick.
	net, clusters := twoClusterNetwork()
	engine := NewDynamic(testCost(60), net, flatOracle(0), clusters, 2, halfHour, dayHorizon, nil)

	trace := []demand.Request{
		{ID: 0, Origin: "A", Dest: "B", ArrivalSec: 100},
		{ID: 1, Origin: "A", Dest: "B", ArrivalSec: 200},
		{ID: 2, Origin: "A", Dest: "B", ArrivalSec: 300},
	}
	res := engine.Run(trace)

	if res.PassengersServed != 3 {
		t.Errorf("served = %d, want 3", res.PassengersServed)
	}
	if res.PassengersFailed != 0 {
		t.Errorf("failed = %d, want 0", res.PassengersFailed)
	}
	if res.PassengersServed+res.PassengersFailed != res.SampleSize {
		t.Errorf("conservation violated: %d + %d != %d", res.PassengersServed, res.PassengersFailed, res.SampleSize)
	}
	if engine.DispatchesByCluster[0] == 0 {
		t.Error("no dispatch to the queued cluster")
	}
}

func TestDynamic_ForecastUnavailableFallsBackToQueue(t *testing.T) {
	net, clusters := twoClusterNetwork()
	engine := NewDynamic(testCost(60), net, noOracle(), clusters, 2, halfHour, dayHorizon, nil)

	trace := []demand.Request{
		{ID: 0, Origin: "B", Dest: "A", ArrivalSec: 500},
	}
	res := engine.Run(trace)

	if res.PassengersServed != 1 || res.PassengersFailed != 0 {
		t.Errorf("served/failed = %d/%d, want 1/0", res.PassengersServed, res.PassengersFailed)
	}
}

func TestDynamic_OverPredictionWastesKmWithoutFailures(t *testing.T) {
	// A huge forecast with nobody waiting: buses roll, nobody boards.
	net, clusters := twoClusterNetwork()
	engine := NewDynamic(testCost(60), net, flatOracle(100), clusters, 2, halfHour, 2000, nil)

	res := engine.Run(nil)

	if res.PassengersFailed != 0 || res.PassengersServed != 0 {
		t.Errorf("served/failed = %d/%d, want 0/0", res.PassengersServed, res.PassengersFailed)
	}
	if res.TotalKmDriven <= 0 {
		t.Errorf("total km = %v, want > 0 (wasted dispatch legs)", res.TotalKmDriven)
	}
	if res.CostPerPassenger != nil {
		t.Errorf("cost_per_passenger = %v, want nil", *res.CostPerPassenger)
	}
}

func TestDynamic_ResponsivenessMonotonicInDemand(t *testing.T) {
	mkTrace := func(n int) []demand.Request {
		var trace []demand.Request
		for i := 0; i < n; i++ {
			trace = append(trace, demand.Request{ID: int64(i), Origin: "A", Dest: "B", ArrivalSec: int64(100 + i)})
		}
		return trace
	}
	cost := testCost(2)

	net, clusters := twoClusterNetwork()
	low := NewDynamic(cost, net, flatOracle(0), clusters, 10, halfHour, dayHorizon, nil)
	low.Run(mkTrace(1))

	net2, clusters2 := twoClusterNetwork()
	high := NewDynamic(cost, net2, flatOracle(0), clusters2, 10, halfHour, dayHorizon, nil)
	high.Run(mkTrace(6))

	if high.DispatchesByCluster[0] <= low.DispatchesByCluster[0] {
		t.Errorf("dispatches not monotonic: low=%d high=%d",
			low.DispatchesByCluster[0], high.DispatchesByCluster[0])
	}
}

func TestDynamic_UnknownStopsFailWithoutAborting(t *testing.T) {
	net, clusters := twoClusterNetwork()
	engine := NewDynamic(testCost(60), net, flatOracle(0), clusters, 2, halfHour, dayHorizon, nil)

	trace := []demand.Request{
		{ID: 0, Origin: "nowhere", Dest: "B", ArrivalSec: 100},   // unknown origin
		{ID: 1, Origin: "A", Dest: "elsewhere", ArrivalSec: 150}, // unreachable destination
		{ID: 2, Origin: "A", Dest: "B", ArrivalSec: 200},
	}
	res := engine.Run(trace)

	if res.PassengersServed != 1 || res.PassengersFailed != 2 {
		t.Errorf("served/failed = %d/%d, want 1/2", res.PassengersServed, res.PassengersFailed)
	}
}

func TestDynamic_WaitToleranceFails(t *testing.T) {
	cost := testCost(60)
	cost.MaxWaitSec = 600 // first possible boarding is the t=1800 tick
	net, clusters := twoClusterNetwork()
	engine := NewDynamic(cost, net, flatOracle(0), clusters, 2, halfHour, dayHorizon, nil)

	res := engine.Run([]demand.Request{{ID: 0, Origin: "A", Dest: "B", ArrivalSec: 100}})

	if res.PassengersServed != 0 || res.PassengersFailed != 1 {
		t.Errorf("served/failed = %d/%d, want 0/1", res.PassengersServed, res.PassengersFailed)
	}
}

func TestDynamic_CapacityExhaustionAcrossTicks(t *testing.T) {
	// Capacity 2, 5 passengers, one bus: each service leg carries 2; the
	// rest wait for later ticks rather than vanish.
	net, clusters := twoClusterNetwork()
	engine := NewDynamic(testCost(2), net, flatOracle(0), clusters, 1, halfHour, dayHorizon, nil)

	var trace []demand.Request
	for i := int64(0); i < 5; i++ {
		trace = append(trace, demand.Request{ID: i, Origin: "A", Dest: "B", ArrivalSec: 100 + i})
	}
	res := engine.Run(trace)

	if res.PassengersServed+res.PassengersFailed != res.SampleSize {
		t.Fatalf("conservation violated: %d + %d != %d", res.PassengersServed, res.PassengersFailed, res.SampleSize)
	}
	if res.PassengersServed == 0 {
		t.Error("no passengers served despite repeated dispatch opportunities")
	}
}

func TestDynamic_EmptyTrace(t *testing.T) {
	net, clusters := twoClusterNetwork()
	engine := NewDynamic(testCost(60), net, flatOracle(0), clusters, 2, halfHour, dayHorizon, nil)

	res := engine.Run(nil)

	if res.PassengersServed != 0 || res.PassengersFailed != 0 {
		t.Errorf("served/failed = %d/%d, want 0/0", res.PassengersServed, res.PassengersFailed)
	}
	if res.CostPerPassenger != nil {
		t.Error("cost_per_passenger should be nil for an empty trace")
	}
	if res.TotalKmDriven != 0 || res.TotalCost != 0 {
		t.Errorf("flat forecast with no demand should not move buses: km=%v cost=%v", res.TotalKmDriven, res.TotalCost)
	}
}

func TestDynamic_Deterministic(t *testing.T) {
	mkTrace := func() []demand.Request {
		var trace []demand.Request
		for i := int64(0); i < 150; i++ {
			origin := "A"
			switch i % 3 {
			case 1:
				origin = "B"
			case 2:
				origin = "C"
			}
			dest := "B"
			if origin == "B" {
				dest = "C"
			}
			trace = append(trace, demand.Request{ID: i, Origin: origin, Dest: dest, ArrivalSec: (i * 193) % 40000})
		}
		return trace
	}
	run := func() (report.SimulationResult, map[int]int64) {
		net, clusters := twoClusterNetwork()
		engine := NewDynamic(testCost(5), net, flatOracle(3), clusters, 4, halfHour, dayHorizon, nil)
		return engine.Run(mkTrace()), engine.DispatchesByCluster
	}

	a, da := run()
	b, db := run()

	if a.AverageWaitMinutes != b.AverageWaitMinutes ||
		a.TotalCost != b.TotalCost ||
		a.TotalKmDriven != b.TotalKmDriven ||
		a.PassengersServed != b.PassengersServed ||
		a.PassengersFailed != b.PassengersFailed {
		t.Errorf("runs differ:\n%+v\n%+v", a, b)
	}
	for c, n := range da {
		if db[c] != n {
			t.Errorf("cluster %d dispatches differ: %d vs %d", c, n, db[c])
		}
	}
}

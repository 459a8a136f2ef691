package sim

// CostModel holds the capacity and cost constants shared by both engines.
// Using the same record for the baseline and dynamic runs is what keeps the
// comparison valid, so engines receive it at construction and never read
// package-level state.
type CostModel struct {
	BusCapacity  int
	KmCost       float64 // operating cost per km driven
	DispatchCost float64 // fixed cost per dispatched trip
	MaxWaitSec   int64   // wait tolerance before a passenger gives up
	AvgSpeedKmph float64 // fleet average speed for unscheduled legs
}

// Bus state values.
type BusState uint8

const (
	BusIdle BusState = iota
	BusEnRoute
	BusLoading
)

// Bus is one vehicle owned by a single engine instance.
type Bus struct {
	ID        int
	AtStop    string
	Remaining int // remaining seated capacity
	State     BusState
	KmDriven  float64

	Cluster int // dynamic engine: cluster of the current assignment
}

// Board decrements remaining capacity by one. Returns false when full.
func (b *Bus) Board() bool {
	if b.Remaining <= 0 {
		return false
	}
	b.Remaining--
	return true
}

// Alight restores capacity for n passengers leaving the bus.
func (b *Bus) Alight(n int, capacity int) {
	b.Remaining += n
	if b.Remaining > capacity {
		b.Remaining = capacity
	}
}

// tally accumulates the per-run counters both engines share.
type tally struct {
	served     int64
	failed     int64
	sumWaitSec float64
	totalKm    float64
	totalCost  float64
	dispatches int64
}

func (t *tally) serve(waitSec int64) {
	t.served++
	t.sumWaitSec += float64(waitSec)
}

func (t *tally) fail() { t.failed++ }

func (t *tally) driveKm(km float64, kmCost float64) {
	t.totalKm += km
	t.totalCost += km * kmCost
}

func (t *tally) dispatch(fixedCost float64) {
	t.dispatches++
	t.totalCost += fixedCost
}

func (t *tally) avgWaitMinutes() float64 {
	if t.served == 0 {
		return 0
	}
	return t.sumWaitSec / float64(t.served) / 60
}

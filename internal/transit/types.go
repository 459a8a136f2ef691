package transit

// Stop is a transit stop with its geographic position.
type Stop struct {
	ID  string
	Lat float64
	Lon float64
}

// Visit is one scheduled stop visit of a trip, in stop_sequence order.
type Visit struct {
	TripID     string
	StopID     string
	Sequence   int
	ArrivalSec int64 // seconds since service-day midnight (can exceed 24h)
}

// Edge is a directed travel-time edge between two stops.
type Edge struct {
	From    string
	To      string
	Seconds float64
}

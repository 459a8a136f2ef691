package network

import (
	"math"
	"testing"

	"dispatchsim/internal/transit"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestHaversineKm(t *testing.T) {
	cases := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		wantKm                 float64
		tol                    float64
	}{
		{"same point", 40.4168, -3.7038, 40.4168, -3.7038, 0, 1e-9},
		{"one degree longitude at equator", 0, 0, 0, 1, 111.19, 0.1},
		{"madrid to barcelona", 40.4168, -3.7038, 41.3874, 2.1686, 505, 5},
		{"hemisphere crossing", -10, -10, 10, 10, 3137, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := HaversineKm(tc.lat1, tc.lon1, tc.lat2, tc.lon2)
			if !approxEqual(got, tc.wantKm, tc.tol) {
				t.Errorf("HaversineKm = %v, want %v ± %v", got, tc.wantKm, tc.tol)
			}
		})
	}
}

func TestModel_DistanceKm(t *testing.T) {
	m := New([]transit.Stop{
		{ID: "a", Lat: 0, Lon: 0},
		{ID: "b", Lat: 0, Lon: 1},
	}, nil, 18)

	if got := m.DistanceKm("a", "b"); !approxEqual(got, 111.19, 0.1) {
		t.Errorf("DistanceKm(a,b) = %v, want ~111.19", got)
	}
	if got := m.DistanceKm("a", "ghost"); got != 0 {
		t.Errorf("DistanceKm to unknown stop = %v, want 0", got)
	}
	if got := m.DistanceKm("ghost", "b"); got != 0 {
		t.Errorf("DistanceKm from unknown stop = %v, want 0", got)
	}
}

func TestModel_TravelSecondsPrefersEdge(t *testing.T) {
	stops := []transit.Stop{
		{ID: "a", Lat: 0, Lon: 0},
		{ID: "b", Lat: 0, Lon: 1},
		{ID: "c", Lat: 0, Lon: 2},
	}
	edges := []transit.Edge{
		{From: "a", To: "b", Seconds: 480},
		{From: "a", To: "b", Seconds: 300}, // faster duplicate wins
		{From: "a", To: "b", Seconds: 900},
		{From: "b", To: "c", Seconds: -5}, // ignored
	}
	m := New(stops, edges, 18)

	if got := m.TravelSeconds("a", "b"); got != 300 {
		t.Errorf("TravelSeconds(a,b) = %v, want fastest edge 300", got)
	}
	// No usable edge b->c: falls back to haversine at 18 km/h.
	want := m.DistanceKm("b", "c") / 18 * 3600
	if got := m.TravelSeconds("b", "c"); !approxEqual(got, want, 1e-9) {
		t.Errorf("TravelSeconds(b,c) = %v, want fallback %v", got, want)
	}
	if got := m.TravelSeconds("a", "a"); got != 0 {
		t.Errorf("TravelSeconds(a,a) = %v, want 0", got)
	}
	if got := m.TravelSeconds("a", "ghost"); got != 0 {
		t.Errorf("TravelSeconds to unknown stop = %v, want 0", got)
	}
}

func TestModel_TravelSecondsZeroSpeed(t *testing.T) {
	m := New([]transit.Stop{
		{ID: "a", Lat: 0, Lon: 0},
		{ID: "b", Lat: 0, Lon: 1},
	}, nil, 0)

	if got := m.TravelSeconds("a", "b"); got != 0 {
		t.Errorf("TravelSeconds with zero fallback speed = %v, want 0", got)
	}
}

func TestModel_StopLookup(t *testing.T) {
	m := New([]transit.Stop{{ID: "a", Lat: 1, Lon: 2}}, nil, 18)

	if !m.HasStop("a") || m.HasStop("b") {
		t.Error("HasStop lookup wrong")
	}
	if s, ok := m.Stop("a"); !ok || s.Lat != 1 || s.Lon != 2 {
		t.Errorf("Stop(a) = %+v, %v", s, ok)
	}
	if m.NumStops() != 1 {
		t.Errorf("NumStops = %d, want 1", m.NumStops())
	}
}

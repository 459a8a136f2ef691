package network

import (
	"math"

	"dispatchsim/internal/transit"
)

const earthRadiusKm = 6371.0

// Model is the read-only network consumed by the engines: stop positions
// plus a directed travel-time graph keyed by stop id. Built once before a
// run from the route-optimization collaborator's tables.
type Model struct {
	stops map[string]transit.Stop
	edges map[string]map[string]float64 // from -> to -> seconds

	avgSpeedKmph float64 // fallback speed for stop pairs with no edge
}

// New builds a Model from stops and directed travel-time edges.
// avgSpeedKmph is used to estimate travel time between stop pairs the
// graph does not cover.
func New(stops []transit.Stop, edges []transit.Edge, avgSpeedKmph float64) *Model {
	m := &Model{
		stops:        make(map[string]transit.Stop, len(stops)),
		edges:        make(map[string]map[string]float64),
		avgSpeedKmph: avgSpeedKmph,
	}
	for _, s := range stops {
		m.stops[s.ID] = s
	}
	for _, e := range edges {
		if e.Seconds <= 0 {
			continue
		}
		to, ok := m.edges[e.From]
		if !ok {
			to = make(map[string]float64)
			m.edges[e.From] = to
		}
		// Keep the fastest observed edge when trips disagree.
		if cur, ok := to[e.To]; !ok || e.Seconds < cur {
			to[e.To] = e.Seconds
		}
	}
	return m
}

// HasStop reports whether the stop id is known to the network.
func (m *Model) HasStop(id string) bool {
	_, ok := m.stops[id]
	return ok
}

// Stop returns the stop record for an id.
func (m *Model) Stop(id string) (transit.Stop, bool) {
	s, ok := m.stops[id]
	return s, ok
}

// NumStops returns the number of stops in the network.
func (m *Model) NumStops() int { return len(m.stops) }

// DistanceKm returns the great-circle distance in km between two stops.
// Unknown stops contribute zero distance.
func (m *Model) DistanceKm(from, to string) float64 {
	a, okA := m.stops[from]
	b, okB := m.stops[to]
	if !okA || !okB {
		return 0
	}
	return HaversineKm(a.Lat, a.Lon, b.Lat, b.Lon)
}

// TravelSeconds returns the travel time between two stops: the graph edge
// when one exists, otherwise the great-circle distance at the fallback
// average speed.
func (m *Model) TravelSeconds(from, to string) float64 {
	if from == to {
		return 0
	}
	if sec, ok := m.edges[from][to]; ok {
		return sec
	}
	if m.avgSpeedKmph <= 0 {
		return 0
	}
	return m.DistanceKm(from, to) / m.avgSpeedKmph * 3600
}

// HaversineKm returns the great-circle distance in km between two lat/lon points.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

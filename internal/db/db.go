package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dispatchsim/internal/demand"
	"dispatchsim/internal/transit"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// FetchStops loads every stop with its position. The stops table is created
// by the GTFS ingestion collaborator.
func FetchStops(ctx context.Context, db *sql.DB) ([]transit.Stop, error) {
	q := `SELECT stop_id::text, COALESCE(stop_lat, 0), COALESCE(stop_lon, 0) FROM stops`
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query stops: %w", err)
	}
	defer rows.Close()

	var stops []transit.Stop
	for rows.Next() {
		var s transit.Stop
		if err := rows.Scan(&s.ID, &s.Lat, &s.Lon); err != nil {
			return nil, err
		}
		stops = append(stops, s)
	}
	return stops, rows.Err()
}

// FetchScheduleVisits loads the static timetable: one row per scheduled
// stop visit, ordered by trip and stop sequence. arrival_time may exceed
// 24:00:00 for overnight trips.
func FetchScheduleVisits(ctx context.Context, db *sql.DB) ([]transit.Visit, error) {
	q := `SELECT trip_id::text, stop_id::text, stop_sequence, COALESCE(arrival_time::text, '')
          FROM stop_times
          ORDER BY trip_id, stop_sequence`
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query stop_times: %w", err)
	}
	defer rows.Close()

	var visits []transit.Visit
	for rows.Next() {
		var v transit.Visit
		var arrival string
		if err := rows.Scan(&v.TripID, &v.StopID, &v.Sequence, &arrival); err != nil {
			return nil, err
		}
		sec, err := demand.ParseDaySeconds(arrival)
		if err != nil {
			// Rows without a usable arrival time cannot seed events; skip.
			continue
		}
		v.ArrivalSec = sec
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

// FetchTravelEdges derives the directed travel-time graph from consecutive
// stop pairs on the same trip, as built by the route-optimization
// collaborator.
func FetchTravelEdges(ctx context.Context, db *sql.DB) ([]transit.Edge, error) {
	q := `
WITH ranked_stops AS (
  SELECT
    trip_id,
    stop_id,
    EXTRACT(EPOCH FROM TO_TIMESTAMP(arrival_time::text, 'HH24:MI:SS')) AS arrival_seconds,
    stop_sequence
  FROM stop_times
)
SELECT
  t1.stop_id::text AS source,
  t2.stop_id::text AS target,
  (t2.arrival_seconds - t1.arrival_seconds) AS travel_time
FROM ranked_stops t1
JOIN ranked_stops t2 ON t1.trip_id = t2.trip_id AND t1.stop_sequence = t2.stop_sequence - 1
WHERE (t2.arrival_seconds - t1.arrival_seconds) > 0`
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query travel edges: %w", err)
	}
	defer rows.Close()

	var edges []transit.Edge
	for rows.Next() {
		var e transit.Edge
		if err := rows.Scan(&e.From, &e.To, &e.Seconds); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

package report

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// SimulationResult is the per-run record consumed by the downstream
// comparison and visualization collaborators. Field names and types are a
// stable contract; do not rename.
type SimulationResult struct {
	AverageWaitMinutes float64  `json:"average_wait_minutes"`
	TotalCost          float64  `json:"total_cost"`
	TotalKmDriven      float64  `json:"total_km_driven"`
	PassengersServed   int64    `json:"passengers_served"`
	PassengersFailed   int64    `json:"passengers_failed"`
	CostPerPassenger   *float64 `json:"cost_per_passenger"` // null when no passenger was served
	SampleSize         int64    `json:"sample_size"`
	Timestamp          string   `json:"timestamp"`
	EngineType         string   `json:"engine_type"`
}

// Stamp fills the timestamp with the current wall-clock instant.
func (r *SimulationResult) Stamp(now time.Time) {
	r.Timestamp = now.Format(time.RFC3339)
}

// ResultFileName returns the fixed per-engine result file name.
func ResultFileName(engineType string) string {
	return engineType + "_simulation_results.json"
}

// Write persists the result as one JSON record at the fixed per-engine path
// inside dir, overwriting any prior record for the same engine. The file is
// flushed and closed on all paths; a write failure is returned to the
// caller after the in-memory result has already been printed, so no
// computation is silently lost.
func Write(dir string, r SimulationResult) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create results dir: %w", err)
	}
	path := filepath.Join(dir, ResultFileName(r.EngineType))

	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	b = append(b, '\n')

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create result file: %w", err)
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		return "", fmt.Errorf("write result file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close result file: %w", err)
	}
	return path, nil
}

// Print mirrors the persisted record to the console as the final summary.
func Print(r SimulationResult) {
	log.Printf("=== %s simulation summary ===", r.EngineType)
	log.Printf("average wait (minutes): %.2f", r.AverageWaitMinutes)
	log.Printf("total cost: %.2f", r.TotalCost)
	log.Printf("total km driven: %.2f", r.TotalKmDriven)
	log.Printf("passengers served: %d", r.PassengersServed)
	log.Printf("passengers failed: %d", r.PassengersFailed)
	if r.CostPerPassenger != nil {
		log.Printf("cost per passenger: %.2f", *r.CostPerPassenger)
	} else {
		log.Printf("cost per passenger: undefined (no passengers served)")
	}
	log.Printf("sample size: %d", r.SampleSize)
}

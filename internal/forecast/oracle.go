package forecast

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Oracle answers "how many passenger arrivals does cluster c expect in the
// interval starting at startSec". The trained forecasting models live
// outside this repo; the engine only sees this capability, so tests can
// substitute synthetic oracles.
type Oracle interface {
	// Predict returns the expected arrivals for the cluster over the
	// interval [startSec, startSec+durSec). ok is false when the oracle has
	// no prediction for that cluster/interval, in which case the dispatcher
	// falls back to the live queue signal alone.
	Predict(cluster int, startSec, durSec int64) (expected float64, ok bool)
}

// Table is an Oracle backed by per-cluster hourly arrival rates exported by
// the forecasting collaborator.
type Table struct {
	// rates[cluster][hour-of-day] = predicted arrivals per hour
	rates map[int][24]float64
	have  map[int][24]bool
}

// Predict scales the hour-of-day bucket rate to the interval length.
// Instants past 24h wrap to the matching hour of day, as the trained models
// only distinguish time of day.
func (t *Table) Predict(cluster int, startSec, durSec int64) (float64, bool) {
	rates, ok := t.rates[cluster]
	if !ok {
		return 0, false
	}
	hour := int(startSec/3600) % 24
	if hour < 0 {
		return 0, false
	}
	if !t.have[cluster][hour] {
		return 0, false
	}
	return rates[hour] * float64(durSec) / 3600, true
}

// Clusters returns the cluster ids the table covers, for input validation.
func (t *Table) Clusters() map[int]bool {
	out := make(map[int]bool, len(t.rates))
	for c := range t.rates {
		out[c] = true
	}
	return out
}

// LoadTable reads a forecast CSV with columns cluster, hour,
// predicted_arrivals (one row per cluster per hour bucket).
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open forecast table: %w", err)
	}
	defer f.Close()

	t, err := readTable(f)
	if err != nil {
		return nil, fmt.Errorf("read forecast table %s: %w", path, err)
	}
	return t, nil
}

func readTable(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	clusterIdx, hourIdx, rateIdx := -1, -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "cluster", "cluster_id":
			clusterIdx = i
		case "hour":
			hourIdx = i
		case "predicted_arrivals", "rate", "yhat":
			rateIdx = i
		}
	}
	if clusterIdx < 0 || hourIdx < 0 || rateIdx < 0 {
		return nil, fmt.Errorf("header %v missing cluster/hour/predicted_arrivals", header)
	}

	t := &Table{
		rates: make(map[int][24]float64),
		have:  make(map[int][24]bool),
	}
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		cluster, err := strconv.Atoi(strings.TrimSpace(rec[clusterIdx]))
		if err != nil {
			return nil, fmt.Errorf("line %d: bad cluster %q", line, rec[clusterIdx])
		}
		hour, err := strconv.Atoi(strings.TrimSpace(rec[hourIdx]))
		if err != nil || hour < 0 || hour > 23 {
			return nil, fmt.Errorf("line %d: bad hour %q", line, rec[hourIdx])
		}
		rate, err := strconv.ParseFloat(strings.TrimSpace(rec[rateIdx]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad rate %q", line, rec[rateIdx])
		}
		rates := t.rates[cluster]
		have := t.have[cluster]
		rates[hour] = rate
		have[hour] = true
		t.rates[cluster] = rates
		t.have[cluster] = have
	}
	if len(t.rates) == 0 {
		return nil, fmt.Errorf("no forecast rows")
	}
	return t, nil
}

package demand

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Request is a single passenger trip request from the demand trace.
// Immutable once loaded; consumed exactly once by an engine.
type Request struct {
	ID         int64
	Origin     string
	Dest       string // optional; empty when the trace omits destinations
	ArrivalSec int64
}

// column aliases accepted in the trace header. The demand generator writes
// origin_id/destination_id/request_time; other producers use the
// origin_stop_id/destination_stop_id/arrival_time spellings.
var (
	originCols  = []string{"origin_id", "origin_stop_id"}
	destCols    = []string{"destination_id", "destination_stop_id"}
	arrivalCols = []string{"request_time", "arrival_time"}
)

// LoadTrace reads the demand trace CSV in full, ordered as written.
// sampleSize > 0 keeps only the first N rows (quick test runs).
// An empty trace is an error: the run cannot produce a meaningful result.
func LoadTrace(path string, sampleSize int) ([]Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open demand trace: %w", err)
	}
	defer f.Close()

	reqs, err := readTrace(f, sampleSize)
	if err != nil {
		return nil, fmt.Errorf("read demand trace %s: %w", path, err)
	}
	if len(reqs) == 0 {
		return nil, fmt.Errorf("demand trace %s is empty", path)
	}
	return reqs, nil
}

func readTrace(r io.Reader, sampleSize int) ([]Request, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	originIdx := findColumn(header, originCols)
	if originIdx < 0 {
		return nil, fmt.Errorf("no origin column in header %v", header)
	}
	arrivalIdx := findColumn(header, arrivalCols)
	if arrivalIdx < 0 {
		return nil, fmt.Errorf("no arrival time column in header %v", header)
	}
	destIdx := findColumn(header, destCols) // optional

	var reqs []Request
	var id int64
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", id+1, err)
		}
		req := Request{ID: id, Origin: strings.TrimSpace(rec[originIdx])}
		if destIdx >= 0 && destIdx < len(rec) {
			req.Dest = strings.TrimSpace(rec[destIdx])
		}
		sec, err := ParseDaySeconds(rec[arrivalIdx])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", id+1, err)
		}
		req.ArrivalSec = sec
		reqs = append(reqs, req)
		id++
		if sampleSize > 0 && len(reqs) >= sampleSize {
			break
		}
	}
	return reqs, nil
}

func findColumn(header []string, names []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, n := range names {
			if h == n {
				return i
			}
		}
	}
	return -1
}

// ParseDaySeconds parses an arrival instant as either integer seconds since
// service-day midnight or HH:MM:SS (hours may exceed 24 for overnight trips).
func ParseDaySeconds(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty time value")
	}
	if !strings.Contains(s, ":") {
		sec, err := strconv.ParseInt(s, 10, 64)
		if err != nil || sec < 0 {
			return 0, fmt.Errorf("invalid time value %q", s)
		}
		return sec, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time value %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 {
		return 0, fmt.Errorf("invalid time value %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time value %q", s)
	}
	sec := 0
	if len(parts) == 3 {
		sec, err = strconv.Atoi(parts[2])
		if err != nil || sec < 0 || sec > 59 {
			return 0, fmt.Errorf("invalid time value %q", s)
		}
	}
	return int64(h)*3600 + int64(m)*60 + int64(sec), nil
}

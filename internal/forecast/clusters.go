package forecast

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Assignments maps stops to the demand cluster they belong to. Produced by
// the K-Means clustering collaborator; consumed only by the dynamic engine.
type Assignments struct {
	byStop    map[string]int
	byCluster map[int][]string
	clusters  []int
}

// ClusterOf returns the cluster owning a stop.
func (a *Assignments) ClusterOf(stopID string) (int, bool) {
	c, ok := a.byStop[stopID]
	return c, ok
}

// StopsIn returns the stops of a cluster in sorted order. The slice is
// shared; callers must not mutate it.
func (a *Assignments) StopsIn(cluster int) []string {
	return a.byCluster[cluster]
}

// Clusters returns all cluster ids in ascending order.
func (a *Assignments) Clusters() []int {
	return a.clusters
}

// NewAssignments builds Assignments from a stop->cluster map.
// Stop and cluster orders are sorted so iteration is deterministic.
func NewAssignments(byStop map[string]int) *Assignments {
	a := &Assignments{
		byStop:    byStop,
		byCluster: make(map[int][]string),
	}
	for stop, cluster := range byStop {
		a.byCluster[cluster] = append(a.byCluster[cluster], stop)
	}
	for cluster := range a.byCluster {
		sort.Strings(a.byCluster[cluster])
		a.clusters = append(a.clusters, cluster)
	}
	sort.Ints(a.clusters)
	return a
}

// LoadAssignments reads a cluster assignment CSV with columns stop_id, cluster.
func LoadAssignments(path string) (*Assignments, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cluster assignments: %w", err)
	}
	defer f.Close()

	a, err := readAssignments(f)
	if err != nil {
		return nil, fmt.Errorf("read cluster assignments %s: %w", path, err)
	}
	return a, nil
}

func readAssignments(r io.Reader) (*Assignments, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	stopIdx, clusterIdx := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "stop_id":
			stopIdx = i
		case "cluster", "cluster_id":
			clusterIdx = i
		}
	}
	if stopIdx < 0 || clusterIdx < 0 {
		return nil, fmt.Errorf("header %v missing stop_id/cluster", header)
	}

	byStop := make(map[string]int)
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
		stop := strings.TrimSpace(rec[stopIdx])
		cluster, err := strconv.Atoi(strings.TrimSpace(rec[clusterIdx]))
		if err != nil {
			return nil, fmt.Errorf("line %d: bad cluster %q", line, rec[clusterIdx])
		}
		byStop[stop] = cluster
	}
	if len(byStop) == 0 {
		return nil, fmt.Errorf("no assignment rows")
	}
	return NewAssignments(byStop), nil
}

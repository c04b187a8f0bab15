package cachestore

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/flowkit/orchestrator/internal/catalog"
)

// RunMetrics is the persisted summary of one `run` invocation, written to
// <project>/.pipeline/metrics.json and read back by `metrics -c <config>
// [--format json|markdown]`, the only way that command can report on a
// prior run, since a Prometheus registry created fresh in the `metrics`
// process never observes anything itself.
type RunMetrics struct {
	Pipeline  string                `json:"pipeline"`
	Timestamp time.Time             `json:"timestamp"`
	Nodes     []catalog.NodeMetrics `json:"nodes"`
	Counters  map[string]float64    `json:"counters"`
}

// WriteRunMetrics persists m atomically: write to a temp sibling, then
// rename over the final path, following the same pattern as
// SnapshotStore.Write.
func WriteRunMetrics(path string, m RunMetrics) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run metrics: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temporary run metrics: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temporary run metrics: %w", err)
	}
	return nil
}

// ReadRunMetrics loads the metrics persisted by the most recent `run`. It
// returns a wrapped os.ErrNotExist if `run` has never been invoked against
// this project directory.
func ReadRunMetrics(path string) (RunMetrics, error) {
	var m RunMetrics
	data, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parse run metrics: %w", err)
	}
	return m, nil
}

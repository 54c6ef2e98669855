// Package report collects per-scenario outcomes of a verification run and
// renders a terminal summary.
package report

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Status is the outcome of one scenario.
type Status string

// scenario outcomes. BaselineRecorded is flagged separately from Passed so a
// first run is never mistaken for a verified one.
const (
	StatusPassed           Status = "passed"
	StatusFailed           Status = "failed"
	StatusBaselineRecorded Status = "baseline-recorded"
	StatusSkipped          Status = "skipped"
)

// Record is the outcome of one scenario.
type Record struct {
	Scenario  string        `yaml:"scenario"`
	Status    Status        `yaml:"status"`
	Engine    string        `yaml:"engine,omitempty"`
	Elapsed   time.Duration `yaml:"elapsed"`
	Error     string        `yaml:"error,omitempty"`
	DiffPath  string        `yaml:"diff_path,omitempty"`
	Snapshots int           `yaml:"snapshots,omitempty"` // snapshots compared or recorded
}

// RunLog is a full verification run, written as YAML by the suite and loaded
// back by the report command.
type RunLog struct {
	StartedAt  time.Time `yaml:"started_at"`
	FinishedAt time.Time `yaml:"finished_at"`
	Records    []Record  `yaml:"records"`
}

// Failed reports whether any scenario failed. a run passes only when every
// scenario passed, so the process exit status is the AND of all outcomes.
func (l *RunLog) Failed() bool {
	for _, r := range l.Records {
		if r.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Counts returns totals per status.
func (l *RunLog) Counts() map[Status]int {
	counts := make(map[Status]int)
	for _, r := range l.Records {
		counts[r.Status]++
	}
	return counts
}

// Recorder accumulates records during a run. safe for concurrent use, test
// scenarios report from parallel goroutines.
type Recorder struct {
	mu      sync.Mutex
	started time.Time
	records []Record
}

// NewRecorder starts a run log at the current time.
func NewRecorder() *Recorder {
	return &Recorder{started: time.Now()}
}

// Add appends one scenario outcome.
func (r *Recorder) Add(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

// Log snapshots the accumulated run log.
func (r *Recorder) Log() *RunLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &RunLog{
		StartedAt:  r.started,
		FinishedAt: time.Now(),
		Records:    append([]Record(nil), r.records...),
	}
}

// WriteFile writes the run log as YAML.
func (r *Recorder) WriteFile(path string) error {
	data, err := yaml.Marshal(r.Log())
	if err != nil {
		return fmt.Errorf("marshal run log: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write run log %s: %w", path, err)
	}
	return nil
}

// LoadRunLog reads a run log written by WriteFile.
func LoadRunLog(path string) (*RunLog, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the --report flag
	if err != nil {
		return nil, fmt.Errorf("read run log %s: %w", path, err)
	}
	var log RunLog
	if err := yaml.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("parse run log %s: %w", path, err)
	}
	return &log, nil
}

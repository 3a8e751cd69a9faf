// Package orchestrator drives per-package build pipeline invocations in
// dependency order against a resumable, crash-safe RunState, scheduling
// waves of parallel workers over graph.ComputeWavesWithCycles and
// persisting state after every transition so a crash never loses more
// than the in-flight packages.
package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Status is a package's terminal or in-flight state within a run.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed Status = "failed"
	StatusSkipped Status = "skipped"
	StatusBlocked Status = "blocked"
)

// FailurePolicy controls how the orchestrator reacts to terminal
// failures.
type FailurePolicy struct {
	KeepGoing bool
	MaxFailures int
}

// PackageState is the per-package record inside a RunState.
type PackageState struct {
	Name string `json:"name"`
	Status Status `json:"status"`
	FailureKind string `json:"failure_kind,omitempty"`
	Message string `json:"message,omitempty"`
	LogRef string `json:"log_ref,omitempty"`
	Attempt int `json:"attempt"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
}

// MissingDep records a dependency that could not be satisfied, with the
// set of packages that declared it.
type MissingDep struct {
	Name string `json:"name"`
	RequiredBy []string `json:"required_by"`
}

// RunState is the single JSON document persisted per run. Field names
// are stable; unknown fields on load are ignored and missing fields use
// defaults.
type RunState struct {
	RunID string `json:"run_id"`
	Target string `json:"target"`
	UpstreamSeries string `json:"upstream_series"`
	DownstreamSeries string `json:"downstream_series"`
	BuildTypeDefault string `json:"build_type_default,omitempty"`
	Packages map[string]*PackageState `json:"packages"`
	BuildOrder []string `json:"build_order"`
	MissingDeps map[string]MissingDep `json:"missing_deps,omitempty"`
	Cycles [][]string `json:"cycles,omitempty"`
	Parallel int `json:"parallel"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	FailurePolicy FailurePolicy `json:"failure_policy"`

	mu sync.Mutex
}

// NewRunState creates a fresh RunState for the given build order, with
// every package initialized to pending.
func NewRunState(runID, target, upstreamSeries, downstreamSeries string, buildOrder []string, parallel int, policy FailurePolicy) *RunState {
	rs := &RunState{
		RunID: runID,
		Target: target,
		UpstreamSeries: upstreamSeries,
		DownstreamSeries: downstreamSeries,
		Packages: make(map[string]*PackageState, len(buildOrder)),
		BuildOrder: append([]string(nil), buildOrder...),
		Parallel: parallel,
		StartedAt: timeNow(),
		UpdatedAt: timeNow(),
		FailurePolicy: policy,
	}
	for _, name := range buildOrder {
		rs.Packages[name] = &PackageState{Name: name, Status: StatusPending}
	}
	return rs
}

// timeNow is a seam so tests can avoid depending on wall-clock time; it
// simply wraps time.Now.
var timeNow = time.Now

// runStatePath returns the canonical location of a run's state file.
func runStatePath(dir, runID string) string {
	return filepath.Join(dir, runID+".json")
}

// Save writes the RunState as pretty-printed JSON, atomically: write to a
// temp file in the same directory, then rename into place, so readers
// never observe partial JSON.
func (rs *RunState) Save(dir string) error {
	rs.mu.Lock()
	rs.UpdatedAt = timeNow()
	data, err := json.MarshalIndent(rs, "", " ")
	rs.mu.Unlock()
	if err != nil {
		return fmt.Errorf("orchestrator: marshaling run state: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("orchestrator: creating run directory: %w", err)
	}
	target := runStatePath(dir, rs.RunID)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("orchestrator: writing temp run state: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("orchestrator: renaming run state into place: %w", err)
	}
	return nil
}

// Load reads a previously saved RunState for runID from dir.
func Load(dir, runID string) (*RunState, error) {
	data, err := os.ReadFile(runStatePath(dir, runID))
	if err != nil {
		return nil, fmt.Errorf("orchestrator: reading run state: %w", err)
	}
	var rs RunState
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("orchestrator: parsing run state: %w", err)
	}
	return &rs, nil
}

// transition moves a package to a new status, recording timing fields.
// Status transitions are monotone except that blocked/pending may become
// running; running becomes terminal exactly once.
func (rs *RunState) transition(name string, status Status, kind, message string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	ps, ok := rs.Packages[name]
	if !ok {
		ps = &PackageState{Name: name}
		rs.Packages[name] = ps
	}

	now := timeNow()
	switch status {
	case StatusRunning:
		ps.Attempt++
		ps.StartedAt = &now
	case StatusSuccess, StatusFailed, StatusSkipped, StatusBlocked:
		ps.CompletedAt = &now
		if ps.StartedAt != nil {
			ps.DurationSeconds = now.Sub(*ps.StartedAt).Seconds()
		}
	}
	ps.Status = status
	ps.FailureKind = kind
	ps.Message = message
}

// Get returns a copy of the PackageState for name.
func (rs *RunState) Get(name string) (PackageState, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	ps, ok := rs.Packages[name]
	if !ok {
		return PackageState{}, false
	}
	return *ps, true
}

// MarkCompleted records the run as finished.
func (rs *RunState) MarkCompleted() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	now := timeNow()
	rs.CompletedAt = &now
}

// Resume prepares a loaded RunState for a new orchestrator invocation:
// success and skipped packages stay done; any running package resets to
// pending. It does not persist; callers
// should Save after calling Resume.
func (rs *RunState) Resume() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for _, ps := range rs.Packages {
		if ps.Status == StatusRunning {
			ps.Status = StatusPending
			ps.StartedAt = nil
		}
	}
}

// ConsistentWith reports whether rs's build order still matches the
// given build order.
func (rs *RunState) ConsistentWith(buildOrder []string) bool {
	if len(rs.BuildOrder) != len(buildOrder) {
		return false
	}
	existing := make(map[string]bool, len(rs.BuildOrder))
	for _, n := range rs.BuildOrder {
		existing[n] = true
	}
	for _, n := range buildOrder {
		if !existing[n] {
			return false
		}
	}
	return true
}

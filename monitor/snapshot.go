// Package monitor renders a live view of an in-progress or completed
// batch run by polling its orchestrator.RunState from disk: a rich
// tview TUI by default, or a plain stdout progress line under --no-tui
// (e.g. when stdout isn't a terminal).
//
// A monitor invocation polls the persisted RunState file on a timer
// rather than subscribing to an in-process feed, since `packastack
// monitor` is typically a separate process from the build it watches.
package monitor

import (
	"sort"

	"packastack/orchestrator"
)

// Snapshot is the renderer-agnostic summary of a RunState at one point
// in time: per-status counts, the currently running packages, and up to
// ten failed packages, the first ten by name (for a log tail).
type Snapshot struct {
	RunID string
	Target string
	Series string
	Total int
	Counts map[orchestrator.Status]int
	Running []string
	RecentFailures []orchestrator.PackageState
	Done bool
}

// Summarize derives a Snapshot from rs. Running and RecentFailures are
// sorted by name for determinism across polls with identical state.
func Summarize(rs *orchestrator.RunState) Snapshot {
	snap := Snapshot{
		RunID: rs.RunID,
		Target: rs.Target,
		Series: rs.DownstreamSeries,
		Total: len(rs.BuildOrder),
		Counts: make(map[orchestrator.Status]int),
		Done: rs.CompletedAt != nil,
	}

	for _, name := range rs.BuildOrder {
		ps, ok := rs.Get(name)
		if !ok {
			continue
		}
		snap.Counts[ps.Status]++
		switch ps.Status {
		case orchestrator.StatusRunning:
			snap.Running = append(snap.Running, name)
		case orchestrator.StatusFailed:
			snap.RecentFailures = append(snap.RecentFailures, ps)
		}
	}

	sort.Strings(snap.Running)
	sort.Slice(snap.RecentFailures, func(i, j int) bool {
		return snap.RecentFailures[i].Name < snap.RecentFailures[j].Name
	})
	if len(snap.RecentFailures) > 10 {
		snap.RecentFailures = snap.RecentFailures[:10]
	}

	return snap
}

// Finished reports how many packages have reached a terminal status.
func (s Snapshot) Finished() int {
	return s.Counts[orchestrator.StatusSuccess] +
		s.Counts[orchestrator.StatusFailed] +
		s.Counts[orchestrator.StatusSkipped] +
		s.Counts[orchestrator.StatusBlocked]
}

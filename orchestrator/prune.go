package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"packastack/stats"
)

// PruneOptions controls which completed run directories Prune removes.
// This supplements the distilled spec per original_source/clean.py,
// which offers an equivalent "clean up old completed runs" operation.
type PruneOptions struct {
	// KeepLast retains the KeepLast most recently started runs
	// regardless of age.
	KeepLast int
	// MaxAgeDays removes completed runs older than this many days; 0
	// disables age-based pruning.
	MaxAgeDays int
}

// PruneResult reports what Prune removed.
type PruneResult struct {
	Removed []string
	Kept    []string
}

// Prune inspects every RunState JSON document in dir and removes the run
// directories of completed runs (CompletedAt set) that fall outside
// opts.KeepLast and opts.MaxAgeDays. Runs that never completed (crashed
// mid-build) are never pruned automatically.
func Prune(dir string, opts PruneOptions) (PruneResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return PruneResult{}, fmt.Errorf("orchestrator: reading run directory: %w", err)
	}

	type candidate struct {
		runID string
		rs    *RunState
	}
	var candidates []candidate
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		runID := strings.TrimSuffix(e.Name(), ".json")
		rs, err := Load(dir, runID)
		if err != nil {
			continue
		}
		if rs.CompletedAt == nil {
			continue
		}
		candidates = append(candidates, candidate{runID: runID, rs: rs})
	}

	// Most recent first.
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j-1].rs.StartedAt.Before(candidates[j].rs.StartedAt); j-- {
			candidates[j-1], candidates[j] = candidates[j], candidates[j-1]
		}
	}

	statsDB, err := stats.OpenBuildDB(filepath.Join(dir, "stats.db"))
	if err == nil {
		defer statsDB.Close()
	}

	var result PruneResult
	now := timeNow()
	for i, c := range candidates {
		if i < opts.KeepLast {
			result.Kept = append(result.Kept, c.runID)
			continue
		}
		if opts.MaxAgeDays > 0 {
			age := now.Sub(*c.rs.CompletedAt).Hours() / 24
			if age < float64(opts.MaxAgeDays) {
				result.Kept = append(result.Kept, c.runID)
				continue
			}
		}
		if err := os.Remove(runStatePath(dir, c.runID)); err != nil {
			return result, fmt.Errorf("orchestrator: removing run state %s: %w", c.runID, err)
		}
		reportsDir := filepath.Join(dir, "reports", c.runID)
		os.RemoveAll(reportsDir)
		if statsDB != nil {
			statsDB.DeleteRunSnapshot(c.runID)
		}
		result.Removed = append(result.Removed, c.runID)
	}

	return result, nil
}

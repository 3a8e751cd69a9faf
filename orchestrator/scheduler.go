package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"packastack/graph"
	"packastack/pipeline"
	"packastack/stats"
)

// Builder runs the build pipeline for a single package. *pipeline.Pipeline
// satisfies this through a thin adapter constructed by the caller (the
// service package wires the manifest, decisions, and indices a concrete
// call needs).
type Builder interface {
	Build(ctx context.Context, pkg string) (pipeline.Result, error)
}

// Run drives every package in g's build order through Builder, persisting
// rs after each transition.
//
// Sequential mode (rs.Parallel <= 1): iterate build order; before each
// package, verify its dependencies in the manifest succeeded, marking it
// blocked otherwise.
//
// Wave-parallel mode (rs.Parallel > 1): compute waves via
// ComputeWavesWithCycles and dispatch up to rs.Parallel workers per wave,
// narrowed further by throttler (if given) based on host load and swap
// pressure; a wave completes only when all its workers finish.
//
// throttler is variadic so existing call sites that don't care about
// dynamic throttling can omit it; at most the first value is used.
func Run(ctx context.Context, rs *RunState, g *graph.Graph, builder Builder, stateDir string, throttler ...*stats.WorkerThrottler) error {
	var wt *stats.WorkerThrottler
	if len(throttler) > 0 {
		wt = throttler[0]
	}
	if rs.Parallel <= 1 {
		return runSequential(ctx, rs, g, builder, stateDir)
	}
	return runWaveParallel(ctx, rs, g, builder, stateDir, wt)
}

func runSequential(ctx context.Context, rs *RunState, g *graph.Graph, builder Builder, stateDir string) error {
	failures := 0
	stopDispatching := false

	for _, name := range rs.BuildOrder {
		if current, ok := rs.Get(name); ok && (current.Status == StatusSuccess || current.Status == StatusSkipped) {
			continue
		}
		if stopDispatching {
			rs.transition(name, StatusBlocked, "", "dispatch halted by failure policy")
			rs.Save(stateDir)
			continue
		}

		if blocked, reason := dependencyBlocked(rs, g, name); blocked {
			rs.transition(name, StatusBlocked, "", reason)
			rs.Save(stateDir)
			continue
		}

		rs.transition(name, StatusRunning, "", "")
		rs.Save(stateDir)

		result, err := builder.Build(ctx, name)
		if err != nil {
			kind, msg := classifyError(err)
			rs.transition(name, StatusFailed, kind, msg)
			failures++
		} else {
			_ = result
			rs.transition(name, StatusSuccess, "", "")
		}
		rs.Save(stateDir)

		if shouldStopDispatching(rs.FailurePolicy, failures) {
			stopDispatching = true
		}
	}

	rs.MarkCompleted()
	return rs.Save(stateDir)
}

func runWaveParallel(ctx context.Context, rs *RunState, g *graph.Graph, builder Builder, stateDir string, wt *stats.WorkerThrottler) error {
	waves := g.ComputeWavesWithCycles()
	byWave := make(map[int][]string)
	for _, name := range rs.BuildOrder {
		w := waves[name]
		byWave[w] = append(byWave[w], name)
	}
	var waveNumbers []int
	for w := range byWave {
		waveNumbers = append(waveNumbers, w)
	}
	sort.Ints(waveNumbers)
	for _, names := range byWave {
		sort.Strings(names)
	}

	var failures int64
	var stopDispatching int32
	var activeWorkers int32

	collector := stats.NewStatsCollector(ctx, rs.Parallel)
	collector.UpdateQueuedCount(len(rs.BuildOrder))
	defer collector.Close()
	var dbWriter *stats.BuildDBWriter
	if db, err := stats.OpenBuildDB(filepath.Join(stateDir, "stats.db")); err == nil {
		defer db.Close()
		dbWriter = stats.NewBuildDBWriter(db, rs.RunID)
		collector.AddConsumer(dbWriter)
	}

	for _, w := range waveNumbers {
		names := byWave[w]

		var pending []string
		for _, name := range names {
			if current, ok := rs.Get(name); ok && (current.Status == StatusSuccess || current.Status == StatusSkipped) {
				continue
			}
			pending = append(pending, name)
		}
		if len(pending) == 0 {
			continue
		}

		waveMax := waveCap(rs.Parallel, wt)
		collector.UpdateDynMaxWorkers(waveMax)
		sem := make(chan struct{}, waveMax)
		var wg sync.WaitGroup

		for _, name := range pending {
			name := name

			if atomic.LoadInt32(&stopDispatching) != 0 {
				rs.transition(name, StatusBlocked, "", "dispatch halted by failure policy")
				rs.Save(stateDir)
				continue
			}
			if blocked, reason := dependencyBlocked(rs, g, name); blocked {
				rs.transition(name, StatusBlocked, "", reason)
				rs.Save(stateDir)
				continue
			}

			sem <- struct{}{}
			wg.Add(1)
			rs.transition(name, StatusRunning, "", "")
			rs.Save(stateDir)
			collector.UpdateWorkerCount(int(atomic.AddInt32(&activeWorkers, 1)))

			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				defer func() { collector.UpdateWorkerCount(int(atomic.AddInt32(&activeWorkers, -1))) }()

				result, err := builder.Build(ctx, name)
				if err != nil {
					kind, msg := classifyError(err)
					rs.transition(name, StatusFailed, kind, msg)
					collector.RecordCompletion(stats.BuildFailed)
					n := atomic.AddInt64(&failures, 1)
					if shouldStopDispatching(rs.FailurePolicy, int(n)) {
						atomic.StoreInt32(&stopDispatching, 1)
					}
				} else {
					_ = result
					rs.transition(name, StatusSuccess, "", "")
					collector.RecordCompletion(stats.BuildSuccess)
				}
				rs.Save(stateDir)
			}()
		}

		// A wave completes only when every worker in it terminates
		//; cross-wave ordering is strict.
		wg.Wait()
	}

	// Record a final snapshot so a run shorter than one sampling tick
	// still leaves one behind.
	if dbWriter != nil {
		dbWriter.OnStatsUpdate(collector.GetSnapshot())
	}

	rs.MarkCompleted()
	return rs.Save(stateDir)
}

// waveCap returns the worker count to dispatch for one wave: rs.Parallel
// unless wt narrows it based on the host's current load and swap usage.
func waveCap(parallel int, wt *stats.WorkerThrottler) int {
	if wt == nil {
		return parallel
	}
	load, swapPct := stats.SampleSystemMetrics()
	dynMax := wt.CalculateDynMax(load, swapPct)
	if dynMax < 1 {
		dynMax = 1
	}
	if dynMax > parallel {
		dynMax = parallel
	}
	return dynMax
}

func dependencyBlocked(rs *RunState, g *graph.Graph, name string) (bool, string) {
	for _, dep := range g.Dependencies(name) {
		depState, ok := rs.Get(dep)
		if !ok {
			continue
		}
		if depState.Status == StatusFailed || depState.Status == StatusBlocked {
			return true, fmt.Sprintf("dependency %s is %s", dep, depState.Status)
		}
	}
	return false, ""
}

// shouldStopDispatching implements the batch orchestrator's failure policy:
//
//	keep_going=false: stop dispatching after the first terminal failure.
//	keep_going=true, max_failures=0: never stop.
//	keep_going=true, max_failures=N>0: stop once failures >= N.
func shouldStopDispatching(policy FailurePolicy, failures int) bool {
	if failures == 0 {
		return false
	}
	if !policy.KeepGoing {
		return true
	}
	if policy.MaxFailures > 0 && failures >= policy.MaxFailures {
		return true
	}
	return false
}

func classifyError(err error) (kind, message string) {
	var be *pipeline.BuildError
	if errors.As(err, &be) {
		return string(be.Kind), be.Error()
	}
	return string(pipeline.FailureUnknown), err.Error()
}

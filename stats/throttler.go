package stats

import "runtime"

// Default load/swap throttling thresholds, tuned for packastack's
// binary-build workload (I/O- and memory-heavy chroot builds running
// many packages per wave). A batch run's config file can override any
// of the four via throttle_* keys in its default, Global Configuration
// or profile section; see
// config.Config's ThrottleMinLoadFactor/ThrottleMaxLoadFactor/
// ThrottleMinSwapPercent/ThrottleMaxSwapPercent.
const (
	DefaultMinLoadFactor = 1.5
	DefaultMaxLoadFactor = 5.0
	DefaultMinSwapPercent = 10
	DefaultMaxSwapPercent = 40
)

// WorkerThrottler calculates dynamic worker limits based on system health.
// It implements a three-cap throttling algorithm:
//  1. Load-based cap: Linear interpolation between minLoadFactor×ncpus and maxLoadFactor×ncpus
//  2. Swap-based cap: Linear interpolation between minSwapPercent and maxSwapPercent swap usage
//  3. Final: Minimum of both caps (most restrictive wins)
//
// The throttling reduces worker count to prevent system overload during
// I/O-heavy builds that stress disk, memory, and swap.
type WorkerThrottler struct {
	maxWorkers int
	ncpus      int
	disabled   bool // When true, always return maxWorkers

	minLoadFactor float64
	maxLoadFactor float64
	minSwapPercent int
	maxSwapPercent int
}

// NewWorkerThrottler creates a throttler with the configured max workers
// and the default packastack thresholds. The ncpus value is determined
// automatically via runtime.NumCPU(). If disabled is true, throttling is
// bypassed and maxWorkers is always returned.
func NewWorkerThrottler(maxWorkers int, disabled bool) *WorkerThrottler {
	return NewWorkerThrottlerWithThresholds(maxWorkers, disabled, 0, 0, 0, 0)
}

// NewWorkerThrottlerWithThresholds is NewWorkerThrottler with the four
// throttling thresholds overridden, typically from a loaded
// config.Config's Throttle* fields. A threshold of 0 (or negative) falls
// back to its packastack default.
func NewWorkerThrottlerWithThresholds(maxWorkers int, disabled bool, minLoadFactor, maxLoadFactor float64, minSwapPercent, maxSwapPercent int) *WorkerThrottler {
	if minLoadFactor <= 0 {
		minLoadFactor = DefaultMinLoadFactor
	}
	if maxLoadFactor <= 0 {
		maxLoadFactor = DefaultMaxLoadFactor
	}
	if minSwapPercent <= 0 {
		minSwapPercent = DefaultMinSwapPercent
	}
	if maxSwapPercent <= 0 {
		maxSwapPercent = DefaultMaxSwapPercent
	}
	return &WorkerThrottler{
		maxWorkers: maxWorkers,
		ncpus:      runtime.NumCPU(),
		disabled:   disabled,
		minLoadFactor: minLoadFactor,
		maxLoadFactor: maxLoadFactor,
		minSwapPercent: minSwapPercent,
		maxSwapPercent: maxSwapPercent,
	}
}

// CalculateDynMax computes the dynamic worker limit based on current system metrics.
// Returns a value between 1 and maxWorkers.
//
// Throttling rules:
//   - Load < 1.5×ncpus: No throttling (return maxWorkers)
//   - Load 1.5-5.0×ncpus: Linear reduction from 100% to 25% of maxWorkers
//   - Load > 5.0×ncpus: Hard cap at 25% of maxWorkers
//   - Swap < 10%: No swap throttling
//   - Swap 10-40%: Linear reduction from 100% to 25% of maxWorkers
//   - Swap > 40%: Hard cap at 25% of maxWorkers
//
// Returns the minimum of load-cap and swap-cap (most restrictive).
//
// Auto-disable: If both load and swap are zero (metrics not available),
// returns maxWorkers to avoid false throttling on a host whose probe reports
// nothing (the BSD probe always returns 0/0).
func (wt *WorkerThrottler) CalculateDynMax(load float64, swapPct int) int {
	// Explicit disable via config flag
	if wt.disabled {
		return wt.maxWorkers
	}

	// Auto-disable when metrics are unavailable (both zero)
	// This prevents false throttling where the platform probe reports nothing
	if load == 0.0 && swapPct == 0 {
		return wt.maxWorkers
	}

	// Calculate load-based cap
	loadCap := wt.calculateLoadCap(load)

	// Calculate swap-based cap
	swapCap := wt.calculateSwapCap(swapPct)

	// Return minimum (most restrictive)
	dynMax := loadCap
	if swapCap < dynMax {
		dynMax = swapCap
	}

	// Ensure at least 1 worker
	if dynMax < 1 {
		dynMax = 1
	}

	return dynMax
}

// calculateLoadCap computes the worker limit based on adjusted load average.
// Uses linear interpolation between thresholds:
//
//	minLoad = wt.minLoadFactor × ncpus
//	maxLoad = wt.maxLoadFactor × ncpus
//
// If load < minLoad: Return maxWorkers (no throttling)
// If load >= maxLoad: Return 25% of maxWorkers (hard cap)
// If minLoad <= load < maxLoad: Linear interpolation
func (wt *WorkerThrottler) calculateLoadCap(load float64) int {
	minLoad := wt.minLoadFactor * float64(wt.ncpus)
	maxLoad := wt.maxLoadFactor * float64(wt.ncpus)

	if load < minLoad {
		return wt.maxWorkers
	}

	if load >= maxLoad {
		return wt.maxWorkers / 4 // 75% reduction
	}

	// Linear interpolation: reduce from 100% to 25%
	ratio := (load - minLoad) / (maxLoad - minLoad)
	reduction := int(float64(wt.maxWorkers) * 0.75 * ratio)
	return wt.maxWorkers - reduction
}

// calculateSwapCap computes the worker limit based on swap usage percentage.
// Uses linear interpolation between thresholds:
//
//	minSwap = wt.minSwapPercent
//	maxSwap = wt.maxSwapPercent
//
// If swap < minSwap: Return maxWorkers (no throttling)
// If swap >= maxSwap: Return 25% of maxWorkers (hard cap)
// If minSwap <= swap < maxSwap: Linear interpolation
func (wt *WorkerThrottler) calculateSwapCap(swapPct int) int {
	minSwap := wt.minSwapPercent
	maxSwap := wt.maxSwapPercent

	if swapPct < minSwap {
		return wt.maxWorkers
	}

	if swapPct >= maxSwap {
		return wt.maxWorkers / 4 // 75% reduction
	}

	// Linear interpolation: reduce from 100% to 25%
	ratio := float64(swapPct-minSwap) / float64(maxSwap-minSwap)
	reduction := int(float64(wt.maxWorkers) * 0.75 * ratio)
	return wt.maxWorkers - reduction
}

//go:build dragonfly || freebsd

package stats

// packastack builds Ubuntu source packages in Linux chroots; the pool
// host itself is occasionally something else (a DragonFly or FreeBSD
// box driving a set of Linux schroot/LXD targets over network storage).
// For that host this file is the load/swap probe, and it deliberately
// stays a no-op rather than guess at sysctl/cgo bindings we have no way
// to test in CI: SampleSystemMetrics and WorkerThrottler.CalculateDynMax
// already treat a 0/0 reading as "metrics unavailable" and skip
// throttling rather than misreading it as "host idle", so a wrong
// non-zero stub here would be worse than an honest zero.

// getAdjustedLoad returns the 1-minute load average adjusted for I/O
// wait. On this platform there is no sysctl/cgo binding wired up yet,
// so it always reports unavailable.
//
// TODO: wire vm.loadavg + vm.vmtotal.t_pw via sysctl once a BSD pool
// host is available to validate the reading against.
func getAdjustedLoad() (float64, error) {
	return 0.0, nil
}

// getSwapUsage returns swap usage as a percentage (0-100). On this
// platform there is no vm.swap_info/kvm_getswapinfo binding wired up
// yet, so it always reports unavailable.
//
// TODO: sum ksw_used/ksw_total across vm.swap_info devices.
func getSwapUsage() (int, error) {
	return 0, nil
}

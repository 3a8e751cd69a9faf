package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"packastack/orchestrator"
	"packastack/reports"
	"packastack/satisfy"
	"packastack/service"
	"packastack/target"
	"packastack/version"

	"github.com/spf13/cobra"
)

var (
	buildFlags sharedFlags
	buildParallel int
	buildKeepGoing bool
	buildMaxFailures int
	buildOffline bool
	buildSkipBinary bool
	buildWorkerTimeout time.Duration
	buildRunDir string
	buildUpstreamURLFormat string
)

var buildCmd = &cobra.Command{
	Use: "build <target-expr>...",
	Short: "Plan and build a closure of packages against a target series",
	Args: cobra.MinimumNArgs(1),
	RunE: runBuildCmd,
}

var resumeCmd = &cobra.Command{
	Use: "resume <run-id> <target-expr>...",
	Short: "Resume a previously interrupted build run",
	Args: cobra.MinimumNArgs(2),
	RunE: runResumeCmd,
}

func addBuildFlags(cmd *cobra.Command) {
	addSharedFlags(cmd, &buildFlags)
	cmd.Flags().IntVar(&buildParallel, "parallel", 1, "number of workers per wave (1 = sequential)")
	cmd.Flags().BoolVar(&buildKeepGoing, "keep-going", false, "continue past package failures instead of stopping at the first one")
	cmd.Flags().IntVar(&buildMaxFailures, "max-failures", 0, "stop after this many failures when --keep-going is set (0 = unlimited)")
	cmd.Flags().BoolVar(&buildOffline, "offline", false, "skip VCS fetch/pull and use repositories as checked out")
	cmd.Flags().BoolVar(&buildSkipBinary, "skip-binary-build", false, "stop after producing the source artifact")
	cmd.Flags().DurationVar(&buildWorkerTimeout, "worker-timeout", time.Hour, "per-package binary build timeout")
	cmd.Flags().StringVar(&buildRunDir, "run-dir", "", "directory to persist run state, logs, and reports (required)")
	cmd.Flags().StringVar(&buildUpstreamURLFormat, "upstream-url-format", "", "printf-style URL format (project, version) for upstream tarball acquisition")
	cmd.MarkFlagRequired("series")
	cmd.MarkFlagRequired("run-dir")
}

func init() {
	addBuildFlags(buildCmd)
	addBuildFlags(resumeCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(resumeCmd)
}

func buildOptionsFromFlags(target string) service.BuildOptions {
	return service.BuildOptions{
		Target: target,
		UpstreamSeries: buildFlags.upstreamSeries,
		DownstreamSeries: buildFlags.downstreamSeries,
		Parallel: buildParallel,
		FailurePolicy: orchestrator.FailurePolicy{KeepGoing: buildKeepGoing, MaxFailures: buildMaxFailures},
		Offline: buildOffline,
		DepPolicy: satisfy.Policy(buildFlags.depPolicy),
		SkipBinaryBuild: buildSkipBinary,
		WorkerTimeout: buildWorkerTimeout,
		RunDir: buildRunDir,
		Comparator: version.Comparator(service.DpkgComparator),
		UpstreamURLFormat: buildUpstreamURLFormat,
	}
}

// installSignalCancel arranges for ctx to be canceled on SIGINT/SIGTERM/
// SIGHUP, so an in-flight run persists its current RunState instead of
// dying mid-package.
func installSignalCancel() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		sig := <-sigChan
		fmt.Fprintf(os.Stderr, "\nreceived signal %v, finishing in-flight packages and saving state...\n", sig)
		cancel()
	}()
	return ctx, cancel
}

func runBuildCmd(cmd *cobra.Command, args []string) error {
	if target.DetectShellExpansion(args) {
		fmt.Fprintln(os.Stderr, "warning: multiple target expressions share a prefix and use no ^/~/: syntax; check your shell didn't expand a glob")
	}

	ctx, cancel := installSignalCancel()
	defer cancel()

	svc, err := newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	universe, err := svc.LoadUniverse()
	if err != nil {
		return err
	}

	opts, err := buildPlanOptions(ctx, &buildFlags)
	if err != nil {
		return err
	}

	plan, err := svc.Plan(universe, args, opts)
	if err != nil {
		return err
	}

	buildOpts := buildOptionsFromFlags(args[0])
	buildOpts.DevIndex = opts.DevIndex
	buildOpts.PrevLTSIndex = opts.PrevLTSIndex
	buildOpts.CloudArchive = opts.CloudArchive

	rs, runErr := svc.Build(ctx, plan, buildOpts)
	return finishBuild(rs, runErr, buildRunDir)
}

func runResumeCmd(cmd *cobra.Command, args []string) error {
	ctx, cancel := installSignalCancel()
	defer cancel()

	runID := args[0]
	targets := args[1:]

	svc, err := newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	universe, err := svc.LoadUniverse()
	if err != nil {
		return err
	}

	opts, err := buildPlanOptions(ctx, &buildFlags)
	if err != nil {
		return err
	}

	plan, err := svc.Plan(universe, targets, opts)
	if err != nil {
		return err
	}

	buildOpts := buildOptionsFromFlags(targets[0])
	buildOpts.DevIndex = opts.DevIndex
	buildOpts.PrevLTSIndex = opts.PrevLTSIndex
	buildOpts.CloudArchive = opts.CloudArchive

	rs, runErr := svc.Resume(ctx, runID, plan, buildOpts)
	return finishBuild(rs, runErr, buildRunDir)
}

func finishBuild(rs *orchestrator.RunState, runErr error, runDir string) error {
	if rs != nil {
		summary := reports.BuildSummary(rs, 10)
		text := summary.RenderText()
		if w, werr := reports.NewWriter(runDir); werr == nil {
			if err := w.Write(reports.BuildSummaryReportName(), summary, text); err != nil {
				fmt.Fprintln(os.Stderr, "packastack: writing build summary report:", err)
			}
		}
		fmt.Print(text)
	}
	if runErr != nil {
		return fmt.Errorf("build run %s: %w", runIDOf(rs), runErr)
	}
	return nil
}

func runIDOf(rs *orchestrator.RunState) string {
	if rs == nil {
		return "<unknown>"
	}
	return rs.RunID
}

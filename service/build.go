package service

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"packastack/archive"
	"packastack/orchestrator"
	"packastack/pipeline"
	"packastack/satisfy"
	"packastack/stats"
	"packastack/version"
)

const defaultUpstreamURLFormat = "https://releases.example.invalid/%s/%s.tar.gz"

// BuildOptions configures one batch build invocation.
type BuildOptions struct {
	Target string
	UpstreamSeries string
	DownstreamSeries string
	Parallel int
	FailurePolicy orchestrator.FailurePolicy
	Offline bool
	DepPolicy satisfy.Policy
	SkipBinaryBuild bool
	WorkerTimeout time.Duration
	RunDir string
	DevIndex *archive.Index
	PrevLTSIndex *archive.Index
	CloudArchive *archive.Index
	Comparator version.Comparator
	UpstreamURLFormat string
}

// Build constructs fresh collaborators, a fresh RunState, and drives the
// batch build to completion (or first-stop, per FailurePolicy) through
// orchestrator.Run.
func (s *Service) Build(ctx context.Context, plan *Plan, opts BuildOptions) (*orchestrator.RunState, error) {
	runID := uuid.NewString()
	rs := orchestrator.NewRunState(runID, opts.Target, opts.UpstreamSeries, opts.DownstreamSeries, plan.Manifest.BuildOrder, opts.Parallel, opts.FailurePolicy)
	return rs, s.runPipeline(ctx, rs, plan, opts)
}

// Resume loads a previously persisted RunState, refuses to continue if
// its build order no longer matches the current plan, resets any running packages to pending, and
// drives the remainder to completion.
func (s *Service) Resume(ctx context.Context, runID string, plan *Plan, opts BuildOptions) (*orchestrator.RunState, error) {
	rs, err := orchestrator.Load(opts.RunDir, runID)
	if err != nil {
		return nil, fmt.Errorf("service: loading run state %s: %w", runID, err)
	}
	if !rs.ConsistentWith(plan.Manifest.BuildOrder) {
		return nil, fmt.Errorf("service: run %s's build order no longer matches the current plan; resume refused", runID)
	}
	rs.Resume()
	if err := rs.Save(opts.RunDir); err != nil {
		return nil, fmt.Errorf("service: persisting resumed run state: %w", err)
	}
	return rs, s.runPipeline(ctx, rs, plan, opts)
}

func (s *Service) runPipeline(ctx context.Context, rs *orchestrator.RunState, plan *Plan, opts BuildOptions) error {
	env, err := s.newEnvironment()
	if err != nil {
		return fmt.Errorf("service: selecting execution environment: %w", err)
	}
	if err := env.Setup(0, s.cfg, s.logger); err != nil {
		return fmt.Errorf("service: setting up execution environment: %w", err)
	}
	defer env.Cleanup()

	urlFormat := opts.UpstreamURLFormat
	if urlFormat == "" {
		urlFormat = defaultUpstreamURLFormat
	}

	collab := pipeline.Collaborators{
		VCS: &gitVCS{reposDir: s.cfg.PackagingRepos, offline: opts.Offline},
		Upstream: &cachedUpstream{tarballs: s.tarballs, maxAge: time.Duration(s.cfg.TarballCacheMaxAgeDays) * 24 * time.Hour, urlFormat: urlFormat},
		Patcher: execPatcher{},
		Changelog: &changelogAdapter{repoDir: s.cfg.PackagingRepos},
		SourceBuilder: &execSourceBuilder{outputDir: filepath.Join(opts.RunDir, "source-build")},
		BinaryBuilder: &envBinaryBuilder{env: env, cfg: s.cfg, outputSubdir: "artifacts"},
		Publisher: &poolPublisher{poolDir: s.cfg.PoolMountPath},
	}

	p := pipeline.New(collab, s.logger)
	inputs := orchestrator.PipelineInputs{
		Manifest: plan.Manifest,
		Decisions: plan.Decisions,
		Constraints: plan.Constraints,
		DevIndex: opts.DevIndex,
		PrevLTSIndex: opts.PrevLTSIndex,
		CloudArchive: opts.CloudArchive,
		Comparator: opts.Comparator,
		Options: pipeline.Options{
			Series: opts.DownstreamSeries,
			BranchPriority: pipeline.DefaultBranchPriority(opts.DownstreamSeries, opts.UpstreamSeries),
			Offline: opts.Offline,
			DepPolicy: opts.DepPolicy,
			SkipBinaryBuild: opts.SkipBinaryBuild,
			PoolMountPath: s.cfg.PoolMountPath,
			WorkerTimeout: opts.WorkerTimeout,
		},
		LogDir: filepath.Join(opts.RunDir, "logs"),
	}
	builder := orchestrator.NewPipelineBuilder(p, inputs)

	throttler := stats.NewWorkerThrottlerWithThresholds(opts.Parallel, s.cfg.DisableDynamicThrottle,
		s.cfg.ThrottleMinLoadFactor, s.cfg.ThrottleMaxLoadFactor,
		s.cfg.ThrottleMinSwapPercent, s.cfg.ThrottleMaxSwapPercent)
	return orchestrator.Run(ctx, rs, plan.Graph, builder, opts.RunDir, throttler)
}

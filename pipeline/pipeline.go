// Package pipeline runs the single-package build pipeline: fetch,
// prepare-upstream, validate-deps, patch, sync-deps, changelog,
// source-build, binary-build, publish. Each phase talks to the rest of
// the world only through the Collaborators seam (VCS, upstream
// acquisition, patching, and the in-chroot builder), so the sequencing
// logic stays testable without a real chroot.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"packastack/archive"
	"packastack/buildtype"
	"packastack/depsync"
	"packastack/pkglog"
	"packastack/satisfy"
	"packastack/version"
)

// UpstreamAcquirer obtains the upstream tarball for a package at the
// chosen build type, step 2. Implementations may fetch
// from a release registry, an external acquisition collaborator, or
// synthesize a VCS-archive snapshot.
type UpstreamAcquirer interface {
	Acquire(ctx context.Context, pkg string, decision buildtype.Decision) (tarballPath string, signatureOK bool, err error)
}

// VCSFetcher checks out the packaging repository for pkg, trying
// branches in priority order and falling back to main/master.
type VCSFetcher interface {
	Fetch(ctx context.Context, pkg string, branchPriority []string, offline bool) (repoPath string, err error)
}

// PatchOutcome classifies how patch application went.
type PatchOutcome string

const (
	PatchApplied PatchOutcome = "applied"
	PatchAlreadyApplied PatchOutcome = "already-applied"
	PatchUpstreamed PatchOutcome = "upstreamed"
	PatchOffset PatchOutcome = "offset"
	PatchFuzz PatchOutcome = "fuzz"
	PatchMissingFile PatchOutcome = "missing-file"
	PatchConflict PatchOutcome = "conflict"
)

// PatchApplier delegates patch application to an external subroutine.
type PatchApplier interface {
	Apply(ctx context.Context, repoPath string) (PatchOutcome, error)
	Refresh(ctx context.Context, repoPath string) (PatchOutcome, error)
}

// ChangelogWriter records a new changelog entry.
type ChangelogWriter interface {
	WriteEntry(pkg string, resolved manifestVersion, buildType buildtype.Type, signatureOK bool, note string) error
	// Revision and epoch preservation, reused by the manifest package.
	Revision(pkg string) (revision string, epoch int, ok bool)
}

// manifestVersion avoids an import cycle with the manifest package: the
// pipeline only needs the rendered version string.
type manifestVersion = string

// SourceBuilder constructs the source artifact.
type SourceBuilder interface {
	Build(ctx context.Context, repoPath, resolvedVersion string) (sourceArtifactPath string, err error)
}

// BinaryBuilder invokes the in-chroot builder.
type BinaryBuilder interface {
	Build(ctx context.Context, sourceArtifactPath, series, poolMountPath string, logSink *pkglog.PackageLogger) (artifactPaths []string, err error)
}

// Publisher moves artifacts into the local pool and re-indexes under the
// pool's indexing lock.
type Publisher interface {
	Publish(ctx context.Context, artifactPaths []string) error
}

// Collaborators bundles every external seam the pipeline depends on, so
// a caller constructs one Pipeline per run and reuses it across workers
// (collaborators themselves must be concurrency-safe).
type Collaborators struct {
	VCS VCSFetcher
	Upstream UpstreamAcquirer
	Patcher PatchApplier
	Changelog ChangelogWriter
	SourceBuilder SourceBuilder
	BinaryBuilder BinaryBuilder
	Publisher Publisher
}

// Options configures one pipeline invocation.
type Options struct {
	Series string
	BranchPriority []string // e.g. ["ubuntu/noble", "ubuntu/devel", "main", "master"]
	Offline bool
	DepPolicy satisfy.Policy
	SkipBinaryBuild bool
	PoolMountPath string
	WorkerTimeout time.Duration
	NativeNameMapper depsync.NativeNameMapper
}

// Result is the outcome of one successful Run.
type Result struct {
	Package string
	ResolvedVersion string
	PatchOutcome PatchOutcome
	SignatureOK bool
	SatisfactionSummary satisfy.Summary
	ArtifactPaths []string
	Warnings []string
}

// Pipeline executes the nine build phases for one package.
type Pipeline struct {
	collab Collaborators
	logger pkglog.LibraryLogger
}

// New constructs a Pipeline. logger may be pkglog.NoOpLogger{} in tests.
func New(collab Collaborators, logger pkglog.LibraryLogger) *Pipeline {
	if logger == nil {
		logger = pkglog.NoOpLogger{}
	}
	return &Pipeline{collab: collab, logger: logger}
}

// Run executes the pipeline for pkg, short-circuiting on the first
// failed phase. decision is the already-selected build
// type; resolvedVersion is the manifest's rendered version string;
// constraints are the package's parsed dependency constraints.
// Run takes no upstream declarations: the sync-deps phase only writes
// its phase marker to sink and synchronizes no dependencies.
func (p *Pipeline) Run(
	ctx context.Context,
	pkg string,
	decision buildtype.Decision,
	resolvedVersion string,
	constraints []version.Constraint,
	devIdx, prevLTSIdx, cloudArchiveIdx *archive.Index,
	cmp version.Comparator,
	opts Options,
	sink *pkglog.PackageLogger,
) (Result, error) {
	result := Result{Package: pkg, ResolvedVersion: resolvedVersion}
	deadline := opts.WorkerTimeout
	if deadline <= 0 {
		deadline = time.Hour
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	// Phase 1: fetch packaging repository.
	sink.WritePhase("fetch")
	repoPath, err := p.collab.VCS.Fetch(ctx, pkg, opts.BranchPriority, opts.Offline)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return result, NewBuildError(pkg, "fetch", FailureTimeout, "fetch exceeded worker timeout")
		}
		return result, NewBuildError(pkg, "fetch", FailureFetchFailed, err.Error())
	}
	p.logger.Info("%s: fetched packaging repo at %s", pkg, repoPath)

	// Phase 2: prepare upstream.
	sink.WritePhase("prepare-upstream")
	_, sigOK, err := p.collab.Upstream.Acquire(ctx, pkg, decision)
	if err != nil {
		return result, NewBuildError(pkg, "prepare-upstream", FailureFetchFailed, err.Error())
	}
	result.SignatureOK = sigOK

	// Phase 3: validate declared dependencies.
	sink.WritePhase("validate-deps")
	evalResults, summary := satisfy.EvaluateAll(cmp, constraints, devIdx, prevLTSIdx, cloudArchiveIdx)
	result.SatisfactionSummary = summary
	warnings, depErr := satisfy.Apply(opts.DepPolicy, evalResults)
	result.Warnings = append(result.Warnings, warnings...)
	if depErr != nil {
		return result, NewBuildError(pkg, "validate-deps", FailureMissingDep, depErr.Error())
	}

	// Phase 4: apply patches.
	sink.WritePhase("patch")
	outcome, err := p.collab.Patcher.Apply(ctx, repoPath)
	if err != nil {
		return result, NewBuildError(pkg, "patch", FailurePatchFailed, err.Error())
	}
	if outcome == PatchOffset || outcome == PatchFuzz {
		refreshed, rerr := p.collab.Patcher.Refresh(ctx, repoPath)
		if rerr != nil {
			return result, NewBuildError(pkg, "patch", FailurePatchFailed, rerr.Error())
		}
		outcome = refreshed
	}
	if outcome == PatchConflict {
		return result, NewBuildError(pkg, "patch", FailurePatchFailed, "unresolved patch conflict")
	}
	result.PatchOutcome = outcome

	// Phase 5: sync-deps. Only the phase marker is written; no dependency
	// synchronization runs here.
	sink.WritePhase("sync-deps")

	// Phase 6: write changelog entry.
	sink.WritePhase("changelog")
	note := fmt.Sprintf("packastack: resolved %s build at %s", decision.Type, resolvedVersion)
	if err := p.collab.Changelog.WriteEntry(pkg, resolvedVersion, decision.Type, sigOK, note); err != nil {
		return result, NewBuildError(pkg, "changelog", FailureBuildFailed, err.Error())
	}

	// Phase 7: source build.
	sink.WritePhase("source-build")
	sourceArtifact, err := p.collab.SourceBuilder.Build(ctx, repoPath, resolvedVersion)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return result, NewBuildError(pkg, "source-build", FailureTimeout, "source build exceeded worker timeout")
		}
		return result, NewBuildError(pkg, "source-build", FailureBuildFailed, err.Error())
	}

	// Phase 8: binary build (optional).
	if !opts.SkipBinaryBuild {
		sink.WritePhase("binary-build")
		artifacts, err := p.collab.BinaryBuilder.Build(ctx, sourceArtifact, opts.Series, opts.PoolMountPath, sink)
		if err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return result, NewBuildError(pkg, "binary-build", FailureTimeout, "binary build exceeded worker timeout")
			}
			return result, NewBuildError(pkg, "binary-build", FailureBuildFailed, err.Error())
		}
		result.ArtifactPaths = artifacts

		// Phase 9: publish.
		sink.WritePhase("publish")
		if err := p.collab.Publisher.Publish(ctx, artifacts); err != nil {
			return result, NewBuildError(pkg, "publish", FailureBuildFailed, err.Error())
		}
	}

	return result, nil
}

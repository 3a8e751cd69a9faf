package orchestrator

import (
	"context"
	"fmt"

	"packastack/archive"
	"packastack/buildtype"
	"packastack/manifest"
	"packastack/pipeline"
	"packastack/pkglog"
	"packastack/version"
)

// PipelineInputs bundles everything PipelineBuilder needs to resolve a
// single package's pipeline.Run arguments from the shared manifest and
// dependency indices built once per run (plan.go / build.go).
type PipelineInputs struct {
	Manifest        *manifest.Manifest
	Decisions       map[string]buildtype.Decision
	Constraints     map[string][]version.Constraint
	DevIndex        *archive.Index
	PrevLTSIndex    *archive.Index
	CloudArchive    *archive.Index
	Comparator      version.Comparator
	Options         pipeline.Options
	LogDir          string
}

// PipelineBuilder adapts a *pipeline.Pipeline to the orchestrator's
// Builder interface, closing over the per-run manifest and indices so
// the scheduler only has to pass a package name.
type PipelineBuilder struct {
	pipeline *pipeline.Pipeline
	inputs   PipelineInputs
}

// NewPipelineBuilder constructs a Builder backed by p.
func NewPipelineBuilder(p *pipeline.Pipeline, inputs PipelineInputs) *PipelineBuilder {
	return &PipelineBuilder{pipeline: p, inputs: inputs}
}

// Build resolves pkg's decision, resolved version, and constraints from
// the bundled PipelineInputs, opens its per-package log sink, and
// delegates to pipeline.Run.
func (b *PipelineBuilder) Build(ctx context.Context, pkg string) (pipeline.Result, error) {
	decision, ok := b.inputs.Decisions[pkg]
	if !ok {
		return pipeline.Result{}, fmt.Errorf("orchestrator: no build-type decision for %s", pkg)
	}
	pv, ok := b.inputs.Manifest.Version(pkg)
	if !ok {
		return pipeline.Result{}, fmt.Errorf("orchestrator: no manifest version for %s", pkg)
	}

	sink, err := pkglog.NewPackageLogger(b.inputs.LogDir, pkg)
	if err != nil {
		return pipeline.Result{}, fmt.Errorf("orchestrator: opening log sink for %s: %w", pkg, err)
	}
	defer sink.Close()
	sink.WriteHeader()

	return b.pipeline.Run(
		ctx,
		pkg,
		decision,
		pv.String(),
		b.inputs.Constraints[pkg],
		b.inputs.DevIndex,
		b.inputs.PrevLTSIndex,
		b.inputs.CloudArchive,
		b.inputs.Comparator,
		b.inputs.Options,
		sink,
	)
}

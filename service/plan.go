package service

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"packastack/archive"
	"packastack/buildtype"
	"packastack/changelog"
	"packastack/control"
	"packastack/graph"
	"packastack/manifest"
	"packastack/satisfy"
	"packastack/target"
	"packastack/version"
)

// PlanOptions configures one Plan call.
type PlanOptions struct {
	DownstreamSeries string
	UpstreamSeries string
	CycleStage target.CycleStage
	ReleaseSource buildtype.ReleaseSource
	BuildTypeOverride buildtype.Type
	DevIndex *archive.Index
	PrevLTSIndex *archive.Index
	CloudArchive *archive.Index
	LTSFloor manifest.LTSFloor // optional; nil skips the floor step
	Comparator version.Comparator
	DepPolicy satisfy.Policy
}

// Plan is the resolved, graph-ordered, version-decided build plan for one
// invocation, bundling everything the build and explain operations need.
type Plan struct {
	Graph *graph.Graph
	Manifest *manifest.Manifest
	Decisions map[string]buildtype.Decision
	Constraints map[string][]version.Constraint
	SatisfyResults map[string][]satisfy.Result
}

// Plan resolves targetExprs against universe, discovers the transitive
// closure of locally-packaged build dependencies by reading each
// package's control file, selects a build type per package, and builds
// the manifest.
func (s *Service) Plan(universe *target.Universe, targetExprs []string, opts PlanOptions) (*Plan, error) {
	roots, err := s.resolveRoots(universe, targetExprs)
	if err != nil {
		return nil, err
	}

	g := graph.New()
	constraints := make(map[string][]version.Constraint)

	queue := append([]string(nil), roots...)
	seen := make(map[string]bool, len(roots))
	for _, name := range roots {
		seen[name] = true
	}

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		ctl, err := s.loadControl(name)
		if err != nil {
			return nil, fmt.Errorf("service: reading control file for %s: %w", name, err)
		}
		g.AddNode(graph.Node{Name: name})
		constraints[name] = allConstraints(ctl)

		for _, dep := range constraints[name] {
			if !s.isLocallyPackaged(dep.Name) {
				continue
			}
			if !seen[dep.Name] {
				seen[dep.Name] = true
				queue = append(queue, dep.Name)
			}
		}
	}

	// A second pass adds edges once every node exists, since AddEdge
	// requires both endpoints to already be present.
	names := make([]string, 0, len(constraints))
	for name := range constraints {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, dep := range constraints[name] {
			if _, ok := g.Node(dep.Name); ok {
				if err := g.AddEdge(name, dep.Name); err != nil {
					return nil, fmt.Errorf("service: building dependency graph: %w", err)
				}
			}
		}
	}

	decisions := make(map[string]buildtype.Decision, len(names))
	for _, name := range names {
		deliverable := name
		decisions[name] = buildtype.Select(deliverable, opts.DownstreamSeries, opts.CycleStage, opts.ReleaseSource, opts.BuildTypeOverride)
	}

	changelogs := &changelogAdapter{repoDir: s.cfg.PackagingRepos}
	snap := &snapshotSynth{reposDir: s.cfg.PackagingRepos}
	m, err := manifest.Build(g, names, decisions, changelogs, snap, opts.DownstreamSeries)
	if err != nil {
		return nil, fmt.Errorf("service: building manifest: %w", err)
	}
	if opts.LTSFloor != nil {
		m = manifest.ApplyPriorLTSFloor(m, opts.LTSFloor, opts.Comparator)
	}

	satisfyResults := make(map[string][]satisfy.Result, len(names))
	for _, name := range names {
		results, _ := satisfy.EvaluateAll(opts.Comparator, constraints[name], opts.DevIndex, opts.PrevLTSIndex, opts.CloudArchive)
		satisfyResults[name] = results
	}

	return &Plan{
		Graph: g,
		Manifest: m,
		Decisions: decisions,
		Constraints: constraints,
		SatisfyResults: satisfyResults,
	}, nil
}

// resolveRoots resolves each target expression to exactly one source
// package name.
func (s *Service) resolveRoots(universe *target.Universe, exprs []string) ([]string, error) {
	roots := make([]string, 0, len(exprs))
	for _, raw := range exprs {
		expr, err := target.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("service: parsing target expression %q: %w", raw, err)
		}
		result, err := target.Resolve(universe, expr, target.ResolveOptions{})
		if err != nil {
			return nil, fmt.Errorf("service: resolving target %q: %w", raw, err)
		}
		roots = append(roots, result.Matches[0].SourcePackage)
	}
	return roots, nil
}

func (s *Service) controlPath(pkg string) string {
	return filepath.Join(s.cfg.PackagingRepos, pkg, "debian", "control")
}

func (s *Service) isLocallyPackaged(pkg string) bool {
	_, err := os.Stat(s.controlPath(pkg))
	return err == nil
}

func (s *Service) loadControl(pkg string) (*control.File, error) {
	f, err := os.Open(s.controlPath(pkg))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return control.Parse(f)
}

// allConstraints flattens a control.File's build and binary dependency
// fields into one deduplicated-by-name constraint list for satisfaction
// evaluation.
func allConstraints(ctl *control.File) []version.Constraint {
	var out []version.Constraint
	seen := make(map[string]bool)
	add := func(cs []version.Constraint) {
		for _, c := range cs {
			if seen[c.Name] {
				continue
			}
			seen[c.Name] = true
			out = append(out, c)
		}
	}
	add(ctl.BuildDepends)
	add(ctl.BuildDependsIndep)
	for _, bin := range ctl.Binaries {
		add(bin.Depends)
		add(bin.PreDepends)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

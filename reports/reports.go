// Package reports produces the deterministic machine-readable and
// human-readable documents a batch run leaves behind: a target
// explanation, a build-all summary, and a plan-dependency summary.
package reports

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"packastack/buildtype"
	"packastack/orchestrator"
	"packastack/satisfy"
)

// Writer persists a report's JSON and text forms under a run's reports/
// subdirectory, atomically (write to temp, rename into place), mirroring
// orchestrator.RunState.Save.
type Writer struct {
	dir string
}

// NewWriter returns a Writer rooted at runDir/reports, creating it if
// necessary.
func NewWriter(runDir string) (*Writer, error) {
	dir := filepath.Join(runDir, "reports")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("reports: creating reports directory: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// Write persists a report under baseName.json (pretty-printed JSON) and
// baseName.txt (text), using atomic write-then-rename for each file.
func (w *Writer) Write(baseName string, v any, text string) error {
	data, err := MarshalJSON(v)
	if err != nil {
		return fmt.Errorf("reports: marshaling %s: %w", baseName, err)
	}
	if err := atomicWrite(filepath.Join(w.dir, baseName+".json"), data); err != nil {
		return err
	}
	return atomicWrite(filepath.Join(w.dir, baseName+".txt"), []byte(text))
}

func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("reports: writing %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("reports: renaming %s into place: %w", path, err)
	}
	return nil
}

// TargetReportName returns the deterministic file base name for a
// target explanation report.
func TargetReportName(identity string) string {
	return "target-" + sanitizeName(identity)
}

// BuildSummaryReportName is the deterministic file base name for a
// build-all summary report.
func BuildSummaryReportName() string { return "build-summary" }

// PlanSummaryReportName is the deterministic file base name for a
// plan-dependency summary report.
func PlanSummaryReportName() string { return "plan-dependencies" }

func sanitizeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}

// TargetExplanation is the structured result of resolving and planning a
// single target.
type TargetExplanation struct {
	Identity string `json:"identity"`
	BuildType buildtype.Type `json:"build_type"`
	BuildTypeReason string `json:"build_type_reason"`
	ResolvedVersion string `json:"resolved_version"`
	Satisfaction satisfy.Summary `json:"satisfaction"`
	CloudArchiveRequired []string `json:"cloud_archive_required"`
	MIRWarnings []string `json:"mir_warnings"`
}

// BuildExplanation builds a TargetExplanation for one package from its
// build-type decision, resolved version, and per-constraint satisfaction
// results. Lists are sorted ascending for determinism.
func BuildExplanation(identity, resolvedVersion string, decision buildtype.Decision, results []satisfy.Result) TargetExplanation {
	te := TargetExplanation{
		Identity: identity,
		BuildType: decision.Type,
		BuildTypeReason: decision.Reason,
		ResolvedVersion: resolvedVersion,
	}
	_, te.Satisfaction = summarize(results)
	for _, r := range results {
		if r.CloudArchiveRequired {
			te.CloudArchiveRequired = append(te.CloudArchiveRequired, r.Constraint.Name)
		}
		if r.MIRWarning {
			te.MIRWarnings = append(te.MIRWarnings, r.Constraint.Name)
		}
	}
	sort.Strings(te.CloudArchiveRequired)
	sort.Strings(te.MIRWarnings)
	return te
}

func summarize(results []satisfy.Result) ([]satisfy.Result, satisfy.Summary) {
	var s satisfy.Summary
	s.Total = len(results)
	for _, r := range results {
		if r.Dev.Satisfied {
			s.DevSatisfied++
		}
		if r.PrevLTS.Satisfied {
			s.PrevLTSSatisfied++
		}
		if r.CloudArchiveRequired {
			s.CloudArchiveRequired++
		}
		if r.MIRWarning {
			s.MIRWarnings++
		}
	}
	return results, s
}

// RenderText renders a TargetExplanation as the human-readable text form.
func (te TargetExplanation) RenderText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "target: %s\n", te.Identity)
	fmt.Fprintf(&b, "build type: %s (%s)\n", te.BuildType, te.BuildTypeReason)
	fmt.Fprintf(&b, "resolved version: %s\n", te.ResolvedVersion)
	fmt.Fprintf(&b, "dependencies: %d total, %d satisfied in dev, %d satisfied in prior LTS\n",
		te.Satisfaction.Total, te.Satisfaction.DevSatisfied, te.Satisfaction.PrevLTSSatisfied)
	if len(te.CloudArchiveRequired) > 0 {
		fmt.Fprintf(&b, "cloud-archive required: %s\n", strings.Join(te.CloudArchiveRequired, ", "))
	}
	if len(te.MIRWarnings) > 0 {
		fmt.Fprintf(&b, "MIR warnings: %s\n", strings.Join(te.MIRWarnings, ", "))
	}
	return b.String()
}

// FailureGroup is one entry in a BuildAllSummary's failures-by-kind list.
type FailureGroup struct {
	Kind string `json:"kind"`
	Packages []string `json:"packages"`
}

// LongestBuild records one entry of a build-all summary's top-N longest builds.
type LongestBuild struct {
	Package string `json:"package"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// BuildAllSummary is the aggregate report over a completed or
// in-progress run.
type BuildAllSummary struct {
	RunID string `json:"run_id"`
	Counts map[orchestrator.Status]int `json:"counts"`
	LongestBuilds []LongestBuild `json:"longest_builds"`
	Failures []FailureGroup `json:"failures"`
	MissingDeps []orchestrator.MissingDep `json:"missing_deps"`
	Cycles [][]string `json:"cycles"`
}

// BuildSummary computes a BuildAllSummary from a RunState, with the topN
// longest completed builds (by duration) and failures grouped by kind.
func BuildSummary(rs *orchestrator.RunState, topN int) BuildAllSummary {
	summary := BuildAllSummary{
		RunID: rs.RunID,
		Counts: make(map[orchestrator.Status]int),
		MissingDeps: sortedMissingDeps(rs.MissingDeps),
		Cycles: sortedCycles(rs.Cycles),
	}

	byKind := make(map[string]map[string]bool)
	var durations []LongestBuild

	names := make([]string, 0, len(rs.Packages))
	for name := range rs.Packages {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ps, _ := rs.Get(name)
		summary.Counts[ps.Status]++
		if ps.Status == orchestrator.StatusFailed && ps.FailureKind != "" {
			if byKind[ps.FailureKind] == nil {
				byKind[ps.FailureKind] = make(map[string]bool)
			}
			byKind[ps.FailureKind][name] = true
		}
		if ps.CompletedAt != nil && ps.StartedAt != nil {
			durations = append(durations, LongestBuild{Package: name, DurationSeconds: ps.DurationSeconds})
		}
	}

	kinds := make([]string, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		pkgs := make([]string, 0, len(byKind[k]))
		for p := range byKind[k] {
			pkgs = append(pkgs, p)
		}
		sort.Strings(pkgs)
		summary.Failures = append(summary.Failures, FailureGroup{Kind: k, Packages: pkgs})
	}

	sort.Slice(durations, func(i, j int) bool {
		if durations[i].DurationSeconds != durations[j].DurationSeconds {
			return durations[i].DurationSeconds > durations[j].DurationSeconds
		}
		return durations[i].Package < durations[j].Package
	})
	if topN > 0 && len(durations) > topN {
		durations = durations[:topN]
	}
	summary.LongestBuilds = durations

	return summary
}

func sortedMissingDeps(m map[string]orchestrator.MissingDep) []orchestrator.MissingDep {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]orchestrator.MissingDep, 0, len(names))
	for _, name := range names {
		dep := m[name]
		sorted := append([]string(nil), dep.RequiredBy...)
		sort.Strings(sorted)
		dep.RequiredBy = sorted
		out = append(out, dep)
	}
	return out
}

func sortedCycles(cycles [][]string) [][]string {
	out := make([][]string, len(cycles))
	for i, c := range cycles {
		sorted := append([]string(nil), c...)
		sort.Strings(sorted)
		out[i] = sorted
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.Join(out[i], ",") < strings.Join(out[j], ",")
	})
	return out
}

// RenderText renders a BuildAllSummary as the human-readable text form.
func (s BuildAllSummary) RenderText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run: %s\n", s.RunID)

	statuses := []orchestrator.Status{
		orchestrator.StatusSuccess, orchestrator.StatusFailed, orchestrator.StatusSkipped,
		orchestrator.StatusBlocked, orchestrator.StatusRunning, orchestrator.StatusPending,
	}
	for _, st := range statuses {
		if n := s.Counts[st]; n > 0 {
			fmt.Fprintf(&b, " %s: %d\n", st, n)
		}
	}

	if len(s.LongestBuilds) > 0 {
		b.WriteString("longest builds:\n")
		for _, lb := range s.LongestBuilds {
			fmt.Fprintf(&b, " %s: %s\n", lb.Package, formatDuration(lb.DurationSeconds))
		}
	}

	if len(s.Failures) > 0 {
		b.WriteString("failures by kind:\n")
		for _, fg := range s.Failures {
			fmt.Fprintf(&b, " %s: %s\n", fg.Kind, strings.Join(fg.Packages, ", "))
		}
	}

	if len(s.MissingDeps) > 0 {
		b.WriteString("missing dependencies:\n")
		for _, md := range s.MissingDeps {
			fmt.Fprintf(&b, " %s (required by %s)\n", md.Name, strings.Join(md.RequiredBy, ", "))
		}
	}

	if len(s.Cycles) > 0 {
		b.WriteString("cycles:\n")
		for _, c := range s.Cycles {
			fmt.Fprintf(&b, " %s\n", strings.Join(c, " -> "))
		}
	}

	return b.String()
}

func formatDuration(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second))
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	secs := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
}

// PlanPackageSummary is one package's row in a PlanDependencySummary.
type PlanPackageSummary struct {
	Package string `json:"package"`
	Satisfied int `json:"satisfied"`
	CloudArchiveRequired int `json:"cloud_archive_required"`
	MIRWarnings int `json:"mir_warnings"`
}

// PlanDependencySummary aggregates satisfy.Result counts per package.
type PlanDependencySummary struct {
	Packages []PlanPackageSummary `json:"packages"`
}

// BuildPlanSummary computes a PlanDependencySummary from a per-package
// map of satisfy.Result slices, sorted by package name ascending.
func BuildPlanSummary(perPackage map[string][]satisfy.Result) PlanDependencySummary {
	names := make([]string, 0, len(perPackage))
	for name := range perPackage {
		names = append(names, name)
	}
	sort.Strings(names)

	summary := PlanDependencySummary{}
	for _, name := range names {
		_, s := summarize(perPackage[name])
		summary.Packages = append(summary.Packages, PlanPackageSummary{
			Package: name,
			Satisfied: s.DevSatisfied,
			CloudArchiveRequired: s.CloudArchiveRequired,
			MIRWarnings: s.MIRWarnings,
		})
	}
	return summary
}

// RenderText renders a PlanDependencySummary as the human-readable text form.
func (s PlanDependencySummary) RenderText() string {
	var b strings.Builder
	for _, p := range s.Packages {
		fmt.Fprintf(&b, "%s: %d satisfied, %d cloud-archive-required, %d MIR warnings\n",
			p.Package, p.Satisfied, p.CloudArchiveRequired, p.MIRWarnings)
	}
	return b.String()
}

// MarshalJSON renders v as pretty-printed, two-space-indent JSON. Map keys are already sorted by encoding/json; slice ordering
// is established by the callers above.
func MarshalJSON(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

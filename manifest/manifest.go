// Package manifest builds the unified build manifest for a batch run:
// the topological build order plus, for every package, the resolved
// version to build.
package manifest

import (
	"fmt"
	"strings"

	"packastack/buildtype"
	"packastack/graph"
)

// PackageVersion is the resolved version a single package will be built
// at, along with the build type that produced it.
type PackageVersion struct {
	Name string
	Type buildtype.Type
	UpstreamVersion string
	Epoch int
	Revision string
	Reason string
}

// String renders the Debian-style version string epoch:upstream-revision.
func (pv PackageVersion) String() string {
	var b strings.Builder
	if pv.Epoch > 0 {
		fmt.Fprintf(&b, "%d:", pv.Epoch)
	}
	b.WriteString(pv.UpstreamVersion)
	if pv.Revision != "" {
		b.WriteByte('-')
		b.WriteString(pv.Revision)
	}
	return b.String()
}

// Manifest is the immutable result of a build-plan construction. Once
// returned from Build, none of its fields are mutated; ApplyPriorLTSFloor
// returns a new Manifest rather than mutating the receiver.
type Manifest struct {
	Series string
	BuildOrder []string
	versions map[string]PackageVersion
	CycleWarning string // non-empty iff build order fell back due to cycles
}

// Version returns the resolved PackageVersion for name.
func (m *Manifest) Version(name string) (PackageVersion, bool) {
	v, ok := m.versions[name]
	return v, ok
}

// Packages returns every package name in the manifest, in build order.
func (m *Manifest) Packages() []string {
	return append([]string(nil), m.BuildOrder...)
}

// ChangelogRevision supplies the packaging-derived revision for a package,
// used when a release/milestone build type doesn't itself carry one.
type ChangelogRevision interface {
	// Revision returns the packaging revision and preserved epoch
	// recorded in the existing changelog for name, if any.
	Revision(name string) (revision string, epoch int, ok bool)
}

// Snapshotter synthesizes the upstream_version token for a snapshot
// build: `<base>~git<yyyymmdd>.<short-sha>`.
type Snapshotter interface {
	Snapshot(name string) (base, yyyymmdd, shortSHA string, err error)
}

// Build constructs a Manifest for the given packages and their per-package
// build-type decisions:
// 1. Compute topological order; on cycles, fall back to input order and
// record a warning naming the SCCs.
// 2. For each package, resolve its version per its chosen build type.
func Build(g *graph.Graph, packages []string, decisions map[string]buildtype.Decision, rev ChangelogRevision, snap Snapshotter, series string) (*Manifest, error) {
	m := &Manifest{Series: series, versions: make(map[string]PackageVersion, len(packages))}

	order, err := g.TopologicalSort()
	if err != nil {
		cycles := g.DetectCycles()
		m.CycleWarning = fmt.Sprintf("build order fell back to input order: cycles detected: %v", cycles)
		order = append([]string(nil), packages...)
	}

	// Restrict order to the requested package set, preserving order.
	inSet := make(map[string]bool, len(packages))
	for _, p := range packages {
		inSet[p] = true
	}
	filtered := make([]string, 0, len(packages))
	for _, name := range order {
		if inSet[name] {
			filtered = append(filtered, name)
		}
	}
	m.BuildOrder = filtered

	for _, name := range m.BuildOrder {
		decision, ok := decisions[name]
		if !ok {
			return nil, fmt.Errorf("manifest: no build-type decision for package %q", name)
		}
		pv, err := resolveVersion(name, decision, rev, snap)
		if err != nil {
			return nil, err
		}
		m.versions[name] = pv
	}

	return m, nil
}

func resolveVersion(name string, decision buildtype.Decision, rev ChangelogRevision, snap Snapshotter) (PackageVersion, error) {
	pv := PackageVersion{Name: name, Type: decision.Type, Reason: decision.Reason}

	switch decision.Type {
	case buildtype.TypeRelease, buildtype.TypeMilestone:
		pv.UpstreamVersion = decision.Version
		revision, epoch, ok := rev.Revision(name)
		if ok {
			pv.Revision = revision
			pv.Epoch = epoch
		} else {
			pv.Revision = "0ubuntu1"
		}
	case buildtype.TypeSnapshot:
		base, date, sha, err := snap.Snapshot(name)
		if err != nil {
			return PackageVersion{}, fmt.Errorf("manifest: snapshot synthesis for %q: %w", name, err)
		}
		pv.UpstreamVersion = fmt.Sprintf("%s~git%s.%s", base, date, sha)
		if revision, epoch, ok := rev.Revision(name); ok {
			pv.Revision = revision
			pv.Epoch = epoch
		} else {
			pv.Revision = "0ubuntu1"
		}
	default:
		return PackageVersion{}, fmt.Errorf("manifest: unknown build type %q for package %q", decision.Type, name)
	}

	return pv, nil
}

// LTSFloor supplies the prior-LTS version to compare against, per the
// normalize-to-prior-LTS-floor policy.
type LTSFloor interface {
	// Floor returns the prior-LTS version of name, if the prior-LTS
	// series carries it at all.
	Floor(name string) (version string, ok bool)
}

// Comparator orders two version strings; packastack/version.Comparator
// satisfies this.
type Comparator func(a, b string) int

// ApplyPriorLTSFloor returns a new Manifest in which every package whose
// resolved version compares lower than its prior-LTS floor is raised to
// that floor, recording the substitution in Reason. The receiver is left
// unmodified (manifests are immutable once built).
func ApplyPriorLTSFloor(m *Manifest, floor LTSFloor, cmp Comparator) *Manifest {
	out := &Manifest{
		Series: m.Series,
		BuildOrder: append([]string(nil), m.BuildOrder...),
		versions: make(map[string]PackageVersion, len(m.versions)),
		CycleWarning: m.CycleWarning,
	}
	for name, pv := range m.versions {
		floorVersion, ok := floor.Floor(name)
		if ok && cmp(pv.UpstreamVersion, floorVersion) < 0 {
			pv.UpstreamVersion = floorVersion
			pv.Reason = pv.Reason + "; raised to prior-LTS floor " + floorVersion
		}
		out.versions[name] = pv
	}
	return out
}

// ValidateInvariants checks the structural invariants: a
// package appears in BuildOrder iff it appears in the original package
// set, every dependency edge is respected by the order, and no package
// has two versions. It is exercised by tests rather than called in the
// hot path, since Build already establishes these invariants by
// construction.
func ValidateInvariants(m *Manifest, g *graph.Graph, packages []string) error {
	want := make(map[string]bool, len(packages))
	for _, p := range packages {
		want[p] = true
	}
	got := make(map[string]bool, len(m.BuildOrder))
	for _, p := range m.BuildOrder {
		if got[p] {
			return fmt.Errorf("manifest: duplicate package %q in build order", p)
		}
		got[p] = true
	}
	if len(want) != len(got) {
		return fmt.Errorf("manifest: build order size %d does not match package set size %d", len(got), len(want))
	}
	for p := range want {
		if !got[p] {
			return fmt.Errorf("manifest: package %q missing from build order", p)
		}
	}

	pos := make(map[string]int, len(m.BuildOrder))
	for i, p := range m.BuildOrder {
		pos[p] = i
	}
	for _, u := range m.BuildOrder {
		for _, v := range g.Dependencies(u) {
			if !got[v] {
				continue
			}
			if pos[v] >= pos[u] {
				return fmt.Errorf("manifest: dependency %q does not precede %q in build order", v, u)
			}
		}
	}
	return nil
}

// Package depsync merges an upstream ecosystem's own declared dependency
// set into a package's existing packaging-control dependencies. Grounded
// in pkg/state.go's get-or-create/merge reconciliation pattern, applied
// here to constraint lists instead of build records.
package depsync

import (
	"regexp"
	"sort"

	"packastack/archive"
	"packastack/manifest"
	"packastack/version"
)

// UpstreamDeclaration is one dependency as declared by the upstream
// ecosystem's own packaging metadata (e.g. a requirements file entry).
type UpstreamDeclaration struct {
	ProjectName string
	VersionSpec string // e.g. ">=1.2.3" or "==2.0.0"
}

// NativeNameMapper maps an upstream project name to the native packaging
// name used in control files and the manifest, when known.
type NativeNameMapper interface {
	NativeName(projectName string) (string, bool)
}

// Index is the minimal lookup depsync needs from an archive index.
type Index interface {
	FindPackage(name string) (*archive.BinaryRecord, bool)
}

// VersionBump records an existing Constraint whose version is being
// raised to meet an upstream declaration.
type VersionBump struct {
	Name string
	Old string
	New string
	Source string
}

// Result is the outcome of one Sync call.
type Result struct {
	Additions []version.Constraint
	VersionBumps []VersionBump
	Unresolved []string
	Warnings []string
}

var minSpecRe = regexp.MustCompile(`^(>=|==)\s*(.+)$`)

// Sync merges upstreamDecls into existing, per the resolution order:
// build manifest, then prior-LTS/dev index, then the parsed minimum
// from the upstream declaration itself, else unresolved.
func Sync(existing []version.Constraint, upstreamDecls []UpstreamDeclaration, names NativeNameMapper, m *manifest.Manifest, devOrPrevLTS Index, cmp version.Comparator) Result {
	existingByName := make(map[string]version.Constraint, len(existing))
	for _, c := range existing {
		existingByName[c.Name] = c
	}

	var res Result
	for _, decl := range upstreamDecls {
		native, hasNative := names.NativeName(decl.ProjectName)

		resolvedVersion, source, ok := resolve(decl, native, hasNative, m, devOrPrevLTS)
		if !ok {
			res.Unresolved = append(res.Unresolved, decl.ProjectName)
			continue
		}

		lookupName := decl.ProjectName
		if hasNative {
			lookupName = native
		}

		current, exists := existingByName[lookupName]
		if !exists {
			res.Additions = append(res.Additions, version.Constraint{
				Name: lookupName,
				Relation: version.RelGE,
				Version: resolvedVersion,
			})
			continue
		}

		if current.Version == "" || cmp(current.Version, resolvedVersion) < 0 {
			res.VersionBumps = append(res.VersionBumps, VersionBump{
				Name: lookupName,
				Old: current.Version,
				New: resolvedVersion,
				Source: source,
			})
		}
	}

	sort.Slice(res.Additions, func(i, j int) bool { return res.Additions[i].Name < res.Additions[j].Name })
	sort.Slice(res.VersionBumps, func(i, j int) bool { return res.VersionBumps[i].Name < res.VersionBumps[j].Name })
	sort.Strings(res.Unresolved)
	return res
}

func resolve(decl UpstreamDeclaration, native string, hasNative bool, m *manifest.Manifest, idx Index) (resolvedVersion, source string, ok bool) {
	if hasNative && m != nil {
		if pv, found := m.Version(native); found {
			return pv.UpstreamVersion, "build manifest", true
		}
	}

	lookupName := decl.ProjectName
	if hasNative {
		lookupName = native
	}
	if idx != nil {
		if rec, found := idx.FindPackage(lookupName); found {
			return rec.Version, "prior-LTS/dev index", true
		}
	}

	if match := minSpecRe.FindStringSubmatch(decl.VersionSpec); match != nil {
		return match[2], "parsed upstream minimum", true
	}

	return "", "", false
}

// ApplyBumps rewrites existing, replacing each matched name's relation
// with >= and its version with the resolved version, preserving arch
// qualifiers and alternatives. This is a
// pure function: existing is not mutated.
func ApplyBumps(existing []version.Constraint, bumps []VersionBump) []version.Constraint {
	bumpByName := make(map[string]VersionBump, len(bumps))
	for _, b := range bumps {
		bumpByName[b.Name] = b
	}

	out := make([]version.Constraint, len(existing))
	for i, c := range existing {
		if b, ok := bumpByName[c.Name]; ok {
			out[i] = version.Constraint{
				Name: c.Name,
				Relation: version.RelGE,
				Version: b.New,
				ArchQualifiers: c.ArchQualifiers,
				Alternatives: c.Alternatives,
			}
			continue
		}
		out[i] = c
	}
	return out
}

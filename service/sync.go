package service

import (
	"encoding/json"
	"os"
	"path/filepath"

	"packastack/depsync"
	"packastack/version"
)

// jsonNameMapper maps an upstream ecosystem project name to its native
// packaging name via an optional JSON file (project -> native name) kept
// alongside a packaging repo. Absent entries simply aren't mapped; depsync
// then looks the project up in the index under its upstream name and
// falls back to the declaration's parsed minimum version.
type jsonNameMapper struct {
	names map[string]string
}

func loadNameMapper(reposDir, pkg string) (*jsonNameMapper, error) {
	path := filepath.Join(reposDir, pkg, "debian", "upstream-names.json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &jsonNameMapper{names: map[string]string{}}, nil
	}
	if err != nil {
		return nil, err
	}
	var names map[string]string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, err
	}
	return &jsonNameMapper{names: names}, nil
}

func (m *jsonNameMapper) NativeName(projectName string) (string, bool) {
	name, ok := m.names[projectName]
	return name, ok
}

// Sync merges upstreamDecls (the ecosystem's own declared dependency set
// for pkg, e.g. parsed from a requirements file) into pkg's existing
// packaging constraints, preferring the plan's manifest, then idx, then
// the declaration's own minimum version.
func (s *Service) Sync(pkg string, plan *Plan, upstreamDecls []depsync.UpstreamDeclaration, idx depsync.Index, cmp version.Comparator) (depsync.Result, error) {
	mapper, err := loadNameMapper(s.cfg.PackagingRepos, pkg)
	if err != nil {
		return depsync.Result{}, err
	}
	existing := plan.Constraints[pkg]
	return depsync.Sync(existing, upstreamDecls, mapper, plan.Manifest, idx, cmp), nil
}

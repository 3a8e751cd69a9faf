package service

import (
	"fmt"
	"os"

	"packastack/target"
)

// LoadUniverse scans PackagingRepos for checked-out packaging repositories
// (any subdirectory carrying a debian/control file) and returns a Universe
// populated with one local Identity per source package found.
func (s *Service) LoadUniverse() (*target.Universe, error) {
	u := target.NewUniverse()

	entries, err := os.ReadDir(s.cfg.PackagingRepos)
	if err != nil {
		if os.IsNotExist(err) {
			return u, nil
		}
		return nil, fmt.Errorf("service: reading packaging repos dir: %w", err)
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		ctl, err := s.loadControl(e.Name())
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("service: reading control file for %s: %w", e.Name(), err)
		}
		u.AddLocalRepos(target.Identity{
			SourcePackage: ctl.Source,
			CanonicalUpstream: ctl.Source,
			Kind: target.InferKind(ctl.Source),
		})
	}
	return u, nil
}

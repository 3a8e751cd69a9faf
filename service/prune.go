package service

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

var workerDirPattern = regexp.MustCompile(`^SL\d{2}$`)

// PruneResult reports what a Prune call removed.
type PruneResult struct {
	RemovedWorkerDirs []string
	RemovedTarballs   []string
}

// Prune removes stale per-worker build directories left behind by a
// crashed or killed worker (named SLNN under WorkspaceBase, per the bsd
// environment backend's layout) and expires tarball-cache entries older
// than cfg.TarballCacheMaxAgeDays.
func (s *Service) Prune() (PruneResult, error) {
	var result PruneResult

	entries, err := os.ReadDir(s.cfg.WorkspaceBase)
	if err != nil && !os.IsNotExist(err) {
		return result, fmt.Errorf("service: reading workspace base: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() || !workerDirPattern.MatchString(e.Name()) {
			continue
		}
		dir := filepath.Join(s.cfg.WorkspaceBase, e.Name())
		if err := os.RemoveAll(dir); err != nil {
			return result, fmt.Errorf("service: removing stale worker directory %s: %w", dir, err)
		}
		result.RemovedWorkerDirs = append(result.RemovedWorkerDirs, dir)
	}

	maxAge := time.Duration(s.cfg.TarballCacheMaxAgeDays) * 24 * time.Hour
	removed, err := s.tarballs.PruneExpired(maxAge)
	if err != nil {
		return result, fmt.Errorf("service: pruning tarball cache: %w", err)
	}
	result.RemovedTarballs = removed
	return result, nil
}

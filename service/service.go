// Package service provides the business logic for packastack's CLI
// commands: planning a build manifest, executing the batch build,
// explaining a single target, syncing dependencies against an upstream
// ecosystem's own declarations, and pruning stale state. It composes the
// core packages (target, graph, buildtype, manifest, satisfy, depsync,
// pipeline, orchestrator, reports) the way service package
// composed builddb/build/pkg, keeping cmd/ thin.
package service

import (
	"fmt"

	"packastack/cache"
	"packastack/config"
	"packastack/environment"
	"packastack/log"
)

// Service holds the long-lived collaborators a packastack invocation
// needs: configuration, a logger, and caches. The execution environment
// is created per build by newEnvironment.
type Service struct {
	cfg *config.Config
	logger log.LibraryLogger
	tarballs *cache.TarballCache
	indices *cache.IndexCache
}

// NewService opens the tarball and archive-index caches under cfg and
// returns a ready-to-use Service. Close must be called to release them.
func NewService(cfg *config.Config, logger log.LibraryLogger) (*Service, error) {
	if logger == nil {
		logger = log.NoOpLogger{}
	}

	tarballs, err := cache.OpenTarballCache(cfg.TarballCachePath)
	if err != nil {
		return nil, fmt.Errorf("service: opening tarball cache: %w", err)
	}
	indices, err := cache.OpenIndexCache(cfg.IndexCachePath)
	if err != nil {
		tarballs.Close()
		return nil, fmt.Errorf("service: opening index cache: %w", err)
	}

	return &Service{cfg: cfg, logger: logger, tarballs: tarballs, indices: indices}, nil
}

// Close releases the Service's cache handles.
func (s *Service) Close() error {
	err1 := s.tarballs.Close()
	err2 := s.indices.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// Config returns the Service's configuration record.
func (s *Service) Config() *config.Config { return s.cfg }

// newEnvironment constructs the Environment backend named by the
// profile, defaulting to "bsd".
func (s *Service) newEnvironment() (environment.Environment, error) {
	backend := s.cfg.EnvironmentBackend
	if backend == "" {
		backend = "bsd"
	}
	return environment.New(backend)
}

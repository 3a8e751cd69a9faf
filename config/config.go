// Package config loads the immutable configuration record the core
// consumes. All configurable behavior is enumerated here; the core
// never reads environment variables directly except through this
// narrow façade.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/ini.v1"
)

// Config holds every configurable knob of a packastack batch run.
type Config struct {
	// Paths
	ConfigPath string // directory the config file was loaded from
	WorkspaceBase string // per-run worker workspaces live under here
	PackagingRepos string // local clone cache of packaging repositories
	PoolMountPath string // local artifact pool mount point
	TarballCachePath string // content-addressed upstream tarball cache
	IndexCachePath string // archive-index cache
	LogsPath string // run logs
	CCachePath string // optional compiler cache shared across workers
	SystemPath string // base OS root the chroot template mirrors ("/" for native)
	UseCCache bool // bind-mount CCachePath into each worker chroot
	EnvironmentBackend string // registered environment.Environment backend name ("bsd", "mock")

	// Environment toggles: the core's enumerated configuration surface.
	SignUploads bool
	MaxBuildAgeDays int
	TarballCacheMaxAgeDays int
	ParallelWorkers int
	WorkerTimeoutSeconds int
	AllowRecursiveBuilds bool
	DisableDynamicThrottle bool // skip load/swap-based worker throttling
	ThrottleMinLoadFactor float64 // load/ncpus ratio where throttling begins; 0 = stats package default
	ThrottleMaxLoadFactor float64 // load/ncpus ratio where throttling hard-caps; 0 = stats package default
	ThrottleMinSwapPercent int // swap usage % where throttling begins; 0 = stats package default
	ThrottleMaxSwapPercent int // swap usage % where throttling hard-caps; 0 = stats package default

	// Behavior
	Debug bool
	Force bool
	YesAll bool
	Offline bool

	// Profile selects an INI section to overlay on top of [Global Configuration].
	Profile string
}

// LoadConfig loads configuration from configDir/packastack.ini, applying
// profile as an optional section overlay. Unset values fall back to
// defaults derived from runtime.NumCPU() and conventional paths.
func LoadConfig(configDir string, profile string) (*Config, error) {
	cfg := &Config{
		ParallelWorkers: runtime.NumCPU(),
		WorkerTimeoutSeconds: 3600,
		MaxBuildAgeDays: 14,
		TarballCacheMaxAgeDays: 30,
		Profile: profile,
	}
	if cfg.ParallelWorkers < 1 {
		cfg.ParallelWorkers = 1
	}

	if configDir == "" {
		if _, err := os.Stat("/etc/packastack"); err == nil {
			configDir = "/etc/packastack"
		} else {
			configDir = filepath.Join(os.Getenv("HOME"), ".config", "packastack")
		}
	}
	cfg.ConfigPath = configDir

	configFile := filepath.Join(configDir, "packastack.ini")
	if _, err := os.Stat(configFile); err == nil {
		if err := cfg.loadINI(configFile); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", configFile, err)
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.WorkspaceBase == "" {
		cfg.WorkspaceBase = "/var/lib/packastack/build"
	}
	if cfg.PackagingRepos == "" {
		cfg.PackagingRepos = filepath.Join(cfg.WorkspaceBase, "repos")
	}
	if cfg.PoolMountPath == "" {
		cfg.PoolMountPath = filepath.Join(cfg.WorkspaceBase, "pool")
	}
	if cfg.TarballCachePath == "" {
		cfg.TarballCachePath = filepath.Join(cfg.WorkspaceBase, "tarballs")
	}
	if cfg.IndexCachePath == "" {
		cfg.IndexCachePath = filepath.Join(cfg.WorkspaceBase, "index-cache")
	}
	if cfg.LogsPath == "" {
		cfg.LogsPath = filepath.Join(cfg.WorkspaceBase, "logs")
	}
	if cfg.CCachePath == "" {
		cfg.CCachePath = filepath.Join(cfg.WorkspaceBase, "ccache")
	}
	if cfg.SystemPath == "" {
		cfg.SystemPath = "/"
	}
	if cfg.EnvironmentBackend == "" {
		cfg.EnvironmentBackend = "bsd"
	}
}

// loadINI parses filename with gopkg.in/ini.v1. The [Global Configuration]
// section applies to every run; a section matching cfg.Profile (case
// insensitive) overlays on top of it, mirroring profile
// convention.
func (cfg *Config) loadINI(filename string) error {
	f, err := ini.Load(filename)
	if err != nil {
		return err
	}

	sections := []string{ini.DefaultSection, "Global Configuration"}
	if cfg.Profile != "" {
		sections = append(sections, cfg.Profile)
	}

	for _, name := range sections {
		sec, err := f.GetSection(name)
		if err != nil {
			continue // optional section
		}
		cfg.applySection(sec)
	}
	return nil
}

func (cfg *Config) applySection(sec *ini.Section) {
	if sec.HasKey("workspace_base") {
		cfg.WorkspaceBase = sec.Key("workspace_base").String()
	}
	if sec.HasKey("packaging_repos") {
		cfg.PackagingRepos = sec.Key("packaging_repos").String()
	}
	if sec.HasKey("pool_mount_path") {
		cfg.PoolMountPath = sec.Key("pool_mount_path").String()
	}
	if sec.HasKey("tarball_cache_path") {
		cfg.TarballCachePath = sec.Key("tarball_cache_path").String()
	}
	if sec.HasKey("index_cache_path") {
		cfg.IndexCachePath = sec.Key("index_cache_path").String()
	}
	if sec.HasKey("logs_path") {
		cfg.LogsPath = sec.Key("logs_path").String()
	}
	if sec.HasKey("ccache_path") {
		cfg.CCachePath = sec.Key("ccache_path").String()
		cfg.UseCCache = true
	}
	if sec.HasKey("system_path") {
		cfg.SystemPath = sec.Key("system_path").String()
	}
	if sec.HasKey("environment_backend") {
		cfg.EnvironmentBackend = sec.Key("environment_backend").String()
	}
	if sec.HasKey("use_ccache") {
		cfg.UseCCache, _ = sec.Key("use_ccache").Bool()
	}
	if sec.HasKey("sign_uploads") {
		cfg.SignUploads, _ = sec.Key("sign_uploads").Bool()
	}
	if sec.HasKey("max_build_age_days") {
		cfg.MaxBuildAgeDays, _ = sec.Key("max_build_age_days").Int()
	}
	if sec.HasKey("tarball_cache_max_age_days") {
		cfg.TarballCacheMaxAgeDays, _ = sec.Key("tarball_cache_max_age_days").Int()
	}
	if sec.HasKey("parallel_workers") {
		if n, err := sec.Key("parallel_workers").Int(); err == nil && n > 0 {
			cfg.ParallelWorkers = n
		}
	}
	if sec.HasKey("worker_timeout_seconds") {
		if n, err := sec.Key("worker_timeout_seconds").Int(); err == nil && n > 0 {
			cfg.WorkerTimeoutSeconds = n
		}
	}
	if sec.HasKey("allow_recursive_builds") {
		cfg.AllowRecursiveBuilds, _ = sec.Key("allow_recursive_builds").Bool()
	}
	if sec.HasKey("disable_dynamic_throttle") {
		cfg.DisableDynamicThrottle, _ = sec.Key("disable_dynamic_throttle").Bool()
	}
	if sec.HasKey("throttle_min_load_factor") {
		if v, err := sec.Key("throttle_min_load_factor").Float64(); err == nil && v > 0 {
			cfg.ThrottleMinLoadFactor = v
		}
	}
	if sec.HasKey("throttle_max_load_factor") {
		if v, err := sec.Key("throttle_max_load_factor").Float64(); err == nil && v > 0 {
			cfg.ThrottleMaxLoadFactor = v
		}
	}
	if sec.HasKey("throttle_min_swap_percent") {
		if n, err := sec.Key("throttle_min_swap_percent").Int(); err == nil && n > 0 {
			cfg.ThrottleMinSwapPercent = n
		}
	}
	if sec.HasKey("throttle_max_swap_percent") {
		if n, err := sec.Key("throttle_max_swap_percent").Int(); err == nil && n > 0 {
			cfg.ThrottleMaxSwapPercent = n
		}
	}
	if sec.HasKey("debug") {
		cfg.Debug, _ = sec.Key("debug").Bool()
	}
	if sec.HasKey("offline") {
		cfg.Offline, _ = sec.Key("offline").Bool()
	}
}

// WriteDefaultConfig writes a default configuration file to filename.
func WriteDefaultConfig(filename string, cfg *Config) error {
	f := ini.Empty()
	sec, err := f.NewSection("Global Configuration")
	if err != nil {
		return err
	}
	sec.Comment = "packastack configuration file. See packastack(1) for details."
	sec.NewKey("workspace_base", cfg.WorkspaceBase)
	sec.NewKey("packaging_repos", cfg.PackagingRepos)
	sec.NewKey("pool_mount_path", cfg.PoolMountPath)
	sec.NewKey("tarball_cache_path", cfg.TarballCachePath)
	sec.NewKey("index_cache_path", cfg.IndexCachePath)
	sec.NewKey("logs_path", cfg.LogsPath)
	sec.NewKey("parallel_workers", fmt.Sprintf("%d", cfg.ParallelWorkers))
	sec.NewKey("worker_timeout_seconds", fmt.Sprintf("%d", cfg.WorkerTimeoutSeconds))
	sec.NewKey("sign_uploads", fmt.Sprintf("%v", cfg.SignUploads))
	sec.NewKey("max_build_age_days", fmt.Sprintf("%d", cfg.MaxBuildAgeDays))
	sec.NewKey("tarball_cache_max_age_days", fmt.Sprintf("%d", cfg.TarballCacheMaxAgeDays))
	sec.NewKey("allow_recursive_builds", fmt.Sprintf("%v", cfg.AllowRecursiveBuilds))
	sec.NewKey("disable_dynamic_throttle", fmt.Sprintf("%v", cfg.DisableDynamicThrottle))
	if cfg.ThrottleMinLoadFactor > 0 {
		sec.NewKey("throttle_min_load_factor", fmt.Sprintf("%g", cfg.ThrottleMinLoadFactor))
	}
	if cfg.ThrottleMaxLoadFactor > 0 {
		sec.NewKey("throttle_max_load_factor", fmt.Sprintf("%g", cfg.ThrottleMaxLoadFactor))
	}
	if cfg.ThrottleMinSwapPercent > 0 {
		sec.NewKey("throttle_min_swap_percent", fmt.Sprintf("%d", cfg.ThrottleMinSwapPercent))
	}
	if cfg.ThrottleMaxSwapPercent > 0 {
		sec.NewKey("throttle_max_swap_percent", fmt.Sprintf("%d", cfg.ThrottleMaxSwapPercent))
	}
	return f.SaveTo(filename)
}

// Validate checks configuration validity, creating directories that are
// missing but creatable.
func (cfg *Config) Validate() error {
	required := map[string]string{
		"WorkspaceBase": cfg.WorkspaceBase,
		"PackagingRepos": cfg.PackagingRepos,
		"PoolMountPath": cfg.PoolMountPath,
		"TarballCachePath": cfg.TarballCachePath,
	}
	for name, path := range required {
		if path == "" {
			return fmt.Errorf("%s is not configured", name)
		}
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				if err := os.MkdirAll(path, 0755); err != nil {
					return fmt.Errorf("%s directory %s cannot be created: %w", name, path, err)
				}
				continue
			}
			return fmt.Errorf("%s directory %s: %w", name, path, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%s path %s is not a directory", name, path)
		}
	}

	if cfg.ParallelWorkers < 1 {
		return fmt.Errorf("ParallelWorkers must be at least 1")
	}
	if cfg.ParallelWorkers > 1024 {
		return fmt.Errorf("ParallelWorkers is too large (max 1024)")
	}
	if cfg.MaxBuildAgeDays < 0 {
		return fmt.Errorf("MaxBuildAgeDays must not be negative")
	}
	return nil
}

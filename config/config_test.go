package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"gopkg.in/ini.v1"
)

func TestConfig_DefaultValues(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path", "")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.WorkspaceBase != "/var/lib/packastack/build" {
		t.Errorf("WorkspaceBase = %q, want %q", cfg.WorkspaceBase, "/var/lib/packastack/build")
	}
	if cfg.PackagingRepos != filepath.Join(cfg.WorkspaceBase, "repos") {
		t.Errorf("PackagingRepos = %q, want derived from WorkspaceBase", cfg.PackagingRepos)
	}
	if cfg.PoolMountPath != filepath.Join(cfg.WorkspaceBase, "pool") {
		t.Errorf("PoolMountPath = %q, want derived from WorkspaceBase", cfg.PoolMountPath)
	}
	if cfg.TarballCachePath != filepath.Join(cfg.WorkspaceBase, "tarballs") {
		t.Errorf("TarballCachePath = %q, want derived from WorkspaceBase", cfg.TarballCachePath)
	}
	if cfg.SystemPath != "/" {
		t.Errorf("SystemPath = %q, want /", cfg.SystemPath)
	}
	if cfg.ParallelWorkers != runtime.NumCPU() {
		t.Errorf("ParallelWorkers = %d, want %d", cfg.ParallelWorkers, runtime.NumCPU())
	}
	if cfg.WorkerTimeoutSeconds != 3600 {
		t.Errorf("WorkerTimeoutSeconds = %d, want 3600", cfg.WorkerTimeoutSeconds)
	}
	if cfg.MaxBuildAgeDays != 14 {
		t.Errorf("MaxBuildAgeDays = %d, want 14", cfg.MaxBuildAgeDays)
	}
}

func TestConfig_LoadFromFile(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "packastack.ini")

	configContent := `[Global Configuration]
workspace_base=/custom/build
packaging_repos=/custom/repos
pool_mount_path=/custom/pool
tarball_cache_path=/custom/tarballs
index_cache_path=/custom/index
logs_path=/custom/logs
ccache_path=/custom/ccache
system_path=/custom/system
parallel_workers=4
worker_timeout_seconds=120
sign_uploads=yes
max_build_age_days=7
allow_recursive_builds=yes
debug=yes
`
	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadConfig(tempDir, "")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.WorkspaceBase != "/custom/build" {
		t.Errorf("WorkspaceBase = %q, want %q", cfg.WorkspaceBase, "/custom/build")
	}
	if cfg.PackagingRepos != "/custom/repos" {
		t.Errorf("PackagingRepos = %q, want %q", cfg.PackagingRepos, "/custom/repos")
	}
	if cfg.PoolMountPath != "/custom/pool" {
		t.Errorf("PoolMountPath = %q, want %q", cfg.PoolMountPath, "/custom/pool")
	}
	if cfg.TarballCachePath != "/custom/tarballs" {
		t.Errorf("TarballCachePath = %q, want %q", cfg.TarballCachePath, "/custom/tarballs")
	}
	if cfg.IndexCachePath != "/custom/index" {
		t.Errorf("IndexCachePath = %q, want %q", cfg.IndexCachePath, "/custom/index")
	}
	if cfg.LogsPath != "/custom/logs" {
		t.Errorf("LogsPath = %q, want %q", cfg.LogsPath, "/custom/logs")
	}
	if cfg.CCachePath != "/custom/ccache" {
		t.Errorf("CCachePath = %q, want %q", cfg.CCachePath, "/custom/ccache")
	}
	if !cfg.UseCCache {
		t.Error("UseCCache = false, want true (set implicitly by ccache_path)")
	}
	if cfg.SystemPath != "/custom/system" {
		t.Errorf("SystemPath = %q, want %q", cfg.SystemPath, "/custom/system")
	}
	if cfg.ParallelWorkers != 4 {
		t.Errorf("ParallelWorkers = %d, want 4", cfg.ParallelWorkers)
	}
	if cfg.WorkerTimeoutSeconds != 120 {
		t.Errorf("WorkerTimeoutSeconds = %d, want 120", cfg.WorkerTimeoutSeconds)
	}
	if !cfg.SignUploads {
		t.Error("SignUploads = false, want true")
	}
	if cfg.MaxBuildAgeDays != 7 {
		t.Errorf("MaxBuildAgeDays = %d, want 7", cfg.MaxBuildAgeDays)
	}
	if !cfg.AllowRecursiveBuilds {
		t.Error("AllowRecursiveBuilds = false, want true")
	}
	if !cfg.Debug {
		t.Error("Debug = false, want true")
	}
}

func TestConfig_ProfileOverlay(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "packastack.ini")

	configContent := `[Global Configuration]
workspace_base=/default/build
parallel_workers=2

[ci]
workspace_base=/ci/build
parallel_workers=8
`
	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadConfig(tempDir, "ci")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	// The profile section is applied after the global section, so its
	// keys win when both set the same value.
	if cfg.WorkspaceBase != "/ci/build" {
		t.Errorf("WorkspaceBase = %q, want %q", cfg.WorkspaceBase, "/ci/build")
	}
	if cfg.ParallelWorkers != 8 {
		t.Errorf("ParallelWorkers = %d, want 8", cfg.ParallelWorkers)
	}
}

func TestConfig_GlobalFallbackWhenProfileOmitsKey(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "packastack.ini")

	configContent := `[Global Configuration]
packaging_repos=/global/repos
parallel_workers=10

[staging]
workspace_base=/staging/build
`
	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadConfig(tempDir, "staging")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.WorkspaceBase != "/staging/build" {
		t.Errorf("WorkspaceBase = %q, want %q", cfg.WorkspaceBase, "/staging/build")
	}
	if cfg.PackagingRepos != "/global/repos" {
		t.Errorf("PackagingRepos = %q, want %q", cfg.PackagingRepos, "/global/repos")
	}
	if cfg.ParallelWorkers != 10 {
		t.Errorf("ParallelWorkers = %d, want 10", cfg.ParallelWorkers)
	}
}

func TestConfig_InvalidConfigFile(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "packastack.ini")

	if err := os.WriteFile(configFile, []byte("invalid[[[ini]]]content"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	if _, err := LoadConfig(tempDir, ""); err == nil {
		t.Error("LoadConfig should fail with invalid config file")
	}
}

func TestConfig_DerivedPaths(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "packastack.ini")

	configContent := `[Global Configuration]
workspace_base=/base
`
	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadConfig(tempDir, "")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.PackagingRepos != "/base/repos" {
		t.Errorf("PackagingRepos = %q, want %q", cfg.PackagingRepos, "/base/repos")
	}
	if cfg.TarballCachePath != "/base/tarballs" {
		t.Errorf("TarballCachePath = %q, want %q", cfg.TarballCachePath, "/base/tarballs")
	}
	if cfg.IndexCachePath != "/base/index-cache" {
		t.Errorf("IndexCachePath = %q, want %q", cfg.IndexCachePath, "/base/index-cache")
	}
	if cfg.LogsPath != "/base/logs" {
		t.Errorf("LogsPath = %q, want %q", cfg.LogsPath, "/base/logs")
	}
	if cfg.CCachePath != "/base/ccache" {
		t.Errorf("CCachePath = %q, want %q", cfg.CCachePath, "/base/ccache")
	}
}

func TestConfig_ZeroAndNegativeWorkers(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "packastack.ini")
	defaultWorkers := runtime.NumCPU()

	tests := []struct {
		name          string
		workersValue  string
		expectWorkers int
	}{
		{"zero workers", "0", defaultWorkers},
		{"negative workers", "-1", defaultWorkers},
		{"valid value", "4", 4},
		{"invalid value", "abc", defaultWorkers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configContent := "[Global Configuration]\nparallel_workers=" + tt.workersValue + "\n"
			if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
				t.Fatalf("Failed to write test config: %v", err)
			}

			cfg, err := LoadConfig(tempDir, "")
			if err != nil {
				t.Fatalf("LoadConfig failed: %v", err)
			}
			if cfg.ParallelWorkers != tt.expectWorkers {
				t.Errorf("ParallelWorkers = %d, want %d", cfg.ParallelWorkers, tt.expectWorkers)
			}
		})
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := &Config{
		WorkspaceBase:          filepath.Join(tmpDir, "build"),
		PackagingRepos:         filepath.Join(tmpDir, "repos"),
		PoolMountPath:          filepath.Join(tmpDir, "pool"),
		TarballCachePath:       filepath.Join(tmpDir, "tarballs"),
		IndexCachePath:         filepath.Join(tmpDir, "index"),
		LogsPath:               filepath.Join(tmpDir, "logs"),
		SystemPath:             "/",
		ParallelWorkers:        4,
		WorkerTimeoutSeconds:   600,
		SignUploads:            true,
		MaxBuildAgeDays:        21,
		TarballCacheMaxAgeDays: 45,
		AllowRecursiveBuilds:   true,
	}

	configPath := filepath.Join(tmpDir, "etc", "packastack", "packastack.ini")
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := WriteDefaultConfig(configPath, cfg); err != nil {
		t.Fatalf("WriteDefaultConfig() failed: %v", err)
	}

	iniFile, err := ini.Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}

	sec := iniFile.Section("Global Configuration")
	if sec.Key("workspace_base").String() != cfg.WorkspaceBase {
		t.Fatalf("workspace_base mismatch: %s", sec.Key("workspace_base").String())
	}
	if got := sec.Key("parallel_workers").String(); got != "4" {
		t.Fatalf("parallel_workers mismatch: %s", got)
	}
	if sec.Key("sign_uploads").String() != "true" {
		t.Fatalf("sign_uploads should be true, got %s", sec.Key("sign_uploads").String())
	}
	if got := sec.Key("max_build_age_days").String(); got != "21" {
		t.Fatalf("max_build_age_days mismatch: %s", got)
	}
}

func TestConfig_Validate(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := &Config{
		WorkspaceBase:    filepath.Join(tmpDir, "build"),
		PackagingRepos:   filepath.Join(tmpDir, "repos"),
		PoolMountPath:    filepath.Join(tmpDir, "pool"),
		TarballCachePath: filepath.Join(tmpDir, "tarballs"),
		ParallelWorkers:  4,
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
	for _, dir := range []string{cfg.WorkspaceBase, cfg.PackagingRepos, cfg.PoolMountPath, cfg.TarballCachePath} {
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("Validate() should have created %s: %v", dir, err)
		}
	}

	cfg.ParallelWorkers = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should fail with ParallelWorkers = 0")
	}

	cfg.ParallelWorkers = 4
	cfg.MaxBuildAgeDays = -1
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should fail with negative MaxBuildAgeDays")
	}
}

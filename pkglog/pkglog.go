package pkglog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// PackageLogger is the per-package, per-run log sink every pipeline
// phase writes structured events to.
type PackageLogger struct {
	file *os.File
	pkgName string
	mu sync.Mutex
}

// NewPackageLogger creates (or truncates) the log file for pkg under dir.
func NewPackageLogger(dir, pkg string) (*PackageLogger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("pkglog: creating log directory: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, pkg+".log"))
	if err != nil {
		return nil, fmt.Errorf("pkglog: creating log file for %s: %w", pkg, err)
	}
	pl := &PackageLogger{file: f, pkgName: pkg}
	pl.WriteHeader()
	return pl, nil
}

// Write implements io.Writer, so a PackageLogger can be wired directly as
// a subprocess's stdout/stderr sink.
func (pl *PackageLogger) Write(p []byte) (int, error) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.file.Write(p)
}

func (pl *PackageLogger) WriteHeader() {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	fmt.Fprintf(pl.file, "%s\n", strings.Repeat("=", 70))
	fmt.Fprintf(pl.file, "Build log: %s\n", pl.pkgName)
	fmt.Fprintf(pl.file, "Started: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(pl.file, "%s\n\n", strings.Repeat("=", 70))
}

func (pl *PackageLogger) WritePhase(phase string) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	fmt.Fprintf(pl.file, "\n%s\nPhase: %s\nTime: %s\n%s\n",
		strings.Repeat("=", 70), phase, time.Now().Format("15:04:05"), strings.Repeat("=", 70))
}

func (pl *PackageLogger) WriteCommand(cmd string) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	fmt.Fprintf(pl.file, "$ %s\n", cmd)
}

func (pl *PackageLogger) WriteWarning(msg string) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	fmt.Fprintf(pl.file, "WARNING: %s\n", msg)
}

func (pl *PackageLogger) WriteSuccess(duration time.Duration) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	fmt.Fprintf(pl.file, "\n%s\nBUILD SUCCESS\nCompleted: %s\nDuration: %s\n%s\n",
		strings.Repeat("=", 70), time.Now().Format(time.RFC3339), duration, strings.Repeat("=", 70))
}

func (pl *PackageLogger) WriteFailure(duration time.Duration, reason string) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	fmt.Fprintf(pl.file, "\n%s\nBUILD FAILED\nReason: %s\nCompleted: %s\nDuration: %s\n%s\n",
		strings.Repeat("=", 70), reason, time.Now().Format(time.RFC3339), duration, strings.Repeat("=", 70))
}

// Close flushes and closes the underlying file.
func (pl *PackageLogger) Close() error {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.file.Close()
}

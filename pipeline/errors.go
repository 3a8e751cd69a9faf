package pipeline

import "fmt"

// FailureKind classifies a pipeline failure, shared across every typed
// error so callers can branch on kind without a type switch over every
// concrete error type.
type FailureKind string

const (
	FailureConfig FailureKind = "CONFIG_ERROR"
	FailureToolMissing FailureKind = "TOOL_MISSING"
	FailureFetchFailed FailureKind = "FETCH_FAILED"
	FailurePatchFailed FailureKind = "PATCH_FAILED"
	FailureMissingDep FailureKind = "MISSING_DEP"
	FailureCycle FailureKind = "CYCLE"
	FailureBuildFailed FailureKind = "BUILD_FAILED"
	FailurePolicyBlocked FailureKind = "POLICY_BLOCKED"
	FailureRegistryError FailureKind = "REGISTRY_ERROR"
	FailureRetired FailureKind = "RETIRED"
	FailureTimeout FailureKind = "TIMEOUT"
	FailureUnknown FailureKind = "UNKNOWN"
)

// ExitCode returns the opaque small integer assigns to each
// failure kind, for the pipeline's process-level exit code taxonomy.
func (k FailureKind) ExitCode() int {
	switch k {
	case "":
		return 0
	case FailureConfig:
		return 1
	case FailureToolMissing:
		return 2
	case FailureFetchFailed:
		return 3
	case FailurePatchFailed:
		return 4
	case FailureMissingDep:
		return 5
	case FailureCycle:
		return 6
	case FailureBuildFailed:
		return 7
	case FailurePolicyBlocked:
		return 8
	case FailureRegistryError:
		return 9
	case FailureRetired:
		return 10
	case FailureTimeout:
		return 11
	default:
		return 12
	}
}

// ErrBuildFailed is the sentinel underlying every BuildError, so callers
// can test with errors.Is(err, pipeline.ErrBuildFailed) regardless of
// which phase produced it.
var ErrBuildFailed = fmt.Errorf("pipeline: package build failed")

// BuildError wraps a single package's pipeline failure with the phase and
// kind that produced it, following CycleError/
// PortNotFoundError wrapper pattern.
type BuildError struct {
	Package string
	Phase string
	Kind FailureKind
	Reason string
	WasLocked bool // set by FETCH_FAILED when the failure was a lock timeout
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	return fmt.Sprintf("%s: phase %s failed (%s): %s", e.Package, e.Phase, e.Kind, e.Reason)
}

// Unwrap allows errors.Is(err, ErrBuildFailed) to work correctly.
func (e *BuildError) Unwrap() error {
	return ErrBuildFailed
}

// NewBuildError constructs a *BuildError for the given phase and kind.
func NewBuildError(pkg, phase string, kind FailureKind, reason string) *BuildError {
	return &BuildError{Package: pkg, Phase: phase, Kind: kind, Reason: reason}
}

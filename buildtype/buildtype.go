// Package buildtype selects the build type (release, milestone, or
// snapshot) for a single package, as a single pure decision function
// with an explicit precedence order.
package buildtype

import "packastack/target"

// Type is the chosen build type for a package.
type Type string

const (
	TypeRelease Type = "release"
	TypeMilestone Type = "milestone"
	TypeSnapshot Type = "snapshot"
)

// Decision is the (pure) outcome of type selection: the chosen Type plus a
// short human-readable reason and, for release/milestone, the resolved
// upstream version string.
type Decision struct {
	Type Type
	Reason string
	Version string // empty for snapshot; resolved later from VCS HEAD
}

// Select implements the precedence chain:
// 1. override wins if set.
// 2. post-final series -> release.
// 3. pre-final & deliverable has a released version matching the series -> release.
// 4. pre-final & deliverable has only milestone tags -> milestone.
// 5. otherwise -> snapshot.
func Select(deliverable string, series string, stage target.CycleStage, meta ReleaseSource, override Type) Decision {
	if override != "" {
		d := Decision{Type: override, Reason: "explicit override"}
		if override != TypeSnapshot {
			if v, ok := meta.Released(series, deliverable); ok {
				d.Version = v
			}
		}
		return d
	}

	if stage == target.CycleStagePostFinal {
		v, _ := meta.Released(series, deliverable)
		return Decision{Type: TypeRelease, Reason: "post-final series", Version: v}
	}

	if v, ok := meta.Released(series, deliverable); ok {
		return Decision{Type: TypeRelease, Reason: "pre-final series with matching release", Version: v}
	}

	if tag, ok := meta.HighestMilestone(series, deliverable); ok {
		return Decision{Type: TypeMilestone, Reason: "pre-final series, highest milestone tag", Version: tag}
	}

	return Decision{Type: TypeSnapshot, Reason: "no release or milestone available, synthesizing from upstream HEAD"}
}

// ReleaseSource is the minimal read-only interface into release metadata
// that Select needs; target.ReleaseMetadata satisfies it.
type ReleaseSource interface {
	Released(series, deliverable string) (string, bool)
	HighestMilestone(series, deliverable string) (string, bool)
}

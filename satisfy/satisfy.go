// Package satisfy evaluates dependency constraints against up to three
// archive indices (dev, prior-LTS, and an optional cloud-archive
// overlay), reporting unsatisfied constraints as typed results rather
// than bare errors.
package satisfy

import (
	"packastack/archive"
	"packastack/version"
)

// Component mirrors archive.Component, re-exported so callers of this
// package need not import archive just to compare components.
type Component = archive.Component

const (
	ComponentMain = archive.ComponentMain
	ComponentUniverse = archive.ComponentUniverse
	ComponentOther = archive.ComponentOther
)

// IndexResult is the per-index outcome of evaluating one constraint.
type IndexResult struct {
	Found bool
	Version string
	Component Component
	Satisfied bool
	Reason string
}

// Result is the full per-constraint evaluation across all supplied
// indices.
type Result struct {
	Constraint version.Constraint
	Dev IndexResult
	PrevLTS IndexResult
	CloudArchiveRequired bool
	MIRWarning bool
	ChosenAlternative *version.Constraint
}

// Policy is the external min-version policy for unsatisfied constraints.
type Policy string

const (
	PolicyEnforce Policy = "enforce"
	PolicyWarn Policy = "warn"
	PolicyOff Policy = "off"
)

// Summary aggregates counts across a set of Results.
type Summary struct {
	Total int
	DevSatisfied int
	PrevLTSSatisfied int
	CloudArchiveRequired int
	MIRWarnings int
}

// Evaluate checks one constraint against dev, prevLTS, and the optional
// cloudArchive index, implementing the alternatives rule: a constraint
// whose primary is unsatisfied counts as satisfied if at least one
// alternative is satisfied under the same index.
func Evaluate(cmp version.Comparator, c version.Constraint, dev, prevLTS, cloudArchive *archive.Index) Result {
	r := Result{Constraint: c}
	r.Dev = evalIndex(cmp, c, dev)
	r.PrevLTS = evalIndex(cmp, c, prevLTS)

	if !r.Dev.Satisfied {
		for i := range c.Alternatives {
			alt := c.Alternatives[i]
			altResult := evalIndex(cmp, alt, dev)
			if altResult.Satisfied {
				r.Dev = altResult
				r.ChosenAlternative = &alt
				break
			}
		}
	}
	if !r.PrevLTS.Satisfied {
		for i := range c.Alternatives {
			alt := c.Alternatives[i]
			altResult := evalIndex(cmp, alt, prevLTS)
			if altResult.Satisfied {
				r.PrevLTS = altResult
				if r.ChosenAlternative == nil {
					r.ChosenAlternative = &alt
				}
				break
			}
		}
	}

	if !r.PrevLTS.Satisfied && cloudArchive != nil {
		caResult := evalIndex(cmp, c, cloudArchive)
		if !caResult.Satisfied {
			for i := range c.Alternatives {
				alt := c.Alternatives[i]
				if evalIndex(cmp, alt, cloudArchive).Satisfied {
					caResult.Satisfied = true
					break
				}
			}
		}
		r.CloudArchiveRequired = caResult.Satisfied
	}

	r.MIRWarning = r.Dev.Satisfied && r.Dev.Found && r.Dev.Component != ComponentMain

	return r
}

func evalIndex(cmp version.Comparator, c version.Constraint, idx *archive.Index) IndexResult {
	if idx == nil {
		return IndexResult{Reason: "no index supplied"}
	}
	rec, ok := idx.FindPackage(c.Name)
	if !ok {
		return IndexResult{Found: false, Reason: "package not found in index"}
	}
	res := IndexResult{Found: true, Version: rec.Version, Component: rec.Component}
	if c.Relation == version.RelNone {
		res.Satisfied = true
		res.Reason = "no version constraint"
		return res
	}
	if version.Satisfies(cmp, rec.Version, c.Relation, c.Version) {
		res.Satisfied = true
		res.Reason = "version constraint satisfied"
	} else {
		res.Reason = "available version does not satisfy constraint"
	}
	return res
}

// EvaluateAll evaluates every constraint and returns both the per-
// constraint results (sorted by constraint name for determinism) and
// the aggregate Summary.
func EvaluateAll(cmp version.Comparator, constraints []version.Constraint, dev, prevLTS, cloudArchive *archive.Index) ([]Result, Summary) {
	results := make([]Result, 0, len(constraints))
	var summary Summary
	summary.Total = len(constraints)
	for _, c := range constraints {
		r := Evaluate(cmp, c, dev, prevLTS, cloudArchive)
		if r.Dev.Satisfied {
			summary.DevSatisfied++
		}
		if r.PrevLTS.Satisfied {
			summary.PrevLTSSatisfied++
		}
		if r.CloudArchiveRequired {
			summary.CloudArchiveRequired++
		}
		if r.MIRWarning {
			summary.MIRWarnings++
		}
		results = append(results, r)
	}
	sortResultsByName(results)
	return results, summary
}

func sortResultsByName(rs []Result) {
	for i := 1; i < len(rs); i++ {
		for j := i; j > 0 && rs[j-1].Constraint.Name > rs[j].Constraint.Name; j-- {
			rs[j-1], rs[j] = rs[j], rs[j-1]
		}
	}
}

// Apply implements the min-version policy: for any result
// whose PrevLTS is unsatisfied and that does not require the cloud
// archive, enforce returns an error naming it, warn
// returns a warning message, and off returns neither.
func Apply(policy Policy, results []Result) (warnings []string, err error) {
	var failing []string
	for _, r := range results {
		if r.PrevLTS.Satisfied || r.CloudArchiveRequired {
			continue
		}
		switch policy {
		case PolicyEnforce:
			failing = append(failing, r.Constraint.Name)
		case PolicyWarn:
			warnings = append(warnings, "unsatisfied minimum version for "+r.Constraint.Name)
		case PolicyOff:
			// no-op
		}
	}
	if len(failing) > 0 {
		return warnings, &PolicyError{Names: failing}
	}
	return warnings, nil
}

// PolicyError reports constraints that failed an "enforce" min-version policy.
type PolicyError struct {
	Names []string
}

func (e *PolicyError) Error() string {
	msg := "satisfy: min-version policy violated for: "
	for i, n := range e.Names {
		if i > 0 {
			msg += ", "
		}
		msg += n
	}
	return msg
}

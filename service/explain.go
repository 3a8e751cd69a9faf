package service

import (
	"fmt"

	"packastack/reports"
	"packastack/target"
)

// Explain resolves expr within plan's package set and renders a
// TargetExplanation for it: the chosen build type and reason, resolved
// version, and dependency satisfaction summary.
func (s *Service) Explain(universe *target.Universe, expr string, plan *Plan) (reports.TargetExplanation, error) {
	roots, err := s.resolveRoots(universe, []string{expr})
	if err != nil {
		return reports.TargetExplanation{}, err
	}
	name := roots[0]

	decision, ok := plan.Decisions[name]
	if !ok {
		return reports.TargetExplanation{}, fmt.Errorf("service: %q is not part of this plan", name)
	}
	pv, ok := plan.Manifest.Version(name)
	if !ok {
		return reports.TargetExplanation{}, fmt.Errorf("service: no resolved version for %q", name)
	}
	return reports.BuildExplanation(name, pv.String(), decision, plan.SatisfyResults[name]), nil
}

package service

import (
	"fmt"

	"packastack/target"
)

// Search resolves expr against universe without requiring a unique
// match, returning every matching Identity (the "all-matches escape
// hatch" exposed as its own CLI verb rather than requiring --all on
// every other command).
func (s *Service) Search(universe *target.Universe, expr string) ([]target.Identity, error) {
	parsed, err := target.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("service: parsing search expression %q: %w", expr, err)
	}
	result, err := target.Search(universe, parsed)
	if err != nil {
		return nil, fmt.Errorf("service: searching %q: %w", expr, err)
	}
	return result.Matches, nil
}

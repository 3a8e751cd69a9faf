package pipeline

import "fmt"

// Branch name templates for the fetch phase's fallback list, named literally rather than hardcoding a single branch,
// mirroring gbp.conf's debian-branch/upstream-branch convention.
const (
	BranchDownstreamUpstream = "%s/%s" // "<downstream>/<upstream>", e.g. "ubuntu/noble"
	BranchDownstreamLatest = "%s/latest"
	BranchMain = "main"
	BranchMaster = "master"
)

// DefaultBranchPriority renders the standard branch fallback list for a
// downstream series against its upstream series, in the order the fetch
// phase tries them.
func DefaultBranchPriority(downstreamSeries, upstreamSeries string) []string {
	return []string{
		fmt.Sprintf(BranchDownstreamUpstream, downstreamSeries, upstreamSeries),
		fmt.Sprintf(BranchDownstreamLatest, downstreamSeries),
		BranchMain,
		BranchMaster,
	}
}

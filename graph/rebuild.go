package graph

// MarkNeedsRebuild flags name and every transitive dependent as needing a
// rebuild. Nodes already marked keep
// their original reason; newly marked dependents record reason as the
// trigger that reached them.
func (g *Graph) MarkNeedsRebuild(name, reason string) {
	root, ok := g.nodes[name]
	if !ok {
		return
	}
	if !root.NeedsRebuild {
		root.NeedsRebuild = true
		root.Reason = reason
	}

	visited := make(map[string]bool)
	queue := []string{name}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true

		for _, dependent := range sortedKeys(g.reverse[cur]) {
			n := g.nodes[dependent]
			if !n.NeedsRebuild {
				n.NeedsRebuild = true
				n.Reason = "depends on " + name + " (" + reason + ")"
			}
			queue = append(queue, dependent)
		}
	}
}

// GetRebuildOrder returns the names flagged NeedsRebuild, restricted to
// topological order (dependencies first). When the graph contains cycles,
// the cycle-tolerant condensation order is used instead.
func (g *Graph) GetRebuildOrder() []string {
	var order []string
	if sorted, err := g.TopologicalSort(); err == nil {
		order = sorted
	} else {
		waves := g.ComputeWavesWithCycles()
		order = append(order, g.order...)
		sortByWaveThenName(order, waves)
	}

	out := make([]string, 0, len(order))
	for _, name := range order {
		if n := g.nodes[name]; n != nil && n.NeedsRebuild {
			out = append(out, name)
		}
	}
	return out
}

func sortByWaveThenName(names []string, waves map[string]int) {
	for i := 1; i < len(names); i++ {
		for j := i; j > 0; j-- {
			a, b := names[j-1], names[j]
			if waves[a] > waves[b] || (waves[a] == waves[b] && a > b) {
				names[j-1], names[j] = names[j], names[j-1]
			} else {
				break
			}
		}
	}
}

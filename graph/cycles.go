package graph

import (
	"sort"
	"strconv"
)

// DetectCycles returns every strongly connected component, using Tarjan's
// algorithm. Each SCC is
// returned as a sorted slice of node names; SCCs of size 1 are included
// only when the single node has a self-loop (a degenerate cycle).
func (g *Graph) DetectCycles() [][]string {
	t := &tarjan{
		g: g,
		index: make(map[string]int),
		lowlink: make(map[string]int),
		onStack: make(map[string]bool),
	}
	for _, name := range g.order {
		if _, seen := t.index[name]; !seen {
			t.strongconnect(name)
		}
	}

	var out [][]string
	for _, scc := range t.sccs {
		if len(scc) > 1 || (len(scc) == 1 && g.HasEdge(scc[0], scc[0])) {
			sorted := append([]string(nil), scc...)
			sort.Strings(sorted)
			out = append(out, sorted)
		}
	}
	return out
}

type tarjan struct {
	g *Graph
	index map[string]int
	lowlink map[string]int
	onStack map[string]bool
	stack []string
	counter int
	sccs [][]string
}

func (t *tarjan) strongconnect(v string) {
	t.index[v] = t.counter
	t.lowlink[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for w := range t.g.forward[v] {
		if _, seen := t.index[w]; !seen {
			t.strongconnect(w)
			if t.lowlink[w] < t.lowlink[v] {
				t.lowlink[v] = t.lowlink[w]
			}
		} else if t.onStack[w] {
			if t.index[w] < t.lowlink[v] {
				t.lowlink[v] = t.index[w]
			}
		}
	}

	if t.lowlink[v] == t.index[v] {
		var scc []string
		for {
			n := len(t.stack) - 1
			w := t.stack[n]
			t.stack = t.stack[:n]
			t.onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		t.sccs = append(t.sccs, scc)
	}
}

// sccIndex maps every node in a multi-member (or self-looping) SCC to a
// stable identifier for that SCC, derived from DetectCycles.
func (g *Graph) sccIndex() (map[string]int, [][]string) {
	cycles := g.DetectCycles()
	idx := make(map[string]int, len(g.order))
	for i, scc := range cycles {
		for _, name := range scc {
			idx[name] = i
		}
	}
	return idx, cycles
}

// GetCycleEdges returns every edge whose endpoints lie in the same SCC of
// size > 1, plus self-loops.
func (g *Graph) GetCycleEdges() [][2]string {
	idx, _ := g.sccIndex()
	var out [][2]string
	for from, tos := range g.forward {
		fromSCC, inSCC := idx[from]
		for to := range tos {
			if from == to {
				out = append(out, [2]string{from, to})
				continue
			}
			toSCC, toInSCC := idx[to]
			if inSCC && toInSCC && fromSCC == toSCC {
				out = append(out, [2]string{from, to})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

// CycleError is returned by TopologicalSort when the graph is not a DAG.
type CycleError struct {
	Cycles [][]string
}

func (e *CycleError) Error() string {
	return "graph: cycle detected"
}

// TopologicalSort returns a linearization with dependencies first. It
// errors with *CycleError if any SCC of size > 1 exists.
func (g *Graph) TopologicalSort() ([]string, error) {
	if cycles := g.DetectCycles(); len(cycles) > 0 {
		return nil, &CycleError{Cycles: cycles}
	}
	return g.kahn(g.order), nil
}

// kahn runs Kahn's algorithm restricted to the given candidate node names,
// breaking ties by name for determinism.
func (g *Graph) kahn(candidates []string) []string {
	inDegree := make(map[string]int, len(candidates))
	inSet := make(map[string]bool, len(candidates))
	for _, name := range candidates {
		inSet[name] = true
	}
	for _, name := range candidates {
		count := 0
		for dep := range g.forward[name] {
			if inSet[dep] {
				count++
			}
		}
		inDegree[name] = count
	}

	var queue []string
	for _, name := range candidates {
		if inDegree[name] == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	result := make([]string, 0, len(candidates))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		result = append(result, n)

		var newlyReady []string
		for dependent := range g.reverse[n] {
			if !inSet[dependent] {
				continue
			}
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				newlyReady = append(newlyReady, dependent)
			}
		}
		sort.Strings(newlyReady)
		queue = append(queue, newlyReady...)
		sort.Strings(queue)
	}
	return result
}

// ComputeWaves assigns each node a wave = 1 + max(wave of its
// dependencies), or 0 if it has none. Requires a DAG; returns
// *CycleError otherwise.
func (g *Graph) ComputeWaves() (map[string]int, error) {
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}
	waves := make(map[string]int, len(order))
	for _, name := range order {
		max := -1
		for dep := range g.forward[name] {
			if w, ok := waves[dep]; ok && w > max {
				max = w
			}
		}
		waves[name] = max + 1
	}
	return waves, nil
}

// ComputeWavesWithCycles condenses SCCs to single nodes, topologically
// sorts the condensation, and assigns the condensation's wave to every
// member, so waves are well-defined even in the presence of cycles.
func (g *Graph) ComputeWavesWithCycles() map[string]int {
	idx, cycles := g.sccIndex()

	// Build the condensation graph over synthetic component names.
	cg := New()
	componentOf := make(map[string]string, len(g.order))
	for _, name := range g.order {
		comp, inCycle := idx[name]
		var compName string
		if inCycle {
			compName = sccName(comp)
		} else {
			compName = "n:" + name
		}
		componentOf[name] = compName
		if _, ok := cg.Node(compName); !ok {
			cg.AddNode(Node{Name: compName})
		}
	}
	for from, tos := range g.forward {
		cf := componentOf[from]
		for to := range tos {
			ct := componentOf[to]
			if cf == ct {
				continue
			}
			_ = cg.AddEdge(cf, ct)
		}
	}

	compWaves, err := cg.ComputeWaves()
	if err != nil {
		// The condensation is constructed to be acyclic by definition;
		// this should be unreachable.
		compWaves = make(map[string]int)
	}

	waves := make(map[string]int, len(g.order))
	for _, name := range g.order {
		waves[name] = compWaves[componentOf[name]]
	}
	_ = cycles
	return waves
}

func sccName(i int) string {
	return "scc:" + strconv.Itoa(i)
}

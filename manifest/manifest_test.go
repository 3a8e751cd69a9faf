package manifest

import (
	"testing"

	"packastack/buildtype"
	"packastack/graph"
)

type fakeRevisions struct {
	revisions map[string]string
	epochs    map[string]int
}

func (f fakeRevisions) Revision(name string) (string, int, bool) {
	r, ok := f.revisions[name]
	if !ok {
		return "", 0, false
	}
	return r, f.epochs[name], true
}

type fakeSnapshotter struct{}

func (fakeSnapshotter) Snapshot(name string) (string, string, string, error) {
	return "1.0.0", "20260101", "abc1234", nil
}

func buildGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	g.AddNode(graph.Node{Name: "a"})
	g.AddNode(graph.Node{Name: "b"})
	g.AddNode(graph.Node{Name: "c"})
	if err := g.AddEdge("a", "b"); err != nil {
		t.Fatal(err)
	}
	if err := g.AddEdge("b", "c"); err != nil {
		t.Fatal(err)
	}
	return g
}

// manifest precedence.
func TestBuildOrderRespectsDependencies(t *testing.T) {
	g := buildGraph(t)
	decisions := map[string]buildtype.Decision{
		"a": {Type: buildtype.TypeRelease, Version: "1.0"},
		"b": {Type: buildtype.TypeRelease, Version: "2.0"},
		"c": {Type: buildtype.TypeRelease, Version: "3.0"},
	}
	rev := fakeRevisions{revisions: map[string]string{}, epochs: map[string]int{}}
	m, err := Build(g, []string{"a", "b", "c"}, decisions, rev, fakeSnapshotter{}, "noble")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := ValidateInvariants(m, g, []string{"a", "b", "c"}); err != nil {
		t.Fatalf("ValidateInvariants: %v", err)
	}
	if m.BuildOrder[0] != "c" || m.BuildOrder[2] != "a" {
		t.Errorf("expected c before a, got %v", m.BuildOrder)
	}
}

func TestBuildFallsBackOnCycle(t *testing.T) {
	g := graph.New()
	g.AddNode(graph.Node{Name: "a"})
	g.AddNode(graph.Node{Name: "b"})
	if err := g.AddEdge("a", "b"); err != nil {
		t.Fatal(err)
	}
	if err := g.AddEdge("b", "a"); err != nil {
		t.Fatal(err)
	}
	decisions := map[string]buildtype.Decision{
		"a": {Type: buildtype.TypeRelease, Version: "1.0"},
		"b": {Type: buildtype.TypeRelease, Version: "2.0"},
	}
	rev := fakeRevisions{revisions: map[string]string{}, epochs: map[string]int{}}
	m, err := Build(g, []string{"a", "b"}, decisions, rev, fakeSnapshotter{}, "noble")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if m.CycleWarning == "" {
		t.Error("expected a cycle warning to be recorded")
	}
	if len(m.BuildOrder) != 2 {
		t.Errorf("expected both packages still present in fallback order, got %v", m.BuildOrder)
	}
}

func TestSnapshotVersionFormat(t *testing.T) {
	g := graph.New()
	g.AddNode(graph.Node{Name: "a"})
	decisions := map[string]buildtype.Decision{
		"a": {Type: buildtype.TypeSnapshot},
	}
	rev := fakeRevisions{revisions: map[string]string{}, epochs: map[string]int{}}
	m, err := Build(g, []string{"a"}, decisions, rev, fakeSnapshotter{}, "noble")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	pv, _ := m.Version("a")
	want := "1.0.0~git20260101.abc1234"
	if pv.UpstreamVersion != want {
		t.Errorf("expected snapshot version %q, got %q", want, pv.UpstreamVersion)
	}
	if pv.Revision != "0ubuntu1" {
		t.Errorf("expected default revision 0ubuntu1, got %q", pv.Revision)
	}
}

func TestRevisionAndEpochPreserved(t *testing.T) {
	g := graph.New()
	g.AddNode(graph.Node{Name: "a"})
	decisions := map[string]buildtype.Decision{
		"a": {Type: buildtype.TypeRelease, Version: "5.0"},
	}
	rev := fakeRevisions{
		revisions: map[string]string{"a": "2ubuntu3"},
		epochs:    map[string]int{"a": 1},
	}
	m, err := Build(g, []string{"a"}, decisions, rev, fakeSnapshotter{}, "noble")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	pv, _ := m.Version("a")
	if pv.String() != "1:5.0-2ubuntu3" {
		t.Errorf("expected 1:5.0-2ubuntu3, got %s", pv.String())
	}
}

type fakeFloor struct {
	floors map[string]string
}

func (f fakeFloor) Floor(name string) (string, bool) {
	v, ok := f.floors[name]
	return v, ok
}

func lexCompare(a, b string) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func TestApplyPriorLTSFloorRaisesLowVersions(t *testing.T) {
	g := graph.New()
	g.AddNode(graph.Node{Name: "a"})
	decisions := map[string]buildtype.Decision{
		"a": {Type: buildtype.TypeRelease, Version: "1.0"},
	}
	rev := fakeRevisions{revisions: map[string]string{}, epochs: map[string]int{}}
	m, err := Build(g, []string{"a"}, decisions, rev, fakeSnapshotter{}, "noble")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	floor := fakeFloor{floors: map[string]string{"a": "9.0"}}
	raised := ApplyPriorLTSFloor(m, floor, lexCompare)

	orig, _ := m.Version("a")
	if orig.UpstreamVersion != "1.0" {
		t.Error("expected original manifest to remain unmodified")
	}
	got, _ := raised.Version("a")
	if got.UpstreamVersion != "9.0" {
		t.Errorf("expected floor-raised version 9.0, got %s", got.UpstreamVersion)
	}
}

package satisfy

import (
	"strings"
	"testing"

	"packastack/archive"
	"packastack/version"
)

func lexCompare(a, b string) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func newIndex(records ...archive.BinaryRecord) *archive.Index {
	ix := archive.New(lexCompare)
	for _, r := range records {
		ix.Add(r)
	}
	return ix
}

// Satisfaction with MIR warning.
func TestEvaluateMIRWarning(t *testing.T) {
	dev := newIndex(archive.BinaryRecord{
		Name: "libfoo", Version: "2.0", Architecture: "amd64",
		SourceName: "libfoo", Component: archive.ComponentUniverse,
	})
	c := version.Constraint{Name: "libfoo", Relation: version.RelGE, Version: "1.0"}
	r := Evaluate(lexCompare, c, dev, nil, nil)
	if !r.Dev.Satisfied {
		t.Fatal("expected dev satisfaction")
	}
	if !r.MIRWarning {
		t.Error("expected MIR warning for non-main component")
	}
}

func TestEvaluateCloudArchiveRequired(t *testing.T) {
	prevLTS := newIndex(archive.BinaryRecord{
		Name: "libfoo", Version: "1.0", Architecture: "amd64",
		SourceName: "libfoo", Component: archive.ComponentMain,
	})
	cloudArchive := newIndex(archive.BinaryRecord{
		Name: "libfoo", Version: "3.0", Architecture: "amd64",
		SourceName: "libfoo", Component: archive.ComponentMain,
	})
	c := version.Constraint{Name: "libfoo", Relation: version.RelGE, Version: "2.0"}
	r := Evaluate(lexCompare, c, nil, prevLTS, cloudArchive)
	if r.PrevLTS.Satisfied {
		t.Fatal("expected prev_lts unsatisfied")
	}
	if !r.CloudArchiveRequired {
		t.Error("expected cloud_archive_required true")
	}
}

func TestEvaluateAlternativeSatisfies(t *testing.T) {
	dev := newIndex(archive.BinaryRecord{
		Name: "libbar", Version: "1.0", Architecture: "amd64",
		SourceName: "libbar", Component: archive.ComponentMain,
	})
	c := version.Constraint{
		Name: "libfoo", Relation: version.RelGE, Version: "1.0",
		Alternatives: []version.Constraint{
			{Name: "libbar", Relation: version.RelGE, Version: "1.0"},
		},
	}
	r := Evaluate(lexCompare, c, dev, nil, nil)
	if !r.Dev.Satisfied {
		t.Fatal("expected alternative to satisfy dev")
	}
	if r.ChosenAlternative == nil || r.ChosenAlternative.Name != "libbar" {
		t.Errorf("expected chosen alternative libbar, got %v", r.ChosenAlternative)
	}
}

// Satisfaction monotonicity -- a higher available version never
// un-satisfies a >= constraint once satisfied.
func TestSatisfactionMonotonicity(t *testing.T) {
	versions := []string{"1.0", "1.5", "2.0", "9.0"}
	c := version.Constraint{Name: "libfoo", Relation: version.RelGE, Version: "1.0"}
	for _, v := range versions {
		dev := newIndex(archive.BinaryRecord{
			Name: "libfoo", Version: v, Architecture: "amd64",
			SourceName: "libfoo", Component: archive.ComponentMain,
		})
		r := Evaluate(lexCompare, c, dev, nil, nil)
		if !r.Dev.Satisfied {
			t.Errorf("version %s should satisfy >= 1.0", v)
		}
	}
}

func TestEvaluateAllSortedByName(t *testing.T) {
	dev := newIndex(
		archive.BinaryRecord{Name: "zeta", Version: "1.0", Architecture: "amd64", SourceName: "zeta", Component: archive.ComponentMain},
		archive.BinaryRecord{Name: "alpha", Version: "1.0", Architecture: "amd64", SourceName: "alpha", Component: archive.ComponentMain},
	)
	constraints := []version.Constraint{
		{Name: "zeta", Relation: version.RelGE, Version: "1.0"},
		{Name: "alpha", Relation: version.RelGE, Version: "1.0"},
	}
	results, summary := EvaluateAll(lexCompare, constraints, dev, nil, nil)
	if results[0].Constraint.Name != "alpha" || results[1].Constraint.Name != "zeta" {
		t.Errorf("expected sorted order alpha, zeta, got %v", results)
	}
	if summary.Total != 2 || summary.DevSatisfied != 2 {
		t.Errorf("unexpected summary: %+v", summary)
	}
}

func TestApplyEnforcePolicyFails(t *testing.T) {
	c := version.Constraint{Name: "libfoo", Relation: version.RelGE, Version: "5.0"}
	r := Evaluate(lexCompare, c, nil, nil, nil)
	_, err := Apply(PolicyEnforce, []Result{r})
	if err == nil || !strings.Contains(err.Error(), "libfoo") {
		t.Errorf("expected enforce policy error naming libfoo, got %v", err)
	}
}

func TestApplyWarnPolicyProducesWarningsOnly(t *testing.T) {
	c := version.Constraint{Name: "libfoo", Relation: version.RelGE, Version: "5.0"}
	r := Evaluate(lexCompare, c, nil, nil, nil)
	warnings, err := Apply(PolicyWarn, []Result{r})
	if err != nil {
		t.Fatalf("expected no error under warn policy, got %v", err)
	}
	if len(warnings) != 1 {
		t.Errorf("expected one warning, got %v", warnings)
	}
}

package buildtype

import (
	"testing"

	"packastack/target"
)

func TestSelectExplicitOverrideWins(t *testing.T) {
	meta := target.NewReleaseMetadata()
	meta.RecordRelease("noble", "nova", "29.0.0", 1)
	d := Select("nova", "noble", target.CycleStagePreFinal, meta, TypeSnapshot)
	if d.Type != TypeSnapshot || d.Reason != "explicit override" {
		t.Errorf("expected override to win, got %+v", d)
	}
}

func TestSelectPostFinalSeriesUsesRelease(t *testing.T) {
	meta := target.NewReleaseMetadata()
	meta.RecordRelease("jammy", "nova", "25.1.0", 1)
	d := Select("nova", "jammy", target.CycleStagePostFinal, meta, "")
	if d.Type != TypeRelease || d.Version != "25.1.0" {
		t.Errorf("expected release 25.1.0, got %+v", d)
	}
}

func TestSelectPreFinalWithMatchingRelease(t *testing.T) {
	meta := target.NewReleaseMetadata()
	meta.RecordRelease("noble", "nova", "29.0.0", 2)
	d := Select("nova", "noble", target.CycleStagePreFinal, meta, "")
	if d.Type != TypeRelease || d.Version != "29.0.0" {
		t.Errorf("expected pre-final release match, got %+v", d)
	}
}

func TestSelectPreFinalWithOnlyMilestone(t *testing.T) {
	meta := target.NewReleaseMetadata()
	meta.RecordMilestones("noble", "nova", []string{"29.0.0.0rc1", "29.0.0.0rc2"})
	d := Select("nova", "noble", target.CycleStagePreFinal, meta, "")
	if d.Type != TypeMilestone || d.Version != "29.0.0.0rc2" {
		t.Errorf("expected highest milestone, got %+v", d)
	}
}

func TestSelectFallsBackToSnapshot(t *testing.T) {
	meta := target.NewReleaseMetadata()
	d := Select("nova", "noble", target.CycleStagePreFinal, meta, "")
	if d.Type != TypeSnapshot {
		t.Errorf("expected snapshot fallback, got %+v", d)
	}
}

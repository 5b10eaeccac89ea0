package core

import (
	"errors"
	"testing"
	"time"

	"github.com/valter-silva-au/taskflow/pkg/models"
)

func TestStages_Order(t *testing.T) {
	want := []models.Stage{
		models.StagePlanning,
		models.StageImplementation,
		models.StageTesting,
		models.StageReview,
		models.StageDocumentation,
		models.StageReady,
	}
	got := Stages()
	if len(got) != len(want) {
		t.Fatalf("expected %d stages, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("stage %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestStages_ReturnsCopy(t *testing.T) {
	got := Stages()
	got[0] = "tampered"
	if Stages()[0] != models.StagePlanning {
		t.Fatal("mutating the returned slice must not affect the sequence")
	}
}

func TestEntryStage(t *testing.T) {
	if EntryStage() != models.StagePlanning {
		t.Fatalf("expected planning, got %s", EntryStage())
	}
}

func TestStageIndex_Unknown(t *testing.T) {
	if idx := StageIndex("deploying"); idx != -1 {
		t.Fatalf("expected -1 for unknown stage, got %d", idx)
	}
}

func TestIsValidTransition(t *testing.T) {
	cases := []struct {
		from, to models.Stage
		valid    bool
	}{
		{models.StagePlanning, models.StageImplementation, true},
		{models.StageImplementation, models.StageTesting, true},
		{models.StageDocumentation, models.StageReady, true},
		{models.StagePlanning, models.StageTesting, false},        // skip
		{models.StageTesting, models.StageImplementation, false},  // backward
		{models.StageReview, models.StageReview, false},           // same stage
		{models.StageReady, models.StagePlanning, false},          // terminal
		{models.Stage("deploying"), models.StagePlanning, false},  // unknown from
		{models.StagePlanning, models.Stage("deploying"), false},  // unknown to
	}
	for _, tc := range cases {
		if got := IsValidTransition(tc.from, tc.to); got != tc.valid {
			t.Fatalf("IsValidTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.valid)
		}
	}
}

func TestNextStage(t *testing.T) {
	next, ok := NextStage(models.StagePlanning)
	if !ok || next != models.StageImplementation {
		t.Fatalf("expected implementation, got %s (ok=%v)", next, ok)
	}
	if _, ok := NextStage(models.StageReady); ok {
		t.Fatal("ready is terminal, expected no next stage")
	}
	if _, ok := NextStage("deploying"); ok {
		t.Fatal("unknown stage must have no next stage")
	}
}

func TestProgress(t *testing.T) {
	cases := map[models.Stage]int{
		models.StagePlanning:       0,
		models.StageImplementation: 20,
		models.StageTesting:        40,
		models.StageReview:         60,
		models.StageDocumentation:  80,
		models.StageReady:          100,
	}
	for stage, want := range cases {
		if got := Progress(stage); got != want {
			t.Fatalf("Progress(%s) = %d, want %d", stage, got, want)
		}
	}
	if got := Progress("deploying"); got != 0 {
		t.Fatalf("Progress(unknown) = %d, want 0", got)
	}
}

func TestValidateStateHistory_Valid(t *testing.T) {
	now := time.Now().UTC()
	w := &models.Workflow{
		CurrentState: models.StageTesting,
		StateHistory: []models.StateHistoryEntry{
			{State: models.StagePlanning, EnteredAt: now.Add(-2 * time.Hour)},
			{State: models.StageImplementation, EnteredAt: now.Add(-time.Hour)},
		},
	}
	if err := ValidateStateHistory(w); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateStateHistory_NilWorkflow(t *testing.T) {
	if err := ValidateStateHistory(nil); err != nil {
		t.Fatalf("unexpected error for nil workflow: %v", err)
	}
}

func TestValidateStateHistory_CurrentInHistory(t *testing.T) {
	w := &models.Workflow{
		CurrentState: models.StageImplementation,
		StateHistory: []models.StateHistoryEntry{
			{State: models.StagePlanning},
			{State: models.StageImplementation},
		},
	}
	err := ValidateStateHistory(w)
	var corrupt *StateHistoryCorruptionError
	if !errors.As(err, &corrupt) {
		t.Fatalf("expected StateHistoryCorruptionError, got %v", err)
	}
	if corrupt.State != models.StageImplementation {
		t.Fatalf("expected offending state implementation, got %s", corrupt.State)
	}
}

func TestValidateStateHistory_NonSequential(t *testing.T) {
	w := &models.Workflow{
		CurrentState: models.StageReview,
		StateHistory: []models.StateHistoryEntry{
			{State: models.StagePlanning},
			{State: models.StageTesting}, // implementation skipped
		},
	}
	err := ValidateStateHistory(w)
	var corrupt *StateHistoryCorruptionError
	if !errors.As(err, &corrupt) {
		t.Fatalf("expected StateHistoryCorruptionError, got %v", err)
	}
	if corrupt.From != models.StagePlanning || corrupt.To != models.StageTesting {
		t.Fatalf("expected offending pair planning -> testing, got %s -> %s", corrupt.From, corrupt.To)
	}
}

func TestValidateStateHistory_UnknownStage(t *testing.T) {
	w := &models.Workflow{
		CurrentState: models.StageImplementation,
		StateHistory: []models.StateHistoryEntry{{State: "deploying"}},
	}
	var corrupt *StateHistoryCorruptionError
	if !errors.As(ValidateStateHistory(w), &corrupt) {
		t.Fatal("expected StateHistoryCorruptionError for unknown stage")
	}
}

func TestNewWorkflow(t *testing.T) {
	now := time.Now().UTC()
	w := NewWorkflow(now)
	if w.CurrentState != models.StagePlanning {
		t.Fatalf("expected planning, got %s", w.CurrentState)
	}
	if !w.StateEnteredAt.Equal(now) {
		t.Fatalf("expected StateEnteredAt %v, got %v", now, w.StateEnteredAt)
	}
	if w.StateHistory == nil || len(w.StateHistory) != 0 {
		t.Fatalf("expected empty non-nil history, got %v", w.StateHistory)
	}
}

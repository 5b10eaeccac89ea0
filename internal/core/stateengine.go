// Package core contains the business logic for taskflow: workflow stage
// sequencing, the checklist gate, the lifecycle orchestrator, priority
// detection, pattern loading, and configuration.
package core

import (
	"math"
	"time"

	"github.com/valter-silva-au/taskflow/pkg/models"
)

// stageSequence is the fixed forward-only workflow. Stage 0 is the entry
// stage, the last stage is terminal.
var stageSequence = []models.Stage{
	models.StagePlanning,
	models.StageImplementation,
	models.StageTesting,
	models.StageReview,
	models.StageDocumentation,
	models.StageReady,
}

// Stages returns the workflow stages in order.
func Stages() []models.Stage {
	out := make([]models.Stage, len(stageSequence))
	copy(out, stageSequence)
	return out
}

// EntryStage returns the stage a newly activated task starts in.
func EntryStage() models.Stage {
	return stageSequence[0]
}

// StageIndex returns the position of a stage in the sequence, or -1 for an
// unknown stage.
func StageIndex(s models.Stage) int {
	for i, stage := range stageSequence {
		if stage == s {
			return i
		}
	}
	return -1
}

// IsValidTransition reports whether moving from one stage to another is a
// legal single forward step. Backward moves, same-stage moves, skips, and
// unknown stages are all rejected; this is the single rule that prevents
// quality-gate bypass.
func IsValidTransition(from, to models.Stage) bool {
	fromIdx := StageIndex(from)
	toIdx := StageIndex(to)
	if fromIdx < 0 || toIdx < 0 {
		return false
	}
	return toIdx == fromIdx+1
}

// NextStage returns the stage one ahead of current, or false if current is
// terminal or unknown.
func NextStage(current models.Stage) (models.Stage, bool) {
	idx := StageIndex(current)
	if idx < 0 || idx >= len(stageSequence)-1 {
		return "", false
	}
	return stageSequence[idx+1], true
}

// Progress returns the percentage of the workflow completed at the given
// stage, rounded to the nearest integer.
func Progress(current models.Stage) int {
	idx := StageIndex(current)
	if idx < 0 {
		return 0
	}
	return int(math.Round(float64(idx) / float64(len(stageSequence)-1) * 100))
}

// ValidateStateHistory checks a workflow's recorded history for integrity.
// History must contain only completed stages, never the current one, and
// every adjacent pair must be a valid forward transition. Violations return
// a *StateHistoryCorruptionError carrying the offending state or pair.
func ValidateStateHistory(w *models.Workflow) error {
	if w == nil {
		return nil
	}
	for _, entry := range w.StateHistory {
		if StageIndex(entry.State) < 0 {
			return &StateHistoryCorruptionError{
				Reason: "history contains an unknown stage",
				State:  entry.State,
			}
		}
		if entry.State == w.CurrentState {
			return &StateHistoryCorruptionError{
				Reason: "history contains the current stage",
				State:  w.CurrentState,
			}
		}
	}
	for i := 1; i < len(w.StateHistory); i++ {
		prev := w.StateHistory[i-1].State
		next := w.StateHistory[i].State
		if !IsValidTransition(prev, next) {
			return &StateHistoryCorruptionError{
				Reason: "history is not a sequential forward progression",
				From:   prev,
				To:     next,
			}
		}
	}
	return nil
}

// NewWorkflow returns a workflow positioned at the entry stage.
func NewWorkflow(now time.Time) *models.Workflow {
	return &models.Workflow{
		CurrentState:   EntryStage(),
		StateEnteredAt: now,
		StateHistory:   []models.StateHistoryEntry{},
	}
}

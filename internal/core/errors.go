package core

import (
	"fmt"
	"strings"

	"github.com/valter-silva-au/taskflow/pkg/models"
)

// ValidationError reports malformed input, such as a goal outside the
// allowed length range or a missing mandatory field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TaskNotFoundError reports a lookup for a task ID that does not exist.
type TaskNotFoundError struct {
	ID string
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task %s not found", e.ID)
}

// StateTransitionError reports an illegal stage jump requested by a caller.
// Next is the single legal next stage, or empty when From is terminal.
type StateTransitionError struct {
	From models.Stage
	To   models.Stage
	Next models.Stage
}

func (e *StateTransitionError) Error() string {
	if e.Next == "" {
		return fmt.Sprintf("invalid transition %s -> %s: %s is the terminal stage", e.From, e.To, e.From)
	}
	return fmt.Sprintf("invalid transition %s -> %s: the only valid next stage is %s", e.From, e.To, e.Next)
}

// StateHistoryCorruptionError reports persisted workflow history that
// cannot have been produced by legal transitions: the current stage
// appearing inside its own history, or a non-sequential adjacent pair.
// It is kept distinct from StateTransitionError so callers can tell
// "user tried an illegal jump" from "persisted data is corrupted".
type StateHistoryCorruptionError struct {
	Reason string
	State  models.Stage // offending state for current-in-history corruption
	From   models.Stage // offending pair for sequence corruption
	To     models.Stage
}

func (e *StateHistoryCorruptionError) Error() string {
	if e.State != "" {
		return fmt.Sprintf("state history corrupted: %s (state %s)", e.Reason, e.State)
	}
	return fmt.Sprintf("state history corrupted: %s (%s -> %s)", e.Reason, e.From, e.To)
}

// StateChecklistIncompleteError blocks a stage transition and enumerates
// every still-incomplete required item, not just the first.
type StateChecklistIncompleteError struct {
	Stage   models.Stage
	Missing []models.ChecklistItem
}

func (e *StateChecklistIncompleteError) Error() string {
	labels := make([]string, len(e.Missing))
	for i, item := range e.Missing {
		labels[i] = item.Label
	}
	return fmt.Sprintf("checklist for stage %s has %d incomplete required item(s): %s",
		e.Stage, len(e.Missing), strings.Join(labels, "; "))
}

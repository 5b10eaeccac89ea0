// Package models contains the shared data types for taskflow: tasks, the
// task queue, workflow state, checklists, and evidence payloads.
package models

import "time"

// TaskStatus represents the current lifecycle state of a task.
type TaskStatus string

const (
	StatusQueued   TaskStatus = "queued"
	StatusActive   TaskStatus = "active"
	StatusDone     TaskStatus = "done"
	StatusArchived TaskStatus = "archived"
)

// Priority represents the urgency level of a task.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// PriorityTier returns the sort tier for a priority, critical first.
// Unknown priorities sort last.
func PriorityTier(p Priority) int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	}
	return 4
}

// Stage is one of the six fixed workflow steps a task passes through,
// strictly forward-only.
type Stage string

const (
	StagePlanning       Stage = "planning"
	StageImplementation Stage = "implementation"
	StageTesting        Stage = "testing"
	StageReview         Stage = "review"
	StageDocumentation  Stage = "documentation"
	StageReady          Stage = "ready"
)

// StateHistoryEntry records a completed workflow stage, stamped with when
// the task entered it. History never contains the current stage.
type StateHistoryEntry struct {
	State     Stage     `json:"state"`
	EnteredAt time.Time `json:"enteredAt"`
}

// Workflow tracks a task's position in the six-stage sequence.
type Workflow struct {
	CurrentState   Stage               `json:"currentState"`
	StateEnteredAt time.Time           `json:"stateEnteredAt"`
	StateHistory   []StateHistoryEntry `json:"stateHistory"`
}

// Task represents a unit of work progressing through the workflow.
// Goal length is always in [10,500]; at most one task is active at a time.
type Task struct {
	ID             string               `json:"id"`
	Goal           string               `json:"goal"`
	Status         TaskStatus           `json:"status"`
	Priority       Priority             `json:"priority"`
	Tags           []string             `json:"tags,omitempty"`
	CreatedAt      time.Time            `json:"createdAt"`
	ActivatedAt    *time.Time           `json:"activatedAt,omitempty"`
	CompletedAt    *time.Time           `json:"completedAt,omitempty"`
	ArchivedAt     *time.Time           `json:"archivedAt,omitempty"`
	EstimatedHours float64              `json:"estimatedTime,omitempty"`
	ActualHours    float64              `json:"actualTime,omitempty"`
	Workflow       *Workflow            `json:"workflow,omitempty"`
	Checklists     map[Stage]*Checklist `json:"stateChecklists,omitempty"`
	Requirements   []string             `json:"requirements,omitempty"`
}

// Clone returns a deep copy of the task so callers cannot mutate stored
// state through a returned snapshot.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.Tags = append([]string(nil), t.Tags...)
	c.Requirements = append([]string(nil), t.Requirements...)
	c.ActivatedAt = cloneTime(t.ActivatedAt)
	c.CompletedAt = cloneTime(t.CompletedAt)
	c.ArchivedAt = cloneTime(t.ArchivedAt)
	if t.Workflow != nil {
		w := *t.Workflow
		w.StateHistory = append([]StateHistoryEntry(nil), t.Workflow.StateHistory...)
		c.Workflow = &w
	}
	if t.Checklists != nil {
		c.Checklists = make(map[Stage]*Checklist, len(t.Checklists))
		for stage, cl := range t.Checklists {
			c.Checklists[stage] = cl.Clone()
		}
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

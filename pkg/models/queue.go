package models

import "time"

// QueueMetadata holds derived counts over the queue. It is recomputed after
// every mutation and never hand-maintained.
type QueueMetadata struct {
	Total       int       `json:"total"`
	Queued      int       `json:"queued"`
	Active      int       `json:"active"`
	Completed   int       `json:"completed"`
	Archived    int       `json:"archived"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// TaskQueue is the root document of the task store. ActiveTaskID is empty
// when no task is active and otherwise matches the single active task.
type TaskQueue struct {
	Tasks        []*Task       `json:"tasks"`
	ActiveTaskID string        `json:"activeTaskId,omitempty"`
	Metadata     QueueMetadata `json:"metadata"`
}

// FindTask returns the task with the given ID, or nil.
func (q *TaskQueue) FindTask(id string) *Task {
	for _, t := range q.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// ActiveTask returns the task pointed to by ActiveTaskID, or nil.
func (q *TaskQueue) ActiveTask() *Task {
	if q.ActiveTaskID == "" {
		return nil
	}
	return q.FindTask(q.ActiveTaskID)
}

// RecomputeMetadata rebuilds the derived counts from the task list.
func (q *TaskQueue) RecomputeMetadata(now time.Time) {
	meta := QueueMetadata{Total: len(q.Tasks), LastUpdated: now}
	for _, t := range q.Tasks {
		switch t.Status {
		case StatusQueued:
			meta.Queued++
		case StatusActive:
			meta.Active++
		case StatusDone:
			meta.Completed++
		case StatusArchived:
			meta.Archived++
		}
	}
	q.Metadata = meta
}

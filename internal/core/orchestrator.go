package core

import (
	"fmt"
	"time"

	"github.com/valter-silva-au/taskflow/pkg/models"
)

// TaskCreateOptions carries the optional attributes of a new task. Force
// makes the task active even when another task currently is, demoting that
// task to queued with its workflow preserved.
type TaskCreateOptions struct {
	Priority       models.Priority
	Tags           []string
	EstimatedHours float64
	Requirements   []string
	Force          bool
}

// TaskListFilter selects tasks from the store. Archived tasks are excluded
// unless IncludeArchived is set.
type TaskListFilter struct {
	Statuses        []models.TaskStatus
	Priorities      []models.Priority
	Tags            []string
	IncludeArchived bool
}

// CompletionResult is returned by CompleteTask: the completed task and the
// queued task auto-promoted in its place, if any.
type CompletionResult struct {
	Completed  *models.Task
	NextActive *models.Task
}

// TaskStore is the subset of the queue store the orchestrator needs.
// Defining it here keeps core independent of the storage package.
type TaskStore interface {
	CreateTask(goal string, opts TaskCreateOptions) (*models.Task, error)
	ActivateTask(id string) (*models.Task, error)
	CompleteTask(id string) (*CompletionResult, error)
	ArchiveOldTasks() (int, error)
	ListTasks(filter TaskListFilter) ([]*models.Task, error)
	GetActiveTask() (*models.Task, error)
	GetTask(id string) (*models.Task, error)
	UpdateTask(id string, mutate func(*models.Task) error) (*models.Task, error)
}

// MirrorSync projects the active task into the mirror file and supplies
// fallback reads when the store is transiently unavailable. The mirror is
// never trusted to correct the store.
type MirrorSync interface {
	Sync() error
	ReadFallbackTask() (*models.Task, error)
}

// EventLogger records structured events. Implementations must be safe to
// call with arbitrary data maps.
type EventLogger interface {
	LogEvent(eventType string, data map[string]any)
}

// TaskUpdate carries the mutable task fields for UpdateTask. Nil pointers
// and nil slices mean "leave unchanged".
type TaskUpdate struct {
	Goal           *string
	Priority       *models.Priority
	Tags           []string
	EstimatedHours *float64
	Requirements   []string
}

// Orchestrator is the only entry point external callers use. All writes go
// through the store first and the mirror second, never the reverse.
type Orchestrator interface {
	CreateTask(goal string, opts TaskCreateOptions) (*models.Task, error)
	UpdateTask(id string, update TaskUpdate) (*models.Task, error)
	GetCurrentTask() (*models.Task, error)
	UpdateState(id string, to models.Stage) (*models.Task, error)
}

// orchestrator composes the state engine, queue store, mirror sync, and
// checklist gate into atomic, ordered operations.
type orchestrator struct {
	store  TaskStore
	mirror MirrorSync
	gate   *ChecklistGate
	events EventLogger
	cfg    *models.GlobalConfig
}

// NewOrchestrator creates the lifecycle orchestrator with all dependencies
// injected. events may be nil.
func NewOrchestrator(store TaskStore, mirror MirrorSync, gate *ChecklistGate, events EventLogger, cfg *models.GlobalConfig) Orchestrator {
	if cfg == nil {
		cfg = DefaultGlobalConfig()
	}
	return &orchestrator{
		store:  store,
		mirror: mirror,
		gate:   gate,
		events: events,
		cfg:    cfg,
	}
}

// CreateTask validates, persists through the store, then resynchronizes
// the mirror.
func (o *orchestrator) CreateTask(goal string, opts TaskCreateOptions) (*models.Task, error) {
	task, err := o.store.CreateTask(goal, opts)
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	if err := o.mirror.Sync(); err != nil {
		return nil, fmt.Errorf("creating task %s: syncing mirror: %w", task.ID, err)
	}
	o.logEvent("task.created", map[string]any{
		"task_id":  task.ID,
		"status":   string(task.Status),
		"priority": string(task.Priority),
	})
	return task, nil
}

// UpdateTask applies the given field updates, store first, mirror second.
func (o *orchestrator) UpdateTask(id string, update TaskUpdate) (*models.Task, error) {
	if update.Goal != nil {
		if err := ValidateGoal(*update.Goal); err != nil {
			return nil, err
		}
	}
	if update.Priority != nil && models.PriorityTier(*update.Priority) > 3 {
		return nil, &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", *update.Priority)}
	}

	task, err := o.store.UpdateTask(id, func(t *models.Task) error {
		if update.Goal != nil {
			t.Goal = *update.Goal
		}
		if update.Priority != nil {
			t.Priority = *update.Priority
		}
		if update.Tags != nil {
			t.Tags = update.Tags
		}
		if update.EstimatedHours != nil {
			t.EstimatedHours = *update.EstimatedHours
		}
		if update.Requirements != nil {
			t.Requirements = update.Requirements
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("updating task %s: %w", id, err)
	}
	if err := o.mirror.Sync(); err != nil {
		return nil, fmt.Errorf("updating task %s: syncing mirror: %w", id, err)
	}
	o.logEvent("task.updated", map[string]any{"task_id": id})
	return task, nil
}

// GetCurrentTask reads the active task, preferring the store. If the store
// read fails it is retried once after a yield; only then is the mirror used
// as a fallback read.
func (o *orchestrator) GetCurrentTask() (*models.Task, error) {
	task, err := o.store.GetActiveTask()
	if err == nil {
		return task, nil
	}

	// A just-missed write in another process may be mid-commit; yield once
	// and retry before touching the mirror.
	time.Sleep(readRetryYield)
	task, retryErr := o.store.GetActiveTask()
	if retryErr == nil {
		return task, nil
	}

	fallback, mirrorErr := o.mirror.ReadFallbackTask()
	if mirrorErr != nil || fallback == nil {
		return nil, fmt.Errorf("reading active task: %w", err)
	}
	return fallback, nil
}

// readRetryYield is the pause before retrying a read that may have raced a
// concurrent writer.
const readRetryYield = 10 * time.Millisecond

// UpdateState advances a task's workflow by exactly one stage, enforcing
// history integrity, the checklist gate on the stage being left, and stage
// prerequisites, then persists store-first and resynchronizes the mirror.
func (o *orchestrator) UpdateState(id string, to models.Stage) (*models.Task, error) {
	task, err := o.loadTask(id)
	if err != nil {
		return nil, err
	}
	if task.Workflow == nil {
		return nil, &ValidationError{Field: "task", Reason: fmt.Sprintf("task %s has no workflow; activate it first", id)}
	}

	// Persisted-data integrity before anything else; corruption is
	// reported distinctly from user error.
	if err := ValidateStateHistory(task.Workflow); err != nil {
		return nil, err
	}

	from := task.Workflow.CurrentState
	if !IsValidTransition(from, to) {
		next, _ := NextStage(from)
		return nil, &StateTransitionError{From: from, To: to, Next: next}
	}

	// The gate blocks advancing past the stage being left.
	if err := o.gate.ValidateStageChecklistComplete(task, from); err != nil {
		return nil, err
	}

	// Stage prerequisites are decoupled from checklist initialization: a
	// review prerequisite failure still materializes the review checklist
	// so it can be inspected while blocked.
	if prereqErr := o.validateStagePrerequisites(task, to); prereqErr != nil {
		if to == models.StageReview {
			if _, err := o.store.UpdateTask(id, func(t *models.Task) error {
				o.gate.InitializeChecklist(t, to)
				return nil
			}); err != nil {
				return nil, fmt.Errorf("advancing task %s: initializing %s checklist: %w", id, to, err)
			}
			if err := o.mirror.Sync(); err != nil {
				return nil, fmt.Errorf("advancing task %s: syncing mirror: %w", id, err)
			}
		}
		return nil, prereqErr
	}

	// Rate limiting warns but never blocks.
	if elapsed := time.Since(task.Workflow.StateEnteredAt); elapsed < o.cfg.RateLimitMin {
		o.logEvent("rate_limit.warning", map[string]any{
			"task_id":     id,
			"from":        string(from),
			"to":          string(to),
			"elapsed_ms":  elapsed.Milliseconds(),
			"min_seconds": int(o.cfg.RateLimitMin / time.Second),
		})
	}

	updated, err := o.store.UpdateTask(id, func(t *models.Task) error {
		if t.Workflow == nil || t.Workflow.CurrentState != from {
			// Another process moved the task between our read and this
			// lock session; re-validate rather than clobber.
			cur := models.Stage("")
			if t.Workflow != nil {
				cur = t.Workflow.CurrentState
			}
			next, _ := NextStage(cur)
			return &StateTransitionError{From: cur, To: to, Next: next}
		}
		// The just-completed stage enters history, stamped with when it
		// was entered, before the current state is overwritten.
		t.Workflow.StateHistory = append(t.Workflow.StateHistory, models.StateHistoryEntry{
			State:     from,
			EnteredAt: t.Workflow.StateEnteredAt,
		})
		t.Workflow.CurrentState = to
		t.Workflow.StateEnteredAt = time.Now().UTC()

		// Checklists for the later stages materialize on transition.
		if StageIndex(to) >= lazyStageCount {
			o.gate.InitializeChecklist(t, to)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("advancing task %s: %w", id, err)
	}

	if err := o.mirror.Sync(); err != nil {
		return nil, fmt.Errorf("advancing task %s: syncing mirror: %w", id, err)
	}

	o.logEvent("task.state_changed", map[string]any{
		"task_id":  id,
		"from":     string(from),
		"to":       string(to),
		"progress": Progress(to),
	})
	return updated, nil
}

// loadTask reads a task preferring the store. If the store lacks it but the
// mirror holds matching data, the store read is retried once after a yield;
// the mirror is never used to fix the store.
func (o *orchestrator) loadTask(id string) (*models.Task, error) {
	task, err := o.store.GetTask(id)
	if err == nil {
		return task, nil
	}

	fallback, mirrorErr := o.mirror.ReadFallbackTask()
	if mirrorErr == nil && fallback != nil && fallback.ID == id {
		time.Sleep(readRetryYield)
		if task, retryErr := o.store.GetTask(id); retryErr == nil {
			return task, nil
		}
	}
	return nil, err
}

// validateStagePrerequisites checks stage-specific entry conditions.
// Review requires at least one recorded requirement to review against.
func (o *orchestrator) validateStagePrerequisites(task *models.Task, to models.Stage) error {
	if to == models.StageReview && len(task.Requirements) == 0 {
		return &ValidationError{
			Field:  "requirements",
			Reason: fmt.Sprintf("task %s has no recorded requirements to review against", task.ID),
		}
	}
	return nil
}

func (o *orchestrator) logEvent(eventType string, data map[string]any) {
	if o.events != nil {
		o.events.LogEvent(eventType, data)
	}
}

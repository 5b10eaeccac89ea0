// Package storage owns the two persisted JSON documents: the authoritative
// task queue and the single-task mirror, plus the file locking and atomic
// write primitives guarding them.
package storage

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/valter-silva-au/taskflow/internal/core"
	"github.com/valter-silva-au/taskflow/pkg/models"
)

const (
	dataDirName   = ".taskflow"
	queueFileName = "queue.json"
	lockFileName  = "queue.lock"
	taskIDPrefix  = "TASK-"
	taskIDPad     = 5
)

// QueueStore is the authoritative, lock-guarded persisted collection of
// all tasks. It implements core.TaskStore.
type QueueStore struct {
	basePath string
	cfg      *models.GlobalConfig
}

var _ core.TaskStore = (*QueueStore)(nil)

// NewQueueStore creates a QueueStore rooted at basePath. cfg supplies the
// lock retry budget and archive window; nil means defaults.
func NewQueueStore(basePath string, cfg *models.GlobalConfig) *QueueStore {
	if cfg == nil {
		cfg = core.DefaultGlobalConfig()
	}
	return &QueueStore{basePath: basePath, cfg: cfg}
}

// DataDir returns the directory holding the queue, mirror, and lock files.
func (s *QueueStore) DataDir() string {
	return filepath.Join(s.basePath, dataDirName)
}

// QueuePath returns the path of the queue document.
func (s *QueueStore) QueuePath() string {
	return filepath.Join(s.DataDir(), queueFileName)
}

func (s *QueueStore) lockPath() string {
	return filepath.Join(s.DataDir(), lockFileName)
}

// readQueue loads the queue fresh from disk. It never returns a cached
// copy from a previous lock session. A missing file is an empty queue.
func (s *QueueStore) readQueue() (*models.TaskQueue, error) {
	data, err := os.ReadFile(s.QueuePath())
	if err != nil {
		if os.IsNotExist(err) {
			return &models.TaskQueue{Tasks: []*models.Task{}}, nil
		}
		return nil, fmt.Errorf("reading queue: %w", err)
	}
	var q models.TaskQueue
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("reading queue: parsing JSON: %w", err)
	}
	if q.Tasks == nil {
		q.Tasks = []*models.Task{}
	}
	return &q, nil
}

// mutate is the single atomic read-modify-write primitive every mutating
// method uses, so the locking discipline lives in one place: exclusive
// advisory lock with bounded retry, fresh read, mutation, metadata
// recompute, then an fsynced atomic write before the lock is released.
func (s *QueueStore) mutate(fn func(q *models.TaskQueue) error) error {
	if err := os.MkdirAll(s.DataDir(), 0o700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	unlock, err := acquireFileLock(s.lockPath(), s.cfg.LockMaxAttempts, s.cfg.LockBaseBackoff)
	if err != nil {
		return err
	}
	defer func() { _ = unlock() }()

	q, err := s.readQueue()
	if err != nil {
		return err
	}
	if err := fn(q); err != nil {
		return err
	}
	q.RecomputeMetadata(time.Now().UTC())
	// The store is restricted to the owning user.
	return atomicWriteJSON(s.QueuePath(), q, 0o600)
}

// nextTaskID assigns a stable, creation-ordered identifier one past the
// highest ID ever issued in this queue.
func nextTaskID(q *models.TaskQueue) string {
	max := 0
	for _, t := range q.Tasks {
		numeric := strings.TrimPrefix(t.ID, taskIDPrefix)
		if n, err := strconv.Atoi(numeric); err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("%s%0*d", taskIDPrefix, taskIDPad, max+1)
}

// CreateTask validates the goal, derives the priority when unspecified,
// and persists the new task. It becomes active iff no task currently is,
// or when opts.Force demotes the current active task (workflow preserved).
func (s *QueueStore) CreateTask(goal string, opts core.TaskCreateOptions) (*models.Task, error) {
	if err := core.ValidateGoal(goal); err != nil {
		return nil, err
	}
	priority := opts.Priority
	if priority == "" {
		priority = core.DetectPriority(goal, s.cfg.DefaultPriority)
	} else if models.PriorityTier(priority) > 3 {
		return nil, &core.ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", priority)}
	}

	var created *models.Task
	err := s.mutate(func(q *models.TaskQueue) error {
		now := time.Now().UTC()
		task := &models.Task{
			ID:             nextTaskID(q),
			Goal:           strings.TrimSpace(goal),
			Status:         models.StatusQueued,
			Priority:       priority,
			Tags:           opts.Tags,
			CreatedAt:      now,
			EstimatedHours: opts.EstimatedHours,
			Requirements:   opts.Requirements,
		}
		if q.ActiveTaskID == "" || opts.Force {
			if current := q.ActiveTask(); current != nil {
				current.Status = models.StatusQueued
			}
			task.Status = models.StatusActive
			task.ActivatedAt = &now
			task.Workflow = core.NewWorkflow(now)
			q.ActiveTaskID = task.ID
		}
		q.Tasks = append(q.Tasks, task)
		created = task.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ActivateTask promotes the target task to active. An already-active
// target is a no-op. The previously active task, if any, is demoted to
// queued with its workflow state preserved unchanged; the target's
// workflow is initialized only if absent, never reset.
func (s *QueueStore) ActivateTask(id string) (*models.Task, error) {
	var activated *models.Task
	err := s.mutate(func(q *models.TaskQueue) error {
		task := q.FindTask(id)
		if task == nil {
			return &core.TaskNotFoundError{ID: id}
		}
		if task.Status == models.StatusArchived {
			return &core.ValidationError{Field: "task", Reason: fmt.Sprintf("task %s is archived and cannot be activated", id)}
		}
		if task.Status == models.StatusActive && q.ActiveTaskID == id {
			activated = task.Clone()
			return nil
		}

		if current := q.ActiveTask(); current != nil {
			current.Status = models.StatusQueued
		}

		now := time.Now().UTC()
		task.Status = models.StatusActive
		task.ActivatedAt = &now
		if task.Workflow == nil {
			task.Workflow = core.NewWorkflow(now)
		}
		q.ActiveTaskID = task.ID
		activated = task.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return activated, nil
}

// CompleteTask marks the currently active task done, computes its actual
// time, and auto-promotes the next queued task by priority tier then age.
func (s *QueueStore) CompleteTask(id string) (*core.CompletionResult, error) {
	result := &core.CompletionResult{}
	err := s.mutate(func(q *models.TaskQueue) error {
		task := q.FindTask(id)
		if task == nil {
			return &core.TaskNotFoundError{ID: id}
		}
		if task.Status != models.StatusActive || q.ActiveTaskID != id {
			return &core.ValidationError{Field: "task", Reason: fmt.Sprintf("task %s is %s, only the active task can be completed", id, task.Status)}
		}

		now := time.Now().UTC()
		task.Status = models.StatusDone
		task.CompletedAt = &now
		if task.ActivatedAt != nil {
			hours := now.Sub(*task.ActivatedAt).Hours()
			task.ActualHours = math.Round(hours*100) / 100
		}
		q.ActiveTaskID = ""
		result.Completed = task.Clone()

		if next := selectNextQueued(q); next != nil {
			next.Status = models.StatusActive
			next.ActivatedAt = &now
			if next.Workflow == nil {
				next.Workflow = core.NewWorkflow(now)
			}
			q.ActiveTaskID = next.ID
			result.NextActive = next.Clone()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// selectNextQueued picks the queued task with the highest priority tier,
// breaking ties by creation time ascending, then ID.
func selectNextQueued(q *models.TaskQueue) *models.Task {
	var best *models.Task
	for _, t := range q.Tasks {
		if t.Status != models.StatusQueued {
			continue
		}
		if best == nil || queuedBefore(t, best) {
			best = t
		}
	}
	return best
}

func queuedBefore(a, b *models.Task) bool {
	if ta, tb := models.PriorityTier(a.Priority), models.PriorityTier(b.Priority); ta != tb {
		return ta < tb
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// ArchiveOldTasks archives every done task whose completion is older than
// the configured window and returns how many were archived.
func (s *QueueStore) ArchiveOldTasks() (int, error) {
	archived := 0
	cutoff := time.Now().UTC().AddDate(0, 0, -s.cfg.ArchiveAfterDays)
	err := s.mutate(func(q *models.TaskQueue) error {
		now := time.Now().UTC()
		for _, t := range q.Tasks {
			if t.Status == models.StatusDone && t.CompletedAt != nil && t.CompletedAt.Before(cutoff) {
				t.Status = models.StatusArchived
				stamp := now
				t.ArchivedAt = &stamp
				archived++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return archived, nil
}

// ListTasks returns tasks sorted active-first, then by priority tier, then
// by creation time ascending. Reads are not lock-protected.
func (s *QueueStore) ListTasks(filter core.TaskListFilter) ([]*models.Task, error) {
	q, err := s.readQueue()
	if err != nil {
		return nil, err
	}

	var out []*models.Task
	for _, t := range q.Tasks {
		if t.Status == models.StatusArchived && !filter.IncludeArchived && !containsStatus(filter.Statuses, models.StatusArchived) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, t.Status) {
			continue
		}
		if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, t.Priority) {
			continue
		}
		if len(filter.Tags) > 0 && !hasAllTags(t.Tags, filter.Tags) {
			continue
		}
		out = append(out, t.Clone())
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.Status == models.StatusActive) != (b.Status == models.StatusActive) {
			return a.Status == models.StatusActive
		}
		return queuedBefore(a, b)
	})
	return out, nil
}

func containsStatus(haystack []models.TaskStatus, needle models.TaskStatus) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func containsPriority(haystack []models.Priority, needle models.Priority) bool {
	for _, p := range haystack {
		if p == needle {
			return true
		}
	}
	return false
}

func hasAllTags(entryTags []string, requiredTags []string) bool {
	tagSet := make(map[string]struct{}, len(entryTags))
	for _, t := range entryTags {
		tagSet[t] = struct{}{}
	}
	for _, req := range requiredTags {
		if _, found := tagSet[req]; !found {
			return false
		}
	}
	return true
}

// GetActiveTask returns the task matching the active pointer, or nil. The
// read is always fresh from disk.
func (s *QueueStore) GetActiveTask() (*models.Task, error) {
	q, err := s.readQueue()
	if err != nil {
		return nil, err
	}
	return q.ActiveTask().Clone(), nil
}

// GetTask returns a single task by ID from a fresh read.
func (s *QueueStore) GetTask(id string) (*models.Task, error) {
	q, err := s.readQueue()
	if err != nil {
		return nil, err
	}
	task := q.FindTask(id)
	if task == nil {
		return nil, &core.TaskNotFoundError{ID: id}
	}
	return task.Clone(), nil
}

// UpdateTask applies a mutation to one task inside the atomic
// read-modify-write primitive and returns the updated snapshot. Status and
// active-pointer changes belong to ActivateTask/CompleteTask, not here.
func (s *QueueStore) UpdateTask(id string, mutateTask func(t *models.Task) error) (*models.Task, error) {
	var updated *models.Task
	err := s.mutate(func(q *models.TaskQueue) error {
		task := q.FindTask(id)
		if task == nil {
			return &core.TaskNotFoundError{ID: id}
		}
		if err := mutateTask(task); err != nil {
			return err
		}
		updated = task.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/valter-silva-au/taskflow/internal/core"
	"github.com/valter-silva-au/taskflow/pkg/models"
)

func newTestStore(t *testing.T) *QueueStore {
	t.Helper()
	cfg := core.DefaultGlobalConfig()
	cfg.LockMaxAttempts = 5
	cfg.LockBaseBackoff = time.Millisecond
	return NewQueueStore(t.TempDir(), cfg)
}

func mustCreate(t *testing.T, s *QueueStore, goal string, opts core.TaskCreateOptions) *models.Task {
	t.Helper()
	task, err := s.CreateTask(goal, opts)
	if err != nil {
		t.Fatalf("creating task: %v", err)
	}
	return task
}

func TestCreateTask_FirstBecomesActive(t *testing.T) {
	s := newTestStore(t)

	task := mustCreate(t, s, "Implement the CSV export feature", core.TaskCreateOptions{})
	if task.ID != "TASK-00001" {
		t.Fatalf("expected TASK-00001, got %s", task.ID)
	}
	if task.Status != models.StatusActive {
		t.Fatalf("first task must be active, got %s", task.Status)
	}
	if task.Workflow == nil || task.Workflow.CurrentState != models.StagePlanning {
		t.Fatalf("active task must start at planning, got %+v", task.Workflow)
	}
	if task.ActivatedAt == nil {
		t.Fatal("expected ActivatedAt set")
	}
}

func TestCreateTask_SecondIsQueued(t *testing.T) {
	s := newTestStore(t)
	mustCreate(t, s, "Implement the CSV export feature", core.TaskCreateOptions{})

	second := mustCreate(t, s, "Add JSON export alongside the CSV one", core.TaskCreateOptions{})
	if second.Status != models.StatusQueued {
		t.Fatalf("second task must be queued, got %s", second.Status)
	}
	if second.Workflow != nil {
		t.Fatal("queued task must have no workflow until activation")
	}
}

func TestCreateTask_ForceDemotesActive(t *testing.T) {
	s := newTestStore(t)
	first := mustCreate(t, s, "Implement the CSV export feature", core.TaskCreateOptions{})

	second := mustCreate(t, s, "Fix urgent crash in the export job", core.TaskCreateOptions{Force: true})
	if second.Status != models.StatusActive {
		t.Fatalf("forced task must be active, got %s", second.Status)
	}

	demoted, err := s.GetTask(first.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if demoted.Status != models.StatusQueued {
		t.Fatalf("demoted task must be queued, got %s", demoted.Status)
	}
	if demoted.Workflow == nil || demoted.Workflow.CurrentState != models.StagePlanning {
		t.Fatal("demotion must preserve the workflow")
	}
}

func TestCreateTask_PriorityDetection(t *testing.T) {
	s := newTestStore(t)

	task := mustCreate(t, s, "Fix urgent crash in the export job", core.TaskCreateOptions{})
	if task.Priority != models.PriorityCritical {
		t.Fatalf("expected detected critical priority, got %s", task.Priority)
	}

	task = mustCreate(t, s, "Fix urgent crash in the import job", core.TaskCreateOptions{Priority: models.PriorityLow})
	if task.Priority != models.PriorityLow {
		t.Fatalf("explicit priority must win over detection, got %s", task.Priority)
	}
}

func TestCreateTask_InvalidInput(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.CreateTask("short", core.TaskCreateOptions{}); err == nil {
		t.Fatal("expected error for short goal")
	}
	if _, err := s.CreateTask("Implement the CSV export feature", core.TaskCreateOptions{Priority: "whenever"}); err == nil {
		t.Fatal("expected error for unknown priority")
	}
}

func TestTaskIDsNeverReused(t *testing.T) {
	s := newTestStore(t)
	mustCreate(t, s, "Implement the CSV export feature", core.TaskCreateOptions{})
	second := mustCreate(t, s, "Add JSON export alongside the CSV one", core.TaskCreateOptions{})

	if second.ID != "TASK-00002" {
		t.Fatalf("expected TASK-00002, got %s", second.ID)
	}
	third := mustCreate(t, s, "Stream the export instead of buffering", core.TaskCreateOptions{})
	if third.ID != "TASK-00003" {
		t.Fatalf("expected TASK-00003, got %s", third.ID)
	}
}

func TestActivateTask(t *testing.T) {
	s := newTestStore(t)
	first := mustCreate(t, s, "Implement the CSV export feature", core.TaskCreateOptions{})
	second := mustCreate(t, s, "Add JSON export alongside the CSV one", core.TaskCreateOptions{})

	activated, err := s.ActivateTask(second.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if activated.Status != models.StatusActive {
		t.Fatalf("expected active, got %s", activated.Status)
	}
	if activated.Workflow == nil {
		t.Fatal("activation must initialize the workflow")
	}

	demoted, _ := s.GetTask(first.ID)
	if demoted.Status != models.StatusQueued {
		t.Fatalf("previous active must be demoted, got %s", demoted.Status)
	}

	// Re-activating the first task later must keep its workflow, not reset it.
	if _, err := s.ActivateTask(first.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reactivated, _ := s.GetTask(first.ID)
	if reactivated.Workflow == nil || reactivated.Workflow.CurrentState != models.StagePlanning {
		t.Fatal("re-activation must preserve the existing workflow")
	}
}

func TestTaskLifecycleScenario(t *testing.T) {
	s := newTestStore(t)

	a := mustCreate(t, s, "Implement the CSV export feature", core.TaskCreateOptions{})
	if a.Status != models.StatusActive {
		t.Fatalf("A must be active, got %s", a.Status)
	}

	b := mustCreate(t, s, "Add JSON export alongside the CSV one", core.TaskCreateOptions{})
	if b.Status != models.StatusQueued {
		t.Fatalf("B must be queued, got %s", b.Status)
	}
	stillActive, _ := s.GetActiveTask()
	if stillActive.ID != a.ID {
		t.Fatalf("A must remain active, got %s", stillActive.ID)
	}

	if _, err := s.ActivateTask(b.ID); err != nil {
		t.Fatalf("activating B: %v", err)
	}
	aAfter, _ := s.GetTask(a.ID)
	if aAfter.Status != models.StatusQueued {
		t.Fatalf("A must be demoted to queued, got %s", aAfter.Status)
	}
	if aAfter.Workflow.CurrentState != models.StagePlanning {
		t.Fatal("A's stage must be unchanged by demotion")
	}

	if _, err := s.ActivateTask(a.ID); err != nil {
		t.Fatalf("re-activating A: %v", err)
	}

	result, err := s.CompleteTask(a.ID)
	if err != nil {
		t.Fatalf("completing A: %v", err)
	}
	if result.Completed.Status != models.StatusDone {
		t.Fatalf("A must be done, got %s", result.Completed.Status)
	}
	// B is the only queued task; it is promoted automatically.
	if result.NextActive == nil || result.NextActive.ID != b.ID {
		t.Fatalf("B must be auto-promoted, got %+v", result.NextActive)
	}
}

func TestActivateTask_NoOpWhenAlreadyActive(t *testing.T) {
	s := newTestStore(t)
	task := mustCreate(t, s, "Implement the CSV export feature", core.TaskCreateOptions{})

	again, err := s.ActivateTask(task.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !again.ActivatedAt.Equal(*task.ActivatedAt) {
		t.Fatal("re-activating the active task must not touch its timestamps")
	}
}

func TestActivateTask_Errors(t *testing.T) {
	s := newTestStore(t)

	_, err := s.ActivateTask("TASK-99999")
	var notFound *core.TaskNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected TaskNotFoundError, got %v", err)
	}

	task := mustCreate(t, s, "Implement the CSV export feature", core.TaskCreateOptions{})
	if _, err := s.CompleteTask(task.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Push it past the archive window and archive it.
	old := time.Now().UTC().AddDate(0, 0, -60)
	if _, err := s.UpdateTask(task.ID, func(tk *models.Task) error {
		tk.CompletedAt = &old
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.ArchiveOldTasks(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := s.ActivateTask(task.ID); err == nil {
		t.Fatal("expected error activating an archived task")
	}
}

func TestCompleteTask_PromotesByPriority(t *testing.T) {
	s := newTestStore(t)
	active := mustCreate(t, s, "Implement the CSV export feature", core.TaskCreateOptions{})
	mustCreate(t, s, "Refactor the export module for clarity", core.TaskCreateOptions{}) // low
	urgent := mustCreate(t, s, "Fix urgent crash in the import job", core.TaskCreateOptions{})

	result, err := s.CompleteTask(active.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Completed.Status != models.StatusDone {
		t.Fatalf("expected done, got %s", result.Completed.Status)
	}
	if result.Completed.CompletedAt == nil {
		t.Fatal("expected CompletedAt set")
	}
	if result.NextActive == nil || result.NextActive.ID != urgent.ID {
		t.Fatalf("expected the critical task promoted, got %+v", result.NextActive)
	}
	if result.NextActive.Workflow == nil {
		t.Fatal("promotion must initialize the workflow")
	}
}

func TestCompleteTask_EmptyQueue(t *testing.T) {
	s := newTestStore(t)
	task := mustCreate(t, s, "Implement the CSV export feature", core.TaskCreateOptions{})

	result, err := s.CompleteTask(task.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.NextActive != nil {
		t.Fatal("expected no promotion with an empty queue")
	}
	active, err := s.GetActiveTask()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if active != nil {
		t.Fatalf("expected no active task, got %s", active.ID)
	}
}

func TestCompleteTask_OnlyActive(t *testing.T) {
	s := newTestStore(t)
	mustCreate(t, s, "Implement the CSV export feature", core.TaskCreateOptions{})
	queued := mustCreate(t, s, "Add JSON export alongside the CSV one", core.TaskCreateOptions{})

	if _, err := s.CompleteTask(queued.ID); err == nil {
		t.Fatal("expected error completing a queued task")
	}
}

func TestArchiveOldTasks(t *testing.T) {
	s := newTestStore(t)
	task := mustCreate(t, s, "Implement the CSV export feature", core.TaskCreateOptions{})
	if _, err := s.CompleteTask(task.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Freshly completed: inside the window, nothing archives.
	count, err := s.ArchiveOldTasks()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 archived, got %d", count)
	}

	old := time.Now().UTC().AddDate(0, 0, -60)
	if _, err := s.UpdateTask(task.ID, func(tk *models.Task) error {
		tk.CompletedAt = &old
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	count, err = s.ArchiveOldTasks()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 archived, got %d", count)
	}
	archived, _ := s.GetTask(task.ID)
	if archived.Status != models.StatusArchived || archived.ArchivedAt == nil {
		t.Fatalf("expected archived with timestamp, got %+v", archived)
	}
}

func TestListTasks(t *testing.T) {
	s := newTestStore(t)
	active := mustCreate(t, s, "Refactor the export module for clarity", core.TaskCreateOptions{})
	mustCreate(t, s, "Add JSON export alongside the CSV one", core.TaskCreateOptions{Tags: []string{"export"}})
	mustCreate(t, s, "Fix urgent crash in the import job", core.TaskCreateOptions{})

	tasks, err := s.ListTasks(core.TaskListFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
	// Active first, then priority tier.
	if tasks[0].ID != active.ID {
		t.Fatalf("expected the active task first, got %s", tasks[0].ID)
	}
	if tasks[1].Priority != models.PriorityCritical {
		t.Fatalf("expected the critical task next, got %s", tasks[1].Priority)
	}

	tagged, err := s.ListTasks(core.TaskListFilter{Tags: []string{"export"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tagged) != 1 {
		t.Fatalf("expected 1 tagged task, got %d", len(tagged))
	}

	queued, err := s.ListTasks(core.TaskListFilter{Statuses: []models.TaskStatus{models.StatusQueued}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(queued) != 2 {
		t.Fatalf("expected 2 queued tasks, got %d", len(queued))
	}
}

func TestListTasks_ArchivedHidden(t *testing.T) {
	s := newTestStore(t)
	task := mustCreate(t, s, "Implement the CSV export feature", core.TaskCreateOptions{})
	if _, err := s.CompleteTask(task.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	old := time.Now().UTC().AddDate(0, 0, -60)
	if _, err := s.UpdateTask(task.ID, func(tk *models.Task) error {
		tk.CompletedAt = &old
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.ArchiveOldTasks(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tasks, _ := s.ListTasks(core.TaskListFilter{})
	if len(tasks) != 0 {
		t.Fatalf("archived tasks must be hidden by default, got %d", len(tasks))
	}
	tasks, _ = s.ListTasks(core.TaskListFilter{IncludeArchived: true})
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task with IncludeArchived, got %d", len(tasks))
	}
}

func TestGetTask_ReturnsClone(t *testing.T) {
	s := newTestStore(t)
	task := mustCreate(t, s, "Implement the CSV export feature", core.TaskCreateOptions{})

	got, err := s.GetTask(task.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got.Goal = "tampered locally"

	fresh, _ := s.GetTask(task.ID)
	if fresh.Goal != "Implement the CSV export feature" {
		t.Fatal("mutating a returned snapshot must not affect stored state")
	}
}

func TestUpdateTask(t *testing.T) {
	s := newTestStore(t)
	task := mustCreate(t, s, "Implement the CSV export feature", core.TaskCreateOptions{})

	updated, err := s.UpdateTask(task.ID, func(tk *models.Task) error {
		tk.Requirements = []string{"Exports all columns"}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updated.Requirements) != 1 {
		t.Fatalf("expected 1 requirement, got %d", len(updated.Requirements))
	}

	persisted, _ := s.GetTask(task.ID)
	if len(persisted.Requirements) != 1 {
		t.Fatal("update must be persisted")
	}
}

func TestUpdateTask_MutationErrorDiscards(t *testing.T) {
	s := newTestStore(t)
	task := mustCreate(t, s, "Implement the CSV export feature", core.TaskCreateOptions{})

	wantErr := errors.New("mutation rejected")
	_, err := s.UpdateTask(task.ID, func(tk *models.Task) error {
		tk.Goal = "half-applied change that must not persist"
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected mutation error, got %v", err)
	}

	fresh, _ := s.GetTask(task.ID)
	if fresh.Goal != "Implement the CSV export feature" {
		t.Fatal("failed mutation must not be persisted")
	}
}

func TestQueueMetadataRecomputed(t *testing.T) {
	s := newTestStore(t)
	mustCreate(t, s, "Implement the CSV export feature", core.TaskCreateOptions{})
	mustCreate(t, s, "Add JSON export alongside the CSV one", core.TaskCreateOptions{})

	q, err := s.readQueue()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Metadata.Total != 2 || q.Metadata.Active != 1 || q.Metadata.Queued != 1 {
		t.Fatalf("unexpected metadata: %+v", q.Metadata)
	}
	if q.ActiveTaskID != "TASK-00001" {
		t.Fatalf("expected active pointer TASK-00001, got %s", q.ActiveTaskID)
	}
}

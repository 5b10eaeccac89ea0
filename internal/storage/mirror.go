package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/valter-silva-au/taskflow/internal/core"
	"github.com/valter-silva-au/taskflow/pkg/models"
)

const mirrorFileName = "current-task.json"

// MirrorFile is the simplified single-task document external readers
// consume instead of parsing the full queue. SyncHash is a sha256 over the
// canonical JSON of (taskId, goal, workflow); a mismatch with the on-disk
// content marks a manual edit.
type MirrorFile struct {
	TaskID       string                             `json:"taskId"`
	Goal         string                             `json:"goal"`
	Workflow     *models.Workflow                   `json:"workflow,omitempty"`
	Checklists   map[models.Stage]*models.Checklist `json:"stateChecklists,omitempty"`
	Requirements []string                           `json:"requirements,omitempty"`
	SyncHash     string                             `json:"syncHash,omitempty"`
	LastSynced   time.Time                          `json:"lastSynced"`
}

// MirrorSync projects the single active task from the queue into the
// mirror file and reconciles drift. The queue is always the source of
// truth: a diverged mirror is backed up and overwritten, never merged,
// even when its timestamps suggest it is newer. It implements
// core.MirrorSync.
type MirrorSync struct {
	store  *QueueStore
	events core.EventLogger
}

var _ core.MirrorSync = (*MirrorSync)(nil)

// NewMirrorSync creates a MirrorSync over the given store. events may be
// nil.
func NewMirrorSync(store *QueueStore, events core.EventLogger) *MirrorSync {
	return &MirrorSync{store: store, events: events}
}

// MirrorPath returns the path of the mirror document.
func (m *MirrorSync) MirrorPath() string {
	return filepath.Join(m.store.DataDir(), mirrorFileName)
}

// readMirror loads the mirror file, returning nil when it does not exist.
func (m *MirrorSync) readMirror() (*MirrorFile, error) {
	data, err := os.ReadFile(m.MirrorPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading mirror: %w", err)
	}
	var mf MirrorFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("reading mirror: parsing JSON: %w", err)
	}
	return &mf, nil
}

// contentHash computes the drift-detection hash over the canonical JSON of
// the projected identity fields.
func contentHash(taskID, goal string, workflow *models.Workflow) string {
	canonical := struct {
		TaskID   string           `json:"taskId"`
		Goal     string           `json:"goal"`
		Workflow *models.Workflow `json:"workflow,omitempty"`
	}{taskID, goal, workflow}
	data, err := json.Marshal(canonical)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Sync projects the queue's active task into the mirror. A mirror whose
// content no longer matches its recorded sync hash was manually edited; it
// is backed up before being overwritten. When the mirror's task ID differs
// from the queue's active task the mirror is resynced wholesale rather
// than reconciled field by field. Free-form requirements already present
// in the mirror are the one preserved field: they may be edited
// out-of-band.
func (m *MirrorSync) Sync() error {
	active, err := m.store.GetActiveTask()
	if err != nil {
		return fmt.Errorf("syncing mirror: %w", err)
	}

	existing, err := m.readMirror()
	if err != nil {
		// An unparseable mirror counts as a manual edit: back it up and
		// rebuild from the queue.
		if backupErr := m.backupMirror(); backupErr != nil {
			return fmt.Errorf("syncing mirror: backing up corrupt mirror: %w", backupErr)
		}
		existing = nil
	}

	if active == nil {
		if removeErr := os.Remove(m.MirrorPath()); removeErr != nil && !os.IsNotExist(removeErr) {
			return fmt.Errorf("syncing mirror: removing stale mirror: %w", removeErr)
		}
		return nil
	}

	preserved := []string(nil)
	if existing != nil {
		if existing.TaskID == active.ID {
			if existing.SyncHash != "" && existing.SyncHash != contentHash(existing.TaskID, existing.Goal, existing.Workflow) {
				if err := m.backupMirror(); err != nil {
					return fmt.Errorf("syncing mirror: backing up edited mirror: %w", err)
				}
				m.logEvent("mirror.manual_edit_detected", map[string]any{"task_id": active.ID})
			}
			if len(existing.Requirements) > 0 {
				preserved = existing.Requirements
			}
		}
		// A task-ID mismatch is a plain resync from the queue.
	}

	mf := m.project(active)
	if preserved != nil && len(active.Requirements) == 0 {
		mf.Requirements = preserved
	}

	if err := atomicWriteJSON(m.MirrorPath(), mf, 0o644); err != nil {
		return fmt.Errorf("syncing mirror: %w", err)
	}
	return nil
}

// project builds the mirror shape for a queue task.
func (m *MirrorSync) project(task *models.Task) *MirrorFile {
	return &MirrorFile{
		TaskID:       task.ID,
		Goal:         task.Goal,
		Workflow:     task.Workflow,
		Checklists:   task.Checklists,
		Requirements: task.Requirements,
		SyncHash:     contentHash(task.ID, task.Goal, task.Workflow),
		LastSynced:   time.Now().UTC(),
	}
}

// backupMirror copies the current mirror file aside before it is
// overwritten. Missing mirrors need no backup.
func (m *MirrorSync) backupMirror() error {
	src := m.MirrorPath()
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	dst := fmt.Sprintf("%s.bak-%d", src, time.Now().Unix())
	if err := copyFile(src, dst); err != nil {
		return err
	}
	m.logEvent("mirror.backed_up", map[string]any{"backup": filepath.Base(dst)})
	return nil
}

// ReadFallbackTask reconstructs a task snapshot from the mirror for
// callers whose store read transiently failed. The snapshot is a read-only
// fallback; it must never be written back to the store.
func (m *MirrorSync) ReadFallbackTask() (*models.Task, error) {
	mf, err := m.readMirror()
	if err != nil {
		return nil, err
	}
	if mf == nil {
		return nil, nil
	}
	return &models.Task{
		ID:           mf.TaskID,
		Goal:         mf.Goal,
		Status:       models.StatusActive,
		Workflow:     mf.Workflow,
		Checklists:   mf.Checklists,
		Requirements: mf.Requirements,
	}, nil
}

func (m *MirrorSync) logEvent(eventType string, data map[string]any) {
	if m.events != nil {
		m.events.LogEvent(eventType, data)
	}
}

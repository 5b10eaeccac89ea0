package models

import "time"

// EvidenceType discriminates the shape of an evidence payload.
type EvidenceType string

const (
	EvidenceFile       EvidenceType = "file"
	EvidenceCommand    EvidenceType = "command"
	EvidenceTest       EvidenceType = "test"
	EvidenceValidation EvidenceType = "validation"
	EvidenceManual     EvidenceType = "manual"
	EvidenceOther      EvidenceType = "other"
)

// Evidence is a tagged union keyed by Type proving a checklist item was
// actually satisfied. Which fields are mandatory depends on Type:
// file needs Files, command needs Command, test needs Tests, validation
// needs Check, manual needs Notes, other needs Description.
type Evidence struct {
	Type        EvidenceType `json:"type"`
	Files       []string     `json:"files,omitempty"`
	Command     string       `json:"command,omitempty"`
	Output      string       `json:"output,omitempty"`
	Tests       []string     `json:"tests,omitempty"`
	Check       string       `json:"check,omitempty"`
	Notes       string       `json:"notes,omitempty"`
	Description string       `json:"description,omitempty"`
	RecordedAt  time.Time    `json:"recordedAt"`
}

// ItemSource records where a checklist item came from.
type ItemSource string

const (
	SourceBuiltin ItemSource = "builtin"
	SourcePattern ItemSource = "pattern"
)

// ChecklistItem is a single gate item within a stage checklist.
type ChecklistItem struct {
	ID               string     `json:"id"`
	Label            string     `json:"label"`
	Required         bool       `json:"required"`
	EvidenceRequired bool       `json:"evidenceRequired,omitempty"`
	Completed        bool       `json:"completed"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	Evidence         *Evidence  `json:"evidence,omitempty"`
	Source           ItemSource `json:"source,omitempty"`
	Pattern          string     `json:"pattern,omitempty"`
}

// Checklist is the per-stage checklist instance materialized for a task.
type Checklist struct {
	Stage         Stage           `json:"stage"`
	Items         []ChecklistItem `json:"items"`
	InitializedAt time.Time       `json:"initializedAt"`
}

// FindItem returns a pointer to the item with the given ID, or nil.
func (c *Checklist) FindItem(id string) *ChecklistItem {
	for i := range c.Items {
		if c.Items[i].ID == id {
			return &c.Items[i]
		}
	}
	return nil
}

// IncompleteRequired returns every required item not yet completed.
func (c *Checklist) IncompleteRequired() []ChecklistItem {
	var missing []ChecklistItem
	for _, item := range c.Items {
		if item.Required && !item.Completed {
			missing = append(missing, item)
		}
	}
	return missing
}

// Clone returns a deep copy of the checklist.
func (c *Checklist) Clone() *Checklist {
	if c == nil {
		return nil
	}
	out := &Checklist{Stage: c.Stage, InitializedAt: c.InitializedAt}
	out.Items = make([]ChecklistItem, len(c.Items))
	copy(out.Items, c.Items)
	for i := range out.Items {
		if ev := out.Items[i].Evidence; ev != nil {
			e := *ev
			e.Files = append([]string(nil), ev.Files...)
			e.Tests = append([]string(nil), ev.Tests...)
			out.Items[i].Evidence = &e
		}
	}
	return out
}

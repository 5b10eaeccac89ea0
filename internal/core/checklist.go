package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/valter-silva-au/taskflow/pkg/models"
)

// ChecklistContext is the applicability context an item definition is
// matched against. Its canonical JSON encoding is the cache fingerprint.
type ChecklistContext struct {
	Stage    models.Stage `json:"stage"`
	Goal     string       `json:"goal"`
	Tags     []string     `json:"tags,omitempty"`
	Patterns []string     `json:"patterns,omitempty"`
	Roles    []string     `json:"roles,omitempty"`
}

// ItemDefinition describes a checklist item and the scopes limiting where
// it applies. All present scopes combine with AND semantics; a definition
// with no scopes applies universally. Predicate is the one opaque escape
// hatch; it fails closed (non-match) if it panics.
type ItemDefinition struct {
	ID               string
	Label            string
	Required         bool
	EvidenceRequired bool
	Stages           []models.Stage
	Keywords         []string
	Patterns         []string
	Roles            []string
	Tags             []string
	Predicate        func(ChecklistContext) bool
}

// lazyStageCount is how many leading stages materialize their checklist on
// first access instead of on transition.
const lazyStageCount = 2

// ChecklistGate maintains the item-definition registry, materializes
// per-task stage checklists, tracks completion with evidence, and blocks
// transitions past stages with incomplete required items.
type ChecklistGate struct {
	mu       sync.Mutex
	defs     []ItemDefinition
	patterns PatternProvider
	events   EventLogger
	active   []string // active pattern identifiers from config
	roles    []string // active role identifiers from config
	cache    map[string][]ItemDefinition
}

// NewChecklistGate creates a gate seeded with the built-in item set.
// patterns and events may be nil.
func NewChecklistGate(patterns PatternProvider, events EventLogger, cfg *models.GlobalConfig) *ChecklistGate {
	g := &ChecklistGate{
		patterns: patterns,
		events:   events,
		cache:    make(map[string][]ItemDefinition),
	}
	if cfg != nil {
		g.active = append([]string(nil), cfg.ActivePatterns...)
		g.roles = append([]string(nil), cfg.ActiveRoles...)
	}
	g.defs = builtinItemDefinitions()
	return g
}

// builtinItemDefinitions is the default gate content for each stage.
func builtinItemDefinitions() []ItemDefinition {
	return []ItemDefinition{
		{ID: "plan-goal-review", Label: "Goal reviewed and broken into steps", Required: true, Stages: []models.Stage{models.StagePlanning}},
		{ID: "plan-requirements", Label: "Acceptance requirements recorded", Required: true, Stages: []models.Stage{models.StagePlanning}},
		{ID: "impl-code-complete", Label: "Implementation complete for all planned steps", Required: true, Stages: []models.Stage{models.StageImplementation}},
		{ID: "impl-files-touched", Label: "Changed files recorded", Required: true, EvidenceRequired: true, Stages: []models.Stage{models.StageImplementation}},
		{ID: "test-suite-pass", Label: "Test suite run and passing", Required: true, EvidenceRequired: true, Stages: []models.Stage{models.StageTesting}},
		{ID: "test-new-coverage", Label: "New behavior covered by tests", Required: true, Stages: []models.Stage{models.StageTesting}},
		{ID: "review-self", Label: "Self-review of the full diff", Required: true, Stages: []models.Stage{models.StageReview}},
		{ID: "review-security", Label: "Security-sensitive paths double-checked", Required: true, Stages: []models.Stage{models.StageReview},
			Keywords: []string{"security", "auth", "credential", "token"}},
		{ID: "doc-updated", Label: "Documentation updated", Required: true, Stages: []models.Stage{models.StageDocumentation}},
		{ID: "ready-final-check", Label: "Final verification before handoff", Required: true, Stages: []models.Stage{models.StageReady}},
	}
}

// RegisterItem adds a definition to the registry and invalidates the
// applicability cache.
func (g *ChecklistGate) RegisterItem(def ItemDefinition) error {
	if def.ID == "" {
		return &ValidationError{Field: "item", Reason: "ID must not be empty"}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, existing := range g.defs {
		if existing.ID == def.ID {
			return &ValidationError{Field: "item", Reason: fmt.Sprintf("item %s already registered", def.ID)}
		}
	}
	g.defs = append(g.defs, def)
	g.cache = make(map[string][]ItemDefinition)
	return nil
}

// ContextForTask builds the applicability context for a task at a stage.
func (g *ChecklistGate) ContextForTask(task *models.Task, stage models.Stage) ChecklistContext {
	return ChecklistContext{
		Stage:    stage,
		Goal:     task.Goal,
		Tags:     task.Tags,
		Patterns: g.active,
		Roles:    g.roles,
	}
}

// ApplicableItems returns the definitions matching the context. Results are
// cached by a canonical fingerprint of the context.
func (g *ChecklistGate) ApplicableItems(ctx ChecklistContext) []ItemDefinition {
	key := contextFingerprint(ctx)
	g.mu.Lock()
	if cached, ok := g.cache[key]; ok {
		g.mu.Unlock()
		return cached
	}
	defs := make([]ItemDefinition, len(g.defs))
	copy(defs, g.defs)
	g.mu.Unlock()

	var matched []ItemDefinition
	for _, def := range defs {
		if matchesContext(def, ctx) {
			matched = append(matched, def)
		}
	}

	g.mu.Lock()
	g.cache[key] = matched
	g.mu.Unlock()
	return matched
}

// contextFingerprint returns a stable hash of the canonical JSON encoding
// of the context.
func contextFingerprint(ctx ChecklistContext) string {
	data, err := json.Marshal(ctx)
	if err != nil {
		return fmt.Sprintf("raw:%s|%s", ctx.Stage, ctx.Goal)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// matchesContext applies AND semantics across every present scope. The
// custom predicate fails closed on panic.
func matchesContext(def ItemDefinition, ctx ChecklistContext) (matched bool) {
	if len(def.Stages) > 0 && !containsStage(def.Stages, ctx.Stage) {
		return false
	}
	if len(def.Keywords) > 0 && !containsAnyKeyword(ctx.Goal, def.Keywords) {
		return false
	}
	if len(def.Patterns) > 0 && !intersects(def.Patterns, ctx.Patterns) {
		return false
	}
	if len(def.Roles) > 0 && !intersects(def.Roles, ctx.Roles) {
		return false
	}
	if len(def.Tags) > 0 && !hasAllTags(ctx.Tags, def.Tags) {
		return false
	}
	if def.Predicate != nil {
		defer func() {
			if recover() != nil {
				matched = false
			}
		}()
		return def.Predicate(ctx)
	}
	return true
}

func containsStage(stages []models.Stage, s models.Stage) bool {
	for _, stage := range stages {
		if stage == s {
			return true
		}
	}
	return false
}

func containsAnyKeyword(goal string, keywords []string) bool {
	lower := strings.ToLower(goal)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func intersects(want, have []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[h] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}

func hasAllTags(have []string, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[h] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}

// InitializeChecklist materializes the checklist instance for a stage from
// the currently-matching item set merged with pattern-derived items for
// that stage. An existing instance is returned unchanged, never reset.
// Pattern lookup failures degrade gracefully: they are logged and the
// built-in items still materialize.
func (g *ChecklistGate) InitializeChecklist(task *models.Task, stage models.Stage) *models.Checklist {
	if existing, ok := task.Checklists[stage]; ok && existing != nil {
		return existing
	}

	now := time.Now().UTC()
	cl := &models.Checklist{Stage: stage, InitializedAt: now}
	for _, def := range g.ApplicableItems(g.ContextForTask(task, stage)) {
		cl.Items = append(cl.Items, models.ChecklistItem{
			ID:               def.ID,
			Label:            def.Label,
			Required:         def.Required,
			EvidenceRequired: def.EvidenceRequired,
			Source:           models.SourceBuiltin,
		})
	}
	if g.patterns != nil {
		patternItems, err := g.patterns.ItemsForStage(stage, g.active)
		if err != nil {
			g.logEvent("pattern.load_failed", map[string]any{"stage": string(stage), "error": err.Error()})
		} else {
			for _, item := range patternItems {
				if cl.FindItem(item.ID) != nil {
					continue
				}
				item.Source = models.SourcePattern
				cl.Items = append(cl.Items, item)
			}
		}
	}

	if task.Checklists == nil {
		task.Checklists = make(map[models.Stage]*models.Checklist)
	}
	task.Checklists[stage] = cl
	return cl
}

// ChecklistFor returns the checklist for a stage, materializing it lazily
// for the first two stages. Later stages are initialized explicitly on
// transition, so a nil return means the task has not reached that stage.
func (g *ChecklistGate) ChecklistFor(task *models.Task, stage models.Stage) *models.Checklist {
	if cl, ok := task.Checklists[stage]; ok && cl != nil {
		return cl
	}
	if idx := StageIndex(stage); idx >= 0 && idx < lazyStageCount {
		return g.InitializeChecklist(task, stage)
	}
	return nil
}

// CompleteItem marks an item completed, validating the evidence payload
// against the item's declaration and the evidence type's mandatory fields.
// The evidence object is stored unchanged.
func (g *ChecklistGate) CompleteItem(task *models.Task, stage models.Stage, itemID string, evidence *models.Evidence) error {
	cl := g.ChecklistFor(task, stage)
	if cl == nil {
		return &ValidationError{Field: "stage", Reason: fmt.Sprintf("no checklist initialized for stage %s", stage)}
	}
	item := cl.FindItem(itemID)
	if item == nil {
		return &ValidationError{Field: "item", Reason: fmt.Sprintf("checklist item %s not found in stage %s", itemID, stage)}
	}
	if item.EvidenceRequired && evidence == nil {
		return &ValidationError{Field: "evidence", Reason: fmt.Sprintf("item %q requires evidence to be completed", item.Label)}
	}
	if evidence != nil {
		if err := ValidateEvidence(evidence); err != nil {
			return err
		}
		if evidence.RecordedAt.IsZero() {
			evidence.RecordedAt = time.Now().UTC()
		}
	}

	now := time.Now().UTC()
	item.Completed = true
	item.CompletedAt = &now
	item.Evidence = evidence
	return nil
}

// ValidateEvidence checks the mandatory fields of an evidence payload
// according to its type discriminant.
func ValidateEvidence(ev *models.Evidence) error {
	switch ev.Type {
	case models.EvidenceFile:
		if len(ev.Files) == 0 {
			return &ValidationError{Field: "evidence", Reason: "file evidence must list at least one file"}
		}
	case models.EvidenceCommand:
		if ev.Command == "" {
			return &ValidationError{Field: "evidence", Reason: "command evidence must carry the command string"}
		}
	case models.EvidenceTest:
		if len(ev.Tests) == 0 {
			return &ValidationError{Field: "evidence", Reason: "test evidence must list at least one test"}
		}
	case models.EvidenceValidation:
		if ev.Check == "" {
			return &ValidationError{Field: "evidence", Reason: "validation evidence must name the check performed"}
		}
	case models.EvidenceManual:
		if ev.Notes == "" {
			return &ValidationError{Field: "evidence", Reason: "manual evidence must carry notes"}
		}
	case models.EvidenceOther:
		if ev.Description == "" {
			return &ValidationError{Field: "evidence", Reason: "other evidence must carry a description"}
		}
	default:
		return &ValidationError{Field: "evidence", Reason: fmt.Sprintf("unknown evidence type %q", ev.Type)}
	}
	return nil
}

// ValidateStageChecklistComplete blocks advancing past a stage until every
// required item for that stage is completed. The returned error enumerates
// all incomplete required items.
func (g *ChecklistGate) ValidateStageChecklistComplete(task *models.Task, stage models.Stage) error {
	cl := g.ChecklistFor(task, stage)
	if cl == nil {
		// Stages past the lazy window without an instance were materialized
		// on transition; validate against what would materialize.
		cl = g.InitializeChecklist(task.Clone(), stage)
	}
	if missing := cl.IncompleteRequired(); len(missing) > 0 {
		return &StateChecklistIncompleteError{Stage: stage, Missing: missing}
	}
	return nil
}

func (g *ChecklistGate) logEvent(eventType string, data map[string]any) {
	if g.events != nil {
		g.events.LogEvent(eventType, data)
	}
}

package core

import (
	"strings"

	"github.com/valter-silva-au/taskflow/pkg/models"
)

// Keyword tiers for goal-text priority detection, checked highest first so
// "fix critical crash" lands on critical rather than high.
var (
	criticalKeywords = []string{"critical", "urgent", "security", "crash", "data loss", "outage", "broken"}
	highKeywords     = []string{"bug", "fix", "error", "fail", "regression", "blocker"}
	lowKeywords      = []string{"refactor", "cleanup", "polish", "docs", "documentation", "minor", "nice to have"}
)

// DetectPriority derives a priority from the goal text. Unmatched goals get
// the fallback priority.
func DetectPriority(goal string, fallback models.Priority) models.Priority {
	if fallback == "" {
		fallback = models.PriorityMedium
	}
	lower := strings.ToLower(goal)
	for _, kw := range criticalKeywords {
		if strings.Contains(lower, kw) {
			return models.PriorityCritical
		}
	}
	for _, kw := range highKeywords {
		if strings.Contains(lower, kw) {
			return models.PriorityHigh
		}
	}
	for _, kw := range lowKeywords {
		if strings.Contains(lower, kw) {
			return models.PriorityLow
		}
	}
	return fallback
}

// ValidateGoal checks the goal length contract shared by create and update.
func ValidateGoal(goal string) error {
	trimmed := strings.TrimSpace(goal)
	if len(trimmed) < 10 {
		return &ValidationError{Field: "goal", Reason: "must be at least 10 characters"}
	}
	if len(trimmed) > 500 {
		return &ValidationError{Field: "goal", Reason: "must be at most 500 characters"}
	}
	return nil
}

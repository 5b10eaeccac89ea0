package models

import "time"

// GlobalConfig holds settings read from the .taskflowrc file.
type GlobalConfig struct {
	DefaultPriority  Priority
	ArchiveAfterDays int
	LockMaxAttempts  int
	LockBaseBackoff  time.Duration
	RateLimitMin     time.Duration
	PatternsDir      string
	ActivePatterns   []string
	ActiveRoles      []string
}

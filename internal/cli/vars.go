package cli

import (
	"github.com/valter-silva-au/taskflow/internal/core"
	"github.com/valter-silva-au/taskflow/internal/observability"
	"github.com/valter-silva-au/taskflow/internal/storage"
	"github.com/valter-silva-au/taskflow/pkg/models"
)

// Service instances, set during app initialization in app.go.
var (
	BasePath     string
	Config       *models.GlobalConfig
	Store        *storage.QueueStore
	Mirror       *storage.MirrorSync
	Gate         *core.ChecklistGate
	Orchestrator core.Orchestrator
	EventLog     observability.EventLog
)

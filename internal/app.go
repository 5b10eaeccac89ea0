// Package internal provides the App struct that wires all components of
// the taskflow system together and initializes the CLI layer.
package internal

import (
	"os"
	"path/filepath"
	"time"

	"github.com/valter-silva-au/taskflow/internal/cli"
	"github.com/valter-silva-au/taskflow/internal/core"
	"github.com/valter-silva-au/taskflow/internal/observability"
	"github.com/valter-silva-au/taskflow/internal/storage"
	"github.com/valter-silva-au/taskflow/pkg/models"
)

// App holds all service dependencies for taskflow. Components are
// constructed explicitly and injected; nothing is created at import time.
type App struct {
	BasePath string

	ConfigMgr core.ConfigurationManager
	Config    *models.GlobalConfig

	Store  *storage.QueueStore
	Mirror *storage.MirrorSync

	Gate         *core.ChecklistGate
	Orchestrator core.Orchestrator

	EventLog observability.EventLog
}

// NewApp creates and wires all components. basePath is the directory whose
// .taskflow/ subdirectory holds the queue, mirror, and event log.
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.LoadGlobalConfig()
	if err != nil {
		return nil, err
	}
	app.Config = cfg

	// --- Observability ---
	eventLogPath := filepath.Join(basePath, ".taskflow", "events.jsonl")
	if mkdirErr := os.MkdirAll(filepath.Dir(eventLogPath), 0o700); mkdirErr == nil {
		if log, logErr := observability.NewJSONLEventLog(eventLogPath); logErr == nil {
			app.EventLog = log
		}
		// Non-fatal: run without the event log if it can't be created.
	}
	var events core.EventLogger
	if app.EventLog != nil {
		events = &eventLogAdapter{log: app.EventLog}
	}

	// --- Storage layer ---
	app.Store = storage.NewQueueStore(basePath, cfg)
	app.Mirror = storage.NewMirrorSync(app.Store, events)

	// --- Checklist gate ---
	patterns := core.NewFilePatternProvider(filepath.Join(basePath, cfg.PatternsDir))
	app.Gate = core.NewChecklistGate(patterns, events, cfg)

	// --- Orchestrator ---
	app.Orchestrator = core.NewOrchestrator(app.Store, app.Mirror, app.Gate, events, cfg)

	// --- Wire CLI package-level variables ---
	cli.BasePath = basePath
	cli.Config = cfg
	cli.Store = app.Store
	cli.Mirror = app.Mirror
	cli.Gate = app.Gate
	cli.Orchestrator = app.Orchestrator
	cli.EventLog = app.EventLog

	return app, nil
}

// Close releases resources held by the App, such as the event log handle.
func (a *App) Close() error {
	if a.EventLog != nil {
		return a.EventLog.Close()
	}
	return nil
}

// ResolveBasePath determines the base path for the taskflow data
// directory: TASKFLOW_HOME if set, else the nearest ancestor directory
// containing .taskflowrc or .taskflow/, else the current directory.
func ResolveBasePath() string {
	if home := os.Getenv("TASKFLOW_HOME"); home != "" {
		return home
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ".taskflowrc")); err == nil {
			return dir
		}
		if _, err := os.Stat(filepath.Join(dir, ".taskflow")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	cwd, _ := os.Getwd()
	return cwd
}

// eventLogAdapter adapts observability.EventLog to core.EventLogger.
type eventLogAdapter struct {
	log observability.EventLog
}

// warnEvents are the event types recorded at WARN level.
var warnEvents = map[string]bool{
	"rate_limit.warning":          true,
	"pattern.load_failed":         true,
	"mirror.manual_edit_detected": true,
}

func (a *eventLogAdapter) LogEvent(eventType string, data map[string]any) {
	level := "INFO"
	if warnEvents[eventType] {
		level = "WARN"
	}
	_ = a.log.Write(observability.Event{
		Time:    time.Now().UTC(),
		Level:   level,
		Type:    eventType,
		Message: eventType,
		Data:    data,
	})
}

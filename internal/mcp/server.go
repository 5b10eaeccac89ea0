// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the task lifecycle operations as MCP tools for AI coding assistants.
package mcp

import (
	"context"
	"fmt"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/valter-silva-au/taskflow/internal/core"
	"github.com/valter-silva-au/taskflow/pkg/models"
)

// Server wraps the lifecycle orchestrator and exposes it as MCP tools.
type Server struct {
	server *gomcp.Server
	orch   core.Orchestrator
	store  core.TaskStore
}

// NewServer creates an MCP server over the given orchestrator and store.
func NewServer(orch core.Orchestrator, store core.TaskStore, version string) *Server {
	if version == "" {
		version = "dev"
	}
	s := &Server{orch: orch, store: store}
	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "taskflow", Version: version},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio, blocking until the client
// disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type createTaskInput struct {
	Goal         string   `json:"goal" jsonschema:"required,what the task should accomplish (10-500 characters)"`
	Priority     string   `json:"priority,omitempty" jsonschema:"priority override (critical, high, medium, low); auto-detected from the goal when omitted"`
	Tags         []string `json:"tags,omitempty" jsonschema:"free-form tags"`
	Requirements []string `json:"requirements,omitempty" jsonschema:"acceptance requirements for the review stage"`
	Force        bool     `json:"force,omitempty" jsonschema:"make this task active even if another task currently is"`
}

type taskOutput struct {
	ID           string   `json:"id"`
	Goal         string   `json:"goal"`
	Status       string   `json:"status"`
	Priority     string   `json:"priority"`
	Stage        string   `json:"stage,omitempty"`
	Progress     int      `json:"progress"`
	Tags         []string `json:"tags,omitempty"`
	Requirements []string `json:"requirements,omitempty"`
	CreatedAt    string   `json:"created_at"`
}

type getCurrentTaskInput struct{}

type updateTaskInput struct {
	TaskID       string   `json:"task_id" jsonschema:"required,the task identifier (e.g. TASK-00042)"`
	Goal         string   `json:"goal,omitempty" jsonschema:"new goal text (10-500 characters)"`
	Priority     string   `json:"priority,omitempty" jsonschema:"new priority (critical, high, medium, low)"`
	Tags         []string `json:"tags,omitempty" jsonschema:"replacement tag list"`
	Requirements []string `json:"requirements,omitempty" jsonschema:"replacement requirements list"`
}

type advanceStageInput struct {
	TaskID string `json:"task_id" jsonschema:"required,the task identifier"`
	Stage  string `json:"stage,omitempty" jsonschema:"target stage; defaults to the next stage in the workflow"`
}

type listTasksInput struct {
	Status          string `json:"status,omitempty" jsonschema:"filter by status (queued, active, done, archived)"`
	IncludeArchived bool   `json:"include_archived,omitempty" jsonschema:"include archived tasks"`
}

type listTasksOutput struct {
	Tasks []taskOutput `json:"tasks"`
	Count int          `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "create_task",
		Description: "Create a new task. It becomes active if no task currently is, otherwise it is queued.",
	}, s.handleCreateTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_current_task",
		Description: "Get the single currently active task, including its workflow stage and progress.",
	}, s.handleGetCurrentTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "update_task",
		Description: "Update a task's goal, priority, tags, or requirements.",
	}, s.handleUpdateTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "advance_stage",
		Description: "Advance a task's workflow by one stage. Stages are strictly forward-only: planning, implementation, testing, review, documentation, ready.",
	}, s.handleAdvanceStage)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_tasks",
		Description: "List tasks sorted active-first, then by priority and age.",
	}, s.handleListTasks)
}

// --- Tool handlers ---

func (s *Server) handleCreateTask(_ context.Context, _ *gomcp.CallToolRequest, input createTaskInput) (*gomcp.CallToolResult, taskOutput, error) {
	if input.Goal == "" {
		return errorResult("goal is required"), taskOutput{}, nil
	}
	task, err := s.orch.CreateTask(input.Goal, core.TaskCreateOptions{
		Priority:     models.Priority(input.Priority),
		Tags:         input.Tags,
		Requirements: input.Requirements,
		Force:        input.Force,
	})
	if err != nil {
		return errorResult(fmt.Sprintf("creating task: %s", err)), taskOutput{}, nil
	}
	return nil, taskToOutput(task), nil
}

func (s *Server) handleGetCurrentTask(_ context.Context, _ *gomcp.CallToolRequest, _ getCurrentTaskInput) (*gomcp.CallToolResult, taskOutput, error) {
	task, err := s.orch.GetCurrentTask()
	if err != nil {
		return errorResult(fmt.Sprintf("reading current task: %s", err)), taskOutput{}, nil
	}
	if task == nil {
		return errorResult("no task is currently active"), taskOutput{}, nil
	}
	return nil, taskToOutput(task), nil
}

func (s *Server) handleUpdateTask(_ context.Context, _ *gomcp.CallToolRequest, input updateTaskInput) (*gomcp.CallToolResult, taskOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), taskOutput{}, nil
	}
	update := core.TaskUpdate{Tags: input.Tags, Requirements: input.Requirements}
	if input.Goal != "" {
		update.Goal = &input.Goal
	}
	if input.Priority != "" {
		p := models.Priority(input.Priority)
		update.Priority = &p
	}
	task, err := s.orch.UpdateTask(input.TaskID, update)
	if err != nil {
		return errorResult(fmt.Sprintf("updating task %s: %s", input.TaskID, err)), taskOutput{}, nil
	}
	return nil, taskToOutput(task), nil
}

func (s *Server) handleAdvanceStage(_ context.Context, _ *gomcp.CallToolRequest, input advanceStageInput) (*gomcp.CallToolResult, taskOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), taskOutput{}, nil
	}

	target := models.Stage(input.Stage)
	if target == "" {
		task, err := s.store.GetTask(input.TaskID)
		if err != nil {
			return errorResult(fmt.Sprintf("getting task %s: %s", input.TaskID, err)), taskOutput{}, nil
		}
		if task.Workflow == nil {
			return errorResult(fmt.Sprintf("task %s has no workflow; activate it first", input.TaskID)), taskOutput{}, nil
		}
		next, ok := core.NextStage(task.Workflow.CurrentState)
		if !ok {
			return errorResult(fmt.Sprintf("task %s is already at the terminal stage", input.TaskID)), taskOutput{}, nil
		}
		target = next
	}

	task, err := s.orch.UpdateState(input.TaskID, target)
	if err != nil {
		return errorResult(fmt.Sprintf("advancing task %s: %s", input.TaskID, err)), taskOutput{}, nil
	}
	return nil, taskToOutput(task), nil
}

func (s *Server) handleListTasks(_ context.Context, _ *gomcp.CallToolRequest, input listTasksInput) (*gomcp.CallToolResult, listTasksOutput, error) {
	filter := core.TaskListFilter{IncludeArchived: input.IncludeArchived}
	if input.Status != "" {
		filter.Statuses = []models.TaskStatus{models.TaskStatus(input.Status)}
	}
	tasks, err := s.store.ListTasks(filter)
	if err != nil {
		return errorResult(fmt.Sprintf("listing tasks: %s", err)), listTasksOutput{}, nil
	}
	out := listTasksOutput{Tasks: make([]taskOutput, len(tasks)), Count: len(tasks)}
	for i, t := range tasks {
		out.Tasks[i] = taskToOutput(t)
	}
	return nil, out, nil
}

// --- Helpers ---

func taskToOutput(t *models.Task) taskOutput {
	out := taskOutput{
		ID:           t.ID,
		Goal:         t.Goal,
		Status:       string(t.Status),
		Priority:     string(t.Priority),
		Tags:         t.Tags,
		Requirements: t.Requirements,
		CreatedAt:    t.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if t.Workflow != nil {
		out.Stage = string(t.Workflow.CurrentState)
		out.Progress = core.Progress(t.Workflow.CurrentState)
	}
	return out
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

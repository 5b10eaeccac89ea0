package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/valter-silva-au/taskflow/internal/core"
	"github.com/valter-silva-au/taskflow/pkg/models"
)

var checklistStage string

// Checklist rendering styles.
var (
	stageHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("62"))

	itemDoneStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	itemPendingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	itemOptionalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	evidenceStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

var checklistCmd = &cobra.Command{
	Use:   "checklist [task-id]",
	Short: "Show stage checklists for a task",
	Long: `Show the checklists of a task, one per stage the task has reached.
Without a task ID the active task is used; --stage restricts the output
to one stage.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Gate == nil {
			return fmt.Errorf("checklist gate not initialized")
		}
		task, err := resolveTask(args)
		if err != nil {
			return err
		}
		if task.Workflow == nil {
			return fmt.Errorf("task %s has no workflow; activate it first", task.ID)
		}

		stages := core.Stages()
		if checklistStage != "" {
			stages = []models.Stage{models.Stage(checklistStage)}
		}

		printed := false
		for _, stage := range stages {
			cl := Gate.ChecklistFor(task, stage)
			if cl == nil {
				continue
			}
			if printed {
				fmt.Println()
			}
			printChecklist(task, stage, cl)
			printed = true
		}
		if !printed {
			fmt.Printf("No checklists materialized yet for %s.\n", task.ID)
		}
		return nil
	},
}

func printChecklist(task *models.Task, stage models.Stage, cl *models.Checklist) {
	marker := ""
	if task.Workflow != nil && task.Workflow.CurrentState == stage {
		marker = "  (current)"
	}
	fmt.Println(stageHeaderStyle.Render(fmt.Sprintf("%s%s", strings.ToUpper(string(stage)), marker)))
	for _, item := range cl.Items {
		line := renderItem(item)
		fmt.Println("  " + line)
		if item.Evidence != nil {
			fmt.Println("      " + evidenceStyle.Render(summarizeEvidence(item.Evidence)))
		}
	}
	if missing := cl.IncompleteRequired(); len(missing) > 0 {
		fmt.Printf("  %d required item(s) remaining before leaving %s.\n", len(missing), stage)
	}
}

func renderItem(item models.ChecklistItem) string {
	box := "[ ]"
	style := itemPendingStyle
	switch {
	case item.Completed:
		box = "[x]"
		style = itemDoneStyle
	case !item.Required:
		style = itemOptionalStyle
	}
	suffix := ""
	if item.EvidenceRequired {
		suffix = " (evidence required)"
	}
	if !item.Required {
		suffix += " (optional)"
	}
	if item.Source == models.SourcePattern {
		suffix += " [pattern]"
	}
	return style.Render(fmt.Sprintf("%s %s  %s%s", box, item.ID, item.Label, suffix))
}

func summarizeEvidence(ev *models.Evidence) string {
	switch ev.Type {
	case models.EvidenceFile:
		return fmt.Sprintf("files: %s", strings.Join(ev.Files, ", "))
	case models.EvidenceCommand:
		return fmt.Sprintf("command: %s", ev.Command)
	case models.EvidenceTest:
		return fmt.Sprintf("tests: %s", strings.Join(ev.Tests, ", "))
	case models.EvidenceValidation:
		return fmt.Sprintf("check: %s", ev.Check)
	case models.EvidenceManual:
		return fmt.Sprintf("notes: %s", ev.Notes)
	default:
		return ev.Description
	}
}

func init() {
	checklistCmd.Flags().StringVar(&checklistStage, "stage", "", "Show only this stage's checklist")
	rootCmd.AddCommand(checklistCmd)
}

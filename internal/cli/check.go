package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/taskflow/pkg/models"
)

var (
	checkTaskID      string
	checkStage       string
	checkEvType      string
	checkFiles       []string
	checkCommand     string
	checkOutput      string
	checkTests       []string
	checkCheck       string
	checkNotes       string
	checkDescription string
)

var checkCmd = &cobra.Command{
	Use:   "check <item-id>",
	Short: "Complete a checklist item",
	Long: `Mark a checklist item completed on the active task (or --task).
Items declared with evidence-required must carry an evidence payload,
given via --evidence-type plus the fields that type mandates:

  file        --file (repeatable)
  command     --command, optionally --output
  test        --test (repeatable)
  validation  --check
  manual      --notes
  other       --description

Without --stage the item is looked up in the current stage's checklist.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Store == nil || Gate == nil || Mirror == nil {
			return fmt.Errorf("store not initialized")
		}
		itemID := args[0]

		id := checkTaskID
		if id == "" {
			active, err := Store.GetActiveTask()
			if err != nil {
				return err
			}
			if active == nil {
				return fmt.Errorf("no active task; pass --task")
			}
			id = active.ID
		}

		evidence := buildEvidence()

		task, err := Store.UpdateTask(id, func(t *models.Task) error {
			stage := models.Stage(checkStage)
			if checkStage == "" {
				if t.Workflow == nil {
					return fmt.Errorf("task %s has no workflow; activate it first", t.ID)
				}
				stage = t.Workflow.CurrentState
			}
			return Gate.CompleteItem(t, stage, itemID, evidence)
		})
		if err != nil {
			return err
		}
		if err := Mirror.Sync(); err != nil {
			return fmt.Errorf("syncing mirror: %w", err)
		}
		logInfo("checklist.item_completed", map[string]any{"task_id": task.ID, "item_id": itemID})
		fmt.Printf("Completed item %s on %s\n", itemID, task.ID)
		return nil
	},
}

// buildEvidence assembles the evidence payload from the flags, or nil when
// no evidence type was given.
func buildEvidence() *models.Evidence {
	if checkEvType == "" {
		return nil
	}
	return &models.Evidence{
		Type:        models.EvidenceType(checkEvType),
		Files:       checkFiles,
		Command:     checkCommand,
		Output:      checkOutput,
		Tests:       checkTests,
		Check:       checkCheck,
		Notes:       checkNotes,
		Description: checkDescription,
	}
}

func init() {
	checkCmd.Flags().StringVar(&checkTaskID, "task", "", "Task ID (defaults to the active task)")
	checkCmd.Flags().StringVar(&checkStage, "stage", "", "Stage holding the item (defaults to the current stage)")
	checkCmd.Flags().StringVar(&checkEvType, "evidence-type", "", "Evidence type (file, command, test, validation, manual, other)")
	checkCmd.Flags().StringSliceVar(&checkFiles, "file", nil, "File touched (repeatable)")
	checkCmd.Flags().StringVar(&checkCommand, "command", "", "Command that was run")
	checkCmd.Flags().StringVar(&checkOutput, "output", "", "Output of the command")
	checkCmd.Flags().StringSliceVar(&checkTests, "test", nil, "Test that was run (repeatable)")
	checkCmd.Flags().StringVar(&checkCheck, "check", "", "Validation check performed")
	checkCmd.Flags().StringVar(&checkNotes, "notes", "", "Notes for manual evidence")
	checkCmd.Flags().StringVar(&checkDescription, "description", "", "Description for other evidence")
	rootCmd.AddCommand(checkCmd)
}

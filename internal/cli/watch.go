package cli

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/valter-silva-au/taskflow/internal/core"
	"github.com/valter-silva-au/taskflow/pkg/models"
)

// Watch view styles.
var (
	watchTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	watchHelpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	watchStageStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	watchDimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	watchDoneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	watchTodoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live view of the active task",
	Long: `Watch the active task and its current-stage checklist, refreshing
whenever the queue or mirror file changes on disk.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Store == nil {
			return fmt.Errorf("store not initialized")
		}
		program := tea.NewProgram(newWatchModel(), tea.WithAltScreen())

		cleanup, err := startQueueWatcher(Store.DataDir(), program)
		if err != nil {
			return fmt.Errorf("starting file watcher: %w", err)
		}
		defer cleanup()

		_, err = program.Run()
		return err
	},
}

// queueChangedMsg is sent by the file watcher after a debounced change to
// the data directory.
type queueChangedMsg struct{}

type watchLoadedMsg struct {
	active *models.Task
	queued int
	err    error
}

type watchModel struct {
	active  *models.Task
	queued  int
	err     error
	loading bool
	width   int
}

func newWatchModel() watchModel {
	return watchModel{loading: true}
}

func loadWatchData() tea.Msg {
	active, err := Store.GetActiveTask()
	if err != nil {
		return watchLoadedMsg{err: err}
	}
	tasks, err := Store.ListTasks(core.TaskListFilter{Statuses: []models.TaskStatus{models.StatusQueued}})
	if err != nil {
		return watchLoadedMsg{err: err}
	}
	return watchLoadedMsg{active: active, queued: len(tasks)}
}

func (m watchModel) Init() tea.Cmd {
	return loadWatchData
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "r":
			m.loading = true
			return m, loadWatchData
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case queueChangedMsg:
		return m, loadWatchData

	case watchLoadedMsg:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.active = msg.active
			m.queued = msg.queued
		}
		return m, nil
	}

	return m, nil
}

func (m watchModel) View() string {
	title := watchTitleStyle.Render(" taskflow ")
	help := watchHelpStyle.Render("r: refresh | q: quit")

	if m.loading {
		return fmt.Sprintf("%s\n\n  Loading...\n\n%s", title, help)
	}
	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}
	if m.active == nil {
		return fmt.Sprintf("%s\n\n  No active task. %d queued.\n\n%s", title, m.queued, help)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "  %s  %s\n", m.active.ID, m.active.Goal)
	fmt.Fprintf(&b, "  priority %s, %d queued behind\n\n", m.active.Priority, m.queued)

	if wf := m.active.Workflow; wf != nil {
		b.WriteString("  " + renderStageTrack(wf.CurrentState) + "\n")
		fmt.Fprintf(&b, "  %s since %s (%d%%)\n",
			watchStageStyle.Render(string(wf.CurrentState)),
			wf.StateEnteredAt.Local().Format("15:04"),
			core.Progress(wf.CurrentState))

		if cl, ok := m.active.Checklists[wf.CurrentState]; ok && cl != nil {
			b.WriteString("\n")
			for _, item := range cl.Items {
				if item.Completed {
					fmt.Fprintf(&b, "  %s\n", watchDoneStyle.Render("[x] "+item.Label))
				} else {
					fmt.Fprintf(&b, "  %s\n", watchTodoStyle.Render("[ ] "+item.Label))
				}
			}
		}
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, b.String(), help)
}

// renderStageTrack draws the six stages with the current one highlighted.
func renderStageTrack(current models.Stage) string {
	parts := make([]string, 0, 6)
	curIdx := core.StageIndex(current)
	for i, stage := range core.Stages() {
		label := string(stage)
		switch {
		case i < curIdx:
			parts = append(parts, watchDoneStyle.Render(label))
		case i == curIdx:
			parts = append(parts, watchStageStyle.Render(label))
		default:
			parts = append(parts, watchDimStyle.Render(label))
		}
	}
	return strings.Join(parts, watchDimStyle.Render(" > "))
}

// startQueueWatcher watches the data directory and sends queueChangedMsg
// after a 200ms debounce, so the atomic temp-write-rename sequence produces
// one refresh instead of three.
func startQueueWatcher(dir string, program *tea.Program) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		var debounce *time.Timer
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !strings.HasSuffix(event.Name, ".json") {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(200*time.Millisecond, func() {
					program.Send(queueChangedMsg{})
				})

			case <-watcher.Errors:

			case <-done:
				return
			}
		}
	}()

	cleanup := func() {
		close(done)
		watcher.Close()
	}
	return cleanup, nil
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

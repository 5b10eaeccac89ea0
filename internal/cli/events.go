package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/taskflow/internal/observability"
)

var (
	eventsType  string
	eventsLevel string
	eventsSince string
	eventsLimit int
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show the recorded event log",
	Long: `Read the append-only event log back, newest last. Events record
task creations, stage changes, completions, mirror resyncs, and
rate-limit warnings.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if EventLog == nil {
			return fmt.Errorf("event log not initialized")
		}
		filter := observability.EventFilter{Type: eventsType, Level: eventsLevel}
		if eventsSince != "" {
			d, err := time.ParseDuration(eventsSince)
			if err != nil {
				return fmt.Errorf("parsing --since: %w", err)
			}
			since := time.Now().Add(-d)
			filter.Since = &since
		}
		events, err := EventLog.Read(filter)
		if err != nil {
			return err
		}
		if eventsLimit > 0 && len(events) > eventsLimit {
			events = events[len(events)-eventsLimit:]
		}
		if len(events) == 0 {
			fmt.Println("No events recorded.")
			return nil
		}
		for _, ev := range events {
			fmt.Printf("%s %-5s %-28s %s\n", ev.Time.Local().Format("2006-01-02 15:04:05"), ev.Level, ev.Type, ev.Message)
		}
		return nil
	},
}

// logInfo records an INFO event from a command, silently dropping the write
// error. The log is advisory; a failed append never fails the command.
func logInfo(eventType string, data map[string]any) {
	if EventLog == nil {
		return
	}
	_ = EventLog.Write(observability.Event{
		Time:  time.Now().UTC(),
		Level: "INFO",
		Type:  eventType,
		Data:  data,
	})
}

func init() {
	eventsCmd.Flags().StringVar(&eventsType, "type", "", "Filter by event type (e.g. task.state_changed)")
	eventsCmd.Flags().StringVar(&eventsLevel, "level", "", "Filter by level (INFO, WARN, ERROR)")
	eventsCmd.Flags().StringVar(&eventsSince, "since", "", "Only events newer than this duration (e.g. 24h)")
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 50, "Show at most this many events (0 for all)")
	rootCmd.AddCommand(eventsCmd)
}

package observability

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestLog(t *testing.T) (EventLog, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	log, err := NewJSONLEventLog(path)
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	t.Cleanup(func() { _ = log.Close() })
	return log, path
}

func TestEventLog_WriteAndRead(t *testing.T) {
	log, _ := newTestLog(t)

	events := []Event{
		{Time: time.Now().UTC(), Level: "INFO", Type: "task.created", Data: map[string]any{"task_id": "TASK-00001"}},
		{Time: time.Now().UTC(), Level: "WARN", Type: "rate_limit.warning"},
		{Time: time.Now().UTC(), Level: "INFO", Type: "task.state_changed"},
	}
	for _, ev := range events {
		if err := log.Write(ev); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got[0].Type != "task.created" {
		t.Fatalf("expected insertion order preserved, got %s first", got[0].Type)
	}
	if got[0].Data["task_id"] != "TASK-00001" {
		t.Fatalf("expected data round-tripped, got %v", got[0].Data)
	}
}

func TestEventLog_Filters(t *testing.T) {
	log, _ := newTestLog(t)

	old := time.Now().UTC().Add(-time.Hour)
	recent := time.Now().UTC()
	for _, ev := range []Event{
		{Time: old, Level: "INFO", Type: "task.created"},
		{Time: recent, Level: "WARN", Type: "rate_limit.warning"},
		{Time: recent, Level: "INFO", Type: "task.state_changed"},
	} {
		if err := log.Write(ev); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	byType, err := log.Read(EventFilter{Type: "task.created"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(byType) != 1 {
		t.Fatalf("expected 1 event by type, got %d", len(byType))
	}

	byLevel, err := log.Read(EventFilter{Level: "WARN"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(byLevel) != 1 || byLevel[0].Type != "rate_limit.warning" {
		t.Fatalf("expected the WARN event, got %v", byLevel)
	}

	cutoff := time.Now().UTC().Add(-30 * time.Minute)
	since, err := log.Read(EventFilter{Since: &cutoff})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(since) != 2 {
		t.Fatalf("expected 2 recent events, got %d", len(since))
	}

	until, err := log.Read(EventFilter{Until: &cutoff})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(until) != 1 {
		t.Fatalf("expected 1 old event, got %d", len(until))
	}
}

func TestEventLog_SkipsCorruptLines(t *testing.T) {
	log, path := newTestLog(t)

	if err := log.Write(Event{Time: time.Now().UTC(), Level: "INFO", Type: "task.created"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A partially written tail must not make the log unreadable.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("opening log: %v", err)
	}
	if _, err := f.WriteString("{truncated jso\n"); err != nil {
		t.Fatalf("appending garbage: %v", err)
	}
	_ = f.Close()

	if err := log.Write(Event{Time: time.Now().UTC(), Level: "INFO", Type: "task.state_changed"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 decodable events, got %d", len(got))
	}
}

func TestEventLog_ReadMissingFile(t *testing.T) {
	log := &jsonlEventLog{path: filepath.Join(t.TempDir(), "never-created.jsonl")}
	events, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if events != nil {
		t.Fatalf("expected no events, got %v", events)
	}
}

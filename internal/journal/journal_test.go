package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/oio/domestic-ai/internal/testutil/testlog"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndTail(t *testing.T) {
	testlog.Start(t)

	j := openTestJournal(t)
	if err := j.RecordTransition("api", "pending", "starting", "bring-up"); err != nil {
		t.Fatalf("record transition: %v", err)
	}
	if err := j.RecordProbe("api", true, 12*time.Millisecond, ""); err != nil {
		t.Fatalf("record probe: %v", err)
	}
	if err := j.RecordEviction("api", 8000, 4242, "python3 old-api.py"); err != nil {
		t.Fatalf("record eviction: %v", err)
	}

	events, err := j.Tail(10)
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	// Newest first.
	if events[0].Kind != "eviction" || events[2].Kind != "transition" {
		t.Fatalf("unexpected order: %v, %v, %v", events[0].Kind, events[1].Kind, events[2].Kind)
	}
	for _, e := range events {
		if e.Unit != "api" {
			t.Fatalf("unexpected unit: %q", e.Unit)
		}
	}
}

func TestTailLimit(t *testing.T) {
	j := openTestJournal(t)
	for i := 0; i < 10; i++ {
		if err := j.RecordProbe("tools", false, time.Millisecond, "refused"); err != nil {
			t.Fatalf("record probe: %v", err)
		}
	}
	events, err := j.Tail(4)
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
}

func TestUnitHistory(t *testing.T) {
	j := openTestJournal(t)
	if err := j.RecordTransition("bot", "pending", "starting", ""); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := j.RecordTransition("bot", "starting", "ready", "pid 123"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := j.RecordTransition("api", "pending", "starting", ""); err != nil {
		t.Fatalf("record: %v", err)
	}

	history, err := j.UnitHistory("bot", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 transitions for bot, got %d", len(history))
	}
	if history[0].Detail != "starting -> ready: pid 123" {
		t.Fatalf("unexpected newest transition: %q", history[0].Detail)
	}
}

func TestDiscardIsQuiet(t *testing.T) {
	var r Recorder = Discard{}
	if err := r.RecordTransition("x", "a", "b", ""); err != nil {
		t.Fatalf("discard transition: %v", err)
	}
	if err := r.RecordProbe("x", true, 0, ""); err != nil {
		t.Fatalf("discard probe: %v", err)
	}
	if err := r.RecordEviction("x", 1, 1, ""); err != nil {
		t.Fatalf("discard eviction: %v", err)
	}
}

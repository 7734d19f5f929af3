package fallback

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/cryochamber/cryo/internal/mailbox"
)

func TestArmDeadlineRequiresAlertAndNonNoneMode(t *testing.T) {
	wake := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	if _, armed := ArmDeadline(ModeOutbox, wake, false); armed {
		t.Error("expected not armed without an alert")
	}
	if _, armed := ArmDeadline(ModeNone, wake, true); armed {
		t.Error("expected not armed when mode is none")
	}
	deadline, armed := ArmDeadline(ModeOutbox, wake, true)
	if !armed {
		t.Fatal("expected armed")
	}
	if !deadline.Equal(wake.Add(Grace)) {
		t.Errorf("deadline = %v, want %v", deadline, wake.Add(Grace))
	}
}

func TestArmDeadlineZeroWakeNeverArms(t *testing.T) {
	if _, armed := ArmDeadline(ModeOutbox, time.Time{}, true); armed {
		t.Error("expected not armed for a zero wake time")
	}
}

func TestFireOutboxWritesMessage(t *testing.T) {
	dir := t.TempDir()
	outbox := filepath.Join(dir, "outbox")
	e := New(ModeOutbox, outbox)

	err := e.Fire(Payload{Action: "email", Target: "ops@example.com", Message: "nobody came back"})
	if err != nil {
		t.Fatalf("Fire: %v", err)
	}
	msgs, err := mailbox.ListSorted(outbox)
	if err != nil {
		t.Fatalf("ListSorted: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 outbox message, got %d", len(msgs))
	}
	if msgs[0].Frontmatter.From != "cryo-fallback" {
		t.Errorf("from = %q", msgs[0].Frontmatter.From)
	}
	if msgs[0].Frontmatter.Metadata["action"] != "email" {
		t.Errorf("metadata action = %q", msgs[0].Frontmatter.Metadata["action"])
	}
}

func TestFireNoneIsNoop(t *testing.T) {
	e := New(ModeNone, "")
	if err := e.Fire(Payload{Message: "x"}); err != nil {
		t.Errorf("Fire with ModeNone should not error: %v", err)
	}
}

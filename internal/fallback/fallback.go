// Package fallback implements the dead-man-switch: a deadline armed when
// a session hibernates having issued at least one Alert, fired if the
// daemon wakes with no session due before the next scheduled wake.
// Grounded in spec.md §4.8.
package fallback

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/cryochamber/cryo/internal/ipc"
	"github.com/cryochamber/cryo/internal/mailbox"
	"github.com/cryochamber/cryo/internal/push"
)

// Mode is the configured fallback_alert delivery mechanism.
type Mode string

const (
	ModeNone    Mode = "none"
	ModeOutbox  Mode = "outbox"
	ModeNotify  Mode = "notify"
	ModeWebhook Mode = "webhook"
)

// Grace is the window added to a scheduled wake before the fallback
// fires, giving the agent's own scheduled session a chance to run first.
const Grace = time.Hour

// Payload is the most recent Alert request's contents, captured during a
// session and fired verbatim if the deadline passes unattended.
type Payload struct {
	Action  string
	Target  string
	Message string
}

// Engine arms and fires the fallback deadline. It has no background
// goroutine of its own — the daemon loop treats fallback_deadline as just
// another deadline candidate and calls Fire when it wins.
type Engine struct {
	Mode      Mode
	OutboxDir string
	PushTopic string
	PushToken string
}

// New constructs an Engine from the configured mode and outbox directory.
func New(mode Mode, outboxDir string) *Engine {
	return &Engine{Mode: mode, OutboxDir: outboxDir}
}

// NewWithPush additionally configures the ntfy-compatible topic/URL used
// when mode is ModeWebhook.
func NewWithPush(mode Mode, outboxDir, pushTopic, pushToken string) *Engine {
	return &Engine{Mode: mode, OutboxDir: outboxDir, PushTopic: pushTopic, PushToken: pushToken}
}

// ArmDeadline computes the fallback_deadline for a session that hibernated
// with wakeTime and issued at least one Alert. It returns the zero time and
// armed=false if fallback is disabled, no Alert was issued, or wakeTime is
// zero.
func ArmDeadline(mode Mode, wakeTime time.Time, alerted bool) (deadline time.Time, armed bool) {
	if mode == ModeNone || !alerted || wakeTime.IsZero() {
		return time.Time{}, false
	}
	return wakeTime.Add(Grace), true
}

// Fire delivers the most recent alert payload per the engine's configured
// mode. A delivery error is logged by the caller and otherwise ignored —
// fallback delivery is best-effort (spec.md §7).
func (e *Engine) Fire(p Payload) error {
	switch e.Mode {
	case ModeOutbox:
		return e.fireOutbox(p)
	case ModeNotify:
		return fireNotify(p)
	case ModeWebhook:
		return e.firePush(p)
	case ModeNone:
		return nil
	default:
		return fmt.Errorf("unknown fallback mode %q", e.Mode)
	}
}

func (e *Engine) firePush(p Payload) error {
	if e.PushTopic == "" {
		return fmt.Errorf("fallback_alert=webhook requires fallback_push_topic")
	}
	client := push.New(e.PushTopic, e.PushToken)
	return client.Send(context.Background(), "cryo: unattended deadline", p.Message, "high")
}

func (e *Engine) fireOutbox(p Payload) error {
	fm := mailbox.Frontmatter{
		From:    "cryo-fallback",
		Subject: fmt.Sprintf("unattended deadline: %s", p.Action),
		Metadata: map[string]string{
			"action": p.Action,
			"target": p.Target,
		},
	}
	_, err := mailbox.Write(e.OutboxDir, fm, p.Message+"\n")
	return err
}

// fireNotify invokes the OS desktop-notification affordance, mirroring
// the teacher's GOOS-switched exec.Command dispatch for opening URLs.
func fireNotify(p Payload) error {
	title := "cryo: unattended deadline"
	body := p.Message
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q", body, title)
		return exec.Command("osascript", "-e", script).Run()
	case "linux":
		return exec.Command("notify-send", title, body).Run()
	default:
		return fmt.Errorf("desktop notifications not supported on %s", runtime.GOOS)
	}
}

// PayloadFromAlert converts an IPC Alert request into a fallback Payload.
func PayloadFromAlert(req ipc.Request) Payload {
	return Payload{Action: req.Action, Target: req.Target, Message: req.Message}
}

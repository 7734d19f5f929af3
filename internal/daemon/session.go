package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cryochamber/cryo/internal/eventlog"
	"github.com/cryochamber/cryo/internal/fallback"
	"github.com/cryochamber/cryo/internal/ipc"
	"github.com/cryochamber/cryo/internal/mailbox"
	"github.com/cryochamber/cryo/internal/retry"
	"github.com/cryochamber/cryo/internal/state"
	"github.com/cryochamber/cryo/internal/supervisor"
	"github.com/cryochamber/cryo/internal/wake"
)

// writeWakeNotice (re)writes the per-session delivery file the agent
// reads for the delayed-wake notice and any archived inbox messages.
// An empty notice removes a stale file from a prior session instead of
// leaving it to be misread as still-current.
func writeWakeNotice(path, content string) error {
	if content == "" {
		err := os.Remove(path)
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	return os.WriteFile(path, []byte(content), 0644)
}

// sessionState is the mutable scratch the IPC handler and runSession
// share while one agent child is alive, guarded by Daemon.mu alongside rs.
type sessionState struct {
	hibernateReq *ipc.Request // first terminal Hibernate received, if any
	alertIssued  bool
}

// runSession drives exactly one Running-phase iteration: spawn the agent,
// serve IPC until it hibernates or exits, then transition to Idle or
// AwaitingRetry per spec.md §4.1-§4.3.
func (d *Daemon) runSession(ctx context.Context) error {
	d.mu.Lock()
	d.phase = PhaseRunning
	d.rs.SessionNumber++
	session := int(d.rs.SessionNumber)
	scheduledWake := d.rs.NextWake
	providerIdx := d.retryCtl.ProviderIndex
	// A session starting at all is proof the agent woke; any fallback
	// armed by a prior session is now moot (spec.md §4.8: "disarm at the
	// next session's start").
	d.rs.FallbackDeadline = nil
	d.rs.FallbackPayload = nil
	d.saveStateLocked()
	d.mu.Unlock()

	now := d.Clock.Now()
	w, err := eventlog.Open(d.Dir.SessionLogPath(), session, now)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}

	var provider state.Provider
	if n := len(d.Config.Providers); n > 0 {
		provider = d.Config.Providers[int(providerIdx)%n]
	}

	var notice strings.Builder
	if scheduledWake != nil {
		if delay, delayed := wake.Classify(*scheduledWake, now); delayed {
			w.Event(now, "delayed_wake", eventlog.Str("scheduled", scheduledWake.UTC().Format(time.RFC3339)), eventlog.Str("delay", delay))
			notice.WriteString(wake.Notice(delay) + "\n\n")
		}
	}

	msgs, err := d.archiveInbox()
	if err != nil {
		d.Log.Warn("archive inbox failed", "error", err)
	}
	for _, m := range msgs {
		w.Event(now, "message_delivered", eventlog.Str("from", m.Frontmatter.From), eventlog.Str("subject", m.Frontmatter.Subject))
		fmt.Fprintf(&notice, "--- message from=%s subject=%q ---\n%s\n\n", m.Frontmatter.From, m.Frontmatter.Subject, m.Body)
	}
	if err := writeWakeNotice(d.Dir.WakeNoticePath(), notice.String()); err != nil {
		d.Log.Warn("write wake notice failed", "error", err)
	}

	spawned, err := supervisor.Spawn(ctx, d.Config, provider, string(d.Dir), d.Dir.SocketPath(), d.Dir.AgentLogPath())
	if err != nil {
		w.Event(now, "agent_start_failed", eventlog.Str("error", err.Error()))
		w.Close(now, string(supervisor.OutcomeCrashExitWithoutHiber))
		return d.finishFailedSession(ctx)
	}
	w.Event(now, "agent_started", eventlog.Val("pid", spawned.Cmd.Process.Pid))

	sess := &sessionState{}
	handler := d.buildIPCHandler(w, sess)
	srv, err := ipc.NewServer(d.Dir.SocketPath(), handler, d.Log)
	if err != nil {
		w.Event(d.Clock.Now(), "ipc_listen_failed", eventlog.Str("error", err.Error()))
	} else {
		go srv.Serve()
	}

	var timedOut bool
	var timeoutTimer <-chan time.Time
	if d.Config.MaxSessionDuration > 0 {
		t := time.NewTimer(time.Duration(d.Config.MaxSessionDuration) * time.Second)
		defer t.Stop()
		timeoutTimer = t.C
	}

	select {
	case <-spawned.Exited:
	case <-timeoutTimer:
		timedOut = true
		stopCtx, cancel := context.WithTimeout(ctx, supervisor.TerminateGrace+time.Second)
		spawned.Stop(stopCtx)
		cancel()
	case <-ctx.Done():
		stopCtx, cancel := context.WithTimeout(context.Background(), supervisor.TerminateGrace+time.Second)
		spawned.Stop(stopCtx)
		cancel()
	}

	if srv != nil {
		srv.Close()
	}

	lifetime := d.Clock.Now().Sub(spawned.StartedAt)
	d.mu.Lock()
	hiberReq := sess.hibernateReq
	d.mu.Unlock()

	outcome := supervisor.Classify(hiberReq != nil, lifetime, timedOut)
	finishNow := d.Clock.Now()
	w.Event(finishNow, "agent_exited", eventlog.Val("lifetime_seconds", int(lifetime.Seconds())))

	if hiberReq != nil {
		d.onClean(w, finishNow, *hiberReq, sess.alertIssued)
	} else {
		d.onCrash(w, finishNow, outcome)
	}

	w.Close(finishNow, string(outcome))
	d.Rec.IncSession(string(outcome))
	return d.saveState()
}

// buildIPCHandler returns the Handler bound to one session's writer and
// scratch state. Every call is already serialized by ipc.Server, but we
// still take Daemon.mu because RuntimeState (providerIdx, etc.) is shared
// with the outer loop.
func (d *Daemon) buildIPCHandler(w *eventlog.Writer, sess *sessionState) ipc.Handler {
	return func(req ipc.Request) ipc.Response {
		now := d.Clock.Now()

		d.mu.Lock()
		alreadyTerminal := sess.hibernateReq != nil
		d.mu.Unlock()

		if alreadyTerminal {
			w.Event(now, "late_request", eventlog.Str("kind", req.Kind))
			if ipc.IsTerminal(req.Kind) {
				return ipc.Response{OK: false, Message: "hibernate already recorded this session; ignored"}
			}
		}

		switch req.Kind {
		case ipc.KindHibernate:
			if err := req.ValidateHibernate(); err != nil {
				w.Event(now, "hibernate_rejected", eventlog.Str("error", err.Error()))
				return ipc.Response{OK: false, Message: err.Error()}
			}
			if alreadyTerminal {
				return ipc.Response{OK: false, Message: "hibernate already recorded this session; ignored"}
			}
			d.mu.Lock()
			sess.hibernateReq = &req
			d.mu.Unlock()
			fields := []eventlog.KV{eventlog.Val("complete", req.Complete), eventlog.Val("exit_code", req.ExitCode)}
			if req.Wake != "" {
				fields = append(fields, eventlog.Str("wake", req.Wake))
			}
			if req.Summary != "" {
				fields = append(fields, eventlog.Str("summary", req.Summary))
			}
			w.Event(now, "hibernate", fields...)
			return ipc.Response{OK: true, Message: "hibernating"}

		case ipc.KindNote:
			w.Event(now, "note", eventlog.Str("text", req.Text))
			return ipc.Response{OK: true, Message: "recorded"}

		case ipc.KindSend:
			path, err := mailbox.Write(d.Dir.OutboxDir(), mailbox.Frontmatter{
				From:      "agent",
				Subject:   req.Subject,
				Timestamp: now,
			}, req.Text)
			if err != nil {
				w.Event(now, "send_failed", eventlog.Str("error", err.Error()))
				return ipc.Response{OK: false, Message: err.Error()}
			}
			w.Event(now, "send", eventlog.Str("subject", req.Subject), eventlog.Str("path", path))
			return ipc.Response{OK: true, Message: "sent"}

		case ipc.KindReply:
			path, err := mailbox.Write(d.Dir.OutboxDir(), mailbox.Frontmatter{
				From:      "agent",
				Subject:   "Re: operator message",
				Timestamp: now,
			}, req.Text)
			if err != nil {
				w.Event(now, "reply_failed", eventlog.Str("error", err.Error()))
				return ipc.Response{OK: false, Message: err.Error()}
			}
			w.Event(now, "reply", eventlog.Str("path", path))
			return ipc.Response{OK: true, Message: "sent"}

		case ipc.KindReceive:
			msgs, err := mailbox.ListSorted(d.Dir.InboxDir())
			if err != nil {
				return ipc.Response{OK: false, Message: err.Error()}
			}
			views := make([]ipc.InboxMessageView, 0, len(msgs))
			for _, m := range msgs {
				views = append(views, ipc.InboxMessageView{
					From:      m.Frontmatter.From,
					Subject:   m.Frontmatter.Subject,
					Timestamp: m.Frontmatter.Timestamp.UTC().Format(time.RFC3339),
					Metadata:  m.Frontmatter.Metadata,
					Body:      m.Body,
				})
			}
			w.Event(now, "receive", eventlog.Val("count", len(views)))
			data, _ := marshalViews(views)
			return ipc.Response{OK: true, Message: "ok", Data: data}

		case ipc.KindAlert:
			d.mu.Lock()
			sess.alertIssued = true
			d.rs.FallbackPayload = &state.FallbackPayload{Action: req.Action, Target: req.Target, Message: req.Message}
			d.mu.Unlock()
			w.Event(now, "alert", eventlog.Str("action", req.Action), eventlog.Str("target", req.Target))
			return ipc.Response{OK: true, Message: "armed"}

		case ipc.KindTime:
			w.Event(now, "time_query", eventlog.Str("offset", req.Offset))
			t := now
			if req.Offset != "" {
				off, err := time.ParseDuration(req.Offset)
				if err != nil {
					return ipc.Response{OK: false, Message: "invalid offset: " + err.Error()}
				}
				t = t.Add(off)
			}
			return ipc.Response{OK: true, Message: t.UTC().Format(time.RFC3339)}

		default:
			w.Event(now, "unknown_request", eventlog.Str("kind", req.Kind))
			return ipc.Response{OK: false, Message: "unknown request kind: " + req.Kind}
		}
	}
}

func marshalViews(views []ipc.InboxMessageView) ([]byte, error) {
	return json.Marshal(views)
}

// onClean applies the Hibernate side-effects: schedule the next wake (or
// clear it for --complete), reset the retry controller, and arm the
// fallback deadline if the session issued an Alert.
func (d *Daemon) onClean(w *eventlog.Writer, now time.Time, req ipc.Request, alertIssued bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.retryCtl.Reset()
	d.rs.RetryCount = d.retryCtl.RetryCount
	d.rs.ProviderIndex = d.retryCtl.ProviderIndex

	if req.Complete {
		d.rs.NextWake = nil
	} else if t, err := time.Parse(time.RFC3339, req.Wake); err == nil {
		d.rs.NextWake = &t
	} else {
		w.Event(now, "wake_parse_failed", eventlog.Str("wake", req.Wake))
		d.rs.NextWake = nil
	}

	if alertIssued && d.rs.FallbackPayload != nil {
		wakeTime := now
		if d.rs.NextWake != nil {
			wakeTime = *d.rs.NextWake
		}
		if deadline, armed := fallback.ArmDeadline(fallback.Mode(d.Config.FallbackAlert), wakeTime, alertIssued); armed {
			d.rs.FallbackDeadline = &deadline
			w.Event(now, "fallback_armed", eventlog.Str("deadline", deadline.UTC().Format(time.RFC3339)))
		}
	} else {
		d.rs.FallbackPayload = nil
	}

	d.phase = PhaseIdle
	d.saveStateLocked()
}

// onCrash applies the AwaitingRetry transition: record the failure,
// decide on provider rotation, and schedule the next backoff.
func (d *Daemon) onCrash(w *eventlog.Writer, now time.Time, outcome supervisor.Outcome) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.retryCtl.RecordFailure()
	d.rs.RetryCount = d.retryCtl.RetryCount

	quickExit := outcome == supervisor.OutcomeCrashQuickExit
	backoff := retry.NextBackoff(d.retryCtl.RetryCount)

	if retry.Policy(d.Config.RotateOn).ShouldRotate(quickExit) && d.retryCtl.NumProviders > 0 {
		result := d.retryCtl.RotateProvider()
		d.retryCtl.ProviderIndex = result.To
		d.rs.ProviderIndex = result.To
		w.Event(now, "provider_rotated", eventlog.Val("from", result.From), eventlog.Val("to", result.To), eventlog.Val("wrapped", result.Wrapped))
		if result.Wrapped && backoff < retry.WrapMinBackoff {
			backoff = retry.WrapMinBackoff
		}
	}

	// Exhaustion never stops retries (spec.md §4.3: "retries continue at
	// the (capped) cadence indefinitely"); it does not affect the rotation
	// above. It logs retries_exhausted and raises the backoff to at least
	// the same 60 s floor a rotation wrap uses.
	if d.retryCtl.Exhausted() {
		w.Event(now, "retries_exhausted", eventlog.Val("retry_count", d.retryCtl.RetryCount))
		if backoff < retry.WrapMinBackoff {
			backoff = retry.WrapMinBackoff
		}
	}

	next := now.Add(backoff)
	d.rs.NextWake = &next
	d.phase = PhaseAwaitRetry
	w.Event(now, "retry_scheduled", eventlog.Val("in_seconds", int(backoff.Seconds())))
	d.saveStateLocked()
}

// finishFailedSession handles the case where the agent process itself
// could not be spawned at all (e.g. a missing binary).
func (d *Daemon) finishFailedSession(ctx context.Context) error {
	d.mu.Lock()
	d.retryCtl.RecordFailure()
	d.rs.RetryCount = d.retryCtl.RetryCount
	backoff := retry.NextBackoff(d.retryCtl.RetryCount)
	next := d.Clock.Now().Add(backoff)
	d.rs.NextWake = &next
	d.phase = PhaseAwaitRetry
	d.mu.Unlock()
	d.Rec.IncSession(string(supervisor.OutcomeCrashExitWithoutHiber))
	return d.saveState()
}

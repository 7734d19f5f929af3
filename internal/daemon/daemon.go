// Package daemon implements the state machine that orchestrates every
// other component: Idle/Running/AwaitingRetry/ShuttingDown, per
// spec.md §4.1.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cryochamber/cryo/internal/clockx"
	"github.com/cryochamber/cryo/internal/eventlog"
	"github.com/cryochamber/cryo/internal/fallback"
	"github.com/cryochamber/cryo/internal/mailbox"
	"github.com/cryochamber/cryo/internal/metrics"
	"github.com/cryochamber/cryo/internal/registry"
	"github.com/cryochamber/cryo/internal/report"
	"github.com/cryochamber/cryo/internal/retry"
	"github.com/cryochamber/cryo/internal/state"
	"github.com/cryochamber/cryo/internal/watch"
)

// Phase is the top-level daemon state.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseRunning      Phase = "running"
	PhaseAwaitRetry   Phase = "awaiting_retry"
	PhaseShuttingDown Phase = "shutting_down"
)

// Daemon owns the full lifecycle for one ProjectDir.
type Daemon struct {
	Dir    state.ProjectDir
	Config state.Config
	Clock  *clockx.Clock
	Log    *slog.Logger
	Rec    *metrics.Recorder

	mu          sync.Mutex // guards rs and the session-scoped fields below
	rs          state.RuntimeState
	retryCtl    *retry.Controller
	phase       Phase
	writer      *eventlog.Writer // non-nil only while Running
	sessionSeen bool             // an Alert was issued this session

	inboxChanged chan struct{}
	forcedWake   chan struct{}
	shuttingDown chan struct{}

	reporter *report.Reporter
	fbEngine *fallback.Engine
}

// New constructs a Daemon for dir using cfg (already effective-merged
// with RuntimeState overrides) and the last persisted RuntimeState.
func New(dir state.ProjectDir, cfg state.Config, rs state.RuntimeState, log *slog.Logger, rec *metrics.Recorder) *Daemon {
	if log == nil {
		log = slog.Default()
	}
	if rec == nil {
		rec = metrics.New(nil)
	}
	ctl := &retry.Controller{
		RetryCount:    rs.RetryCount,
		ProviderIndex: rs.ProviderIndex,
		MaxRetries:    cfg.MaxRetries,
		NumProviders:  uint32(len(cfg.Providers)),
	}
	return &Daemon{
		Dir:          dir,
		Config:       cfg,
		Clock:        clockx.System,
		Log:          log,
		Rec:          rec,
		rs:           rs,
		retryCtl:     ctl,
		phase:        PhaseIdle,
		inboxChanged: make(chan struct{}, 1),
		forcedWake:   make(chan struct{}, 1),
		shuttingDown: make(chan struct{}),
		fbEngine:     fallback.NewWithPush(fallback.Mode(cfg.FallbackAlert), dir.OutboxDir(), cfg.FallbackPushTopic, cfg.FallbackPushToken),
	}
}

// Run acquires the project lock and executes the main loop until ctx is
// cancelled or a shutdown signal arrives.
func (d *Daemon) Run(ctx context.Context) error {
	if state.IsLocked(d.rs) {
		return fmt.Errorf("project %s is already locked by a live daemon (pid=%v)", d.Dir, d.rs.PID)
	}

	pid := os.Getpid()
	d.rs.PID = &pid
	d.rs.FallbackDeadline = nil // disarm at start, spec.md §3
	d.rs.FallbackPayload = nil
	if err := d.saveState(); err != nil {
		return fmt.Errorf("save initial runtime state: %w", err)
	}
	if err := registry.Register(string(d.Dir), pid); err != nil {
		d.Log.Warn("registry.Register failed", "error", err)
	}
	defer func() {
		d.rs.PID = nil
		d.saveState()
		registry.Unregister(string(d.Dir))
	}()

	if err := eventlog.ScanAndCloseOrphan(d.Dir.SessionLogPath(), d.Clock.Now()); err != nil {
		d.Log.Warn("scan orphan session", "error", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGUSR1)
	defer signal.Stop(sigCh)

	var inbox *watch.Inbox
	if d.Config.WatchInbox {
		var err error
		inbox, err = watch.NewInbox(d.Dir.InboxDir(), d.inboxChanged, d.Log)
		if err != nil {
			return fmt.Errorf("start inbox watcher: %w", err)
		}
		go inbox.Run()
		defer inbox.Close()
	}

	d.startReporter()
	if d.reporter != nil {
		defer d.reporter.Stop()
	}

	d.Log.Info("daemon started", "dir", d.Dir, "pid", pid)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-d.shuttingDown:
			return nil
		case sig := <-sigCh:
			if sig == syscall.SIGUSR1 {
				d.Log.Info("forced wake signal received")
				d.runSessionLogged(ctx)
				continue
			}
			d.Log.Info("shutdown signal received", "signal", sig.String())
			return nil
		case <-d.inboxChanged:
			d.runSessionLogged(ctx)
		case <-d.forcedWake:
			d.runSessionLogged(ctx)
		case <-time.After(d.nextDeadlineWait()):
			if d.handleDeadline() {
				d.runSessionLogged(ctx)
			}
		}
	}
}

func (d *Daemon) runSessionLogged(ctx context.Context) {
	if err := d.runSession(ctx); err != nil {
		d.Log.Error("session error", "error", err)
	}
}

// nextDeadlineWait computes how long to wait before the earliest of
// next_wake, the fallback deadline, or a long default poll. The reporter
// runs on its own gocron goroutine and isn't part of this computation.
func (d *Daemon) nextDeadlineWait() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	const farFuture = 24 * time.Hour
	best := farFuture
	now := d.Clock.Now()

	consider := func(t *time.Time) {
		if t == nil {
			return
		}
		if gap := t.Sub(now); gap < best {
			if gap < 0 {
				gap = 0
			}
			best = gap
		}
	}
	consider(d.rs.NextWake)
	consider(d.rs.FallbackDeadline)
	return best
}

// handleDeadline is called when the wait in Run times out. It decides
// whether the trigger was the scheduled wake (session due) or the
// fallback deadline (fire and stay idle), returning true iff a session
// should start.
func (d *Daemon) handleDeadline() bool {
	d.mu.Lock()
	now := d.Clock.Now()
	wakeDue := d.rs.NextWake != nil && !now.Before(*d.rs.NextWake)
	fbDue := d.rs.FallbackDeadline != nil && !now.Before(*d.rs.FallbackDeadline)
	d.mu.Unlock()

	if wakeDue {
		return true
	}
	if fbDue {
		d.fireFallback()
		return false
	}
	return false
}

func (d *Daemon) fireFallback() {
	d.mu.Lock()
	payload := d.rs.FallbackPayload
	d.rs.FallbackDeadline = nil
	d.rs.FallbackPayload = nil
	d.saveStateLocked()
	d.mu.Unlock()

	if payload == nil {
		return
	}
	err := d.fbEngine.Fire(fallback.Payload{Action: payload.Action, Target: payload.Target, Message: payload.Message})
	if err != nil {
		d.Log.Warn("fallback delivery failed", "error", err)
		return
	}
	d.Rec.IncFallbackFired()
	d.Log.Info("fallback fired", "action", payload.Action)
}

func (d *Daemon) saveState() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.saveStateLocked()
}

func (d *Daemon) saveStateLocked() error {
	return state.SaveRuntimeState(d.Dir.RuntimeStatePath(), d.rs)
}

func (d *Daemon) startReporter() {
	if d.Config.ReportIntervalHours <= 0 && d.Config.ReportTimeOfDay == "" {
		return
	}
	lastReport := func() time.Time {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.rs.LastReportTime != nil {
			return *d.rs.LastReportTime
		}
		return d.Clock.Now().Add(-24 * time.Hour)
	}
	onSummary := func(s report.Summary) {
		now := d.Clock.Now()
		d.mu.Lock()
		d.rs.LastReportTime = &now
		d.saveStateLocked()
		d.mu.Unlock()
		d.Log.Info("report", "sessions", s.Sessions, "failures", s.Failures, "notes", s.Notes)
	}

	var r *report.Reporter
	var err error
	if d.Config.ReportTimeOfDay != "" {
		r, err = report.NewDaily(d.Config.ReportTimeOfDay, d.Dir.SessionLogPath(), lastReport, onSummary)
	} else {
		r, err = report.New(time.Duration(d.Config.ReportIntervalHours*float64(time.Hour)), d.Dir.SessionLogPath(), lastReport, onSummary)
	}
	if err != nil {
		d.Log.Warn("reporter disabled", "error", err)
		return
	}
	d.reporter = r
	r.Start()
}

// archiveInbox moves every currently pending inbox message into the
// archive directory, called only after the session has opened (spec.md
// §4.7's at-least-once delivery guarantee).
func (d *Daemon) archiveInbox() ([]mailbox.Message, error) {
	msgs, err := mailbox.ListSorted(d.Dir.InboxDir())
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		if err := mailbox.Archive(m, d.Dir.InboxArchiveDir()); err != nil {
			d.Log.Warn("archive inbox message failed", "path", m.Path, "error", err)
		}
	}
	return msgs, nil
}

// Shutdown triggers a graceful stop of Run's loop from another goroutine.
func (d *Daemon) Shutdown() {
	select {
	case <-d.shuttingDown:
	default:
		close(d.shuttingDown)
	}
}

// ForceWake requests an out-of-schedule session start from inside the
// process (the programmatic equivalent of SIGUSR1; `cryo wake` sends the
// signal rather than calling this).
func (d *Daemon) ForceWake() {
	select {
	case d.forcedWake <- struct{}{}:
	default:
	}
}

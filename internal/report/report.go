// Package report implements the optional periodic summary reporter
// described in spec.md §4.10: on a configured schedule, scan the session
// log since the last report and hand the counts to a callback. It writes
// no `report` event to the session log and sends no desktop notification;
// the daemon's callback logs the summary to its operational log.
package report

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/cryochamber/cryo/internal/eventlog"
)

// Summary is what gets logged and, optionally, pushed to the desktop.
type Summary struct {
	Since    time.Time
	Sessions int
	Failures int
	Notes    int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d sessions, %d failures, %d notes since %s",
		s.Sessions, s.Failures, s.Notes, s.Since.UTC().Format(time.RFC3339))
}

// Reporter wraps a gocron scheduler running a single recurring job that
// summarizes the session log. The daemon constructs one when
// report_interval_hours or report_time_of_day is set (spec.md §3); Start
// and Stop must be called on a non-nil *Reporter.
type Reporter struct {
	sched      gocron.Scheduler
	logPath    string
	onSummary  func(Summary)
	lastReport func() time.Time
}

// New creates a Reporter that fires every interval, calling onSummary
// with the result of scanning logPath since lastReport() (the daemon
// supplies this so the Reporter never owns RuntimeState directly).
func New(interval time.Duration, logPath string, lastReport func() time.Time, onSummary func(Summary)) (*Reporter, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	r := &Reporter{sched: sched, logPath: logPath, onSummary: onSummary, lastReport: lastReport}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(r.tick),
	)
	if err != nil {
		sched.Shutdown()
		return nil, fmt.Errorf("schedule report job: %w", err)
	}
	return r, nil
}

// NewDaily creates a Reporter firing once per day at timeOfDay
// ("HH:MM", 24-hour, local time), used when report_time_of_day is set
// instead of report_interval_hours.
func NewDaily(timeOfDay string, logPath string, lastReport func() time.Time, onSummary func(Summary)) (*Reporter, error) {
	var hour, minute uint
	if _, err := fmt.Sscanf(timeOfDay, "%d:%d", &hour, &minute); err != nil {
		return nil, fmt.Errorf("parse report_time_of_day %q: %w", timeOfDay, err)
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	r := &Reporter{sched: sched, logPath: logPath, onSummary: onSummary, lastReport: lastReport}

	_, err = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(hour, minute, 0))),
		gocron.NewTask(r.tick),
	)
	if err != nil {
		sched.Shutdown()
		return nil, fmt.Errorf("schedule daily report job: %w", err)
	}
	return r, nil
}

func (r *Reporter) tick() {
	since := r.lastReport()
	sum, err := eventlog.Summarize(r.logPath, since)
	if err != nil {
		return
	}
	r.onSummary(Summary{Since: since, Sessions: sum.Sessions, Failures: sum.Failures, Notes: sum.Notes})
}

// Start begins the scheduler's background goroutine.
func (r *Reporter) Start() {
	r.sched.Start()
}

// Stop shuts the scheduler down, waiting for any in-flight tick.
func (r *Reporter) Stop() error {
	return r.sched.Shutdown()
}

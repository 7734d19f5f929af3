package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cryochamber/cryo/internal/procutil"
)

// RuntimeState is the ephemeral state persisted in timer.json, per
// spec.md §3. Pointer fields are optional and omitted entirely when nil
// so a fresh project's timer.json stays small and readable.
type RuntimeState struct {
	SessionNumber    uint32     `json:"session_number"`
	PID              *int       `json:"pid,omitempty"`
	RetryCount       uint32     `json:"retry_count"`
	ProviderIndex    uint32     `json:"provider_index"`
	NextWake         *time.Time `json:"next_wake,omitempty"`
	LastReportTime   *time.Time `json:"last_report_time,omitempty"`
	FallbackDeadline *time.Time `json:"fallback_deadline,omitempty"`

	// FallbackPayload is the most recent Alert issued during the session
	// that armed FallbackDeadline; it survives a daemon restart so the
	// fallback can still fire correctly after a crash between arm and fire.
	FallbackPayload *FallbackPayload `json:"fallback_payload,omitempty"`

	// CLI overrides, applied on top of Config at start time.
	OverrideAgent              *string `json:"override_agent,omitempty"`
	OverrideMaxRetries         *uint32 `json:"override_max_retries,omitempty"`
	OverrideMaxSessionDuration *int64  `json:"override_max_session_duration,omitempty"`
	OverrideWatchInbox         *bool   `json:"override_watch_inbox,omitempty"`
}

// FallbackPayload is a stored copy of the Alert request that armed the
// fallback deadline, persisted alongside it.
type FallbackPayload struct {
	Action  string `json:"action"`
	Target  string `json:"target"`
	Message string `json:"message"`
}

// LoadRuntimeState reads timer.json. A missing file returns a zero-value
// state (session 1, no retries yet) rather than an error — a fresh
// project has no runtime state until its first session.
func LoadRuntimeState(path string) (RuntimeState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RuntimeState{SessionNumber: 1}, nil
		}
		return RuntimeState{}, fmt.Errorf("read runtime state %s: %w", path, err)
	}
	var rs RuntimeState
	if err := json.Unmarshal(data, &rs); err != nil {
		return RuntimeState{}, fmt.Errorf("parse runtime state %s: %w", path, err)
	}
	if rs.SessionNumber == 0 {
		rs.SessionNumber = 1
	}
	return rs, nil
}

// SaveRuntimeState writes rs atomically: encode to a temp file in the same
// directory, fsync, then rename over the target. A crash between the
// write and the rename leaves the previous timer.json intact.
func SaveRuntimeState(path string, rs RuntimeState) error {
	data, err := json.MarshalIndent(rs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode runtime state: %w", err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".timer.json.tmp-*")
	if err != nil {
		return fmt.Errorf("create temp runtime state: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp runtime state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp runtime state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp runtime state: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename runtime state into place: %w", err)
	}
	return nil
}

// IsLocked reports whether rs.PID identifies either this process or
// another currently live process — i.e. whether the project directory
// currently has a live daemon holding it (invariant 2). Only the PID's
// existence is checked, not which user owns it. A dead or absent PID
// means the lock is stale and may be overwritten.
func IsLocked(rs RuntimeState) bool {
	if rs.PID == nil {
		return false
	}
	if *rs.PID == os.Getpid() {
		return true
	}
	return procutil.IsAlive(*rs.PID)
}

// Effective merges cfg with rs's CLI overrides, per spec.md §3: "Optional
// CLI overrides ... applied on top of Config at start time."
func Effective(cfg Config, rs RuntimeState) Config {
	eff := cfg
	if rs.OverrideAgent != nil {
		eff.Agent = *rs.OverrideAgent
	}
	if rs.OverrideMaxRetries != nil {
		eff.MaxRetries = *rs.OverrideMaxRetries
	}
	if rs.OverrideMaxSessionDuration != nil {
		eff.MaxSessionDuration = *rs.OverrideMaxSessionDuration
	}
	if rs.OverrideWatchInbox != nil {
		eff.WatchInbox = *rs.OverrideWatchInbox
	}
	return eff
}

// Package state owns the two persistent files that aren't the event log:
// cryo.toml (static configuration, human-edited) and timer.json (runtime
// state, daemon-owned). Both are loaded tolerantly — missing optional
// fields default, unknown fields are ignored — and timer.json is always
// written via write-to-temp-then-rename so a crash mid-write never leaves
// invalid JSON on disk.
package state

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// RotationPolicy controls when a crash triggers provider rotation.
type RotationPolicy string

const (
	RotateNever     RotationPolicy = "never"
	RotateQuickExit RotationPolicy = "quick-exit"
	RotateAnyFail   RotationPolicy = "any-failure"
)

// FallbackAlert selects how an armed, missed wake deadline is surfaced.
type FallbackAlert string

const (
	FallbackNone    FallbackAlert = "none"
	FallbackOutbox  FallbackAlert = "outbox"
	FallbackNotify  FallbackAlert = "notify"
	FallbackWebhook FallbackAlert = "webhook"
)

// Provider is a named set of environment variables injected into the agent
// child, used to rotate between credentials.
type Provider struct {
	Name string            `toml:"name"`
	Env  map[string]string `toml:"env"`
}

// Config is the static, human-edited project configuration (cryo.toml).
type Config struct {
	Agent               string         `toml:"agent"`
	MaxRetries           uint32         `toml:"max_retries"`
	MaxSessionDuration   int64          `toml:"max_session_duration"` // seconds, 0 = no ceiling
	WatchInbox           bool           `toml:"watch_inbox"`
	RotateOn             RotationPolicy `toml:"rotate_on"`
	Providers            []Provider     `toml:"providers"`
	FallbackAlert        FallbackAlert  `toml:"fallback_alert"`
	ReportIntervalHours  float64        `toml:"report_interval_hours"`
	ReportTimeOfDay      string         `toml:"report_time_of_day"`
	FallbackPushTopic    string         `toml:"fallback_push_topic"` // ntfy topic/URL used when fallback_alert=webhook
	FallbackPushToken    string         `toml:"fallback_push_token"` // optional bearer token for a reserved ntfy topic
	WebHost              string         `toml:"web_host"` // unused by core, passed through
	WebPort              int            `toml:"web_port"` // unused by core, passed through
}

// Default fills in a Config with the defaults spec.md §3 implies: at least
// one retry, no session ceiling, never rotate, outbox fallback disabled.
func Default() Config {
	return Config{
		MaxRetries:    1,
		RotateOn:      RotateNever,
		FallbackAlert: FallbackNone,
		WatchInbox:    true,
	}
}

// LoadConfig reads and parses cryo.toml. The file is decoded over
// Default(), so missing optional fields keep their default values
// (LoadConfig itself errors on a missing file so
// callers at `cryo start` preflight time can tell "no config" from "bad
// config" apart, per spec.md §7's config-error taxonomy).
func LoadConfig(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Agent == "" {
		return Config{}, fmt.Errorf("config %s: agent is required", path)
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 1
	}
	switch cfg.RotateOn {
	case "":
		cfg.RotateOn = RotateNever
	case RotateNever, RotateQuickExit, RotateAnyFail:
	default:
		return Config{}, fmt.Errorf("config %s: invalid rotate_on %q", path, cfg.RotateOn)
	}
	switch cfg.FallbackAlert {
	case "":
		cfg.FallbackAlert = FallbackNone
	case FallbackNone, FallbackOutbox, FallbackNotify, FallbackWebhook:
	default:
		return Config{}, fmt.Errorf("config %s: invalid fallback_alert %q", path, cfg.FallbackAlert)
	}
	return cfg, nil
}

// SaveConfig writes cfg as cryo.toml, used by `cryo init`.
func SaveConfig(path string, cfg Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config %s: %w", path, err)
	}
	defer f.Close()
	enc := toml.NewEncoder(f)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config %s: %w", path, err)
	}
	return nil
}

// AgentCommand splits Config.Agent into a program and its arguments, per
// spec.md §3 ("whitespace-split into program + args").
func (c Config) AgentCommand() (program string, args []string) {
	fields := splitFields(c.Agent)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}

func splitFields(s string) []string {
	var fields []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			fields = append(fields, string(cur))
			cur = cur[:0]
		}
	}
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' {
			flush()
			continue
		}
		cur = append(cur, r)
	}
	flush()
	return fields
}

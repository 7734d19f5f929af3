package state

import "path/filepath"

// ProjectDir is the absolute path identifying a single daemon/project,
// per spec.md §3. All other paths are derived from it so tests can run
// against an isolated temp directory instead of touching real user state.
type ProjectDir string

func (p ProjectDir) path(elem ...string) string {
	return filepath.Join(append([]string{string(p)}, elem...)...)
}

func (p ProjectDir) ConfigPath() string       { return p.path("cryo.toml") }
func (p ProjectDir) RuntimeStatePath() string { return p.path("timer.json") }
func (p ProjectDir) SessionLogPath() string   { return p.path("cryo.log") }
func (p ProjectDir) AgentLogPath() string     { return p.path("cryo-agent.log") }
func (p ProjectDir) PlanPath() string         { return p.path("plan.md") }
func (p ProjectDir) SocketDir() string        { return p.path(".cryo") }
func (p ProjectDir) SocketPath() string       { return p.path(".cryo", "cryo.sock") }
func (p ProjectDir) InboxDir() string         { return p.path("messages", "inbox") }
func (p ProjectDir) InboxArchiveDir() string  { return p.path("messages", "inbox", "archive") }
func (p ProjectDir) OutboxDir() string        { return p.path("messages", "outbox") }

// WakeNoticePath is the file the daemon (re)writes before spawning each
// session with a delayed-wake notice and/or the archived inbox messages
// for that session, so the agent can fold it into whatever prompt it
// assembles from plan.md — the delivery channel is the daemon's
// responsibility per spec.md §4.1/§4.7/§4.9; prompt composition itself
// is not. Removed when a session has nothing to report.
func (p ProjectDir) WakeNoticePath() string { return p.path("cryo-notice.md") }

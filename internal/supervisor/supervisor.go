// Package supervisor spawns and reaps the agent child process, per
// spec.md §4.2. The daemon loop owns session framing; this package owns
// only the exec.Cmd lifecycle and outcome classification.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/cryochamber/cryo/internal/procutil"
	"github.com/cryochamber/cryo/internal/state"
)

// QuickExitThreshold is the wall-clock lifetime below which a
// terminal-IPC-less exit is classified as quick_exit rather than
// exit_without_hibernate.
const QuickExitThreshold = 5 * time.Second

// TerminateGrace is how long Stop waits after SIGTERM before escalating
// to SIGKILL.
const TerminateGrace = 5 * time.Second

// Outcome is how a session ended, used by the retry/rotation controller.
type Outcome string

const (
	OutcomeClean                 Outcome = "clean"
	OutcomeCrashQuickExit        Outcome = "crash/quick_exit"
	OutcomeCrashExitWithoutHiber Outcome = "crash/exit_without_hibernate"
	OutcomeTimeout               Outcome = "timeout"
)

// Spawned is a running agent child plus the bookkeeping needed to
// classify its exit.
type Spawned struct {
	Cmd       *exec.Cmd
	StartedAt time.Time
	Exited    <-chan error // receives cmd.Wait()'s result exactly once
}

// Spawn launches the configured agent command with the active provider's
// env injected, stdout+stderr redirected to agentLogPath, CRYO_SOCKET set
// to sockPath, and CWD set to projectDir. The child is detached into its
// own process group so a daemon crash doesn't orphan-signal the wrong
// tree (internal/procutil.Detach).
func Spawn(ctx context.Context, cfg state.Config, provider state.Provider, projectDir, sockPath, agentLogPath string) (*Spawned, error) {
	program, args := cfg.AgentCommand()
	if program == "" {
		return nil, fmt.Errorf("agent command is empty")
	}

	logFile, err := os.OpenFile(agentLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open agent log %s: %w", agentLogPath, err)
	}

	cmd := exec.Command(program, args...)
	cmd.Dir = projectDir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Env = buildEnv(provider, sockPath)
	procutil.Detach(cmd)

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, fmt.Errorf("start agent %s: %w", program, err)
	}

	exited := make(chan error, 1)
	go func() {
		defer logFile.Close()
		exited <- cmd.Wait()
	}()

	return &Spawned{Cmd: cmd, StartedAt: time.Now(), Exited: exited}, nil
}

func buildEnv(provider state.Provider, sockPath string) []string {
	env := os.Environ()
	env = append(env, "CRYO_SOCKET="+sockPath)
	for k, v := range provider.Env {
		env = append(env, k+"="+v)
	}
	return env
}

// Classify determines the outcome of a session given whether a terminal
// Hibernate was received, the child's lifetime, and whether the daemon
// itself imposed a timeout.
func Classify(hibernateReceived bool, lifetime time.Duration, timedOut bool) Outcome {
	switch {
	case timedOut:
		return OutcomeTimeout
	case hibernateReceived:
		return OutcomeClean
	case lifetime < QuickExitThreshold:
		return OutcomeCrashQuickExit
	default:
		return OutcomeCrashExitWithoutHiber
	}
}

// Stop sends SIGTERM to the child and waits up to TerminateGrace for it
// to exit via the Spawned.Exited channel, escalating to SIGKILL on
// timeout or context cancellation.
func (s *Spawned) Stop(ctx context.Context) error {
	return procutil.Terminate(ctx, s.Cmd, TerminateGrace, toStructChan(s.Exited))
}

func toStructChan(exited <-chan error) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		<-exited
		close(done)
	}()
	return done
}

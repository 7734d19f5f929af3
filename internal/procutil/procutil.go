// Package procutil wraps the process-level primitives the daemon needs:
// signal delivery, liveness probing, and orderly termination with a
// SIGTERM-then-SIGKILL grace period. Liveness uses gopsutil so the same
// code works whether the PID belongs to this daemon or a process left
// behind by a previous run.
package procutil

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// IsAlive reports whether pid refers to a currently running process. A PID
// that has been reused by an unrelated process is still reported alive —
// staleness of RuntimeState.pid beyond "some process owns this number" is
// not something the daemon can detect without a start-time fingerprint,
// which the spec does not ask for.
func IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	exists, err := process.PidExists(int32(pid))
	if err != nil {
		return false
	}
	return exists
}

// Signal sends sig to pid. Returns nil if the process is already gone.
func Signal(pid int, sig syscall.Signal) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	if err := proc.Signal(sig); err != nil {
		if err == os.ErrProcessDone {
			return nil
		}
		return fmt.Errorf("signal pid %d: %w", pid, err)
	}
	return nil
}

// Terminate sends SIGTERM to cmd's process, waits up to grace for it to
// exit, and escalates to SIGKILL if it hasn't. waitDone must be closed (or
// receivable) once cmd.Wait() returns in the caller's own goroutine — this
// function only drives signals, it never calls Wait itself, since the
// caller typically already owns the Wait() call that reaps output streams.
func Terminate(ctx context.Context, cmd *exec.Cmd, grace time.Duration, waitDone <-chan struct{}) error {
	if cmd.Process == nil {
		return nil
	}
	if err := Signal(cmd.Process.Pid, syscall.SIGTERM); err != nil {
		return err
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-waitDone:
		return nil
	case <-timer.C:
		if err := Signal(cmd.Process.Pid, syscall.SIGKILL); err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
		_ = Signal(cmd.Process.Pid, syscall.SIGKILL)
		return ctx.Err()
	}
}

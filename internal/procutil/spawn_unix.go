//go:build unix

// Spawn helpers that put the agent child in its own process group, so a
// signal aimed at the daemon's process group (e.g. a shell's Ctrl-C)
// doesn't also reach a hibernating agent that the daemon intends to let
// finish its IPC handoff.
package procutil

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// Detach configures cmd to run in a new process group.
func Detach(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// SignalGroup sends sig to every process in pgid's process group, e.g. to
// reach children a timed-out agent spawned of its own. The daemon's
// session timeout path signals only the agent process, not its group.
func SignalGroup(pgid int, sig syscall.Signal) error {
	return unix.Kill(-pgid, sig)
}

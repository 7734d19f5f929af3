package main

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cryochamber/cryo/internal/procutil"
	"github.com/cryochamber/cryo/internal/registry"
)

// wakeCmd forces an out-of-schedule session by signaling the running
// daemon with SIGUSR1, the same trigger Run's select loop treats as a
// forced wake (daemon.go).
func wakeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wake",
		Short: "force the daemon to start a session immediately",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := projectDir(cmd)
			if err != nil {
				return err
			}
			pid, live, err := registry.Lookup(string(dir))
			if err != nil {
				return err
			}
			if !live {
				return fmt.Errorf("no running daemon for %s", dir)
			}
			if err := procutil.Signal(pid, syscall.SIGUSR1); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wake signal sent")
			return nil
		},
	}
}

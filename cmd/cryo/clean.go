package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cryochamber/cryo/internal/eventlog"
	"github.com/cryochamber/cryo/internal/registry"
)

// cleanCmd removes stale lock state left by a daemon that died without
// unwinding its own Run deferreds (a kill -9, a host reboot), and closes
// any orphaned session block in the event log. Refuses to touch a
// project with a currently live daemon.
func cleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "remove stale lock/socket state left by a daemon that died uncleanly",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := projectDir(cmd)
			if err != nil {
				return err
			}
			if _, live, err := registry.Lookup(string(dir)); err != nil {
				return err
			} else if live {
				return fmt.Errorf("refusing to clean %s: a daemon is still running", dir)
			}

			if err := os.Remove(dir.SocketPath()); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove stale socket: %w", err)
			}
			if err := registry.Unregister(string(dir)); err != nil {
				return fmt.Errorf("remove stale registry entry: %w", err)
			}
			if err := eventlog.ScanAndCloseOrphan(dir.SessionLogPath(), time.Now()); err != nil {
				return fmt.Errorf("close orphaned session: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cleaned")
			return nil
		},
	}
}

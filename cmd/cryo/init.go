package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cryochamber/cryo/internal/state"
)

func initCmd() *cobra.Command {
	var agent string
	var watchInbox bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "write a starter cryo.toml in the project directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := projectDir(cmd)
			if err != nil {
				return err
			}
			if agent == "" {
				return fmt.Errorf("--agent is required, e.g. --agent \"claude --dangerously-skip-permissions\"")
			}
			for _, d := range []string{string(dir), dir.InboxDir(), dir.InboxArchiveDir(), dir.OutboxDir(), dir.SocketDir()} {
				if err := os.MkdirAll(d, 0755); err != nil {
					return fmt.Errorf("create %s: %w", d, err)
				}
			}
			cfg := state.Default()
			cfg.Agent = agent
			cfg.WatchInbox = watchInbox
			if err := state.SaveConfig(dir.ConfigPath(), cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", dir.ConfigPath())
			return nil
		},
	}
	cmd.Flags().StringVar(&agent, "agent", "", "command line to spawn as the agent child")
	cmd.Flags().BoolVar(&watchInbox, "watch-inbox", true, "wake on inbox message arrival")
	return cmd
}

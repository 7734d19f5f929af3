package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cryochamber/cryo/internal/registry"
	"github.com/cryochamber/cryo/internal/state"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "show whether the daemon is running and its saved runtime state",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := projectDir(cmd)
			if err != nil {
				return err
			}
			rs, err := state.LoadRuntimeState(dir.RuntimeStatePath())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			defer w.Flush()

			_, live, _ := registry.Lookup(string(dir))
			fmt.Fprintf(w, "project:\t%s\n", dir)
			fmt.Fprintf(w, "running:\t%v\n", live)
			fmt.Fprintf(w, "session:\t%d\n", rs.SessionNumber)
			fmt.Fprintf(w, "retry_count:\t%d\n", rs.RetryCount)
			fmt.Fprintf(w, "provider_index:\t%d\n", rs.ProviderIndex)
			if rs.NextWake != nil {
				fmt.Fprintf(w, "next_wake:\t%s\n", rs.NextWake.Format("2006-01-02 15:04:05 MST"))
			} else {
				fmt.Fprintf(w, "next_wake:\t(none scheduled)\n")
			}
			if rs.FallbackDeadline != nil {
				fmt.Fprintf(w, "fallback_deadline:\t%s\n", rs.FallbackDeadline.Format("2006-01-02 15:04:05 MST"))
			}
			return nil
		},
	}
}

func psCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ps",
		Short: "show this project's registered daemon PID and whether it is live",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := projectDir(cmd)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintf(w, "PROJECT\tPID\tLIVE\n")
			pid, live, err := registry.Lookup(string(dir))
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%d\t%v\n", dir, pid, live)
			return nil
		},
	}
}

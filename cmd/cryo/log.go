package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cryochamber/cryo/internal/eventlog"
)

// logCmd prints cryo.log, optionally summarized since a duration ago.
func logCmd() *cobra.Command {
	var since time.Duration
	var summary bool
	cmd := &cobra.Command{
		Use:   "log",
		Short: "print the session event log",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := projectDir(cmd)
			if err != nil {
				return err
			}
			if summary {
				s, err := eventlog.Summarize(dir.SessionLogPath(), time.Now().Add(-since))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "sessions=%d failures=%d notes=%d\n", s.Sessions, s.Failures, s.Notes)
				return nil
			}
			f, err := os.Open(dir.SessionLogPath())
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Fprintln(cmd.OutOrStdout(), "(no sessions yet)")
					return nil
				}
				return err
			}
			defer f.Close()
			_, err = io.Copy(cmd.OutOrStdout(), f)
			return err
		},
	}
	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "window for --summary")
	cmd.Flags().BoolVar(&summary, "summary", false, "print session/failure/note counts instead of raw log text")
	return cmd
}

// watchCmd tails cryo.log as the daemon appends to it, the operator's
// live view into an otherwise backgrounded daemon.
func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "tail the session event log as new events arrive",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := projectDir(cmd)
			if err != nil {
				return err
			}
			path := dir.SessionLogPath()

			var offset int64
			if fi, err := os.Stat(path); err == nil {
				offset = fi.Size()
			}

			ctx := cmd.Context()
			ticker := time.NewTicker(500 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					f, err := os.Open(path)
					if err != nil {
						continue
					}
					fi, err := f.Stat()
					if err != nil || fi.Size() < offset {
						f.Close()
						offset = 0
						continue
					}
					if fi.Size() == offset {
						f.Close()
						continue
					}
					if _, err := f.Seek(offset, io.SeekStart); err != nil {
						f.Close()
						continue
					}
					n, _ := io.Copy(cmd.OutOrStdout(), f)
					offset += n
					f.Close()
				}
			}
		},
	}
}

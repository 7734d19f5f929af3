package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cryochamber/cryo/internal/ipc"
	"github.com/cryochamber/cryo/internal/mailbox"
)

// printResponse renders an IPC Response the way every agent-facing verb
// reports its result: the message on success, an error on failure.
func printResponse(cmd *cobra.Command, resp ipc.Response) error {
	if !resp.OK {
		return fmt.Errorf("%s", resp.Message)
	}
	fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
	if len(resp.Data) > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), string(resp.Data))
	}
	return nil
}

// requireAgentSocket errors with a clear message when CRYO_SOCKET isn't
// set — these verbs only make sense invoked by the agent child the
// daemon spawned, which has that variable in its environment.
func requireAgentSocket() (*ipc.Client, error) {
	c, ok := ipcClient()
	if !ok {
		return nil, fmt.Errorf("CRYO_SOCKET is not set — this command is meant to be run by the agent process the daemon spawned")
	}
	return c, nil
}

func hibernateCmd() *cobra.Command {
	var wake string
	var complete bool
	var exitCode uint8
	var summary string
	cmd := &cobra.Command{
		Use:   "hibernate",
		Short: "end the current session: schedule a wake time, or mark the project complete",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := requireAgentSocket()
			if err != nil {
				return err
			}
			req := ipc.Request{Wake: wake, Complete: complete, ExitCode: exitCode, Summary: summary}
			if err := req.ValidateHibernate(); err != nil {
				return err
			}
			resp, err := c.Hibernate(req)
			if err != nil {
				return err
			}
			return printResponse(cmd, resp)
		},
	}
	cmd.Flags().StringVar(&wake, "wake", "", "RFC3339 time to resume at")
	cmd.Flags().BoolVar(&complete, "complete", false, "mark the project finished; no further wake is scheduled")
	cmd.Flags().Uint8Var(&exitCode, "exit-code", 0, "exit code to report for this session")
	cmd.Flags().StringVar(&summary, "summary", "", "one-line summary recorded in the event log")
	return cmd
}

func noteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "note <text>",
		Short: "append a note to the session event log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := requireAgentSocket()
			if err != nil {
				return err
			}
			resp, err := c.Note(args[0])
			if err != nil {
				return err
			}
			return printResponse(cmd, resp)
		},
	}
	return cmd
}

func replyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reply <text>",
		Short: "reply to the most recently received inbox message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := requireAgentSocket()
			if err != nil {
				return err
			}
			resp, err := c.Reply(args[0])
			if err != nil {
				return err
			}
			return printResponse(cmd, resp)
		},
	}
	return cmd
}

func alertCmd() *cobra.Command {
	var action, target string
	cmd := &cobra.Command{
		Use:   "alert <message>",
		Short: "arm the dead-man-switch fallback for this session's scheduled wake",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := requireAgentSocket()
			if err != nil {
				return err
			}
			resp, err := c.Alert(action, target, args[0])
			if err != nil {
				return err
			}
			return printResponse(cmd, resp)
		},
	}
	cmd.Flags().StringVar(&action, "action", ipc.AlertOutbox, "delivery action: email|webhook|notify|outbox")
	cmd.Flags().StringVar(&target, "target", "", "delivery target (address, URL) for the action")
	return cmd
}

func timeCmd() *cobra.Command {
	var offset string
	cmd := &cobra.Command{
		Use:   "time",
		Short: "print the daemon's current time (or a time offset from now)",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := requireAgentSocket()
			if err != nil {
				return err
			}
			resp, err := c.Time(offset)
			if err != nil {
				return err
			}
			if !resp.OK {
				return fmt.Errorf("%s", resp.Message)
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		},
	}
	cmd.Flags().StringVar(&offset, "offset", "", "duration offset (e.g. 2h) to add before returning the time")
	return cmd
}

// sendCmd doubles as both an agent verb and an operator verb: run with
// CRYO_SOCKET set (the agent's own environment) it calls the IPC Send
// request; run bare from an operator shell it writes directly into the
// project's inbox for the next session to pick up.
func sendCmd() *cobra.Command {
	var text, subject string
	cmd := &cobra.Command{
		Use:   "send <text>",
		Short: "send a message (agent: to the operator outbox; operator: into the agent's inbox)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				text = args[0]
			}
			if text == "" {
				return fmt.Errorf("message text is required")
			}
			if c, ok := ipcClient(); ok {
				resp, err := c.Send(text, subject)
				if err != nil {
					return err
				}
				return printResponse(cmd, resp)
			}

			dir, err := projectDir(cmd)
			if err != nil {
				return err
			}
			fm := mailbox.Frontmatter{From: "operator", Subject: subject}
			path, err := mailbox.Write(dir.InboxDir(), fm, text+"\n")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "message subject")
	return cmd
}

// receiveCmd mirrors sendCmd's duality: under CRYO_SOCKET it's the
// agent's IPC Receive call; from the operator it lists pending outbox
// messages the agent has sent.
func receiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "receive",
		Short: "list pending messages (agent: its inbox; operator: the agent's outbox)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if c, ok := ipcClient(); ok {
				resp, err := c.Receive()
				if err != nil {
					return err
				}
				if !resp.OK {
					return fmt.Errorf("%s", resp.Message)
				}
				var views []ipc.InboxMessageView
				if err := json.Unmarshal(resp.Data, &views); err != nil {
					return fmt.Errorf("parse receive response: %w", err)
				}
				for _, v := range views {
					fmt.Fprintf(cmd.OutOrStdout(), "--- from=%s subject=%q at=%s ---\n%s\n", v.From, v.Subject, v.Timestamp, v.Body)
				}
				return nil
			}

			dir, err := projectDir(cmd)
			if err != nil {
				return err
			}
			msgs, err := mailbox.ListSorted(dir.OutboxDir())
			if err != nil {
				return err
			}
			if len(msgs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "(no messages)")
				return nil
			}
			for _, m := range msgs {
				fmt.Fprintf(cmd.OutOrStdout(), "--- from=%s subject=%q at=%s ---\n%s\n",
					m.Frontmatter.From, m.Frontmatter.Subject, m.Frontmatter.Timestamp.Format(time.RFC3339), m.Body)
			}
			return nil
		},
	}
	return cmd
}

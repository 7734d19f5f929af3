// Command cryo is the cryochamber daemon and CLI: the operator surface
// (init/start/status/watch/log/send/receive/wake/ps/restart/cancel/clean)
// and the agent-facing IPC client (hibernate/note/send/receive/reply/
// alert/time), modeled on the teacher's single-binary cobra root command
// with one factory function per verb.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cryochamber/cryo/internal/ipc"
	"github.com/cryochamber/cryo/internal/logger"
	"github.com/cryochamber/cryo/internal/state"
)

func main() {
	root := &cobra.Command{
		Use:   "cryo",
		Short: "cryochamber — hibernate/wake daemon for long-running AI agent sessions",
	}
	root.PersistentFlags().String("dir", "", "project directory (defaults to cwd)")
	root.PersistentFlags().String("log-level", "info", "debug|info|warn|error")
	root.PersistentFlags().String("log-file", "", "additionally write logs to this file")

	root.AddCommand(
		initCmd(),
		daemonCmd(),
		startCmd(),
		statusCmd(),
		watchCmd(),
		logCmd(),
		wakeCmd(),
		psCmd(),
		restartCmd(),
		cancelCmd(),
		cleanCmd(),
		// Agent-IPC verbs. send/receive double as operator verbs too —
		// see sendCmd/receiveCmd, which branch on CRYO_SOCKET.
		sendCmd(),
		receiveCmd(),
		noteCmd(),
		replyCmd(),
		alertCmd(),
		timeCmd(),
		hibernateCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// projectDir resolves --dir, defaulting to the current working directory.
func projectDir(cmd *cobra.Command) (state.ProjectDir, error) {
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working directory: %w", err)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve project directory: %w", err)
	}
	return state.ProjectDir(abs), nil
}

func initLogger(cmd *cobra.Command) {
	level, _ := cmd.Flags().GetString("log-level")
	logFile, _ := cmd.Flags().GetString("log-file")
	if err := logger.Init(level, logFile); err != nil {
		fmt.Fprintln(os.Stderr, "warning: logger init failed:", err)
	}
}

// ipcClient builds a client for the socket named by CRYO_SOCKET, the
// env var the daemon sets for its agent child (spec.md §6).
func ipcClient() (*ipc.Client, bool) {
	sock := os.Getenv("CRYO_SOCKET")
	if sock == "" {
		return nil, false
	}
	return ipc.NewClient(sock, 0), true
}

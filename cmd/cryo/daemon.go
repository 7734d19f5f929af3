package main

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/cryochamber/cryo/internal/daemon"
	"github.com/cryochamber/cryo/internal/logger"
	"github.com/cryochamber/cryo/internal/metrics"
	"github.com/cryochamber/cryo/internal/service"
	"github.com/cryochamber/cryo/internal/state"
)

// daemonCmd runs the event loop in the foreground — what a service unit
// invokes (`<binary> daemon`), or what an operator runs directly under a
// terminal multiplexer for debugging.
func daemonCmd() *cobra.Command {
	var install, uninstall bool
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "run the cryochamber event loop in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			initLogger(cmd)
			dir, err := projectDir(cmd)
			if err != nil {
				return err
			}

			if install || uninstall {
				spec, err := service.NewSpec(string(dir))
				if err != nil {
					return err
				}
				if uninstall {
					return service.Uninstall(spec)
				}
				return service.Install(spec)
			}

			cfg, err := state.LoadConfig(dir.ConfigPath())
			if err != nil {
				return err
			}
			rs, err := state.LoadRuntimeState(dir.RuntimeStatePath())
			if err != nil {
				return err
			}
			eff := state.Effective(cfg, rs)

			var rec *metrics.Recorder
			if metricsAddr != "" {
				reg := prometheus.NewRegistry()
				rec = metrics.New(reg)
				go func() {
					http.Handle("/metrics", metrics.Handler(reg))
					http.ListenAndServe(metricsAddr, nil)
				}()
			}

			d := daemon.New(dir, eff, rs, logger.Log, rec)
			return d.Run(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&install, "install", false, "install a reboot-persistent service unit instead of running")
	cmd.Flags().BoolVar(&uninstall, "uninstall", false, "remove the installed service unit instead of running")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "expose Prometheus metrics at this address, e.g. :9090")
	return cmd
}

// startCmd is a convenience that installs the service (unless
// CRYO_NO_SERVICE is set) and leaves it running in the background,
// rather than occupying the foreground like `cryo daemon`.
func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "install and start the daemon as a background service",
		RunE: func(cmd *cobra.Command, args []string) error {
			initLogger(cmd)
			dir, err := projectDir(cmd)
			if err != nil {
				return err
			}
			if _, err := state.LoadConfig(dir.ConfigPath()); err != nil {
				return err
			}
			if service.Disabled() {
				return fmt.Errorf("CRYO_NO_SERVICE=1: run `cryo daemon` directly instead")
			}
			spec, err := service.NewSpec(string(dir))
			if err != nil {
				return err
			}
			if err := service.Install(spec); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "installed and started %s\n", spec.Name)
			return nil
		},
	}
}

func restartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "reinstall the background service (picks up a changed cryo.toml)",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := projectDir(cmd)
			if err != nil {
				return err
			}
			spec, err := service.NewSpec(string(dir))
			if err != nil {
				return err
			}
			service.Uninstall(spec)
			if err := service.Install(spec); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restarted %s\n", spec.Name)
			return nil
		},
	}
}

func cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "stop and uninstall the background service",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := projectDir(cmd)
			if err != nil {
				return err
			}
			spec, err := service.NewSpec(string(dir))
			if err != nil {
				return err
			}
			if err := service.Uninstall(spec); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stopped %s\n", spec.Name)
			return nil
		},
	}
}

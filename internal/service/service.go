// Package service installs/uninstalls the daemon as a reboot-persistent
// OS user service: launchd on Darwin, systemd --user on Linux. Per
// spec.md's redesign note, this is modeled as a plain Spec value plus
// free functions dispatched on runtime.GOOS, not an interface — there is
// exactly one daemon binary and two platforms, so a trait object buys
// nothing but indirection.
package service

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"text/template"

	"github.com/cryochamber/cryo/internal/registry"
)

// Spec describes the service to install: which binary, in which
// project directory, under which stable name.
type Spec struct {
	Name        string // unique service identifier, derived from registry.Key
	BinaryPath  string
	ProjectDir  string
	RestartOnly bool // not read by Install: both unit templates always start at boot and restart on exit
}

// NewSpec builds a Spec for projectDir, naming the service from the
// registry's path hash so reinstalling an already-registered project is
// idempotent.
func NewSpec(projectDir string) (Spec, error) {
	bin, err := os.Executable()
	if err != nil {
		return Spec{}, fmt.Errorf("resolve daemon binary path: %w", err)
	}
	return Spec{
		Name:       "com.cryochamber." + registry.Key(projectDir),
		BinaryPath: bin,
		ProjectDir: projectDir,
	}, nil
}

// Disabled reports whether CRYO_NO_SERVICE=1 is set, per spec.md §6.
func Disabled() bool {
	return os.Getenv("CRYO_NO_SERVICE") == "1"
}

// Install writes and activates the service unit for the current OS.
func Install(spec Spec) error {
	if Disabled() {
		return fmt.Errorf("service installation disabled by CRYO_NO_SERVICE=1")
	}
	switch runtime.GOOS {
	case "darwin":
		return installLaunchd(spec)
	case "linux":
		return installSystemd(spec)
	default:
		return fmt.Errorf("service installation not supported on %s", runtime.GOOS)
	}
}

// Uninstall deactivates and removes the service unit.
func Uninstall(spec Spec) error {
	switch runtime.GOOS {
	case "darwin":
		return uninstallLaunchd(spec)
	case "linux":
		return uninstallSystemd(spec)
	default:
		return fmt.Errorf("service installation not supported on %s", runtime.GOOS)
	}
}

// --- launchd (darwin) ---

const launchdTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>{{.Name}}</string>
	<key>ProgramArguments</key>
	<array>
		<string>{{.BinaryPath}}</string>
		<string>daemon</string>
	</array>
	<key>WorkingDirectory</key>
	<string>{{.ProjectDir}}</string>
	<key>RunAtLoad</key>
	<true/>
	<key>KeepAlive</key>
	<true/>
</dict>
</plist>
`

func launchdPlistPath(spec Spec) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, "Library", "LaunchAgents", spec.Name+".plist"), nil
}

func installLaunchd(spec Spec) error {
	path, err := launchdPlistPath(spec)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create LaunchAgents dir: %w", err)
	}
	tmpl, err := template.New("launchd").Parse(launchdTemplate)
	if err != nil {
		return fmt.Errorf("parse launchd template: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create plist %s: %w", path, err)
	}
	defer f.Close()
	if err := tmpl.Execute(f, spec); err != nil {
		return fmt.Errorf("render plist: %w", err)
	}
	return exec.Command("launchctl", "load", path).Run()
}

func uninstallLaunchd(spec Spec) error {
	path, err := launchdPlistPath(spec)
	if err != nil {
		return err
	}
	exec.Command("launchctl", "unload", path).Run()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove plist %s: %w", path, err)
	}
	return nil
}

// --- systemd --user (linux) ---

const systemdTemplate = `[Unit]
Description=Cryochamber daemon for {{.ProjectDir}}

[Service]
ExecStart={{.BinaryPath}} daemon
WorkingDirectory={{.ProjectDir}}
Restart=on-failure

[Install]
WantedBy=default.target
`

func systemdUnitPath(spec Spec) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "systemd", "user", spec.Name+".service"), nil
}

func installSystemd(spec Spec) error {
	path, err := systemdUnitPath(spec)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create systemd user unit dir: %w", err)
	}
	tmpl, err := template.New("systemd").Parse(systemdTemplate)
	if err != nil {
		return fmt.Errorf("parse systemd template: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create unit %s: %w", path, err)
	}
	defer f.Close()
	if err := tmpl.Execute(f, spec); err != nil {
		return fmt.Errorf("render unit: %w", err)
	}
	if err := exec.Command("systemctl", "--user", "daemon-reload").Run(); err != nil {
		return fmt.Errorf("systemctl daemon-reload: %w", err)
	}
	return exec.Command("systemctl", "--user", "enable", "--now", spec.Name+".service").Run()
}

func uninstallSystemd(spec Spec) error {
	exec.Command("systemctl", "--user", "disable", "--now", spec.Name+".service").Run()
	path, err := systemdUnitPath(spec)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove unit %s: %w", path, err)
	}
	return exec.Command("systemctl", "--user", "daemon-reload").Run()
}

package service

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewSpecNamesFromRegistryKey(t *testing.T) {
	spec, err := NewSpec("/some/project")
	if err != nil {
		t.Fatalf("NewSpec: %v", err)
	}
	if spec.Name == "" || spec.ProjectDir != "/some/project" {
		t.Errorf("unexpected spec: %+v", spec)
	}
}

func TestDisabledRespectsEnvVar(t *testing.T) {
	t.Setenv("CRYO_NO_SERVICE", "")
	if Disabled() {
		t.Error("expected not disabled by default")
	}
	t.Setenv("CRYO_NO_SERVICE", "1")
	if !Disabled() {
		t.Error("expected disabled when CRYO_NO_SERVICE=1")
	}
}

func TestInstallRefusesWhenDisabled(t *testing.T) {
	t.Setenv("CRYO_NO_SERVICE", "1")
	spec := Spec{Name: "com.cryochamber.test", ProjectDir: t.TempDir()}
	if err := Install(spec); err == nil {
		t.Error("expected Install to refuse when disabled")
	}
}

func TestLaunchdPlistPathUsesHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	spec := Spec{Name: "com.cryochamber.test"}
	path, err := launchdPlistPath(spec)
	if err != nil {
		t.Fatalf("launchdPlistPath: %v", err)
	}
	want := filepath.Join(home, "Library", "LaunchAgents", "com.cryochamber.test.plist")
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
}

func TestSystemdUnitPathUsesHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	spec := Spec{Name: "com.cryochamber.test"}
	path, err := systemdUnitPath(spec)
	if err != nil {
		t.Fatalf("systemdUnitPath: %v", err)
	}
	want := filepath.Join(home, ".config", "systemd", "user", "com.cryochamber.test.service")
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
}

func TestLaunchdTemplateRendersWithoutError(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	spec, err := NewSpec(t.TempDir())
	if err != nil {
		t.Fatalf("NewSpec: %v", err)
	}
	// installLaunchd will fail at the launchctl step (not present/mocked
	// in CI), but the plist must be written first; check it lands.
	_ = installLaunchd(spec)
	path, _ := launchdPlistPath(spec)
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected plist written even if launchctl fails: %v", err)
	}
}

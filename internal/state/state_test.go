package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cryo.toml")
	cfg := Default()
	cfg.Agent = "mock-agent --flag"
	cfg.MaxRetries = 3
	cfg.MaxSessionDuration = 120
	cfg.RotateOn = RotateAnyFail
	cfg.FallbackAlert = FallbackOutbox
	cfg.Providers = []Provider{
		{Name: "primary", Env: map[string]string{"API_KEY": "abc"}},
		{Name: "backup", Env: map[string]string{"API_KEY": "def"}},
	}

	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.Agent != cfg.Agent || loaded.MaxRetries != cfg.MaxRetries || loaded.RotateOn != cfg.RotateOn {
		t.Errorf("round trip mismatch: %+v vs %+v", loaded, cfg)
	}
	if len(loaded.Providers) != 2 || loaded.Providers[1].Env["API_KEY"] != "def" {
		t.Errorf("providers round trip mismatch: %+v", loaded.Providers)
	}
}

func TestLoadConfigMissingAgentErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cryo.toml")
	os.WriteFile(path, []byte("max_retries = 2\n"), 0644)
	if _, err := LoadConfig(path); err == nil {
		t.Errorf("expected error for missing agent field")
	}
}

func TestLoadConfigInvalidRotateOn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cryo.toml")
	os.WriteFile(path, []byte("agent = \"mock\"\nrotate_on = \"bogus\"\n"), 0644)
	if _, err := LoadConfig(path); err == nil {
		t.Errorf("expected error for invalid rotate_on")
	}
}

func TestAgentCommandSplit(t *testing.T) {
	cfg := Config{Agent: "  claude  --flag value "}
	prog, args := cfg.AgentCommand()
	if prog != "claude" {
		t.Errorf("program = %q, want claude", prog)
	}
	if len(args) != 2 || args[0] != "--flag" || args[1] != "value" {
		t.Errorf("args = %v", args)
	}
}

func TestRuntimeStateMissingFileDefaults(t *testing.T) {
	dir := t.TempDir()
	rs, err := LoadRuntimeState(filepath.Join(dir, "timer.json"))
	if err != nil {
		t.Fatalf("LoadRuntimeState: %v", err)
	}
	if rs.SessionNumber != 1 {
		t.Errorf("session_number = %d, want 1", rs.SessionNumber)
	}
}

func TestRuntimeStateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "timer.json")
	pid := os.Getpid()
	wake := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	rs := RuntimeState{
		SessionNumber: 4,
		PID:           &pid,
		RetryCount:    2,
		ProviderIndex: 1,
		NextWake:      &wake,
	}
	if err := SaveRuntimeState(path, rs); err != nil {
		t.Fatalf("SaveRuntimeState: %v", err)
	}
	loaded, err := LoadRuntimeState(path)
	if err != nil {
		t.Fatalf("LoadRuntimeState: %v", err)
	}
	if loaded.SessionNumber != 4 || *loaded.PID != pid || loaded.RetryCount != 2 {
		t.Errorf("round trip mismatch: %+v", loaded)
	}
	if loaded.NextWake == nil || !loaded.NextWake.Equal(wake) {
		t.Errorf("next_wake mismatch: %+v", loaded.NextWake)
	}
}

func TestRuntimeStateNoPartialWriteOnDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "timer.json")
	rs := RuntimeState{SessionNumber: 1}
	if err := SaveRuntimeState(path, rs); err != nil {
		t.Fatalf("SaveRuntimeState: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if e.Name() != "timer.json" {
			t.Errorf("unexpected leftover file %q after SaveRuntimeState", e.Name())
		}
	}
}

func TestIsLockedSelfPID(t *testing.T) {
	pid := os.Getpid()
	rs := RuntimeState{PID: &pid}
	if !IsLocked(rs) {
		t.Errorf("expected IsLocked to be true for current pid")
	}
}

func TestIsLockedNoPID(t *testing.T) {
	if IsLocked(RuntimeState{}) {
		t.Errorf("expected IsLocked to be false with no pid set")
	}
}

func TestIsLockedStalePID(t *testing.T) {
	// PID 0 is never a valid live user process in our IsAlive check.
	zero := 0
	if IsLocked(RuntimeState{PID: &zero}) {
		t.Errorf("expected IsLocked to be false for pid 0")
	}
}

func TestEffectiveMergesOverrides(t *testing.T) {
	cfg := Default()
	cfg.Agent = "claude"
	cfg.MaxRetries = 1
	overrideRetries := uint32(5)
	rs := RuntimeState{OverrideMaxRetries: &overrideRetries}
	eff := Effective(cfg, rs)
	if eff.MaxRetries != 5 {
		t.Errorf("max_retries = %d, want 5 (overridden)", eff.MaxRetries)
	}
	if eff.Agent != "claude" {
		t.Errorf("agent = %q, want unchanged claude", eff.Agent)
	}
}

package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cryochamber/cryo/internal/state"
)

func TestSpawnRunsCommandAndCapturesLog(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "cryo-agent.log")
	cfg := state.Config{Agent: "/bin/echo hello"}
	sp, err := Spawn(context.Background(), cfg, state.Provider{}, dir, filepath.Join(dir, "cryo.sock"), logPath)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	select {
	case err := <-sp.Exited:
		if err != nil {
			t.Fatalf("unexpected exit error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected agent log to contain output")
	}
}

func TestSpawnInjectsProviderEnvAndSocket(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "cryo-agent.log")
	cfg := state.Config{Agent: "/usr/bin/env"}
	provider := state.Provider{Name: "primary", Env: map[string]string{"CRYO_TEST_KEY": "abc123"}}
	sp, err := Spawn(context.Background(), cfg, provider, dir, filepath.Join(dir, "cryo.sock"), logPath)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	<-sp.Exited
	data, _ := os.ReadFile(logPath)
	content := string(data)
	if !contains(content, "CRYO_TEST_KEY=abc123") {
		t.Errorf("expected provider env in child output, got: %s", content)
	}
	if !contains(content, "CRYO_SOCKET=") {
		t.Errorf("expected CRYO_SOCKET in child env, got: %s", content)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name      string
		hibernate bool
		lifetime  time.Duration
		timedOut  bool
		want      Outcome
	}{
		{"clean", true, 10 * time.Second, false, OutcomeClean},
		{"timeout wins over hibernate", true, 10 * time.Second, true, OutcomeTimeout},
		{"quick exit", false, 2 * time.Second, false, OutcomeCrashQuickExit},
		{"exit without hibernate", false, 30 * time.Second, false, OutcomeCrashExitWithoutHiber},
		{"boundary at threshold is not quick", false, QuickExitThreshold, false, OutcomeCrashExitWithoutHiber},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Classify(c.hibernate, c.lifetime, c.timedOut)
			if got != c.want {
				t.Errorf("Classify(%v, %v, %v) = %v, want %v", c.hibernate, c.lifetime, c.timedOut, got, c.want)
			}
		})
	}
}

func TestStopSendsSigtermAndWaits(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "cryo-agent.log")
	cfg := state.Config{Agent: "/bin/sleep 30"}
	sp, err := Spawn(context.Background(), cfg, state.Provider{}, dir, filepath.Join(dir, "cryo.sock"), logPath)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := sp.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

package registry

import (
	"os"
	"testing"
)

func TestRegisterLookupRoundTrip(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	project := t.TempDir()

	if err := Register(project, os.Getpid()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	pid, found, err := Lookup(project)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !found || pid != os.Getpid() {
		t.Errorf("Lookup = (%d, %v), want (%d, true)", pid, found, os.Getpid())
	}
}

func TestLookupMissingEntry(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	_, found, err := Lookup(t.TempDir())
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if found {
		t.Error("expected not found for unregistered project")
	}
}

func TestLookupSelfCleansStaleEntry(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	project := t.TempDir()

	// Use a PID astronomically unlikely to be alive.
	if err := Register(project, 1999999); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, found, err := Lookup(project)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if found {
		t.Error("expected stale entry to be treated as not found")
	}
	// Lookup also removes the stale entry from disk.
	path := entryPath(Dir(), project)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected stale registry entry to be removed from disk")
	}
}

func TestUnregisterRemovesEntry(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	project := t.TempDir()
	Register(project, os.Getpid())
	if err := Unregister(project); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	_, found, _ := Lookup(project)
	if found {
		t.Error("expected entry to be gone after Unregister")
	}
}

func TestKeyIsStableAndFilesystemSafe(t *testing.T) {
	k1 := Key("/foo/bar")
	k2 := Key("/foo/bar/")
	if k1 == "" {
		t.Fatal("expected non-empty key")
	}
	if k1 != k2 { // different raw path, cleaned equivalently by filepath.Clean
		t.Errorf("Key not stable across equivalent paths: %q vs %q", k1, k2)
	}
	for _, r := range k1 {
		if !((r >= 'a' && r <= 'f') || (r >= '0' && r <= '9')) {
			t.Errorf("key contains non-hex character: %q", k1)
		}
	}
}

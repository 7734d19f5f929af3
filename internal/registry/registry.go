// Package registry maintains a PID file per ProjectDir under a
// user-runtime directory, keyed by a hash of the project's absolute
// path, per spec.md §3's "Registry entry" and the invariant that stale
// entries self-clean.
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cryochamber/cryo/internal/procutil"
)

// Dir returns the registry's base directory, preferring XDG_RUNTIME_DIR
// when set (Linux convention) and falling back to the OS temp dir.
func Dir() string {
	if xdg := os.Getenv("XDG_RUNTIME_DIR"); xdg != "" {
		return filepath.Join(xdg, "cryo")
	}
	return filepath.Join(os.TempDir(), "cryo-registry")
}

// Key hashes an absolute project path into a stable, filesystem-safe
// identifier used both for the registry entry name and service names.
func Key(projectDir string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(projectDir)))
	return hex.EncodeToString(sum[:])[:16]
}

func entryPath(dir, projectDir string) string {
	return filepath.Join(dir, Key(projectDir)+".pid")
}

// Register records pid as the live daemon for projectDir. Overwrites any
// existing entry.
func Register(projectDir string, pid int) error {
	dir := Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create registry dir %s: %w", dir, err)
	}
	path := entryPath(dir, projectDir)
	content := fmt.Sprintf("%d\n%s\n", pid, filepath.Clean(projectDir))
	tmp, err := os.CreateTemp(dir, ".registry-*")
	if err != nil {
		return fmt.Errorf("create temp registry entry: %w", err)
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write registry entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close registry entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename registry entry: %w", err)
	}
	return nil
}

// Unregister removes the entry for projectDir, if any.
func Unregister(projectDir string) error {
	err := os.Remove(entryPath(Dir(), projectDir))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Lookup returns the registered PID for projectDir, self-cleaning (and
// returning found=false) if the entry is stale — the recorded process is
// no longer alive.
func Lookup(projectDir string) (pid int, found bool, err error) {
	path := entryPath(Dir(), projectDir)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	lines := strings.SplitN(string(data), "\n", 2)
	if len(lines) == 0 {
		os.Remove(path)
		return 0, false, nil
	}
	pid, convErr := strconv.Atoi(strings.TrimSpace(lines[0]))
	if convErr != nil {
		os.Remove(path)
		return 0, false, nil
	}
	if !procutil.IsAlive(pid) {
		os.Remove(path)
		return 0, false, nil
	}
	return pid, true, nil
}

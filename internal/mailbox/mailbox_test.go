package mailbox

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fm := Frontmatter{
		From:      "alice",
		Subject:   "new move",
		Timestamp: time.Date(2026, 2, 25, 1, 13, 12, 0, time.UTC),
		Metadata:  map[string]string{"source": "zulip"},
	}
	path, err := Write(dir, fm, "hello there\n")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	msg, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if msg.Frontmatter.From != "alice" || msg.Frontmatter.Subject != "new move" {
		t.Errorf("frontmatter mismatch: %+v", msg.Frontmatter)
	}
	if msg.Frontmatter.Metadata["source"] != "zulip" {
		t.Errorf("metadata mismatch: %+v", msg.Frontmatter.Metadata)
	}
	if msg.Body != "hello there\n" {
		t.Errorf("body mismatch: %q", msg.Body)
	}
}

func TestWriteIsAtomicNoStagingLeftover(t *testing.T) {
	dir := t.TempDir()
	fm := Frontmatter{From: "bob"}
	if _, err := Write(dir, fm, "body"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	staged, _ := os.ReadDir(filepath.Join(dir, ".staging"))
	if len(staged) != 0 {
		t.Errorf("expected no leftover staged files, got %d", len(staged))
	}
}

func TestListSortedByFilenameThenTimestamp(t *testing.T) {
	dir := t.TempDir()
	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	Write(dir, Frontmatter{From: "a", Timestamp: early}, "first")
	Write(dir, Frontmatter{From: "b", Timestamp: late}, "second")

	msgs, err := ListSorted(dir)
	if err != nil {
		t.Fatalf("ListSorted: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Body != "first" || msgs[1].Body != "second" {
		t.Errorf("expected chronological order, got %q then %q", msgs[0].Body, msgs[1].Body)
	}
}

func TestListSortedEmptyDir(t *testing.T) {
	dir := t.TempDir()
	msgs, err := ListSorted(filepath.Join(dir, "nonexistent"))
	if err != nil {
		t.Fatalf("ListSorted on missing dir should not error: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected no messages, got %d", len(msgs))
	}
}

func TestArchiveMovesFile(t *testing.T) {
	dir := t.TempDir()
	archiveDir := filepath.Join(dir, "archive")
	path, _ := Write(dir, Frontmatter{From: "a"}, "body")
	msg, _ := Read(path)

	if err := Archive(msg, archiveDir); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected original message to be gone after archive")
	}
	archived := filepath.Join(archiveDir, filepath.Base(path))
	if _, err := os.Stat(archived); err != nil {
		t.Errorf("expected archived file to exist: %v", err)
	}
}

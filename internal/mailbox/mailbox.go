// Package mailbox implements the inbox/outbox message stores: markdown
// files with a YAML frontmatter header, written atomically (stage file +
// rename) so external channel syncers and the daemon never observe a
// half-written message, and archived only after they've been delivered
// into a session's prompt.
package mailbox

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Frontmatter is the YAML header of a message file, per spec.md §6.
type Frontmatter struct {
	From      string            `yaml:"from"`
	Subject   string            `yaml:"subject,omitempty"`
	Timestamp time.Time         `yaml:"timestamp"`
	Metadata  map[string]string `yaml:"metadata,omitempty"`
}

// Message is a parsed mailbox entry: its frontmatter, body, and the file
// it was read from (used to archive or delete it later).
type Message struct {
	Path        string
	Frontmatter Frontmatter
	Body        string
}

const frontmatterDelim = "---"

// Write atomically creates a new message file in dir. The filename embeds
// the frontmatter timestamp so directory listings sort chronologically by
// name alone, with a uuid suffix to avoid collisions within the same
// second (the teacher's pattern of unique-name-then-rename, generalized
// from task IDs to message files).
func Write(dir string, fm Frontmatter, body string) (string, error) {
	if fm.Timestamp.IsZero() {
		fm.Timestamp = time.Now().UTC()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create mailbox dir %s: %w", dir, err)
	}

	header, err := yaml.Marshal(fm)
	if err != nil {
		return "", fmt.Errorf("marshal frontmatter: %w", err)
	}
	var content strings.Builder
	content.WriteString(frontmatterDelim + "\n")
	content.Write(header)
	content.WriteString(frontmatterDelim + "\n")
	content.WriteString(body)

	name := fmt.Sprintf("%s-%s.md", fm.Timestamp.UTC().Format("20060102T150405Z"), uuid.New().String())

	stageDir := filepath.Join(dir, ".staging")
	if err := os.MkdirAll(stageDir, 0755); err != nil {
		return "", fmt.Errorf("create staging dir %s: %w", stageDir, err)
	}
	stagePath := filepath.Join(stageDir, name)
	if err := os.WriteFile(stagePath, []byte(content.String()), 0644); err != nil {
		return "", fmt.Errorf("write staged message: %w", err)
	}

	finalPath := filepath.Join(dir, name)
	if err := os.Rename(stagePath, finalPath); err != nil {
		os.Remove(stagePath)
		return "", fmt.Errorf("rename message into place: %w", err)
	}
	return finalPath, nil
}

// ListSorted returns every *.md message directly in dir (not recursing
// into subdirectories like archive/ or .staging/), sorted by filename then
// by frontmatter timestamp as a tiebreaker.
func ListSorted(dir string) ([]Message, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read mailbox dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	msgs := make([]Message, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		msg, err := Read(path)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		bi, bj := filepath.Base(msgs[i].Path), filepath.Base(msgs[j].Path)
		if bi != bj {
			return bi < bj
		}
		return msgs[i].Frontmatter.Timestamp.Before(msgs[j].Frontmatter.Timestamp)
	})
	return msgs, nil
}

// Read parses a single message file.
func Read(path string) (Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Message{}, fmt.Errorf("read message %s: %w", path, err)
	}
	text := string(data)
	if !strings.HasPrefix(text, frontmatterDelim) {
		return Message{}, fmt.Errorf("message %s: missing frontmatter delimiter", path)
	}
	rest := strings.TrimPrefix(text, frontmatterDelim+"\n")
	idx := strings.Index(rest, "\n"+frontmatterDelim+"\n")
	if idx < 0 {
		return Message{}, fmt.Errorf("message %s: unterminated frontmatter", path)
	}
	header := rest[:idx]
	body := rest[idx+len("\n"+frontmatterDelim+"\n"):]

	var fm Frontmatter
	if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
		return Message{}, fmt.Errorf("message %s: parse frontmatter: %w", path, err)
	}
	return Message{Path: path, Frontmatter: fm, Body: body}, nil
}

// Archive moves a consumed inbox message into archiveDir, called only
// after the session that received it has already opened — this keeps
// delivery at-least-once across a daemon restart mid-session (spec.md
// §4.7).
func Archive(msg Message, archiveDir string) error {
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return fmt.Errorf("create archive dir %s: %w", archiveDir, err)
	}
	dst := filepath.Join(archiveDir, filepath.Base(msg.Path))
	if err := os.Rename(msg.Path, dst); err != nil {
		return fmt.Errorf("archive message %s: %w", msg.Path, err)
	}
	return nil
}

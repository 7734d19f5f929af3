// Package watch turns filesystem change notifications on the inbox
// directory into a single coalesced event per daemon gap, per spec.md §5:
// "InboxChanged events are coalesced: multiple file creations within a
// short window (~200ms) produce at most one wake event per session gap."
// This is the daemon's auxiliary thread #1 — it never mutates daemon
// state, it only pushes onto the caller-supplied channel.
package watch

import (
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// CoalesceWindow is how long the watcher waits after the first detected
// change before emitting, absorbing any further changes that arrive in
// the meantime into the same notification.
const CoalesceWindow = 200 * time.Millisecond

// Inbox watches dir for new or modified files and sends on changed
// (capacity 1, non-blocking — a pending notification is enough, the
// daemon doesn't need a queue of them) whenever activity settles.
type Inbox struct {
	watcher *fsnotify.Watcher
	dir     string
	changed chan<- struct{}
	log     *slog.Logger
	done    chan struct{}
}

// NewInbox creates dir if it is missing (the watcher needs it present
// before it can be added) and starts watching it.
func NewInbox(dir string, changed chan<- struct{}, log *slog.Logger) (*Inbox, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	return &Inbox{watcher: w, dir: dir, changed: changed, log: log, done: make(chan struct{})}, nil
}

// Run blocks, forwarding coalesced change notifications until Close is
// called. Intended to be started with `go inbox.Run()`.
func (in *Inbox) Run() {
	timer := time.NewTimer(CoalesceWindow)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case ev, ok := <-in.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if pending {
				if !timer.Stop() {
					<-timer.C
				}
			}
			pending = true
			timer.Reset(CoalesceWindow)
		case err, ok := <-in.watcher.Errors:
			if !ok {
				return
			}
			in.log.Warn("inbox watcher error", "error", err)
		case <-timer.C:
			pending = false
			select {
			case in.changed <- struct{}{}:
			default:
			}
		case <-in.done:
			return
		}
	}
}

// Close stops the watcher and its goroutine.
func (in *Inbox) Close() error {
	close(in.done)
	return in.watcher.Close()
}

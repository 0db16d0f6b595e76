package git

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"gitsmart/internal/logging"
)

// Watcher observes the repository's .git directory and reports when the index
// changes outside of our own operations (another terminal, an IDE). Events
// are debounced: bursts of writes collapse into one notification.
type Watcher struct {
	repo     *Repo
	debounce time.Duration

	changed chan struct{}
}

// NewWatcher creates a watcher for repo. Notifications arrive on Changed().
func NewWatcher(repo *Repo) *Watcher {
	return &Watcher{
		repo:     repo,
		debounce: 500 * time.Millisecond,
		changed:  make(chan struct{}, 1),
	}
}

// Changed returns the notification channel. At most one notification is
// buffered; a slow consumer sees coalesced changes, never a backlog.
func (w *Watcher) Changed() <-chan struct{} { return w.changed }

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.repo.GitDir()); err != nil {
		return err
	}

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			logging.GitDebug("index change detected")
			select {
			case w.changed <- struct{}{}:
			default:
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logging.GitError("watch error: %v", err)
		}
	}
}

// relevant filters .git writes down to the files that signal a staging or
// commit change. Lock files churn constantly and are ignored.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Base(ev.Name)
	if strings.HasSuffix(name, ".lock") {
		return false
	}
	return name == "index" || name == "HEAD" || name == "MERGE_HEAD"
}

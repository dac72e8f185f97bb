package watch

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ErrNotRepository is returned when the watched directory has no .git
// metadata.
var ErrNotRepository = errors.New("watch: not a git repository")

// RepoWatcher turns changes to a repository's git metadata into rebuild
// requests. It watches HEAD and the local branch refs, so commits,
// checkouts and resets all trigger a request.
type RepoWatcher struct {
	watcher *fsnotify.Watcher
	sched   *Scheduler
	log     zerolog.Logger

	closeOnce sync.Once
	closeCh   chan struct{}
	wg        sync.WaitGroup
}

// WatchRepository starts watching the git metadata of the repository
// rooted at dir.
func WatchRepository(dir string, sched *Scheduler, log zerolog.Logger) (*RepoWatcher, error) {
	gitDir := filepath.Join(dir, ".git")
	info, err := os.Stat(gitDir)
	if err != nil || !info.IsDir() {
		return nil, ErrNotRepository
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &RepoWatcher{
		watcher: fsw,
		sched:   sched,
		log:     log,
		closeCh: make(chan struct{}),
	}

	// HEAD is rewritten on checkout; refs/heads on commit and reset.
	// The heads directory may not exist in a fresh repository.
	for _, p := range []string{gitDir, filepath.Join(gitDir, "refs", "heads")} {
		if err := fsw.Add(p); err != nil && p == gitDir {
			fsw.Close()
			return nil, err
		}
	}

	w.wg.Add(1)
	go w.processLoop()
	return w, nil
}

func (w *RepoWatcher) processLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !interesting(event) {
				continue
			}
			w.log.Debug().Str("path", event.Name).Str("op", event.Op.String()).
				Msg("repository changed")
			if err := w.sched.Request(); err != nil {
				return
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("watch error")
		}
	}
}

// interesting reports whether a git metadata event can change blame
// output. Lock files churn constantly and are skipped.
func interesting(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) &&
		!event.Op.Has(fsnotify.Rename) && !event.Op.Has(fsnotify.Remove) {
		return false
	}
	base := filepath.Base(event.Name)
	if filepath.Ext(base) == ".lock" {
		return false
	}
	switch base {
	case "HEAD", "ORIG_HEAD", "MERGE_HEAD", "packed-refs", "index":
		return true
	}
	// Anything under refs/heads.
	return filepath.Base(filepath.Dir(event.Name)) == "heads"
}

// Close stops the watcher. The scheduler is left running.
func (w *RepoWatcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}

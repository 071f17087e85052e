package repository

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher reloads the job document whenever the underlying file is
// replaced on disk (e.g. credentials rotated by an external process),
// without requiring a kipd restart.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	store     *Store
	logger    *logrus.Logger
	onReload  func(*Document)
}

// WatchDocument starts watching the directory containing the store's
// document path and invokes onReload with the freshly parsed Document
// whenever the file is written or renamed into place. Watching the
// directory, not the file, survives editors that replace the file via
// rename rather than in-place write (the same atomic pattern Store
// itself uses to write).
func WatchDocument(store *Store, logger *logrus.Logger, onReload func(*Document)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(store.path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}

	watcher := &Watcher{fsWatcher: w, store: store, logger: logger, onReload: onReload}
	go watcher.run()
	return watcher, nil
}

func (w *Watcher) run() {
	target := filepath.Clean(w.store.path)
	for {
		select {
		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			doc, err := w.store.Load(context.Background())
			if err != nil {
				w.logger.WithError(err).Warn("repository: reload after change failed")
				continue
			}
			w.onReload(doc)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("repository: watcher error")
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fsWatcher.Close()
}

// Package watch reloads the todo store when its backing file is rewritten
// by another process.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Makepad-fr/tada/internal/stream"
	"github.com/Makepad-fr/tada/internal/todos"
)

// Settle is how long file events are coalesced before a reload.
const Settle = 50 * time.Millisecond

// Watcher monitors one file and calls Store.Reload when it changes.
type Watcher struct {
	path   string
	store  *todos.Store
	loader todos.Loader
	log    *slog.Logger
	clock  stream.Clock

	changes *stream.Bus[string]
}

func New(path string, s *todos.Store, l todos.Loader, log *slog.Logger) *Watcher {
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{
		path:    filepath.Clean(path),
		store:   s,
		loader:  l,
		log:     log,
		clock:   stream.RealClock{},
		changes: stream.NewBus[string](),
	}
}

// Start watches the file's directory until ctx is done. Editors and our own
// store replace the file by rename, so the directory is watched rather than
// the file itself.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		fw.Close()
		return err
	}
	sub := stream.Throttle(w.changes, Settle, w.clock).Subscribe(func(string) {
		if err := w.store.Reload(ctx, w.loader); err != nil {
			w.log.Warn("reload todos", "path", w.path, "err", err)
		}
	})
	go func() {
		defer fw.Close()
		defer sub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-fw.Events:
				if !ok {
					return
				}
				w.handle(evt)
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				w.log.Warn("watcher error", "err", err)
			}
		}
	}()
	w.log.Debug("watching todo file", "path", w.path)
	return nil
}

func (w *Watcher) handle(evt fsnotify.Event) {
	if filepath.Clean(evt.Name) != w.path {
		return
	}
	if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
		w.changes.Publish(evt.Name)
	}
}

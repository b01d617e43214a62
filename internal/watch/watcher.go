// Package watch reports filesystem changes under the sandbox root that
// did not go through the gateway, such as edits made by other programs.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/fsgate/internal/sse"
	"github.com/starford/fsgate/internal/storage"
)

// Source is the event source reported for watcher-driven changes.
const Source = "watcher"

// DefaultDebounce coalesces bursts of events on the same path.
const DefaultDebounce = 100 * time.Millisecond

// Notifier receives coalesced changes. *sse.Broker satisfies it.
type Notifier interface {
	PublishChange(kind, path, source string)
}

// Watch starts an fsnotify watcher on root and publishes changes until ctx
// is cancelled. New directories created at runtime are added to the watch
// list. Temp files of in-flight atomic writes are ignored.
func Watch(ctx context.Context, root string, debounce time.Duration, logger *slog.Logger, n Notifier) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	logger.Info("watcher: started", slog.String("root", root))

	pending := make(map[string]string)
	var flushTimer *time.Timer
	var flushCh <-chan time.Time

	schedule := func(path, kind string) {
		pending[path] = kind
		if flushTimer == nil {
			flushTimer = time.NewTimer(debounce)
			flushCh = flushTimer.C
		} else {
			flushTimer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if flushTimer != nil {
				flushTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-flushCh:
			flush(pending, n)
			pending = make(map[string]string)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if storage.IsTemp(ev.Name) {
				continue
			}

			switch {
			case ev.Op&fsnotify.Create != 0:
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", ev.Name))
					}
				}
				schedule(ev.Name, sse.KindChanged)

			case ev.Op&fsnotify.Write != 0:
				schedule(ev.Name, sse.KindChanged)

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// Rename fires on the old path only; the new path arrives
				// as a separate Create when it stays under a watched dir.
				schedule(ev.Name, sse.KindRemoved)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func flush(pending map[string]string, n Notifier) {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		n.PublishChange(pending[p], p, Source)
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}

package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the menu whenever its file changes, until ctx is cancelled.
//
// The parent directory is watched rather than the file itself so that editors
// which save by rename-and-replace keep triggering events. Bursts of events
// are coalesced by the debounce delay. Failed reloads are logged and the
// previous snapshot keeps serving.
//
// Watch returns nil when ctx is cancelled.
func (c *Catalog) Watch(ctx context.Context) error {
	if c.path == "" {
		<-ctx.Done()
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog: create watcher: %w", err)
	}
	defer w.Close()

	target := filepath.Clean(c.path)
	dir := filepath.Dir(target)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("catalog: watch %q: %w", dir, err)
	}
	slog.Info("catalog: watching menu", "path", target)

	timer := time.NewTimer(c.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			slog.Debug("catalog: menu file event", "path", event.Name, "op", event.Op.String())
			timer.Reset(c.debounce)

		case <-timer.C:
			if _, err := c.Reload(); err != nil {
				slog.Warn("catalog: reload failed, keeping previous menu", "path", target, "err", err)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("catalog: watcher error", "err", err)
		}
	}
}

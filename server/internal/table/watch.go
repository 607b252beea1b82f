package table

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay is how long the file must stay quiet after a write before it is
// reloaded. Writers that emit several chunks are read once, when done.
const settleDelay = 150 * time.Millisecond

// Watch monitors the backing file and calls Reload each time another process
// writes or replaces it. It runs until ctx is cancelled.
//
// The parent directory is watched rather than the file so that atomic saves
// (write to temp, rename over) keep being observed. Bursts of events are
// coalesced: Reload runs once the file has been quiet for settleDelay. If a
// reload fails the error is logged and the previous table stays active.
func (t *Table) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	target, err := filepath.Abs(t.path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}

	slog.Info("table: watching for changes", "path", t.path)

	settle := time.NewTimer(settleDelay)
	if !settle.Stop() {
		<-settle.C
	}
	defer settle.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if name, err := filepath.Abs(event.Name); err != nil || name != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if pending && !settle.Stop() {
				<-settle.C
			}
			settle.Reset(settleDelay)
			pending = true

		case <-settle.C:
			pending = false
			changed, err := t.Reload()
			if err != nil {
				slog.Error("table: reload failed, keeping previous table",
					"path", t.path, "err", err)
				continue
			}
			if changed {
				slog.Info("table: reloaded", "path", t.path, "employees", t.Len())
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("table: watcher error", "err", err)
		}
	}
}

package docstore

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	robfigcron "github.com/robfig/cron/v3"
)

const watchDebounce = 500 * time.Millisecond

// Watcher keeps a directory synced into the store. Filesystem events
// trigger a debounced resync; an optional cron schedule forces periodic
// full resyncs as a safety net for missed events.
type Watcher struct {
	store      *Store
	dir        string
	resyncSpec string
	debounce   time.Duration
}

// NewWatcher builds a watcher over dir. resyncSpec is a cron expression
// (e.g. "@every 10m"); empty disables the periodic resync.
func NewWatcher(store *Store, dir, resyncSpec string) *Watcher {
	return &Watcher{
		store:      store,
		dir:        dir,
		resyncSpec: resyncSpec,
		debounce:   watchDebounce,
	}
}

// Run syncs once, then watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}

	w.resync(ctx)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return err
	}

	// Periodic resync on the configured schedule.
	ticks := make(chan struct{}, 1)
	if w.resyncSpec != "" {
		c := robfigcron.New()
		if _, err := c.AddFunc(w.resyncSpec, func() {
			select {
			case ticks <- struct{}{}:
			default:
			}
		}); err != nil {
			slog.Warn("Invalid resync schedule, periodic resync disabled", "spec", w.resyncSpec, "error", err)
		} else {
			c.Start()
			defer c.Stop()
		}
	}

	slog.Info("Watching docs directory", "dir", w.dir)

	var pending <-chan time.Time
	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			pending = time.After(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Docs watcher error", "error", err)
		case <-pending:
			pending = nil
			w.resync(ctx)
		case <-ticks:
			w.resync(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *Watcher) resync(ctx context.Context) {
	report, err := w.store.SyncDir(ctx, w.dir)
	if err != nil {
		slog.Warn("Docs resync failed", "dir", w.dir, "error", err)
		return
	}
	if len(report.Added) > 0 || len(report.Removed) > 0 || len(report.Errors) > 0 {
		slog.Info("Docs resynced",
			"added", len(report.Added),
			"removed", len(report.Removed),
			"skipped", len(report.Skipped),
			"errors", len(report.Errors),
		)
	}
}

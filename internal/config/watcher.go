package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/openmined/termhost/internal/hosterr"
	"github.com/openmined/termhost/internal/utils"
	"github.com/rjeczalik/notify"
)

const (
	defaultDebounceTimeout = 50 * time.Millisecond
	eventBufferSize        = 64
)

// Watcher reports config content written by someone other than its Store, such as
// another process or an editor. Saves made through the Store are not reported.
type Watcher struct {
	store           *Store
	debounceTimeout time.Duration

	rawEvents chan notify.EventInfo
	changes   chan string
	done      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewWatcher(store *Store) *Watcher {
	return &Watcher{
		store:           store,
		debounceTimeout: defaultDebounceTimeout,
		done:            make(chan struct{}),
	}
}

// SetDebounceTimeout sets how long the directory must be quiet before the file is
// reread. Editors and renames produce bursts of events.
func (w *Watcher) SetDebounceTimeout(timeout time.Duration) {
	w.debounceTimeout = timeout
}

// Start watches the config file's directory. The current content becomes the
// baseline, so only later edits are reported.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.store.Path())
	slog.Info("config watcher start", "dir", dir)

	if err := utils.EnsureDir(dir); err != nil {
		return hosterr.NewIOError("mkdir", dir, err)
	}
	if _, _, err := w.store.refresh(); err != nil {
		return err
	}

	w.rawEvents = make(chan notify.EventInfo, eventBufferSize)
	w.changes = make(chan string, 1)

	if err := notify.Watch(dir, w.rawEvents, notify.All); err != nil {
		return err
	}

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Changes delivers the new content after each outside edit. It is closed when the
// watcher stops.
func (w *Watcher) Changes() <-chan string {
	return w.changes
}

func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		if w.rawEvents != nil {
			notify.Stop(w.rawEvents)
		}
		w.wg.Wait()
		slog.Info("config watcher stopped")
	})
}

func (w *Watcher) loop(ctx context.Context) {
	defer func() {
		close(w.changes)
		w.wg.Done()
	}()

	name := filepath.Base(w.store.Path())
	timer := time.NewTimer(w.debounceTimeout)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.rawEvents:
			if !ok {
				return
			}
			// event paths may be symlink-resolved, so compare names only
			if filepath.Base(event.Path()) != name {
				continue
			}
			timer.Reset(w.debounceTimeout)
		case <-timer.C:
			w.check(ctx)
		}
	}
}

func (w *Watcher) check(ctx context.Context) {
	content, changed, err := w.store.refresh()
	if err != nil {
		slog.Warn("config watcher read failed", "path", w.store.Path(), "error", err)
		return
	}
	if !changed {
		return
	}

	slog.Debug("config changed outside the store", "path", w.store.Path(), "bytes", len(content))
	select {
	case w.changes <- content:
	case <-ctx.Done():
	case <-w.done:
	}
}

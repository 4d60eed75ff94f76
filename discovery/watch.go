package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce coalesces the burst of events editors and atomic
// renames produce for a single key file update.
const DefaultWatchDebounce = 100 * time.Millisecond

// WatchFile calls onChange after path is written, created or renamed into
// place. The parent directory is watched so replacement by rename is seen.
// Watching stops when ctx is done. onChange is never called concurrently.
func WatchFile(ctx context.Context, path string, onChange func(context.Context), opts ...Option) error {
	o := newOptions(opts)
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve key file path: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	var mu sync.Mutex
	d := &debouncer{interval: o.debounce(), fire: func() {
		mu.Lock()
		defer mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		o.log.InfoContext(ctx, "discovery.watch.changed", slog.String("path", abs))
		onChange(ctx)
	}}

	go func() {
		defer func() { _ = w.Close() }()
		defer d.stop()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					d.trigger()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				o.log.WarnContext(ctx, "discovery.watch.err", slog.String("path", abs), slog.String("err", err.Error()))
			}
		}
	}()
	return nil
}

// WithWatchDebounce overrides DefaultWatchDebounce for WatchFile.
func WithWatchDebounce(d time.Duration) Option {
	return func(o *options) { o.watchDebounce = d }
}

func (o *options) debounce() time.Duration {
	if o.watchDebounce > 0 {
		return o.watchDebounce
	}
	return DefaultWatchDebounce
}

type debouncer struct {
	mu       sync.Mutex
	interval time.Duration
	timer    *time.Timer
	fire     func()
}

func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, d.fire)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

// Package watch reloads schema when files of schema source change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"schemac/schema"
)

// DefaultDebounce is quiet period used when none is configured.
const DefaultDebounce = 500 * time.Millisecond

// Reloader is implemented by schema.Repo.
type Reloader interface {
	Reload() (*schema.Snapshot, error)
}

// Watcher observes schema source and calls Reload after a quiet period
// following the last relevant change.
type Watcher struct {
	log      *zap.Logger
	reloader Reloader
	debounce time.Duration
	suffix   string
	onReload func(*schema.Snapshot, error)
	events   prometheus.Counter

	// bundle is set when watching a single file
	bundle string
	fsw    *fsnotify.Watcher

	closeOnce sync.Once
}

// Option configures Watcher.
type Option func(*Watcher)

func WithLogger(log *zap.Logger) Option {
	return func(w *Watcher) {
		if log != nil {
			w.log = log
		}
	}
}

func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithSuffix limits watched files in directory sources.
func WithSuffix(suffix string) Option {
	return func(w *Watcher) {
		w.suffix = suffix
	}
}

// WithCallback sets function called after every reload attempt.
func WithCallback(fn func(*schema.Snapshot, error)) Option {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// WithMetrics counts relevant file system events.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(w *Watcher) {
		if reg == nil {
			return
		}
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "schemac",
			Subsystem: "watch",
			Name:      "events_total",
			Help:      "Number of file system events which caused schema reload.",
		})
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				c, _ = are.ExistingCollector.(prometheus.Counter)
			}
		}
		w.events = c
	}
}

// New starts watching root, which is either a directory tree or a single
// file (zip bundle).
func New(root string, r Reloader, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		log:      zap.NewNop(),
		reloader: r,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}

	fi, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if w.fsw, err = fsnotify.NewWatcher(); err != nil {
		return nil, fmt.Errorf("unable to create file system watcher: %w", err)
	}

	if fi.IsDir() {
		err = w.addTree(root)
	} else {
		// editors and downloaders replace files, so watch directory and filter
		w.bundle = filepath.Clean(root)
		err = w.fsw.Add(filepath.Dir(w.bundle))
	}
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("unable to watch %s: %w", root, err), w.fsw.Close())
	}
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return err
		}
		w.log.Debug("Watching", zap.String("dir", path))
		return nil
	})
}

// relevant reports if event may change resolved schema.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	if len(w.bundle) > 0 {
		return filepath.Clean(ev.Name) == w.bundle
	}
	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		// could be a directory, there is no way to check anymore
		return true
	}
	if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
		return true
	}
	return len(w.suffix) == 0 || strings.HasSuffix(ev.Name, w.suffix)
}

// Run processes events until context is cancelled or watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.log.Debug("Schema source changed", zap.String("name", ev.Name), zap.Stringer("op", ev.Op))
			if w.events != nil {
				w.events.Inc()
			}
			if len(w.bundle) == 0 && ev.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						w.log.Warn("Unable to watch new directory", zap.String("dir", ev.Name), zap.Error(err))
					}
				}
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			pending = timer.C

		case <-pending:
			pending = nil
			w.reload()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("File system watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	start := time.Now()
	snap, err := w.reloader.Reload()
	if err != nil {
		w.log.Error("Schema reload failed, previous schema is kept", zap.Error(err))
	} else {
		w.log.Info("Schema reloaded", zap.Stringer("session", snap.Session), zap.Duration("elapsed", time.Since(start)))
	}
	if w.onReload != nil {
		w.onReload(snap, err)
	}
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.fsw.Close()
	})
	return err
}

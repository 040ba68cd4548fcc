// Package sitewatcher publishes sites.changed events when the site list file changes.
package sitewatcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/localroute/localroute/internal/boundaries/out"
	"github.com/localroute/localroute/internal/domain"
	"github.com/localroute/localroute/internal/logging"
)

// DefaultDebounce coalesces the burst of events editors emit on save.
const DefaultDebounce = 500 * time.Millisecond

// Watcher implements out.SiteWatcher.
type Watcher struct {
	publisher out.EventPublisher
	debounce  time.Duration
}

var _ out.SiteWatcher = (*Watcher)(nil)

// Option configures the Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// New creates a Watcher publishing to publisher.
func New(publisher out.EventPublisher, opts ...Option) *Watcher {
	w := &Watcher{
		publisher: publisher,
		debounce:  DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch watches the directory holding path so that atomic replaces are seen,
// and blocks until ctx is cancelled.
func (w *Watcher) Watch(ctx context.Context, path string) error {
	ctx = logging.CtxWithFields(ctx, map[string]any{
		logging.FieldLayer:   "adapter",
		logging.FieldAdapter: "sitewatcher",
		logging.FieldPath:    path,
	})
	log := logging.FromCtx(ctx)

	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return logging.WrapErr(log, err, "failed to create file watcher")
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(target)); err != nil {
		return logging.WrapErr(log, err, "failed to watch site list directory")
	}
	log.Info().Msg("watching site list for changes")

	var (
		mu     sync.Mutex
		timer  *time.Timer
		lastOp fsnotify.Op
	)
	fire := func() {
		mu.Lock()
		op := lastOp
		mu.Unlock()

		payload := domain.SitesChangedPayload{Path: target, Op: op.String()}
		if err := w.publisher.Publish(domain.EventSitesChanged, payload); err != nil {
			log.Error().Err(err).Msg("failed to publish sites.changed event")
			return
		}
		log.Info().Str("op", op.String()).Msg("site list changed")
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || ev.Op == fsnotify.Chmod {
				continue
			}
			log.Debug().Str("op", ev.Op.String()).Msg("file event")

			mu.Lock()
			lastOp = ev.Op
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("file watcher error")
		}
	}
}

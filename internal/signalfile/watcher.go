package signalfile

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher observes the fleet root for shutdown requests. Notifications are
// delivered at most once per Start; a unit that sees one is expected to
// exit.
type Watcher struct {
	root      string
	fsWatcher *fsnotify.Watcher
	notify    chan struct{}

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

func NewWatcher(root string) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("signalfile: watcher: %w", err)
	}
	return &Watcher{
		root:      root,
		fsWatcher: fsWatcher,
		notify:    make(chan struct{}, 1),
	}, nil
}

// Notify delivers one value when a shutdown request appears.
func (w *Watcher) Notify() <-chan struct{} {
	return w.notify
}

// Start begins watching the fleet root. A signal file already present at
// start counts as a pending request.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	if err := w.fsWatcher.Add(w.root); err != nil {
		return fmt.Errorf("signalfile: watch %s: %w", w.root, err)
	}
	if Exists(w.root) {
		w.fire()
	}
	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	target := Path(w.root)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) {
				log.Info().Str("file", target).Msg("shutdown request observed")
				w.fire()
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("signal watcher error")
		}
	}
}

func (w *Watcher) fire() {
	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// Close stops the watcher and releases the underlying descriptor.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
	}
	w.mu.Unlock()
	return w.fsWatcher.Close()
}

package worklist

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how often pending changes are flushed.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reports when files matching a FileSource's patterns change.
// Bursts of events are collapsed into one notification.
type Watcher struct {
	source   *FileSource
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	mu      sync.Mutex
	pending bool

	changes chan struct{}
}

// NewWatcher creates a watcher for src. A zero debounce uses DefaultDebounce.
func NewWatcher(src *FileSource, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		source:   src,
		debounce: debounce,
		watcher:  fsw,
		logger:   logger,
		changes:  make(chan struct{}, 1),
	}, nil
}

// Changes delivers one value per debounced burst. It is closed when the
// watcher stops.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Start watches the source root recursively until ctx is done or Stop is
// called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addRecursive(w.source.Root); err != nil {
		return err
	}
	go w.loop(ctx)

	w.logger.Info("Work list watcher started",
		"root", w.source.Root,
		"patterns", w.source.Patterns,
		"debounce", w.debounce)
	return nil
}

// Stop closes the underlying watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		base := d.Name()
		if path != root && strings.HasPrefix(base, ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("Failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// Matches reports whether path is covered by one of the source patterns.
func (w *Watcher) Matches(path string) bool {
	rel, err := filepath.Rel(w.source.Root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range w.source.Patterns {
		if ok, _ := doublestar.Match(filepath.ToSlash(pattern), rel); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.changes)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn("Failed to watch new directory", "path", event.Name, "error", err)
			}
			return
		}
	}
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return
	}
	if !w.Matches(event.Name) {
		return
	}

	w.mu.Lock()
	w.pending = true
	w.mu.Unlock()

	w.logger.Debug("Work list change detected", "path", event.Name, "op", event.Op.String())
}

func (w *Watcher) flush() {
	w.mu.Lock()
	fire := w.pending
	w.pending = false
	w.mu.Unlock()

	if !fire {
		return
	}
	select {
	case w.changes <- struct{}{}:
	default:
		// A notification is already queued.
	}
}

// Package watcher notices when the command catalog changes on disk. The
// catalog is loaded once, so a change is only surfaced to the operator.
package watcher

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceInterval = 500 * time.Millisecond

// ChangeCallback is called once per settled burst of edits that changed the
// file's content.
type ChangeCallback func(path string)

// Watcher monitors a single file. It watches the parent directory because
// editors often replace the file instead of writing to it.
type Watcher struct {
	path     string
	interval time.Duration
	callback ChangeCallback
	logger   *slog.Logger

	fsWatcher *fsnotify.Watcher
	cancel    chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	lastHash [sha256.Size]byte
	timer    *time.Timer

	changed atomic.Bool
}

// New starts watching path. callback may be nil.
func New(path string, callback ChangeCallback) (*Watcher, error) {
	return newWatcher(path, callback, debounceInterval)
}

func newWatcher(path string, callback ChangeCallback, interval time.Duration) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	fsW, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsW.Add(filepath.Dir(abs)); err != nil {
		fsW.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		path:      abs,
		interval:  interval,
		callback:  callback,
		logger:    slog.Default().With("component", "watcher", "path", abs),
		fsWatcher: fsW,
		cancel:    make(chan struct{}),
	}
	w.lastHash, _ = fingerprint(abs)

	go w.watchLoop()
	return w, nil
}

// Changed reports whether the file changed since the watcher started.
func (w *Watcher) Changed() bool {
	return w.changed.Load()
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.cancel)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		err = w.fsWatcher.Close()
	})
	return err
}

// watchLoop processes fsnotify events with debouncing.
func (w *Watcher) watchLoop() {
	for {
		select {
		case <-w.cancel:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}

			// Debounce: reset timer on each event.
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.timer = time.AfterFunc(w.interval, w.recheck)
			w.mu.Unlock()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

// recheck compares the file's content with the last seen version and
// notifies if it differs. A removed file counts as a change.
func (w *Watcher) recheck() {
	select {
	case <-w.cancel:
		return
	default:
	}

	sum, err := fingerprint(w.path)
	if err != nil && !os.IsNotExist(err) {
		w.logger.Warn("reading watched file", "error", err)
		return
	}

	w.mu.Lock()
	same := sum == w.lastHash
	w.lastHash = sum
	w.mu.Unlock()
	if same {
		return
	}

	w.changed.Store(true)
	w.logger.Info("file changed on disk")
	if w.callback != nil {
		w.callback(w.path)
	}
}

// fingerprint hashes the file, returning the zero hash when it is missing.
func fingerprint(path string) ([sha256.Size]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return [sha256.Size]byte{}, err
	}
	return sha256.Sum256(data), nil
}

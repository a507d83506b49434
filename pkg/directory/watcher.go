package directory

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a Directory when its users file changes on disk. Events
// are debounced so an editor's write+rename burst triggers one reload.
type Watcher struct {
	dir      *Directory
	watcher  *fsnotify.Watcher
	debounce time.Duration

	done     chan struct{}
	timer    *time.Timer
	timerMu  sync.Mutex
	stopOnce sync.Once
}

// NewWatcher creates a watcher for dir. debounce defaults to 100ms.
func NewWatcher(dir *Directory, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}

	return &Watcher{
		dir:      dir,
		watcher:  fw,
		debounce: debounce,
		done:     make(chan struct{}),
	}, nil
}

// Start watches the parent directory of the users file. The file itself is
// replaced by rename on every save, so watching it directly would lose the
// watch after the first write.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(filepath.Dir(w.dir.Path())); err != nil {
		return fmt.Errorf("failed to watch users file: %w", err)
	}

	go w.eventLoop()

	w.dir.logger.Info().Str("path", w.dir.Path()).Msg("Users file watcher started")
	return nil
}

// Stop stops watching
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.done)
	})

	w.timerMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.timerMu.Unlock()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (w *Watcher) eventLoop() {
	target := filepath.Clean(w.dir.Path())

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.dir.logger.Error().Err(err).Msg("Watcher error")

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) schedule() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.done:
			return
		default:
		}
		if err := w.dir.Reload(); err != nil {
			w.dir.logger.Warn().Err(err).Msg("Failed to reload users file")
		}
	})
}

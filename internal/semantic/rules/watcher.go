package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/seanchatmangpt/autonomic-cli/internal/logging"
)

// Watcher hot-reloads an Engine's schema from a .mg file on disk change.
// Grounded on the teacher's internal/core/mangle_watcher.go: watch a
// directory (fsnotify can't watch a single file reliably across editors'
// rename-and-replace save pattern), debounce rapid writes, then reload.
// Scoped to one schema file rather than a whole rule directory, since the
// engine here carries exactly one compiled program.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	engine   *Engine
	path     string
	debounce time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// WatchSchema starts watching path's parent directory and reloads engine's
// schema from path's contents whenever a write to it settles. The
// returned Watcher must be stopped with Stop to release the fsnotify
// handle.
func WatchSchema(engine *Engine, path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("rules: new watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("rules: watch %s: %w", dir, err)
	}

	w := &Watcher{
		watcher:  fw,
		engine:   engine,
		path:     filepath.Clean(path),
		debounce: 200 * time.Millisecond,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	var pending bool

	for {
		select {
		case <-w.stopCh:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			pending = true
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategorySemantic).Warn("rules watcher error", map[string]interface{}{"error": err.Error()})

		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		logging.Get(logging.CategorySemantic).Warn("rules watcher: read schema failed", map[string]interface{}{"path": w.path, "error": err.Error()})
		return
	}
	if err := w.engine.ReloadSchema(string(data)); err != nil {
		logging.Get(logging.CategorySemantic).Warn("rules watcher: reload schema failed", map[string]interface{}{"path": w.path, "error": err.Error()})
		return
	}
	logging.Get(logging.CategorySemantic).Info("rules schema hot-reloaded", map[string]interface{}{"path": w.path})
}

// Stop stops the watcher and blocks until its goroutine has exited.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.stopCh:
		return
	default:
		close(w.stopCh)
	}
	<-w.doneCh
	_ = w.watcher.Close()
}

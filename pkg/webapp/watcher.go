package webapp

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/umputun/uiprobe/pkg/widgets"
)

// debounce window for bursts of write events from editors that save in
// multiple steps.
const watchDebounce = 200 * time.Millisecond

// Watcher reloads widget fixtures when the fixtures file changes and tells
// connected pages to reload.
type Watcher struct {
	file      string
	manager   *Manager
	publisher *Publisher
	fsw       *fsnotify.Watcher
}

// NewWatcher creates a watcher on the fixtures file. the parent directory is
// watched because editors typically replace the file on save.
func NewWatcher(file string, manager *Manager, publisher *Publisher) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(file)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(file), err)
	}
	return &Watcher{file: file, manager: manager, publisher: publisher, fsw: fsw}, nil
}

// Run processes file events until the context is canceled. invalid fixture
// files are logged and skipped, the previous data stays active.
func (w *Watcher) Run(ctx context.Context) {
	defer func() { _ = w.fsw.Close() }()

	var timer *time.Timer
	pending := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.file) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			// debounce: restart the timer on every event in the burst
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})

		case <-pending:
			w.reload()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("[WARN] fixtures watcher: %v", err)
		}
	}
}

func (w *Watcher) reload() {
	fixtures, err := widgets.LoadFixturesFile(w.file)
	if err != nil {
		log.Printf("[WARN] reload fixtures %s: %v", w.file, err)
		return
	}
	w.manager.SetFixtures(fixtures)
	w.publisher.Reload("fixtures")
	log.Printf("[INFO] fixtures reloaded from %s", w.file)
}

package library

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors the library directory and coalesces document changes
// into rescan signals.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	dir       string
	debounce  time.Duration

	rescans chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewWatcher watches dir and its subdirectories for document changes.
// debounce sets how long the directory must stay quiet before a rescan is
// signalled.
func NewWatcher(dir string, debounce time.Duration) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		fsWatcher: fsWatcher,
		dir:       dir,
		debounce:  debounce,
		rescans:   make(chan struct{}, 1),
		done:      make(chan struct{}),
	}, nil
}

// Rescans signals once per quiet period after relevant changes. The channel
// holds one pending signal; a consumer that is mid-scan sees at most one
// more.
func (w *Watcher) Rescans() <-chan struct{} {
	return w.rescans
}

// Start registers the directory tree and begins the event loop.
func (w *Watcher) Start() error {
	abs, err := filepath.Abs(w.dir)
	if err != nil {
		return err
	}
	w.dir = abs
	if err := w.fsWatcher.Add(abs); err != nil {
		return err
	}
	// fsnotify does not recurse; register existing subdirectories.
	entries, err := os.ReadDir(abs)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			if err := w.fsWatcher.Add(filepath.Join(abs, entry.Name())); err != nil {
				return err
			}
		}
	}

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop shuts the watcher down and closes the rescan channel.
func (w *Watcher) Stop() error {
	close(w.done)
	w.wg.Wait()
	close(w.rescans)
	return w.fsWatcher.Close()
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-w.done:
			timer.Stop()
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			if pending && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(w.debounce)
			pending = true

		case _, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}

		case <-timer.C:
			pending = false
			select {
			case w.rescans <- struct{}{}:
			default:
			}
		}
	}
}

// relevant filters events down to document changes, and registers newly
// created subdirectories along the way.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return false
	}
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.fsWatcher.Add(event.Name) //nolint:errcheck
			return true
		}
	}
	_, ok := formatFor(name)
	return ok
}

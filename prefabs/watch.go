package prefabs

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports scene and script files whose contents changed. Saves that
// leave a file byte-identical are dropped.
type Watcher struct {
	watcher *fsnotify.Watcher
	Events  chan string
	Errors  chan error
	closeCh chan struct{}
	done    chan struct{}
	once    sync.Once
}

func NewWatcher(dirs ...string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	for _, dir := range dirs {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return nil, err
		}
	}

	watcher := &Watcher{
		watcher: w,
		Events:  make(chan string, 16),
		Errors:  make(chan error, 1),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go watcher.run()
	return watcher, nil
}

func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
		<-w.done
	})
	return err
}

func (w *Watcher) run() {
	defer func() {
		close(w.Events)
		close(w.Errors)
		close(w.done)
	}()

	changes := newChangeFilter(100 * time.Millisecond)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if !isSpecFile(event.Name) && !isScriptFile(event.Name) {
				continue
			}
			data, err := os.ReadFile(event.Name)
			if !changes.accept(event.Name, time.Now(), data, err) {
				continue
			}
			select {
			case w.Events <- event.Name:
			case <-w.closeCh:
				return
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.Errors <- err:
			default:
			}
		case <-w.closeCh:
			return
		}
	}
}

func isSpecFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func isScriptFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".tengo" || ext == ".lua"
}

// changeFilter drops bursts of events for one file and saves that leave the
// contents unchanged.
type changeFilter struct {
	window time.Duration
	last   map[string]time.Time
	hashes map[string]uint64
}

func newChangeFilter(window time.Duration) *changeFilter {
	return &changeFilter{
		window: window,
		last:   make(map[string]time.Time),
		hashes: make(map[string]uint64),
	}
}

func (f *changeFilter) accept(name string, now time.Time, data []byte, readErr error) bool {
	if t, ok := f.last[name]; ok && now.Sub(t) < f.window {
		return false
	}
	if readErr == nil {
		sum := Hash(data)
		if prev, ok := f.hashes[name]; ok && prev == sum {
			return false
		}
		f.hashes[name] = sum
	} else {
		delete(f.hashes, name)
	}
	f.last[name] = now
	return true
}

package payload

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Vanished reports an offered path that was removed or renamed while the
// drag was in progress.
type Vanished struct {
	Path string
	Op   fsnotify.Op
}

// Watcher observes the offered paths and reports the ones that disappear
// before the drop target fetched them. It never touches the drag session.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	offered   map[string]struct{}
	log       *slog.Logger

	events chan Vanished

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewWatcher creates a watcher for every path in the set. Directories are
// watched rather than files so that removal of the entry itself is seen.
func NewWatcher(set *PathSet, log *slog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	w := &Watcher{
		fsWatcher: fsWatcher,
		offered:   make(map[string]struct{}, set.Count()),
		log:       log,
		events:    make(chan Vanished, set.Count()),
		done:      make(chan struct{}),
	}

	dirs := make(map[string]struct{})
	for _, p := range set.Paths() {
		w.offered[p] = struct{}{}
		dirs[filepath.Dir(p)] = struct{}{}
	}
	for dir := range dirs {
		if err := fsWatcher.Add(dir); err != nil {
			fsWatcher.Close()
			return nil, err
		}
	}

	w.wg.Add(1)
	go w.eventLoop()

	return w, nil
}

// Events returns the channel of vanished paths. It is closed by Close.
func (w *Watcher) Events() <-chan Vanished {
	return w.events
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if _, ok := w.offered[filepath.Clean(event.Name)]; !ok {
				continue
			}
			w.log.Warn("offered path vanished during drag", "path", event.Name, "op", event.Op.String())
			select {
			case w.events <- Vanished{Path: event.Name, Op: event.Op}:
			default:
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.log.Debug("watcher error", "error", err)
		}
	}
}

// Close stops the watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fsWatcher.Close()
		w.wg.Wait()
		close(w.events)
	})
	return err
}

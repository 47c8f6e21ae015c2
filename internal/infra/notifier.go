package infra

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/tc_mon/internal/domain"
)

// skippedDirs are never watched; they hold caches, VCS data or environments.
var skippedDirs = map[string]bool{
	".git":          true,
	".hg":           true,
	".mypy_cache":   true,
	".pytest_cache": true,
	".tox":          true,
	".venv":         true,
	"venv":          true,
	"__pycache__":   true,
	"node_modules":  true,
}

// FSNotifier implements domain.ChangeNotifier with fsnotify.
// fsnotify is not recursive, so every directory of a folder tree is added
// and new directories are picked up as they are created.
type FSNotifier struct {
	watcher *fsnotify.Watcher
	events  chan domain.ChangeEvent
	logger  *zap.Logger

	mu      sync.Mutex
	dirs    map[string]bool
	quit    chan struct{}
	done    chan struct{}
	closeMu sync.Once
}

// NewFSNotifier starts an fsnotify watcher.
func NewFSNotifier(logger *zap.Logger) (*FSNotifier, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	n := &FSNotifier{
		watcher: w,
		events:  make(chan domain.ChangeEvent, 256),
		logger:  logger,
		dirs:    make(map[string]bool),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go n.loop()
	return n, nil
}

// Watch adds every directory below folder.
func (n *FSNotifier) Watch(folder domain.Folder) error {
	return n.addTree(folder.Path())
}

// Unwatch removes every watched directory below folder.
func (n *FSNotifier) Unwatch(folder domain.Folder) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	for dir := range n.dirs {
		if folder.Contains(dir) {
			_ = n.watcher.Remove(dir)
			delete(n.dirs, dir)
		}
	}
	return nil
}

// Events returns the event stream. It is closed by Close.
func (n *FSNotifier) Events() <-chan domain.ChangeEvent {
	return n.events
}

// Close stops the watcher and closes the event stream. Events nobody
// reads are discarded.
func (n *FSNotifier) Close() error {
	var err error
	n.closeMu.Do(func() {
		close(n.quit)
		err = n.watcher.Close()
		<-n.done
	})
	return err
}

// WatchFile watches a single file's directory, e.g. the config file.
func (n *FSNotifier) WatchFile(path string) error {
	return n.addDir(filepath.Dir(path))
}

func (n *FSNotifier) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, the root must be readable.
			if path == root {
				return err
			}
			return filepath.SkipDir
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && skippedDirs[d.Name()] {
			return filepath.SkipDir
		}
		return n.addDir(path)
	})
}

func (n *FSNotifier) addDir(dir string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.dirs[dir] {
		return nil
	}
	if err := n.watcher.Add(dir); err != nil {
		return err
	}
	n.dirs[dir] = true
	return nil
}

func (n *FSNotifier) loop() {
	defer close(n.done)
	defer close(n.events)

	for {
		select {
		case ev, ok := <-n.watcher.Events:
			if !ok {
				return
			}
			n.handle(ev)
		case err, ok := <-n.watcher.Errors:
			if !ok {
				return
			}
			n.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}

func (n *FSNotifier) handle(ev fsnotify.Event) {
	var kind domain.ChangeKind
	switch {
	case ev.Has(fsnotify.Create):
		kind = domain.ChangeCreated
		if isDir(ev.Name) && !skippedDirs[filepath.Base(ev.Name)] {
			if err := n.addTree(ev.Name); err != nil {
				n.logger.Debug("failed to watch new directory", zap.String("dir", ev.Name), zap.Error(err))
			}
		}
	case ev.Has(fsnotify.Write):
		kind = domain.ChangeSaved
	case ev.Has(fsnotify.Remove):
		kind = domain.ChangeDeleted
		n.forget(ev.Name)
	case ev.Has(fsnotify.Rename):
		kind = domain.ChangeRenamed
		n.forget(ev.Name)
	default:
		return
	}

	select {
	case n.events <- domain.ChangeEvent{Kind: kind, Path: ev.Name}:
	case <-n.quit:
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (n *FSNotifier) forget(dir string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.dirs, dir)
}

// Ensure FSNotifier implements domain.ChangeNotifier.
var _ domain.ChangeNotifier = (*FSNotifier)(nil)

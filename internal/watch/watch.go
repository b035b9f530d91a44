// Package watch reports debounced filesystem changes under a workspace.
package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period before a change is reported.
const DefaultDebounce = 500 * time.Millisecond

// Options configure Start.
type Options struct {
	Debounce time.Duration
	// Ignored reports whether a slash relative path should not be watched.
	Ignored  func(rel string) bool
	// MaxDepth bounds the depth of watched directories the same way the
	// scanner bounds listed entries. 0 means unlimited.
	MaxDepth int
	// MaxDirs caps the number of watched directories. 0 means unlimited.
	MaxDirs  int
	OnChange func()
	Logger   *zap.Logger
}

var errDirLimit = errors.New("watched directory limit reached")

// Watcher watches the directories of a tree and calls OnChange once per
// burst of activity.
type Watcher struct {
	root     string
	opts     Options
	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu    sync.Mutex
	paths map[string]struct{}
}

// Start registers the directories of root and begins watching in a
// background goroutine. The initial walk honors ctx.
func Start(ctx context.Context, root string, o Options) (*Watcher, error) {
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.Ignored == nil {
		o.Ignored = func(string) bool { return false }
	}
	if o.OnChange == nil {
		o.OnChange = func() {}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		root:    root,
		opts:    o,
		watcher: fw,
		done:    make(chan struct{}),
		paths:   map[string]struct{}{},
	}
	if err := w.addTree(ctx, root); err != nil {
		_ = fw.Close()
		return nil, err
	}

	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Root returns the watched directory.
func (w *Watcher) Root() string { return w.root }

// Stop ends the watch and waits for the goroutine to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.watcher.Close()
		w.wg.Wait()
	})
}

func (w *Watcher) run() {
	defer w.wg.Done()

	timer := time.NewTimer(w.opts.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if w.ignored(event.Name) {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				w.maybeWatchNewDir(event.Name)
			}
			timer.Reset(w.opts.Debounce)
		case <-timer.C:
			w.opts.OnChange()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.opts.Logger.Debug("watcher error", zap.String("root", w.root), zap.Error(err))
		}
	}
}

func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return false
	}
	return w.opts.Ignored(filepath.ToSlash(rel))
}

func (w *Watcher) maybeWatchNewDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.addTree(context.Background(), path); err != nil {
		w.opts.Logger.Debug("watch new directory failed", zap.String("path", path), zap.Error(err))
	}
}

// depth returns the number of path elements between the root and path.
func (w *Watcher) depth(path string) int {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(filepath.ToSlash(rel), "/") + 1
}

// watchable reports whether changes inside dir fall within MaxDepth.
func (w *Watcher) watchable(dir string) bool {
	return w.opts.MaxDepth <= 0 || w.depth(dir) < w.opts.MaxDepth
}

// addTree watches dir and every non-ignored directory below it, within the
// depth and directory bounds. Reaching MaxDirs is logged, not returned.
func (w *Watcher) addTree(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !w.watchable(dir) {
		return nil
	}
	if err := w.addDir(dir); err != nil {
		return w.limitOrErr(err)
	}
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, dir, func(path string, d os.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil || path == dir || !d.IsDir() {
			return nil
		}
		if w.ignored(path) || !w.watchable(path) {
			return filepath.SkipDir
		}
		return w.addDir(path)
	})
	return w.limitOrErr(err)
}

func (w *Watcher) limitOrErr(err error) error {
	if errors.Is(err, errDirLimit) {
		w.opts.Logger.Warn("watch directory limit reached", zap.String("root", w.root), zap.Int("max_dirs", w.opts.MaxDirs))
		return nil
	}
	return err
}

func (w *Watcher) addDir(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.paths[path]; ok {
		return nil
	}
	if w.opts.MaxDirs > 0 && len(w.paths) >= w.opts.MaxDirs {
		return errDirLimit
	}
	if err := w.watcher.Add(path); err != nil {
		w.opts.Logger.Debug("watcher add failed", zap.String("path", path), zap.Error(err))
		return nil
	}
	w.paths[path] = struct{}{}
	return nil
}

// Watched returns the number of watched directories.
func (w *Watcher) Watched() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.paths)
}

// Package watch rebuilds shaders when files below the shader root change.
//
// Events are debounced; a build runs on a single worker so builds never
// overlap, and changes arriving during a build schedule exactly one follow-up.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/spvbuild/internal/logfields"
)

// BuildFunc runs one build. Errors are reported by the callee.
type BuildFunc func(ctx context.Context)

// Options configures a Watcher.
type Options struct {
	// Root is the directory watched recursively.
	Root string
	// Debounce is the quiet period after the last event before a build starts.
	Debounce time.Duration
	// Ignore lists directories whose events never trigger a build, such as an
	// output root placed below Root.
	Ignore []string
	// Build is called for every settled burst of changes.
	Build BuildFunc
}

// Watcher drives rebuilds from filesystem events.
type Watcher struct {
	opts Options
	fsw  *fsnotify.Watcher
}

// New creates a watcher for opts.Root. The caller must call Run to start it.
func New(opts Options) (*Watcher, error) {
	if opts.Build == nil {
		return nil, fmt.Errorf("watch: build function required")
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	opts.Root = root
	for i, dir := range opts.Ignore {
		if abs, err := filepath.Abs(dir); err == nil {
			opts.Ignore[i] = abs
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	w := &Watcher{opts: opts, fsw: fsw}
	if err := w.addDirsRecursive(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run processes events until ctx is done. It returns after the running build
// (if any) has finished.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fsw.Close() }()

	requests := make(chan struct{}, 1)
	deb := newDebouncer(w.opts.Debounce, func() { enqueue(requests) })

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runWorker(ctx, requests, w.opts.Build)
	}()
	defer func() {
		deb.Stop()
		wg.Wait()
	}()

	slog.Info("Watching for shader changes", logfields.Path(w.opts.Root), slog.Duration("debounce", w.opts.Debounce))
	for {
		select {
		case <-ctx.Done():
			slog.Info("Stopping watcher")
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev, deb)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Watcher error", logfields.Error(err))
		}
	}
}

// handleEvent processes a filesystem event and triggers a rebuild if needed.
func (w *Watcher) handleEvent(ev fsnotify.Event, deb *debouncer) {
	if ev.Op == fsnotify.Chmod || shouldIgnoreEvent(ev.Name) || w.ignored(ev.Name) {
		return
	}
	if ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			_ = w.addDirsRecursive(ev.Name)
		}
	}
	slog.Debug("File change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
	deb.Trigger()
}

func (w *Watcher) ignored(path string) bool {
	for _, dir := range w.opts.Ignore {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *Watcher) addDirsRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && (strings.HasPrefix(d.Name(), ".") || w.ignored(path)) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			slog.Warn("Watch add failed", logfields.Path(path), logfields.Error(err))
		}
		return nil
	})
}

// runWorker runs build for every request until ctx is done. requests has a
// buffer of one, so any number of triggers during a build collapse into a
// single follow-up.
func runWorker(ctx context.Context, requests <-chan struct{}, build BuildFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-requests:
			if ctx.Err() != nil {
				return
			}
			build(ctx)
		}
	}
}

// enqueue requests a build without blocking.
func enqueue(requests chan<- struct{}) {
	select {
	case requests <- struct{}{}:
	default:
	}
}

// debouncer calls fire once the triggers have been quiet for delay.
type debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	fire    func()
	timer   *time.Timer
	stopped bool
}

func newDebouncer(delay time.Duration, fire func()) *debouncer {
	return &debouncer{delay: delay, fire: fire}
}

// Trigger restarts the quiet period.
func (d *debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fire)
}

// Stop cancels a pending fire and ignores later triggers.
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}

// shouldIgnoreEvent returns true for filesystem events that should not trigger rebuilds.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)

	// Ignore hidden files
	if strings.HasPrefix(base, ".") {
		return true
	}

	// Ignore editor temp/swap files
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasSuffix(base, ".tmp") ||
		strings.HasSuffix(base, "___jb_tmp___") ||
		strings.HasSuffix(base, "___jb_old___") ||
		base == "4913" ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}

	// Ignore common lock files
	return base == "Thumbs.db"
}

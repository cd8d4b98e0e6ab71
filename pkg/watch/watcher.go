// Package watch re-runs scans when fact units change on disk.
package watch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"

	"github.com/panbanda/deadwood/pkg/config"
)

// Watcher monitors fact units for changes and triggers a rescan once they
// settle. Changes that arrive within the debounce window are batched.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	config    *config.Config
	debounce  time.Duration
	patterns  []string
	root      string
	callback  func(changed []string)
	out       io.Writer
	mu        sync.Mutex
	pending   map[string]time.Time
	runMu     sync.Mutex
}

// NewWatcher creates a watcher over root for units matching patterns, which
// default to index.facts.
func NewWatcher(root string, cfg *config.Config, patterns []string, debounce time.Duration) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	if len(patterns) == 0 {
		patterns = cfg.Index.Facts
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		config:    cfg,
		debounce:  debounce,
		patterns:  patterns,
		root:      root,
		out:       os.Stdout,
		pending:   make(map[string]time.Time),
	}, nil
}

// SetCallback sets the function called with the changed units.
func (w *Watcher) SetCallback(cb func(changed []string)) {
	w.callback = cb
}

// SetOutput redirects status messages.
func (w *Watcher) SetOutput(out io.Writer) {
	w.out = out
}

// Start begins watching for changes. It returns when ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.root); err != nil {
		return err
	}

	color.New(color.FgCyan).Fprintf(w.out, "Watching %s for fact changes...\n", w.root)
	color.New(color.FgCyan).Fprintln(w.out, "Press Ctrl+C to stop")
	fmt.Fprintln(w.out)

	go w.processDebounced(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			color.New(color.FgRed).Fprintf(w.out, "Watch error: %v\n", err)
		}
	}
}

// addTree watches dir and every directory below it except the cache.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}
		if !d.IsDir() {
			return nil
		}
		if w.isCacheDir(path) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func (w *Watcher) isCacheDir(path string) bool {
	if w.config.Cache.Dir == "" {
		return false
	}
	cacheDir := w.config.Cache.Dir
	if !filepath.IsAbs(cacheDir) {
		cacheDir = filepath.Join(w.root, cacheDir)
	}
	return filepath.Clean(path) == filepath.Clean(cacheDir)
}

// handleEvent records a change to a fact unit.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.addTree(event.Name)
			return
		}
	}

	if !w.isFact(event.Name) {
		return
	}

	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

// isFact reports whether path is matched by the watched patterns and not
// excluded by index.exclude.
func (w *Watcher) isFact(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	if w.config.IsFactExcluded(rel) {
		return false
	}
	for _, pattern := range w.patterns {
		candidate := rel
		if filepath.IsAbs(pattern) {
			candidate = filepath.ToSlash(path)
		}
		pattern = filepath.ToSlash(filepath.Clean(pattern))
		if ok, _ := doublestar.Match(pattern, candidate); ok {
			return true
		}
	}
	return false
}

// processDebounced processes pending changes after the debounce period.
func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processPending()
		}
	}
}

// processPending fires one callback once every pending change has been
// stable for the debounce period.
func (w *Watcher) processPending() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.pending) == 0 {
		return
	}
	now := time.Now()
	for _, lastMod := range w.pending {
		if now.Sub(lastMod) < w.debounce {
			return
		}
	}

	changed := make([]string, 0, len(w.pending))
	for path := range w.pending {
		changed = append(changed, path)
	}
	slices.Sort(changed)
	clear(w.pending)

	if w.callback != nil {
		go w.runCallback(changed)
	}
}

// runCallback executes the callback. Rescans never overlap.
func (w *Watcher) runCallback(changed []string) {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	for _, path := range changed {
		relPath, err := filepath.Rel(w.root, path)
		if err != nil {
			relPath = path
		}
		color.New(color.FgYellow).Fprintf(w.out, "Changed: %s\n", relPath)
	}
	fmt.Fprintln(w.out, strings.Repeat("-", 40))

	w.callback(changed)

	fmt.Fprintln(w.out)
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.fsWatcher.Close()
}

// WatchedDirs returns the directories being watched.
func (w *Watcher) WatchedDirs() []string {
	return w.fsWatcher.WatchList()
}

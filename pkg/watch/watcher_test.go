package watch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/panbanda/deadwood/pkg/config"
)

func newTestWatcher(t *testing.T, root string, cfg *config.Config, debounce time.Duration) *Watcher {
	t.Helper()
	w, err := NewWatcher(root, cfg, nil, debounce)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	w.SetOutput(&bytes.Buffer{})
	t.Cleanup(func() { w.Stop() })
	return w
}

func TestNewWatcher(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := config.DefaultConfig()

	tests := []struct {
		name     string
		debounce time.Duration
		want     time.Duration
	}{
		{"default debounce", 0, 500 * time.Millisecond},
		{"custom debounce", time.Second, time.Second},
		{"negative debounce defaults", -time.Second, 500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWatcher(t, tmpDir, cfg, tt.debounce)

			if w.fsWatcher == nil {
				t.Error("fsWatcher should not be nil")
			}
			if w.debounce != tt.want {
				t.Errorf("debounce = %v, want %v", w.debounce, tt.want)
			}
			if !slices.Equal(w.patterns, cfg.Index.Facts) {
				t.Errorf("patterns = %v, want index.facts %v", w.patterns, cfg.Index.Facts)
			}
		})
	}
}

func TestWatcher_isFact(t *testing.T) {
	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Index.Facts = []string{"facts/**/*.json"}
	cfg.Index.Exclude = []string{"facts/generated/**"}
	w := newTestWatcher(t, root, cfg, 0)

	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(root, "facts", "App", "Model.json"), true},
		{filepath.Join(root, "facts", "main.json"), true},
		{filepath.Join(root, "facts", "generated", "X.json"), false},
		{filepath.Join(root, "facts", "notes.txt"), false},
		{filepath.Join(root, "other", "Model.json"), false},
	}
	for _, tt := range tests {
		if got := w.isFact(tt.path); got != tt.want {
			t.Errorf("isFact(%s) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestWatcher_handleEvent(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, root, config.DefaultConfig(), 0)
	fact := filepath.Join(root, ".deadwood", "facts", "a.json")

	tests := []struct {
		name    string
		event   fsnotify.Event
		pending bool
	}{
		{"write", fsnotify.Event{Name: fact, Op: fsnotify.Write}, true},
		{"remove", fsnotify.Event{Name: fact, Op: fsnotify.Remove}, true},
		{"chmod ignored", fsnotify.Event{Name: fact, Op: fsnotify.Chmod}, false},
		{"non fact ignored", fsnotify.Event{Name: filepath.Join(root, "README.md"), Op: fsnotify.Write}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w.mu.Lock()
			clear(w.pending)
			w.mu.Unlock()

			w.handleEvent(tt.event)

			w.mu.Lock()
			_, ok := w.pending[tt.event.Name]
			w.mu.Unlock()
			if ok != tt.pending {
				t.Errorf("pending = %v, want %v", ok, tt.pending)
			}
		})
	}
}

func TestWatcher_processPending_Batches(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, root, config.DefaultConfig(), 50*time.Millisecond)

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})
	w.SetCallback(func(changed []string) {
		mu.Lock()
		got = changed
		mu.Unlock()
		close(done)
	})

	a := filepath.Join(root, "a.json")
	b := filepath.Join(root, "b.json")
	w.mu.Lock()
	w.pending[b] = time.Now().Add(-time.Second)
	w.pending[a] = time.Now().Add(-time.Second)
	w.mu.Unlock()

	w.processPending()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback was not called")
	}

	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(got, []string{a, b}) {
		t.Errorf("changed = %v, want %v", got, []string{a, b})
	}
	if len(w.pending) != 0 {
		t.Error("pending should be cleared after processing")
	}
}

func TestWatcher_processPending_WaitsForQuiet(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, root, config.DefaultConfig(), time.Hour)

	var calls int32
	w.SetCallback(func([]string) { atomic.AddInt32(&calls, 1) })

	w.mu.Lock()
	w.pending[filepath.Join(root, "old.json")] = time.Now().Add(-2 * time.Hour)
	w.pending[filepath.Join(root, "new.json")] = time.Now()
	w.mu.Unlock()

	w.processPending()
	time.Sleep(50 * time.Millisecond)

	if atomic.LoadInt32(&calls) != 0 {
		t.Error("callback should wait until every change settles")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) != 2 {
		t.Errorf("pending = %d, want 2", len(w.pending))
	}
}

func TestWatcher_Start_Context(t *testing.T) {
	w := newTestWatcher(t, t.TempDir(), config.DefaultConfig(), 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Start(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Errorf("Start() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Error("Start() did not return after context cancellation")
	}
}

func TestWatcher_Start_SkipsCacheDir(t *testing.T) {
	root := t.TempDir()
	cfg := config.DefaultConfig()
	for _, dir := range []string{".deadwood/facts", ".deadwood/cache"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			t.Fatal(err)
		}
	}
	w := newTestWatcher(t, root, cfg, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)
	time.Sleep(100 * time.Millisecond)

	dirs := w.WatchedDirs()
	if !slices.Contains(dirs, filepath.Join(root, ".deadwood", "facts")) {
		t.Errorf("facts dir should be watched, got %v", dirs)
	}
	if slices.Contains(dirs, filepath.Join(root, ".deadwood", "cache")) {
		t.Errorf("cache dir should not be watched, got %v", dirs)
	}
}

func TestWatcher_Start_FactChange(t *testing.T) {
	root := t.TempDir()
	factsDir := filepath.Join(root, ".deadwood", "facts")
	if err := os.MkdirAll(factsDir, 0755); err != nil {
		t.Fatal(err)
	}
	w := newTestWatcher(t, root, config.DefaultConfig(), 50*time.Millisecond)

	changed := make(chan []string, 4)
	w.SetCallback(func(paths []string) { changed <- paths })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)
	time.Sleep(100 * time.Millisecond)

	fact := filepath.Join(factsDir, "Model.json")
	if err := os.WriteFile(fact, []byte(`{"file":"Model.swift","modules":["App"]}`), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	select {
	case paths := <-changed:
		if !slices.Contains(paths, fact) {
			t.Errorf("changed = %v, want it to contain %s", paths, fact)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callback should be called when a fact unit is written")
	}
}

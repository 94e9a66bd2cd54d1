package config_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/netsend/internal/config"
)

const watcherValidYAML = `
server:
  log_level: info
bridge:
  address: "127.0.0.1"
  port: "9123"
  offset: 0
`

const watcherUpdatedYAML = `
server:
  log_level: debug
bridge:
  address: "127.0.0.1"
  port: "9123"
  offset: 0.5
`

const watcherInvalidYAML = `
server:
  log_level: bananas
`

// writeFile writes content and pushes the mtime forward so that consecutive
// writes are always observed, regardless of filesystem timestamp resolution.
func writeFile(t *testing.T, path, content string, age time.Duration) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %q: %v", path, err)
	}
	mtime := time.Now().Add(age)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %q: %v", path, err)
	}
}

type changeRecorder struct {
	mu      sync.Mutex
	changes [][2]*config.Config
}

func (r *changeRecorder) onChange(old, new *config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, [2]*config.Config{old, new})
}

func (r *changeRecorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.changes)
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, watcherValidYAML, -time.Hour)

	w, err := config.NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if got := w.Current().Bridge.Port; got != "9123" {
		t.Errorf("port = %q, want 9123", got)
	}
}

func TestWatcher_InitialLoadInvalid(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, watcherInvalidYAML, -time.Hour)

	if _, err := config.NewWatcher(path, nil); err == nil {
		t.Fatal("expected error for invalid initial config, got nil")
	}
}

func TestWatcher_Check(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, watcherValidYAML, -time.Hour)

	rec := &changeRecorder{}
	w, err := config.NewWatcher(path, rec.onChange)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	// Touch without content change: no callback.
	writeFile(t, path, watcherValidYAML, -30*time.Minute)
	w.Check()
	if rec.len() != 0 {
		t.Fatalf("callback fired for identical content")
	}

	// Invalid content is rejected and the old config kept.
	writeFile(t, path, watcherInvalidYAML, -20*time.Minute)
	w.Check()
	if rec.len() != 0 || w.Current().Server.LogLevel != config.LogInfo {
		t.Fatalf("invalid config was applied")
	}

	writeFile(t, path, watcherUpdatedYAML, -10*time.Minute)
	w.Check()
	if rec.len() != 1 {
		t.Fatalf("callbacks = %d, want 1", rec.len())
	}
	old, new := rec.changes[0][0], rec.changes[0][1]
	d := config.Diff(old, new)
	if !d.OffsetChanged || d.NewOffset != 0.5 || !d.LogLevelChanged {
		t.Errorf("diff = %+v", d)
	}
	if w.Current() != new {
		t.Error("Current does not return the reloaded config")
	}

	reloads, rejected := w.Counts()
	if reloads != 1 || rejected != 1 {
		t.Errorf("Counts = %d, %d, want 1, 1", reloads, rejected)
	}
}

func TestWatcher_Run(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, watcherValidYAML, -time.Hour)

	rec := &changeRecorder{}
	w, err := config.NewWatcher(path, rec.onChange, config.WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	writeFile(t, path, watcherUpdatedYAML, 0)
	deadline := time.Now().Add(2 * time.Second)
	for rec.len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if err := <-done; err != nil {
		t.Errorf("Run = %v, want nil", err)
	}
	if rec.len() != 1 {
		t.Errorf("callbacks = %d, want 1", rec.len())
	}
}

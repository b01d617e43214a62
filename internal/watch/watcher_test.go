package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/fsgate/internal/sse"
	"github.com/starford/fsgate/internal/storage"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) PublishChange(kind, path, source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, kind+":"+path+":"+source)
}

func (r *recorder) has(want string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == want {
			return true
		}
	}
	return false
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func startWatcher(t *testing.T) (string, *recorder) {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	rec := &recorder{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Watch(ctx, root, 20*time.Millisecond, logger, rec)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	time.Sleep(100 * time.Millisecond)
	return root, rec
}

func TestWatcher_FileChange(t *testing.T) {
	root, rec := startWatcher(t)
	path := filepath.Join(root, "new.txt")

	_ = os.WriteFile(path, []byte("x"), 0o644)
	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return rec.has(sse.KindChanged + ":" + path + ":" + Source)
	}, "create not reported")

	_ = os.Remove(path)
	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return rec.has(sse.KindRemoved + ":" + path + ":" + Source)
	}, "remove not reported")
}

func TestWatcher_NewDirIsWatched(t *testing.T) {
	root, rec := startWatcher(t)
	dir := filepath.Join(root, "sub")

	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return rec.has(sse.KindChanged + ":" + dir + ":" + Source)
	}, "new dir not reported")

	inner := filepath.Join(dir, "inner.txt")
	_ = os.WriteFile(inner, []byte("x"), 0o644)
	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return rec.has(sse.KindChanged + ":" + inner + ":" + Source)
	}, "file in new dir not reported")
}

func TestWatcher_AtomicWriteReportsTargetOnly(t *testing.T) {
	root, rec := startWatcher(t)
	path := filepath.Join(root, "atomic.txt")

	if err := storage.NewFS().WriteFile(path, []byte("hello")); err != nil {
		t.Fatal(err)
	}
	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return rec.has(sse.KindChanged + ":" + path + ":" + Source)
	}, "atomic write not reported")

	for _, e := range rec.snapshot() {
		if strings.Contains(e, ".fsgate-tmp-") {
			t.Errorf("temp file leaked into events: %s", e)
		}
	}
}

func TestWatcher_MissingRoot(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "nope"), 0, logger, &recorder{})
	if err == nil {
		t.Fatal("expected error for missing root")
	}
}

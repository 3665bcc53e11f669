package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type harness struct {
	batches chan []string
	cancel  context.CancelFunc
	done    chan error
}

func startWatcher(t *testing.T, root string, opts ...Option) *harness {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	w, err := New(ctx, root, opts...)
	require.NoError(t, err)

	h := &harness{
		batches: make(chan []string, 16),
		cancel:  cancel,
		done:    make(chan error, 1),
	}
	go func() {
		h.done <- w.Run(ctx, func(_ context.Context, changed []string) {
			h.batches <- changed
		})
	}()
	return h
}

func (h *harness) stop(t *testing.T) {
	t.Helper()
	h.cancel()
	select {
	case err := <-h.done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func (h *harness) next(t *testing.T) []string {
	t.Helper()
	select {
	case batch := <-h.batches:
		return batch
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
		return nil
	}
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestWatcherReportsMarkdownChanges(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "skills"), 0o755))

	h := startWatcher(t, root, WithDebounce(50*time.Millisecond))

	write(t, filepath.Join(root, "notes.txt"), "ignored")
	write(t, filepath.Join(root, "skills", "SKILL.md"), "# Skill\n")

	batch := h.next(t)
	assert.Contains(t, batch, "skills/SKILL.md")
	assert.NotContains(t, batch, "notes.txt")

	h.stop(t)
}

func TestWatcherSkipsExcludedDirectories(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))

	h := startWatcher(t, root, WithDebounce(50*time.Millisecond))

	write(t, filepath.Join(root, ".git", "HEAD.md"), "ignored")
	write(t, filepath.Join(root, "a.md"), "# A\n")

	batch := h.next(t)
	assert.Equal(t, []string{"a.md"}, batch)

	h.stop(t)
}

func TestWatcherDebouncesRepeatedWrites(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	h := startWatcher(t, root, WithDebounce(200*time.Millisecond))

	path := filepath.Join(root, "a.md")
	for i := 0; i < 5; i++ {
		write(t, path, "# A\n")
	}

	assert.Equal(t, []string{"a.md"}, h.next(t))

	select {
	case batch := <-h.batches:
		t.Fatalf("unexpected second batch: %v", batch)
	case <-time.After(500 * time.Millisecond):
	}

	h.stop(t)
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	h := startWatcher(t, root, WithDebounce(50*time.Millisecond))

	require.NoError(t, os.Mkdir(filepath.Join(root, "agents"), 0o755))
	assert.Contains(t, h.next(t), "agents")

	write(t, filepath.Join(root, "agents", "reviewer.md"), "# Reviewer\n")
	assert.Contains(t, h.next(t), "agents/reviewer.md")

	h.stop(t)
}

func TestNewOptions(t *testing.T) {
	_, err := New(context.Background(), t.TempDir(), WithDebounce(-time.Second))
	assert.Error(t, err)

	_, err = New(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestDebouncerIgnoresSupersededTimers(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := newDebouncer(ctx, time.Hour)
	defer d.stop()

	d.add(Event{Path: "a.md", Op: fsnotify.Write})
	stale := firedEvent{event: Event{Path: "a.md", Op: fsnotify.Write}, generation: d.pending["a.md"].generation}

	d.add(Event{Path: "a.md", Op: fsnotify.Write})
	latest := firedEvent{event: Event{Path: "a.md", Op: fsnotify.Write}, generation: d.pending["a.md"].generation}
	require.NotEqual(t, stale.generation, latest.generation)

	assert.False(t, d.settle(stale))
	assert.Contains(t, d.pending, "a.md")

	assert.True(t, d.settle(latest))
	assert.NotContains(t, d.pending, "a.md")

	assert.False(t, d.settle(latest))
}

func TestFilterKeepsOperation(t *testing.T) {
	root := t.TempDir()
	w := &Watcher{root: root, include: []string{"**/*.md"}, exclude: []string{"**/.git/**"}}

	tests := []struct {
		name     string
		event    fsnotify.Event
		expected Event
		relevant bool
	}{
		{
			name:     "write",
			event:    fsnotify.Event{Name: filepath.Join(root, "skills", "a.md"), Op: fsnotify.Write},
			expected: Event{Path: "skills/a.md", Op: fsnotify.Write},
			relevant: true,
		},
		{
			name:     "remove",
			event:    fsnotify.Event{Name: filepath.Join(root, "a.md"), Op: fsnotify.Remove},
			expected: Event{Path: "a.md", Op: fsnotify.Remove},
			relevant: true,
		},
		{
			name:  "chmod",
			event: fsnotify.Event{Name: filepath.Join(root, "a.md"), Op: fsnotify.Chmod},
		},
		{
			name:  "not markdown",
			event: fsnotify.Event{Name: filepath.Join(root, "a.txt"), Op: fsnotify.Write},
		},
		{
			name:  "excluded",
			event: fsnotify.Event{Name: filepath.Join(root, ".git", "a.md"), Op: fsnotify.Write},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, relevant := w.filter(context.Background(), tt.event)
			assert.Equal(t, tt.relevant, relevant)
			assert.Equal(t, tt.expected, event)
		})
	}
}

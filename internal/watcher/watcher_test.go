package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collector records callback invocations.
type collector struct {
	mu    sync.Mutex
	paths []string
}

func (c *collector) add(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths = append(c.paths, path)
}

func (c *collector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.paths))
	copy(out, c.paths)
	return out
}

func (c *collector) waitFor(t *testing.T, want int) []string {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		if got := c.snapshot(); len(got) >= want {
			return got
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d callback(s), got %v", want, c.snapshot())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestWatcher_FiresOnWrite(t *testing.T) {
	dir := t.TempDir()
	changed := &collector{}

	w := New([]string{dir}, []string{".txt"}, changed.add, nil, WithDebounce(30*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0600))

	got := changed.waitFor(t, 1)
	assert.Equal(t, path, got[0])
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	changed := &collector{}

	w := New([]string{dir}, nil, changed.add, nil, WithDebounce(100*time.Millisecond))
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	path := filepath.Join(dir, "doc.md")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("rev"), 0600))
		time.Sleep(10 * time.Millisecond)
	}

	changed.waitFor(t, 1)
	// The quiet period collapses the burst into one callback.
	time.Sleep(200 * time.Millisecond)
	assert.Len(t, changed.snapshot(), 1)
}

func TestWatcher_ExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	changed := &collector{}

	w := New([]string{dir}, []string{"txt"}, changed.add, nil, WithDebounce(20*time.Millisecond))
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.bin"), []byte{0}, 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "take.txt"), []byte("x"), 0600))

	got := changed.waitFor(t, 1)
	assert.Equal(t, filepath.Join(dir, "take.txt"), got[0])
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, changed.snapshot(), 1, "non-matching extension is ignored")
}

func TestWatcher_RemoveCallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))

	removed := &collector{}
	w := New([]string{dir}, []string{".txt"}, nil, removed.add, WithDebounce(20*time.Millisecond))
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.Remove(path))

	got := removed.waitFor(t, 1)
	assert.Equal(t, path, got[0])
}

func TestWatcher_SyncExisting(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0600))

	changed := &collector{}
	w := New([]string{dir}, []string{".txt"}, changed.add, nil)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	w.SyncExisting()
	got := changed.waitFor(t, 2)
	assert.Len(t, got, 2)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w := New([]string{t.TempDir()}, nil, nil, nil)
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
}

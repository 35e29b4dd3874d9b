package watch

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

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) handle(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, filepath.Base(path))
	return nil
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func TestInboxHandlesSettledAudio(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "early.wav"), []byte("x"), 0o644))

	rec := &recorder{}
	w := &Inbox{Dir: dir, Debounce: 50 * time.Millisecond, Handle: rec.handle}
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()

	assert.Eventually(t, func() bool { return len(rec.seen()) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "late.mp3"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".partial.wav"), []byte("x"), 0o644))

	assert.Eventually(t, func() bool { return len(rec.seen()) == 2 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)

	cancel()
	require.NoError(t, <-errc)
	assert.Equal(t, []string{"early.wav", "late.mp3"}, rec.seen())
}

func TestAccept(t *testing.T) {
	assert.True(t, accept("/in/a.WAV"))
	assert.True(t, accept("/in/b.m4a"))
	assert.False(t, accept("/in/c.txt"))
	assert.False(t, accept("/in/.d.wav"))
}

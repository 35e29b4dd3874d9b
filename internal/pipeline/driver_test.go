package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjzar/tubescribe/internal/audio"
	"github.com/sjzar/tubescribe/internal/chunkstore"
	"github.com/sjzar/tubescribe/internal/errors"
	"github.com/sjzar/tubescribe/internal/source"
	"github.com/sjzar/tubescribe/internal/speech"
	"github.com/sjzar/tubescribe/pkg/util"
)

const testRate = 1000

// countingBackend returns "<prefix><index>" and records which chunks it saw.
type countingBackend struct {
	prefix string
	failAt int // -1 never fails
	err    error

	mu    sync.Mutex
	calls []int
	paths []string
}

func newBackend(prefix string) *countingBackend {
	return &countingBackend{prefix: prefix, failAt: -1}
}

func (b *countingBackend) Name() string { return "counting" }

func (b *countingBackend) Transcribe(ctx context.Context, clip speech.Clip) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, clip.Index)
	b.paths = append(b.paths, clip.Path)
	if clip.Index == b.failAt {
		if b.err != nil {
			return "", b.err
		}
		return "", fmt.Errorf("quota exceeded")
	}
	return fmt.Sprintf("%s%d", b.prefix, clip.Index), nil
}

func (b *countingBackend) Close() error { return nil }

func (b *countingBackend) Calls() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := append([]int(nil), b.calls...)
	sort.Ints(out)
	return out
}

type fixture struct {
	dir   string
	input string
	store *chunkstore.FileStore
}

func newFixture(t *testing.T, durationMS int64) *fixture {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(t.TempDir(), "talk.wav")
	f, err := os.Create(input)
	require.NoError(t, err)
	require.NoError(t, audio.Silence(durationMS, testRate).WriteWAV(f))
	require.NoError(t, f.Close())
	return &fixture{dir: dir, input: input, store: chunkstore.NewFileStore(dir)}
}

func (fx *fixture) driver(b speech.Backend) *Driver {
	return &Driver{Store: fx.store, Backend: b, Provider: source.Local{}, WorkDir: fx.dir}
}

func (fx *fixture) job(t *testing.T, mod func(*Job)) Job {
	t.Helper()
	j := Job{Source: fx.input, BaseName: "talk", ChunkLength: 60 * time.Second}
	if mod != nil {
		mod(&j)
	}
	job, err := NewJob(j)
	require.NoError(t, err)
	return job
}

func TestRunTranscribesEveryChunk(t *testing.T) {
	fx := newFixture(t, 150000)
	b := newBackend("t")
	job := fx.job(t, nil)

	res, err := fx.driver(b).Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, "t0\nt1\nt2", res.Transcript)
	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, 3, res.Transcribed)
	assert.False(t, res.Reused)
	assert.Equal(t, []int{0, 1, 2}, b.Calls())

	data, err := os.ReadFile(filepath.Join(fx.dir, "talk", "talk.txt"))
	require.NoError(t, err)
	assert.Equal(t, "t0\nt1\nt2", string(data))

	// Every chunk was handed to the backend as a WAV file, removed afterwards.
	for _, p := range b.paths {
		assert.NotEmpty(t, p)
		assert.False(t, util.FileExists(p))
	}
	_, err = os.Stat(fx.store.Dir("talk"))
	assert.True(t, os.IsNotExist(err), "chunk directory should be removed")
}

func TestRunReusesFinalTranscript(t *testing.T) {
	fx := newFixture(t, 150000)
	job := fx.job(t, nil)
	_, err := fx.driver(newBackend("t")).Run(context.Background(), job)
	require.NoError(t, err)

	b := newBackend("x")
	res, err := fx.driver(b).Run(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, res.Reused)
	assert.Equal(t, "t0\nt1\nt2", res.Transcript)
	assert.Empty(t, b.Calls())

	// Force bypasses both the transcript and the cache.
	forced := fx.job(t, func(j *Job) { j.Force = true })
	res, err = fx.driver(b).Run(context.Background(), forced)
	require.NoError(t, err)
	assert.Equal(t, "x0\nx1\nx2", res.Transcript)
	assert.Equal(t, []int{0, 1, 2}, b.Calls())
}

func TestRunResumesAfterFailure(t *testing.T) {
	fx := newFixture(t, 240000)
	job := fx.job(t, nil)

	failing := newBackend("t")
	failing.failAt = 2
	_, err := fx.driver(failing).Run(context.Background(), job)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTranscription))
	assert.Equal(t, []int{0, 1, 2}, failing.Calls())

	keys, err := fx.store.ListKeys("talk", job.Layout())
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.False(t, util.FileExists(filepath.Join(fx.dir, "talk", "talk.txt")))

	b := newBackend("t")
	res, err := fx.driver(b).Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, b.Calls())
	assert.Equal(t, 2, res.Cached)

	clean := newFixture(t, 240000)
	want, err := clean.driver(newBackend("t")).Run(context.Background(), clean.job(t, nil))
	require.NoError(t, err)
	assert.Equal(t, want.Transcript, res.Transcript)
}

func TestRunRestartsAtFirstGap(t *testing.T) {
	fx := newFixture(t, 240000)
	job := fx.job(t, nil)
	for _, i := range []int{0, 1, 3} {
		require.NoError(t, fx.store.Write(job.Key(i), fmt.Sprintf("c%d", i)))
	}

	b := newBackend("t")
	res, err := fx.driver(b).Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, b.Calls())
	assert.Equal(t, "c0\nc1\nt2\nt3", res.Transcript)
}

func TestRunMissingFirstChunkRestartsAtZero(t *testing.T) {
	fx := newFixture(t, 150000)
	job := fx.job(t, nil)
	require.NoError(t, fx.store.Write(job.Key(1), "hello "))

	b := newBackend("t")
	res, err := fx.driver(b).Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, b.Calls())
	assert.Equal(t, "t0\nt1\nt2", res.Transcript)
}

func TestRunDiscardsStaleLayout(t *testing.T) {
	fx := newFixture(t, 120000)
	old := fx.job(t, func(j *Job) { j.ChunkLength = 30 * time.Second })
	for i := 0; i < 4; i++ {
		require.NoError(t, fx.store.Write(old.Key(i), "old"))
	}

	job := fx.job(t, nil)
	b := newBackend("t")
	res, err := fx.driver(b).Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, b.Calls())
	assert.Equal(t, "t0\nt1", res.Transcript)
	assert.NotContains(t, res.Transcript, "old")
}

func TestRunDeterministic(t *testing.T) {
	var outs []string
	for i := 0; i < 2; i++ {
		fx := newFixture(t, 90000)
		res, err := fx.driver(newBackend("t")).Run(context.Background(), fx.job(t, nil))
		require.NoError(t, err)
		outs = append(outs, res.Transcript)
	}
	assert.Equal(t, outs[0], outs[1])
}

func TestRunBackendSubstitution(t *testing.T) {
	fx := newFixture(t, 90000)
	job := fx.job(t, nil)

	failing := newBackend("remote-")
	failing.failAt = 1
	_, err := fx.driver(failing).Run(context.Background(), job)
	require.Error(t, err)

	// Cached text is backend-agnostic: a different backend picks up at chunk 1.
	local := newBackend("local-")
	res, err := fx.driver(local).Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, "remote-0\nlocal-1", res.Transcript)
}

func TestRunZeroDuration(t *testing.T) {
	fx := newFixture(t, 5000)
	job := fx.job(t, func(j *Job) { j.Start = 10 * time.Second })

	b := newBackend("t")
	_, err := fx.driver(b).Run(context.Background(), job)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInput))
	assert.Empty(t, b.Calls())
}

func TestRunTrimWindow(t *testing.T) {
	fx := newFixture(t, 300000)
	job := fx.job(t, func(j *Job) {
		j.Start = 60 * time.Second
		j.End = 150 * time.Second
	})
	b := newBackend("t")
	res, err := fx.driver(b).Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Chunks)
	assert.Equal(t, "t0\nt1", res.Transcript)
}

func TestRunMissingInput(t *testing.T) {
	fx := newFixture(t, 1000)
	job := fx.job(t, func(j *Job) { j.Source = filepath.Join(fx.dir, "nope.wav") })
	_, err := fx.driver(newBackend("t")).Run(context.Background(), job)
	assert.True(t, errors.Is(err, errors.ErrInput))
}

func TestRunUnavailableBackend(t *testing.T) {
	fx := newFixture(t, 90000)
	job := fx.job(t, nil)
	b := newBackend("t")
	b.failAt = 0
	b.err = errors.Unavailable("local", fmt.Errorf("not compiled"))

	_, err := fx.driver(b).Run(context.Background(), job)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnavailableBackend))
	keys, err := fx.store.ListKeys("talk", job.Layout())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestRunParallelWorkers(t *testing.T) {
	fx := newFixture(t, 330000)
	b := newBackend("t")
	d := fx.driver(b)
	d.Workers = 4

	res, err := d.Run(context.Background(), fx.job(t, nil))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, b.Calls())
	assert.Equal(t, "t0\nt1\nt2\nt3\nt4\nt5", res.Transcript)
}

func TestRunWithMemStore(t *testing.T) {
	fx := newFixture(t, 90000)
	b := newBackend("t")
	d := fx.driver(b)
	d.Store = chunkstore.NewMemStore()

	res, err := d.Run(context.Background(), fx.job(t, nil))
	require.NoError(t, err)
	assert.Equal(t, "t0\nt1", res.Transcript)
	assert.Equal(t, []string{"", ""}, b.paths)
}

func TestObservers(t *testing.T) {
	fx := newFixture(t, 90000)
	job := fx.job(t, nil)
	require.NoError(t, fx.store.Write(job.Key(0), "cached"))

	var out bytes.Buffer
	var mu sync.Mutex
	var states []State
	var events []ChunkEvent
	d := fx.driver(newBackend("t"))
	d.Observers = []Observer{
		NewConsoleObserver(&out),
		ObserverFuncs{
			OnState: func(_ Job, s State) {
				mu.Lock()
				states = append(states, s)
				mu.Unlock()
			},
			OnChunk: func(_ Job, ev ChunkEvent) {
				mu.Lock()
				events = append(events, ev)
				mu.Unlock()
			},
		},
	}

	_, err := d.Run(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, "Chunk 1 transcript:\nt1\n------------------------\n", out.String())
	require.Len(t, events, 2)
	assert.True(t, events[0].Cached)
	assert.Equal(t, 1, events[1].Index)
	assert.Equal(t, int64(60000), events[1].StartMS)
	assert.Equal(t, int64(90000), events[1].EndMS)
	assert.Equal(t, StateInit, states[0])
	assert.Equal(t, StateDone, states[len(states)-1])
	assert.Contains(t, states, StateCached)
	assert.Contains(t, states, StateTranscribing)
	assert.Contains(t, states, StateReassembling)
}

func TestObserverSeesFailure(t *testing.T) {
	fx := newFixture(t, 1000)
	var last State
	d := fx.driver(newBackend("t"))
	d.Observers = []Observer{ObserverFuncs{OnState: func(_ Job, s State) { last = s }}}
	_, err := d.Run(context.Background(), fx.job(t, func(j *Job) { j.Source = "/nonexistent/a.wav" }))
	require.Error(t, err)
	assert.Equal(t, StateFailed, last)
}

// vanishingStore deletes one record right after reporting it present, as an
// outside cleanup racing the resume scan would.
type vanishingStore struct {
	*chunkstore.FileStore
	index int
	once  sync.Once
}

func (s *vanishingStore) Exists(key chunkstore.Key) (bool, error) {
	ok, err := s.FileStore.Exists(key)
	if ok && key.Index == s.index {
		s.once.Do(func() { _ = s.FileStore.Delete(key) })
	}
	return ok, err
}

func TestRunRecordDeletedAfterScan(t *testing.T) {
	fx := newFixture(t, 150000)
	job := fx.job(t, nil)
	require.NoError(t, fx.store.Write(job.Key(0), "c0"))
	require.NoError(t, fx.store.Write(job.Key(1), "c1"))

	b := newBackend("t")
	d := fx.driver(b)
	d.Store = &vanishingStore{FileStore: fx.store, index: 1}

	res, err := d.Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, b.Calls())
	assert.Equal(t, "c0\nt1\nt2", res.Transcript)
	assert.Equal(t, 1, res.Cached)
	assert.Equal(t, 2, res.Transcribed)
}

// gatedBackend holds every transcription until release is closed.
type gatedBackend struct {
	entered chan int
	release chan struct{}

	mu   sync.Mutex
	seen map[int]int
}

func (b *gatedBackend) Name() string { return "gated" }

func (b *gatedBackend) Transcribe(ctx context.Context, clip speech.Clip) (string, error) {
	b.mu.Lock()
	b.seen[clip.Index]++
	b.mu.Unlock()
	b.entered <- clip.Index
	select {
	case <-b.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return fmt.Sprintf("g%d", clip.Index), nil
}

func (b *gatedBackend) Close() error { return nil }

func TestConcurrentRunsTranscribeEachChunkOnce(t *testing.T) {
	fx := newFixture(t, 150000)
	job := fx.job(t, nil)
	b := &gatedBackend{entered: make(chan int, 16), release: make(chan struct{}), seen: map[int]int{}}
	d := fx.driver(b)

	results := make([]*Result, 2)
	var wg sync.WaitGroup
	run := func(n int) {
		defer wg.Done()
		res, err := d.Run(context.Background(), job)
		if assert.NoError(t, err) {
			results[n] = res
		}
	}
	wg.Add(2)
	go run(0)
	assert.Equal(t, 0, <-b.entered)
	go run(1)
	close(b.release)
	wg.Wait()

	assert.Equal(t, map[int]int{0: 1, 1: 1, 2: 1}, b.seen)
	for _, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, "g0\ng1\ng2", res.Transcript)
	}
}

func TestRunsOnOneBaseNameTakeTurns(t *testing.T) {
	fx := newFixture(t, 120000)
	b := newBackend("t")
	d := fx.driver(b)
	d.Workers = 2

	var wg sync.WaitGroup
	for _, chunk := range []time.Duration{60 * time.Second, 40 * time.Second} {
		job := fx.job(t, func(j *Job) { j.ChunkLength = chunk; j.Force = true })
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := d.Run(context.Background(), job)
			if assert.NoError(t, err) {
				assert.Equal(t, int(120000/chunk.Milliseconds()), res.Chunks)
			}
		}()
	}
	wg.Wait()
	assert.Len(t, b.Calls(), 5)
}

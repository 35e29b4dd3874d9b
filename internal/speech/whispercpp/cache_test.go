package whispercpp

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	path   string
	closed atomic.Bool
}

func (m *fakeModel) Close() error {
	m.closed.Store(true)
	return nil
}

func TestModelCacheLoadsOnce(t *testing.T) {
	var loads atomic.Int32
	cache := NewModelCache(func(path string) (*fakeModel, error) {
		loads.Add(1)
		return &fakeModel{path: path}, nil
	})

	var wg sync.WaitGroup
	models := make([]*fakeModel, 16)
	for i := range models {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := cache.Get("/models/ggml-small.bin")
			assert.NoError(t, err)
			models[i] = m
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
	for _, m := range models {
		assert.Same(t, models[0], m)
	}

	_, err := cache.Get("/models/ggml-base.bin")
	require.NoError(t, err)
	assert.Equal(t, int32(2), loads.Load())
	assert.Equal(t, 2, cache.Loaded())

	require.NoError(t, cache.Close())
	assert.True(t, models[0].closed.Load())
	assert.Equal(t, 0, cache.Loaded())
}

func TestModelCacheRetriesFailedLoad(t *testing.T) {
	fail := true
	cache := NewModelCache(func(path string) (*fakeModel, error) {
		if fail {
			return nil, errors.New("no such file")
		}
		return &fakeModel{path: path}, nil
	})

	_, err := cache.Get("m.bin")
	require.Error(t, err)
	assert.Equal(t, 0, cache.Loaded())

	fail = false
	m, err := cache.Get("m.bin")
	require.NoError(t, err)
	assert.Equal(t, "m.bin", m.path)
}

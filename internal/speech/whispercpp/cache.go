package whispercpp

import (
	"errors"
	"io"
	"sync"
)

// ModelCache loads each model file at most once per process and hands the
// same read-only instance to every caller.
type ModelCache[M io.Closer] struct {
	load func(path string) (M, error)

	mu      sync.Mutex
	entries map[string]*cacheEntry[M]
}

type cacheEntry[M io.Closer] struct {
	once  sync.Once
	model M
	err   error
}

func NewModelCache[M io.Closer](load func(path string) (M, error)) *ModelCache[M] {
	return &ModelCache[M]{load: load, entries: make(map[string]*cacheEntry[M])}
}

// Get returns the model stored at path, loading it on first use. A failed
// load is not cached so a later call can retry.
func (c *ModelCache[M]) Get(path string) (M, error) {
	c.mu.Lock()
	e, ok := c.entries[path]
	if !ok {
		e = &cacheEntry[M]{}
		c.entries[path] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		e.model, e.err = c.load(path)
	})
	if e.err != nil {
		c.mu.Lock()
		if c.entries[path] == e {
			delete(c.entries, path)
		}
		c.mu.Unlock()
	}
	return e.model, e.err
}

// Loaded reports how many models are resident.
func (c *ModelCache[M]) Loaded() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close releases every resident model.
func (c *ModelCache[M]) Close() error {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[string]*cacheEntry[M])
	c.mu.Unlock()

	var errs []error
	for _, e := range entries {
		if e.err == nil && any(e.model) != nil {
			if err := e.model.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

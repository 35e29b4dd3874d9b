// Package chunkstore persists per-segment transcripts so an interrupted job
// can resume from the last contiguous success.
package chunkstore

import (
	"sort"
	"strings"
	"sync"

	"github.com/sjzar/tubescribe/internal/audio"
	"github.com/sjzar/tubescribe/internal/errors"
)

// Store maps chunk keys to cached transcript text.
type Store interface {
	Exists(key Key) (bool, error)
	// Read returns errors.ErrNotFound when the record is absent.
	Read(key Key) (string, error)
	// Write replaces the record atomically. Writes to distinct keys may run
	// concurrently.
	Write(key Key, text string) error
	// Delete is a no-op when the record is absent.
	Delete(key Key) error
	// ListKeys returns the records of base cached under layout, ordered by index.
	ListKeys(base, layout string) ([]Key, error)
}

// MemStore is an in-memory Store.
type MemStore struct {
	mu      sync.RWMutex
	records map[Key]string
}

func NewMemStore() *MemStore {
	return &MemStore{records: make(map[Key]string)}
}

func (m *MemStore) Exists(key Key) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.records[key]
	return ok, nil
}

func (m *MemStore) Read(key Key) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	text, ok := m.records[key]
	if !ok {
		return "", errors.NotFound("chunk " + key.String())
	}
	return text, nil
}

func (m *MemStore) Write(key Key, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key] = text
	return nil
}

func (m *MemStore) Delete(key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

func (m *MemStore) ListKeys(base, layout string) ([]Key, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]Key, 0)
	for k := range m.records {
		if k.Base == base && k.Layout == layout {
			keys = append(keys, k)
		}
	}
	sortKeys(keys)
	return keys, nil
}

// StaleKeys returns records of base cached under any layout other than layout.
func (m *MemStore) StaleKeys(base, layout string) ([]Key, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]Key, 0)
	for k := range m.records {
		if k.Base == base && k.Layout != layout {
			keys = append(keys, k)
		}
	}
	sortKeys(keys)
	return keys, nil
}

// Purge drops every record of base.
func (m *MemStore) Purge(base string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.records {
		if k.Base == base {
			delete(m.records, k)
		}
	}
	return nil
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Layout != keys[j].Layout {
			return strings.Compare(keys[i].Layout, keys[j].Layout) < 0
		}
		return keys[i].Index < keys[j].Index
	})
}

// JobStore is a Store that also manages a job's transient chunk audio and
// whole-job cleanup.
type JobStore interface {
	Store
	StaleKeys(base, layout string) ([]Key, error)
	// Purge removes every chunk artifact of base, whatever its layout.
	Purge(base string) error
	// WriteAudio materializes the chunk audio and returns its path, or "" when
	// the store keeps no audio files.
	WriteAudio(key Key, buf *audio.Buffer) (string, error)
	DeleteAudio(key Key) error
}

func (m *MemStore) WriteAudio(Key, *audio.Buffer) (string, error) { return "", nil }

func (m *MemStore) DeleteAudio(Key) error { return nil }

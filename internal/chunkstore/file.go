package chunkstore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/sjzar/tubescribe/internal/audio"
	"github.com/sjzar/tubescribe/internal/errors"
	"github.com/sjzar/tubescribe/pkg/util"
)

// ChunkDirName is the per-job subdirectory holding chunk artifacts.
const ChunkDirName = "chunks"

// FileStore keeps chunk records under <root>/<base>/chunks.
type FileStore struct {
	root string
}

func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

// Dir returns the chunk directory of base.
func (s *FileStore) Dir(base string) string {
	return filepath.Join(s.root, base, ChunkDirName)
}

func (s *FileStore) textPath(key Key) string {
	return filepath.Join(s.Dir(key.Base), key.TextName())
}

// AudioPath returns where the chunk's transient audio lives.
func (s *FileStore) AudioPath(key Key) string {
	return filepath.Join(s.Dir(key.Base), key.AudioName())
}

func (s *FileStore) Exists(key Key) (bool, error) {
	_, err := os.Stat(s.textPath(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat chunk %s: %w", key, err)
}

func (s *FileStore) Read(key Key) (string, error) {
	data, err := os.ReadFile(s.textPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NotFound("chunk " + key.String())
		}
		return "", fmt.Errorf("read chunk %s: %w", key, err)
	}
	return string(data), nil
}

func (s *FileStore) Write(key Key, text string) error {
	if err := util.WriteFileAtomic(s.textPath(key), []byte(text), 0o644); err != nil {
		return fmt.Errorf("write chunk %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) Delete(key Key) error {
	return removeQuiet(s.textPath(key))
}

func (s *FileStore) ListKeys(base, layout string) ([]Key, error) {
	return s.scan(base, func(k Key, ext string) bool {
		return ext == "txt" && k.Layout == layout
	})
}

func (s *FileStore) StaleKeys(base, layout string) ([]Key, error) {
	return s.scan(base, func(k Key, ext string) bool {
		return ext == "txt" && k.Layout != layout
	})
}

func (s *FileStore) WriteAudio(key Key, buf *audio.Buffer) (string, error) {
	path := s.AudioPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create chunk dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+key.AudioName()+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create chunk audio: %w", err)
	}
	tmpPath := tmp.Name()
	if err := buf.WriteWAV(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("export chunk %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close chunk audio: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("rename chunk audio: %w", err)
	}
	return path, nil
}

func (s *FileStore) DeleteAudio(key Key) error {
	return removeQuiet(s.AudioPath(key))
}

func (s *FileStore) Purge(base string) error {
	keys, err := s.scan(base, func(Key, string) bool { return true })
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := removeQuiet(s.textPath(k)); err != nil {
			return err
		}
		if err := removeQuiet(s.AudioPath(k)); err != nil {
			return err
		}
	}
	// The directory only goes away when nothing foreign is left in it.
	if err := os.Remove(s.Dir(base)); err != nil && !os.IsNotExist(err) {
		log.Debug().Err(err).Str("dir", s.Dir(base)).Msg("chunk dir kept")
	}
	return nil
}

func (s *FileStore) scan(base string, keep func(Key, string) bool) ([]Key, error) {
	entries, err := os.ReadDir(s.Dir(base))
	if err != nil {
		if os.IsNotExist(err) {
			return []Key{}, nil
		}
		return nil, fmt.Errorf("list chunks of %s: %w", base, err)
	}
	re := chunkPattern(base)
	seen := make(map[Key]bool)
	keys := make([]Key, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		k, ext, ok := parseName(re, base, e.Name())
		if !ok || seen[k] || !keep(k, ext) {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys, nil
}

func removeQuiet(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Package watch transcribes audio files as they land in an inbox directory.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/sjzar/tubescribe/internal/audio"
)

// HandleFunc processes one settled audio file.
type HandleFunc func(ctx context.Context, path string) error

// Inbox watches Dir and hands every supported audio file to Handle once it
// has stopped changing for Debounce. Files are handled one at a time.
type Inbox struct {
	Dir      string
	Debounce time.Duration
	Handle   HandleFunc

	mu      sync.Mutex
	timers  map[string]*time.Timer
	handled map[string]time.Time
}

// Run blocks until ctx is done or the watcher fails. Files already present
// when Run starts are handled first.
func (w *Inbox) Run(ctx context.Context) error {
	if w.Debounce <= 0 {
		w.Debounce = 2 * time.Second
	}
	w.timers = make(map[string]*time.Timer)
	w.handled = make(map[string]time.Time)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			log.Debug().Err(err).Msg("failed to close inbox watcher")
		}
	}()
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return err
	}
	if err := watcher.Add(w.Dir); err != nil {
		return err
	}
	log.Info().Str("dir", w.Dir).Dur("debounce", w.Debounce).Msg("watching inbox")

	ready := make(chan string, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case path := <-ready:
				w.process(ctx, path)
			}
		}
	}()

	for _, path := range w.existing() {
		w.schedule(ctx, path, ready)
	}

	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			<-done
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				w.stopTimers()
				<-done
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if accept(event.Name) {
				w.schedule(ctx, event.Name, ready)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				continue
			}
			log.Warn().Err(err).Str("dir", w.Dir).Msg("inbox watcher error")
		}
	}
}

func (w *Inbox) existing() []string {
	entries, err := os.ReadDir(w.Dir)
	if err != nil {
		return nil
	}
	var paths []string
	for _, e := range entries {
		p := filepath.Join(w.Dir, e.Name())
		if e.Type().IsRegular() && accept(p) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}

// schedule (re)starts the quiet-period timer of path.
func (w *Inbox) schedule(ctx context.Context, path string, ready chan<- string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Reset(w.Debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.Debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		select {
		case ready <- path:
		case <-ctx.Done():
		}
	})
}

func (w *Inbox) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}

func (w *Inbox) process(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	w.mu.Lock()
	last, seen := w.handled[path]
	if seen && !info.ModTime().After(last) {
		w.mu.Unlock()
		return
	}
	w.handled[path] = info.ModTime()
	w.mu.Unlock()

	log.Info().Str("file", path).Msg("inbox file ready")
	if err := w.Handle(ctx, path); err != nil {
		log.Err(err).Str("file", path).Msg("inbox file failed")
	}
}

func accept(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	return audio.IsSupported(filepath.Ext(name))
}

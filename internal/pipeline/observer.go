package pipeline

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ChunkEvent reports one resolved segment.
type ChunkEvent struct {
	Index   int           `json:"index"`
	Total   int           `json:"total"`
	StartMS int64         `json:"start_ms"`
	EndMS   int64         `json:"end_ms"`
	Cached  bool          `json:"cached"`
	Text    string        `json:"text"`
	Elapsed time.Duration `json:"elapsed"`
}

// Observer receives progress of a running job. With Workers > 1 the methods
// are called from several goroutines.
type Observer interface {
	StateChanged(job Job, state State)
	ChunkDone(job Job, ev ChunkEvent)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnState func(job Job, state State)
	OnChunk func(job Job, ev ChunkEvent)
}

func (o ObserverFuncs) StateChanged(job Job, state State) {
	if o.OnState != nil {
		o.OnState(job, state)
	}
}

func (o ObserverFuncs) ChunkDone(job Job, ev ChunkEvent) {
	if o.OnChunk != nil {
		o.OnChunk(job, ev)
	}
}

// ConsoleObserver prints each freshly transcribed chunk.
type ConsoleObserver struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsoleObserver(w io.Writer) *ConsoleObserver {
	return &ConsoleObserver{w: w}
}

func (c *ConsoleObserver) StateChanged(Job, State) {}

func (c *ConsoleObserver) ChunkDone(_ Job, ev ChunkEvent) {
	if ev.Cached {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "Chunk %d transcript:\n%s\n------------------------\n", ev.Index, ev.Text)
}

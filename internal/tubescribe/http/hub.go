package http

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sjzar/tubescribe/internal/errors"
	"github.com/sjzar/tubescribe/internal/pipeline"
)

const maxHistory = 1024

// Event is one progress message streamed to clients.
type Event struct {
	Type  string               `json:"type"` // state, chunk, done, failed
	JobID string               `json:"job_id"`
	State pipeline.State       `json:"state"`
	Chunk *pipeline.ChunkEvent `json:"chunk,omitempty"`
	Error string               `json:"error,omitempty"`
	Time  time.Time            `json:"time"`
}

// JobStatus is the externally visible state of a submitted job.
type JobStatus struct {
	ID             string         `json:"id"`
	Source         string         `json:"source"`
	BaseName       string         `json:"base_name"`
	Backend        string         `json:"backend"`
	State          pipeline.State `json:"state"`
	ChunksTotal    int            `json:"chunks_total"`
	ChunksDone     int            `json:"chunks_done"`
	Reused         bool           `json:"reused"`
	TranscriptPath string         `json:"transcript_path,omitempty"`
	Error          string         `json:"error,omitempty"`
	ErrorCode      int            `json:"error_code,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	FinishedAt     *time.Time     `json:"finished_at,omitempty"`
}

type trackedJob struct {
	status  JobStatus
	history []Event
	subs    map[chan Event]struct{}
	closed  bool
}

// Hub tracks submitted jobs and fans their progress out to subscribers. It
// implements pipeline.Observer, matching driver callbacks to jobs by base name.
type Hub struct {
	mu     sync.Mutex
	jobs   map[string]*trackedJob
	byBase map[string]map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		jobs:   make(map[string]*trackedJob),
		byBase: make(map[string]map[string]struct{}),
	}
}

// Register starts tracking job and returns its status with a fresh ID.
func (h *Hub) Register(job pipeline.Job) JobStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	t := &trackedJob{
		status: JobStatus{
			ID:        uuid.NewString(),
			Source:    job.Source,
			BaseName:  job.BaseName,
			Backend:   job.Backend.String(),
			State:     pipeline.StateInit,
			CreatedAt: time.Now(),
		},
		subs: make(map[chan Event]struct{}),
	}
	h.jobs[t.status.ID] = t
	if h.byBase[job.BaseName] == nil {
		h.byBase[job.BaseName] = make(map[string]struct{})
	}
	h.byBase[job.BaseName][t.status.ID] = struct{}{}
	return t.status
}

func (h *Hub) Get(id string) (JobStatus, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.jobs[id]
	if !ok {
		return JobStatus{}, false
	}
	return t.status, true
}

// List returns every tracked job, newest first.
func (h *Hub) List() []JobStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]JobStatus, 0, len(h.jobs))
	for _, t := range h.jobs {
		out = append(out, t.status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (h *Hub) StateChanged(job pipeline.Job, s pipeline.State) {
	if s.Terminal() {
		// Finish reports the outcome together with the result.
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range h.byBase[job.BaseName] {
		t := h.jobs[id]
		t.status.State = s
		h.publish(t, Event{Type: "state", State: s})
	}
}

func (h *Hub) ChunkDone(job pipeline.Job, ev pipeline.ChunkEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range h.byBase[job.BaseName] {
		t := h.jobs[id]
		t.status.ChunksTotal = ev.Total
		t.status.ChunksDone++
		e := ev
		h.publish(t, Event{Type: "chunk", State: t.status.State, Chunk: &e})
	}
}

// Finish records the outcome of job id and closes its subscriptions.
func (h *Hub) Finish(id string, res *pipeline.Result, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.jobs[id]
	if !ok || t.closed {
		return
	}
	now := time.Now()
	t.status.FinishedAt = &now
	ev := Event{Type: "done", State: pipeline.StateDone}
	if err != nil {
		t.status.State = pipeline.StateFailed
		t.status.Error = err.Error()
		t.status.ErrorCode = errors.HTTPStatus(err)
		ev = Event{Type: "failed", State: pipeline.StateFailed, Error: err.Error()}
	} else {
		t.status.State = pipeline.StateDone
		t.status.Reused = res.Reused
		t.status.TranscriptPath = res.Path
		if res.Chunks > 0 {
			t.status.ChunksTotal = res.Chunks
			t.status.ChunksDone = res.Chunks
		}
	}
	h.publish(t, ev)

	t.closed = true
	for ch := range t.subs {
		close(ch)
		delete(t.subs, ch)
	}
	if ids := h.byBase[t.status.BaseName]; ids != nil {
		delete(ids, id)
		if len(ids) == 0 {
			delete(h.byBase, t.status.BaseName)
		}
	}
}

// Subscribe returns the events published so far and a channel carrying the
// rest. The channel is closed when the job finishes or cancel is called.
func (h *Hub) Subscribe(id string) (history []Event, events <-chan Event, cancel func(), err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.jobs[id]
	if !ok {
		return nil, nil, nil, errors.NotFound("job " + id)
	}
	history = append([]Event(nil), t.history...)
	ch := make(chan Event, 64)
	if t.closed {
		close(ch)
		return history, ch, func() {}, nil
	}
	t.subs[ch] = struct{}{}
	cancel = func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := t.subs[ch]; ok {
			delete(t.subs, ch)
			close(ch)
		}
	}
	return history, ch, cancel, nil
}

// publish must be called with h.mu held. Slow subscribers drop events rather
// than stall the pipeline.
func (h *Hub) publish(t *trackedJob, ev Event) {
	ev.JobID = t.status.ID
	ev.Time = time.Now()
	if len(t.history) < maxHistory {
		t.history = append(t.history, ev)
	}
	for ch := range t.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjzar/tubescribe/internal/errors"
	"github.com/sjzar/tubescribe/internal/index"
	"github.com/sjzar/tubescribe/internal/metrics"
	"github.com/sjzar/tubescribe/internal/pipeline"
)

type staticConf struct{}

func (staticConf) GetHTTPAddr() string { return "127.0.0.1:0" }

// fakeRunner emits two chunk events per job and writes a transcript file.
type fakeRunner struct {
	dir     string
	obs     pipeline.Observer
	release chan struct{}
	fail    error
}

func (r *fakeRunner) NewJob(j pipeline.Job) (pipeline.Job, error) {
	return pipeline.NewJob(j)
}

func (r *fakeRunner) Run(ctx context.Context, job pipeline.Job) (*pipeline.Result, error) {
	if r.release != nil {
		<-r.release
	}
	r.obs.StateChanged(job, pipeline.StateInit)
	r.obs.StateChanged(job, pipeline.StateTranscribing)
	for i := 0; i < 2; i++ {
		r.obs.ChunkDone(job, pipeline.ChunkEvent{Index: i, Total: 2, Text: fmt.Sprintf("part %d", i)})
	}
	if r.fail != nil {
		return nil, r.fail
	}
	path := filepath.Join(r.dir, job.BaseName+".txt")
	if err := os.WriteFile(path, []byte("part 0\npart 1"), 0o644); err != nil {
		return nil, err
	}
	return &pipeline.Result{BaseName: job.BaseName, Path: path, Chunks: 2, Transcribed: 2}, nil
}

func (r *fakeRunner) Search(req index.SearchRequest) ([]*index.SearchHit, int, error) {
	return []*index.SearchHit{{Base: "talk", Chunk: 1, Text: "part 1"}}, 1, nil
}

func newTestService(t *testing.T, r *fakeRunner) (*Service, *Hub) {
	t.Helper()
	hub := NewHub()
	r.dir = t.TempDir()
	r.obs = hub
	s := NewService(staticConf{}, r, hub, metrics.New(prometheus.NewRegistry()))
	t.Cleanup(func() { s.Stop() })
	return s, hub
}

func do(s *Service, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.GetRouter().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s, _ := newTestService(t, &fakeRunner{})
	w := do(s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSubmitAndFetchTranscript(t *testing.T) {
	s, _ := newTestService(t, &fakeRunner{})

	w := do(s, http.MethodPost, "/api/v1/jobs", `{"source":"https://youtu.be/abc"}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var status JobStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.NotEmpty(t, status.ID)
	assert.Equal(t, "abc", status.BaseName)
	assert.Equal(t, "remote", status.Backend)

	require.Eventually(t, func() bool {
		w := do(s, http.MethodGet, "/api/v1/jobs/"+status.ID, "")
		var got JobStatus
		_ = json.Unmarshal(w.Body.Bytes(), &got)
		return got.State == pipeline.StateDone
	}, 2*time.Second, 10*time.Millisecond)

	w = do(s, http.MethodGet, "/api/v1/jobs/"+status.ID+"/transcript", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "part 0\npart 1", w.Body.String())

	w = do(s, http.MethodGet, "/api/v1/jobs", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), status.ID)
}

func TestSubmitRejectsBadInput(t *testing.T) {
	s, _ := newTestService(t, &fakeRunner{})

	w := do(s, http.MethodPost, "/api/v1/jobs", `{"source":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(s, http.MethodPost, "/api/v1/jobs", `{"source":"a.wav","backend":"azure"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(s, http.MethodPost, "/api/v1/jobs", `{"source":"a.wav","backend":"local","model":"huge"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(s, http.MethodPost, "/api/v1/jobs", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(s, http.MethodGet, "/api/v1/jobs/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFailedJobReportsKind(t *testing.T) {
	r := &fakeRunner{fail: errors.Unavailable("local", fmt.Errorf("not compiled"))}
	s, hub := newTestService(t, r)

	w := do(s, http.MethodPost, "/api/v1/jobs", `{"source":"a.wav","backend":"local"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	var status JobStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))

	require.Eventually(t, func() bool {
		got, _ := hub.Get(status.ID)
		return got.State == pipeline.StateFailed
	}, 2*time.Second, 10*time.Millisecond)
	got, _ := hub.Get(status.ID)
	assert.Equal(t, http.StatusServiceUnavailable, got.ErrorCode)

	w = do(s, http.MethodGet, "/api/v1/jobs/"+status.ID+"/transcript", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSearch(t *testing.T) {
	s, _ := newTestService(t, &fakeRunner{})
	w := do(s, http.MethodGet, "/api/v1/search?q=part", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	w = do(s, http.MethodGet, "/api/v1/search", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEventsStream(t *testing.T) {
	r := &fakeRunner{release: make(chan struct{})}
	s, _ := newTestService(t, r)
	srv := httptest.NewServer(s.GetRouter())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/jobs", "application/json", bytes.NewBufferString(`{"source":"talk.wav"}`))
	require.NoError(t, err)
	var status JobStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/jobs/" + status.ID + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	close(r.release)

	var types []string
	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			break
		}
		assert.Equal(t, status.ID, ev.JobID)
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{"state", "state", "chunk", "chunk", "done"}, types)
}

func TestHubIgnoresOtherJobs(t *testing.T) {
	hub := NewHub()
	a, _ := pipeline.NewJob(pipeline.Job{Source: "a.wav"})
	b, _ := pipeline.NewJob(pipeline.Job{Source: "b.wav"})
	st := hub.Register(a)

	hub.ChunkDone(b, pipeline.ChunkEvent{Index: 0, Total: 1})
	got, _ := hub.Get(st.ID)
	assert.Zero(t, got.ChunksDone)

	hub.ChunkDone(a, pipeline.ChunkEvent{Index: 0, Total: 3})
	got, _ = hub.Get(st.ID)
	assert.Equal(t, 1, got.ChunksDone)
	assert.Equal(t, 3, got.ChunksTotal)

	hub.Finish(st.ID, &pipeline.Result{Chunks: 3, Path: "a.txt"}, nil)
	history, events, cancel, err := hub.Subscribe(st.ID)
	require.NoError(t, err)
	defer cancel()
	_, open := <-events
	assert.False(t, open)
	assert.Equal(t, "done", history[len(history)-1].Type)
}

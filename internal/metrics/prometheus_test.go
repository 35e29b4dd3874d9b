package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/sjzar/tubescribe/internal/pipeline"
)

func TestObserverCounts(t *testing.T) {
	m := New(prometheus.NewRegistry())
	job := pipeline.Job{BaseName: "talk"}

	m.StateChanged(job, pipeline.StateInit)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveJobs))

	m.ChunkDone(job, pipeline.ChunkEvent{Index: 0, Cached: true})
	m.ChunkDone(job, pipeline.ChunkEvent{Index: 1, StartMS: 60000, EndMS: 90000, Elapsed: time.Second})
	m.StateChanged(job, pipeline.StateDone)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChunksCached))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChunksTranscribed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsFinished.WithLabelValues("done")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveJobs))
}

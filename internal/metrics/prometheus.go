// Package metrics exposes pipeline progress as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sjzar/tubescribe/internal/pipeline"
)

// Metrics holds the pipeline collectors and implements pipeline.Observer.
type Metrics struct {
	JobsStarted  prometheus.Counter
	JobsFinished *prometheus.CounterVec
	ActiveJobs   prometheus.Gauge

	ChunksCached      prometheus.Counter
	ChunksTranscribed prometheus.Counter
	ChunkDuration     prometheus.Histogram
	TranscribeLatency prometheus.Histogram

	HTTPRequests *prometheus.CounterVec
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer to
// serve them from promhttp.Handler().
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		JobsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "tubescribe_jobs_started_total",
			Help: "Total number of transcription jobs started",
		}),
		JobsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tubescribe_jobs_finished_total",
			Help: "Total number of transcription jobs finished, by outcome",
		}, []string{"outcome"}),
		ActiveJobs: f.NewGauge(prometheus.GaugeOpts{
			Name: "tubescribe_active_jobs",
			Help: "Current number of running transcription jobs",
		}),
		ChunksCached: f.NewCounter(prometheus.CounterOpts{
			Name: "tubescribe_chunks_cached_total",
			Help: "Total number of chunks served from the chunk cache",
		}),
		ChunksTranscribed: f.NewCounter(prometheus.CounterOpts{
			Name: "tubescribe_chunks_transcribed_total",
			Help: "Total number of chunks sent to a transcription backend",
		}),
		ChunkDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tubescribe_chunk_audio_seconds",
			Help:    "Audio length of transcribed chunks",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~8.5 minutes
		}),
		TranscribeLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tubescribe_chunk_transcribe_seconds",
			Help:    "Wall time spent transcribing one chunk",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.4 minutes
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tubescribe_http_requests_total",
			Help: "Total number of HTTP API requests",
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) StateChanged(_ pipeline.Job, s pipeline.State) {
	switch s {
	case pipeline.StateInit:
		m.JobsStarted.Inc()
		m.ActiveJobs.Inc()
	case pipeline.StateDone:
		m.JobsFinished.WithLabelValues("done").Inc()
		m.ActiveJobs.Dec()
	case pipeline.StateFailed:
		m.JobsFinished.WithLabelValues("failed").Inc()
		m.ActiveJobs.Dec()
	}
}

func (m *Metrics) ChunkDone(_ pipeline.Job, ev pipeline.ChunkEvent) {
	if ev.Cached {
		m.ChunksCached.Inc()
		return
	}
	m.ChunksTranscribed.Inc()
	m.ChunkDuration.Observe(float64(ev.EndMS-ev.StartMS) / 1000)
	m.TranscribeLatency.Observe(ev.Elapsed.Seconds())
}

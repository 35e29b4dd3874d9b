// Package tubescribe wires configuration, storage, backends and the pipeline
// driver into the operations exposed by the CLI and the HTTP service.
package tubescribe

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sjzar/tubescribe/internal/audio"
	"github.com/sjzar/tubescribe/internal/chunkstore"
	"github.com/sjzar/tubescribe/internal/index"
	"github.com/sjzar/tubescribe/internal/pipeline"
	"github.com/sjzar/tubescribe/internal/source"
	"github.com/sjzar/tubescribe/internal/speech"
	"github.com/sjzar/tubescribe/internal/speech/selector"
	"github.com/sjzar/tubescribe/internal/speech/whispercpp"
	"github.com/sjzar/tubescribe/internal/tubescribe/conf"
)

// OpenBackendFunc opens a transcription backend.
type OpenBackendFunc func(ctx context.Context, cfg speech.Config) (speech.Backend, error)

type driverKey struct {
	kind  speech.Kind
	model speech.ModelSize
}

// Manager owns the long-lived components shared by every job of a process.
type Manager struct {
	conf      *conf.Config
	store     chunkstore.JobStore
	provider  source.Provider
	observers []pipeline.Observer
	open      OpenBackendFunc

	mu      sync.Mutex
	drivers map[driverKey]*pipeline.Driver
	// locks is shared by every driver: jobs on one base name share a directory.
	locks pipeline.Locks

	idxMu sync.Mutex
	index *index.Index
}

type Option func(*Manager)

// WithObservers attaches observers to every job.
func WithObservers(obs ...pipeline.Observer) Option {
	return func(m *Manager) { m.observers = append(m.observers, obs...) }
}

// WithStore replaces the file-system chunk store.
func WithStore(s chunkstore.JobStore) Option {
	return func(m *Manager) { m.store = s }
}

// WithProvider replaces the local/yt-dlp source provider.
func WithProvider(p source.Provider) Option {
	return func(m *Manager) { m.provider = p }
}

// WithBackendOpener replaces selector.Open.
func WithBackendOpener(f OpenBackendFunc) Option {
	return func(m *Manager) { m.open = f }
}

// WithIndex attaches an already open transcript index.
func WithIndex(idx *index.Index) Option {
	return func(m *Manager) { m.index = idx }
}

func NewManager(c *conf.Config, opts ...Option) *Manager {
	m := &Manager{
		conf:    c,
		store:   chunkstore.NewFileStore(c.WorkDir),
		drivers: make(map[driverKey]*pipeline.Driver),
		open:    selector.Open,
		provider: source.Auto{
			Local:  source.Local{},
			Remote: source.YTDLP{Path: c.Fetch.YTDLPPath, Format: c.Fetch.AudioFormat},
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	if c.Fetch.FFmpegPath != "" {
		audio.FFmpegPath = c.Fetch.FFmpegPath
	}
	return m
}

func (m *Manager) Config() *conf.Config { return m.conf }

// NewJob builds a job from the configured defaults. Zero fields of j are
// filled from the config.
func (m *Manager) NewJob(j pipeline.Job) (pipeline.Job, error) {
	if j.ChunkLength == 0 {
		j.ChunkLength = m.conf.ChunkLength()
	}
	if j.Backend == speech.KindLocal && j.Model == "" {
		j.Model = m.conf.Speech.Model
	}
	return pipeline.NewJob(j)
}

// Driver returns the driver for a backend, opening the backend on first use.
func (m *Manager) Driver(ctx context.Context, kind speech.Kind, model speech.ModelSize) (*pipeline.Driver, error) {
	if kind != speech.KindLocal {
		model = ""
	}
	key := driverKey{kind: kind, model: model}

	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.drivers[key]; ok {
		return d, nil
	}
	backend, err := m.open(ctx, m.conf.Speech.BackendConfig(kind, model))
	if err != nil {
		return nil, err
	}
	d := &pipeline.Driver{
		Store:     m.store,
		Backend:   backend,
		Provider:  m.provider,
		WorkDir:   m.conf.WorkDir,
		TmpDir:    m.conf.TmpDir,
		Workers:   m.conf.Workers,
		Observers: m.observers,
		Locks:     &m.locks,
	}
	m.drivers[key] = d
	log.Info().Str("backend", backend.Name()).Msg("transcription backend ready")
	return d, nil
}

// Fetch downloads or resolves the job's audio without transcribing it.
func (m *Manager) Fetch(ctx context.Context, job pipeline.Job) (string, error) {
	d := &pipeline.Driver{Provider: m.provider, WorkDir: m.conf.WorkDir}
	return d.Fetch(ctx, job)
}

// TranscriptPath is where job's final transcript lives.
func (m *Manager) TranscriptPath(job pipeline.Job) string {
	return filepath.Join(m.conf.WorkDir, job.BaseName, job.BaseName+".txt")
}

// AudioPath reports an already fetched audio file of job, if any.
func (m *Manager) AudioPath(job pipeline.Job) (string, bool) {
	if !source.IsRemote(job.Source) {
		return job.Source, true
	}
	p := source.YTDLP{Format: m.conf.Fetch.AudioFormat}.OutputPath(source.Request{
		Base: job.BaseName,
		Dir:  filepath.Join(m.conf.WorkDir, job.BaseName),
	})
	_, err := os.Stat(p)
	return p, err == nil
}

// Run executes job and indexes the transcript of a fresh run. An existing
// transcript is returned without opening a backend.
func (m *Manager) Run(ctx context.Context, job pipeline.Job) (*pipeline.Result, error) {
	reuse := &pipeline.Driver{WorkDir: m.conf.WorkDir, Observers: m.observers}
	if res, err := reuse.Reuse(job); err != nil || res != nil {
		return res, err
	}

	d, err := m.Driver(ctx, job.Backend, job.Model)
	if err != nil {
		return nil, err
	}
	res, err := d.Run(ctx, job)
	if err != nil {
		return nil, err
	}
	if !res.Reused {
		m.indexResult(job, res)
	}
	return res, nil
}

func (m *Manager) indexResult(job pipeline.Job, res *pipeline.Result) {
	idx, err := m.Index()
	if err != nil || idx == nil {
		if err != nil {
			log.Warn().Err(err).Msg("transcript index unavailable")
		}
		return
	}
	err = idx.IndexTranscript(index.Transcript{
		Base:     job.BaseName,
		Source:   job.Source,
		Path:     res.Path,
		ChunkMS:  job.ChunkMS(),
		OffsetMS: job.Start.Milliseconds(),
		Chunks:   res.Texts,
		Created:  time.Now(),
	})
	if err != nil {
		log.Warn().Err(err).Str("job", job.BaseName).Msg("failed to index transcript")
	}
}

// Index opens the transcript index on first use. It returns nil when
// indexing is disabled.
func (m *Manager) Index() (*index.Index, error) {
	m.idxMu.Lock()
	defer m.idxMu.Unlock()
	if m.index != nil || m.conf.Index.Path == "" {
		return m.index, nil
	}
	idx, err := index.Open(m.conf.Index.Path)
	if err != nil {
		return nil, err
	}
	m.index = idx
	return idx, nil
}

// Search queries the transcript index.
func (m *Manager) Search(req index.SearchRequest) ([]*index.SearchHit, int, error) {
	idx, err := m.Index()
	if err != nil {
		return nil, 0, err
	}
	if idx == nil {
		return []*index.SearchHit{}, 0, nil
	}
	return idx.Search(req)
}

// EnsureModel downloads the ggml file of a local model size.
func (m *Manager) EnsureModel(ctx context.Context, size speech.ModelSize) (whispercpp.DownloadResult, error) {
	return whispercpp.NewDownloader(m.conf.Speech.ModelDir).EnsureModel(ctx, size)
}

// Close releases backends, loaded models and the index.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, d := range m.drivers {
		if err := d.Backend.Close(); err != nil {
			log.Debug().Err(err).Str("backend", d.Backend.Name()).Msg("failed to close backend")
		}
		delete(m.drivers, key)
	}

	m.idxMu.Lock()
	defer m.idxMu.Unlock()
	if m.index != nil {
		if err := m.index.Close(); err != nil {
			log.Debug().Err(err).Msg("failed to close index")
		}
		m.index = nil
	}
	return selector.Shutdown()
}

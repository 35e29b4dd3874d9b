package http

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/sjzar/tubescribe/internal/errors"
	"github.com/sjzar/tubescribe/internal/index"
	"github.com/sjzar/tubescribe/internal/pipeline"
	"github.com/sjzar/tubescribe/internal/speech"
)

func (s *Service) initRouter() {
	s.initBaseRouter()
	s.initAPIRouter()
}

func (s *Service) initBaseRouter() {
	s.router.GET("/health", func(ctx *gin.Context) { ctx.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
}

func (s *Service) initAPIRouter() {
	api := s.router.Group("/api/v1")
	{
		api.POST("/jobs", s.handleSubmitJob)
		api.GET("/jobs", s.handleListJobs)
		api.GET("/jobs/:id", s.handleGetJob)
		api.GET("/jobs/:id/transcript", s.handleTranscript)
		api.GET("/jobs/:id/events", s.handleEvents)
		api.GET("/search", s.handleSearch)
	}
}

type submitRequest struct {
	Source        string `json:"source"`
	BaseName      string `json:"base_name"`
	Backend       string `json:"backend"`
	Model         string `json:"model"`
	ChunkLengthMS int64  `json:"chunk_length_ms"`
	Force         bool   `json:"force"`
	ForceFetch    bool   `json:"force_fetch"`
	StartMS       int64  `json:"start_ms"`
	EndMS         int64  `json:"end_ms"`
}

func (r submitRequest) job() (pipeline.Job, error) {
	kind, err := speech.ParseKind(r.Backend)
	if err != nil {
		return pipeline.Job{}, errors.New(errors.ErrInput, err, "invalid backend")
	}
	var model speech.ModelSize
	if kind == speech.KindLocal && r.Model != "" {
		if model, err = speech.ParseModelSize(r.Model); err != nil {
			return pipeline.Job{}, errors.New(errors.ErrInput, err, "invalid model")
		}
	}
	return pipeline.Job{
		Source:      r.Source,
		BaseName:    r.BaseName,
		ChunkLength: time.Duration(r.ChunkLengthMS) * time.Millisecond,
		Backend:     kind,
		Model:       model,
		Force:       r.Force,
		ForceFetch:  r.ForceFetch,
		Start:       time.Duration(r.StartMS) * time.Millisecond,
		End:         time.Duration(r.EndMS) * time.Millisecond,
	}, nil
}

// POST /api/v1/jobs
func (s *Service) handleSubmitJob(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.Err(c, errors.New(errors.ErrInput, err, "invalid request payload"))
		return
	}
	j, err := req.job()
	if err != nil {
		errors.Err(c, err)
		return
	}
	job, err := s.runner.NewJob(j)
	if err != nil {
		errors.Err(c, err)
		return
	}

	status := s.hub.Register(job)
	go func() {
		res, err := s.runner.Run(s.jobCtx, job)
		s.hub.Finish(status.ID, res, err)
		if err != nil {
			log.Err(err).Str("id", status.ID).Msg("job failed")
		}
	}()

	c.JSON(http.StatusAccepted, status)
}

// GET /api/v1/jobs
func (s *Service) handleListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": s.hub.List()})
}

// GET /api/v1/jobs/:id
func (s *Service) handleGetJob(c *gin.Context) {
	status, ok := s.hub.Get(c.Param("id"))
	if !ok {
		errors.Err(c, errors.NotFound("job "+c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, status)
}

// GET /api/v1/jobs/:id/transcript
func (s *Service) handleTranscript(c *gin.Context) {
	status, ok := s.hub.Get(c.Param("id"))
	if !ok {
		errors.Err(c, errors.NotFound("job "+c.Param("id")))
		return
	}
	if status.State != pipeline.StateDone || status.TranscriptPath == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "transcript not ready", "state": status.State})
		return
	}
	data, err := os.ReadFile(status.TranscriptPath)
	if err != nil {
		errors.Err(c, errors.New(errors.ErrNotFound, err, "transcript not found"))
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", data)
}

// GET /api/v1/search?q=...&base=a,b
func (s *Service) handleSearch(c *gin.Context) {
	params := struct {
		Query  string `form:"q"`
		Base   string `form:"base"`
		Limit  int    `form:"limit"`
		Offset int    `form:"offset"`
	}{}
	if err := c.ShouldBindQuery(&params); err != nil {
		errors.Err(c, errors.New(errors.ErrInput, err, "invalid query"))
		return
	}
	query := strings.TrimSpace(params.Query)
	if query == "" {
		errors.Err(c, errors.InvalidArg("q"))
		return
	}
	var bases []string
	if params.Base != "" {
		bases = strings.Split(params.Base, ",")
	}

	hits, total, err := s.runner.Search(index.SearchRequest{
		Query:  query,
		Bases:  bases,
		Limit:  params.Limit,
		Offset: params.Offset,
	})
	if err != nil {
		errors.Err(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "items": hits})
}

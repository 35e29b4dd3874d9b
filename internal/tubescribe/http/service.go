package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/sjzar/tubescribe/internal/errors"
	"github.com/sjzar/tubescribe/internal/index"
	"github.com/sjzar/tubescribe/internal/metrics"
	"github.com/sjzar/tubescribe/internal/pipeline"
)

type Service struct {
	conf    Config
	runner  Runner
	hub     *Hub
	metrics *metrics.Metrics

	router *gin.Engine
	server *http.Server

	// jobs outlive the request that submitted them; Stop cancels them.
	jobCtx    context.Context
	cancelJob context.CancelFunc
}

type Config interface {
	GetHTTPAddr() string
}

// Runner executes transcription jobs.
type Runner interface {
	NewJob(j pipeline.Job) (pipeline.Job, error)
	Run(ctx context.Context, job pipeline.Job) (*pipeline.Result, error)
	Search(req index.SearchRequest) ([]*index.SearchHit, int, error)
}

// NewService builds the HTTP API. hub must also be registered as an observer
// of the runner's jobs for progress to reach clients. m may be nil.
func NewService(conf Config, runner Runner, hub *Hub, m *metrics.Metrics) *Service {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if err := router.SetTrustedProxies(nil); err != nil {
		log.Err(err).Msg("Failed to set trusted proxies")
	}

	s := &Service{
		conf:    conf,
		runner:  runner,
		hub:     hub,
		metrics: m,
		router:  router,
	}
	s.jobCtx, s.cancelJob = context.WithCancel(context.Background())

	router.Use(
		errors.RecoveryMiddleware(),
		errors.ErrorHandlerMiddleware(),
		gin.LoggerWithWriter(log.Logger, "/health", "/metrics"),
		corsMiddleware(),
		s.metricsMiddleware(),
	)

	s.initRouter()
	return s
}

func (s *Service) Start() error {
	s.server = &http.Server{
		Addr:    s.conf.GetHTTPAddr(),
		Handler: s.router,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Err(err).Msg("Failed to start HTTP server")
		}
	}()

	log.Info().Msg("Starting HTTP server on " + s.conf.GetHTTPAddr())
	return nil
}

func (s *Service) ListenAndServe() error {
	s.server = &http.Server{
		Addr:    s.conf.GetHTTPAddr(),
		Handler: s.router,
	}

	log.Info().Msg("Starting HTTP server on " + s.conf.GetHTTPAddr())
	return s.server.ListenAndServe()
}

// Stop cancels running jobs and shuts the server down. Chunks finished
// before the cancel stay cached.
func (s *Service) Stop() error {
	s.cancelJob()
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		log.Debug().Err(err).Msg("Failed to shutdown HTTP server")
		return nil
	}

	log.Info().Msg("HTTP server stopped")
	return nil
}

func (s *Service) GetRouter() *gin.Engine {
	return s.router
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Service) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if s.metrics == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

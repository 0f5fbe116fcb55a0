package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/heimdex/vidtopics/internal/caption"
	"github.com/heimdex/vidtopics/internal/events"
	"github.com/heimdex/vidtopics/internal/jobs"
	"github.com/heimdex/vidtopics/internal/playback"
	"github.com/heimdex/vidtopics/internal/store"
	"github.com/heimdex/vidtopics/internal/workpool"
)

// VideoProcessor captions a stored video and writes its report.
type VideoProcessor interface {
	ProcessVideo(ctx context.Context, req caption.Request, progress caption.ProgressFunc) (*caption.Result, error)
}

// ReportProcessor models the topics of a project and renders the page.
type ReportProcessor interface {
	ProcessReports(ctx context.Context, project string, k int) (string, error)
}

// ModelStatus exposes the shared captioning model without loading it.
type ModelStatus interface {
	Peek() *caption.Model
}

// HealthChecker reports whether an external dependency answers.
type HealthChecker interface {
	Health(ctx context.Context) error
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Addr           string
	Store          *store.Store
	Captions       VideoProcessor
	Topics         ReportProcessor
	CaptionPool    *workpool.Pool
	TopicPool      *workpool.Pool
	Tracker        *jobs.Tracker
	Jobs           jobs.Repository
	Hub            *events.Hub
	Playback       *playback.Server
	Model          ModelStatus   // nil when captions come from a vision LLM
	ModelServer    HealthChecker // likewise
	Backend        string
	DefaultTopics  int
	SampleFPS      float64
	MaxUploadBytes int64
	APIToken       string
	AllowedOrigins []string
	RateLimit      float64
	RateBurst      int
	Logger         *slog.Logger
	StartTime      time.Time
}

func NewServer(cfg ServerConfig) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           NewRouter(cfg),
			ReadHeaderTimeout: 15 * time.Second,
			// captioning a long video holds the response open; no write timeout
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}

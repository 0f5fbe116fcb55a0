package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/heimdex/vidtopics/internal/api"
	"github.com/heimdex/vidtopics/internal/caption"
	"github.com/heimdex/vidtopics/internal/config"
	"github.com/heimdex/vidtopics/internal/db"
	"github.com/heimdex/vidtopics/internal/events"
	"github.com/heimdex/vidtopics/internal/frames"
	"github.com/heimdex/vidtopics/internal/jobs"
	"github.com/heimdex/vidtopics/internal/logging"
	"github.com/heimdex/vidtopics/internal/playback"
	"github.com/heimdex/vidtopics/internal/store"
	"github.com/heimdex/vidtopics/internal/topic"
	"github.com/heimdex/vidtopics/internal/workpool"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, closer := logging.NewLogger(logging.Options{
		Level:  cfg.LogLevel(),
		Format: cfg.LogFormat(),
		File:   cfg.LogFile(),
	})
	defer closer.Close()

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	logger.Info("starting vidtopics",
		"version", config.Version,
		"commit", config.GitCommit,
		"data_dir", logging.SanitizePath(cfg.DataDir()),
		"projects_dir", logging.SanitizePath(cfg.ProjectsDir()),
		"backend", cfg.CaptionBackend(),
	)

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	jobRepo := jobs.NewRepository(database.Conn())
	hub := events.NewHub(logging.WithComponent(logger, "events"))
	tracker := jobs.NewTracker(jobRepo, hub, logging.WithComponent(logger, "jobs"))

	st, err := store.New(cfg.ProjectsDir(), logger)
	if err != nil {
		return err
	}

	sampler, err := frames.NewFFmpeg(cfg.FFmpegPath(), cfg.FFprobePath(), logging.WithComponent(logger, "ffmpeg"))
	if err != nil {
		return err
	}

	captioner, model, client, err := newCaptioner(cfg, logger)
	if err != nil {
		return err
	}
	if client != nil {
		hctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := client.Health(hctx); err != nil {
			logger.Warn("model server not reachable yet, captions will fail until it is", "url", cfg.ModelURL(), "error", err)
		}
		cancel()
	}

	captions := caption.NewPipeline(caption.PipelineConfig{
		Store:     st,
		Sampler:   sampler,
		Captioner: captioner,
		FPS:       cfg.SampleFPS(),
		Logger:    logging.WithComponent(logger, "caption"),
	})
	topics := topic.NewPipeline(topic.PipelineConfig{
		Store:      st,
		StopWords:  topic.NewStopWords(cfg.ExtraStopWords()...),
		Iterations: cfg.LDAIterations(),
		Lambda:     topic.DefaultLambda,
		Terms:      topic.DefaultTerms,
		Logger:     logging.WithComponent(logger, "topic"),
	})

	srvCfg := api.ServerConfig{
		Addr:           cfg.Addr(),
		Store:          st,
		Captions:       captions,
		Topics:         topics,
		CaptionPool:    workpool.New("caption", cfg.CaptionWorkers()),
		TopicPool:      workpool.New("topic", cfg.TopicWorkers()),
		Tracker:        tracker,
		Jobs:           jobRepo,
		Hub:            hub,
		Playback:       playback.NewServer(st, logging.WithComponent(logger, "playback")),
		Backend:        cfg.CaptionBackend(),
		DefaultTopics:  cfg.DefaultTopics(),
		SampleFPS:      cfg.SampleFPS(),
		MaxUploadBytes: cfg.MaxUploadBytes(),
		APIToken:       cfg.APIToken(),
		AllowedOrigins: cfg.AllowedOrigins(),
		RateLimit:      cfg.RateLimit(),
		RateBurst:      cfg.RateBurst(),
		Logger:         logger,
		StartTime:      startTime,
	}
	// a nil *LazyModel must not end up in the interface
	if model != nil {
		srvCfg.Model = model
		srvCfg.ModelServer = client
	}
	if srvCfg.APIToken == "" {
		logger.Warn("no API token configured, every route is open")
	}
	apiServer := api.NewServer(srvCfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// newCaptioner builds the configured captioning backend. The shared model and
// its server client are returned only for the model-server backend.
func newCaptioner(cfg config.Config, logger *slog.Logger) (caption.Captioner, *caption.LazyModel, *caption.ModelClient, error) {
	switch cfg.CaptionBackend() {
	case config.BackendOllama:
		c, err := caption.NewOllamaCaptioner(cfg.OllamaModel(), cfg.OllamaPrompt(), logging.WithComponent(logger, "ollama"))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create ollama captioner: %w", err)
		}
		return c, nil, nil, nil
	default:
		client := caption.NewModelClient(cfg.ModelURL(), logging.WithComponent(logger, "model"))
		model := caption.NewLazyModel(caption.ServerLoader(caption.ModelConfig{
			VocabPath:   cfg.VocabPath(),
			EncoderPath: cfg.EncoderPath(),
			DecoderPath: cfg.DecoderPath(),
			EmbedSize:   cfg.EmbedSize(),
			HiddenSize:  cfg.HiddenSize(),
			NumLayers:   cfg.NumLayers(),
		}, client), logger)
		return caption.NewModelCaptioner(model, cfg.MaxCaptionLen()), model, client, nil
	}
}

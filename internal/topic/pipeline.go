package topic

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/heimdex/vidtopics/internal/store"
)

type PipelineConfig struct {
	Store      *store.Store
	StopWords  StopWords
	Iterations int
	Lambda     float64
	Terms      int
	Logger     *slog.Logger
}

// Pipeline models the topics of a project's reports.
type Pipeline struct {
	store      *store.Store
	stop       StopWords
	iterations int
	opts       PrepareOptions
	logger     *slog.Logger
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	stop := cfg.StopWords
	if stop == nil {
		stop = NewStopWords()
	}
	return &Pipeline{
		store:      cfg.Store,
		stop:       stop,
		iterations: cfg.Iterations,
		opts:       PrepareOptions{Lambda: cfg.Lambda, Terms: cfg.Terms},
		logger:     cfg.Logger,
	}
}

// ProcessReports fits a k-topic model over every report of the project and
// returns the visualization page. Nothing is cached between calls.
func (p *Pipeline) ProcessReports(ctx context.Context, project string, k int) (string, error) {
	if k < 1 {
		return "", ErrInvalidTopicCount
	}
	start := time.Now()

	dir, err := p.store.ProjectDir(project)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return "", fmt.Errorf("project %q: %w", project, store.ErrNotFound)
	}

	docs, err := CollectDocuments(ctx, dir, p.stop)
	if err != nil {
		return "", fmt.Errorf("collect reports: %w", err)
	}
	if len(docs) == 0 {
		return "", ErrNoDocuments
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text()
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	model, err := Fit(texts, k, p.iterations)
	if err != nil {
		return "", err
	}

	page, err := Render(Prepare(project, model, docs, p.opts))
	if err != nil {
		return "", err
	}

	p.logger.Info("topics modeled",
		"project", project,
		"documents", len(docs),
		"vocab", len(model.Vocab),
		"topics", model.K,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return page, nil
}

package caption

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Model is a loaded captioning model: encoder, decoder and vocabulary.
type Model struct {
	Encoder  Encoder
	Decoder  Decoder
	Vocab    *Vocabulary
	LoadedAt time.Time
}

// LoadFunc loads a Model. It is called at most once per successful load.
type LoadFunc func(ctx context.Context) (*Model, error)

// LazyModel loads the captioning model on first use and shares it across all
// requests. A failed load is not cached; the next caller retries.
type LazyModel struct {
	load   LoadFunc
	logger *slog.Logger

	loadMu sync.Mutex // serializes loads; never held by Peek
	mu     sync.RWMutex
	model  *Model
}

func NewLazyModel(load LoadFunc, logger *slog.Logger) *LazyModel {
	return &LazyModel{load: load, logger: logger}
}

// Get returns the shared model, loading it if needed. Concurrent callers
// during a load wait for it rather than loading twice.
func (l *LazyModel) Get(ctx context.Context) (*Model, error) {
	if m := l.Peek(); m != nil {
		return m, nil
	}

	l.loadMu.Lock()
	defer l.loadMu.Unlock()

	if m := l.Peek(); m != nil {
		return m, nil
	}

	start := time.Now()
	m, err := l.load(ctx)
	if err != nil {
		l.logger.Warn("captioning model load failed", "error", err)
		return nil, fmt.Errorf("load captioning model: %w", err)
	}
	if m.LoadedAt.IsZero() {
		m.LoadedAt = time.Now()
	}

	l.mu.Lock()
	l.model = m
	l.mu.Unlock()

	l.logger.Info("captioning model loaded",
		"vocab_size", m.Vocab.Len(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return m, nil
}

// Peek returns the model if it is already loaded, without loading it and
// without waiting for a load in progress.
func (l *LazyModel) Peek() *Model {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.model
}

// Invalidate drops the loaded model; the next Get reloads.
func (l *LazyModel) Invalidate() {
	l.mu.Lock()
	l.model = nil
	l.mu.Unlock()
}

// ModelConfig names the artifacts a model server load needs.
type ModelConfig struct {
	VocabPath   string
	EncoderPath string
	DecoderPath string
	EmbedSize   int
	HiddenSize  int
	NumLayers   int
}

// ServerLoader returns a LoadFunc that reads the vocabulary from disk and asks
// the model server to load the matching weights.
func ServerLoader(cfg ModelConfig, client *ModelClient) LoadFunc {
	return func(ctx context.Context) (*Model, error) {
		vocab, err := LoadVocabulary(cfg.VocabPath)
		if err != nil {
			return nil, err
		}
		err = client.Load(ctx, LoadRequest{
			EncoderPath: cfg.EncoderPath,
			DecoderPath: cfg.DecoderPath,
			EmbedSize:   cfg.EmbedSize,
			HiddenSize:  cfg.HiddenSize,
			NumLayers:   cfg.NumLayers,
			VocabSize:   vocab.Len(),
		})
		if err != nil {
			return nil, err
		}
		return &Model{Encoder: client, Decoder: client, Vocab: vocab}, nil
	}
}

package caption

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"strings"

	"github.com/ollama/ollama/api"
)

// OllamaCaptioner captions frames with a vision model served by Ollama.
type OllamaCaptioner struct {
	client *api.Client
	model  string
	prompt string
	logger *slog.Logger
}

// NewOllamaCaptioner connects using OLLAMA_HOST (default http://127.0.0.1:11434).
func NewOllamaCaptioner(model, prompt string, logger *slog.Logger) (*OllamaCaptioner, error) {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("ollama client: %w", err)
	}
	return NewOllamaCaptionerWithClient(client, model, prompt, logger), nil
}

func NewOllamaCaptionerWithClient(client *api.Client, model, prompt string, logger *slog.Logger) *OllamaCaptioner {
	logger.Info("ollama captioner configured", "model", model)
	return &OllamaCaptioner{client: client, model: model, prompt: prompt, logger: logger}
}

func (c *OllamaCaptioner) Caption(ctx context.Context, img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return "", fmt.Errorf("encode frame: %w", err)
	}

	stream := false
	req := &api.GenerateRequest{
		Model:  c.model,
		Prompt: c.prompt,
		Images: []api.ImageData{buf.Bytes()},
		Stream: &stream,
		Options: map[string]interface{}{
			"temperature": 0,
		},
	}

	var out strings.Builder
	err := c.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		out.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}

	text := strings.Trim(NormalizeCaption(out.String()), `"`)
	if text == "" {
		c.logger.Warn("ollama returned an empty caption", "model", c.model)
	}
	return text, nil
}

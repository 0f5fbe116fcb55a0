package caption

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ModelServerError is a non-2xx answer from the model server.
type ModelServerError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *ModelServerError) Error() string {
	return fmt.Sprintf("model server %s: HTTP %d: %s", e.Path, e.StatusCode, e.Body)
}

// ModelUnloaded reports whether the server answered that no weights are
// loaded: 409 from a server that never saw /load, 503 while it restarts.
func (e *ModelServerError) ModelUnloaded() bool {
	return e.StatusCode == http.StatusConflict || e.StatusCode == http.StatusServiceUnavailable
}

// LoadRequest asks the model server to load the encoder/decoder weights.
type LoadRequest struct {
	EncoderPath string `json:"encoder_path"`
	DecoderPath string `json:"decoder_path"`
	EmbedSize   int    `json:"embed_size"`
	HiddenSize  int    `json:"hidden_size"`
	NumLayers   int    `json:"num_layers"`
	VocabSize   int    `json:"vocab_size"`
}

type encodeResponse struct {
	Feature []float32 `json:"feature"`
}

type sampleRequest struct {
	Feature   []float32 `json:"feature"`
	MaxLength int       `json:"max_length"`
}

type sampleResponse struct {
	IDs []int `json:"ids"`
}

// ModelClient talks to the encoder/decoder model server over HTTP. It is both
// the Encoder and the Decoder of a loaded Model.
type ModelClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewModelClient(baseURL string, logger *slog.Logger) *ModelClient {
	return &ModelClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger,
	}
}

// Load asks the server to load the weights named in req.
func (c *ModelClient) Load(ctx context.Context, req LoadRequest) error {
	c.logger.Info("loading captioning model",
		"url", c.baseURL,
		"encoder", req.EncoderPath,
		"decoder", req.DecoderPath,
		"vocab_size", req.VocabSize,
	)
	return c.postJSON(ctx, "/load", req, nil)
}

func (c *ModelClient) Encode(ctx context.Context, input Tensor) ([]float32, error) {
	var resp encodeResponse
	if err := c.postJSON(ctx, "/encode", input, &resp); err != nil {
		return nil, err
	}
	if len(resp.Feature) == 0 {
		return nil, fmt.Errorf("model server returned an empty feature vector")
	}
	return resp.Feature, nil
}

func (c *ModelClient) Sample(ctx context.Context, feature []float32, maxLen int) ([]int, error) {
	var resp sampleResponse
	if err := c.postJSON(ctx, "/sample", sampleRequest{Feature: feature, MaxLength: maxLen}, &resp); err != nil {
		return nil, err
	}
	return resp.IDs, nil
}

// Health checks the model server is reachable. /status calls it with a
// short deadline.
func (c *ModelClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &ModelServerError{Path: "/health", StatusCode: resp.StatusCode, Body: string(body)}
}

func (c *ModelClient) postJSON(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &ModelServerError{Path: path, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

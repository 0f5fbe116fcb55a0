package caption

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
)

// Captioner describes one image with a single line of text.
type Captioner interface {
	Caption(ctx context.Context, img image.Image) (string, error)
}

// ModelCaptioner captions with the shared encoder/decoder model.
type ModelCaptioner struct {
	model  *LazyModel
	maxLen int
}

func NewModelCaptioner(model *LazyModel, maxLen int) *ModelCaptioner {
	return &ModelCaptioner{model: model, maxLen: maxLen}
}

func (c *ModelCaptioner) Caption(ctx context.Context, img image.Image) (string, error) {
	m, err := c.model.Get(ctx)
	if err != nil {
		return "", err
	}

	feature, err := m.Encoder.Encode(ctx, Preprocess(img))
	if err != nil {
		c.dropIfUnloaded(err)
		return "", fmt.Errorf("encode: %w", err)
	}

	ids, err := m.Decoder.Sample(ctx, feature, c.maxLen)
	if err != nil {
		c.dropIfUnloaded(err)
		return "", fmt.Errorf("sample: %w", err)
	}
	if len(ids) > c.maxLen {
		ids = ids[:c.maxLen]
	}

	return NormalizeCaption(m.Vocab.Decode(ids)), nil
}

// dropIfUnloaded forgets the shared model when the server no longer holds the
// weights (it restarted, say), so the next caption loads them again.
func (c *ModelCaptioner) dropIfUnloaded(err error) {
	var serverErr *ModelServerError
	if errors.As(err, &serverErr) && serverErr.ModelUnloaded() {
		c.model.Invalidate()
	}
}

// NormalizeCaption collapses all whitespace, newlines included, to single
// spaces so a caption always fits on one report line.
func NormalizeCaption(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

package embedding

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// ThrottledEmbedder limits the request rate to a remote provider and bounds
// each call with a timeout.
type ThrottledEmbedder struct {
	Embedder
	limiter *rate.Limiter
	timeout time.Duration
}

// NewThrottledEmbedder allows rps requests per second (burst of at least 1).
// A zero timeout leaves calls unbounded.
func NewThrottledEmbedder(e Embedder, rps float64, timeout time.Duration) *ThrottledEmbedder {
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &ThrottledEmbedder{
		Embedder: e,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		timeout:  timeout,
	}
}

func (t *ThrottledEmbedder) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}
	if t.timeout <= 0 {
		return ctx, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	return ctx, cancel, nil
}

// Embed waits for the limiter, then embeds text.
func (t *ThrottledEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel, err := t.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	return t.Embedder.Embed(ctx, text)
}

// EmbedBatch waits for the limiter once, then embeds the batch.
func (t *ThrottledEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel, err := t.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	return t.Embedder.EmbedBatch(ctx, texts)
}

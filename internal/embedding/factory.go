package embedding

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
)

// New builds the embedder selected by cfg.Provider. Remote providers are
// throttled, and every provider is wrapped in an LRU cache when
// cfg.CacheSize > 0.
func New(ctx context.Context, cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	var base Embedder
	switch cfg.Provider {
	case "hashing":
		base = NewHashingEmbedder(cfg.Dimensions)
	case "gemini":
		g, err := NewGeminiEmbedder(ctx, cfg.APIKey(), cfg.Model, cfg.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("%w (set %s)", err, cfg.APIKeyEnv)
		}
		base = NewThrottledEmbedder(g, cfg.RequestsPerSecond, cfg.Timeout)
	case "openai":
		o, err := NewOpenAIEmbedder(cfg.APIKey(), cfg.BaseURL, cfg.Model, cfg.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("%w (set %s)", err, cfg.APIKeyEnv)
		}
		base = NewThrottledEmbedder(o, cfg.RequestsPerSecond, cfg.Timeout)
	case "onnx":
		o, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
		base = o
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	if logger != nil {
		logger.Info("embedder ready",
			zap.String("embedder", base.Name()),
			zap.Int("dimensions", base.Dimensions()),
			zap.Int("cache_size", cfg.CacheSize),
		)
	}
	if cfg.CacheSize > 0 {
		return NewCachedEmbedder(base, cfg.CacheSize), nil
	}
	return base, nil
}

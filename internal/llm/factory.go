package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
)

// New builds the generator selected by cfg.Provider. Remote providers are
// bounded by cfg.Timeout.
func New(ctx context.Context, cfg config.GenerationConfig, logger *zap.Logger) (Generator, error) {
	var g Generator
	switch cfg.Provider {
	case "extractive":
		g = NewExtractiveGenerator()
	case "gemini":
		gg, err := NewGeminiGenerator(ctx, cfg.APIKey(), cfg.Model, cfg.MaxTokens)
		if err != nil {
			return nil, fmt.Errorf("%w (set %s)", err, cfg.APIKeyEnv)
		}
		g = WithTimeout(gg, cfg.Timeout)
	case "openai":
		og, err := NewOpenAIGenerator(cfg.APIKey(), cfg.BaseURL, cfg.Model, cfg.MaxTokens)
		if err != nil {
			return nil, fmt.Errorf("%w (set %s)", err, cfg.APIKeyEnv)
		}
		g = WithTimeout(og, cfg.Timeout)
	case "anthropic":
		ag, err := NewAnthropicGenerator(cfg.APIKey(), cfg.BaseURL, cfg.Model, cfg.MaxTokens)
		if err != nil {
			return nil, fmt.Errorf("%w (set %s)", err, cfg.APIKeyEnv)
		}
		g = WithTimeout(ag, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
	if logger != nil {
		logger.Info("generator ready", zap.String("generator", g.Name()))
	}
	return g, nil
}

// Package llm provides text generation backends for answering questions.
package llm

import (
	"context"
	"time"
)

// Generator turns a prompt into a completion.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	// Name identifies the provider and model, e.g. "openai/gpt-4o-mini".
	Name() string
	Close() error
}

// TimeoutGenerator bounds each Generate call with a deadline.
type TimeoutGenerator struct {
	Generator
	timeout time.Duration
}

// WithTimeout wraps g so each call gets at most d. A non-positive d returns g unchanged.
func WithTimeout(g Generator, d time.Duration) Generator {
	if d <= 0 {
		return g
	}
	return &TimeoutGenerator{Generator: g, timeout: d}
}

// Generate calls the wrapped generator under the timeout.
func (t *TimeoutGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Generator.Generate(ctx, prompt)
}

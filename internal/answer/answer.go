// Package answer builds grounded prompts from retrieved chunks and turns
// model output into answers with their sources.
package answer

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
)

// UnknownSource labels chunks that carry no source.
const UnknownSource = "Unknown"

const instruction = "You are a helpful assistant. Use only the context below to answer the question.\n\n"

// BuildPrompt renders the grounded prompt. Chunk contents keep retrieval
// order and are separated by blank lines.
func BuildPrompt(query string, chunks []models.Chunk) string {
	contents := make([]string, len(chunks))
	for i, c := range chunks {
		contents[i] = c.Content
	}
	var sb strings.Builder
	sb.WriteString(instruction)
	sb.WriteString(llm.ContextHeader)
	sb.WriteString(strings.Join(contents, "\n\n"))
	sb.WriteString(llm.QuestionHeader)
	sb.WriteString(query)
	sb.WriteString("\n")
	return sb.String()
}

// Sources returns the sorted distinct sources of chunks.
func Sources(chunks []models.Chunk) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		s := c.Source
		if s == "" {
			s = UnknownSource
		}
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// Generator answers questions from retrieved chunks.
type Generator struct {
	llm    llm.Generator
	logger *zap.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// NewGenerator wraps a text generator.
func NewGenerator(gen llm.Generator, opts ...Option) *Generator {
	g := &Generator{llm: gen}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Answer generates an answer to query grounded on chunks. An empty chunk
// list is not an error; the model sees an empty context.
func (g *Generator) Answer(ctx context.Context, query string, chunks []models.Chunk) (*models.Answer, error) {
	prompt := BuildPrompt(query, chunks)
	if g.logger != nil {
		g.logger.Debug("generating answer",
			zap.String("generator", g.llm.Name()),
			zap.Int("chunks", len(chunks)),
			zap.Int("prompt_len", len(prompt)),
		)
	}
	out, err := g.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, models.GenerationError(g.llm.Name(), err)
	}
	return &models.Answer{
		Text:    strings.TrimSpace(out),
		Sources: Sources(chunks),
	}, nil
}

// Name reports the underlying generator.
func (g *Generator) Name() string {
	return g.llm.Name()
}

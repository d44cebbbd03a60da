package llm

import (
	"context"
	"strings"
	"unicode"
)

// Prompt section headers shared with the prompt builder. The extractive
// generator uses them to find the context and the question.
const (
	ContextHeader  = "Context:\n"
	QuestionHeader = "\n\nQuestion:\n"
)

// InsufficientContext is the extractive answer when the prompt carries no context.
const InsufficientContext = "I don't have enough information in the provided documents to answer that question."

// ExtractiveGenerator answers offline by returning the context paragraph
// that shares the most words with the question. Ties go to the earlier
// paragraph, which is the better-ranked chunk.
type ExtractiveGenerator struct{}

// NewExtractiveGenerator returns an ExtractiveGenerator.
func NewExtractiveGenerator() *ExtractiveGenerator {
	return &ExtractiveGenerator{}
}

// Generate picks a paragraph from the prompt's context section.
func (g *ExtractiveGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	contextText, question := splitPrompt(prompt)

	var paragraphs []string
	for _, p := range strings.Split(contextText, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	if len(paragraphs) == 0 {
		return InsufficientContext, nil
	}

	terms := make(map[string]bool)
	for _, w := range words(question) {
		if len([]rune(w)) >= 3 {
			terms[w] = true
		}
	}
	best, bestScore := 0, 0
	for i, p := range paragraphs {
		seen := make(map[string]bool)
		score := 0
		for _, w := range words(p) {
			if terms[w] && !seen[w] {
				seen[w] = true
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return paragraphs[best], nil
}

// Name returns "extractive".
func (g *ExtractiveGenerator) Name() string {
	return "extractive"
}

// Close is a no-op.
func (g *ExtractiveGenerator) Close() error {
	return nil
}

// splitPrompt returns the context and question sections. A prompt without
// headers is treated as all context.
func splitPrompt(prompt string) (contextText, question string) {
	start := strings.Index(prompt, ContextHeader)
	if start < 0 {
		return prompt, ""
	}
	rest := prompt[start+len(ContextHeader):]
	end := strings.LastIndex(rest, QuestionHeader)
	if end < 0 {
		return rest, ""
	}
	return rest[:end], rest[end+len(QuestionHeader):]
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

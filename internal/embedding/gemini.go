package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// geminiMaxBatch is the largest batch BatchEmbedContents accepts.
const geminiMaxBatch = 100

// GeminiEmbedder calls the Google Generative AI embedding API.
type GeminiEmbedder struct {
	client     *genai.Client
	model      *genai.EmbeddingModel
	modelName  string
	dimensions int
}

// NewGeminiEmbedder creates a client for model (e.g. "embedding-001").
// dimensions must match what the model returns; vectors of another size are rejected.
func NewGeminiEmbedder(ctx context.Context, apiKey, model string, dimensions int, opts ...option.ClientOption) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, errors.New("gemini embedder: API key is not set")
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini embedder: create client: %w", err)
	}
	return &GeminiEmbedder{
		client:     client,
		model:      client.EmbeddingModel(model),
		modelName:  model,
		dimensions: dimensions,
	}, nil
}

// Embed returns the embedding of text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := e.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if res.Embedding == nil {
		return nil, errors.New("gemini embed: empty response")
	}
	return e.checkDims(res.Embedding.Values)
}

// EmbedBatch embeds texts in requests of at most 100 items.
func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += geminiMaxBatch {
		end := min(start+geminiMaxBatch, len(texts))
		batch := e.model.NewBatch()
		for _, t := range texts[start:end] {
			batch.AddContent(genai.Text(t))
		}
		res, err := e.model.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("gemini batch embed: %w", err)
		}
		if len(res.Embeddings) != end-start {
			return nil, fmt.Errorf("gemini batch embed: got %d embeddings for %d texts", len(res.Embeddings), end-start)
		}
		for _, emb := range res.Embeddings {
			v, err := e.checkDims(emb.Values)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
	}
	return out, nil
}

func (e *GeminiEmbedder) checkDims(v []float32) ([]float32, error) {
	if len(v) != e.dimensions {
		return nil, fmt.Errorf("gemini embed: model %s returned %d dimensions, configured %d", e.modelName, len(v), e.dimensions)
	}
	return v, nil
}

// Dimensions returns the embedding dimension.
func (e *GeminiEmbedder) Dimensions() int {
	return e.dimensions
}

// Name returns "gemini/<model>".
func (e *GeminiEmbedder) Name() string {
	return "gemini/" + e.modelName
}

// Close releases the client connection.
func (e *GeminiEmbedder) Close() error {
	return e.client.Close()
}

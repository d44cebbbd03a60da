package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/hyperjump/kotae/pkg/utils"
)

// HashingEmbedder is a deterministic, offline embedder. Each word is hashed
// into one signed bucket (feature hashing), so texts sharing words are close
// under cosine similarity. Identical texts always get identical vectors.
type HashingEmbedder struct {
	dimensions int
}

// NewHashingEmbedder returns a hashing embedder; dimensions <= 0 means 256.
func NewHashingEmbedder(dimensions int) *HashingEmbedder {
	if dimensions <= 0 {
		dimensions = 256
	}
	return &HashingEmbedder{dimensions: dimensions}
}

// Embed returns the unit-length hashed bag of words of text. Text without any
// words falls back to a vector derived from the hash of the whole string.
func (e *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emb := make([]float32, e.dimensions)
	words := Words(text)
	for _, w := range words {
		h := HashString(w)
		sign := float32(1)
		if (h/e.dimensions)%2 == 1 {
			sign = -1
		}
		emb[h%e.dimensions] += sign
	}
	if len(words) == 0 {
		h := HashString(text)
		for i := range emb {
			emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
		}
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *HashingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, texts, e.Embed)
}

// Dimensions returns the embedding dimension.
func (e *HashingEmbedder) Dimensions() int {
	return e.dimensions
}

// Name returns "hashing/<dimensions>".
func (e *HashingEmbedder) Name() string {
	return fmt.Sprintf("hashing/%d", e.dimensions)
}

// Close is a no-op for HashingEmbedder.
func (e *HashingEmbedder) Close() error {
	return nil
}

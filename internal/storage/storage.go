// Package storage defines the durable store behind a vector collection.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/kotae/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Meta keys written by the collection.
const (
	MetaEmbedder   = "embedder"
	MetaDimensions = "dimensions"
	MetaCreatedAt  = "created_at"
)

// ChunkStore persists chunks with their embeddings and collection metadata.
type ChunkStore interface {
	// InsertChunks stores all vectors in one transaction, or none of them.
	InsertChunks(ctx context.Context, vectors []*models.IndexedVector) error
	// GetChunks returns the stored vectors for ids, keyed by ID, without embeddings.
	GetChunks(ctx context.Context, ids []string) (map[string]*models.IndexedVector, error)
	// ForEachEmbedding calls fn for every stored vector in insertion order.
	ForEachEmbedding(ctx context.Context, fn func(id string, embedding []float32) error) error
	IDs(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
	Sources(ctx context.Context) ([]models.SourceSummary, error)
	// Clear deletes every chunk. Metadata is kept.
	Clear(ctx context.Context) error

	Meta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error

	Close() error
}

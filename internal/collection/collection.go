// Package collection implements a named, durable vector collection: chunks
// and embeddings persist in SQLite, and similarity search runs on an
// in-memory index restored from a binary snapshot.
package collection

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
)

const (
	// DefaultK is the number of chunks retrieved when k is 0.
	DefaultK = 5

	defaultEmbedBatch = 100

	dbFile       = "chunks.db"
	snapshotFile = "vectors.bin"
)

// ErrNotOpen is returned by operations on a collection that has not been opened.
var ErrNotOpen = errors.New("collection is not open")

// Collection is safe for concurrent use: writes are exclusive, retrievals share a read lock.
type Collection struct {
	name       string
	dir        string
	embedder   embedding.Embedder
	logger     *zap.Logger
	defaultK   int
	embedBatch int

	mu    sync.RWMutex
	store *storage.SQLiteStore
	index *vector.MemoryIndex
}

// Option configures a Collection.
type Option func(*Collection)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Collection) {
		c.logger = l
	}
}

// WithDefaultK sets the k used when a retrieval asks for 0.
func WithDefaultK(k int) Option {
	return func(c *Collection) {
		if k > 0 {
			c.defaultK = k
		}
	}
}

// WithEmbedBatchSize sets how many chunks are embedded per provider call.
func WithEmbedBatchSize(n int) Option {
	return func(c *Collection) {
		if n > 0 {
			c.embedBatch = n
		}
	}
}

// New returns an unopened collection stored under root/name.
func New(root, name string, embedder embedding.Embedder, opts ...Option) (*Collection, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, fmt.Errorf("invalid collection name %q", name)
	}
	if embedder == nil {
		return nil, errors.New("collection requires an embedder")
	}
	c := &Collection{
		name:       name,
		dir:        filepath.Join(root, name),
		embedder:   embedder,
		defaultK:   DefaultK,
		embedBatch: defaultEmbedBatch,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// Dir returns the directory holding the collection files.
func (c *Collection) Dir() string {
	return c.dir
}

func (c *Collection) snapshotPath() string {
	return filepath.Join(c.dir, snapshotFile)
}

// Open creates or loads the collection. Calling Open on an open collection is a no-op.
func (c *Collection) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store != nil {
		return nil
	}

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return models.StorageError("open", err)
	}
	store, err := storage.NewSQLiteStore(filepath.Join(c.dir, dbFile))
	if err != nil {
		return models.StorageError("open", err)
	}
	if err := c.checkEmbedder(ctx, store); err != nil {
		_ = store.Close()
		return models.StorageError("open", err)
	}
	index, err := vector.NewMemoryIndex(c.embedder.Dimensions())
	if err != nil {
		_ = store.Close()
		return models.StorageError("open", err)
	}
	if err := c.restore(ctx, store, index); err != nil {
		_ = store.Close()
		return models.StorageError("open", err)
	}

	c.store = store
	c.index = index
	if c.logger != nil {
		c.logger.Info("collection opened",
			zap.String("collection", c.name),
			zap.String("dir", c.dir),
			zap.Int("chunks", index.Size()),
		)
	}
	return nil
}

// checkEmbedder records the embedder on first use and rejects a different
// one while the collection holds chunks.
func (c *Collection) checkEmbedder(ctx context.Context, store *storage.SQLiteStore) error {
	name, err := store.Meta(ctx, storage.MetaEmbedder)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	dims, _ := store.Meta(ctx, storage.MetaDimensions)
	want := strconv.Itoa(c.embedder.Dimensions())
	if err == nil && (name != c.embedder.Name() || dims != want) {
		n, err := store.Count(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("collection %q was built with embedder %s (%s dimensions), configured embedder is %s (%s dimensions); reset the collection to switch",
				c.name, name, dims, c.embedder.Name(), want)
		}
	}
	if err == nil && name == c.embedder.Name() && dims == want {
		return nil
	}
	return c.writeMeta(ctx, store)
}

func (c *Collection) writeMeta(ctx context.Context, store *storage.SQLiteStore) error {
	if err := store.SetMeta(ctx, storage.MetaEmbedder, c.embedder.Name()); err != nil {
		return err
	}
	if err := store.SetMeta(ctx, storage.MetaDimensions, strconv.Itoa(c.embedder.Dimensions())); err != nil {
		return err
	}
	return store.SetMeta(ctx, storage.MetaCreatedAt, time.Now().UTC().Format(time.RFC3339))
}

// restore loads the snapshot, rebuilding it from the store when it is
// missing, unreadable or out of date.
func (c *Collection) restore(ctx context.Context, store *storage.SQLiteStore, index *vector.MemoryIndex) error {
	ids, err := store.IDs(ctx)
	if err != nil {
		return err
	}
	loadErr := index.Load(c.snapshotPath())
	if loadErr == nil && index.Size() == len(ids) && index.Has(ids...) {
		return nil
	}

	if c.logger != nil {
		fields := []zap.Field{zap.String("collection", c.name), zap.Int("chunks", len(ids))}
		if loadErr != nil {
			fields = append(fields, zap.Error(loadErr))
		}
		c.logger.Info("rebuilding vector snapshot", fields...)
	}
	index.Reset()
	var batchIDs []string
	var batchVecs [][]float32
	err = store.ForEachEmbedding(ctx, func(id string, emb []float32) error {
		batchIDs = append(batchIDs, id)
		batchVecs = append(batchVecs, emb)
		return nil
	})
	if err != nil {
		return err
	}
	if err := index.Add(ctx, batchIDs, batchVecs); err != nil {
		return err
	}
	c.saveSnapshot(index)
	return nil
}

// saveSnapshot rewrites the snapshot. Failure is logged, not returned: the
// store stays authoritative and the next Open rebuilds a stale snapshot.
func (c *Collection) saveSnapshot(index *vector.MemoryIndex) {
	if err := index.Save(c.snapshotPath()); err != nil && c.logger != nil {
		c.logger.Warn("failed to save vector snapshot",
			zap.String("collection", c.name),
			zap.Error(err),
		)
	}
}

// Store embeds chunks and appends them to the collection. Nothing is stored
// when any step fails.
func (c *Collection) Store(ctx context.Context, chunks []models.Chunk) ([]*models.IndexedVector, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		return nil, models.StorageError("store", ErrNotOpen)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	vectors, ids, embeddings, err := c.embedVectors(ctx, chunks)
	if err != nil {
		return nil, err
	}
	if err := c.index.Add(ctx, ids, embeddings); err != nil {
		return nil, models.StorageError("store", err)
	}
	if err := c.store.InsertChunks(ctx, vectors); err != nil {
		_ = c.index.Remove(context.WithoutCancel(ctx), ids)
		return nil, models.StorageError("store", err)
	}
	c.saveSnapshot(c.index)

	if c.logger != nil {
		c.logger.Debug("stored chunks",
			zap.String("collection", c.name),
			zap.Int("stored", len(vectors)),
			zap.Int("total", c.index.Size()),
		)
	}
	return vectors, nil
}

// Replace embeds chunks and swaps them in for the whole collection. The old
// contents are dropped only after every chunk is embedded and the new rows
// commit, so a failure leaves the collection as it was.
func (c *Collection) Replace(ctx context.Context, chunks []models.Chunk) ([]*models.IndexedVector, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		return nil, models.StorageError("replace", ErrNotOpen)
	}

	vectors, ids, embeddings, err := c.embedVectors(ctx, chunks)
	if err != nil {
		return nil, err
	}
	index, err := vector.NewMemoryIndex(c.embedder.Dimensions())
	if err != nil {
		return nil, models.StorageError("replace", err)
	}
	if len(ids) > 0 {
		if err := index.Add(ctx, ids, embeddings); err != nil {
			return nil, models.StorageError("replace", err)
		}
	}
	if err := c.store.ReplaceChunks(ctx, vectors); err != nil {
		return nil, models.StorageError("replace", err)
	}
	c.index = index
	c.saveSnapshot(c.index)

	if c.logger != nil {
		c.logger.Info("collection replaced",
			zap.String("collection", c.name),
			zap.Int("stored", len(vectors)),
		)
	}
	return vectors, nil
}

// embedVectors embeds chunks and assigns ids without touching the collection.
func (c *Collection) embedVectors(ctx context.Context, chunks []models.Chunk) ([]*models.IndexedVector, []string, [][]float32, error) {
	embeddings, err := c.embedAll(ctx, chunks)
	if err != nil {
		return nil, nil, nil, models.EmbeddingError("embed chunks", err)
	}
	now := time.Now()
	vectors := make([]*models.IndexedVector, len(chunks))
	ids := make([]string, len(chunks))
	for i, chunk := range chunks {
		ids[i] = uuid.NewString()
		vectors[i] = &models.IndexedVector{
			ID:        ids[i],
			Chunk:     chunk,
			Embedding: embeddings[i],
			CreatedAt: now,
		}
	}
	return vectors, ids, embeddings, nil
}

func (c *Collection) embedAll(ctx context.Context, chunks []models.Chunk) ([][]float32, error) {
	out := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += c.embedBatch {
		end := min(start+c.embedBatch, len(chunks))
		texts := make([]string, 0, end-start)
		for _, chunk := range chunks[start:end] {
			texts = append(texts, chunk.Content)
		}
		vecs, err := c.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))
		}
		for _, v := range vecs {
			if len(v) != c.embedder.Dimensions() {
				return nil, fmt.Errorf("embedder returned %d dimensions, expected %d", len(v), c.embedder.Dimensions())
			}
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// Reset removes every chunk and the snapshot, leaving an empty open collection.
func (c *Collection) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		return models.StorageError("reset", ErrNotOpen)
	}
	if err := c.store.Clear(ctx); err != nil {
		return models.StorageError("reset", err)
	}
	if err := c.writeMeta(ctx, c.store); err != nil {
		return models.StorageError("reset", err)
	}
	c.index.Reset()
	if err := os.Remove(c.snapshotPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return models.StorageError("reset", err)
	}
	if c.logger != nil {
		c.logger.Info("collection reset", zap.String("collection", c.name))
	}
	return nil
}

// Retrieve returns the k chunks most similar to query. k == 0 uses the
// default; a k above the stored count returns every chunk. An empty
// collection returns an empty result without embedding the query.
func (c *Collection) Retrieve(ctx context.Context, query string, k int) (*models.RetrievalResult, error) {
	if k < 0 {
		return nil, fmt.Errorf("%w: got %d", models.ErrInvalidK, k)
	}
	if k == 0 {
		k = c.defaultK
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.store == nil {
		return nil, models.StorageError("retrieve", ErrNotOpen)
	}
	result := &models.RetrievalResult{Query: query, Chunks: []*models.ScoredChunk{}}
	if c.index.Size() == 0 {
		return result, nil
	}

	qv, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, models.EmbeddingError("embed query", err)
	}
	hits, err := c.index.Search(ctx, qv, k)
	if err != nil {
		if errors.Is(err, vector.ErrDimensionMismatch) {
			return nil, models.EmbeddingError("embed query", err)
		}
		return nil, models.StorageError("search", err)
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	stored, err := c.store.GetChunks(ctx, ids)
	if err != nil {
		return nil, models.StorageError("load chunks", err)
	}
	for _, h := range hits {
		v, ok := stored[h.ID]
		if !ok {
			if c.logger != nil {
				c.logger.Warn("indexed chunk missing from store", zap.String("id", h.ID))
			}
			continue
		}
		result.Chunks = append(result.Chunks, &models.ScoredChunk{ID: h.ID, Chunk: v.Chunk, Score: h.Score})
	}
	return result, nil
}

// Count returns the number of stored chunks, or 0 when the collection is not open.
func (c *Collection) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.index == nil {
		return 0
	}
	return c.index.Size()
}

// Sources lists each ingested source with its chunk count.
func (c *Collection) Sources(ctx context.Context) ([]models.SourceSummary, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.store == nil {
		return nil, models.StorageError("sources", ErrNotOpen)
	}
	sources, err := c.store.Sources(ctx)
	if err != nil {
		return nil, models.StorageError("sources", err)
	}
	return sources, nil
}

// Stats describes a collection.
type Stats struct {
	Name       string                 `json:"name"`
	Dir        string                 `json:"dir"`
	Embedder   string                 `json:"embedder"`
	Dimensions int                    `json:"dimensions"`
	Chunks     int                    `json:"chunks"`
	Sources    []models.SourceSummary `json:"sources"`
	DiskBytes  int64                  `json:"disk_bytes"`
}

// Stats reports the collection size, sources and disk usage.
func (c *Collection) Stats(ctx context.Context) (*Stats, error) {
	sources, err := c.Sources(ctx)
	if err != nil {
		return nil, err
	}
	disk, err := storage.DiskUsageBytes(c.dir)
	if err != nil {
		return nil, models.StorageError("stats", err)
	}
	if sources == nil {
		sources = []models.SourceSummary{}
	}
	return &Stats{
		Name:       c.name,
		Dir:        c.dir,
		Embedder:   c.embedder.Name(),
		Dimensions: c.embedder.Dimensions(),
		Chunks:     c.Count(),
		Sources:    sources,
		DiskBytes:  disk,
	}, nil
}

// Close releases the store. The collection may be opened again.
func (c *Collection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	c.index = nil
	return err
}

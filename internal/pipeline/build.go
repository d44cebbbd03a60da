package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/answer"
	"github.com/hyperjump/kotae/internal/collection"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/metrics"
	"github.com/hyperjump/kotae/internal/trace"
)

// FromConfig builds and opens a pipeline from cfg. Trace messages go to
// OpenTelemetry spans, debug logs and m (which may be nil).
func FromConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (*Pipeline, error) {
	embedder, err := embedding.New(ctx, cfg.Embedding, logger)
	if err != nil {
		return nil, err
	}
	generator, err := llm.New(ctx, cfg.Generation, logger)
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}
	closeProviders := func() {
		_ = generator.Close()
		_ = embedder.Close()
	}

	chunker, err := indexer.NewChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	if err != nil {
		closeProviders()
		return nil, err
	}
	sink := trace.Multi(trace.SpanSink{}, trace.LogSink{Logger: logger}, m)

	coll, err := collection.New(cfg.Storage.CollectionDir, cfg.Storage.CollectionName, embedder,
		collection.WithLogger(logger),
		collection.WithDefaultK(cfg.Retrieval.DefaultK),
	)
	if err != nil {
		closeProviders()
		return nil, err
	}
	if err := coll.Open(ctx); err != nil {
		closeProviders()
		return nil, err
	}
	m.CollectionSize(coll.Count())

	coordinator := indexer.NewCoordinator(extract.NewDefaultRegistry(), chunker,
		indexer.WithLogger(logger),
		indexer.WithWorkers(cfg.Ingest.Workers),
		indexer.WithExtensions(cfg.Ingest.Extensions),
		indexer.WithSink(sink),
	)
	return New(coordinator, coll, answer.NewGenerator(generator, answer.WithLogger(logger)),
		WithLogger(logger),
		WithSink(sink),
		WithMetrics(m),
		WithCloser(embedder.Close),
		WithCloser(generator.Close),
	), nil
}

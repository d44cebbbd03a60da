// Package pipeline runs the two user actions, ingesting documents and asking
// questions, across the extraction, collection and answer stages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/answer"
	"github.com/hyperjump/kotae/internal/collection"
	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/metrics"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/session"
	"github.com/hyperjump/kotae/internal/trace"
)

// Pipeline is safe for concurrent use. Ingests are serialized by the
// collection; questions run concurrently.
type Pipeline struct {
	coordinator *indexer.Coordinator
	collection  *collection.Collection
	answerer    *answer.Generator
	sink        trace.Sink
	metrics     *metrics.Metrics
	logger      *zap.Logger
	closers     []func() error
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithSink sets where DOCUMENTS_STORED, RETRIEVAL_RESULT and ANSWER_GENERATED
// messages are recorded.
func WithSink(s trace.Sink) Option {
	return func(p *Pipeline) {
		if s != nil {
			p.sink = s
		}
	}
}

// WithMetrics records ingestion and question metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithCloser registers a function run by Close, e.g. to release a provider client.
func WithCloser(fn func() error) Option {
	return func(p *Pipeline) { p.closers = append(p.closers, fn) }
}

// New assembles a pipeline. The collection must already be open.
func New(coordinator *indexer.Coordinator, coll *collection.Collection, answerer *answer.Generator, opts ...Option) *Pipeline {
	p := &Pipeline{
		coordinator: coordinator,
		collection:  coll,
		answerer:    answerer,
		sink:        trace.Nop,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IngestOptions controls an ingest.
type IngestOptions struct {
	// Fresh replaces the collection contents with the new batch.
	Fresh bool
}

// FailureReport is a file that could not be ingested.
type FailureReport struct {
	Path   string `json:"path"`
	Source string `json:"source"`
	Error  string `json:"error"`
}

// IngestReport summarizes one ingest.
type IngestReport struct {
	TraceID      string               `json:"trace_id"`
	Collection   string               `json:"collection"`
	Files        []indexer.FileResult `json:"files"`
	Failures     []FailureReport      `json:"failures"`
	ChunksStored int                  `json:"chunks_stored"`
	TotalChunks  int                  `json:"total_chunks"`
	Fresh        bool                 `json:"fresh"`
}

// Ingest extracts, chunks, embeds and stores paths. Files that cannot be
// parsed are reported and skipped; embedding or storage failures abort the
// ingest and leave the collection unchanged.
func (p *Pipeline) Ingest(ctx context.Context, paths []string, opts IngestOptions) (*IngestReport, error) {
	batch, err := p.coordinator.Ingest(ctx, paths)
	if err != nil {
		return nil, err
	}
	p.metrics.FilesIngested(len(batch.Files), len(batch.Failures))

	store := p.collection.Store
	if opts.Fresh {
		store = p.collection.Replace
	}
	stored, err := store(ctx, batch.Chunks)
	if err != nil {
		if p.logger != nil {
			p.logger.Error("failed to store batch",
				zap.String("trace_id", batch.TraceID),
				zap.Int("chunks", len(batch.Chunks)),
				zap.Error(err),
			)
		}
		return nil, err
	}

	ids := make([]string, len(stored))
	for i, v := range stored {
		ids[i] = v.ID
	}
	p.sink.Record(ctx, trace.New(trace.AgentRetrieval, trace.AgentCoordinator, trace.TypeDocumentsStored,
		trace.DocumentsStored{Collection: p.collection.Name(), Stored: len(stored), IDs: ids},
		batch.TraceID,
	))
	total := p.collection.Count()
	p.metrics.ChunksStored(len(stored), total)

	report := &IngestReport{
		TraceID:      batch.TraceID,
		Collection:   p.collection.Name(),
		Files:        batch.Files,
		Failures:     make([]FailureReport, len(batch.Failures)),
		ChunksStored: len(stored),
		TotalChunks:  total,
		Fresh:        opts.Fresh,
	}
	if report.Files == nil {
		report.Files = []indexer.FileResult{}
	}
	for i, f := range batch.Failures {
		report.Failures[i] = FailureReport{Path: f.Path, Source: f.Source, Error: f.Err.Error()}
	}
	if p.logger != nil {
		p.logger.Info("ingest complete",
			zap.String("trace_id", batch.TraceID),
			zap.Int("files", len(batch.Files)),
			zap.Int("failures", len(batch.Failures)),
			zap.Int("chunks_stored", len(stored)),
			zap.Int("total_chunks", total),
		)
	}
	return report, nil
}

// Ask answers question from the k most relevant chunks (0 means the default
// k). The turn is appended to sess when it is not nil. An empty collection
// still produces an answer.
func (p *Pipeline) Ask(ctx context.Context, sess *session.Session, question string, k int) (turn *session.Turn, err error) {
	start := time.Now()
	defer func() { p.metrics.Question(err, time.Since(start)) }()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, models.ErrEmptyQuestion
	}
	result, err := p.collection.Retrieve(ctx, question, k)
	if err != nil {
		return nil, err
	}
	chunks := result.PlainChunks()

	traceID := trace.NewID()
	retrieval := trace.New(trace.AgentRetrieval, trace.AgentLLMResponse, trace.TypeRetrievalResult,
		trace.RetrievalResult{
			Query:            question,
			RetrievedContext: result.Contents(),
			Sources:          answer.Sources(chunks),
		},
		traceID,
	)
	p.sink.Record(ctx, retrieval)

	ans, err := p.answerer.Answer(ctx, question, chunks)
	if err != nil {
		if p.logger != nil {
			p.logger.Error("failed to generate answer", zap.String("trace_id", traceID), zap.Error(err))
		}
		return nil, err
	}
	p.sink.Record(ctx, trace.New(trace.AgentLLMResponse, trace.AgentCoordinator, trace.TypeAnswerGenerated,
		trace.AnswerGenerated{Answer: ans.Text, Sources: ans.Sources},
		traceID,
	))

	turn = &session.Turn{
		Question: question,
		Answer:   ans.Text,
		Sources:  ans.Sources,
		Trace:    retrieval,
		AskedAt:  start,
	}
	if sess != nil {
		sess.Append(*turn)
	}
	if p.logger != nil {
		p.logger.Info("question answered",
			zap.String("trace_id", traceID),
			zap.Int("chunks", len(chunks)),
			zap.Strings("sources", ans.Sources),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	return turn, nil
}

// Reset empties the collection.
func (p *Pipeline) Reset(ctx context.Context) error {
	if err := p.collection.Reset(ctx); err != nil {
		return err
	}
	p.metrics.CollectionSize(0)
	return nil
}

// Status describes the pipeline's collection and providers.
type Status struct {
	Collection *collection.Stats `json:"collection"`
	Generator  string            `json:"generator"`
}

// Status reports collection statistics and the configured providers.
func (p *Pipeline) Status(ctx context.Context) (*Status, error) {
	stats, err := p.collection.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{Collection: stats, Generator: p.answerer.Name()}, nil
}

// Close closes the collection and runs registered closers in reverse order.
func (p *Pipeline) Close() error {
	errs := []error{p.collection.Close()}
	for i := len(p.closers) - 1; i >= 0; i-- {
		errs = append(errs, p.closers[i]())
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close pipeline: %w", err)
	}
	return nil
}

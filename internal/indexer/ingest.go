package indexer

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/trace"
)

// TextExtractor turns a file into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// FileResult summarizes one successfully parsed file.
type FileResult struct {
	Path   string `json:"path"`
	Source string `json:"source"`
	Chunks int    `json:"chunks"`
}

// FileFailure is a file that could not be ingested. Err matches
// models.ErrUnsupportedFormat or models.ErrExtraction.
type FileFailure struct {
	Path   string
	Source string
	Err    error
}

// Batch is the outcome of ingesting a set of files.
type Batch struct {
	TraceID  string
	Chunks   []models.Chunk
	Files    []FileResult
	Failures []FileFailure
	// Message is the DOCUMENT_PARSED message emitted for the batch.
	Message trace.Message
}

// Coordinator extracts and chunks batches of files. A failing file is
// recorded and skipped; the rest of the batch is still processed.
type Coordinator struct {
	extractor  TextExtractor
	chunker    *Chunker
	extensions []string
	workers    int
	sink       trace.Sink
	logger     *zap.Logger // optional; when set, logs debug events
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = l }
}

// WithWorkers sets how many files are extracted concurrently.
func WithWorkers(n int) CoordinatorOption {
	return func(c *Coordinator) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithExtensions restricts ingestion to the listed extensions (case-insensitive).
func WithExtensions(exts []string) CoordinatorOption {
	return func(c *Coordinator) { c.extensions = exts }
}

// WithSink sets where DOCUMENT_PARSED messages are recorded.
func WithSink(s trace.Sink) CoordinatorOption {
	return func(c *Coordinator) { c.sink = s }
}

// NewCoordinator creates a coordinator. By default it runs one worker and
// records messages nowhere.
func NewCoordinator(extractor TextExtractor, chunker *Chunker, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		extractor: extractor,
		chunker:   chunker,
		workers:   1,
		sink:      trace.Nop,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type fileOutcome struct {
	chunks []models.Chunk
	err    error
}

// Ingest extracts and chunks every file in paths. Chunks are returned in input
// order even though files are extracted concurrently. Per-file failures are
// collected in the batch; the returned error is non-nil only when ctx ends.
// Exactly one DOCUMENT_PARSED message with a fresh trace id is emitted.
func (c *Coordinator) Ingest(ctx context.Context, paths []string) (*Batch, error) {
	start := time.Now()
	outcomes := make([]fileOutcome, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = c.ingestFile(gctx, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	batch := &Batch{TraceID: trace.NewID()}
	payload := trace.DocumentParsed{}
	for i, path := range paths {
		source := filepath.Base(path)
		out := outcomes[i]
		if out.err != nil {
			batch.Failures = append(batch.Failures, FileFailure{Path: path, Source: source, Err: out.err})
			payload.Failures = append(payload.Failures, trace.FileFailure{Path: path, Source: source, Error: out.err.Error()})
			if c.logger != nil {
				c.logger.Warn("ingest file failed", zap.String("path", path), zap.Error(out.err))
			}
			continue
		}
		batch.Chunks = append(batch.Chunks, out.chunks...)
		batch.Files = append(batch.Files, FileResult{Path: path, Source: source, Chunks: len(out.chunks)})
	}
	payload.Documents = batch.Chunks

	batch.Message = trace.New(trace.AgentIngestion, trace.AgentRetrieval, trace.TypeDocumentParsed, payload, batch.TraceID)
	c.sink.Record(ctx, batch.Message)

	if c.logger != nil {
		c.logger.Debug("ingest batch parsed",
			zap.String("trace_id", batch.TraceID),
			zap.Int("files", len(paths)),
			zap.Int("failed", len(batch.Failures)),
			zap.Int("chunks", len(batch.Chunks)),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	return batch, nil
}

func (c *Coordinator) ingestFile(ctx context.Context, path string) fileOutcome {
	ext := strings.ToLower(filepath.Ext(path))
	if len(c.extensions) > 0 && !extensionAllowed(ext, c.extensions) {
		return fileOutcome{err: &extract.UnsupportedFormatError{Path: path, Ext: ext}}
	}
	text, err := c.extractor.Extract(ctx, path)
	if err != nil {
		if !errors.Is(err, models.ErrUnsupportedFormat) && !errors.Is(err, models.ErrExtraction) && ctx.Err() == nil {
			err = &extract.ExtractionError{Path: path, Err: err}
		}
		return fileOutcome{err: err}
	}
	chunks := c.chunker.Split(text, filepath.Base(path))
	if c.logger != nil {
		c.logger.Debug("file chunked", zap.String("path", path), zap.Int("chunks", len(chunks)))
	}
	return fileOutcome{chunks: chunks}
}

func extensionAllowed(ext string, allowed []string) bool {
	for _, a := range allowed {
		a = strings.ToLower(a)
		if a != "" && a[0] != '.' {
			a = "." + a
		}
		if a == ext {
			return true
		}
	}
	return false
}

// Errs returns the errors of every failure, for use with errors.Join.
func (b *Batch) Errs() []error {
	errs := make([]error, len(b.Failures))
	for i, f := range b.Failures {
		errs[i] = f.Err
	}
	return errs
}

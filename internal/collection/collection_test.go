package collection

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
)

// stubEmbedder wraps the hashing embedder, counting calls and optionally failing.
type stubEmbedder struct {
	*embedding.HashingEmbedder
	mu    sync.Mutex
	calls int
	err   error
}

func newStub(dims int) *stubEmbedder {
	return &stubEmbedder{HashingEmbedder: embedding.NewHashingEmbedder(dims)}
}

func (s *stubEmbedder) record() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := s.record(); err != nil {
		return nil, err
	}
	return s.HashingEmbedder.Embed(ctx, text)
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := s.record(); err != nil {
		return nil, err
	}
	return s.HashingEmbedder.EmbedBatch(ctx, texts)
}

func openTest(t *testing.T, root string, e embedding.Embedder, opts ...Option) *Collection {
	t.Helper()
	c, err := New(root, "documents", e, opts...)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

var sample = []models.Chunk{
	{Content: "Paris is the capital of France.", Source: "notes.txt", Index: 0},
	{Content: "The Nile is the longest river in Africa.", Source: "notes.txt", Index: 1},
	{Content: "Quarterly revenue grew by twelve percent.", Source: "report.pdf", Index: 0},
}

func TestCollection_StoreRetrieve(t *testing.T) {
	c := openTest(t, t.TempDir(), newStub(256))
	ctx := context.Background()

	stored, err := c.Store(ctx, sample)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 3 || stored[0].ID == "" || stored[0].ID == stored[1].ID {
		t.Fatalf("expected 3 vectors with unique IDs, got %+v", stored)
	}
	if c.Count() != 3 {
		t.Errorf("Count: %d", c.Count())
	}

	for _, chunk := range sample {
		res, err := c.Retrieve(ctx, chunk.Content, 1)
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Chunks) != 1 || res.Chunks[0].Chunk != chunk {
			t.Errorf("chunk should retrieve itself first: %q got %+v", chunk.Content, res.Chunks)
		}
	}

	res, err := c.Retrieve(ctx, "What is the capital of France?", 2)
	if err != nil {
		t.Fatal(err)
	}
	if res.Query != "What is the capital of France?" || res.Chunks[0].Chunk.Source != "notes.txt" {
		t.Errorf("unexpected top result: %+v", res.Chunks[0])
	}
	if res.Chunks[0].Score < res.Chunks[1].Score {
		t.Error("results must be ordered by descending score")
	}
}

func TestCollection_Retrieve_k(t *testing.T) {
	c := openTest(t, t.TempDir(), newStub(64), WithDefaultK(2))
	ctx := context.Background()
	_, _ = c.Store(ctx, append(sample, models.Chunk{Content: "extra", Source: "x.md"}))

	tests := []struct {
		name     string
		k        int
		expected int
	}{
		{"zero uses default", 0, 2},
		{"explicit", 1, 1},
		{"above stored count", 10, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := c.Retrieve(ctx, "capital", tt.k)
			if err != nil {
				t.Fatal(err)
			}
			if len(res.Chunks) != tt.expected {
				t.Errorf("got %d chunks, want %d", len(res.Chunks), tt.expected)
			}
		})
	}

	if _, err := c.Retrieve(ctx, "capital", -1); !errors.Is(err, models.ErrInvalidK) {
		t.Errorf("negative k: got %v", err)
	}
}

func TestCollection_Retrieve_fewerThanK(t *testing.T) {
	c := openTest(t, t.TempDir(), newStub(64))
	_, _ = c.Store(context.Background(), sample[:2])
	res, err := c.Retrieve(context.Background(), "anything", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Chunks) != 2 {
		t.Errorf("expected all 2 chunks, got %d", len(res.Chunks))
	}
}

func TestCollection_Retrieve_largeK(t *testing.T) {
	c := openTest(t, t.TempDir(), newStub(64))
	chunks := make([]models.Chunk, 60)
	for i := range chunks {
		chunks[i] = models.Chunk{Content: fmt.Sprintf("topic note %d", i), Source: "notes.txt", Index: i}
	}
	if _, err := c.Store(context.Background(), chunks); err != nil {
		t.Fatal(err)
	}
	res, err := c.Retrieve(context.Background(), "topic", 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Chunks) != 60 {
		t.Errorf("k=100 over 60 chunks: got %d, want all 60", len(res.Chunks))
	}
}

func TestCollection_Retrieve_empty(t *testing.T) {
	e := newStub(64)
	c := openTest(t, t.TempDir(), e)
	res, err := c.Retrieve(context.Background(), "anything", 5)
	if err != nil {
		t.Fatal(err)
	}
	if res.Chunks == nil || len(res.Chunks) != 0 {
		t.Errorf("expected empty non-nil result, got %#v", res.Chunks)
	}
	if e.calls != 0 {
		t.Errorf("empty collection should not call the embedder, got %d calls", e.calls)
	}
}

func TestCollection_embeddingFailure(t *testing.T) {
	e := newStub(64)
	c := openTest(t, t.TempDir(), e)
	ctx := context.Background()
	_, _ = c.Store(ctx, sample)

	e.err = errors.New("rate limited")
	if _, err := c.Store(ctx, sample); !errors.Is(err, models.ErrEmbeddingService) {
		t.Errorf("Store: expected embedding service error, got %v", err)
	}
	if c.Count() != 3 {
		t.Errorf("failed store must not change the collection, count %d", c.Count())
	}
	if _, err := c.Retrieve(ctx, "capital", 1); !errors.Is(err, models.ErrEmbeddingService) {
		t.Errorf("Retrieve: expected embedding service error, got %v", err)
	}
}

func TestCollection_accumulatesAndPersists(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	c := openTest(t, root, newStub(64))
	_, _ = c.Store(ctx, sample[:1])
	_, _ = c.Store(ctx, sample[1:])
	if c.Count() != 3 {
		t.Fatalf("stores should accumulate, count %d", c.Count())
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, "documents", "vectors.bin")); err != nil {
		t.Errorf("snapshot missing: %v", err)
	}

	reopened := openTest(t, root, newStub(64))
	if reopened.Count() != 3 {
		t.Fatalf("reopened count: %d", reopened.Count())
	}
	res, _ := reopened.Retrieve(ctx, sample[2].Content, 1)
	if res.Chunks[0].Chunk != sample[2] {
		t.Errorf("reopened retrieval: %+v", res.Chunks[0])
	}
	sources, err := reopened.Sources(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 2 || sources[0].Source != "notes.txt" || sources[0].Chunks != 2 {
		t.Errorf("Sources: %+v", sources)
	}
}

func TestCollection_rebuildsStaleSnapshot(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	c := openTest(t, root, newStub(64))
	_, _ = c.Store(ctx, sample)
	_ = c.Close()

	snapshot := filepath.Join(root, "documents", "vectors.bin")
	if err := os.WriteFile(snapshot, []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}
	reopened := openTest(t, root, newStub(64))
	if reopened.Count() != 3 {
		t.Errorf("corrupt snapshot should be rebuilt, count %d", reopened.Count())
	}
	_ = reopened.Close()

	if err := os.Remove(snapshot); err != nil {
		t.Fatal(err)
	}
	again := openTest(t, root, newStub(64))
	if again.Count() != 3 {
		t.Errorf("missing snapshot should be rebuilt, count %d", again.Count())
	}
}

func TestCollection_embedderMismatch(t *testing.T) {
	root := t.TempDir()
	c := openTest(t, root, newStub(64))
	_, _ = c.Store(context.Background(), sample)
	_ = c.Close()

	other, _ := New(root, "documents", newStub(32))
	err := other.Open(context.Background())
	if !errors.Is(err, models.ErrIndexStorage) {
		t.Fatalf("expected storage error for embedder mismatch, got %v", err)
	}
}

func TestCollection_Reset(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	c := openTest(t, root, newStub(64))
	_, _ = c.Store(ctx, sample)

	if err := c.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if c.Count() != 0 {
		t.Errorf("count after reset: %d", c.Count())
	}
	_, _ = c.Store(ctx, sample[:1])
	_ = c.Close()

	reopened := openTest(t, root, newStub(64))
	if reopened.Count() != 1 {
		t.Errorf("reset then store: count %d", reopened.Count())
	}
}

func TestCollection_Replace(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	e := newStub(64)
	c := openTest(t, root, e)
	_, _ = c.Store(ctx, sample)

	e.err = errors.New("quota exceeded")
	if _, err := c.Replace(ctx, sample[:1]); !errors.Is(err, models.ErrEmbeddingService) {
		t.Fatalf("expected embedding service error, got %v", err)
	}
	if c.Count() != 3 {
		t.Errorf("failed replace must not change the collection, count %d", c.Count())
	}

	e.err = nil
	stored, err := c.Replace(ctx, sample[2:])
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 || c.Count() != 1 {
		t.Errorf("replace: stored %d, count %d", len(stored), c.Count())
	}
	_ = c.Close()

	reopened := openTest(t, root, newStub(64))
	sources, _ := reopened.Sources(ctx)
	if reopened.Count() != 1 || len(sources) != 1 || sources[0].Source != sample[2].Source {
		t.Errorf("reopened after replace: count %d, sources %+v", reopened.Count(), sources)
	}
}

func TestCollection_emptyMaySwitchEmbedder(t *testing.T) {
	root := t.TempDir()
	c := openTest(t, root, newStub(64))
	_, _ = c.Store(context.Background(), sample)
	_ = c.Reset(context.Background())
	_ = c.Close()

	other := openTest(t, root, newStub(32))
	if _, err := other.Store(context.Background(), sample[:1]); err != nil {
		t.Errorf("empty collection should accept a new embedder: %v", err)
	}
}

func TestCollection_openIsIdempotent(t *testing.T) {
	c := openTest(t, t.TempDir(), newStub(64))
	_, _ = c.Store(context.Background(), sample)
	if err := c.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	if c.Count() != 3 {
		t.Errorf("second Open must not reset state, count %d", c.Count())
	}
}

func TestCollection_notOpen(t *testing.T) {
	c, _ := New(t.TempDir(), "documents", newStub(8))
	if _, err := c.Store(context.Background(), sample); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Store before Open: %v", err)
	}
	if _, err := c.Retrieve(context.Background(), "q", 1); !errors.Is(err, models.ErrIndexStorage) {
		t.Errorf("Retrieve before Open: %v", err)
	}
	if c.Count() != 0 {
		t.Error("Count before Open should be 0")
	}
}

func TestNew_invalidName(t *testing.T) {
	for _, name := range []string{"", "..", "a/b"} {
		if _, err := New(t.TempDir(), name, newStub(8)); err == nil {
			t.Errorf("expected error for name %q", name)
		}
	}
}

func TestCollection_Stats(t *testing.T) {
	c := openTest(t, t.TempDir(), newStub(16))
	_, _ = c.Store(context.Background(), sample)
	st, err := c.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Chunks != 3 || st.Embedder != "hashing/16" || st.Dimensions != 16 || st.DiskBytes == 0 || len(st.Sources) != 2 {
		t.Errorf("Stats: %+v", st)
	}
}

func TestCollection_concurrentReaders(t *testing.T) {
	c := openTest(t, t.TempDir(), newStub(64))
	ctx := context.Background()
	_, _ = c.Store(ctx, sample)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Retrieve(ctx, "capital of France", 2); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := c.Store(ctx, sample[:1]); err != nil {
			t.Error(err)
		}
	}()
	wg.Wait()
	if c.Count() != 4 {
		t.Errorf("count after concurrent store: %d", c.Count())
	}
}

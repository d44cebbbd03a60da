package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/openai/openai-go/option"

	"github.com/hyperjump/kotae/internal/config"
)

// fakeOpenAI serves /embeddings, returning vectors in reverse index order.
func fakeOpenAI(t *testing.T, dims int, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded","type":"insufficient_quota"}}`))
			return
		}
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		type item struct {
			Object    string    `json:"object"`
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		}
		var data []item
		for i := len(req.Input) - 1; i >= 0; i-- {
			v := make([]float64, dims)
			v[0] = float64(len(req.Input[i]))
			data = append(data, item{Object: "embedding", Index: i, Embedding: v})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
}

func TestOpenAIEmbedder_EmbedBatch(t *testing.T) {
	srv := fakeOpenAI(t, 4, http.StatusOK)
	defer srv.Close()

	e, err := NewOpenAIEmbedder("test-key", srv.URL+"/", "text-embedding-3-small", 4, option.WithMaxRetries(0))
	if err != nil {
		t.Fatal(err)
	}
	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "bbb", "cc"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	want := []float32{1, 3, 2}
	for i, v := range vecs {
		if v[0] != want[i] {
			t.Errorf("vector %d placed out of order: %v", i, v)
		}
	}
	if e.Name() != "openai/text-embedding-3-small" {
		t.Errorf("Name: %s", e.Name())
	}
}

func TestOpenAIEmbedder_dimensionMismatch(t *testing.T) {
	srv := fakeOpenAI(t, 3, http.StatusOK)
	defer srv.Close()
	e, _ := NewOpenAIEmbedder("k", srv.URL+"/", "m", 8, option.WithMaxRetries(0))
	if _, err := e.Embed(context.Background(), "x"); err == nil || !strings.Contains(err.Error(), "dimensions") {
		t.Errorf("expected dimension error, got %v", err)
	}
}

func TestOpenAIEmbedder_serviceError(t *testing.T) {
	srv := fakeOpenAI(t, 4, http.StatusTooManyRequests)
	defer srv.Close()
	e, _ := NewOpenAIEmbedder("k", srv.URL+"/", "m", 4, option.WithMaxRetries(0))
	if _, err := e.Embed(context.Background(), "x"); err == nil {
		t.Error("expected error from 429 response")
	}
}

func TestThrottledEmbedder(t *testing.T) {
	e := NewThrottledEmbedder(NewHashingEmbedder(8), 1000, time.Second)
	if _, err := e.Embed(context.Background(), "hello"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.EmbedBatch(context.Background(), []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}

	slow := NewThrottledEmbedder(NewHashingEmbedder(8), 0.001, 0)
	_, _ = slow.Embed(context.Background(), "spend the only token")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := slow.Embed(ctx, "must wait"); err == nil {
		t.Error("expected limiter wait to fail before the deadline")
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	e, err := New(ctx, config.EmbeddingConfig{Provider: "hashing", Dimensions: 32, CacheSize: 10}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.(*CachedEmbedder); !ok {
		t.Errorf("expected cache wrapper, got %T", e)
	}
	if e.Dimensions() != 32 {
		t.Errorf("dimensions: %d", e.Dimensions())
	}

	if _, err := New(ctx, config.EmbeddingConfig{Provider: "word2vec"}, nil); err == nil {
		t.Error("expected error for unknown provider")
	}

	t.Setenv("KOTAE_TEST_EMPTY_KEY", "")
	_, err = New(ctx, config.EmbeddingConfig{Provider: "gemini", Model: "embedding-001", Dimensions: 768, APIKeyEnv: "KOTAE_TEST_EMPTY_KEY"}, nil)
	if err == nil || !strings.Contains(err.Error(), "KOTAE_TEST_EMPTY_KEY") {
		t.Errorf("missing key should name the env variable, got %v", err)
	}

	srv := fakeOpenAI(t, 4, http.StatusOK)
	defer srv.Close()
	t.Setenv("KOTAE_TEST_OPENAI_KEY", "k")
	e, err = New(ctx, config.EmbeddingConfig{Provider: "openai", Model: "m", Dimensions: 4, APIKeyEnv: "KOTAE_TEST_OPENAI_KEY", BaseURL: srv.URL + "/", RequestsPerSecond: 100}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.(*ThrottledEmbedder); !ok {
		t.Errorf("remote embedder should be throttled, got %T", e)
	}
	if _, err := e.Embed(ctx, "hi"); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Embed through factory: %v", err)
	}
}

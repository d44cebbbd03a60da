package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaioption "github.com/openai/openai-go/option"

	"github.com/hyperjump/kotae/internal/config"
)

func jsonServer(t *testing.T, path string, status int, body any, got *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, path) {
			http.NotFound(w, r)
			return
		}
		if got != nil {
			_ = json.NewDecoder(r.Body).Decode(got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
}

func TestOpenAIGenerator(t *testing.T) {
	var req map[string]any
	srv := jsonServer(t, "/chat/completions", http.StatusOK, map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": "  Paris  "},
		}},
	}, &req)
	defer srv.Close()

	g, err := NewOpenAIGenerator("k", srv.URL+"/", "gpt-4o-mini", 64, openaioption.WithMaxRetries(0))
	if err != nil {
		t.Fatal(err)
	}
	out, err := g.Generate(context.Background(), "What is the capital of France?")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "  Paris  " {
		t.Errorf("got %q", out)
	}
	if req["model"] != "gpt-4o-mini" {
		t.Errorf("request model: %v", req["model"])
	}
	if g.Name() != "openai/gpt-4o-mini" {
		t.Errorf("Name: %s", g.Name())
	}
}

func TestOpenAIGenerator_error(t *testing.T) {
	srv := jsonServer(t, "/chat/completions", http.StatusUnauthorized, map[string]any{
		"error": map[string]any{"message": "bad key", "type": "invalid_request_error"},
	}, nil)
	defer srv.Close()
	g, _ := NewOpenAIGenerator("k", srv.URL+"/", "m", 0, openaioption.WithMaxRetries(0))
	if _, err := g.Generate(context.Background(), "x"); err == nil {
		t.Error("expected error")
	}
}

func TestAnthropicGenerator(t *testing.T) {
	var req map[string]any
	srv := jsonServer(t, "/v1/messages", http.StatusOK, map[string]any{
		"id":          "msg_1",
		"type":        "message",
		"role":        "assistant",
		"model":       "claude-3-5-haiku-latest",
		"stop_reason": "end_turn",
		"content": []map[string]any{
			{"type": "text", "text": "Paris is "},
			{"type": "text", "text": "the capital."},
		},
		"usage": map[string]any{"input_tokens": 10, "output_tokens": 4},
	}, &req)
	defer srv.Close()

	g, err := NewAnthropicGenerator("k", srv.URL+"/", "claude-3-5-haiku-latest", 0, anthropicoption.WithMaxRetries(0))
	if err != nil {
		t.Fatal(err)
	}
	out, err := g.Generate(context.Background(), "q")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "Paris is the capital." {
		t.Errorf("got %q", out)
	}
	if req["max_tokens"] != float64(defaultAnthropicMaxTokens) {
		t.Errorf("max_tokens: %v", req["max_tokens"])
	}
}

// slowGenerator blocks until its context ends.
type slowGenerator struct{ *ExtractiveGenerator }

func (slowGenerator) Generate(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestWithTimeout(t *testing.T) {
	g := WithTimeout(slowGenerator{NewExtractiveGenerator()}, 10*time.Millisecond)
	start := time.Now()
	if _, err := g.Generate(context.Background(), "x"); err == nil {
		t.Error("expected deadline error")
	}
	if time.Since(start) > time.Second {
		t.Error("timeout not applied")
	}
	if WithTimeout(NewExtractiveGenerator(), 0).Name() != "extractive" {
		t.Error("zero timeout should return the generator unchanged")
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	g, err := New(ctx, config.GenerationConfig{Provider: "extractive"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if g.Name() != "extractive" {
		t.Errorf("Name: %s", g.Name())
	}
	if _, err := New(ctx, config.GenerationConfig{Provider: "llama"}, nil); err == nil {
		t.Error("expected error for unknown provider")
	}
	t.Setenv("KOTAE_TEST_EMPTY_KEY", "")
	for _, p := range []string{"gemini", "anthropic"} {
		_, err := New(ctx, config.GenerationConfig{Provider: p, Model: "m", APIKeyEnv: "KOTAE_TEST_EMPTY_KEY"}, nil)
		if err == nil || !strings.Contains(err.Error(), "KOTAE_TEST_EMPTY_KEY") {
			t.Errorf("%s: missing key should name the env variable, got %v", p, err)
		}
	}
}

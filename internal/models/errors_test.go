package models

import (
	"errors"
	"io"
	"testing"
)

func TestServiceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"embedding", EmbeddingError("embed query", io.ErrUnexpectedEOF), ErrEmbeddingService},
		{"generation", GenerationError("generate", io.ErrUnexpectedEOF), ErrGenerationService},
		{"storage", StorageError("open", io.ErrUnexpectedEOF), ErrIndexStorage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.kind) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.kind)
			}
			if !errors.Is(tt.err, io.ErrUnexpectedEOF) {
				t.Error("cause should be reachable through Unwrap")
			}
			var se *ServiceError
			if !errors.As(tt.err, &se) {
				t.Fatal("expected *ServiceError")
			}
			if se.Op == "" {
				t.Error("op should be set")
			}
		})
	}
	if errors.Is(EmbeddingError("x", io.EOF), ErrGenerationService) {
		t.Error("embedding error must not match generation kind")
	}
}

func TestRetrievalResult_Contents(t *testing.T) {
	r := &RetrievalResult{Chunks: []*ScoredChunk{
		{Chunk: Chunk{Content: "a", Source: "x.txt"}},
		{Chunk: Chunk{Content: "b", Source: "y.txt"}},
	}}
	got := r.Contents()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Contents: got %v", got)
	}
	if plain := r.PlainChunks(); len(plain) != 2 || plain[1].Source != "y.txt" {
		t.Errorf("PlainChunks: got %v", plain)
	}
}

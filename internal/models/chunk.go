// Package models defines core data structures for chunks, retrieval results, and answers.
package models

import "time"

// Chunk is a bounded segment of extracted text with its source provenance.
type Chunk struct {
	Content string `json:"content"`
	// Source is the base name of the file the chunk was extracted from.
	Source string `json:"source"`
	// Index is the position of the chunk within its source.
	Index int `json:"index"`
}

// IndexedVector is a stored chunk with its embedding and storage-assigned ID.
type IndexedVector struct {
	ID        string    `json:"id" db:"id"`
	Chunk     Chunk     `json:"chunk"`
	Embedding []float32 `json:"-" db:"-"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ScoredChunk is a retrieved chunk with its similarity to the query.
type ScoredChunk struct {
	ID    string  `json:"id"`
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// RetrievalResult is an ordered set of chunks, most similar first.
type RetrievalResult struct {
	Query  string         `json:"query"`
	Chunks []*ScoredChunk `json:"chunks"`
}

// Contents returns the chunk contents in retrieval order.
func (r *RetrievalResult) Contents() []string {
	out := make([]string, 0, len(r.Chunks))
	for _, c := range r.Chunks {
		out = append(out, c.Chunk.Content)
	}
	return out
}

// PlainChunks returns the retrieved chunks without scores.
func (r *RetrievalResult) PlainChunks() []Chunk {
	out := make([]Chunk, 0, len(r.Chunks))
	for _, c := range r.Chunks {
		out = append(out, c.Chunk)
	}
	return out
}

// Answer is a generated response with the sources it was grounded on.
type Answer struct {
	Text    string   `json:"answer"`
	Sources []string `json:"sources"`
}

// SourceSummary describes one ingested source in a collection.
type SourceSummary struct {
	Source string `json:"source"`
	Chunks int    `json:"chunks"`
}

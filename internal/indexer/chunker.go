// Package indexer splits extracted documents into chunks and coordinates batch ingestion.
package indexer

import (
	"fmt"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// DefaultSeparators are tried in order: paragraph, line, sentence, word, character.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Chunker splits text recursively on natural boundaries into chunks of at most
// chunkSize characters, repeating up to chunkOverlap characters between
// consecutive chunks. Sizes are measured in runes.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// NewChunker creates a chunker with the given size and overlap (in characters).
// The overlap must be smaller than the chunk size.
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be in [0, %d)", chunkOverlap, chunkSize)
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   DefaultSeparators,
	}, nil
}

// Split returns the chunks of text in order, each tagged with source.
// Blank input yields no chunks.
func (c *Chunker) Split(text, source string) []models.Chunk {
	pieces := c.splitRecursive(text, c.separators)
	chunks := make([]models.Chunk, 0, len(pieces))
	for _, p := range pieces {
		chunks = append(chunks, models.Chunk{
			Content: p,
			Source:  source,
			Index:   len(chunks),
		})
	}
	return chunks
}

// splitRecursive splits on the first separator present in text, merges the
// small pieces and recurses into pieces that are still too large with the
// remaining, finer separators.
func (c *Chunker) splitRecursive(text string, separators []string) []string {
	sep := ""
	var finer []string
	for i, s := range separators {
		if s == "" {
			break
		}
		if strings.Contains(text, s) {
			sep = s
			finer = separators[i+1:]
			break
		}
	}

	var out, pending []string
	for _, piece := range splitKeepSeparator(text, sep) {
		if utils.RuneLen(piece) <= c.chunkSize {
			pending = append(pending, piece)
			continue
		}
		if len(pending) > 0 {
			out = append(out, c.merge(pending)...)
			pending = nil
		}
		if len(finer) == 0 {
			out = append(out, c.merge(splitKeepSeparator(piece, ""))...)
			continue
		}
		out = append(out, c.splitRecursive(piece, finer)...)
	}
	if len(pending) > 0 {
		out = append(out, c.merge(pending)...)
	}
	return out
}

// merge packs consecutive pieces into chunks no longer than chunkSize. When a
// chunk is emitted, its trailing pieces totalling at most chunkOverlap are
// carried into the next one.
func (c *Chunker) merge(pieces []string) []string {
	var (
		out    []string
		window []string
		total  int
	)
	for _, p := range pieces {
		n := utils.RuneLen(p)
		if total+n > c.chunkSize && len(window) > 0 {
			if doc := strings.TrimSpace(strings.Join(window, "")); doc != "" {
				out = append(out, doc)
			}
			for total > c.chunkOverlap || (total > 0 && total+n > c.chunkSize) {
				total -= utils.RuneLen(window[0])
				window = window[1:]
			}
		}
		window = append(window, p)
		total += n
	}
	if doc := strings.TrimSpace(strings.Join(window, "")); doc != "" {
		out = append(out, doc)
	}
	return out
}

// splitKeepSeparator splits text after each occurrence of sep, so every piece
// but the last ends with sep. An empty sep splits into single characters.
func splitKeepSeparator(text, sep string) []string {
	if text == "" {
		return nil
	}
	if sep == "" {
		pieces := make([]string, 0, utils.RuneLen(text))
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}
	parts := strings.SplitAfter(text, sep)
	pieces := parts[:0]
	for _, p := range parts {
		if p != "" {
			pieces = append(pieces, p)
		}
	}
	return pieces
}

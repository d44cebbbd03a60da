// Package extract provides text extraction from various document formats.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Extractor converts the raw bytes of one document format into plain text.
type Extractor interface {
	ExtractBytes(content []byte) (string, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(content []byte) (string, error)

// ExtractBytes calls f(content).
func (f ExtractorFunc) ExtractBytes(content []byte) (string, error) {
	return f(content)
}

// Registry maps lower-case file extensions (with leading dot) to extractors.
// It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	extractors map[string]Extractor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{extractors: make(map[string]Extractor)}
}

// NewDefaultRegistry returns a registry with the built-in formats:
// .pdf, .docx, .pptx, .csv, .xlsx, .txt and .md.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(".pdf", ExtractorFunc(extractPDF))
	r.Register(".docx", ExtractorFunc(extractDOCX))
	r.Register(".pptx", ExtractorFunc(extractPPTX))
	r.Register(".csv", ExtractorFunc(extractCSV))
	r.Register(".xlsx", ExtractorFunc(extractExcel))
	r.Register(".txt", ExtractorFunc(extractPlain))
	r.Register(".md", ExtractorFunc(extractPlain))
	return r
}

// Register adds or replaces the extractor for ext. The extension is
// normalized to lower case with a leading dot.
func (r *Registry) Register(ext string, e Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[normalizeExt(ext)] = e
}

// Supports reports whether an extractor is registered for ext.
func (r *Registry) Supports(ext string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.extractors[normalizeExt(ext)]
	return ok
}

// Extensions returns the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.extractors))
	for ext := range r.extractors {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Extract reads the file at path and returns its text content, dispatching on
// the case-insensitive file extension. Unknown extensions fail with
// *UnsupportedFormatError before the file is read; read and parse failures
// are reported as *ExtractionError.
func (r *Registry) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(path))
	e, ok := r.lookup(ext)
	if !ok {
		return "", &UnsupportedFormatError{Path: path, Ext: ext}
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", &ExtractionError{Path: path, Err: fmt.Errorf("read file: %w", err)}
	}
	text, err := e.ExtractBytes(content)
	if err != nil {
		return "", &ExtractionError{Path: path, Err: err}
	}
	return text, nil
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (r *Registry) ExtractBytes(content []byte, ext string) (string, error) {
	e, ok := r.lookup(ext)
	if !ok {
		return "", &UnsupportedFormatError{Ext: normalizeExt(ext)}
	}
	text, err := e.ExtractBytes(content)
	if err != nil {
		return "", &ExtractionError{Err: err}
	}
	return text, nil
}

func (r *Registry) lookup(ext string) (Extractor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.extractors[normalizeExt(ext)]
	return e, ok
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

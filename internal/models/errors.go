package models

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned for files whose extension has no extractor.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrExtraction is returned when a file cannot be read or parsed.
	ErrExtraction = errors.New("extraction failed")
	// ErrEmbeddingService is returned when the embedding provider fails.
	ErrEmbeddingService = errors.New("embedding service error")
	// ErrGenerationService is returned when the language model provider fails.
	ErrGenerationService = errors.New("generation service error")
	// ErrIndexStorage is returned when the persisted collection cannot be read or written.
	ErrIndexStorage = errors.New("index storage error")

	ErrEmptyQuestion = errors.New("question cannot be empty")
	ErrInvalidK      = errors.New("k must be a positive integer")
)

// ServiceError wraps a failure of an external capability or the index.
// Kind is one of ErrEmbeddingService, ErrGenerationService or ErrIndexStorage.
type ServiceError struct {
	Kind error
	Op   string
	Err  error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Op, e.Err)
}

// Is reports whether target is the error kind.
func (e *ServiceError) Is(target error) bool {
	return target == e.Kind
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// EmbeddingError wraps err as an embedding service failure during op.
func EmbeddingError(op string, err error) error {
	return &ServiceError{Kind: ErrEmbeddingService, Op: op, Err: err}
}

// GenerationError wraps err as a generation service failure during op.
func GenerationError(op string, err error) error {
	return &ServiceError{Kind: ErrGenerationService, Op: op, Err: err}
}

// StorageError wraps err as an index storage failure during op.
func StorageError(op string, err error) error {
	return &ServiceError{Kind: ErrIndexStorage, Op: op, Err: err}
}

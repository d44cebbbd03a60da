package extract

import (
	"fmt"

	"github.com/hyperjump/kotae/internal/models"
)

// UnsupportedFormatError reports a file whose extension has no registered extractor.
type UnsupportedFormatError struct {
	Path string
	Ext  string
}

func (e *UnsupportedFormatError) Error() string {
	ext := e.Ext
	if ext == "" {
		ext = "(none)"
	}
	if e.Path == "" {
		return fmt.Sprintf("unsupported format %s", ext)
	}
	return fmt.Sprintf("unsupported format %s: %s", ext, e.Path)
}

// Is matches models.ErrUnsupportedFormat.
func (e *UnsupportedFormatError) Is(target error) bool {
	return target == models.ErrUnsupportedFormat
}

// ExtractionError reports a file that could not be read or parsed.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("extract: %v", e.Err)
	}
	return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
}

// Is matches models.ErrExtraction.
func (e *ExtractionError) Is(target error) bool {
	return target == models.ErrExtraction
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

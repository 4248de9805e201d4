package extract

import (
	"context"
	"fmt"
)

// Extraction failure reasons.
const (
	ReasonCorruptOrUnreadable = "corrupt_or_unreadable"
	ReasonRecognitionFailed   = "recognition_failed"
)

// Extractor turns document bytes into plain text. An empty string with a nil
// error means the document was readable but carried no text.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, data []byte) (string, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, data []byte) (string, error) {
	return f(ctx, data)
}

// ExtractionError reports a document that could not be turned into text.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err == nil {
		return "extraction failed: " + e.Reason
	}
	return fmt.Sprintf("extraction failed: %s: %v", e.Reason, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

func corrupt(err error) error {
	return &ExtractionError{Reason: ReasonCorruptOrUnreadable, Err: err}
}

func recognitionFailed(err error) error {
	return &ExtractionError{Reason: ReasonRecognitionFailed, Err: err}
}

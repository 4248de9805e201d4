package analyses

import (
	"errors"
	"fmt"
	"net/http"

	"bloodwork-backend/internal/documents"
	"bloodwork-backend/internal/extract"
	"bloodwork-backend/internal/llm"
)

// ErrNoExtractor is returned when an allowed media type has no registered extractor.
var ErrNoExtractor = errors.New("no extractor registered for media type")

// Pipeline stages as reported in RunError.Stage.
const (
	StageReceived     = "received"
	StageStaged       = "staged"
	StageExtracted    = "extracted"
	StagePrompted     = "prompted"
	StageModelInvoked = "model_invoked"
	StageInterpreted  = "interpreted"
	StageDone         = "done"
)

// Failure kinds as reported in RunError.Kind.
const (
	KindUnsupportedMediaType = "unsupported_media_type"
	KindOversize             = "oversize"
	KindExtraction           = "extraction"
	KindModel                = "model"
	KindInternal             = "internal"
)

// KindValidation marks requests rejected before a run starts.
const KindValidation = "validation"

const (
	ErrorCodeValidation       = "validation_error"
	ErrorCodeUnsupportedMedia = "unsupported_media_type"
	ErrorCodeFileTooLarge     = "file_too_large"
	ErrorCodeExtractionFailed = "extraction_failed"
	ErrorCodeModelUnavailable = "model_unavailable"
	ErrorCodeInternal         = "internal_error"
)

// RunError is the terminal failed state of a run.
type RunError struct {
	Stage string
	Kind  string
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("analysis failed at %s (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

func kindOf(err error) string {
	var unsupported *documents.UnsupportedMediaTypeError
	var oversize *documents.OversizeError
	var extraction *extract.ExtractionError
	var invocation *llm.InvocationError
	switch {
	case errors.As(err, &unsupported):
		return KindUnsupportedMediaType
	case errors.As(err, &oversize):
		return KindOversize
	case errors.As(err, &extraction):
		return KindExtraction
	case errors.As(err, &invocation):
		return KindModel
	default:
		return KindInternal
	}
}

// httpError maps a run failure to status, code, message and details.
func httpError(err error) (int, string, string, any) {
	var unsupported *documents.UnsupportedMediaTypeError
	var oversize *documents.OversizeError
	var extraction *extract.ExtractionError
	var invocation *llm.InvocationError
	switch {
	case errors.As(err, &unsupported):
		return http.StatusUnsupportedMediaType, ErrorCodeUnsupportedMedia,
			"Only PDF, JPEG and PNG files are supported.",
			map[string]any{"mediaType": unsupported.MediaType}
	case errors.As(err, &oversize):
		return http.StatusRequestEntityTooLarge, ErrorCodeFileTooLarge,
			"The uploaded file is too large.",
			map[string]any{"sizeBytes": oversize.SizeBytes, "maxBytes": oversize.MaxBytes}
	case errors.As(err, &extraction):
		return http.StatusUnprocessableEntity, ErrorCodeExtractionFailed,
			"Text could not be extracted from the document. Please upload a clearer file.",
			map[string]any{"reason": extraction.Reason}
	case errors.As(err, &invocation):
		return http.StatusBadGateway, ErrorCodeModelUnavailable,
			"The analysis model is currently unavailable. Please try again.",
			map[string]any{"reason": invocation.Reason}
	default:
		return http.StatusInternalServerError, ErrorCodeInternal, "Failed to analyze document.", nil
	}
}

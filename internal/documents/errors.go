package documents

import "fmt"

// UnsupportedMediaTypeError rejects a document whose declared type is not allow-listed.
type UnsupportedMediaTypeError struct {
	MediaType string
}

func (e *UnsupportedMediaTypeError) Error() string {
	return fmt.Sprintf("unsupported media type %q", e.MediaType)
}

// OversizeError rejects a document larger than the configured ceiling.
type OversizeError struct {
	SizeBytes int64
	MaxBytes  int64
}

func (e *OversizeError) Error() string {
	return fmt.Sprintf("document is %d bytes, limit is %d", e.SizeBytes, e.MaxBytes)
}

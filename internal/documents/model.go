package documents

import (
	"mime"
	"strings"
)

// Upload is one inbound document. FileName is display-only and never used
// for format decisions.
type Upload struct {
	Data      []byte
	MediaType string
	FileName  string
}

// Handle identifies a staged document for the lifetime of one run.
type Handle struct {
	Key       string
	MediaType string
	FileName  string
	SizeBytes int64
}

// Supported media types.
const (
	MediaTypePDF  = "application/pdf"
	MediaTypeJPEG = "image/jpeg"
	MediaTypePNG  = "image/png"
)

var allowedMediaTypes = map[string]struct{}{
	MediaTypePDF:  {},
	MediaTypeJPEG: {},
	MediaTypePNG:  {},
}

// IsAllowed reports whether the normalized media type may be staged.
func IsAllowed(mediaType string) bool {
	_, ok := allowedMediaTypes[NormalizeMediaType(mediaType)]
	return ok
}

// NormalizeMediaType lower-cases the type and strips parameters.
func NormalizeMediaType(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(raw); err == nil {
		raw = parsed
	} else if i := strings.IndexByte(raw, ';'); i >= 0 {
		raw = raw[:i]
	}
	mt := strings.ToLower(strings.TrimSpace(raw))
	if mt == "image/jpg" || mt == "image/pjpeg" {
		return MediaTypeJPEG
	}
	return mt
}

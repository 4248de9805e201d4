package extract

import (
	"strings"

	"bloodwork-backend/internal/shared/config"
)

// Registry dispatches to an Extractor by normalized media type.
type Registry struct {
	byType map[string]Extractor
}

// NewRegistry builds a registry from media type to extractor.
func NewRegistry(entries map[string]Extractor) *Registry {
	r := &Registry{byType: make(map[string]Extractor, len(entries))}
	for mt, ex := range entries {
		r.byType[strings.ToLower(strings.TrimSpace(mt))] = ex
	}
	return r
}

// DefaultRegistry wires the PDF and image extractors from configuration.
func DefaultRegistry(cfg config.Config) *Registry {
	pdfEx := &PDFExtractor{MaxPages: cfg.PDFMaxPages}
	imgEx := &ImageExtractor{
		Tesseract:   cfg.TesseractBin,
		Lang:        cfg.TesseractLang,
		TessdataDir: cfg.TessdataDir,
		MaxPixels:   cfg.OCRMaxPixels,
	}
	return NewRegistry(map[string]Extractor{
		"application/pdf": pdfEx,
		"image/png":       imgEx,
		"image/jpeg":      imgEx,
	})
}

// For returns the extractor registered for mediaType.
func (r *Registry) For(mediaType string) (Extractor, bool) {
	if r == nil {
		return nil, false
	}
	ex, ok := r.byType[strings.ToLower(strings.TrimSpace(mediaType))]
	return ex, ok
}

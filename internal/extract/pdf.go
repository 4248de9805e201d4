package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var disableConfigDir sync.Once

// PDFExtractor reads the embedded text layer of a PDF. pdfcpu validates the
// structure and counts pages; ledongthuc/pdf decodes page text.
type PDFExtractor struct {
	// MaxPages rejects longer documents when positive.
	MaxPages int
}

// Extract concatenates per-page text in document order.
func (p *PDFExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", corrupt(errors.New("empty document"))
	}

	pages, err := pageCount(data)
	if err != nil {
		return "", corrupt(err)
	}
	if p.MaxPages > 0 && pages > p.MaxPages {
		return "", corrupt(fmt.Errorf("document has %d pages, limit is %d", pages, p.MaxPages))
	}

	return readPages(ctx, data)
}

func pageCount(data []byte) (int, error) {
	disableConfigDir.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("pdfcpu page count: %w", err)
	}
	return n, nil
}

func readPages(ctx context.Context, data []byte) (text string, err error) {
	// ledongthuc/pdf panics on some malformed content streams.
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = corrupt(fmt.Errorf("pdf reader panic: %v", rec))
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", corrupt(err)
	}

	parts := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", corrupt(fmt.Errorf("page %d: %w", i, err))
		}
		if trimmed := strings.TrimSpace(pageText); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n")), nil
}

package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"bloodwork-backend/internal/shared/telemetry"
)

// DefaultMaxPixels bounds width*height of an accepted image, roughly an A4
// page scanned at 600 dpi.
const DefaultMaxPixels = 40_000_000

// ImageExtractor recognizes text in PNG and JPEG images with tesseract.
type ImageExtractor struct {
	Tesseract   string
	Lang        string
	TessdataDir string
	// MaxPixels caps the declared image dimensions; zero means DefaultMaxPixels.
	MaxPixels int64
	Runner    Runner
}

// Extract checks the declared size and that the pixel data decodes, then runs
// the recognizer over a per-call temp file. Finding little or no text is not
// an error.
func (e *ImageExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// The header alone decides whether a full decode is affordable.
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", recognitionFailed(fmt.Errorf("decode image header: %w", err))
	}
	pixels := int64(cfg.Width) * int64(cfg.Height)
	if cfg.Width <= 0 || cfg.Height <= 0 || pixels > e.maxPixels() {
		return "", recognitionFailed(fmt.Errorf("image is %dx%d, limit is %d pixels", cfg.Width, cfg.Height, e.maxPixels()))
	}
	if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
		return "", recognitionFailed(fmt.Errorf("decode image: %w", err))
	}

	tmpDir, err := os.MkdirTemp("", "bloodwork-ocr-*")
	if err != nil {
		return "", recognitionFailed(fmt.Errorf("create temp dir: %w", err))
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			telemetry.Warn("extract.cleanup_failed", map[string]any{"dir": tmpDir, "error": rmErr.Error()})
		}
	}()

	path := filepath.Join(tmpDir, "page."+format)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", recognitionFailed(fmt.Errorf("write temp image: %w", err))
	}

	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner().Run(ctx, e.binary(), e.args(path)...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", recognitionFailed(fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(truncate(string(errb), 512))))
	}
	return normalizeLines(string(out)), nil
}

func (e *ImageExtractor) args(path string) []string {
	lang := e.Lang
	if lang == "" {
		lang = "eng"
	}
	args := []string{path, "stdout", "-l", lang}
	if e.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.TessdataDir)
	}
	return args
}

func (e *ImageExtractor) maxPixels() int64 {
	if e.MaxPixels <= 0 {
		return DefaultMaxPixels
	}
	return e.MaxPixels
}

func (e *ImageExtractor) binary() string {
	if e.Tesseract == "" {
		return "tesseract"
	}
	return e.Tesseract
}

func (e *ImageExtractor) runner() Runner {
	if e.Runner == nil {
		return ExecRunner{}
	}
	return e.Runner
}

package extract

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

type stubRunner struct {
	stdout []byte
	stderr []byte
	err    error

	name      string
	args      []string
	sawFile   bool
	callCount int
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.callCount++
	s.name = name
	s.args = args
	if len(args) > 0 {
		if _, err := os.Stat(args[0]); err == nil {
			s.sawFile = true
		}
	}
	return s.stdout, s.stderr, s.err
}

func samplePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		img.Set(x, x, color.Black)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// pngHeaderOnly returns a PNG that declares width x height grayscale pixels but
// carries no pixel data.
func pngHeaderOnly(width, height uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], width)
	binary.BigEndian.PutUint32(ihdr[4:8], height)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 0 // grayscale

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(ihdr)))
	buf.Write(n[:])
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	binary.BigEndian.PutUint32(n[:], crc32.ChecksumIEEE(chunk))
	buf.Write(n[:])
	return buf.Bytes()
}

func TestImageExtractorRunsTesseract(t *testing.T) {
	runner := &stubRunner{stdout: []byte("  Glucose   110  mg/dL \r\n\n HbA1c\t5.4 %\n\n")}
	ex := &ImageExtractor{Tesseract: "/usr/bin/tesseract", Lang: "eng", TessdataDir: "/opt/tessdata", Runner: runner}

	got, err := ex.Extract(context.Background(), samplePNG(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Glucose 110 mg/dL\nHbA1c 5.4 %" {
		t.Fatalf("unexpected text %q", got)
	}
	if runner.name != "/usr/bin/tesseract" {
		t.Fatalf("unexpected binary %q", runner.name)
	}
	want := []string{"stdout", "-l", "eng", "--tessdata-dir", "/opt/tessdata"}
	if len(runner.args) != len(want)+1 {
		t.Fatalf("unexpected args %v", runner.args)
	}
	for i, arg := range want {
		if runner.args[i+1] != arg {
			t.Fatalf("arg %d: expected %q, got %q", i+1, arg, runner.args[i+1])
		}
	}
	if !runner.sawFile {
		t.Fatalf("expected the image file to exist while tesseract runs")
	}
	if _, err := os.Stat(filepath.Dir(runner.args[0])); !os.IsNotExist(err) {
		t.Fatalf("expected temp dir removed after extraction, stat err=%v", err)
	}
}

func TestImageExtractorLittleTextIsNotAnError(t *testing.T) {
	ex := &ImageExtractor{Runner: &stubRunner{stdout: []byte("\n \n")}}

	got, err := ex.Extract(context.Background(), samplePNG(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty text, got %q", got)
	}
}

func TestImageExtractorCorruptPixelsFailRecognition(t *testing.T) {
	runner := &stubRunner{}
	ex := &ImageExtractor{Runner: runner}

	data := samplePNG(t)
	_, err := ex.Extract(context.Background(), data[:len(data)/2])
	var exErr *ExtractionError
	if !errors.As(err, &exErr) || exErr.Reason != ReasonRecognitionFailed {
		t.Fatalf("expected recognition_failed, got %v", err)
	}
	if runner.callCount != 0 {
		t.Fatalf("recognizer should not run on undecodable images")
	}
}

func TestImageExtractorRecognizerErrorCleansUp(t *testing.T) {
	runner := &stubRunner{stderr: []byte("Error in pixReadStream"), err: errors.New("exit status 1")}
	ex := &ImageExtractor{Runner: runner}

	_, err := ex.Extract(context.Background(), samplePNG(t))
	var exErr *ExtractionError
	if !errors.As(err, &exErr) || exErr.Reason != ReasonRecognitionFailed {
		t.Fatalf("expected recognition_failed, got %v", err)
	}
	if _, err := os.Stat(filepath.Dir(runner.args[0])); !os.IsNotExist(err) {
		t.Fatalf("expected temp dir removed on failure, stat err=%v", err)
	}
}

func TestImageExtractorDefaults(t *testing.T) {
	ex := &ImageExtractor{}
	if ex.binary() != "tesseract" {
		t.Fatalf("unexpected default binary %q", ex.binary())
	}
	args := ex.args("/tmp/x.png")
	if args[3] != "eng" || len(args) != 4 {
		t.Fatalf("unexpected default args %v", args)
	}
	if _, ok := ex.runner().(ExecRunner); !ok {
		t.Fatalf("expected ExecRunner default")
	}
}

func TestImageExtractorRejectsHugeDimensions(t *testing.T) {
	runner := &stubRunner{stdout: []byte("text")}
	ex := &ImageExtractor{Runner: runner}

	_, err := ex.Extract(context.Background(), pngHeaderOnly(12000, 12000))
	var exErr *ExtractionError
	if !errors.As(err, &exErr) || exErr.Reason != ReasonRecognitionFailed {
		t.Fatalf("expected recognition_failed, got %v", err)
	}
	if runner.callCount != 0 {
		t.Fatalf("recognizer should not run on oversized images")
	}
}

func TestImageExtractorConfiguredPixelCap(t *testing.T) {
	runner := &stubRunner{stdout: []byte("text")}
	ex := &ImageExtractor{MaxPixels: 15, Runner: runner}

	_, err := ex.Extract(context.Background(), samplePNG(t))
	var exErr *ExtractionError
	if !errors.As(err, &exErr) || exErr.Reason != ReasonRecognitionFailed {
		t.Fatalf("expected recognition_failed for 16 pixels over a cap of 15, got %v", err)
	}
	if runner.callCount != 0 {
		t.Fatalf("recognizer should not run above the cap")
	}

	ex.MaxPixels = 16
	if _, err := ex.Extract(context.Background(), samplePNG(t)); err != nil {
		t.Fatalf("image at the cap should be accepted: %v", err)
	}
	if runner.callCount != 1 {
		t.Fatalf("expected one recognizer call, got %d", runner.callCount)
	}
}

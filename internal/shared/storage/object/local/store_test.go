package local

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bloodwork-backend/internal/shared/storage/object"
)

func TestSaveOpenDelete(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)
	ctx := context.Background()
	key := "runs/0190-test/report.pdf"

	n, err := store.SaveWithKey(ctx, key, "application/pdf", strings.NewReader("%PDF-1.4"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if n != 8 {
		t.Fatalf("expected 8 bytes written, got %d", n)
	}

	rc, err := store.Open(ctx, key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "%PDF-1.4" {
		t.Fatalf("unexpected content %q", data)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("second delete should be a no-op, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "runs", "0190-test")); !os.IsNotExist(err) {
		t.Fatalf("expected run directory removed, stat err=%v", err)
	}
	if _, err := store.Open(ctx, key); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRejectsTraversalKeys(t *testing.T) {
	store := New(t.TempDir())
	for _, key := range []string{"../escape", "/abs/path", "."} {
		if _, err := store.SaveWithKey(context.Background(), key, "", strings.NewReader("x")); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
	}
}

func TestSaveDoesNotOverwrite(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()
	if _, err := store.SaveWithKey(ctx, "runs/a/x.png", "image/png", strings.NewReader("one")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := store.SaveWithKey(ctx, "runs/a/x.png", "image/png", strings.NewReader("two")); !errors.Is(err, object.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
}

package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestMemoryStore_SaveAndOpen(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	path, err := store.Save(ctx, "patients/p1/report.pdf", strings.NewReader("pdf bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "patients/p1/report.pdf" {
		t.Errorf("expected normalized path, got %q", path)
	}

	rc, err := store.Open(ctx, "patients/p1/report.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "pdf bytes" {
		t.Errorf("unexpected content: %q", data)
	}
}

func TestMemoryStore_OpenMissing(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Open(context.Background(), "nope.txt")
	if !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("expected ErrBlobNotFound, got %v", err)
	}
}

func TestMemoryStore_Exists(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if _, err := store.Save(ctx, "a/b.txt", strings.NewReader("x")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ok, err := store.Exists(ctx, "a/b.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected blob to exist")
	}

	ok, _ = store.Exists(ctx, "a/c.txt")
	if ok {
		t.Error("expected blob to be absent")
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if _, err := store.Save(ctx, "doc.txt", strings.NewReader("x")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Delete(ctx, "doc.txt"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Delete(ctx, "doc.txt"); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("expected ErrBlobNotFound on double delete, got %v", err)
	}
}

func TestStore_RejectsTraversal(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, p := range []string{"", "..", "../etc/passwd", "a/../../secret"} {
		if _, err := store.Save(ctx, p, strings.NewReader("x")); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("path %q: expected ErrInvalidPath, got %v", p, err)
		}
	}
}

func TestStore_RejectsOversizedContent(t *testing.T) {
	store := NewMemoryStore()
	big := bytes.NewReader(make([]byte, MaxFileSize+1))
	if _, err := store.Save(context.Background(), "big.bin", big); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestLocalStore_RoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	if _, err := store.Save(ctx, "patients/p2/scan.png", strings.NewReader("png data")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ok, err := store.Exists(ctx, "patients/p2/scan.png")
	if err != nil || !ok {
		t.Fatalf("expected blob to exist, ok=%v err=%v", ok, err)
	}

	rc, err := store.Open(ctx, "patients/p2/scan.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "png data" {
		t.Errorf("unexpected content: %q", data)
	}

	if err := store.Delete(ctx, "patients/p2/scan.png"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Open(ctx, "patients/p2/scan.png"); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("expected ErrBlobNotFound after delete, got %v", err)
	}
}

func TestAllowedContentTypes(t *testing.T) {
	if !AllowedContentTypes["application/pdf"] {
		t.Error("expected application/pdf to be allowed")
	}
	if AllowedContentTypes["application/x-msdownload"] {
		t.Error("expected executables to be rejected")
	}
}

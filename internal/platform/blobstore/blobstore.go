// Package blobstore provides document storage for the hospital platform.
// Blobs are addressed by path; the ingestion pipeline namespaces uploads per
// patient. A local-disk implementation backs production, an in-memory one
// backs tests and development.
package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	ErrBlobNotFound       = errors.New("blob not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrInvalidPath        = errors.New("invalid blob path")
)

// ---------------------------------------------------------------------------
// Validation constants
// ---------------------------------------------------------------------------

// MaxFileSize is the maximum allowed blob size in bytes (50 MB).
const MaxFileSize = 50 * 1024 * 1024

// AllowedContentTypes lists the document MIME types the pipeline accepts.
var AllowedContentTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/webp":      true,
	"application/pdf": true,
	"text/plain":      true,
}

// ---------------------------------------------------------------------------
// Store interface
// ---------------------------------------------------------------------------

// Store defines the contract for blob storage backends.
type Store interface {
	// Save stores content under path and returns the stored path.
	Save(ctx context.Context, path string, content io.Reader) (string, error)
	// Open returns a reader over the blob at path.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// Exists reports whether a blob is stored at path.
	Exists(ctx context.Context, path string) (bool, error)
	// Delete removes the blob at path.
	Delete(ctx context.Context, path string) error
}

// cleanPath normalizes a blob path and rejects traversal outside the store
// root.
func cleanPath(path string) (string, error) {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return "", ErrInvalidPath
	}
	cleaned := filepath.ToSlash(filepath.Clean(path))
	if cleaned == "." || strings.HasPrefix(cleaned, "..") {
		return "", ErrInvalidPath
	}
	return cleaned, nil
}

// ---------------------------------------------------------------------------
// Local disk implementation
// ---------------------------------------------------------------------------

// LocalStore stores blobs as files under a root directory.
type LocalStore struct {
	root string
}

// NewLocalStore returns a LocalStore rooted at dir, creating it if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStore{root: dir}, nil
}

func (s *LocalStore) Save(_ context.Context, path string, content io.Reader) (string, error) {
	cleaned, err := cleanPath(path)
	if err != nil {
		return "", err
	}

	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return "", fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return "", ErrFileTooLarge
	}

	full := filepath.Join(s.root, filepath.FromSlash(cleaned))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create blob directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return cleaned, nil
}

func (s *LocalStore) Open(_ context.Context, path string) (io.ReadCloser, error) {
	cleaned, err := cleanPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.root, filepath.FromSlash(cleaned)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return f, nil
}

func (s *LocalStore) Exists(_ context.Context, path string) (bool, error) {
	cleaned, err := cleanPath(path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(filepath.Join(s.root, filepath.FromSlash(cleaned)))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *LocalStore) Delete(_ context.Context, path string) error {
	cleaned, err := cleanPath(path)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(s.root, filepath.FromSlash(cleaned)))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrBlobNotFound
		}
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// In-memory implementation
// ---------------------------------------------------------------------------

// MemoryStore is a thread-safe, in-memory Store for testing/dev.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore returns a ready-to-use MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Save(_ context.Context, path string, content io.Reader) (string, error) {
	cleaned, err := cleanPath(path)
	if err != nil {
		return "", err
	}

	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return "", fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return "", ErrFileTooLarge
	}

	s.mu.Lock()
	s.blobs[cleaned] = data
	s.mu.Unlock()
	return cleaned, nil
}

func (s *MemoryStore) Open(_ context.Context, path string) (io.ReadCloser, error) {
	cleaned, err := cleanPath(path)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	data, ok := s.blobs[cleaned]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemoryStore) Exists(_ context.Context, path string) (bool, error) {
	cleaned, err := cleanPath(path)
	if err != nil {
		return false, err
	}
	s.mu.RLock()
	_, ok := s.blobs[cleaned]
	s.mu.RUnlock()
	return ok, nil
}

func (s *MemoryStore) Delete(_ context.Context, path string) error {
	cleaned, err := cleanPath(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[cleaned]; !ok {
		return ErrBlobNotFound
	}
	delete(s.blobs, cleaned)
	return nil
}

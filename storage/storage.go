package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when no blob exists under the given key.
var ErrNotFound = errors.New("blob not found")

// BlobStore is the opaque content store. Keys are generated by the caller
// and carry no meaning here beyond addressing one blob.
type BlobStore interface {
	Save(ctx context.Context, key string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// DiskStore keeps blobs as plain files under a base directory.
type DiskStore struct {
	basePath string
}

func NewDiskStore(basePath string) *DiskStore {
	return &DiskStore{basePath: basePath}
}

func (s *DiskStore) absPath(key string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(s.basePath, cleaned), nil
}

func (s *DiskStore) Save(_ context.Context, key string, r io.Reader) (int64, error) {
	path, err := s.absPath(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create blob directory: %w", err)
	}

	dst, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create blob: %w", err)
	}
	written, err := io.Copy(dst, r)
	if err != nil {
		dst.Close()
		_ = os.Remove(path)
		return 0, fmt.Errorf("failed to write blob: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(path)
		return 0, fmt.Errorf("failed to close blob: %w", err)
	}
	return written, nil
}

func (s *DiskStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.absPath(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}
	return f, nil
}

func (s *DiskStore) Delete(_ context.Context, key string) error {
	path, err := s.absPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

func (s *DiskStore) Exists(_ context.Context, key string) (bool, error) {
	path, err := s.absPath(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

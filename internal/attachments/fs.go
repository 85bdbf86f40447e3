package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FSStore writes attachments below a root directory.
type FSStore struct {
	root string
}

// NewFSStore creates the root directory if needed.
func NewFSStore(root string) (*FSStore, error) {
	if root == "" {
		root = "./data/claims"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create attachments dir: %w", err)
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || clean == ".." {
		return "", fmt.Errorf("invalid attachment key %q", key)
	}
	return filepath.Join(s.root, clean), nil
}

// Put writes body to <root>/<key>.
func (s *FSStore) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	target, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create attachment dir: %w", err)
	}

	f, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("failed to create attachment: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(target)
		return "", fmt.Errorf("failed to write attachment: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close attachment: %w", err)
	}
	return key, nil
}

// Delete removes <root>/<key>.
func (s *FSStore) Delete(ctx context.Context, key string) error {
	target, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	return nil
}

// Root returns the base directory.
func (s *FSStore) Root() string {
	return s.root
}

// Package storage provides BlobStore implementations: a MinIO object store
// matching the primary backend, and a local-filesystem store that doubles as
// its fallback. Filesystem objects are addressed with file:// URLs, which
// every implementation must accept on reads and deletes.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/verimedia/verimedia/internal/logging"
)

const fileScheme = "file://"

// FSStore keeps blobs as plain files under a root directory.
type FSStore struct {
	root   string
	logger logging.Logger
}

// NewFSStore ensures the root directory exists and returns the store.
func NewFSStore(root string, logger logging.Logger) (*FSStore, error) {
	if root == "" {
		return nil, errors.New("storage: empty root directory")
	}
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("ensure storage root %s: %w", root, err)
	}
	return &FSStore{
		root:   root,
		logger: logger.With(logging.Field{Key: "component", Value: "fs-store"}),
	}, nil
}

func (s *FSStore) Put(ctx context.Context, data []byte, key string, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(s.root, filepath.Base(key))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob %s: %w", path, err)
	}
	s.logger.Debug("stored blob locally",
		logging.Field{Key: "path", Value: path},
		logging.Field{Key: "size", Value: len(data)})
	return fileScheme + path, nil
}

func (s *FSStore) Get(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := strings.TrimPrefix(url, fileScheme)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", path, err)
	}
	return data, nil
}

func (s *FSStore) Delete(ctx context.Context, url string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	path := strings.TrimPrefix(url, fileScheme)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, fmt.Errorf("delete blob %s: %w", path, err)
	}
	return true, nil
}

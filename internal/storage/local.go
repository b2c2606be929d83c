package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/chartmuseum/storage"
)

// LocalStore keeps artifacts under a directory on disk.
type LocalStore struct {
	dir     string
	backend *storage.LocalFilesystemBackend
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("artifact directory must be provided")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed creating artifact directory %s: %w", dir, err)
	}
	return &LocalStore{dir: dir, backend: storage.NewLocalFilesystemBackend(dir)}, nil
}

// cleanKey rejects keys that are absolute or climb out of the artifact directory.
func cleanKey(key string) (string, error) {
	cleaned := path.Clean(filepath.ToSlash(key))
	if cleaned == "." || cleaned == ".." || path.IsAbs(cleaned) || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}

func (s *LocalStore) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if prefix != "" {
		var err error
		if prefix, err = cleanKey(prefix); err != nil {
			return nil, err
		}
	}
	objects, err := s.backend.ListObjects(prefix)
	if err != nil {
		return nil, fmt.Errorf("local list failed: %w", err)
	}
	results := make([]ObjectInfo, 0, len(objects))
	for _, object := range objects {
		key := object.Path
		if prefix != "" {
			key = filepath.ToSlash(filepath.Join(prefix, object.Path))
		}
		info := ObjectInfo{Key: key}
		if fi, err := os.Stat(filepath.Join(s.dir, filepath.FromSlash(key))); err == nil {
			info.Size = fi.Size()
		}
		results = append(results, info)
	}
	return results, nil
}

func (s *LocalStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	key, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(filepath.Join(s.dir, filepath.FromSlash(key))); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	object, err := s.backend.GetObject(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("local get %s failed: %w", key, err)
	}
	return object.Content, nil
}

func (s *LocalStore) UploadObject(ctx context.Context, key string, data []byte) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := s.backend.PutObject(key, data); err != nil {
		return fmt.Errorf("local put %s failed: %w", key, err)
	}
	return nil
}

// DeleteObject treats a missing key as already deleted.
func (s *LocalStore) DeleteObject(ctx context.Context, key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := s.backend.DeleteObject(key); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("local delete %s failed: %w", key, err)
	}
	return nil
}

var _ ObjectStorage = (*LocalStore)(nil)

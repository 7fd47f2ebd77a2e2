package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/stormdrive/stormdrive/internal/common"
)

// FSStore persists blobs as files under a root directory. Writes go to a
// hidden temp file first and are moved into place with os.Rename, so a
// crash mid-write leaves no partial artifact under the final key.
type FSStore struct {
	root string
}

// NewFSStore resolves root to an absolute path and creates it if needed.
func NewFSStore(root string) (*FSStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o770); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", abs, err)
	}
	return &FSStore{root: abs}, nil
}

func (s *FSStore) path(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	p := filepath.Join(s.root, filepath.FromSlash(key))
	if p != s.root && !pathWithin(s.root, p) {
		return "", fmt.Errorf("%w: storage key escapes root: %q", common.ErrCorruption, key)
	}
	return p, nil
}

func pathWithin(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !(len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator))
}

// Put writes data under key. An existing key is left untouched: keys embed
// the content hash, so a repeat Put carries identical bytes.
func (s *FSStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	final, err := s.path(key)
	if err != nil {
		return err
	}
	if _, err := os.Stat(final); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(final), 0o770); err != nil {
		return fmt.Errorf("mkdir for %s: %w", key, err)
	}

	tmp := filepath.Join(filepath.Dir(final), "."+filepath.Base(final)+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o660); err != nil {
		return fmt.Errorf("write temp for %s: %w", key, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit %s: %w", key, err)
	}
	return nil
}

// Get reads the blob stored under key.
func (s *FSStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: storage key %q", common.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

func (s *FSStore) Close() error { return nil }

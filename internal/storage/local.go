package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// LocalStore writes artifacts to a directory tree and returns file URLs.
// It exists for development and tests; the URL carries an expires query
// parameter so callers exercise the same shape as the S3 backend.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, fmt.Errorf("local storage: root dir is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("local storage: %w", err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) path(key string) (string, error) {
	clean := filepath.Clean(key)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("local storage: invalid key %q", key)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *LocalStore) Put(_ context.Context, key string, data []byte, _ string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("local storage: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("local storage: write %s: %w", key, err)
	}
	return nil
}

func (s *LocalStore) SignedURL(_ context.Context, key string, expiry time.Duration) (string, error) {
	p, err := s.path(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("local storage: stat %s: %w", key, err)
	}
	if expiry <= 0 {
		expiry = DefaultURLExpiry
	}
	u := url.URL{
		Scheme:   "file",
		Path:     p,
		RawQuery: "expires=" + strconv.FormatInt(time.Now().Add(expiry).Unix(), 10),
	}
	return u.String(), nil
}

// Package storage holds generated assets: a filesystem-backed object store
// that serves stable public URLs and a downloader for provider results.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileStore persists objects onto the local filesystem and exposes them under
// a public base URL. The directory is expected to be served by a CDN or the
// API's static file route.
type FileStore struct {
	basePath string
	baseURL  string
}

// NewFileStore initializes a FileStore rooted at basePath.
func NewFileStore(basePath, baseURL string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{basePath: filepath.Clean(basePath), baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/")}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// URL returns the public URL of a stored key.
func (s *FileStore) URL(key string) string {
	if s.baseURL == "" {
		return "/files/" + key
	}
	return s.baseURL + "/" + key
}

// Put writes data at key and returns its public URL. contentType is implied
// by the key's extension when served from disk.
func (s *FileStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	if filepath.Ext(cleanKey) == "" {
		cleanKey += extensionFor(contentType)
	}
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	return s.URL(cleanKey), nil
}

// ErrForeignURL is returned for URLs that were not issued by the store.
var ErrForeignURL = errors.New("storage: url does not belong to this store")

// KeyForURL inverts URL.
func (s *FileStore) KeyForURL(url string) (string, error) {
	prefix := s.URL("")
	if !strings.HasPrefix(url, prefix) {
		return "", ErrForeignURL
	}
	return sanitizeKey(strings.TrimPrefix(url, prefix))
}

// Read returns the object behind a URL issued by Put.
func (s *FileStore) Read(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := s.KeyForURL(url)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.basePath, filepath.FromSlash(key)))
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", key, err)
	}
	return data, nil
}

// List returns the keys under prefix in lexical order.
func (s *FileStore) List(ctx context.Context, prefix string) ([]string, error) {
	cleanPrefix, err := sanitizeKey(prefix)
	if err != nil {
		return nil, err
	}
	root := filepath.Join(s.basePath, filepath.FromSlash(cleanPrefix))
	var keys []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.basePath, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", cleanPrefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Remove deletes keys; missing keys are ignored.
func (s *FileStore) Remove(ctx context.Context, keys []string) error {
	var errs []error
	dirs := make(map[string]struct{})
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		cleanKey, err := sanitizeKey(key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fullPath := filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
		if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("storage: remove %s: %w", cleanKey, err))
			continue
		}
		dirs[filepath.Dir(fullPath)] = struct{}{}
	}
	for dir := range dirs {
		// Only empty directories are removed.
		for dir != s.basePath && strings.HasPrefix(dir, s.basePath) {
			if os.Remove(dir) != nil {
				break
			}
			dir = filepath.Dir(dir)
		}
	}
	return errors.Join(errs...)
}

// RemovePrefix deletes every key under prefix and returns how many were
// removed.
func (s *FileStore) RemovePrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := s.List(ctx, prefix)
	if err != nil {
		return 0, err
	}
	if err := s.Remove(ctx, keys); err != nil {
		return 0, err
	}
	return len(keys), nil
}

func extensionFor(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "text/html":
		return ".html"
	default:
		return ""
	}
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}

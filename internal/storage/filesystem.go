package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore persists images onto the local filesystem. It is intended for
// development where an object storage service is not available. Locations are
// public URLs under baseURL; keys without the prefix are accepted too.
type FileStore struct {
	basePath string
	baseURL  string
}

// NewFileStore initializes a FileStore rooted at basePath and verifies the
// directory is writable.
func NewFileStore(basePath, baseURL string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if !filepath.IsAbs(basePath) {
		if abs, err := filepath.Abs(basePath); err == nil {
			basePath = abs
		}
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	probe, err := os.CreateTemp(basePath, ".probe-*")
	if err != nil {
		return nil, fmt.Errorf("storage: base path not writable: %w", err)
	}
	probe.Close()
	_ = os.Remove(probe.Name())
	return &FileStore{basePath: basePath, baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/")}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

func (s *FileStore) Backend() string { return "local" }

// Put writes data under suggestedName and returns its location.
func (s *FileStore) Put(ctx context.Context, data []byte, suggestedName, contentType string) (string, error) {
	if s == nil {
		return "", unavailable(errors.New("storage: no store configured"))
	}
	if err := ctx.Err(); err != nil {
		return "", writeFailed(err)
	}
	cleanKey, err := sanitizeKey(suggestedName)
	if err != nil {
		return "", writeFailed(err)
	}
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", writeFailed(fmt.Errorf("storage: ensure directory: %w", err))
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", writeFailed(fmt.Errorf("storage: write file: %w", err))
	}
	return s.locationFor(cleanKey), nil
}

// Get reads the bytes stored at location.
func (s *FileStore) Get(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, readFailed(err)
	}
	fullPath, ok := s.LocalPath(location)
	if !ok {
		return nil, readFailed(fmt.Errorf("storage: location %q is outside the local store", location))
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, readFailed(fmt.Errorf("storage: read file: %w", err))
	}
	return data, nil
}

// Exists reports whether location points at a non-empty file.
func (s *FileStore) Exists(ctx context.Context, location string) (bool, error) {
	fullPath, ok := s.LocalPath(location)
	if !ok {
		return false, nil
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular() && info.Size() > 0, nil
}

// LocalPath maps a location produced by this store, or a bare key, to the
// file on disk. ok is false for foreign URLs and keys escaping the root.
func (s *FileStore) LocalPath(location string) (string, bool) {
	if s == nil {
		return "", false
	}
	location = strings.TrimSpace(location)
	if s.baseURL != "" && strings.HasPrefix(location, s.baseURL+"/") {
		location = strings.TrimPrefix(location, s.baseURL+"/")
	} else if isRemote(location) {
		return "", false
	}
	if filepath.IsAbs(location) {
		rel, err := filepath.Rel(s.basePath, location)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", false
		}
		location = filepath.ToSlash(rel)
	}
	cleanKey, err := sanitizeKey(location)
	if err != nil {
		return "", false
	}
	return filepath.Join(s.basePath, filepath.FromSlash(cleanKey)), true
}

func (s *FileStore) locationFor(key string) string {
	if s.baseURL == "" {
		return key
	}
	return s.baseURL + "/" + key
}

func isRemote(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
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

var _ Adapter = (*FileStore)(nil)

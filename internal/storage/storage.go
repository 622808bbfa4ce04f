// Package storage persists original and enhanced images on either the local
// filesystem or an S3-compatible object store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"photoenhance/internal/domain"
	"photoenhance/internal/infra"
)

// Adapter is the uniform surface over both backends. Locations returned by
// Put are what gets stored on the photo record.
type Adapter interface {
	Put(ctx context.Context, data []byte, suggestedName, contentType string) (string, error)
	Get(ctx context.Context, location string) ([]byte, error)
	Exists(ctx context.Context, location string) (bool, error)
	Backend() string
}

// New builds the adapter selected by cfg.StorageBackend. A misconfigured or
// unreachable backend is reported as a storage_unavailable error.
func New(ctx context.Context, cfg *infra.Config) (Adapter, error) {
	if cfg == nil {
		return nil, unavailable(errors.New("storage: config is required"))
	}
	switch cfg.StorageBackend {
	case infra.StorageBackendLocal:
		store, err := NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
		if err != nil {
			return nil, unavailable(err)
		}
		return store, nil
	case infra.StorageBackendObject:
		store, err := NewObjectStore(ctx, ObjectStoreOptions{
			Endpoint:  cfg.ObjectStore.Endpoint,
			AccessKey: cfg.ObjectStore.AccessKey,
			SecretKey: cfg.ObjectStore.SecretKey,
			Bucket:    cfg.ObjectStore.Bucket,
			Region:    cfg.ObjectStore.Region,
			UseSSL:    cfg.ObjectStore.UseSSL,
			PublicURL: cfg.ObjectStore.PublicURL,
		})
		if err != nil {
			return nil, unavailable(err)
		}
		return store, nil
	default:
		return nil, unavailable(fmt.Errorf("storage: unsupported backend %q", cfg.StorageBackend))
	}
}

// EnhancedKey returns the object key for an enhanced result derived from the
// photo id and the original name's extension.
func EnhancedKey(photoID, suggestedName, contentType string) string {
	ext := strings.ToLower(path.Ext(suggestedName))
	if want := ExtensionForMIME(contentType); want != "" {
		ext = want
	}
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("%s%s/%s%s", PublicPrefix, photoID, uuid.NewString(), ext)
}

// ExtensionForMIME maps an image content type to its file extension.
func ExtensionForMIME(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}

// MIMEForName guesses an image content type from a file name.
func MIMEForName(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

func unavailable(err error) error {
	return domain.NewPipelineError(domain.KindStorageUnavailable, "storage unavailable: backend not configured", err)
}

func writeFailed(err error) error {
	return domain.NewPipelineError(domain.KindStorageUnavailable, domain.MsgStorageWriteFailed, err)
}

func readFailed(err error) error {
	return domain.NewPipelineError(domain.KindStorageUnavailable, domain.MsgStorageReadFailed, err)
}

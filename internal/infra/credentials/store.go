// Package credentials keeps the AI service API key in the database for
// deployments that do not pass it through the environment.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"photoenhance/internal/infra"
	"photoenhance/internal/sqlinline"
)

const ProviderGemini = "gemini"

// Key sources reported by ResolveGeminiAPIKey.
const (
	SourceEnv   = "env"
	SourceStore = "store"
)

// ErrNoAPIKey is returned when neither the environment nor the store has a key.
var ErrNoAPIKey = errors.New("credentials: no gemini api key configured")

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// GeminiAPIKey returns the stored key, or "" when none is stored.
func (s *Store) GeminiAPIKey(ctx context.Context) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectProviderKey, ProviderGemini)
	var key string
	if err := row.Scan(&key); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(key), nil
}

func (s *Store) SetGeminiAPIKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("gemini api key is required")
	}
	props, err := json.Marshal(map[string]any{
		"purpose":   "photo_enhancement",
		"suffix":    suffix(key),
		"stored_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertProviderKey, ProviderGemini, key, props)
	return err
}

// ClearGeminiAPIKey removes the stored key.
func (s *Store) ClearGeminiAPIKey(ctx context.Context) error {
	_, err := s.sql.Exec(ctx, sqlinline.QDeleteProviderKey, ProviderGemini)
	return err
}

// ResolveGeminiAPIKey prefers the configured key and falls back to the store.
// The returned source is SourceEnv or SourceStore.
func (s *Store) ResolveGeminiAPIKey(ctx context.Context, configured string) (string, string, error) {
	if key := strings.TrimSpace(configured); key != "" {
		return key, SourceEnv, nil
	}
	key, err := s.GeminiAPIKey(ctx)
	if err != nil {
		return "", "", err
	}
	if key == "" {
		return "", "", ErrNoAPIKey
	}
	return key, SourceStore, nil
}

// suffix returns the last four characters of key for identification.
func suffix(key string) string {
	if len(key) <= 4 {
		return ""
	}
	return key[len(key)-4:]
}

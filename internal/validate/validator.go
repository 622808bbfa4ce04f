// Package validate confirms that a candidate result location is fetchable
// before it is committed to a photo record.
package validate

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LocalResolver maps a location to a file on disk when it belongs to a
// local store.
type LocalResolver interface {
	LocalPath(location string) (string, bool)
}

// Backend asks the storage backend itself whether a location holds data.
type Backend interface {
	Exists(ctx context.Context, location string) (bool, error)
}

// Options configures a Validator.
type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	Resolver   LocalResolver
	Backend    Backend
	Logger     zerolog.Logger
}

// Validator checks remote URLs with a HEAD request and local paths with a
// stat, after the backend confirms the object exists. It never returns an
// error: an unreachable result is data.
type Validator struct {
	httpClient *http.Client
	timeout    time.Duration
	resolver   LocalResolver
	backend    Backend
	logger     zerolog.Logger
}

func New(opts Options) *Validator {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Validator{
		httpClient: client,
		timeout:    timeout,
		resolver:   opts.Resolver,
		backend:    opts.Backend,
		logger:     opts.Logger,
	}
}

// Validate reports whether location can be fetched right now.
func (v *Validator) Validate(ctx context.Context, location string) bool {
	location = strings.TrimSpace(location)
	if location == "" {
		return false
	}
	if v.backend != nil && !v.stored(ctx, location) {
		return false
	}
	if v.resolver != nil {
		if path, ok := v.resolver.LocalPath(location); ok {
			return v.checkFile(path)
		}
	}
	lower := strings.ToLower(location)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return v.checkRemote(ctx, location)
	}
	return v.checkFile(location)
}

// stored reports whether the backend holds a non-empty object at location.
func (v *Validator) stored(ctx context.Context, location string) bool {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	ok, err := v.backend.Exists(ctx, location)
	if err != nil {
		v.logger.Warn().Err(err).Str("location", location).Msg("validate: backend check failed")
		return false
	}
	if !ok {
		v.logger.Warn().Str("location", location).Msg("validate: result missing in backend")
	}
	return ok
}

func (v *Validator) checkFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		v.logger.Warn().Err(err).Str("path", path).Msg("validate: local result missing")
		return false
	}
	if !info.Mode().IsRegular() || info.Size() == 0 {
		v.logger.Warn().Str("path", path).Int64("size", info.Size()).Msg("validate: local result empty")
		return false
	}
	return true
}

func (v *Validator) checkRemote(ctx context.Context, location string) bool {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, location, nil)
	if err != nil {
		v.logger.Warn().Err(err).Str("url", location).Msg("validate: bad result url")
		return false
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		v.logger.Warn().Err(err).Str("url", location).Msg("validate: result unreachable")
		return false
	}
	resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		v.logger.Warn().Int("status", resp.StatusCode).Str("url", location).Msg("validate: result not accessible")
		return false
	}
	return true
}

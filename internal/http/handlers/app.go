package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"photoenhance/internal/domain"
	"photoenhance/internal/enhance"
	"photoenhance/internal/middleware"
)

// Enhancer runs one enhancement attempt; *enhance.Orchestrator satisfies it.
type Enhancer interface {
	Enhance(ctx context.Context, photoID string, who enhance.Identity) (*enhance.Result, error)
}

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type App struct {
	Enhancer Enhancer
	Photos   domain.PhotoRepository
	Users    domain.UserRepository
	DB       Pinger
	Logger   zerolog.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]string{"error": errCode, "message": message})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

func (a *App) identity(r *http.Request) enhance.Identity {
	return enhance.Identity{
		UserID:   a.currentUserID(r),
		Internal: middleware.IsInternal(r.Context()),
	}
}

// domainError maps the error taxonomy onto HTTP responses. Messages are the
// stable texts carried by the error, never the underlying cause.
func (a *App) domainError(w http.ResponseWriter, err error) {
	var pe *domain.PipelineError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, domain.ErrForbidden):
		a.error(w, http.StatusForbidden, "forbidden", "photo belongs to another user")
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
	case errors.As(err, &pe):
		a.error(w, statusForKind(pe.Kind), pe.Code(), pe.Message)
	default:
		a.Logger.Error().Err(err).Msg("unhandled error")
		a.error(w, http.StatusInternalServerError, "internal", "enhancement failed")
	}
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindInsufficientCredits:
		return http.StatusPaymentRequired
	case domain.KindAIService:
		return http.StatusBadGateway
	case domain.KindStorageUnavailable, domain.KindValidation:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

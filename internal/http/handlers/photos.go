package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"photoenhance/internal/domain"
)

type photoResponse struct {
	ID               string             `json:"id"`
	Status           domain.PhotoStatus `json:"status"`
	OriginalLocation string             `json:"original_location"`
	EnhancedLocation *string            `json:"enhanced_location"`
	LastError        *string            `json:"last_error"`
	Attempts         int                `json:"attempts"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// PhotoStatus returns the lifecycle state of one photo so clients can poll
// after a request that timed out on their side.
func (a *App) PhotoStatus(w http.ResponseWriter, r *http.Request) {
	who := a.identity(r)
	if who.UserID == "" && !who.Internal {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	photoID := chi.URLParam(r, "photo_id")
	if photoID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "photo_id required")
		return
	}
	photo, err := a.Photos.GetByID(r.Context(), photoID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	if !who.Internal && photo.OwnerID != who.UserID {
		a.domainError(w, domain.ErrForbidden)
		return
	}
	a.json(w, http.StatusOK, photoResponse{
		ID:               photo.ID,
		Status:           photo.Status,
		OriginalLocation: photo.OriginalLocation,
		EnhancedLocation: photo.EnhancedLocation,
		LastError:        photo.LastError,
		Attempts:         photo.Attempts,
		CreatedAt:        photo.CreatedAt,
		UpdatedAt:        photo.UpdatedAt,
	})
}

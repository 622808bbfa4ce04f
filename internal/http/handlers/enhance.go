package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"photoenhance/internal/domain"
)

type enhanceRequest struct {
	PhotoID string `json:"photo_id"`
	// Retry marks a user-initiated retry. It is informational only; eligibility
	// comes from the stored status.
	Retry bool `json:"retry"`
}

type enhanceResponse struct {
	PhotoID          string             `json:"photo_id"`
	Status           domain.PhotoStatus `json:"status"`
	EnhancedLocation string             `json:"enhanced_location"`
	Attempt          int                `json:"attempt"`
	Retry            bool               `json:"retry"`
}

// Enhance runs a single synchronous attempt for the requested photo.
func (a *App) Enhance(w http.ResponseWriter, r *http.Request) {
	who := a.identity(r)
	if who.UserID == "" && !who.Internal {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req enhanceRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	req.PhotoID = strings.TrimSpace(req.PhotoID)
	if req.PhotoID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "photo_id required")
		return
	}

	a.Logger.Info().
		Str("photo_id", req.PhotoID).
		Str("user_id", who.UserID).
		Bool("internal", who.Internal).
		Bool("retry", req.Retry).
		Msg("enhance requested")

	res, err := a.Enhancer.Enhance(r.Context(), req.PhotoID, who)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, enhanceResponse{
		PhotoID:          res.PhotoID,
		Status:           res.Status,
		EnhancedLocation: res.EnhancedLocation,
		Attempt:          res.Attempt,
		Retry:            req.Retry,
	})
}

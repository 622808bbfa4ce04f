package sweeper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"photoenhance/internal/domain"
)

// ErrPermanent marks responses that another attempt cannot change
// (conflict, missing photo, no credits).
var ErrPermanent = errors.New("sweeper: permanent outcome")

// ErrDeferred marks outcomes worth another attempt, but not within the same
// sweep (the AI produced no image).
var ErrDeferred = errors.New("sweeper: deferred to next sweep")

// HTTPTrigger posts internal Enhance calls to the API service.
type HTTPTrigger struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPTrigger builds a trigger for the API at baseURL. timeout should cover
// the API's full write timeout.
func NewHTTPTrigger(baseURL, internalToken string, timeout time.Duration) (*HTTPTrigger, error) {
	if strings.TrimSpace(internalToken) == "" {
		return nil, errors.New("sweeper: INTERNAL_API_TOKEN is required")
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &HTTPTrigger{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   internalToken,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type triggerError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Enhance asks the API to run one attempt for photoID.
func (t *HTTPTrigger) Enhance(ctx context.Context, photoID string) error {
	body, err := json.Marshal(map[string]any{"photo_id": photoID, "retry": true})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/enhance", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Internal-Token", t.token)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("sweeper: call api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	var payload triggerError
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&payload)
	err = fmt.Errorf("sweeper: api status %d: %s: %s", resp.StatusCode, payload.Error, payload.Message)
	if payload.Error == domain.CodeNoImageProduced {
		return errors.Join(ErrDeferred, err)
	}
	switch resp.StatusCode {
	case http.StatusConflict, http.StatusPaymentRequired, http.StatusForbidden, http.StatusNotFound,
		http.StatusUnauthorized, http.StatusBadRequest:
		return errors.Join(ErrPermanent, err)
	default:
		return err
	}
}

package domain

import "context"

// UserRepository defines access methods for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*User, error)
}

// PhotoRepository persists photos. Every status write is a conditional
// update guarded by the expected current status.
type PhotoRepository interface {
	GetByID(ctx context.Context, id string) (*Photo, error)
	// BeginProcessing moves the photo to PROCESSING only if its current
	// status is PENDING or FAILED. ok is false when the guard did not match.
	BeginProcessing(ctx context.Context, id string) (photo *Photo, ok bool, err error)
	// Complete records a validated location and moves PROCESSING to COMPLETED.
	Complete(ctx context.Context, id, enhancedLocation string) error
	// Fail moves PROCESSING to FAILED with lastError and a null location.
	Fail(ctx context.Context, id, lastError string) error
	ListRetryable(ctx context.Context, maxAttempts, limit int) ([]Photo, error)
	FailStale(ctx context.Context, olderThanMinutes int, lastError string) (int64, error)
}

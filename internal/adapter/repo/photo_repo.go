package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"photoenhance/internal/domain"
	"photoenhance/internal/infra"
	"photoenhance/internal/sqlinline"
)

// PhotoRepositoryPG implements domain.PhotoRepository.
type PhotoRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewPhotoRepository creates a photo repository backed by PostgreSQL.
func NewPhotoRepository(sql infra.SQLExecutor) *PhotoRepositoryPG {
	return &PhotoRepositoryPG{sql: sql}
}

// GetByID fetches a photo by its identifier. Malformed ids are reported as
// not found instead of reaching the database.
func (r *PhotoRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Photo, error) {
	if uuid.Validate(id) != nil {
		return nil, domain.ErrNotFound
	}
	photo, err := scanPhoto(r.sql.QueryRow(ctx, sqlinline.QSelectPhotoByID, id))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return photo, nil
}

// BeginProcessing performs the guarded PENDING|FAILED -> PROCESSING update.
func (r *PhotoRepositoryPG) BeginProcessing(ctx context.Context, id string) (*domain.Photo, bool, error) {
	photo, err := scanPhoto(r.sql.QueryRow(ctx, sqlinline.QBeginPhotoProcessing, id))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return photo, true, nil
}

// Complete stores the validated location and marks the photo COMPLETED.
func (r *PhotoRepositoryPG) Complete(ctx context.Context, id, enhancedLocation string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QCompletePhoto, id, enhancedLocation)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("complete photo %s: %w", id, domain.ErrConflict)
	}
	return nil
}

// Fail marks a PROCESSING photo FAILED and clears any location.
func (r *PhotoRepositoryPG) Fail(ctx context.Context, id, lastError string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QFailPhoto, id, lastError)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("fail photo %s: %w", id, domain.ErrConflict)
	}
	return nil
}

// ListRetryable returns FAILED photos still under the attempt budget, oldest first.
func (r *PhotoRepositoryPG) ListRetryable(ctx context.Context, maxAttempts, limit int) ([]domain.Photo, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QSelectRetryablePhotos, maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var photos []domain.Photo
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, *photo)
	}
	return photos, rows.Err()
}

// FailStale moves photos stuck in PROCESSING for longer than the threshold to FAILED.
func (r *PhotoRepositoryPG) FailStale(ctx context.Context, olderThanMinutes int, lastError string) (int64, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QFailStalePhotos, olderThanMinutes, lastError)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanPhoto(row pgx.Row) (*domain.Photo, error) {
	var p domain.Photo
	if err := row.Scan(
		&p.ID,
		&p.OwnerID,
		&p.OriginalLocation,
		&p.EnhancedLocation,
		&p.Status,
		&p.LastError,
		&p.Attempts,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

var _ domain.PhotoRepository = (*PhotoRepositoryPG)(nil)

// Package sweeper is the scheduled caller that retries FAILED photos and
// recovers photos left in PROCESSING by a crashed invocation.
package sweeper

import (
	"context"
	"errors"
	"time"

	"github.com/go-pkgz/repeater"
	"github.com/go-pkgz/repeater/strategy"
	"github.com/rs/zerolog"

	"photoenhance/internal/domain"
)

// Trigger runs one Enhance attempt for a photo on the owner's behalf.
type Trigger interface {
	Enhance(ctx context.Context, photoID string) error
}

// Options holds the retry policy.
type Options struct {
	MaxAttempts            int
	BaseDelay              time.Duration
	StaleProcessingMinutes int
	BatchSize              int
	Logger                 zerolog.Logger
}

// Sweeper owns the retry policy; the orchestrator itself stays single-attempt.
type Sweeper struct {
	photos  domain.PhotoRepository
	trigger Trigger
	opts    Options
}

// Stats summarizes one sweep.
type Stats struct {
	Recovered  int64
	Candidates int
	Completed  int
	GaveUp     int
}

func New(photos domain.PhotoRepository, trigger Trigger, opts Options) *Sweeper {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 2 * time.Second
	}
	if opts.StaleProcessingMinutes <= 0 {
		opts.StaleProcessingMinutes = 10
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	return &Sweeper{photos: photos, trigger: trigger, opts: opts}
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			s.opts.Logger.Error().Err(err).Msg("sweeper: sweep failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SweepOnce recovers stale PROCESSING photos, then retries each retryable
// FAILED photo with exponential backoff until it completes, hits an outcome
// that stops this sweep, or exhausts its attempt budget.
func (s *Sweeper) SweepOnce(ctx context.Context) (Stats, error) {
	var stats Stats
	recovered, err := s.photos.FailStale(ctx, s.opts.StaleProcessingMinutes, domain.MsgProcessingInterrupted)
	if err != nil {
		return stats, err
	}
	stats.Recovered = recovered
	if recovered > 0 {
		s.opts.Logger.Warn().Int64("count", recovered).Msg("sweeper: recovered stale processing photos")
	}

	photos, err := s.photos.ListRetryable(ctx, s.opts.MaxAttempts, s.opts.BatchSize)
	if err != nil {
		return stats, err
	}
	stats.Candidates = len(photos)

	for _, photo := range photos {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		if s.retry(ctx, photo) {
			stats.Completed++
		} else {
			stats.GaveUp++
		}
	}
	return stats, nil
}

func (s *Sweeper) retry(ctx context.Context, photo domain.Photo) bool {
	remaining := s.opts.MaxAttempts - photo.Attempts
	if remaining <= 0 {
		return false
	}
	log := s.opts.Logger.With().Str("photo_id", photo.ID).Int("attempts", photo.Attempts).Logger()

	var (
		used      int
		succeeded bool
		stopped   error
	)
	rpt := repeater.New(&strategy.Backoff{
		Duration: s.opts.BaseDelay,
		Repeats:  remaining,
		Factor:   2,
		Jitter:   true,
	})
	err := rpt.Do(ctx, func() error {
		if used >= remaining || stopped != nil || succeeded {
			return nil
		}
		used++
		err := s.trigger.Enhance(ctx, photo.ID)
		switch {
		case err == nil:
			succeeded = true
			return nil
		case errors.Is(err, ErrPermanent), errors.Is(err, ErrDeferred):
			stopped = err
			return nil
		default:
			log.Warn().Err(err).Int("try", used).Msg("sweeper: attempt failed")
			if used >= remaining {
				return nil
			}
			return err
		}
	})

	switch {
	case succeeded:
		log.Info().Int("tries", used).Msg("sweeper: photo completed")
	case errors.Is(stopped, ErrDeferred):
		log.Info().Err(stopped).Int("tries", used).Msg("sweeper: left for next sweep")
	case stopped != nil:
		log.Info().Err(stopped).Msg("sweeper: not retryable")
	case err != nil:
		log.Warn().Err(err).Msg("sweeper: retry stopped")
	default:
		log.Warn().Int("tries", used).Msg("sweeper: attempt budget exhausted")
	}
	return succeeded
}

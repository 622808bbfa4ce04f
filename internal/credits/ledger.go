// Package credits implements the per-user credit ledger charged on
// successful enhancements.
package credits

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"photoenhance/internal/domain"
	"photoenhance/internal/infra"
	"photoenhance/internal/sqlinline"
)

// Ledger charges one credit per enhanced photo. Balance check and decrement
// happen in a single statement; the charge is keyed by photo so repeating it
// never deducts twice.
type Ledger struct {
	sql    infra.SQLExecutor
	users  domain.UserRepository
	logger zerolog.Logger
}

// NewLedger wires a ledger over the SQL executor and user repository.
func NewLedger(sql infra.SQLExecutor, users domain.UserRepository, logger zerolog.Logger) *Ledger {
	return &Ledger{sql: sql, users: users, logger: logger}
}

// IsPrivileged reports whether the stored account has the admin role.
func (l *Ledger) IsPrivileged(ctx context.Context, userID string) (bool, error) {
	user, err := l.users.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.IsPrivileged(), nil
}

// CanCharge reports whether a charge would currently succeed. It is advisory;
// Charge re-checks atomically.
func (l *Ledger) CanCharge(ctx context.Context, userID string) (bool, error) {
	user, err := l.users.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.IsPrivileged() || user.Credits > 0, nil
}

// Charge deducts one credit from userID for photoID. Privileged accounts are
// never debited. A second charge for the same photo succeeds without change.
func (l *Ledger) Charge(ctx context.Context, userID, photoID string) error {
	privileged, err := l.IsPrivileged(ctx, userID)
	if err != nil {
		return fmt.Errorf("credits: load user: %w", err)
	}
	if privileged {
		l.logger.Debug().Str("user_id", userID).Str("photo_id", photoID).Msg("credits: privileged account, charge skipped")
		return nil
	}

	var alreadyCharged, charged bool
	var balance int
	row := l.sql.QueryRow(ctx, sqlinline.QChargeCredit, userID, photoID)
	if err := row.Scan(&alreadyCharged, &charged, &balance); err != nil {
		return fmt.Errorf("credits: charge: %w", err)
	}
	switch {
	case alreadyCharged:
		l.logger.Info().Str("user_id", userID).Str("photo_id", photoID).Msg("credits: photo already charged")
		return nil
	case !charged:
		return domain.NewPipelineError(domain.KindInsufficientCredits, domain.MsgInsufficientCredits, nil)
	}
	l.logger.Info().Str("user_id", userID).Str("photo_id", photoID).Int("balance", balance).Msg("credits: charged")
	return nil
}

// Refund reverses the charge recorded for photoID, if any.
func (l *Ledger) Refund(ctx context.Context, userID, photoID string) error {
	if _, err := l.sql.Exec(ctx, sqlinline.QRefundCredit, userID, photoID); err != nil {
		return fmt.Errorf("credits: refund: %w", err)
	}
	l.logger.Info().Str("user_id", userID).Str("photo_id", photoID).Msg("credits: refunded")
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/evently/ticketing/internal/entity"
)

type sessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *entity.PaymentSession) error {
	now := time.Now()
	query := `
		INSERT INTO payment_sessions (id, event_id, buyer_user_id, amount_minor,
			currency, intent, status, failure_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.EventID,
		session.BuyerUserID,
		session.AmountMinor,
		session.Currency,
		session.Intent,
		session.Status,
		session.FailureReason,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment session: %w", err)
	}

	session.CreatedAt = now
	session.UpdatedAt = now
	return nil
}

func (r *sessionRepository) GetByID(ctx context.Context, id string) (*entity.PaymentSession, error) {
	query := `
		SELECT id, event_id, buyer_user_id, amount_minor, currency, intent,
			status, failure_reason, created_at, updated_at
		FROM payment_sessions
		WHERE id = $1
	`

	var s entity.PaymentSession
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID,
		&s.EventID,
		&s.BuyerUserID,
		&s.AmountMinor,
		&s.Currency,
		&s.Intent,
		&s.Status,
		&s.FailureReason,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, entity.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment session: %w", err)
	}

	return &s, nil
}

// Claim flips the session from pending to processing as one conditional
// update. Exactly one webhook delivery wins the claim; retries see zero rows
// affected and are reported as ErrSessionProcessed so the caller can no-op.
func (r *sessionRepository) Claim(ctx context.Context, id string) error {
	query := `
		UPDATE payment_sessions
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`

	result, err := r.db.ExecContext(ctx, query,
		entity.SessionStatusProcessing, time.Now(), id, entity.SessionStatusPending)
	if err != nil {
		return fmt.Errorf("failed to claim payment session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return entity.ErrSessionProcessed
}

// Reopen reverts processing back to pending. Conditional on the current
// status so it can never resurrect a fulfilled or failed session.
func (r *sessionRepository) Reopen(ctx context.Context, id string) error {
	query := `
		UPDATE payment_sessions
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`

	result, err := r.db.ExecContext(ctx, query,
		entity.SessionStatusPending, time.Now(), id, entity.SessionStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to reopen payment session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrSessionNotFound
	}
	return nil
}

// GetStalePending returns pending sessions created before the cutoff. These
// are checkouts the buyer abandoned without the provider ever calling back.
func (r *sessionRepository) GetStalePending(ctx context.Context, before time.Time) ([]*entity.PaymentSession, error) {
	query := `
		SELECT id, event_id, buyer_user_id, amount_minor, currency, intent,
			status, failure_reason, created_at, updated_at
		FROM payment_sessions
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, entity.SessionStatusPending, before)
	if err != nil {
		return nil, fmt.Errorf("failed to get stale payment sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*entity.PaymentSession
	for rows.Next() {
		var s entity.PaymentSession
		if err := rows.Scan(
			&s.ID,
			&s.EventID,
			&s.BuyerUserID,
			&s.AmountMinor,
			&s.Currency,
			&s.Intent,
			&s.Status,
			&s.FailureReason,
			&s.CreatedAt,
			&s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan payment session: %w", err)
		}
		sessions = append(sessions, &s)
	}

	return sessions, rows.Err()
}

func (r *sessionRepository) MarkFulfilled(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, entity.SessionStatusFulfilled, "")
}

func (r *sessionRepository) MarkFailed(ctx context.Context, id, reason string) error {
	return r.setStatus(ctx, id, entity.SessionStatusFailed, reason)
}

func (r *sessionRepository) setStatus(ctx context.Context, id string, status entity.SessionStatus, reason string) error {
	query := `
		UPDATE payment_sessions
		SET status = $1, failure_reason = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := r.db.ExecContext(ctx, query, status, reason, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update payment session status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrSessionNotFound
	}
	return nil
}

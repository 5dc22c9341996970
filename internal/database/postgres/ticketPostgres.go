package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/evently/ticketing/internal/entity"
)

type ticketRepository struct {
	db *sql.DB
}

func NewTicketRepository(db *sql.DB) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *entity.Ticket) error {
	now := time.Now()
	query := `
		INSERT INTO tickets (id, event_id, buyer_user_id, attendee_id,
			ticket_type_label, qr_code_ref, status, sent_to_email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (attendee_id) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		ticket.ID,
		ticket.EventID,
		ticket.BuyerUserID,
		ticket.AttendeeID,
		ticket.TicketTypeLabel,
		ticket.QRCodeRef,
		ticket.Status,
		ticket.SentToEmail,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create ticket: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Unique attendee_id already holds a ticket; issuance retries hit
		// this path and must not produce a second row.
		return entity.ErrTicketAlreadyIssued
	}

	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	return nil
}

const ticketColumns = `id, event_id, buyer_user_id, attendee_id,
	ticket_type_label, qr_code_ref, status, sent_to_email, created_at, updated_at`

func scanTicket(row interface{ Scan(...any) error }) (*entity.Ticket, error) {
	var t entity.Ticket
	err := row.Scan(
		&t.ID,
		&t.EventID,
		&t.BuyerUserID,
		&t.AttendeeID,
		&t.TicketTypeLabel,
		&t.QRCodeRef,
		&t.Status,
		&t.SentToEmail,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*entity.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`

	t, err := scanTicket(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, entity.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return t, nil
}

func (r *ticketRepository) GetByAttendeeID(ctx context.Context, attendeeID string) (*entity.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE attendee_id = $1`

	t, err := scanTicket(r.db.QueryRowContext(ctx, query, attendeeID))
	if err == sql.ErrNoRows {
		return nil, entity.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket by attendee: %w", err)
	}
	return t, nil
}

func (r *ticketRepository) GetByBuyer(ctx context.Context, buyerUserID string) ([]*entity.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE buyer_user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, buyerUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*entity.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}

	return tickets, rows.Err()
}

func (r *ticketRepository) UpdateArtifact(ctx context.Context, id, qrCodeRef string, sentToEmail bool) error {
	query := `UPDATE tickets SET qr_code_ref = $1, sent_to_email = $2, updated_at = $3 WHERE id = $4`

	result, err := r.db.ExecContext(ctx, query, qrCodeRef, sentToEmail, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update ticket artifact: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrTicketNotFound
	}
	return nil
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, id string, status entity.TicketStatus) error {
	query := `UPDATE tickets SET status = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update ticket status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrTicketNotFound
	}
	return nil
}

// CheckIn admits the ticket holder. The status guard makes the update the
// arbiter between concurrent scans: zero rows affected means another scan
// already consumed the ticket (or it never was admissible).
func (r *ticketRepository) CheckIn(ctx context.Context, id string) error {
	query := `UPDATE tickets SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`

	result, err := r.db.ExecContext(ctx, query,
		entity.TicketStatusCheckedIn, time.Now(), id, entity.TicketStatusActive)
	if err != nil {
		return fmt.Errorf("failed to check in ticket: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	ticket, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	switch ticket.Status {
	case entity.TicketStatusCancelled:
		return entity.ErrTicketCancelled
	case entity.TicketStatusCheckedIn:
		return entity.ErrTicketAlreadyRedeemed
	default:
		return fmt.Errorf("ticket %s in unexpected status %q", id, ticket.Status)
	}
}

// CountByBuyerAndType backs the per-buyer limit check at checkout time.
func (r *ticketRepository) CountByBuyerAndType(ctx context.Context, eventID, buyerUserID, ticketTypeID string) (int, error) {
	var count int
	query := `
		SELECT COUNT(*)
		FROM tickets t
		JOIN attendees a ON a.id = t.attendee_id
		WHERE t.event_id = $1 AND t.buyer_user_id = $2 AND a.ticket_type_id = $3
			AND t.status <> 'cancelled'
	`
	if err := r.db.QueryRowContext(ctx, query, eventID, buyerUserID, ticketTypeID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count buyer tickets: %w", err)
	}
	return count, nil
}

// GetUnfinished returns active tickets whose QR artifact or confirmation
// email is still missing; the issuance worker feeds on this.
func (r *ticketRepository) GetUnfinished(ctx context.Context, limit int) ([]*entity.Ticket, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + ticketColumns + `
		FROM tickets
		WHERE status = 'active' AND (qr_code_ref = '' OR sent_to_email = false)
		ORDER BY created_at
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unfinished tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*entity.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}

	return tickets, rows.Err()
}

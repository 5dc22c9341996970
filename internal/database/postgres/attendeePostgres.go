package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/evently/ticketing/internal/entity"
)

type attendeeRepository struct {
	db *sql.DB
}

func NewAttendeeRepository(db *sql.DB) AttendeeRepository {
	return &attendeeRepository{db: db}
}

// CreateBatch inserts every attendee of a booking in one transaction: the
// batch is visible all at once or not at all.
func (r *attendeeRepository) CreateBatch(ctx context.Context, attendees []*entity.Attendee) error {
	if len(attendees) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	query := `
		INSERT INTO attendees (id, event_id, ticket_type_id, name, email, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, a := range attendees {
		_, err := tx.ExecContext(ctx, query,
			a.ID,
			a.EventID,
			a.TicketTypeID,
			a.Name,
			a.Email,
			a.Status,
			now,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to create attendee %q: %w", a.Name, err)
		}
		a.CreatedAt = now
		a.UpdatedAt = now
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *attendeeRepository) GetByID(ctx context.Context, id string) (*entity.Attendee, error) {
	query := `
		SELECT id, event_id, ticket_type_id, name, email, status, created_at, updated_at
		FROM attendees
		WHERE id = $1
	`

	var a entity.Attendee
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID,
		&a.EventID,
		&a.TicketTypeID,
		&a.Name,
		&a.Email,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, entity.ErrAttendeeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attendee: %w", err)
	}

	return &a, nil
}

func (r *attendeeRepository) GetByEventID(ctx context.Context, eventID string) ([]*entity.Attendee, error) {
	query := `
		SELECT id, event_id, ticket_type_id, name, email, status, created_at, updated_at
		FROM attendees
		WHERE event_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendees: %w", err)
	}
	defer rows.Close()

	var attendees []*entity.Attendee
	for rows.Next() {
		var a entity.Attendee
		err := rows.Scan(
			&a.ID,
			&a.EventID,
			&a.TicketTypeID,
			&a.Name,
			&a.Email,
			&a.Status,
			&a.CreatedAt,
			&a.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendee: %w", err)
		}
		attendees = append(attendees, &a)
	}

	return attendees, rows.Err()
}

func (r *attendeeRepository) CountByTicketType(ctx context.Context, ticketTypeID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM attendees WHERE ticket_type_id = $1`
	if err := r.db.QueryRowContext(ctx, query, ticketTypeID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count attendees: %w", err)
	}
	return count, nil
}

func (r *attendeeRepository) UpdateStatus(ctx context.Context, id string, status entity.AttendeeStatus) error {
	query := `UPDATE attendees SET status = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update attendee status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrAttendeeNotFound
	}

	return nil
}

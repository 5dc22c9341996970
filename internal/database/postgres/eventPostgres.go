package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/evently/ticketing/internal/entity"
)

type eventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) EventRepository {
	return &eventRepository{db: db}
}

// Create persists the event and its ticket types in one transaction so a
// half-created event never becomes bookable.
func (r *eventRepository) Create(ctx context.Context, event *entity.Event) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	query := `
		INSERT INTO events (id, title, description, venue, start_time, end_time,
			organizer_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = tx.ExecContext(ctx, query,
		event.ID,
		event.Title,
		event.Description,
		event.Venue,
		event.StartTime,
		event.EndTime,
		event.OrganizerID,
		event.Status,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	for _, tt := range event.TicketTypes {
		if err := insertTicketType(ctx, tx, tt, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	event.CreatedAt = now
	event.UpdatedAt = now
	return nil
}

func insertTicketType(ctx context.Context, tx *sql.Tx, tt *entity.TicketType, now time.Time) error {
	query := `
		INSERT INTO ticket_types (id, event_id, label, unit_price_minor, currency,
			max_quantity, per_buyer_limit, sold_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := tx.ExecContext(ctx, query,
		tt.ID,
		tt.EventID,
		tt.Label,
		tt.UnitPriceMinor,
		tt.Currency,
		tt.MaxQuantity,
		tt.PerBuyerLimit,
		tt.SoldCount,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create ticket type %q: %w", tt.Label, err)
	}
	tt.CreatedAt = now
	tt.UpdatedAt = now
	return nil
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*entity.Event, error) {
	query := `
		SELECT id, title, description, venue, start_time, end_time,
			organizer_id, status, created_at, updated_at
		FROM events
		WHERE id = $1
	`

	var event entity.Event
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&event.ID,
		&event.Title,
		&event.Description,
		&event.Venue,
		&event.StartTime,
		&event.EndTime,
		&event.OrganizerID,
		&event.Status,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, entity.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	types, err := r.GetTicketTypes(ctx, id)
	if err != nil {
		return nil, err
	}
	event.TicketTypes = types

	return &event, nil
}

func (r *eventRepository) Update(ctx context.Context, event *entity.Event) error {
	query := `
		UPDATE events
		SET title = $1, description = $2, venue = $3, start_time = $4,
			end_time = $5, status = $6, updated_at = $7
		WHERE id = $8
	`

	result, err := r.db.ExecContext(ctx, query,
		event.Title,
		event.Description,
		event.Venue,
		event.StartTime,
		event.EndTime,
		event.Status,
		time.Now(),
		event.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrEventNotFound
	}

	return nil
}

func (r *eventRepository) GetTicketTypes(ctx context.Context, eventID string) ([]*entity.TicketType, error) {
	query := `
		SELECT id, event_id, label, unit_price_minor, currency, max_quantity,
			per_buyer_limit, sold_count, created_at, updated_at
		FROM ticket_types
		WHERE event_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ticket types: %w", err)
	}
	defer rows.Close()

	var types []*entity.TicketType
	for rows.Next() {
		var tt entity.TicketType
		err := rows.Scan(
			&tt.ID,
			&tt.EventID,
			&tt.Label,
			&tt.UnitPriceMinor,
			&tt.Currency,
			&tt.MaxQuantity,
			&tt.PerBuyerLimit,
			&tt.SoldCount,
			&tt.CreatedAt,
			&tt.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket type: %w", err)
		}
		types = append(types, &tt)
	}

	return types, rows.Err()
}

func (r *eventRepository) CreateTicketType(ctx context.Context, tt *entity.TicketType) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertTicketType(ctx, tx, tt, time.Now()); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateTicketTypeTerms patches the commercial terms of a type in place.
// Label, id and sold_count are deliberately untouched: existing attendee and
// ticket rows keep resolving to the same row.
func (r *eventRepository) UpdateTicketTypeTerms(ctx context.Context, id string, unitPriceMinor int64, maxQuantity, perBuyerLimit int) error {
	query := `
		UPDATE ticket_types
		SET unit_price_minor = $1, max_quantity = $2, per_buyer_limit = $3, updated_at = $4
		WHERE id = $5
	`

	result, err := r.db.ExecContext(ctx, query, unitPriceMinor, maxQuantity, perBuyerLimit, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update ticket type: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrTicketTypeNotFound
	}

	return nil
}

func (r *eventRepository) DeleteTicketType(ctx context.Context, id string) error {
	// Refuse to delete a type that attendees reference; the caller decides
	// between patching in place and deletion, this is the last line of defense.
	var attendeeCount int
	query := `SELECT COUNT(*) FROM attendees WHERE ticket_type_id = $1`
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&attendeeCount); err != nil {
		return fmt.Errorf("failed to check ticket type attendees: %w", err)
	}
	if attendeeCount > 0 {
		return entity.ErrTicketTypeHasAttendees
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM ticket_types WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete ticket type: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrTicketTypeNotFound
	}

	return nil
}

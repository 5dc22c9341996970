package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/evently/ticketing/internal/entity"
)

type inventoryRepository struct {
	db *sql.DB
}

func NewInventoryRepository(db *sql.DB) InventoryRepository {
	return &inventoryRepository{db: db}
}

// Reserve increments sold_count by quantity only if the result stays within
// max_quantity, as one conditional UPDATE. Concurrent callers race on the row
// in the database, never in application code, so oversell is impossible
// regardless of how many process instances are running.
func (r *inventoryRepository) Reserve(ctx context.Context, eventID, ticketTypeID string, quantity int) error {
	if quantity <= 0 {
		return entity.ErrInvalidQuantity
	}

	query := `
		UPDATE ticket_types
		SET sold_count = sold_count + $3, updated_at = $4
		WHERE id = $1 AND event_id = $2 AND sold_count + $3 <= max_quantity
	`

	result, err := r.db.ExecContext(ctx, query, ticketTypeID, eventID, quantity, time.Now())
	if err != nil {
		return fmt.Errorf("failed to reserve inventory: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	// The guard rejected the update: either the type does not exist or the
	// remaining capacity is too small. Tell the two apart for the caller.
	tt, err := r.GetTicketType(ctx, ticketTypeID)
	if err != nil {
		return err
	}
	if tt.EventID != eventID {
		return entity.ErrTicketTypeNotFound
	}
	return &entity.SoldOutError{Label: tt.Label}
}

// Release is the compensating decrement for reservations made earlier in a
// failed batch. The guard at zero keeps a buggy double-release from driving
// sold_count negative.
func (r *inventoryRepository) Release(ctx context.Context, eventID, ticketTypeID string, quantity int) error {
	if quantity <= 0 {
		return entity.ErrInvalidQuantity
	}

	query := `
		UPDATE ticket_types
		SET sold_count = sold_count - $3, updated_at = $4
		WHERE id = $1 AND event_id = $2 AND sold_count - $3 >= 0
	`

	result, err := r.db.ExecContext(ctx, query, ticketTypeID, eventID, quantity, time.Now())
	if err != nil {
		return fmt.Errorf("failed to release inventory: %w", err)
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

func (r *inventoryRepository) GetTicketType(ctx context.Context, ticketTypeID string) (*entity.TicketType, error) {
	query := `
		SELECT id, event_id, label, unit_price_minor, currency, max_quantity,
			per_buyer_limit, sold_count, created_at, updated_at
		FROM ticket_types
		WHERE id = $1
	`

	var tt entity.TicketType
	err := r.db.QueryRowContext(ctx, query, ticketTypeID).Scan(
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
	if err == sql.ErrNoRows {
		return nil, entity.ErrTicketTypeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket type: %w", err)
	}

	return &tt, nil
}

package entity

import (
	"strings"
	"time"
)

type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusPublished EventStatus = "published"
	EventStatusCancelled EventStatus = "cancelled"
)

type Event struct {
	ID          string      `json:"id" db:"id"`
	Title       string      `json:"title" db:"title"`
	Description string      `json:"description" db:"description"`
	Venue       string      `json:"venue" db:"venue"`
	StartTime   time.Time   `json:"start_time" db:"start_time"`
	EndTime     time.Time   `json:"end_time" db:"end_time"`
	OrganizerID string      `json:"organizer_id" db:"organizer_id"`
	Status      EventStatus `json:"status" db:"status"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`

	TicketTypes []*TicketType `json:"ticket_types,omitempty"`
}

// TicketType is a priced admission tier with a hard capacity cap.
// SoldCount is the only field mutated on the booking hot path and is
// guarded by the conditional update in the inventory repository.
type TicketType struct {
	ID             string    `json:"id" db:"id"`
	EventID        string    `json:"event_id" db:"event_id"`
	Label          string    `json:"label" db:"label"`
	UnitPriceMinor int64     `json:"unit_price_minor" db:"unit_price_minor"`
	Currency       string    `json:"currency" db:"currency"`
	MaxQuantity    int       `json:"max_quantity" db:"max_quantity"`
	PerBuyerLimit  int       `json:"per_buyer_limit" db:"per_buyer_limit"`
	SoldCount      int       `json:"sold_count" db:"sold_count"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

func (t *TicketType) Available() int {
	return t.MaxQuantity - t.SoldCount
}

// FindTicketType resolves a type by id, falling back to a case-insensitive
// label match for clients that still send the free-text type name.
func (e *Event) FindTicketType(idOrLabel string) *TicketType {
	for _, tt := range e.TicketTypes {
		if tt.ID == idOrLabel {
			return tt
		}
	}
	for _, tt := range e.TicketTypes {
		if strings.EqualFold(tt.Label, idOrLabel) {
			return tt
		}
	}
	return nil
}

package entity

import (
	"time"
)

type TicketStatus string

const (
	TicketStatusActive    TicketStatus = "active"
	TicketStatusCancelled TicketStatus = "cancelled"
	TicketStatusCheckedIn TicketStatus = "checked-in"
)

// Ticket is owned by the buyer who paid, one per attendee. QRCodeRef points
// at the stored QR artifact; empty means generation failed and the issuance
// worker will retry it.
type Ticket struct {
	ID              string       `json:"id" db:"id"`
	EventID         string       `json:"event_id" db:"event_id"`
	BuyerUserID     string       `json:"buyer_user_id" db:"buyer_user_id"`
	AttendeeID      string       `json:"attendee_id" db:"attendee_id"`
	TicketTypeLabel string       `json:"ticket_type_label" db:"ticket_type_label"`
	QRCodeRef       string       `json:"qr_code_ref" db:"qr_code_ref"`
	Status          TicketStatus `json:"status" db:"status"`
	SentToEmail     bool         `json:"sent_to_email" db:"sent_to_email"`
	CreatedAt       time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at" db:"updated_at"`
}

// VerificationPayload is the tuple encoded into every QR artifact. Scanners
// post it back verbatim at check-in, so the JSON shape is load-bearing.
type VerificationPayload struct {
	TicketID    string `json:"ticket_id"`
	EventID     string `json:"event_id"`
	BuyerUserID string `json:"buyer_user_id"`
	AttendeeID  string `json:"attendee_id"`
}

package entity

import (
	"time"
)

type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "pending"
	SessionStatusProcessing SessionStatus = "processing"
	SessionStatusFulfilled  SessionStatus = "fulfilled"
	SessionStatusFailed     SessionStatus = "failed"
)

// PaymentSession mirrors an external checkout session. The row is the
// dedup ledger for webhook retries: fulfillment only proceeds after an
// atomic pending -> processing claim on it.
type PaymentSession struct {
	ID            string        `json:"id" db:"id"`
	EventID       string        `json:"event_id" db:"event_id"`
	BuyerUserID   string        `json:"buyer_user_id" db:"buyer_user_id"`
	AmountMinor   int64         `json:"amount_minor" db:"amount_minor"`
	Currency      string        `json:"currency" db:"currency"`
	Intent        string        `json:"-" db:"intent"`
	Status        SessionStatus `json:"status" db:"status"`
	FailureReason string        `json:"failure_reason,omitempty" db:"failure_reason"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}

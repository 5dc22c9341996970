package payment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/evently/ticketing/internal/entity"
)

// LineItem is one charged position of a checkout session.
type LineItem struct {
	Description string `json:"description"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
	Quantity    int    `json:"quantity"`
}

// CheckoutSession mirrors the provider's session object. Metadata is the
// only field this service writes and reads back; everything else belongs to
// the provider.
type CheckoutSession struct {
	ID          string            `json:"id"`
	URL         string            `json:"url"`
	AmountMinor int64             `json:"amount_minor"`
	Currency    string            `json:"currency"`
	Status      string            `json:"status"`
	Metadata    map[string]string `json:"metadata"`
}

// Provider is the external payment collaborator. The gateway creates
// sessions through it and, on webhook delivery, re-fetches the session to
// recover authoritative state instead of trusting webhook body fields.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, items []LineItem, metadata map[string]string) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
}

const intentMetadataKey = "booking_intent"

// EncodeIntent packs a booking intent into session metadata. Base64 keeps the
// JSON opaque to the provider's dashboard and escaping rules.
func EncodeIntent(intent *entity.BookingIntent) (map[string]string, error) {
	data, err := json.Marshal(intent)
	if err != nil {
		return nil, fmt.Errorf("failed to encode booking intent: %w", err)
	}
	return map[string]string{
		intentMetadataKey: base64.StdEncoding.EncodeToString(data),
	}, nil
}

// DecodeIntent recovers the booking intent from session metadata.
func DecodeIntent(metadata map[string]string) (*entity.BookingIntent, error) {
	raw, ok := metadata[intentMetadataKey]
	if !ok || raw == "" {
		return nil, entity.ErrInvalidIntent
	}

	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, entity.ErrInvalidIntent
	}

	var intent entity.BookingIntent
	if err := json.Unmarshal(data, &intent); err != nil {
		return nil, entity.ErrInvalidIntent
	}
	if intent.EventID == "" || intent.BuyerUserID == "" || len(intent.AttendeeRequests) == 0 {
		return nil, entity.ErrInvalidIntent
	}
	return &intent, nil
}

package payment

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evently/ticketing/internal/entity"
)

func TestEncodeDecodeIntent(t *testing.T) {
	intent := &entity.BookingIntent{
		EventID:     "evt-1",
		BuyerUserID: "buyer-1",
		AttendeeRequests: []entity.AttendeeRequest{
			{Name: "A", Email: "a@test.io", TicketTypeID: "tt-ga"},
			{Name: "B", Email: "b@test.io", TicketType: "VIP"},
		},
	}

	metadata, err := EncodeIntent(intent)
	require.NoError(t, err)
	require.Contains(t, metadata, "booking_intent")

	decoded, err := DecodeIntent(metadata)
	require.NoError(t, err)
	assert.Equal(t, intent.EventID, decoded.EventID)
	assert.Equal(t, intent.BuyerUserID, decoded.BuyerUserID)
	assert.Equal(t, intent.AttendeeRequests, decoded.AttendeeRequests)
}

func TestDecodeIntentRejectsBadMetadata(t *testing.T) {
	tests := []struct {
		name     string
		metadata map[string]string
	}{
		{name: "nil metadata", metadata: nil},
		{name: "missing key", metadata: map[string]string{"other": "x"}},
		{name: "empty value", metadata: map[string]string{"booking_intent": ""}},
		{name: "not base64", metadata: map[string]string{"booking_intent": "%%%"}},
		{
			name: "not json",
			metadata: map[string]string{
				"booking_intent": base64.StdEncoding.EncodeToString([]byte("not json")),
			},
		},
		{
			name: "no attendees",
			metadata: map[string]string{
				"booking_intent": base64.StdEncoding.EncodeToString(
					[]byte(`{"event_id":"evt-1","buyer_user_id":"buyer-1","attendee_requests":[]}`),
				),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeIntent(tt.metadata)
			require.ErrorIs(t, err, entity.ErrInvalidIntent)
		})
	}
}

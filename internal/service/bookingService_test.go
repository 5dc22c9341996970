package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evently/ticketing/internal/entity"
)

func testEvent() *entity.Event {
	return &entity.Event{
		ID:     "evt-1",
		Title:  "Go Conference",
		Venue:  "Main Hall",
		Status: entity.EventStatusPublished,
		TicketTypes: []*entity.TicketType{
			{ID: "tt-vip", EventID: "evt-1", Label: "VIP", UnitPriceMinor: 15000, Currency: "USD", MaxQuantity: 2},
			{ID: "tt-ga", EventID: "evt-1", Label: "General Admission", UnitPriceMinor: 5000, Currency: "USD", MaxQuantity: 100},
		},
	}
}

func TestFulfillBooking(t *testing.T) {
	tests := []struct {
		name      string
		requests  []entity.AttendeeRequest
		wantErr   error
		wantSold  map[string]int
		attendees int
	}{
		{
			name: "single attendee by type id",
			requests: []entity.AttendeeRequest{
				{Name: "Alice", Email: "alice@test.io", TicketTypeID: "tt-ga"},
			},
			wantSold:  map[string]int{"tt-ga": 1},
			attendees: 1,
		},
		{
			name: "mixed types aggregated per tier",
			requests: []entity.AttendeeRequest{
				{Name: "Alice", Email: "alice@test.io", TicketTypeID: "tt-ga"},
				{Name: "Bob", Email: "bob@test.io", TicketTypeID: "tt-vip"},
				{Name: "Carol", Email: "carol@test.io", TicketTypeID: "tt-ga"},
			},
			wantSold:  map[string]int{"tt-ga": 2, "tt-vip": 1},
			attendees: 3,
		},
		{
			name: "legacy label reference is matched case-insensitively",
			requests: []entity.AttendeeRequest{
				{Name: "Alice", Email: "alice@test.io", TicketType: "vip"},
			},
			wantSold:  map[string]int{"tt-vip": 1},
			attendees: 1,
		},
		{
			name: "vip capacity exceeded fails whole booking",
			requests: []entity.AttendeeRequest{
				{Name: "Alice", Email: "alice@test.io", TicketType: "VIP"},
				{Name: "Bob", Email: "bob@test.io", TicketType: "VIP"},
				{Name: "Carol", Email: "carol@test.io", TicketType: "VIP"},
			},
			wantErr:  entity.ErrTicketTypeSoldOut,
			wantSold: map[string]int{"tt-vip": 0, "tt-ga": 0},
		},
		{
			name: "unknown type reserves nothing",
			requests: []entity.AttendeeRequest{
				{Name: "Alice", Email: "alice@test.io", TicketTypeID: "tt-ga"},
				{Name: "Bob", Email: "bob@test.io", TicketType: "Backstage"},
			},
			wantErr:  entity.ErrInvalidTicketType,
			wantSold: map[string]int{"tt-ga": 0, "tt-vip": 0},
		},
		{
			name:     "empty booking rejected",
			requests: nil,
			wantErr:  entity.ErrEmptyBooking,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := testEvent()
			eventRepo := newFakeEventRepo(event)
			inventoryRepo := newFakeInventoryRepo(event.TicketTypes...)
			attendeeRepo := newFakeAttendeeRepo()

			svc := NewBookingService(eventRepo, inventoryRepo, attendeeRepo)

			result, err := svc.FulfillBooking(context.Background(), &entity.BookingIntent{
				EventID:          "evt-1",
				BuyerUserID:      "buyer-1",
				AttendeeRequests: tt.requests,
			})

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, result)
			} else {
				require.NoError(t, err)
				require.Len(t, result.Attendees, tt.attendees)
				assert.Equal(t, "buyer-1", result.BuyerID)
				for _, a := range result.Attendees {
					assert.Equal(t, entity.AttendeeStatusBooked, a.Status)
					assert.NotEmpty(t, a.TicketTypeID)
				}
			}

			for typeID, sold := range tt.wantSold {
				got, gerr := inventoryRepo.GetTicketType(context.Background(), typeID)
				require.NoError(t, gerr)
				assert.Equalf(t, sold, got.SoldCount, "sold count for %s", typeID)
			}
		})
	}
}

func TestFulfillBookingReleasesInReverseOrder(t *testing.T) {
	event := testEvent()
	// GA first, then VIP over capacity: GA reservation succeeds and must be
	// released after the VIP reservation fails
	eventRepo := newFakeEventRepo(event)
	inventoryRepo := newFakeInventoryRepo(event.TicketTypes...)
	attendeeRepo := newFakeAttendeeRepo()

	svc := NewBookingService(eventRepo, inventoryRepo, attendeeRepo)

	_, err := svc.FulfillBooking(context.Background(), &entity.BookingIntent{
		EventID:     "evt-1",
		BuyerUserID: "buyer-1",
		AttendeeRequests: []entity.AttendeeRequest{
			{Name: "A", Email: "a@test.io", TicketTypeID: "tt-ga"},
			{Name: "B", Email: "b@test.io", TicketTypeID: "tt-vip"},
			{Name: "C", Email: "c@test.io", TicketTypeID: "tt-vip"},
			{Name: "D", Email: "d@test.io", TicketTypeID: "tt-vip"},
		},
	})

	require.ErrorIs(t, err, entity.ErrTicketTypeSoldOut)
	assert.Equal(t, []string{"tt-ga", "tt-vip"}, inventoryRepo.reserveCalls)
	assert.Equal(t, []string{"tt-ga"}, inventoryRepo.releaseCalls)

	ga, _ := inventoryRepo.GetTicketType(context.Background(), "tt-ga")
	assert.Equal(t, 0, ga.SoldCount)
}

func TestFulfillBookingAttendeeInsertFailureReleasesHolds(t *testing.T) {
	event := testEvent()
	eventRepo := newFakeEventRepo(event)
	inventoryRepo := newFakeInventoryRepo(event.TicketTypes...)
	attendeeRepo := newFakeAttendeeRepo()
	attendeeRepo.failBatch = true

	svc := NewBookingService(eventRepo, inventoryRepo, attendeeRepo)

	_, err := svc.FulfillBooking(context.Background(), &entity.BookingIntent{
		EventID:     "evt-1",
		BuyerUserID: "buyer-1",
		AttendeeRequests: []entity.AttendeeRequest{
			{Name: "A", Email: "a@test.io", TicketTypeID: "tt-ga"},
		},
	})

	require.Error(t, err)
	ga, _ := inventoryRepo.GetTicketType(context.Background(), "tt-ga")
	assert.Equal(t, 0, ga.SoldCount)
}

// Concurrent bookings against a nearly sold out tier must never push
// sold_count past the cap, and exactly capacity-many bookings may win.
func TestFulfillBookingConcurrentNoOversell(t *testing.T) {
	event := &entity.Event{
		ID:     "evt-1",
		Title:  "Club Night",
		Status: entity.EventStatusPublished,
		TicketTypes: []*entity.TicketType{
			{ID: "tt-door", EventID: "evt-1", Label: "Door", MaxQuantity: 5, Currency: "USD"},
		},
	}
	eventRepo := newFakeEventRepo(event)
	inventoryRepo := newFakeInventoryRepo(event.TicketTypes...)
	attendeeRepo := newFakeAttendeeRepo()

	svc := NewBookingService(eventRepo, inventoryRepo, attendeeRepo)

	const workers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	fulfilled := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.FulfillBooking(context.Background(), &entity.BookingIntent{
				EventID:     "evt-1",
				BuyerUserID: "buyer-1",
				AttendeeRequests: []entity.AttendeeRequest{
					{Name: "Guest", Email: "guest@test.io", TicketTypeID: "tt-door"},
				},
			})
			if err == nil {
				mu.Lock()
				fulfilled++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, fulfilled)
	door, _ := inventoryRepo.GetTicketType(context.Background(), "tt-door")
	assert.Equal(t, 5, door.SoldCount)
}

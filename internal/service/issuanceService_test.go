package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evently/ticketing/internal/entity"
	"github.com/evently/ticketing/pkg/qr"
)

type issuanceFixture struct {
	svc          IssuanceService
	ticketRepo   *fakeTicketRepo
	attendeeRepo *fakeAttendeeRepo
	mediaStore   *fakeMediaStore
	sender       *fakeSender
	publisher    *capturingPublisher
}

func newIssuanceFixture(t *testing.T) *issuanceFixture {
	t.Helper()

	event := &entity.Event{
		ID:        "evt-1",
		Title:     "Go Conference",
		Venue:     "Main Hall",
		Status:    entity.EventStatusPublished,
		StartTime: time.Now().Add(24 * time.Hour),
		EndTime:   time.Now().Add(30 * time.Hour),
		TicketTypes: []*entity.TicketType{
			{ID: "tt-ga", EventID: "evt-1", Label: "General Admission", UnitPriceMinor: 5000, Currency: "USD", MaxQuantity: 100},
		},
	}

	ticketRepo := newFakeTicketRepo()
	attendeeRepo := newFakeAttendeeRepo()
	require.NoError(t, attendeeRepo.CreateBatch(context.Background(), []*entity.Attendee{
		{ID: "att-1", EventID: "evt-1", TicketTypeID: "tt-ga", Name: "A", Email: "a@test.io", Status: entity.AttendeeStatusBooked},
	}))

	mediaStore := &fakeMediaStore{}
	sender := &fakeSender{}
	publisher := &capturingPublisher{}

	svc := NewIssuanceService(
		ticketRepo,
		attendeeRepo,
		newFakeEventRepo(event),
		newFakeInventoryRepo(event.TicketTypes...),
		qr.NewGenerator(t.TempDir()),
		mediaStore,
		sender,
		publisher,
	)

	return &issuanceFixture{
		svc:          svc,
		ticketRepo:   ticketRepo,
		attendeeRepo: attendeeRepo,
		mediaStore:   mediaStore,
		sender:       sender,
		publisher:    publisher,
	}
}

func TestIssueTicket(t *testing.T) {
	fix := newIssuanceFixture(t)

	ticket, err := fix.svc.IssueTicket(context.Background(), "att-1", "buyer-1")
	require.NoError(t, err)

	assert.NotEmpty(t, ticket.ID)
	assert.Equal(t, "evt-1", ticket.EventID)
	assert.Equal(t, "buyer-1", ticket.BuyerUserID)
	assert.Equal(t, "General Admission", ticket.TicketTypeLabel)
	assert.Equal(t, entity.TicketStatusActive, ticket.Status)
	assert.NotEmpty(t, ticket.QRCodeRef)
	assert.True(t, ticket.SentToEmail)
	assert.Equal(t, []string{"a@test.io"}, fix.sender.sent)
}

func TestIssueTicketIdempotent(t *testing.T) {
	fix := newIssuanceFixture(t)

	first, err := fix.svc.IssueTicket(context.Background(), "att-1", "buyer-1")
	require.NoError(t, err)

	second, err := fix.svc.IssueTicket(context.Background(), "att-1", "buyer-1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, fix.mediaStore.stored)
	assert.Len(t, fix.sender.sent, 1)
	assert.Len(t, fix.ticketRepo.byID, 1)
}

func TestIssueTicketSurvivesArtifactFailure(t *testing.T) {
	fix := newIssuanceFixture(t)
	fix.mediaStore.storeErr = fmt.Errorf("disk full")

	ticket, err := fix.svc.IssueTicket(context.Background(), "att-1", "buyer-1")
	require.NoError(t, err)

	assert.Empty(t, ticket.QRCodeRef)
	assert.Equal(t, entity.TicketStatusActive, ticket.Status)

	// Retry fills in the missing artifact on the same row
	fix.mediaStore.storeErr = nil
	retried, err := fix.svc.IssueTicket(context.Background(), "att-1", "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, retried.ID)
	assert.NotEmpty(t, retried.QRCodeRef)
}

func TestIssueTicketEmailFailureNonFatal(t *testing.T) {
	fix := newIssuanceFixture(t)
	fix.sender.sendErr = fmt.Errorf("smtp down")

	ticket, err := fix.svc.IssueTicket(context.Background(), "att-1", "buyer-1")
	require.NoError(t, err)
	assert.False(t, ticket.SentToEmail)

	// A retry task is queued so the send is not lost
	require.Len(t, fix.publisher.tasks, 1)
	assert.Equal(t, TaskTypeSendTicketEmail, fix.publisher.tasks[0].Type)
	assert.Equal(t, ticket.ID, fix.publisher.tasks[0].Data["ticket_id"])

	fix.sender.sendErr = nil
	require.NoError(t, fix.svc.SendTicketEmail(context.Background(), ticket.ID))

	stored, err := fix.ticketRepo.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.True(t, stored.SentToEmail)
}

func TestIssueTicketEmailHeldUntilArtifactStored(t *testing.T) {
	fix := newIssuanceFixture(t)
	fix.mediaStore.storeErr = fmt.Errorf("disk full")

	ticket, err := fix.svc.IssueTicket(context.Background(), "att-1", "buyer-1")
	require.NoError(t, err)
	assert.Empty(t, ticket.QRCodeRef)

	// No artifact means nothing to deliver yet
	assert.False(t, ticket.SentToEmail)
	assert.Empty(t, fix.sender.sent)

	// A direct send is refused for the same reason
	err = fix.svc.SendTicketEmail(context.Background(), ticket.ID)
	require.Error(t, err)
	assert.Empty(t, fix.sender.sent)

	fix.mediaStore.storeErr = nil
	processed, err := fix.svc.RecoverUnfinished(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	recovered, err := fix.ticketRepo.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, recovered.QRCodeRef)
	assert.True(t, recovered.SentToEmail)
	assert.Equal(t, []string{"a@test.io"}, fix.sender.sent)
}

func TestIssueTicketUnknownAttendee(t *testing.T) {
	fix := newIssuanceFixture(t)

	_, err := fix.svc.IssueTicket(context.Background(), "att-missing", "buyer-1")
	require.ErrorIs(t, err, entity.ErrAttendeeNotFound)
}

func TestRecoverUnfinished(t *testing.T) {
	fix := newIssuanceFixture(t)
	fix.mediaStore.storeErr = fmt.Errorf("disk full")
	fix.sender.sendErr = fmt.Errorf("smtp down")

	ticket, err := fix.svc.IssueTicket(context.Background(), "att-1", "buyer-1")
	require.NoError(t, err)
	assert.Empty(t, ticket.QRCodeRef)
	assert.False(t, ticket.SentToEmail)

	fix.mediaStore.storeErr = nil
	fix.sender.sendErr = nil

	processed, err := fix.svc.RecoverUnfinished(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	recovered, err := fix.ticketRepo.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, recovered.QRCodeRef)
	assert.True(t, recovered.SentToEmail)

	// Nothing left to recover
	processed, err = fix.svc.RecoverUnfinished(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, processed)
}

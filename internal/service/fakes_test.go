package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/evently/ticketing/internal/entity"
	"github.com/evently/ticketing/pkg/payment"
)

// fakeEventRepo is an in-memory EventRepository
type fakeEventRepo struct {
	mu     sync.Mutex
	events map[string]*entity.Event
}

func newFakeEventRepo(events ...*entity.Event) *fakeEventRepo {
	r := &fakeEventRepo{events: make(map[string]*entity.Event)}
	for _, e := range events {
		r.events[e.ID] = e
	}
	return r
}

func (r *fakeEventRepo) Create(ctx context.Context, event *entity.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[event.ID] = event
	return nil
}

func (r *fakeEventRepo) GetByID(ctx context.Context, id string) (*entity.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[id]
	if !ok {
		return nil, entity.ErrEventNotFound
	}
	// Return a deep copy so callers see fresh state on every read, like the
	// Postgres repository; handing out the live pointer let a tier appended
	// by CreateTicketType leak into the event the service was still updating.
	c := *event
	c.TicketTypes = make([]*entity.TicketType, len(event.TicketTypes))
	for i, tt := range event.TicketTypes {
		ttCopy := *tt
		c.TicketTypes[i] = &ttCopy
	}
	return &c, nil
}

func (r *fakeEventRepo) Update(ctx context.Context, event *entity.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[event.ID]; !ok {
		return entity.ErrEventNotFound
	}
	// Store a copy for the same reason GetByID returns one: the repository
	// must not keep aliasing the caller's event after the write.
	c := *event
	c.TicketTypes = make([]*entity.TicketType, len(event.TicketTypes))
	for i, tt := range event.TicketTypes {
		ttCopy := *tt
		c.TicketTypes[i] = &ttCopy
	}
	r.events[event.ID] = &c
	return nil
}

func (r *fakeEventRepo) GetTicketTypes(ctx context.Context, eventID string) ([]*entity.TicketType, error) {
	event, err := r.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return event.TicketTypes, nil
}

func (r *fakeEventRepo) CreateTicketType(ctx context.Context, tt *entity.TicketType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[tt.EventID]
	if !ok {
		return entity.ErrEventNotFound
	}
	event.TicketTypes = append(event.TicketTypes, tt)
	return nil
}

func (r *fakeEventRepo) UpdateTicketTypeTerms(ctx context.Context, id string, unitPriceMinor int64, maxQuantity, perBuyerLimit int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, event := range r.events {
		for _, tt := range event.TicketTypes {
			if tt.ID == id {
				tt.UnitPriceMinor = unitPriceMinor
				tt.MaxQuantity = maxQuantity
				tt.PerBuyerLimit = perBuyerLimit
				return nil
			}
		}
	}
	return entity.ErrTicketTypeNotFound
}

func (r *fakeEventRepo) DeleteTicketType(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, event := range r.events {
		for i, tt := range event.TicketTypes {
			if tt.ID == id {
				event.TicketTypes = append(event.TicketTypes[:i], event.TicketTypes[i+1:]...)
				return nil
			}
		}
	}
	return entity.ErrTicketTypeNotFound
}

// fakeInventoryRepo mimics the conditional-update semantics of the real
// repository: a reservation succeeds only if it fits the cap at the moment
// of the call, under lock.
type fakeInventoryRepo struct {
	mu    sync.Mutex
	types map[string]*entity.TicketType

	reserveCalls []string
	releaseCalls []string
	failRelease  bool
}

func newFakeInventoryRepo(types ...*entity.TicketType) *fakeInventoryRepo {
	r := &fakeInventoryRepo{types: make(map[string]*entity.TicketType)}
	for _, tt := range types {
		r.types[tt.ID] = tt
	}
	return r
}

func (r *fakeInventoryRepo) Reserve(ctx context.Context, eventID, ticketTypeID string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tt, ok := r.types[ticketTypeID]
	if !ok || tt.EventID != eventID {
		return entity.ErrTicketTypeNotFound
	}
	r.reserveCalls = append(r.reserveCalls, ticketTypeID)
	if tt.SoldCount+quantity > tt.MaxQuantity {
		return &entity.SoldOutError{Label: tt.Label}
	}
	tt.SoldCount += quantity
	return nil
}

func (r *fakeInventoryRepo) Release(ctx context.Context, eventID, ticketTypeID string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failRelease {
		return fmt.Errorf("release failed")
	}
	tt, ok := r.types[ticketTypeID]
	if !ok {
		return entity.ErrTicketTypeNotFound
	}
	r.releaseCalls = append(r.releaseCalls, ticketTypeID)
	tt.SoldCount -= quantity
	return nil
}

func (r *fakeInventoryRepo) GetTicketType(ctx context.Context, ticketTypeID string) (*entity.TicketType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tt, ok := r.types[ticketTypeID]
	if !ok {
		return nil, entity.ErrTicketTypeNotFound
	}
	return tt, nil
}

// fakeAttendeeRepo is an in-memory AttendeeRepository
type fakeAttendeeRepo struct {
	mu        sync.Mutex
	attendees map[string]*entity.Attendee
	failBatch bool
}

func newFakeAttendeeRepo() *fakeAttendeeRepo {
	return &fakeAttendeeRepo{attendees: make(map[string]*entity.Attendee)}
}

func (r *fakeAttendeeRepo) CreateBatch(ctx context.Context, attendees []*entity.Attendee) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failBatch {
		return fmt.Errorf("insert failed")
	}
	for _, a := range attendees {
		r.attendees[a.ID] = a
	}
	return nil
}

func (r *fakeAttendeeRepo) GetByID(ctx context.Context, id string) (*entity.Attendee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attendees[id]
	if !ok {
		return nil, entity.ErrAttendeeNotFound
	}
	return a, nil
}

func (r *fakeAttendeeRepo) GetByEventID(ctx context.Context, eventID string) ([]*entity.Attendee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*entity.Attendee
	for _, a := range r.attendees {
		if a.EventID == eventID {
			result = append(result, a)
		}
	}
	return result, nil
}

func (r *fakeAttendeeRepo) CountByTicketType(ctx context.Context, ticketTypeID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, a := range r.attendees {
		if a.TicketTypeID == ticketTypeID {
			count++
		}
	}
	return count, nil
}

func (r *fakeAttendeeRepo) UpdateStatus(ctx context.Context, id string, status entity.AttendeeStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attendees[id]
	if !ok {
		return entity.ErrAttendeeNotFound
	}
	a.Status = status
	return nil
}

// fakeTicketRepo is an in-memory TicketRepository keyed by attendee to mirror
// the unique constraint on attendee_id.
type fakeTicketRepo struct {
	mu         sync.Mutex
	byID       map[string]*entity.Ticket
	byAttendee map[string]*entity.Ticket
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{
		byID:       make(map[string]*entity.Ticket),
		byAttendee: make(map[string]*entity.Ticket),
	}
}

func (r *fakeTicketRepo) Create(ctx context.Context, ticket *entity.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byAttendee[ticket.AttendeeID]; ok {
		return entity.ErrTicketAlreadyIssued
	}
	r.byID[ticket.ID] = ticket
	r.byAttendee[ticket.AttendeeID] = ticket
	return nil
}

func (r *fakeTicketRepo) GetByID(ctx context.Context, id string) (*entity.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return nil, entity.ErrTicketNotFound
	}
	return t, nil
}

func (r *fakeTicketRepo) GetByAttendeeID(ctx context.Context, attendeeID string) (*entity.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byAttendee[attendeeID]
	if !ok {
		return nil, entity.ErrTicketNotFound
	}
	return t, nil
}

func (r *fakeTicketRepo) GetByBuyer(ctx context.Context, buyerUserID string) ([]*entity.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*entity.Ticket
	for _, t := range r.byID {
		if t.BuyerUserID == buyerUserID {
			result = append(result, t)
		}
	}
	return result, nil
}

func (r *fakeTicketRepo) UpdateArtifact(ctx context.Context, id, qrCodeRef string, sentToEmail bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return entity.ErrTicketNotFound
	}
	t.QRCodeRef = qrCodeRef
	t.SentToEmail = sentToEmail
	return nil
}

func (r *fakeTicketRepo) UpdateStatus(ctx context.Context, id string, status entity.TicketStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return entity.ErrTicketNotFound
	}
	t.Status = status
	return nil
}

func (r *fakeTicketRepo) CheckIn(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return entity.ErrTicketNotFound
	}
	switch t.Status {
	case entity.TicketStatusCancelled:
		return entity.ErrTicketCancelled
	case entity.TicketStatusCheckedIn:
		return entity.ErrTicketAlreadyRedeemed
	}
	t.Status = entity.TicketStatusCheckedIn
	return nil
}

func (r *fakeTicketRepo) CountByBuyerAndType(ctx context.Context, eventID, buyerUserID, ticketTypeID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, t := range r.byID {
		if t.EventID == eventID && t.BuyerUserID == buyerUserID && t.Status != entity.TicketStatusCancelled {
			count++
		}
	}
	return count, nil
}

func (r *fakeTicketRepo) GetUnfinished(ctx context.Context, limit int) ([]*entity.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*entity.Ticket
	for _, t := range r.byID {
		if t.Status == entity.TicketStatusActive && (t.QRCodeRef == "" || !t.SentToEmail) {
			result = append(result, t)
			if len(result) == limit {
				break
			}
		}
	}
	return result, nil
}

// fakeUserRepo is an in-memory UserRepository
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*entity.User
}

func newFakeUserRepo(users ...*entity.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[string]*entity.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) Create(ctx context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, entity.ErrUserNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, entity.ErrUserNotFound
}

// fakeSessionRepo mirrors the atomic claim semantics of the real repository
type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*entity.PaymentSession
}

func newFakeSessionRepo(sessions ...*entity.PaymentSession) *fakeSessionRepo {
	r := &fakeSessionRepo{sessions: make(map[string]*entity.PaymentSession)}
	for _, s := range sessions {
		r.sessions[s.ID] = s
	}
	return r
}

func (r *fakeSessionRepo) Create(ctx context.Context, session *entity.PaymentSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = session
	return nil
}

func (r *fakeSessionRepo) GetByID(ctx context.Context, id string) (*entity.PaymentSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, entity.ErrSessionNotFound
	}
	return s, nil
}

func (r *fakeSessionRepo) GetStalePending(ctx context.Context, before time.Time) ([]*entity.PaymentSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*entity.PaymentSession
	for _, s := range r.sessions {
		if s.Status == entity.SessionStatusPending && s.CreatedAt.Before(before) {
			result = append(result, s)
		}
	}
	return result, nil
}

func (r *fakeSessionRepo) Claim(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return entity.ErrSessionNotFound
	}
	if s.Status != entity.SessionStatusPending {
		return entity.ErrSessionProcessed
	}
	s.Status = entity.SessionStatusProcessing
	return nil
}

func (r *fakeSessionRepo) Reopen(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.Status != entity.SessionStatusProcessing {
		return entity.ErrSessionNotFound
	}
	s.Status = entity.SessionStatusPending
	return nil
}

func (r *fakeSessionRepo) MarkFulfilled(ctx context.Context, id string) error {
	return r.setStatus(id, entity.SessionStatusFulfilled, "")
}

func (r *fakeSessionRepo) MarkFailed(ctx context.Context, id, reason string) error {
	return r.setStatus(id, entity.SessionStatusFailed, reason)
}

func (r *fakeSessionRepo) setStatus(id string, status entity.SessionStatus, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return entity.ErrSessionNotFound
	}
	s.Status = status
	s.FailureReason = reason
	return nil
}

// fakeProvider is an in-memory payment.Provider
type fakeProvider struct {
	mu       sync.Mutex
	sessions map[string]*payment.CheckoutSession
	nextID   int
	status   string
	fetchErr error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		sessions: make(map[string]*payment.CheckoutSession),
		status:   "paid",
	}
}

func (p *fakeProvider) CreateCheckoutSession(ctx context.Context, items []payment.LineItem, metadata map[string]string) (*payment.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	var total int64
	for _, item := range items {
		total += item.AmountMinor * int64(item.Quantity)
	}
	session := &payment.CheckoutSession{
		ID:          fmt.Sprintf("cs_%d", p.nextID),
		URL:         fmt.Sprintf("https://pay.test/cs_%d", p.nextID),
		AmountMinor: total,
		Status:      "open",
		Metadata:    metadata,
	}
	p.sessions[session.ID] = session
	return session, nil
}

func (p *fakeProvider) GetCheckoutSession(ctx context.Context, sessionID string) (*payment.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	s, ok := p.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}
	fetched := *s
	fetched.Status = p.status
	return &fetched, nil
}

// capturingPublisher records published tasks, optionally failing
type capturingPublisher struct {
	mu         sync.Mutex
	tasks      []*Task
	publishErr error
}

func (p *capturingPublisher) Publish(ctx context.Context, task *Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.publishErr != nil {
		return p.publishErr
	}
	p.tasks = append(p.tasks, task)
	return nil
}

func (p *capturingPublisher) PublishBatch(ctx context.Context, tasks []*Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.publishErr != nil {
		return p.publishErr
	}
	p.tasks = append(p.tasks, tasks...)
	return nil
}

// capturingProducer records kafka alert messages
type capturingProducer struct {
	mu       sync.Mutex
	messages []interface{}
}

func (p *capturingProducer) SendMessage(key string, message interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, message)
	return nil
}

func (p *capturingProducer) Close() error { return nil }

// fakeMediaStore stores nothing and returns deterministic refs
type fakeMediaStore struct {
	mu       sync.Mutex
	stored   int
	storeErr error
}

func (s *fakeMediaStore) Store(sourcePath, folder string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.storeErr != nil {
		return "", s.storeErr
	}
	s.stored++
	return fmt.Sprintf("http://media.test/%s/%d.png", folder, s.stored), nil
}

func (s *fakeMediaStore) Delete(ref string) error { return nil }

// fakeSender records sent emails, optionally failing
type fakeSender struct {
	mu      sync.Mutex
	sent    []string
	sendErr error
}

func (s *fakeSender) Send(to, subject, htmlBody string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, to)
	return nil
}

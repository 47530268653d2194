package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ds124wfegd/interpreter-booking/internal/database/memory"
	"github.com/ds124wfegd/interpreter-booking/internal/eligibility"
	"github.com/ds124wfegd/interpreter-booking/internal/entity"
	"github.com/ds124wfegd/interpreter-booking/internal/notification"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

const (
	adminID    int64 = 1
	customerID int64 = 10
	strangerID int64 = 11
	annaID     int64 = 101
	bertilID   int64 = 102
	swedish    int64 = 7
)

type recordingPush struct {
	mu   sync.Mutex
	reqs []*notification.PushRequest
	err  error
}

func (p *recordingPush) Send(ctx context.Context, req *notification.PushRequest) (*notification.DeliveryAck, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reqs = append(p.reqs, req)
	if p.err != nil {
		return nil, p.err
	}
	return &notification.DeliveryAck{ID: "ack", Recipients: len(req.Tags)}, nil
}

func (p *recordingPush) kinds() []notification.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]notification.Kind, 0, len(p.reqs))
	for _, r := range p.reqs {
		out = append(out, r.Data.Kind)
	}
	return out
}

func (p *recordingPush) byKind(kind notification.Kind) []*notification.PushRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*notification.PushRequest
	for _, r := range p.reqs {
		if r.Data.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

type recordingMail struct {
	mu      sync.Mutex
	letters []*notification.Letter
	err     error
}

func (m *recordingMail) Send(ctx context.Context, letter *notification.Letter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.letters = append(m.letters, letter)
	return m.err
}

func (m *recordingMail) sent() []*notification.Letter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*notification.Letter(nil), m.letters...)
}

// addressed returns "template -> address" pairs in send order.
func (m *recordingMail) addressed() []string {
	var out []string
	for _, l := range m.sent() {
		out = append(out, l.Template+" -> "+l.ToAddress)
	}
	return out
}

type recordingSMS struct {
	mu   sync.Mutex
	msgs []*notification.TextMessage
}

func (s *recordingSMS) Send(ctx context.Context, msg *notification.TextMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return nil
}

type auditEntry struct {
	actorID   int64
	label     string
	bookingID int64
	deltas    []entity.Delta
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (a *recordingAudit) Record(ctx context.Context, actorID int64, label string, bookingID int64, deltas []entity.Delta) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{actorID: actorID, label: label, bookingID: bookingID, deltas: deltas})
	return nil
}

func (a *recordingAudit) all() []auditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]auditEntry(nil), a.entries...)
}

type recordingEvents struct {
	mu     sync.Mutex
	events []*entity.BookingEvent
}

func (e *recordingEvents) Publish(ctx context.Context, event *entity.BookingEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

func (e *recordingEvents) types() []entity.BookingEventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []entity.BookingEventType
	for _, ev := range e.events {
		out = append(out, ev.Type)
	}
	return out
}

type harness struct {
	svc    *bookingService
	store  *memory.Store
	push   *recordingPush
	mail   *recordingMail
	sms    *recordingSMS
	audit  *recordingAudit
	events *recordingEvents
	now    time.Time
	admin  *entity.User
	owner  *entity.User
}

// newHarness собирает сервис поверх хранилища в памяти
func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		store:  memory.NewStore(),
		push:   &recordingPush{},
		mail:   &recordingMail{},
		sms:    &recordingSMS{},
		audit:  &recordingAudit{},
		events: &recordingEvents{},
		now:    time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC),
		admin:  &entity.User{ID: adminID, Email: "admin@example.com", Name: "Admin", Role: entity.RoleAdmin, Active: true},
		owner:  &entity.User{ID: customerID, Email: "customer@example.com", Name: "Karin", Role: entity.RoleCustomer, Active: true},
	}

	h.store.AddUser(h.admin)
	h.store.AddCustomer(&entity.User{ID: customerID, Email: "customer@example.com", Name: "Karin", Active: true},
		&entity.CustomerProfile{ConsumerType: entity.ConsumerPaid, City: "Stockholm", Address: "Storgatan 1"})
	h.store.AddCustomer(&entity.User{ID: strangerID, Email: "stranger@example.com", Active: true},
		&entity.CustomerProfile{ConsumerType: entity.ConsumerNGO})
	h.store.AddInterpreter(&entity.InterpreterProfile{
		UserID: annaID, Email: "anna@example.com", Name: "Anna", Phone: "+46700000001",
		Tier: entity.TierProfessional, Languages: []int64{swedish}, Town: "Stockholm",
	})
	h.store.AddInterpreter(&entity.InterpreterProfile{
		UserID: bertilID, Email: "bertil@example.com", Name: "Bertil",
		Tier: entity.TierProfessional, Languages: []int64{swedish}, Town: "Stockholm",
	})
	h.store.AddLanguage(&entity.Language{ID: swedish, Name: "Swedish"})

	logger, _ := test.NewNullLogger()
	clock := func() time.Time { return h.now }
	policy := notification.NightPolicy{
		Location: time.UTC,
		Start:    notification.ClockTime{Hour: 22},
		End:      notification.ClockTime{Hour: 7},
	}
	dispatcher := notification.NewDispatcher(h.push, h.mail, policy, logger,
		notification.WithClock(clock), notification.WithSMS(h.sms))

	svc := NewBookingService(Dependencies{
		Bookings:    h.store.Bookings(),
		Assignments: h.store.Assignments(),
		Users:       h.store.Users(),
		Languages:   h.store.Languages(),
		Eligibility: eligibility.NewEngine(h.store.Users(), h.store.Bookings(), logger),
		Dispatcher:  dispatcher,
		Audit:       h.audit,
		Events:      h.events,
		Logger:      logger,
	}, Options{Location: time.UTC, Now: clock})
	h.svc = svc.(*bookingService)
	return h
}

// booking stores a phone booking of the test customer due at now+lead.
func (h *harness) booking(status entity.BookingStatus, lead time.Duration) *entity.Booking {
	b := &entity.Booking{
		CustomerID:     customerID,
		FromLanguageID: swedish,
		PhoneType:      true,
		JobType:        entity.JobTypePaid,
		Due:            h.now.Add(lead),
		Duration:       60,
		Status:         status,
		CreatedAt:      h.now.Add(-2 * time.Hour),
	}
	h.store.PutBooking(b)
	return b
}

func (h *harness) assign(bookingID, interpreterID int64) {
	h.store.PutAssignment(&entity.Assignment{
		BookingID:     bookingID,
		InterpreterID: interpreterID,
		CreatedAt:     h.now.Add(-time.Hour),
	})
}

func (h *harness) reload(t *testing.T, id int64) *entity.Booking {
	t.Helper()
	b, err := h.store.Bookings().GetByID(context.Background(), id)
	require.NoError(t, err)
	return b
}

func (h *harness) history(t *testing.T, id int64) []*entity.Assignment {
	t.Helper()
	history, err := h.svc.ledger.History(context.Background(), id)
	require.NoError(t, err)
	return history
}

func tagValues(expr notification.TagExpression) []string {
	var out []string
	for _, clause := range expr {
		if v, ok := clause["value"]; ok {
			out = append(out, v)
		}
	}
	return out
}

func strptr(s string) *string { return &s }

func idptr(id int64) *int64 { return &id }
